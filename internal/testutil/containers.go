// Package testutil holds shared test helpers: disposable MongoDB and Redis
// containers and provider fixtures.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/redisclient"
	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StartMongo starts a MongoDB container and returns a database handle.
// The test is skipped under -short or when Docker is unavailable.
func StartMongo(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := mongodb.Run(ctx, "mongo:7.0")
	if err != nil {
		t.Skipf("skipping: failed to start MongoDB container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get MongoDB connection string: %v", err)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	return client.Database("credentialing_test")
}

// StartRedis starts a Redis container and returns a traced client.
// The test is skipped under -short or when Docker is unavailable.
func StartRedis(t *testing.T) *redisclient.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Skipf("skipping: failed to start Redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get Redis connection string: %v", err)
	}

	opts, err := goredis.ParseURL(uri)
	if err != nil {
		t.Fatalf("failed to parse Redis URL %q: %v", uri, err)
	}

	raw := goredis.NewClient(opts)
	t.Cleanup(func() { _ = raw.Close() })

	client := redisclient.NewClient(raw)
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("failed to ping Redis: %v", err)
	}
	return client
}

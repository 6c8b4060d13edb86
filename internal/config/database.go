package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/logging"
	"github.com/prefeitura-rio/app-credentialing/internal/redisclient"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.uber.org/zap"
)

var (
	// MongoDB database handle
	MongoDB *mongo.Database
	// Redis client
	Redis *redisclient.Client
	// RabbitMQ connection, nil when notifications are log-only
	RabbitMQ *amqp.Connection
)

// InitMongoDB initializes the MongoDB connection and required indexes
func InitMongoDB() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(AppConfig.MongoURI).
		SetMonitor(otelmongo.NewMonitor()).
		SetMaxPoolSize(100).
		SetMinPoolSize(10).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	MongoDB = client.Database(AppConfig.MongoDatabase)

	if err := EnsureIndexes(context.Background(), MongoDB, AppConfig); err != nil {
		logging.Logger.Error("failed to ensure indexes on startup", zap.Error(err))
	}

	logging.Logger.Info("connected to MongoDB",
		zap.String("uri", maskMongoURI(AppConfig.MongoURI)),
		zap.String("database", AppConfig.MongoDatabase),
	)
	return nil
}

// InitRedis initializes the Redis connection
func InitRedis() error {
	redisClient := redis.NewClient(&redis.Options{
		Addr:         AppConfig.RedisURI,
		Password:     AppConfig.RedisPassword,
		DB:           AppConfig.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	// Wrap with traced client
	Redis = redisclient.NewClient(redisClient)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", AppConfig.RedisURI, err)
	}

	logging.Logger.Info("connected to Redis", zap.String("uri", AppConfig.RedisURI))
	return nil
}

// InitRabbitMQ dials the notification broker when RABBITMQ_URL is set
func InitRabbitMQ() error {
	if AppConfig.RabbitMQURL == "" {
		logging.Logger.Info("RABBITMQ_URL not set, notifications are log-only")
		return nil
	}

	conn, err := amqp.DialConfig(AppConfig.RabbitMQURL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	RabbitMQ = conn
	logging.Logger.Info("connected to RabbitMQ", zap.String("exchange", AppConfig.NotificationExchange))
	return nil
}

// maskMongoURI masks credentials in a MongoDB URI
func maskMongoURI(uri string) string {
	at := strings.LastIndex(uri, "@")
	if at < 0 {
		return uri
	}
	return "mongodb://****:****@" + uri[at+1:]
}

// indexSpec describes one index the service depends on
type indexSpec struct {
	collection string
	name       string
	keys       bson.D
	unique     bool
	sparse     bool
}

func requiredIndexes(cfg *Config) []indexSpec {
	return []indexSpec{
		{collection: cfg.ProviderCollection, name: "status_1_updated_at_-1", keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: -1}}},
		{collection: cfg.ProviderCollection, name: "npi_1", keys: bson.D{{Key: "npi", Value: 1}}, sparse: true},
		{collection: cfg.ProviderCollection, name: "intake_source_1", keys: bson.D{{Key: "intake_source", Value: 1}}},
		{collection: cfg.ProviderCollection, name: "psv_status.overall_status_1", keys: bson.D{{Key: "psv_status.overall_status", Value: 1}}},
		{collection: cfg.AuditLogsCollection, name: "resource_id_1_timestamp_-1", keys: bson.D{{Key: "resource_id", Value: 1}, {Key: "timestamp", Value: -1}}},
	}
}

// EnsureIndexes creates required indexes if they don't exist
func EnsureIndexes(ctx context.Context, db *mongo.Database, cfg *Config) error {
	logger := logging.Logger.Named("database")
	logger.Info("ensuring required indexes exist")

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, spec := range requiredIndexes(cfg) {
		if err := ensureIndex(ctx, db.Collection(spec.collection), spec, logger); err != nil {
			return err
		}
	}

	logger.Info("all required indexes verified")
	return nil
}

func ensureIndex(ctx context.Context, collection *mongo.Collection, spec indexSpec, logger *logging.SafeLogger) error {
	cursor, err := collection.Indexes().List(ctx)
	if err != nil {
		logger.Error("failed to list indexes", zap.String("collection", spec.collection), zap.Error(err))
		return fmt.Errorf("failed to list indexes on %s: %w", spec.collection, err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var index bson.M
		if err := cursor.Decode(&index); err != nil {
			continue
		}
		if name, ok := index["name"].(string); ok && name == spec.name {
			logger.Debug("index already exists",
				zap.String("collection", spec.collection),
				zap.String("index", spec.name))
			return nil
		}
	}

	opts := options.Index().SetName(spec.name)
	if spec.unique {
		opts.SetUnique(true)
	}
	if spec.sparse {
		opts.SetSparse(true)
	}

	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: spec.keys, Options: opts})
	if err != nil {
		// another instance created it first
		if mongo.IsDuplicateKeyError(err) {
			logger.Info("index already exists (created by another instance)",
				zap.String("collection", spec.collection),
				zap.String("index", spec.name))
			return nil
		}
		logger.Error("failed to create index",
			zap.String("collection", spec.collection),
			zap.String("index", spec.name),
			zap.Error(err))
		return fmt.Errorf("failed to create index %s on %s: %w", spec.name, spec.collection, err)
	}

	logger.Info("created index",
		zap.String("collection", spec.collection),
		zap.String("index", spec.name))
	return nil
}

package redisclient_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SetNXGetDel(t *testing.T) {
	client := testutil.StartRedis(t)
	ctx := context.Background()

	ok, err := client.SetNX(ctx, "test:lock", "token-a", time.Minute).Result()
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SetNX(ctx, "test:lock", "token-b", time.Minute).Result()
	require.NoError(t, err)
	assert.False(t, ok)

	val, err := client.Get(ctx, "test:lock").Result()
	require.NoError(t, err)
	assert.Equal(t, "token-a", val)

	n, err := client.Del(ctx, "test:lock").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = client.Get(ctx, "test:lock").Result()
	assert.True(t, errors.Is(err, redis.Nil))
}

func TestClient_EvalScript(t *testing.T) {
	client := testutil.StartRedis(t)
	ctx := context.Background()

	script := redis.NewScript(`return redis.call("SET", KEYS[1], ARGV[1])`)
	require.NoError(t, client.EvalScript(ctx, script, []string{"test:script"}, "v").Err())

	val, err := client.Get(ctx, "test:script").Result()
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestClient_PingInfo(t *testing.T) {
	client := testutil.StartRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx).Err())
	info, err := client.Info(ctx, "memory").Result()
	require.NoError(t, err)
	assert.Contains(t, info, "used_memory")
}

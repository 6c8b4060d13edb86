package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/logging"
	"github.com/prefeitura-rio/app-credentialing/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDegradedMode_ActivateDeactivate(t *testing.T) {
	dm := NewDegradedMode(time.Second, logging.NewNop())
	assert.False(t, dm.IsActive())
	assert.Empty(t, dm.GetReason())
	assert.Zero(t, dm.GetDuration())

	dm.Activate("mongodb_down")
	first := dm.activatedAt
	dm.Activate("redis_memory_high")

	assert.True(t, dm.IsActive())
	assert.Equal(t, "mongodb_down", dm.GetReason())
	assert.Equal(t, first, dm.activatedAt)

	dm.Deactivate()
	assert.False(t, dm.IsActive())
	assert.Empty(t, dm.GetReason())
	assert.Zero(t, dm.GetDuration())

	dm.Deactivate()
	assert.False(t, dm.IsActive())
}

func TestDegradedMode_CheckConditions(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		order      []string
		wantActive bool
		wantReason string
	}{
		{name: "no checks", wantActive: false},
		{
			name:   "all healthy",
			checks: map[string]HealthCheck{"mongodb_down": healthy, "redis_memory_high": healthy},
			order:  []string{"mongodb_down", "redis_memory_high"},
		},
		{
			name:       "first failing check wins",
			checks:     map[string]HealthCheck{"mongodb_down": down, "redis_memory_high": down},
			order:      []string{"mongodb_down", "redis_memory_high"},
			wantActive: true,
			wantReason: "mongodb_down",
		},
		{
			name:       "second check fails",
			checks:     map[string]HealthCheck{"mongodb_down": healthy, "redis_memory_high": down},
			order:      []string{"mongodb_down", "redis_memory_high"},
			wantActive: true,
			wantReason: "redis_memory_high",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dm := NewDegradedMode(time.Second, logging.NewNop())
			for _, reason := range tt.order {
				dm.AddCheck(reason, tt.checks[reason])
			}
			dm.CheckConditions(context.Background())
			assert.Equal(t, tt.wantActive, dm.IsActive())
			assert.Equal(t, tt.wantReason, dm.GetReason())
		})
	}
}

func TestDegradedMode_Recovers(t *testing.T) {
	var mu sync.Mutex
	failing := true
	dm := NewDegradedMode(time.Second, logging.NewNop())
	dm.AddCheck("mongodb_down", func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			return errors.New("down")
		}
		return nil
	})

	dm.CheckConditions(context.Background())
	require.True(t, dm.IsActive())

	mu.Lock()
	failing = false
	mu.Unlock()

	dm.CheckConditions(context.Background())
	assert.False(t, dm.IsActive())
}

func TestDegradedMode_StartMonitoringStops(t *testing.T) {
	dm := NewDegradedMode(5*time.Millisecond, logging.NewNop())
	dm.AddCheck("mongodb_down", func(context.Context) error { return errors.New("down") })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dm.StartMonitoring(ctx)
		close(done)
	}()

	assert.Eventually(t, dm.IsActive, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitoring did not stop")
	}
}

func TestDegradedMode_ConcurrentAccess(t *testing.T) {
	dm := NewDegradedMode(time.Second, logging.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); dm.Activate("load") }()
		go func() { defer wg.Done(); dm.Deactivate() }()
		go func() { defer wg.Done(); _ = dm.IsActive(); _ = dm.GetReason() }()
	}
	wg.Wait()
}

func TestParseRedisMemory(t *testing.T) {
	info := "# Memory\r\nused_memory:870000\r\nused_memory_human:849.61K\r\nmaxmemory:1000000\r\n"
	used, max := parseRedisMemory(info)
	assert.Equal(t, int64(870000), used)
	assert.Equal(t, int64(1000000), max)

	used, max = parseRedisMemory("# Memory\nused_memory:100\n")
	assert.Equal(t, int64(100), used)
	assert.Zero(t, max)
}

func TestHealthChecks_Containers(t *testing.T) {
	db := testutil.StartMongo(t)
	redis := testutil.StartRedis(t)
	ctx := context.Background()

	assert.NoError(t, MongoPingCheck(db.Client())(ctx))
	// the test image runs without maxmemory
	assert.NoError(t, RedisMemoryCheck(redis, 85)(ctx))
}

package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/logging"
	"github.com/prefeitura-rio/app-credentialing/internal/observability"
	"github.com/prefeitura-rio/app-credentialing/internal/redisclient"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// HealthCheck returns an error while a dependency is unhealthy
type HealthCheck func(ctx context.Context) error

type namedCheck struct {
	reason string
	check  HealthCheck
}

// DegradedMode tracks whether background work should pause because a dependency is unhealthy
type DegradedMode struct {
	checks      []namedCheck
	interval    time.Duration
	isActive    bool
	reason      string
	activatedAt time.Time
	mu          sync.RWMutex
	logger      *logging.SafeLogger
}

// NewDegradedMode creates a monitor that evaluates its checks every interval
func NewDegradedMode(interval time.Duration, logger *logging.SafeLogger) *DegradedMode {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Logger
	}
	return &DegradedMode{interval: interval, logger: logger.Named("degraded_mode")}
}

// AddCheck registers a check; reason names the condition when it fails
func (dm *DegradedMode) AddCheck(reason string, check HealthCheck) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.checks = append(dm.checks, namedCheck{reason: reason, check: check})
}

// StartMonitoring evaluates the checks until ctx is done
func (dm *DegradedMode) StartMonitoring(ctx context.Context) {
	dm.logger.Info("starting degraded mode monitoring", zap.Duration("interval", dm.interval))

	ticker := time.NewTicker(dm.interval)
	defer ticker.Stop()

	dm.CheckConditions(ctx)
	for {
		select {
		case <-ticker.C:
			dm.CheckConditions(ctx)
		case <-ctx.Done():
			dm.logger.Info("degraded mode monitoring stopped")
			return
		}
	}
}

// CheckConditions activates degraded mode on the first failing check, or deactivates it
func (dm *DegradedMode) CheckConditions(ctx context.Context) {
	dm.mu.RLock()
	checks := append([]namedCheck(nil), dm.checks...)
	dm.mu.RUnlock()

	for _, c := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := c.check(checkCtx)
		cancel()
		if err != nil {
			dm.logger.Warn("health check failed", zap.String("reason", c.reason), zap.Error(err))
			dm.Activate(c.reason)
			return
		}
	}
	dm.Deactivate()
}

// Activate enters degraded mode; a second call keeps the first reason
func (dm *DegradedMode) Activate(reason string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.isActive {
		return
	}
	dm.isActive = true
	dm.reason = reason
	dm.activatedAt = time.Now()

	dm.logger.Warn("degraded mode activated",
		zap.String("reason", reason),
		zap.Time("activated_at", dm.activatedAt))
	observability.DegradedModeActive.Set(1)
}

// Deactivate leaves degraded mode
func (dm *DegradedMode) Deactivate() {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if !dm.isActive {
		return
	}
	dm.logger.Info("degraded mode deactivated",
		zap.String("previous_reason", dm.reason),
		zap.Duration("duration", time.Since(dm.activatedAt)))

	dm.isActive = false
	dm.reason = ""
	dm.activatedAt = time.Time{}
	observability.DegradedModeActive.Set(0)
}

// IsActive returns whether degraded mode is active
func (dm *DegradedMode) IsActive() bool {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.isActive
}

// GetReason returns the reason for degraded mode
func (dm *DegradedMode) GetReason() string {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.reason
}

// GetDuration returns how long degraded mode has been active
func (dm *DegradedMode) GetDuration() time.Duration {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	if !dm.isActive {
		return 0
	}
	return time.Since(dm.activatedAt)
}

// MongoPingCheck fails while the primary does not answer
func MongoPingCheck(client *mongo.Client) HealthCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}
}

// RedisMemoryCheck fails when Redis memory use reaches thresholdPercent of maxmemory.
// An unreachable Redis also fails the check.
func RedisMemoryCheck(client *redisclient.Client, thresholdPercent float64) HealthCheck {
	return func(ctx context.Context) error {
		info, err := client.Info(ctx, "memory").Result()
		if err != nil {
			return fmt.Errorf("failed to read redis memory info: %w", err)
		}
		used, max := parseRedisMemory(info)
		if max == 0 {
			return nil
		}
		if usage := float64(used) / float64(max) * 100; usage >= thresholdPercent {
			return fmt.Errorf("redis memory usage at %.1f%%", usage)
		}
		return nil
	}
}

func parseRedisMemory(info string) (used, max int64) {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "used_memory:"):
			_, _ = fmt.Sscanf(line, "used_memory:%d", &used)
		case strings.HasPrefix(line, "maxmemory:"):
			_, _ = fmt.Sscanf(line, "maxmemory:%d", &max)
		}
	}
	return used, max
}

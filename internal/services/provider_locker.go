package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/observability"
	"github.com/prefeitura-rio/app-credentialing/internal/redisclient"
	"github.com/prefeitura-rio/app-credentialing/internal/utils"
	"github.com/redis/go-redis/v9"
)

// ProviderLocker serializes writers of a single provider id
type ProviderLocker interface {
	// Lock blocks until the id is held or ctx ends; the returned func releases it
	Lock(ctx context.Context, id string) (func(), error)
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// KeyedLocker is an in-process locker with one semaphore per id.
// Entries exist only while someone holds or waits for them.
type KeyedLocker struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

// NewKeyedLocker creates an in-process locker
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{entries: make(map[string]*keyedEntry)}
}

// Lock acquires the id
func (l *KeyedLocker) Lock(ctx context.Context, id string) (func(), error) {
	start := time.Now()

	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(id, e)
		return nil, fmt.Errorf("failed to lock provider %s: %w", id, ctx.Err())
	}
	observability.LockWaitDuration.WithLabelValues("memory").Observe(time.Since(start).Seconds())

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(id, e)
		})
	}, nil
}

func (l *KeyedLocker) release(id string, e *keyedEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, id)
	}
}

// size reports the number of live entries
func (l *KeyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// unlockScript deletes the key only while it still holds our token
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lease lock shared by every instance using the same Redis.
// A lease expires after ttl so a crashed holder cannot block an id forever.
type RedisLocker struct {
	client    *redisclient.Client
	ttl       time.Duration
	retryWait time.Duration
	prefix    string
}

// NewRedisLocker creates a Redis-backed locker
func NewRedisLocker(client *redisclient.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client:    client,
		ttl:       ttl,
		retryWait: 20 * time.Millisecond,
		prefix:    "credentialing:lock:provider:",
	}
}

// Lock acquires the lease, polling until it is free or ctx ends
func (l *RedisLocker) Lock(ctx context.Context, id string) (func(), error) {
	start := time.Now()
	key := l.prefix + id
	token := utils.GenerateUUID()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to lock provider %s: %w", id, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to lock provider %s: %w", id, ctx.Err())
		case <-time.After(l.retryWait):
		}
	}
	observability.LockWaitDuration.WithLabelValues("redis").Observe(time.Since(start).Seconds())

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = l.client.EvalScript(releaseCtx, unlockScript, []string{key}, token).Err()
		})
	}, nil
}

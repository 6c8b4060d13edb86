package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lockerContract checks mutual exclusion per id and independence across ids
func lockerContract(t *testing.T, locker ProviderLocker) {
	ctx := context.Background()

	t.Run("mutual exclusion", func(t *testing.T) {
		var inside, maxInside int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := locker.Lock(ctx, "p1")
				if !assert.NoError(t, err) {
					return
				}
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxInside)
	})

	t.Run("different ids do not block", func(t *testing.T) {
		unlockA, err := locker.Lock(ctx, "a")
		require.NoError(t, err)
		defer unlockA()

		lockCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		unlockB, err := locker.Lock(lockCtx, "b")
		require.NoError(t, err)
		unlockB()
	})

	t.Run("waiter gives up with context", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, "busy")
		require.NoError(t, err)

		waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(waitCtx, "busy")
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		unlock()
		unlock()

		again, err := locker.Lock(ctx, "busy")
		require.NoError(t, err)
		again()
	})
}

func TestKeyedLocker(t *testing.T) {
	locker := NewKeyedLocker()
	lockerContract(t, locker)
	assert.Equal(t, 0, locker.size())
}

func TestRedisLocker(t *testing.T) {
	client := testutil.StartRedis(t)
	lockerContract(t, NewRedisLocker(client, 5*time.Second))
}

func TestRedisLocker_LeaseExpires(t *testing.T) {
	client := testutil.StartRedis(t)
	locker := NewRedisLocker(client, 200*time.Millisecond)
	ctx := context.Background()

	_, err := locker.Lock(ctx, "crashed")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	unlock, err := locker.Lock(waitCtx, "crashed")
	require.NoError(t, err)
	unlock()
}

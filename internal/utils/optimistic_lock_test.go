package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func fastBackoff(t *testing.T) {
	t.Helper()
	prev := OptimisticLockBackoff
	OptimisticLockBackoff = time.Millisecond
	t.Cleanup(func() { OptimisticLockBackoff = prev })
}

func TestRetryWithOptimisticLock(t *testing.T) {
	conflict := &models.ConflictError{Resource: "providers", ID: "p1", Expected: 1, Actual: 2}

	tests := []struct {
		name       string
		maxRetries int
		failures   int
		failWith   error
		wantCalls  int
		wantErr    bool
		wantConfl  bool
	}{
		{name: "success first try", maxRetries: 3, failures: 0, wantCalls: 1},
		{name: "success after conflicts", maxRetries: 3, failures: 2, failWith: conflict, wantCalls: 3},
		{name: "conflicts exhausted", maxRetries: 2, failures: 10, failWith: conflict, wantCalls: 3, wantErr: true, wantConfl: true},
		{name: "zero retries", maxRetries: 0, failures: 1, failWith: conflict, wantCalls: 1, wantErr: true, wantConfl: true},
		{name: "other error not retried", maxRetries: 3, failures: 5, failWith: errors.New("boom"), wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fastBackoff(t)
			calls := 0
			err := RetryWithOptimisticLock(context.Background(), tt.maxRetries, func() error {
				calls++
				if calls <= tt.failures {
					return tt.failWith
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantConfl, models.IsConflict(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetryWithOptimisticLock_ContextCancelled(t *testing.T) {
	prev := OptimisticLockBackoff
	OptimisticLockBackoff = time.Hour
	defer func() { OptimisticLockBackoff = prev }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithOptimisticLock(ctx, 3, func() error {
		return &models.ConflictError{Resource: "providers", ID: "p1"}
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReplaceWithOptimisticLock(t *testing.T) {
	db := testutil.StartMongo(t)
	ctx := context.Background()
	coll := db.Collection("optimistic_lock_test")

	_, err := coll.InsertOne(ctx, bson.M{"_id": "p1", "version": int32(1), "data": "initial"})
	require.NoError(t, err)

	t.Run("matching version replaces", func(t *testing.T) {
		err := ReplaceWithOptimisticLock(ctx, coll, "p1", bson.M{"_id": "p1", "version": int32(2), "data": "updated"}, 1)
		require.NoError(t, err)

		version, err := GetDocumentVersion(ctx, coll, bson.M{"_id": "p1"})
		require.NoError(t, err)
		assert.Equal(t, int32(2), version)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		err := ReplaceWithOptimisticLock(ctx, coll, "p1", bson.M{"_id": "p1", "version": int32(2), "data": "stale"}, 1)
		var conflict *models.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, int32(1), conflict.Expected)
		assert.Equal(t, int32(2), conflict.Actual)
	})

	t.Run("missing document", func(t *testing.T) {
		err := ReplaceWithOptimisticLock(ctx, coll, "nope", bson.M{"_id": "nope", "version": int32(1)}, 0)
		assert.ErrorIs(t, err, models.ErrProviderNotFound)
	})
}

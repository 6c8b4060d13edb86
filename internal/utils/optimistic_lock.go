package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/logging"
	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// OptimisticLockBackoff is the first retry delay; it doubles on every attempt
var OptimisticLockBackoff = 100 * time.Millisecond

// ReplaceWithOptimisticLock replaces the document with the given _id only when its stored
// version equals expectedVersion. On a mismatch it reports the version actually stored.
func ReplaceWithOptimisticLock(ctx context.Context, collection *mongo.Collection, id string, doc interface{}, expectedVersion int32) error {
	logger := logging.Logger.With(
		zap.String("collection", collection.Name()),
		zap.String("id", id),
		zap.Int32("expected_version", expectedVersion),
	)

	filter := bson.M{"_id": id, "version": expectedVersion}
	result, err := collection.ReplaceOne(ctx, filter, doc)
	if err != nil {
		logger.Error("failed to perform optimistic replace", zap.Error(err))
		return fmt.Errorf("failed to perform optimistic replace: %w", err)
	}

	if result.MatchedCount > 0 {
		logger.Debug("optimistic replace successful")
		return nil
	}

	actual, err := GetDocumentVersion(ctx, collection, bson.M{"_id": id})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ErrProviderNotFound
	}
	if err != nil {
		logger.Error("failed to check existing document", zap.Error(err))
		return fmt.Errorf("failed to check existing document: %w", err)
	}

	logger.Warn("optimistic lock conflict detected", zap.Int32("actual_version", actual))
	return &models.ConflictError{
		Resource: collection.Name(),
		ID:       id,
		Expected: expectedVersion,
		Actual:   actual,
	}
}

// GetDocumentVersion gets the current version of a document
func GetDocumentVersion(ctx context.Context, collection *mongo.Collection, filter bson.M) (int32, error) {
	var doc struct {
		Version int32 `bson:"version"`
	}
	err := collection.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"version": 1})).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Version, nil
}

// RetryWithOptimisticLock retries an operation with exponential backoff on optimistic lock conflicts
func RetryWithOptimisticLock(ctx context.Context, maxRetries int, operation func() error) error {
	logger := logging.Logger.With(zap.String("operation", "retry_with_optimistic_lock"))

	for attempt := 0; ; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		if !models.IsConflict(err) {
			return err
		}
		if attempt >= maxRetries {
			logger.Error("max retries reached for optimistic lock",
				zap.Int("attempts", attempt+1),
				zap.Error(err))
			return err
		}

		backoff := time.Duration(1<<attempt) * OptimisticLockBackoff
		logger.Info("optimistic lock conflict, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/prefeitura-rio/app-credentialing/internal/logging"
	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/observability"
	"github.com/prefeitura-rio/app-credentialing/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// MongoProviderStore persists providers in a MongoDB collection
type MongoProviderStore struct {
	collection *mongo.Collection
	logger     *logging.SafeLogger
}

// NewMongoProviderStore creates a store over the given collection
func NewMongoProviderStore(collection *mongo.Collection, logger *logging.SafeLogger) *MongoProviderStore {
	return &MongoProviderStore{
		collection: collection,
		logger:     logger.Named("provider_store"),
	}
}

// Get loads one provider by id
func (s *MongoProviderStore) Get(ctx context.Context, id string) (*models.Provider, error) {
	ctx, span, done := utils.TraceDatabaseOperation(ctx, "find_one", s.collection.Name())
	defer done()
	utils.AddSpanAttribute(span, "provider.id", id)

	var p models.Provider
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		observability.DatabaseOperations.WithLabelValues("get", "not_found").Inc()
		return nil, models.ErrProviderNotFound
	}
	if err != nil {
		observability.DatabaseOperations.WithLabelValues("get", "error").Inc()
		utils.RecordErrorInSpan(span, err, nil)
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	observability.DatabaseOperations.WithLabelValues("get", "success").Inc()
	return &p, nil
}

// Create inserts a new provider at version 1
func (s *MongoProviderStore) Create(ctx context.Context, p *models.Provider) (*models.Provider, error) {
	ctx, span, done := utils.TraceDatabaseOperation(ctx, "insert_one", s.collection.Name())
	defer done()
	utils.AddSpanAttribute(span, "provider.id", p.ID)

	stored := p.Clone()
	stored.Version = 1
	if _, err := s.collection.InsertOne(ctx, stored); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			observability.DatabaseOperations.WithLabelValues("create", "duplicate").Inc()
			return nil, models.ErrProviderExists
		}
		observability.DatabaseOperations.WithLabelValues("create", "error").Inc()
		utils.RecordErrorInSpan(span, err, nil)
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	observability.DatabaseOperations.WithLabelValues("create", "success").Inc()
	s.logger.Debug("provider created", zap.String("provider_id", p.ID))
	return stored, nil
}

// Save replaces the provider document when the stored version matches p.Version
func (s *MongoProviderStore) Save(ctx context.Context, p *models.Provider) (*models.Provider, error) {
	ctx, span, done := utils.TraceDatabaseOperation(ctx, "replace_one", s.collection.Name())
	defer done()
	utils.AddSpanAttribute(span, "provider.id", p.ID)
	utils.AddSpanAttribute(span, "provider.version", p.Version)

	stored := p.Clone()
	stored.Version = p.Version + 1

	err := utils.ReplaceWithOptimisticLock(ctx, s.collection, p.ID, stored, p.Version)
	switch {
	case err == nil:
		observability.DatabaseOperations.WithLabelValues("save", "success").Inc()
		return stored, nil
	case models.IsConflict(err):
		observability.StoreConflicts.WithLabelValues("detected").Inc()
		return nil, err
	case errors.Is(err, models.ErrProviderNotFound):
		return nil, err
	}
	observability.DatabaseOperations.WithLabelValues("save", "error").Inc()
	utils.RecordErrorInSpan(span, err, nil)
	return nil, fmt.Errorf("failed to save provider: %w", err)
}

// List returns matching providers, most recently updated first
func (s *MongoProviderStore) List(ctx context.Context, filter ProviderFilter) ([]*models.Provider, int64, error) {
	ctx, span, done := utils.TraceDatabaseOperation(ctx, "find", s.collection.Name())
	defer done()

	query := buildProviderQuery(filter)

	total, err := s.collection.CountDocuments(ctx, query)
	if err != nil {
		utils.RecordErrorInSpan(span, err, nil)
		return nil, 0, fmt.Errorf("failed to count providers: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}})
	if filter.PerPage > 0 {
		opts.SetSkip(int64(filter.offset())).SetLimit(int64(filter.PerPage))
	}

	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		observability.DatabaseOperations.WithLabelValues("list", "error").Inc()
		utils.RecordErrorInSpan(span, err, nil)
		return nil, 0, fmt.Errorf("failed to list providers: %w", err)
	}
	defer cursor.Close(ctx)

	providers := make([]*models.Provider, 0)
	for cursor.Next(ctx) {
		var p models.Provider
		if err := cursor.Decode(&p); err != nil {
			s.logger.Warn("skipping undecodable provider document", zap.Error(err))
			continue
		}
		providers = append(providers, &p)
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate providers: %w", err)
	}

	observability.DatabaseOperations.WithLabelValues("list", "success").Inc()
	utils.AddSpanAttribute(span, "result.count", len(providers))
	return providers, total, nil
}

// Ping checks the primary is reachable
func (s *MongoProviderStore) Ping(ctx context.Context) error {
	return s.collection.Database().Client().Ping(ctx, readpref.Primary())
}

func buildProviderQuery(f ProviderFilter) bson.M {
	query := bson.M{}
	if f.Status != "" {
		query["status"] = f.Status
	}
	if f.IntakeSource != "" {
		query["intake_source"] = f.IntakeSource
	}
	if f.PSVStatus != "" {
		query["psv_status.overall_status"] = f.PSVStatus
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		pattern := searchPattern(q)
		query["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"first_name": pattern},
			bson.M{"last_name": pattern},
			bson.M{"npi": pattern},
			bson.M{"credentials.npi": pattern},
			bson.M{"contact.email": pattern},
		}
	}
	return query
}

func searchPattern(q string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
}

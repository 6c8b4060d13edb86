package utils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prefeitura-rio/app-credentialing/internal/logging"
	"github.com/prefeitura-rio/app-credentialing/internal/observability"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// AuditLog represents an audit log entry
type AuditLog struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Action     string             `bson:"action" json:"action"`
	Resource   string             `bson:"resource" json:"resource"`
	ResourceID string             `bson:"resource_id" json:"resource_id"`
	OldValue   interface{}        `bson:"old_value,omitempty" json:"old_value,omitempty"`
	NewValue   interface{}        `bson:"new_value,omitempty" json:"new_value,omitempty"`
	UserID     string             `bson:"user_id,omitempty" json:"user_id,omitempty"`
	IPAddress  string             `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	UserAgent  string             `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	RequestID  string             `bson:"request_id,omitempty" json:"request_id,omitempty"`
	Timestamp  time.Time          `bson:"timestamp" json:"timestamp"`
	Metadata   map[string]string  `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// Audit constants
const (
	AuditActionCreate     = "CREATE"
	AuditActionUpdate     = "UPDATE"
	AuditActionTransition = "TRANSITION"
	AuditActionDecision   = "DECISION"
	AuditActionVerify     = "VERIFY"
	AuditActionIngest     = "INGEST"
	AuditActionCancel     = "CANCEL"

	AuditResourceProvider     = "provider"
	AuditResourceVerification = "verification"
	AuditResourceDecision     = "committee_decision"
	AuditResourceIntakeFile   = "intake_file"
)

// AuditContext contains context information for audit logging
type AuditContext struct {
	UserID    string
	IPAddress string
	UserAgent string
	RequestID string
}

type auditContextKey struct{}

// WithAuditContext attaches request identity to ctx so services can audit without gin
func WithAuditContext(ctx context.Context, auditCtx AuditContext) context.Context {
	return context.WithValue(ctx, auditContextKey{}, auditCtx)
}

// AuditContextFrom returns the identity attached by WithAuditContext, if any
func AuditContextFrom(ctx context.Context) AuditContext {
	if auditCtx, ok := ctx.Value(auditContextKey{}).(AuditContext); ok {
		return auditCtx
	}
	return AuditContext{}
}

// AuditStore persists batches of audit entries
type AuditStore interface {
	InsertAuditLogs(ctx context.Context, logs []AuditLog) error
}

// MongoAuditStore writes audit entries to a collection with unordered bulk inserts
type MongoAuditStore struct {
	collection *mongo.Collection
}

// NewMongoAuditStore creates an audit store over the given collection
func NewMongoAuditStore(collection *mongo.Collection) *MongoAuditStore {
	return &MongoAuditStore{collection: collection}
}

// InsertAuditLogs bulk inserts a batch
func (s *MongoAuditStore) InsertAuditLogs(ctx context.Context, logs []AuditLog) error {
	operations := make([]mongo.WriteModel, 0, len(logs))
	for _, log := range logs {
		operations = append(operations, mongo.NewInsertOneModel().SetDocument(log))
	}

	_, err := s.collection.BulkWrite(ctx, operations, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to insert audit log batch: %w", err)
	}
	return nil
}

// AuditWorker manages asynchronous audit logging
type AuditWorker struct {
	store     AuditStore
	auditChan chan AuditLog
	workers   int
	batchSize int
	flushTick time.Duration
	wg        sync.WaitGroup
	mu        sync.RWMutex
	stopped   bool
	logger    *logging.SafeLogger
}

// NewAuditWorker creates and starts a worker pool writing to store
func NewAuditWorker(store AuditStore, workers, bufferSize int) *AuditWorker {
	if workers <= 0 {
		workers = 1
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}
	aw := &AuditWorker{
		store:     store,
		auditChan: make(chan AuditLog, bufferSize),
		workers:   workers,
		batchSize: 100,
		flushTick: 100 * time.Millisecond,
		logger:    logging.Logger.Named("audit"),
	}
	aw.start()
	return aw
}

func (aw *AuditWorker) start() {
	aw.wg.Add(aw.workers)
	for i := 0; i < aw.workers; i++ {
		go func() {
			defer aw.wg.Done()
			aw.processAuditLogs()
		}()
	}

	aw.logger.Info("audit worker started with batched processing",
		zap.Int("workers", aw.workers),
		zap.Int("buffer_size", cap(aw.auditChan)))
}

// processAuditLogs processes audit logs in batches
func (aw *AuditWorker) processAuditLogs() {
	ticker := time.NewTicker(aw.flushTick)
	defer ticker.Stop()

	var batch []AuditLog
	for {
		select {
		case auditLog, ok := <-aw.auditChan:
			if !ok {
				if len(batch) > 0 {
					aw.flushBatch(batch)
				}
				return
			}
			batch = append(batch, auditLog)
			if len(batch) >= aw.batchSize {
				aw.flushBatch(batch)
				batch = nil
			}
		case <-ticker.C:
			if len(batch) > 0 {
				aw.flushBatch(batch)
				batch = nil
			}
		}
	}
}

func (aw *AuditWorker) flushBatch(batch []AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := aw.store.InsertAuditLogs(ctx, batch); err != nil {
		observability.AuditEvents.WithLabelValues("failed").Add(float64(len(batch)))
		aw.logger.Error("failed to insert audit log batch",
			zap.Error(err),
			zap.Int("batch_size", len(batch)))
		return
	}
	observability.AuditEvents.WithLabelValues("written").Add(float64(len(batch)))
	aw.logger.Debug("audit log batch inserted", zap.Int("batch_size", len(batch)))
}

// Log enqueues an entry without blocking; when the buffer is full it is written synchronously
func (aw *AuditWorker) Log(ctx context.Context, action, resource, resourceID string, oldValue, newValue interface{}, metadata map[string]string) error {
	if aw == nil {
		return nil
	}

	auditCtx := AuditContextFrom(ctx)
	entry := AuditLog{
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		OldValue:   oldValue,
		NewValue:   newValue,
		UserID:     auditCtx.UserID,
		IPAddress:  auditCtx.IPAddress,
		UserAgent:  auditCtx.UserAgent,
		RequestID:  auditCtx.RequestID,
		Timestamp:  time.Now().UTC(),
		Metadata:   metadata,
	}

	aw.mu.RLock()
	defer aw.mu.RUnlock()
	if aw.stopped {
		return aw.store.InsertAuditLogs(ctx, []AuditLog{entry})
	}

	select {
	case aw.auditChan <- entry:
		return nil
	default:
		aw.logger.Warn("audit channel full, falling back to synchronous logging",
			zap.String("resource_id", resourceID),
			zap.String("action", action))
		return aw.store.InsertAuditLogs(ctx, []AuditLog{entry})
	}
}

// Stop drains the buffer and waits for the workers
func (aw *AuditWorker) Stop() {
	if aw == nil {
		return
	}
	aw.mu.Lock()
	if aw.stopped {
		aw.mu.Unlock()
		return
	}
	aw.stopped = true
	close(aw.auditChan)
	aw.mu.Unlock()
	aw.wg.Wait()
}

// Stats returns current audit worker statistics
func (aw *AuditWorker) Stats() map[string]interface{} {
	if aw == nil {
		return map[string]interface{}{
			"status": "not_initialized",
		}
	}
	status := "running"
	aw.mu.Lock()
	if aw.stopped {
		status = "stopped"
	}
	aw.mu.Unlock()
	return map[string]interface{}{
		"status":           status,
		"workers":          aw.workers,
		"buffer_capacity":  cap(aw.auditChan),
		"buffer_usage":     len(aw.auditChan),
		"buffer_available": cap(aw.auditChan) - len(aw.auditChan),
	}
}

// GetAuditContextFromGin extracts audit context from Gin context
func GetAuditContextFromGin(c *gin.Context) AuditContext {
	userID := c.GetString("reviewer")
	requestID := c.GetString("request_id")
	if requestID == "" {
		requestID = c.GetHeader("X-Request-ID")
	}
	return AuditContext{
		UserID:    userID,
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
		RequestID: requestID,
	}
}

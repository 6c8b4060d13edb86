package utils

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAuditStore struct {
	mu   sync.Mutex
	logs []AuditLog
	err  error
}

func (s *recordingAuditStore) InsertAuditLogs(_ context.Context, logs []AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.logs = append(s.logs, logs...)
	return nil
}

func (s *recordingAuditStore) snapshot() []AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditLog(nil), s.logs...)
}

func TestAuditWorker_FlushesOnStop(t *testing.T) {
	store := &recordingAuditStore{}
	worker := NewAuditWorker(store, 2, 10)

	ctx := WithAuditContext(context.Background(), AuditContext{UserID: "reviewer-1", RequestID: "req-1"})
	for i := 0; i < 5; i++ {
		require.NoError(t, worker.Log(ctx, AuditActionTransition, AuditResourceProvider, "p1", "New", "ValidationInProgress", nil))
	}
	worker.Stop()

	logs := store.snapshot()
	require.Len(t, logs, 5)
	for _, l := range logs {
		assert.Equal(t, "reviewer-1", l.UserID)
		assert.Equal(t, "req-1", l.RequestID)
		assert.Equal(t, AuditResourceProvider, l.Resource)
		assert.False(t, l.Timestamp.IsZero())
	}
}

func TestAuditWorker_FlushesOnTick(t *testing.T) {
	store := &recordingAuditStore{}
	worker := NewAuditWorker(store, 1, 10)
	defer worker.Stop()

	require.NoError(t, worker.Log(context.Background(), AuditActionDecision, AuditResourceDecision, "p1", nil, "approve", nil))

	assert.Eventually(t, func() bool { return len(store.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestAuditWorker_AfterStopWritesSynchronously(t *testing.T) {
	store := &recordingAuditStore{}
	worker := NewAuditWorker(store, 1, 1)
	worker.Stop()
	worker.Stop()

	require.NoError(t, worker.Log(context.Background(), AuditActionCreate, AuditResourceProvider, "p2", nil, nil, nil))
	assert.Len(t, store.snapshot(), 1)
}

func TestAuditWorker_SyncErrorSurfaces(t *testing.T) {
	store := &recordingAuditStore{err: errors.New("mongo down")}
	worker := NewAuditWorker(store, 1, 1)
	worker.Stop()

	err := worker.Log(context.Background(), AuditActionCreate, AuditResourceProvider, "p3", nil, nil, nil)
	assert.Error(t, err)
}

func TestAuditWorker_Nil(t *testing.T) {
	var worker *AuditWorker
	assert.NoError(t, worker.Log(context.Background(), AuditActionCreate, AuditResourceProvider, "p", nil, nil, nil))
	assert.Equal(t, "not_initialized", worker.Stats()["status"])
	worker.Stop()
}

func TestAuditWorker_Stats(t *testing.T) {
	worker := NewAuditWorker(&recordingAuditStore{}, 3, 50)
	defer worker.Stop()

	stats := worker.Stats()
	assert.Equal(t, "running", stats["status"])
	assert.Equal(t, 3, stats["workers"])
	assert.Equal(t, 50, stats["buffer_capacity"])

	worker.Stop()
	assert.Equal(t, "stopped", worker.Stats()["status"])
}

func TestGetAuditContextFromGin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/v1/providers/p1/decision", nil)
	c.Request.Header.Set("User-Agent", "test-agent")
	c.Request.Header.Set("X-Request-ID", "req-42")
	c.Set("reviewer", "dr.jones")

	auditCtx := GetAuditContextFromGin(c)
	assert.Equal(t, "dr.jones", auditCtx.UserID)
	assert.Equal(t, "req-42", auditCtx.RequestID)
	assert.Equal(t, "test-agent", auditCtx.UserAgent)
}

func TestAuditContextFrom_Missing(t *testing.T) {
	assert.Equal(t, AuditContext{}, AuditContextFrom(context.Background()))
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/logging"
	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// resultWriteTimeout bounds the write of a definitive outcome
const resultWriteTimeout = 10 * time.Second

// VerificationSink receives definitive check outcomes
type VerificationSink interface {
	RecordVerification(ctx context.Context, id string, check models.CheckType, record models.VerificationStatus) (*models.Provider, error)
}

type providerReader interface {
	Get(ctx context.Context, id string) (*models.Provider, error)
}

// DispatchResult is the single outcome delivered for a dispatched check.
// Err is set when no definitive record was written; the stored record then stays pending.
type DispatchResult struct {
	ProviderID string
	Check      models.CheckType
	Record     models.VerificationStatus
	Err        error
}

// DispatcherConfig sizes the worker pool
type DispatcherConfig struct {
	Workers        int
	QueueSize      int
	DefaultTimeout time.Duration
	Timeouts       map[models.CheckType]time.Duration
	RatePerSecond  float64
}

// DispatcherStats tracks queue activity
type DispatcherStats struct {
	JobsEnqueued  int64 `json:"jobs_enqueued"`
	JobsVerified  int64 `json:"jobs_verified"`
	JobsFailed    int64 `json:"jobs_failed"`
	JobsTimedOut  int64 `json:"jobs_timed_out"`
	JobsCancelled int64 `json:"jobs_cancelled"`
	JobsErrored   int64 `json:"jobs_errored"`
	QueueSize     int   `json:"queue_size"`
	InFlight      int   `json:"in_flight"`
	Workers       int   `json:"workers"`
}

type jobKey struct {
	providerID string
	check      models.CheckType
}

type dispatchJob struct {
	key        jobKey
	ctx        context.Context
	cancel     context.CancelFunc
	results    chan DispatchResult
	enqueuedAt time.Time
}

// VerificationDispatcher runs checks on a bounded worker pool. At most one job per
// provider and check is in flight at a time.
type VerificationDispatcher struct {
	providers providerReader
	verifiers map[models.CheckType]Verifier
	fallback  Verifier
	cfg       DispatcherConfig
	limiters  map[models.CheckType]*rate.Limiter
	logger    *logging.SafeLogger

	queue    chan *dispatchJob
	inflight map[jobKey]*dispatchJob
	sink     VerificationSink
	stats    DispatcherStats
	running  bool
	stopped  bool
	mu       sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewVerificationDispatcher creates a stopped dispatcher. fallback answers checks that
// have no dedicated verifier.
func NewVerificationDispatcher(providers providerReader, verifiers map[models.CheckType]Verifier, fallback Verifier, cfg DispatcherConfig, logger *logging.SafeLogger) *VerificationDispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Logger
	}

	limiters := make(map[models.CheckType]*rate.Limiter, len(models.AllCheckTypes))
	for _, c := range models.AllCheckTypes {
		limit, burst := rate.Inf, 1
		if cfg.RatePerSecond > 0 {
			limit = rate.Limit(cfg.RatePerSecond)
			if b := int(cfg.RatePerSecond); b > burst {
				burst = b
			}
		}
		limiters[c] = rate.NewLimiter(limit, burst)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &VerificationDispatcher{
		providers: providers,
		verifiers: verifiers,
		fallback:  fallback,
		cfg:       cfg,
		limiters:  limiters,
		logger:    logger.Named("verification_dispatcher"),
		queue:     make(chan *dispatchJob, cfg.QueueSize),
		inflight:  make(map[jobKey]*dispatchJob),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start attaches the sink and launches the workers
func (d *VerificationDispatcher) Start(sink VerificationSink) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running || d.stopped {
		return
	}
	d.sink = sink
	d.running = true
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Stop cancels every queued and running job and waits for the workers
func (d *VerificationDispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()

	for {
		select {
		case job := <-d.queue:
			observability.VerificationQueueDepth.Dec()
			d.finish(job, DispatchResult{ProviderID: job.key.providerID, Check: job.key.check, Err: context.Canceled}, "cancelled")
		default:
			return
		}
	}
}

// Dispatch enqueues a check. The caller must already have marked the record pending.
func (d *VerificationDispatcher) Dispatch(_ context.Context, providerID string, check models.CheckType) (<-chan DispatchResult, error) {
	if _, err := models.ParseCheckType(string(check)); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running || d.stopped {
		return nil, models.ErrDispatcherStopped
	}
	key := jobKey{providerID: providerID, check: check}
	if _, busy := d.inflight[key]; busy {
		return nil, fmt.Errorf("%w: %s for provider %s", models.ErrCheckInFlight, check, providerID)
	}

	ctx, cancel := context.WithCancel(d.ctx)
	job := &dispatchJob{
		key:        key,
		ctx:        ctx,
		cancel:     cancel,
		results:    make(chan DispatchResult, 1),
		enqueuedAt: time.Now(),
	}

	select {
	case d.queue <- job:
	default:
		cancel()
		observability.VerificationDispatches.WithLabelValues(string(check), "rejected").Inc()
		return nil, models.ErrQueueFull
	}

	d.inflight[key] = job
	d.stats.JobsEnqueued++
	observability.VerificationQueueDepth.Inc()
	return job.results, nil
}

// Cancel aborts the in-flight job for providerID and check. The record stays pending.
func (d *VerificationDispatcher) Cancel(providerID string, check models.CheckType) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := jobKey{providerID: providerID, check: check}
	job, ok := d.inflight[key]
	if !ok {
		return false
	}
	delete(d.inflight, key)
	job.cancel()
	return true
}

// InFlight reports whether a job for providerID and check is queued or running
func (d *VerificationDispatcher) InFlight(providerID string, check models.CheckType) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inflight[jobKey{providerID: providerID, check: check}]
	return ok
}

// GetStats returns the current counters
func (d *VerificationDispatcher) GetStats() DispatcherStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := d.stats
	stats.QueueSize = len(d.queue)
	stats.InFlight = len(d.inflight)
	stats.Workers = d.cfg.Workers
	return stats
}

// IsHealthy reports a running dispatcher whose queue is not saturated
func (d *VerificationDispatcher) IsHealthy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running && !d.stopped && len(d.queue) < cap(d.queue)
}

func (d *VerificationDispatcher) worker(id int) {
	defer d.wg.Done()

	for {
		select {
		case job := <-d.queue:
			observability.VerificationQueueDepth.Dec()
			observability.VerificationInFlight.Inc()
			d.process(job, id)
			observability.VerificationInFlight.Dec()
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *VerificationDispatcher) timeoutFor(check models.CheckType) time.Duration {
	if t, ok := d.cfg.Timeouts[check]; ok && t > 0 {
		return t
	}
	return d.cfg.DefaultTimeout
}

func (d *VerificationDispatcher) verifierFor(check models.CheckType) Verifier {
	if v, ok := d.verifiers[check]; ok && v != nil {
		return v
	}
	return d.fallback
}

func (d *VerificationDispatcher) process(job *dispatchJob, workerID int) {
	key := job.key
	result := DispatchResult{ProviderID: key.providerID, Check: key.check}
	logger := d.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("provider_id", key.providerID),
		zap.String("check", string(key.check)))

	if err := job.ctx.Err(); err != nil {
		result.Err = context.Canceled
		d.finish(job, result, "cancelled")
		return
	}
	if err := d.limiters[key.check].Wait(job.ctx); err != nil {
		result.Err = context.Canceled
		d.finish(job, result, "cancelled")
		return
	}

	verifier := d.verifierFor(key.check)
	if verifier == nil {
		result.Err = fmt.Errorf("no verifier registered for %s", key.check)
		logger.Error("verification skipped", zap.Error(result.Err))
		d.finish(job, result, "error")
		return
	}

	p, err := d.providers.Get(job.ctx, key.providerID)
	if err != nil {
		result.Err = fmt.Errorf("failed to load provider: %w", err)
		d.finish(job, result, "error")
		return
	}

	timeout := d.timeoutFor(key.check)
	checkCtx, cancel := context.WithTimeout(job.ctx, timeout)
	start := time.Now()
	record, err := verifier.Verify(checkCtx, p, key.check)
	// a definitive record returned at the deadline still counts
	timedOut := err != nil && errors.Is(checkCtx.Err(), context.DeadlineExceeded)
	cancel()
	observability.VerificationDuration.WithLabelValues(string(key.check)).Observe(time.Since(start).Seconds())

	switch {
	case job.ctx.Err() != nil:
		result.Err = context.Canceled
		logger.Info("verification cancelled")
		d.finish(job, result, "cancelled")
		return
	case timedOut:
		result.Err = &models.ExternalCheckTimeoutError{ProviderID: key.providerID, Check: key.check, Timeout: timeout}
		logger.Warn("verification timed out", zap.Duration("timeout", timeout))
		d.finish(job, result, "timeout")
		return
	case err != nil:
		result.Err = err
		logger.Error("verification failed to complete",
			zap.Bool("retryable", IsRetryableVerifierError(err)),
			zap.Error(err))
		d.finish(job, result, "error")
		return
	case !record.Status.IsDefinitive():
		result.Record = record
		result.Err = fmt.Errorf("verifier returned non-definitive status %q", record.Status)
		d.finish(job, result, "pending")
		return
	}

	writeCtx, cancelWrite := context.WithTimeout(context.WithoutCancel(job.ctx), resultWriteTimeout)
	defer cancelWrite()
	if _, err := d.sink.RecordVerification(writeCtx, key.providerID, key.check, record); err != nil {
		result.Err = fmt.Errorf("failed to record verification: %w", err)
		logger.Error("verification result not recorded", zap.Error(err))
		d.finish(job, result, "error")
		return
	}

	result.Record = record
	logger.Info("verification recorded", zap.String("status", string(record.Status)))
	d.finish(job, result, string(record.Status))
}

// finish releases the job and delivers its single result
func (d *VerificationDispatcher) finish(job *dispatchJob, result DispatchResult, outcome string) {
	d.mu.Lock()
	if current, ok := d.inflight[job.key]; ok && current == job {
		delete(d.inflight, job.key)
	}
	switch outcome {
	case string(models.CheckVerified):
		d.stats.JobsVerified++
	case string(models.CheckFailed):
		d.stats.JobsFailed++
	case "timeout":
		d.stats.JobsTimedOut++
	case "cancelled":
		d.stats.JobsCancelled++
	default:
		d.stats.JobsErrored++
	}
	d.mu.Unlock()

	job.cancel()
	observability.VerificationDispatches.WithLabelValues(string(job.key.check), outcome).Inc()
	job.results <- result
	close(job.results)
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "credentialing_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"path", "method", "status"},
	)

	// ActiveConnections tracks active connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "credentialing_active_connections",
			Help: "Number of active connections",
		},
	)

	// DatabaseOperations tracks provider store operations
	DatabaseOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credentialing_database_operations_total",
			Help: "Number of provider store operations",
		},
		[]string{"operation", "status"},
	)

	// StoreConflicts counts optimistic version conflicts seen on save
	StoreConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credentialing_store_conflicts_total",
			Help: "Number of optimistic concurrency conflicts",
		},
		[]string{"outcome"},
	)

	// LockWaitDuration tracks time spent waiting for the per-provider write lock
	LockWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "credentialing_lock_wait_seconds",
			Help:    "Time spent acquiring the per-provider write lock",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"backend"},
	)

	// LifecycleTransitions counts applied lifecycle transitions
	LifecycleTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credentialing_lifecycle_transitions_total",
			Help: "Number of lifecycle transitions applied",
		},
		[]string{"from", "to", "event"},
	)

	// InvalidTransitions counts rejected lifecycle events
	InvalidTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credentialing_invalid_transitions_total",
			Help: "Number of lifecycle events rejected as invalid",
		},
		[]string{"state", "event"},
	)

	// ValidationRuns counts validation engine passes by outcome
	ValidationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credentialing_validation_runs_total",
			Help: "Number of validation engine passes",
		},
		[]string{"outcome"},
	)

	// VerificationDispatches counts dispatched checks by result
	VerificationDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credentialing_verification_dispatches_total",
			Help: "Number of verification checks dispatched, by result",
		},
		[]string{"check", "result"},
	)

	// VerificationDuration tracks how long external checks take
	VerificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "credentialing_verification_duration_seconds",
			Help:    "Duration of external verification checks",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"check"},
	)

	// VerificationQueueDepth tracks queued verification jobs
	VerificationQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "credentialing_verification_queue_depth",
			Help: "Number of verification jobs waiting for a worker",
		},
	)

	// VerificationInFlight tracks jobs currently held by workers
	VerificationInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "credentialing_verification_in_flight",
			Help: "Number of verification checks currently running",
		},
	)

	// CommitteeDecisions counts committee decisions by outcome
	CommitteeDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credentialing_committee_decisions_total",
			Help: "Number of committee decisions recorded",
		},
		[]string{"decision"},
	)

	// IntakeRows counts ingested roster rows
	IntakeRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credentialing_intake_rows_total",
			Help: "Number of intake rows processed",
		},
		[]string{"source", "result"},
	)

	// NotificationsSent counts notifications by sink and result
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credentialing_notifications_total",
			Help: "Number of notifications handed to sinks",
		},
		[]string{"sink", "result"},
	)

	// AuditEvents counts audit log writes
	AuditEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credentialing_audit_events_total",
			Help: "Number of audit events written",
		},
		[]string{"result"},
	)

	// DegradedModeActive is 1 while the PSV poller is paused
	DegradedModeActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "credentialing_degraded_mode_active",
			Help: "Whether degraded mode is active (1) or not (0)",
		},
	)
)

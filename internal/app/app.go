// Package app wires the credentialing core to its backends. Both binaries build
// their process from it so the API and the PSV worker share one configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/config"
	"github.com/prefeitura-rio/app-credentialing/internal/logging"
	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/services"
	"github.com/prefeitura-rio/app-credentialing/internal/utils"
	"github.com/prefeitura-rio/app-credentialing/internal/utils/httpclient"
	"go.uber.org/zap"
)

// redisMemoryThreshold is the used-memory percentage that puts the system in degraded mode
const redisMemoryThreshold = 90.0

// App holds the long-lived components of one process
type App struct {
	Service    *services.CredentialingService
	Intake     *services.IntakeService
	Dispatcher *services.VerificationDispatcher
	Degraded   *services.DegradedMode
	Audit      *utils.AuditWorker
	// HealthChecks are keyed by dependency name
	HealthChecks map[string]services.HealthCheck

	logger   *logging.SafeLogger
	amqp     *services.AMQPNotifier
	httpPool *httpclient.Pool
}

// Build connects the configured backends and starts the verification dispatcher
func Build(cfg *config.Config, logger *logging.SafeLogger) (*App, error) {
	a := &App{
		logger:       logger,
		HealthChecks: map[string]services.HealthCheck{},
		Degraded:     services.NewDegradedMode(30*time.Second, logger),
	}

	store, err := a.buildStore(cfg)
	if err != nil {
		return nil, err
	}

	locker, err := a.buildLocker(cfg)
	if err != nil {
		return nil, err
	}

	notifier, err := a.buildNotifier(cfg)
	if err != nil {
		return nil, err
	}

	var auditor services.Auditor
	if cfg.AuditLogsEnabled && config.MongoDB != nil {
		a.Audit = utils.NewAuditWorker(
			utils.NewMongoAuditStore(config.MongoDB.Collection(cfg.AuditLogsCollection)),
			cfg.AuditWorkerCount,
			cfg.AuditBufferSize,
		)
		auditor = a.Audit
	}

	a.Dispatcher = services.NewVerificationDispatcher(store, a.buildVerifiers(cfg), services.NewLocalVerifier(nil), services.DispatcherConfig{
		Workers:        cfg.VerificationWorkers,
		QueueSize:      cfg.VerificationQueueSize,
		DefaultTimeout: cfg.VerificationTimeout,
		Timeouts:       checkTimeouts(cfg),
		RatePerSecond:  cfg.VerificationRatePerSecond,
	}, logger)
	a.HealthChecks["dispatcher"] = func(context.Context) error {
		if !a.Dispatcher.IsHealthy() {
			return errors.New("verification dispatcher is not running")
		}
		return nil
	}

	a.Service = services.NewCredentialingService(services.CredentialingDeps{
		Store:      store,
		Locker:     locker,
		Notifier:   notifier,
		Dispatcher: a.Dispatcher,
		Auditor:    auditor,
		MaxRetries: cfg.ConflictMaxRetries,
		Logger:     logger,
	})
	a.Intake = services.NewIntakeService(a.Service, logger)
	a.Dispatcher.Start(a.Service)
	return a, nil
}

func (a *App) buildStore(cfg *config.Config) (services.ProviderStore, error) {
	if cfg.StoreBackend == config.BackendMemory {
		a.logger.Warn("using in-memory provider store, data is lost on restart")
		return services.NewMemoryProviderStore(), nil
	}

	if err := config.InitMongoDB(); err != nil {
		return nil, err
	}
	check := services.MongoPingCheck(config.MongoDB.Client())
	a.HealthChecks["mongodb"] = check
	a.Degraded.AddCheck("mongodb unreachable", check)
	return services.NewMongoProviderStore(config.MongoDB.Collection(cfg.ProviderCollection), a.logger), nil
}

func (a *App) buildLocker(cfg *config.Config) (services.ProviderLocker, error) {
	if cfg.LockBackend != config.BackendRedis {
		return services.NewKeyedLocker(), nil
	}

	if err := config.InitRedis(); err != nil {
		return nil, err
	}
	a.HealthChecks["redis"] = func(ctx context.Context) error { return config.Redis.Ping(ctx).Err() }
	a.Degraded.AddCheck("redis memory pressure", services.RedisMemoryCheck(config.Redis, redisMemoryThreshold))
	return services.NewRedisLocker(config.Redis, cfg.LockTTL), nil
}

func (a *App) buildNotifier(cfg *config.Config) (services.Notifier, error) {
	sinks := []services.Notifier{services.NewLogNotifier(a.logger)}
	if cfg.RabbitMQURL == "" {
		return services.NewFanoutNotifier(sinks...), nil
	}

	if err := config.InitRabbitMQ(); err != nil {
		return nil, err
	}
	n, err := services.NewAMQPNotifier(config.RabbitMQ, cfg.NotificationExchange, cfg.NotificationRoutingKey, cfg.NotificationBufferSize, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create amqp notifier: %w", err)
	}
	a.amqp = n
	a.HealthChecks["rabbitmq"] = func(context.Context) error {
		if config.RabbitMQ.IsClosed() {
			return errors.New("rabbitmq connection closed")
		}
		return nil
	}
	return services.NewFanoutNotifier(append(sinks, n)...), nil
}

// buildVerifiers routes every check to the primary-source gateway when one is configured
func (a *App) buildVerifiers(cfg *config.Config) map[models.CheckType]services.Verifier {
	verifiers := map[models.CheckType]services.Verifier{}
	if cfg.VerificationGatewayURL == "" {
		return verifiers
	}

	a.httpPool = httpclient.NewPool(cfg.VerificationWorkers, cfg.VerificationTimeout)
	gateway := services.NewHTTPVerifier(cfg.VerificationGatewayURL, a.httpPool, nil)
	for _, c := range models.AllCheckTypes {
		verifiers[c] = gateway
	}
	a.logger.Info("verification gateway configured", zap.String("url", cfg.VerificationGatewayURL))
	return verifiers
}

func checkTimeouts(cfg *config.Config) map[models.CheckType]time.Duration {
	out := make(map[models.CheckType]time.Duration, len(models.AllCheckTypes))
	for _, c := range models.AllCheckTypes {
		out[c] = cfg.TimeoutFor(string(c))
	}
	return out
}

// Close stops background workers and closes connections
func (a *App) Close(ctx context.Context) {
	a.Dispatcher.Stop()
	stats := a.Dispatcher.GetStats()
	a.logger.Info("verification dispatcher stopped",
		zap.Int64("enqueued", stats.JobsEnqueued),
		zap.Int64("verified", stats.JobsVerified),
		zap.Int64("failed", stats.JobsFailed),
		zap.Int64("timed_out", stats.JobsTimedOut),
		zap.Int64("cancelled", stats.JobsCancelled))

	a.Audit.Stop()
	if a.Audit != nil {
		a.logger.Info("audit worker stopped", zap.Any("stats", a.Audit.Stats()))
	}

	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			a.logger.Warn("failed to close amqp notifier", zap.Error(err))
		}
	}
	if a.httpPool != nil {
		a.httpPool.Close()
	}
	if config.RabbitMQ != nil {
		_ = config.RabbitMQ.Close()
	}
	if config.Redis != nil {
		if err := config.Redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if config.MongoDB != nil {
		if err := config.MongoDB.Client().Disconnect(ctx); err != nil {
			a.logger.Warn("failed to disconnect mongodb", zap.Error(err))
		}
	}
}

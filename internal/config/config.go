package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store and lock backends
const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
)

// Config holds all configuration values
type Config struct {
	// Server configuration
	Port        int    `json:"port"`
	Environment string `json:"environment"`

	// MongoDB configuration
	MongoURI      string `json:"mongo_uri"`
	MongoDatabase string `json:"mongo_database"`

	// Collection names
	ProviderCollection  string `json:"mongo_provider_collection"`
	AuditLogsCollection string `json:"mongo_audit_logs_collection"`

	// Backends
	StoreBackend string `json:"store_backend"`
	LockBackend  string `json:"lock_backend"`

	// Redis configuration
	RedisURI      string        `json:"redis_uri"`
	RedisPassword string        `json:"redis_password"`
	RedisDB       int           `json:"redis_db"`
	LockTTL       time.Duration `json:"lock_ttl"`

	// Write serialization
	ConflictMaxRetries int `json:"conflict_max_retries"`

	// Verification dispatcher configuration
	VerificationWorkers       int                      `json:"verification_workers"`
	VerificationQueueSize     int                      `json:"verification_queue_size"`
	VerificationTimeout       time.Duration            `json:"verification_timeout"`
	VerificationCheckTimeouts map[string]time.Duration `json:"verification_check_timeouts"`
	VerificationRatePerSecond float64                  `json:"verification_rate_per_second"`
	VerificationGatewayURL    string                   `json:"verification_gateway_url"`

	// PSV poller configuration
	PSVPollInterval time.Duration `json:"psv_poll_interval"`
	PSVStaleAfter   time.Duration `json:"psv_stale_after"`

	// Notification configuration
	RabbitMQURL            string `json:"rabbitmq_url"`
	NotificationExchange   string `json:"notification_exchange"`
	NotificationRoutingKey string `json:"notification_routing_key"`
	NotificationBufferSize int    `json:"notification_buffer_size"`

	// Audit configuration
	AuditLogsEnabled bool `json:"audit_logs_enabled"`
	AuditWorkerCount int  `json:"audit_worker_count"`
	AuditBufferSize  int  `json:"audit_buffer_size"`

	// Tracing configuration
	TracingEnabled  bool   `json:"tracing_enabled"`
	TracingEndpoint string `json:"tracing_endpoint"`

	// Roles
	AdminRole    string `json:"admin_role"`
	ReviewerRole string `json:"reviewer_role"`
	// VerifierRole is held by the verification gateway posting check outcomes
	VerifierRole string `json:"verifier_role"`
}

var (
	AppConfig *Config
)

// checkTypes lists the verification domains with per-check timeout overrides
var checkTypes = []string{"licenses", "deaNpi", "education", "malpractice", "workHistory", "sanctions"}

// LoadConfig loads configuration from environment variables, reading a local .env first when present
func LoadConfig() error {
	// Missing .env is fine outside local development
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnvOrDefault("PORT", "8080"))
	if err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	if err != nil {
		return fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	lockTTL, err := time.ParseDuration(getEnvOrDefault("LOCK_TTL", "30s"))
	if err != nil {
		return fmt.Errorf("invalid LOCK_TTL: %w", err)
	}

	conflictRetries, err := strconv.Atoi(getEnvOrDefault("CONFLICT_MAX_RETRIES", "3"))
	if err != nil {
		return fmt.Errorf("invalid CONFLICT_MAX_RETRIES: %w", err)
	}
	if conflictRetries < 0 {
		return fmt.Errorf("invalid CONFLICT_MAX_RETRIES: must not be negative")
	}

	workers, err := strconv.Atoi(getEnvOrDefault("VERIFICATION_WORKERS", "8"))
	if err != nil || workers <= 0 {
		return fmt.Errorf("invalid VERIFICATION_WORKERS: %q", os.Getenv("VERIFICATION_WORKERS"))
	}

	queueSize, err := strconv.Atoi(getEnvOrDefault("VERIFICATION_QUEUE_SIZE", "1000"))
	if err != nil || queueSize <= 0 {
		return fmt.Errorf("invalid VERIFICATION_QUEUE_SIZE: %q", os.Getenv("VERIFICATION_QUEUE_SIZE"))
	}

	verificationTimeout, err := time.ParseDuration(getEnvOrDefault("VERIFICATION_TIMEOUT", "2m"))
	if err != nil {
		return fmt.Errorf("invalid VERIFICATION_TIMEOUT: %w", err)
	}

	checkTimeouts := make(map[string]time.Duration)
	for _, check := range checkTypes {
		key := "VERIFICATION_TIMEOUT_" + strings.ToUpper(check)
		raw, ok := os.LookupEnv(key)
		if !ok || raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		checkTimeouts[check] = d
	}

	ratePerSecond, err := strconv.ParseFloat(getEnvOrDefault("VERIFICATION_RATE_PER_SECOND", "5"), 64)
	if err != nil {
		return fmt.Errorf("invalid VERIFICATION_RATE_PER_SECOND: %w", err)
	}

	pollInterval, err := time.ParseDuration(getEnvOrDefault("PSV_POLL_INTERVAL", "1m"))
	if err != nil {
		return fmt.Errorf("invalid PSV_POLL_INTERVAL: %w", err)
	}

	staleAfter, err := time.ParseDuration(getEnvOrDefault("PSV_STALE_AFTER", "30m"))
	if err != nil {
		return fmt.Errorf("invalid PSV_STALE_AFTER: %w", err)
	}

	notificationBuffer, err := strconv.Atoi(getEnvOrDefault("NOTIFICATION_BUFFER_SIZE", "256"))
	if err != nil {
		return fmt.Errorf("invalid NOTIFICATION_BUFFER_SIZE: %w", err)
	}

	auditEnabled, err := strconv.ParseBool(getEnvOrDefault("AUDIT_LOGS_ENABLED", "true"))
	if err != nil {
		return fmt.Errorf("invalid AUDIT_LOGS_ENABLED: %w", err)
	}

	auditWorkers, err := strconv.Atoi(getEnvOrDefault("AUDIT_WORKER_COUNT", "2"))
	if err != nil {
		return fmt.Errorf("invalid AUDIT_WORKER_COUNT: %w", err)
	}

	auditBuffer, err := strconv.Atoi(getEnvOrDefault("AUDIT_BUFFER_SIZE", "1000"))
	if err != nil {
		return fmt.Errorf("invalid AUDIT_BUFFER_SIZE: %w", err)
	}

	tracingEnabled, err := strconv.ParseBool(getEnvOrDefault("TRACING_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("invalid TRACING_ENABLED: %w", err)
	}

	storeBackend := getEnvOrDefault("STORE_BACKEND", BackendMongo)
	if storeBackend != BackendMongo && storeBackend != BackendMemory {
		return fmt.Errorf("invalid STORE_BACKEND: %q", storeBackend)
	}

	lockBackend := getEnvOrDefault("LOCK_BACKEND", BackendMemory)
	if lockBackend != BackendMemory && lockBackend != BackendRedis {
		return fmt.Errorf("invalid LOCK_BACKEND: %q", lockBackend)
	}

	AppConfig = &Config{
		// Server configuration
		Port:        port,
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),

		// MongoDB configuration
		MongoURI:      getEnvOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnvOrDefault("MONGODB_DATABASE", "credentialing"),

		// Collection names
		ProviderCollection:  getEnvOrDefault("MONGODB_PROVIDER_COLLECTION", "providers"),
		AuditLogsCollection: getEnvOrDefault("MONGODB_AUDIT_LOGS_COLLECTION", "audit_logs"),

		StoreBackend: storeBackend,
		LockBackend:  lockBackend,

		// Redis configuration
		RedisURI:      getEnvOrDefault("REDIS_URI", "localhost:6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,
		LockTTL:       lockTTL,

		ConflictMaxRetries: conflictRetries,

		VerificationWorkers:       workers,
		VerificationQueueSize:     queueSize,
		VerificationTimeout:       verificationTimeout,
		VerificationCheckTimeouts: checkTimeouts,
		VerificationRatePerSecond: ratePerSecond,
		VerificationGatewayURL:    getEnvOrDefault("VERIFICATION_GATEWAY_URL", ""),

		PSVPollInterval: pollInterval,
		PSVStaleAfter:   staleAfter,

		RabbitMQURL:            getEnvOrDefault("RABBITMQ_URL", ""),
		NotificationExchange:   getEnvOrDefault("NOTIFICATION_EXCHANGE", "credentialing.notifications"),
		NotificationRoutingKey: getEnvOrDefault("NOTIFICATION_ROUTING_KEY", "provider.notification"),
		NotificationBufferSize: notificationBuffer,

		AuditLogsEnabled: auditEnabled,
		AuditWorkerCount: auditWorkers,
		AuditBufferSize:  auditBuffer,

		TracingEnabled:  tracingEnabled,
		TracingEndpoint: getEnvOrDefault("TRACING_ENDPOINT", "localhost:4317"),

		AdminRole:    getEnvOrDefault("ADMIN_ROLE", "credentialing:admin"),
		ReviewerRole: getEnvOrDefault("REVIEWER_ROLE", "credentialing:reviewer"),
		VerifierRole: getEnvOrDefault("VERIFIER_ROLE", "credentialing:verifier"),
	}

	return nil
}

// TimeoutFor returns the dispatch timeout for a check type, falling back to the default
func (c *Config) TimeoutFor(check string) time.Duration {
	if d, ok := c.VerificationCheckTimeouts[check]; ok && d > 0 {
		return d
	}
	return c.VerificationTimeout
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

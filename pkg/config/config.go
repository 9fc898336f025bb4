package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/pulse/pkg/observability"
	"github.com/platinummonkey/pulse/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Ingestion configuration
	Ingestion IngestionConfig

	// Analytics worker configuration
	Worker WorkerConfig

	// Metric catalog configuration
	Catalog CatalogConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// IngestionConfig drives the periodic fetch cycle.
type IngestionConfig struct {
	// Schedule is a cron expression for the periodic cycle.
	Schedule string
	// ProviderURL is the base URL of the wearable provider API.
	ProviderURL string
	// ProviderToken is the bearer token sent on provider requests.
	// Empty means unauthenticated (local fixture servers).
	ProviderToken string
	// DaysBack is how many trailing days each cycle re-fetches. Recent
	// days are re-fetched on purpose: providers backfill.
	DaysBack int
	// Concurrency bounds parallel fetch units within a cycle.
	Concurrency int
	// UnitTimeout bounds a single fetch+store unit.
	UnitTimeout time.Duration
	// DataTypes overrides the built-in provider data type set when
	// non-empty.
	DataTypes []string
	// TriggerPollInterval is how often the on-demand trigger mailbox is
	// drained between scheduled cycles.
	TriggerPollInterval time.Duration

	// Provider retry policy.
	FetchMaxAttempts int
	FetchBaseDelay   time.Duration
	FetchMaxDelay    time.Duration
}

// WorkerConfig drives the aggregation worker daemon.
type WorkerConfig struct {
	// Workers is the number of concurrent claim loops.
	Workers int
	// PollInterval is the idle sleep between empty claim attempts.
	PollInterval time.Duration
	// JobTimeout bounds a single job's processing time.
	JobTimeout time.Duration
	// LeaseTimeout is how long a running job may go without finishing
	// before it counts as abandoned.
	LeaseTimeout time.Duration
	// RequeueInterval is how often abandoned jobs are swept.
	RequeueInterval time.Duration
	// EnqueueSchedule is a cron expression for periodic job creation.
	EnqueueSchedule string
}

// CatalogConfig locates the metric metadata catalog.
type CatalogConfig struct {
	// Path of a YAML file overriding the built-in catalog. Empty means
	// built-ins only.
	Path string
	// Watch reloads the file on change.
	Watch bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Ingestion:     loadIngestionConfig(),
		Worker:        loadWorkerConfig(),
		Catalog:       loadCatalogConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("PULSE_HOST", "0.0.0.0"),
		Port:            getEnv("PULSE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("PULSE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("PULSE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("PULSE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("PULSE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("PULSE_HEALTH_PORT", "9090"),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if pgURL := getEnv("PULSE_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("PULSE_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("PULSE_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("PULSE_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	if s3Endpoint := getEnv("PULSE_S3_ENDPOINT", ""); s3Endpoint != "" {
		cfg.S3Endpoint = s3Endpoint
	}
	if s3Region := getEnv("PULSE_S3_REGION", ""); s3Region != "" {
		cfg.S3Region = s3Region
	}
	if s3Bucket := getEnv("PULSE_S3_BUCKET", ""); s3Bucket != "" {
		cfg.S3Bucket = s3Bucket
	}
	if s3AccessKey := getEnv("PULSE_S3_ACCESS_KEY", ""); s3AccessKey != "" {
		cfg.S3AccessKey = s3AccessKey
	}
	if s3SecretKey := getEnv("PULSE_S3_SECRET_KEY", ""); s3SecretKey != "" {
		cfg.S3SecretKey = s3SecretKey
	}
	if s3UsePathStyle := getEnv("PULSE_S3_USE_PATH_STYLE", ""); s3UsePathStyle != "" {
		cfg.S3UsePathStyle = strings.ToLower(s3UsePathStyle) == "true"
	}

	if redisURL := getEnv("PULSE_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("PULSE_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("PULSE_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("PULSE_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("PULSE_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	if cacheEnabled := getEnv("PULSE_CACHE_ENABLED", ""); cacheEnabled != "" {
		cfg.CacheEnabled = strings.ToLower(cacheEnabled) == "true"
	}
	if l1CacheSize := getEnvInt("PULSE_L1_CACHE_SIZE", 0); l1CacheSize > 0 {
		cfg.L1CacheSize = l1CacheSize
	}

	return cfg
}

// loadIngestionConfig loads ingestion configuration from environment
func loadIngestionConfig() IngestionConfig {
	cfg := IngestionConfig{
		Schedule:            getEnv("PULSE_INGEST_SCHEDULE", "0 * * * *"),
		ProviderURL:         getEnv("PULSE_PROVIDER_URL", "http://localhost:9000"),
		ProviderToken:       getEnv("PULSE_PROVIDER_TOKEN", ""),
		DaysBack:            getEnvInt("PULSE_INGEST_DAYS_BACK", 2),
		Concurrency:         getEnvInt("PULSE_INGEST_CONCURRENCY", 4),
		UnitTimeout:         getEnvDuration("PULSE_INGEST_UNIT_TIMEOUT", 2*time.Minute),
		TriggerPollInterval: getEnvDuration("PULSE_TRIGGER_POLL_INTERVAL", 30*time.Second),
		FetchMaxAttempts:    getEnvInt("PULSE_FETCH_MAX_ATTEMPTS", 3),
		FetchBaseDelay:      getEnvDuration("PULSE_FETCH_BASE_DELAY", 2*time.Second),
		FetchMaxDelay:       getEnvDuration("PULSE_FETCH_MAX_DELAY", time.Minute),
	}
	if raw := getEnv("PULSE_INGEST_DATA_TYPES", ""); raw != "" {
		for _, dt := range strings.Split(raw, ",") {
			if dt = strings.TrimSpace(dt); dt != "" {
				cfg.DataTypes = append(cfg.DataTypes, dt)
			}
		}
	}
	return cfg
}

// loadWorkerConfig loads worker configuration from environment
func loadWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Workers:         getEnvInt("PULSE_WORKERS", 2),
		PollInterval:    getEnvDuration("PULSE_WORKER_POLL_INTERVAL", 5*time.Second),
		JobTimeout:      getEnvDuration("PULSE_JOB_TIMEOUT", 5*time.Minute),
		LeaseTimeout:    getEnvDuration("PULSE_JOB_LEASE_TIMEOUT", 15*time.Minute),
		RequeueInterval: getEnvDuration("PULSE_REQUEUE_INTERVAL", time.Minute),
		EnqueueSchedule: getEnv("PULSE_ENQUEUE_SCHEDULE", "30 */3 * * *"),
	}
}

// loadCatalogConfig loads catalog configuration from environment
func loadCatalogConfig() CatalogConfig {
	return CatalogConfig{
		Path:  getEnv("PULSE_CATALOG_PATH", ""),
		Watch: getEnvBool("PULSE_CATALOG_WATCH", false),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLevel(getEnv("PULSE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("PULSE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("PULSE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("PULSE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("PULSE_OTEL_SERVICE_NAME", "pulse"),
		OTelServiceVersion: getEnv("PULSE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("PULSE_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Ingestion.DaysBack < 1 {
		return fmt.Errorf("ingestion days back must be at least 1")
	}
	if c.Ingestion.Concurrency < 1 {
		return fmt.Errorf("ingestion concurrency must be at least 1")
	}
	if c.Ingestion.ProviderURL == "" {
		return fmt.Errorf("provider URL is required")
	}

	if c.Worker.Workers < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	if c.Worker.LeaseTimeout <= c.Worker.JobTimeout {
		return fmt.Errorf("job lease timeout must exceed job timeout")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

package config

import "time"

// Config is the root configuration structure for prognos.
// It contains the prediction service settings, the cloud runtime connection,
// prediction storage, telemetry, and retention.
type Config struct {
	// Service contains the backend selection and prediction settings that are
	// shared by every backend type.
	Service ServiceConfig `yaml:"service"`

	// Cloud contains connection settings for the remote model runtime.
	// Only used when Service.ServiceType is "cloud".
	Cloud CloudConfig `yaml:"cloud"`

	// Store contains configuration for durable prediction storage.
	Store StoreConfig `yaml:"store"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Retention contains configuration for pruning stored predictions.
	Retention RetentionConfig `yaml:"retention"`

	// Secrets contains configuration for resolving ${secret:name}
	// references in credential fields.
	Secrets SecretsConfig `yaml:"secrets"`
}

// ServiceConfig contains the prediction service settings.
type ServiceConfig struct {
	// ServiceType selects the backend implementation.
	// Options: "mock", "cloud"
	// Default: "mock"
	ServiceType string `yaml:"service_type"`

	// PrivacyLevel selects the PHI detector tier applied to every request.
	// Options: "standard", "enhanced", "maximum"
	// Default: "standard"
	PrivacyLevel string `yaml:"privacy_level"`

	// Region is the cloud region of the model runtime.
	// Required when ServiceType is "cloud".
	Region string `yaml:"region"`

	// PredictionsStoreName names the table, container or bucket used to
	// persist raw prediction results. Empty disables cloud persistence.
	PredictionsStoreName string `yaml:"predictions_store_name"`

	// DigitalTwinFunctionName is the remote function that receives digital
	// twin integrations. Empty disables integration on the cloud backend.
	DigitalTwinFunctionName string `yaml:"digital_twin_function_name"`

	// ModelEndpoints maps a model type to a remote endpoint name.
	// The "default" key is used for model types without an entry.
	ModelEndpoints map[string]string `yaml:"model_endpoints"`

	// MockDelayMS delays every mock prediction by this many milliseconds.
	// Default: 0
	MockDelayMS int `yaml:"mock_delay_ms"`

	// MockRiskDistribution is a comma-separated list of exactly five weights
	// for very_low, low, moderate, high and very_high risk.
	// Example: "5,20,50,20,5"
	MockRiskDistribution string `yaml:"mock_risk_distribution"`

	// MockSeed seeds the mock random source. 0 seeds from the clock.
	MockSeed int64 `yaml:"mock_seed"`

	// ObserverTimeout bounds each observer notification.
	// Default: 2s
	ObserverTimeout time.Duration `yaml:"observer_timeout"`
}

// CloudConfig contains connection settings for the remote model runtime.
type CloudConfig struct {
	// BaseURL is the base URL of the model runtime API.
	// Example: "https://runtime.us-east-1.example.net"
	BaseURL string `yaml:"base_url"`

	// APIKey is the bearer credential for the runtime.
	// This should typically be loaded from an environment variable.
	APIKey string `yaml:"api_key"`

	// Timeout is the maximum duration of a single runtime call.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the maximum number of retry attempts for transient failures.
	// Default: 2
	MaxRetries int `yaml:"max_retries"`

	// MaxIdleConns is the maximum number of idle connections in the pool.
	// Default: 20
	MaxIdleConns int `yaml:"max_idle_conns"`

	// IdleConnTimeout is how long an idle connection remains in the pool.
	// Default: 90s
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// StoreConfig contains configuration for durable prediction storage.
type StoreConfig struct {
	// Backend selects the storage implementation.
	// Options: "memory", "sqlite", "postgres", "azblob"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteStoreConfig `yaml:"sqlite"`

	// Postgres contains PostgreSQL-specific configuration.
	Postgres PostgresStoreConfig `yaml:"postgres"`

	// Azure contains Azure Blob Storage configuration.
	Azure AzureStoreConfig `yaml:"azure"`
}

// SQLiteStoreConfig contains SQLite storage configuration.
type SQLiteStoreConfig struct {
	// Path is the database file path.
	// Default: "data/predictions.db"
	Path string `yaml:"path"`

	// Driver selects the database/sql driver.
	// Options: "sqlite3" (cgo), "sqlite" (pure Go)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// PostgresStoreConfig contains PostgreSQL storage configuration.
type PostgresStoreConfig struct {
	// DSN is the connection string.
	// Example: "postgres://prognos@localhost:5432/prognos?sslmode=require"
	DSN string `yaml:"dsn"`

	// MaxConns is the maximum pool size.
	// Default: 10
	MaxConns int32 `yaml:"max_conns"`
}

// AzureStoreConfig contains Azure Blob Storage configuration.
// Either ConnectionString or AccountURL must be set; AccountURL uses the
// default Azure credential chain.
type AzureStoreConfig struct {
	ConnectionString string `yaml:"connection_string"`
	AccountURL       string `yaml:"account_url"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check endpoint configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPHI enables automatic PHI redaction in logs.
	// Default: true
	RedactPHI bool `yaml:"redact_phi"`

	// RedactPatterns contains custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ListenAddress serves the metrics endpoint when set (e.g., "127.0.0.1:9464").
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "prognos"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "predictions"
	Subsystem string `yaml:"subsystem"`

	// LatencyBuckets defines histogram buckets for prediction latency (seconds).
	LatencyBuckets []float64 `yaml:"latency_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "prognos"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for the OTLP connection.
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration. The endpoints
// are served next to the metrics endpoint by prognos watch.
type HealthConfig struct {
	// Enabled controls whether health check endpoints are enabled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// LivenessPath is the path for the liveness endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// VersionPath is the path for the version information endpoint.
	// Default: "/version"
	VersionPath string `yaml:"version_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// RetentionConfig contains configuration for pruning stored predictions.
type RetentionConfig struct {
	// Days is the number of days to keep stored predictions.
	// 0 keeps predictions forever.
	Days int `yaml:"days"`

	// Schedule is a cron expression for pruning runs.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`
}

// SecretsConfig contains configuration for secret references.
type SecretsConfig struct {
	// Dir is a directory holding one file per secret. Empty disables the
	// file provider.
	Dir string `yaml:"dir"`

	// EnvPrefix is prepended to the upper-cased secret name to form the
	// environment variable.
	// Default: "PROGNOS_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// CacheTTL is how long resolved secrets are cached. 0 disables caching.
	// Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

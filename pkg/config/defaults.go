package config

import "time"

// Default values for configuration fields.
const (
	// Service defaults
	DefaultServiceType     = "mock"
	DefaultPrivacyLevel    = "standard"
	DefaultObserverTimeout = 2 * time.Second

	// Cloud defaults
	DefaultCloudTimeout         = 30 * time.Second
	DefaultCloudMaxRetries      = 2
	DefaultCloudMaxIdleConns    = 20
	DefaultCloudIdleConnTimeout = 90 * time.Second

	// Store defaults
	DefaultStoreBackend      = "memory"
	DefaultSQLitePath        = "data/predictions.db"
	DefaultSQLiteDriver      = "sqlite"
	DefaultSQLiteWALMode     = true
	DefaultSQLiteBusyTimeout = 5 * time.Second
	DefaultPostgresMaxConns  = int32(10)

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultLoggingRedactPHI = true
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "prognos"
	DefaultMetricsSubsystem = "predictions"

	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingServiceName = "prognos"
	DefaultOTLPTimeout        = 10 * time.Second

	DefaultHealthEnabled       = true
	DefaultHealthLivenessPath  = "/health"
	DefaultHealthReadinessPath = "/ready"
	DefaultHealthVersionPath   = "/version"
	DefaultHealthCheckTimeout  = 5 * time.Second

	// Retention defaults
	DefaultRetentionSchedule = "0 3 * * *"

	// Secrets defaults
	DefaultSecretsEnvPrefix = "PROGNOS_SECRET_"
	DefaultSecretsCacheTTL  = 5 * time.Minute
)

// NewDefault returns a Config populated with every default, including the
// boolean defaults that ApplyDefaults cannot infer from zero values.
func NewDefault() *Config {
	cfg := &Config{}
	cfg.Store.SQLite.WALMode = DefaultSQLiteWALMode
	cfg.Telemetry.Logging.RedactPHI = DefaultLoggingRedactPHI
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Health.Enabled = DefaultHealthEnabled
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Service defaults
	if cfg.Service.ServiceType == "" {
		cfg.Service.ServiceType = DefaultServiceType
	}
	if cfg.Service.PrivacyLevel == "" {
		cfg.Service.PrivacyLevel = DefaultPrivacyLevel
	}
	if cfg.Service.ObserverTimeout == 0 {
		cfg.Service.ObserverTimeout = DefaultObserverTimeout
	}
	if cfg.Service.ModelEndpoints == nil {
		cfg.Service.ModelEndpoints = make(map[string]string)
	}

	// Cloud defaults
	if cfg.Cloud.Timeout == 0 {
		cfg.Cloud.Timeout = DefaultCloudTimeout
	}
	if cfg.Cloud.MaxRetries == 0 {
		cfg.Cloud.MaxRetries = DefaultCloudMaxRetries
	}
	if cfg.Cloud.MaxIdleConns == 0 {
		cfg.Cloud.MaxIdleConns = DefaultCloudMaxIdleConns
	}
	if cfg.Cloud.IdleConnTimeout == 0 {
		cfg.Cloud.IdleConnTimeout = DefaultCloudIdleConnTimeout
	}

	// Store defaults
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.SQLite.Path == "" {
		cfg.Store.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Store.SQLite.Driver == "" {
		cfg.Store.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Store.SQLite.BusyTimeout == 0 {
		cfg.Store.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Store.Postgres.MaxConns == 0 {
		cfg.Store.Postgres.MaxConns = DefaultPostgresMaxConns
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.LatencyBuckets) == 0 {
		cfg.Telemetry.Metrics.LatencyBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	}

	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.OTLP.Timeout == 0 {
		cfg.Telemetry.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultHealthLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultHealthReadinessPath
	}
	if cfg.Telemetry.Health.VersionPath == "" {
		cfg.Telemetry.Health.VersionPath = DefaultHealthVersionPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}

	// Retention defaults
	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = DefaultRetentionSchedule
	}

	// Secrets defaults
	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}
	if cfg.Secrets.CacheTTL == 0 {
		cfg.Secrets.CacheTTL = DefaultSecretsCacheTTL
	}
}

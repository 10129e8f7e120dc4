package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix is the prefix shared by every environment variable read by prognos.
const EnvPrefix = "PROGNOS_"

// ModelEndpointPrefix introduces per-model endpoint variables. The remainder
// of the variable name, lower-cased, is the model type:
// PROGNOS_MODEL_ENDPOINT_RELAPSE_RISK=relapse-v3 maps "relapse_risk".
const ModelEndpointPrefix = EnvPrefix + "MODEL_ENDPOINT_"

// RiskLevels lists the five levels of a risk distribution in ascending order.
var RiskLevels = []string{"very_low", "low", "moderate", "high", "very_high"}

// Environ returns the process environment as a map.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// ReadEnvFile reads one or more dotenv files into a map without touching the
// process environment. Later files override earlier ones.
func ReadEnvFile(paths ...string) (map[string]string, error) {
	env, err := godotenv.Read(paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}
	return env, nil
}

// FromEnv builds a validated Config from environment-style key/value pairs.
// Unset keys keep their defaults.
func FromEnv(env map[string]string) (*Config, error) {
	cfg := NewDefault()

	if errs := ApplyEnv(cfg, env); len(errs) > 0 {
		return nil, ValidationError{Errors: errs}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides cfg with any PROGNOS_* values present in env and returns
// every value that could not be parsed.
func ApplyEnv(cfg *Config, env map[string]string) []FieldError {
	p := envParser{env: env}

	// Service
	p.str("SERVICE_TYPE", &cfg.Service.ServiceType)
	p.str("PRIVACY_LEVEL", &cfg.Service.PrivacyLevel)
	p.str("REGION", &cfg.Service.Region)
	p.str("PREDICTIONS_STORE_NAME", &cfg.Service.PredictionsStoreName)
	p.str("DIGITAL_TWIN_FUNCTION_NAME", &cfg.Service.DigitalTwinFunctionName)
	p.integer("MOCK_DELAY_MS", "service.mock_delay_ms", &cfg.Service.MockDelayMS)
	p.int64("MOCK_SEED", "service.mock_seed", &cfg.Service.MockSeed)
	p.duration("OBSERVER_TIMEOUT", "service.observer_timeout", &cfg.Service.ObserverTimeout)

	if v, ok := p.lookup("MOCK_RISK_DISTRIBUTION"); ok {
		if _, err := ParseRiskDistribution(v); err != nil {
			p.fail("service.mock_risk_distribution", err.Error())
		} else {
			cfg.Service.MockRiskDistribution = v
		}
	}

	endpoints := ParseModelEndpoints(env)
	if len(endpoints) > 0 && cfg.Service.ModelEndpoints == nil {
		cfg.Service.ModelEndpoints = make(map[string]string, len(endpoints))
	}
	for modelType, name := range endpoints {
		cfg.Service.ModelEndpoints[modelType] = name
	}

	// Cloud runtime
	p.str("CLOUD_BASE_URL", &cfg.Cloud.BaseURL)
	p.str("CLOUD_API_KEY", &cfg.Cloud.APIKey)
	p.duration("CLOUD_TIMEOUT", "cloud.timeout", &cfg.Cloud.Timeout)
	p.integer("CLOUD_MAX_RETRIES", "cloud.max_retries", &cfg.Cloud.MaxRetries)

	// Store
	p.str("STORE_BACKEND", &cfg.Store.Backend)
	p.str("STORE_SQLITE_PATH", &cfg.Store.SQLite.Path)
	p.str("STORE_SQLITE_DRIVER", &cfg.Store.SQLite.Driver)
	p.str("STORE_POSTGRES_DSN", &cfg.Store.Postgres.DSN)
	p.str("STORE_AZURE_CONNECTION_STRING", &cfg.Store.Azure.ConnectionString)
	p.str("STORE_AZURE_ACCOUNT_URL", &cfg.Store.Azure.AccountURL)

	// Telemetry
	p.str("LOG_LEVEL", &cfg.Telemetry.Logging.Level)
	p.str("LOG_FORMAT", &cfg.Telemetry.Logging.Format)
	p.boolean("LOG_REDACT_PHI", "telemetry.logging.redact_phi", &cfg.Telemetry.Logging.RedactPHI)
	p.boolean("METRICS_ENABLED", "telemetry.metrics.enabled", &cfg.Telemetry.Metrics.Enabled)
	p.str("METRICS_LISTEN_ADDRESS", &cfg.Telemetry.Metrics.ListenAddress)
	p.boolean("TRACING_ENABLED", "telemetry.tracing.enabled", &cfg.Telemetry.Tracing.Enabled)
	p.str("TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	p.str("TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	p.boolean("HEALTH_ENABLED", "telemetry.health.enabled", &cfg.Telemetry.Health.Enabled)

	// Retention
	p.integer("RETENTION_DAYS", "retention.days", &cfg.Retention.Days)
	p.str("RETENTION_SCHEDULE", &cfg.Retention.Schedule)

	// Secrets
	p.str("SECRETS_DIR", &cfg.Secrets.Dir)

	return p.errs
}

// ParseRiskDistribution parses a comma-separated list of exactly five
// non-negative weights for very_low, low, moderate, high and very_high risk.
// The weights are normalized to percentages that sum to 100.
func ParseRiskDistribution(s string) (map[string]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != len(RiskLevels) {
		return nil, fmt.Errorf("risk distribution must have exactly %d values, got %d", len(RiskLevels), len(parts))
	}

	weights := make([]float64, len(parts))
	var sum float64
	for i, part := range parts {
		w, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("risk distribution value %d (%q) is not a number", i+1, strings.TrimSpace(part))
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("risk distribution value %d must be finite", i+1)
		}
		if w < 0 {
			return nil, fmt.Errorf("risk distribution value %d cannot be negative", i+1)
		}
		weights[i] = w
		sum += w
	}

	if sum <= 0 || math.IsInf(sum, 0) {
		return nil, fmt.Errorf("risk distribution values must have a finite sum greater than zero")
	}

	dist := make(map[string]float64, len(RiskLevels))
	for i, level := range RiskLevels {
		dist[level] = weights[i] / sum * 100
	}
	return dist, nil
}

// ParseModelEndpoints extracts PROGNOS_MODEL_ENDPOINT_<TYPE> variables into a
// model type to endpoint name map. Empty values are ignored.
func ParseModelEndpoints(env map[string]string) map[string]string {
	endpoints := make(map[string]string)
	for k, v := range env {
		if !strings.HasPrefix(k, ModelEndpointPrefix) {
			continue
		}
		modelType := strings.ToLower(strings.TrimPrefix(k, ModelEndpointPrefix))
		v = strings.TrimSpace(v)
		if modelType == "" || v == "" {
			continue
		}
		endpoints[modelType] = v
	}
	return endpoints
}

// envParser reads prefixed keys and accumulates parse failures.
type envParser struct {
	env  map[string]string
	errs []FieldError
}

func (p *envParser) lookup(key string) (string, bool) {
	v, ok := p.env[EnvPrefix+key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (p *envParser) fail(field, msg string) {
	p.errs = append(p.errs, FieldError{Field: field, Message: msg})
}

func (p *envParser) str(key string, dst *string) {
	if v, ok := p.lookup(key); ok {
		*dst = v
	}
}

func (p *envParser) integer(key, field string, dst *int) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(field, fmt.Sprintf("invalid integer %q in %s%s", v, EnvPrefix, key))
		return
	}
	*dst = n
}

func (p *envParser) int64(key, field string, dst *int64) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(field, fmt.Sprintf("invalid integer %q in %s%s", v, EnvPrefix, key))
		return
	}
	*dst = n
}

func (p *envParser) boolean(key, field string, dst *bool) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(field, fmt.Sprintf("invalid boolean %q in %s%s", v, EnvPrefix, key))
		return
	}
	*dst = b
}

func (p *envParser) duration(key, field string, dst *time.Duration) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(field, fmt.Sprintf("invalid duration %q in %s%s", v, EnvPrefix, key))
		return
	}
	*dst = d
}

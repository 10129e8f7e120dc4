package predictionfactory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"mercator-hq/prognos/pkg/config"
	"mercator-hq/prognos/pkg/events"
	"mercator-hq/prognos/pkg/prediction"
	"mercator-hq/prognos/pkg/prediction/cloud"
	"mercator-hq/prognos/pkg/prediction/mock"
	"mercator-hq/prognos/pkg/store"
	"mercator-hq/prognos/pkg/telemetry/logging"
	"mercator-hq/prognos/pkg/telemetry/metrics"
)

// Option customizes backend construction.
type Option func(*settings)

type settings struct {
	logger          *slog.Logger
	store           store.Store
	runtime         cloud.Runtime
	metrics         *metrics.Collector
	defaultObserver bool
	cloud           config.CloudConfig
	storeConfig     config.StoreConfig
}

// WithLogger sets the logger used by the backend and the default observer.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithStore attaches a prediction store. The backend takes ownership and
// closes it on Close.
func WithStore(st store.Store) Option {
	return func(s *settings) { s.store = st }
}

// WithRuntime attaches the model runtime used by the cloud backend instead of
// an HTTPRuntime built from the cloud configuration.
func WithRuntime(rt cloud.Runtime) Option {
	return func(s *settings) { s.runtime = rt }
}

// WithMetrics registers the collector's observer for every event type.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *settings) { s.metrics = c }
}

// WithoutDefaultObserver skips the logging observer NewBackend attaches to
// "*".
func WithoutDefaultObserver() Option {
	return func(s *settings) { s.defaultObserver = false }
}

// WithCloudConfig sets the runtime connection used when no runtime is
// attached.
func WithCloudConfig(cfg config.CloudConfig) Option {
	return func(s *settings) { s.cloud = cfg }
}

// WithStoreConfig selects the store opened when the options name a
// predictions store and no store is attached.
func WithStoreConfig(cfg config.StoreConfig) Option {
	return func(s *settings) { s.storeConfig = cfg }
}

func newSettings(options []Option) *settings {
	s := &settings{defaultObserver: true}
	for _, o := range options {
		o(s)
	}
	return s
}

// NewBackend creates, initializes and returns a backend of backendType
// ("mock" or "cloud").
//
// When opts.PredictionsStoreName is set and no store was attached with
// WithStore, the store selected by WithStoreConfig is opened under that name.
// Unless WithoutDefaultObserver is given, a LoggingObserver is registered for
// every event type.
//
// Example:
//
//	backend, err := predictionfactory.NewBackend(ctx, "mock", prediction.Options{
//	    PrivacyLevel: "enhanced",
//	})
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
func NewBackend(ctx context.Context, backendType string, opts prediction.Options, options ...Option) (prediction.Backend, error) {
	s := newSettings(options)
	if s.logger == nil {
		s.logger = slog.Default()
	}

	st := s.store
	if st == nil && opts.PredictionsStoreName != "" {
		var err error
		st, err = store.Open(ctx, s.storeConfig, opts.PredictionsStoreName, s.logger)
		if err != nil {
			return nil, &prediction.ConfigurationError{
				Field:   "predictions_store_name",
				Value:   opts.PredictionsStoreName,
				Message: err.Error(),
			}
		}
	}

	var backend prediction.Backend
	switch strings.ToLower(strings.TrimSpace(backendType)) {
	case mock.Name:
		backend = mock.New(st, s.logger)

	case cloud.Name:
		rt := s.runtime
		if rt == nil {
			httpRuntime, err := cloud.NewHTTPRuntime(s.cloud, opts.Region, s.logger)
			if err != nil {
				closeStore(st, s.logger)
				return nil, &prediction.ConfigurationError{Field: "cloud.base_url", Value: s.cloud.BaseURL, Message: err.Error()}
			}
			rt = httpRuntime
		}
		backend = cloud.New(rt, st, s.logger)

	default:
		closeStore(st, s.logger)
		return nil, &prediction.ConfigurationError{
			Field:   "service_type",
			Value:   backendType,
			Message: "unsupported backend type (supported: mock, cloud)",
		}
	}

	if err := backend.Initialize(ctx, opts); err != nil {
		if cerr := backend.Close(); cerr != nil {
			s.logger.Warn("failed to close backend after initialization error", "backend", backend.Name(), "error", cerr)
		}
		return nil, err
	}

	if s.defaultObserver {
		if err := backend.RegisterObserver(events.All, events.NewLoggingObserver(s.logger)); err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("failed to register logging observer: %w", err)
		}
	}
	if s.metrics != nil {
		if err := backend.RegisterObserver(events.All, s.metrics.Observer()); err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("failed to register metrics observer: %w", err)
		}
	}

	s.logger.Info("prediction backend created",
		"backend", backend.Name(),
		"privacy_level", opts.PrivacyLevel,
		"persisting", st != nil,
	)
	return backend, nil
}

func closeStore(st store.Store, logger *slog.Logger) {
	if st == nil {
		return
	}
	if err := st.Close(); err != nil {
		logger.Warn("failed to close predictions store", "error", err)
	}
}

// NewBackendFromConfig creates the backend described by cfg. The cloud and
// store sections are applied before options, so options can override them.
func NewBackendFromConfig(ctx context.Context, cfg *config.Config, options ...Option) (prediction.Backend, error) {
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	base := []Option{WithCloudConfig(cfg.Cloud), WithStoreConfig(cfg.Store)}
	return NewBackend(ctx, cfg.Service.ServiceType, opts, append(base, options...)...)
}

// NewBackendFromEnv creates a backend from environment-style key/value pairs
// (PROGNOS_SERVICE_TYPE, PROGNOS_PRIVACY_LEVEL, PROGNOS_MODEL_ENDPOINT_<TYPE>
// and the rest of config.ApplyEnv). Without WithLogger the logger is built
// from the PROGNOS_LOG_* settings.
func NewBackendFromEnv(ctx context.Context, env map[string]string, options ...Option) (prediction.Backend, error) {
	cfg, err := config.FromEnv(env)
	if err != nil {
		return nil, &prediction.ConfigurationError{Field: "environment", Message: err.Error()}
	}

	if newSettings(options).logger == nil {
		logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, os.Stderr))
		if err != nil {
			return nil, &prediction.ConfigurationError{Field: "telemetry.logging", Message: err.Error()}
		}
		options = append([]Option{WithLogger(logger.Slog())}, options...)
	}

	return NewBackendFromConfig(ctx, cfg, options...)
}

// OptionsFromConfig maps the service section of cfg onto backend options.
func OptionsFromConfig(cfg *config.Config) (prediction.Options, error) {
	svc := cfg.Service
	opts := prediction.Options{
		PrivacyLevel:            svc.PrivacyLevel,
		Region:                  svc.Region,
		PredictionsStoreName:    svc.PredictionsStoreName,
		DigitalTwinFunctionName: svc.DigitalTwinFunctionName,
		ModelEndpoints:          svc.ModelEndpoints,
		MockDelay:               time.Duration(svc.MockDelayMS) * time.Millisecond,
		Seed:                    svc.MockSeed,
		ObserverTimeout:         svc.ObserverTimeout,
	}

	if svc.MockRiskDistribution != "" {
		dist, err := config.ParseRiskDistribution(svc.MockRiskDistribution)
		if err != nil {
			return prediction.Options{}, &prediction.ConfigurationError{
				Field:   "mock_risk_distribution",
				Value:   svc.MockRiskDistribution,
				Message: err.Error(),
			}
		}
		opts.RiskDistribution = dist
	}

	return opts.Clone(), nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/prognos/pkg/config"
	"mercator-hq/prognos/pkg/prediction"
	"mercator-hq/prognos/pkg/predictionfactory"
	"mercator-hq/prognos/pkg/store"
	"mercator-hq/prognos/pkg/store/retention"
	"mercator-hq/prognos/pkg/telemetry/health"
	"mercator-hq/prognos/pkg/telemetry/metrics"
)

const hostedBackend = "default"

var watchFlags struct {
	debounce        time.Duration
	shutdownTimeout time.Duration
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Host a backend and reload it on configuration changes",
	Long: `Host the configured backend until interrupted.

While running, watch:
  - serves Prometheus metrics and the /health, /ready and /version
    health checks on telemetry.metrics.listen_address
  - prunes stored predictions on the retention.schedule cron expression
  - re-initializes the backend when the --config file changes, which
    emits a CONFIG_CHANGE event

Changing service.service_type requires a restart.

Examples:
  prognos watch --config prognos.yaml
  PROGNOS_METRICS_LISTEN_ADDRESS=:9090 prognos watch --config prognos.yaml`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchFlags.debounce, "debounce", config.DefaultDebounceInterval, "quiet period before a changed file is reloaded")
	watchCmd.Flags().DurationVar(&watchFlags.shutdownTimeout, "shutdown-timeout", 5*time.Second, "telemetry server shutdown timeout")
}

// host owns a long-lived backend and the background services around it.
type host struct {
	logger    *slog.Logger
	manager   *predictionfactory.Manager
	collector *metrics.Collector
	checker   *health.Checker
	scheduler *retention.Scheduler
	server    *http.Server
}

func newHost(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*host, error) {
	h := &host{
		logger:  logger,
		manager: predictionfactory.NewManager(logger),
		checker: health.New(cfg.Telemetry.Health.CheckTimeout),
	}
	if cfg.Telemetry.Metrics.Enabled {
		h.collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	opts, err := predictionfactory.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	options := []predictionfactory.Option{
		predictionfactory.WithLogger(logger),
		predictionfactory.WithCloudConfig(cfg.Cloud),
	}
	if h.collector != nil {
		options = append(options, predictionfactory.WithMetrics(h.collector))
	}

	// The store is opened here rather than by the factory so that the
	// retention pruner shares it with the backend.
	var st store.Store
	if opts.PredictionsStoreName != "" {
		st, err = store.Open(ctx, cfg.Store, opts.PredictionsStoreName, logger)
		if err != nil {
			return nil, &prediction.ConfigurationError{Field: "predictions_store_name", Value: opts.PredictionsStoreName, Message: err.Error()}
		}
		options = append(options, predictionfactory.WithStore(st))
	}

	if _, err := h.manager.Create(ctx, hostedBackend, cfg.Service.ServiceType, opts, options...); err != nil {
		return nil, err
	}
	h.checker.RegisterCheck("backend", health.InitializedCheck(h.initialized))
	if st != nil {
		h.checker.RegisterCheck("store", health.StoreCheck(st))
	}

	if st != nil && cfg.Retention.Days > 0 {
		var onPruned func(int64)
		if h.collector != nil {
			onPruned = h.collector.RecordPruned
		}
		pruner := retention.NewPruner(st, retention.Config{
			RetentionDays: cfg.Retention.Days,
			PruneSchedule: cfg.Retention.Schedule,
		}, logger, onPruned)
		h.scheduler = retention.NewScheduler(pruner)
		if err := h.scheduler.Start(ctx); err != nil {
			h.close(ctx)
			return nil, fmt.Errorf("failed to start retention scheduler: %w", err)
		}
	}

	return h, nil
}

// backend returns the hosted backend.
func (h *host) backend() (prediction.Backend, error) {
	return h.manager.Get(hostedBackend)
}

// initialized reports whether the hosted backend accepts predictions.
func (h *host) initialized() bool {
	b, err := h.backend()
	if err != nil {
		return false
	}
	in, ok := b.(interface{ Initialized() bool })
	return !ok || in.Initialized()
}

// reload re-initializes the hosted backend with cfg.
func (h *host) reload(ctx context.Context, cfg *config.Config) error {
	b, err := h.backend()
	if err != nil {
		return err
	}
	if cfg.Service.ServiceType != b.Name() {
		h.logger.Warn("service type change ignored until restart",
			"running", b.Name(),
			"configured", cfg.Service.ServiceType,
		)
	}

	opts, err := predictionfactory.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	return b.Initialize(ctx, opts)
}

// handler returns the telemetry mux: metrics when collected and the health
// health checks when enabled. It returns nil when there is nothing to serve.
func (h *host) handler(cfg config.TelemetryConfig) http.Handler {
	if h.collector == nil && !cfg.Health.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	if h.collector != nil {
		mux.Handle(cfg.Metrics.Path, h.collector.Handler())
	}
	health.Register(mux, h.checker, cfg.Health, health.VersionInfo{
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
	})
	return mux
}

// serveTelemetry starts the telemetry endpoint in the background. Errors
// other than a clean shutdown are sent on the returned channel.
func (h *host) serveTelemetry(cfg config.TelemetryConfig) <-chan error {
	errChan := make(chan error, 1)
	handler := h.handler(cfg)
	if handler == nil || cfg.Metrics.ListenAddress == "" {
		return errChan
	}

	h.server = &http.Server{
		Addr:              cfg.Metrics.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		h.logger.Info("starting telemetry server", "address", cfg.Metrics.ListenAddress)
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("telemetry server error: %w", err)
		}
	}()
	return errChan
}

func (h *host) close(ctx context.Context) error {
	if h.server != nil {
		if err := h.server.Shutdown(ctx); err != nil {
			h.logger.Error("telemetry server shutdown failed", "error", err)
		}
	}
	if h.scheduler != nil {
		h.scheduler.Stop()
	}
	return h.manager.Close()
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, env, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := resolveSecrets(ctx, cfg, env, logger); err != nil {
		return err
	}
	stopTracing, err := startTracing(cfg, logger)
	if err != nil {
		return err
	}
	defer stopTracing()

	w := cmd.OutOrStdout()

	h, err := newHost(ctx, cfg, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "prognos v%s\n", Version)
	fmt.Fprintf(w, "✓ Backend initialized (%s, privacy %s)\n", cfg.Service.ServiceType, cfg.Service.PrivacyLevel)
	if h.scheduler != nil && h.scheduler.IsRunning() {
		if next := h.scheduler.NextRun(); next != nil {
			fmt.Fprintf(w, "✓ Retention: %d days, next pruning %s\n", cfg.Retention.Days, next.Format(time.RFC3339))
		}
	}

	errChan := h.serveTelemetry(cfg.Telemetry)
	if h.server != nil {
		addr := cfg.Telemetry.Metrics.ListenAddress
		if h.collector != nil {
			fmt.Fprintf(w, "✓ Metrics endpoint: http://%s%s\n", addr, cfg.Telemetry.Metrics.Path)
		}
		if cfg.Telemetry.Health.Enabled {
			fmt.Fprintf(w, "✓ Health endpoints: http://%s%s, http://%s%s\n",
				addr, cfg.Telemetry.Health.LivenessPath, addr, cfg.Telemetry.Health.ReadinessPath)
		}
	}
	if cfg.Telemetry.Tracing.Enabled {
		fmt.Fprintf(w, "✓ Tracing to %s (%s sampler)\n", cfg.Telemetry.Tracing.Endpoint, cfg.Telemetry.Tracing.Sampler)
	}

	if cfgFile != "" {
		watcher, err := config.NewWatcher(cfgFile, watchFlags.debounce, logger)
		if err != nil {
			return err
		}
		watcher.WithEnv(env)
		go func() {
			if err := watcher.Watch(ctx, func(next *config.Config) error {
				return h.reload(ctx, next)
			}); err != nil {
				logger.Error("config watcher stopped", "error", err)
			}
		}()
		fmt.Fprintf(w, "✓ Watching %s\n", cfgFile)
	}

	fmt.Fprintln(w, "\nPress Ctrl+C to stop")

	var runErr error
	select {
	case runErr = <-errChan:
	case <-ctx.Done():
		fmt.Fprintln(w, "\nShutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), watchFlags.shutdownTimeout)
	defer cancel()
	if err := h.close(shutdownCtx); err != nil {
		return errors.Join(runErr, err)
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintln(w, "✓ Stopped")
	return nil
}

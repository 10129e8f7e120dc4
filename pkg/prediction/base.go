package prediction

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/prognos/pkg/events"
	"mercator-hq/prognos/pkg/telemetry/logging"
	"mercator-hq/prognos/pkg/telemetry/tracing"
)

// Base implements the lifecycle, observer registry, PHI gate and event
// emission shared by every backend. Backends embed a *Base and build their
// prediction methods on top of it.
//
// Base is safe for concurrent use. Options are replaced atomically by
// Configure and read-only everywhere else.
type Base struct {
	name   string
	bus    *events.Bus
	logger *slog.Logger

	mu          sync.RWMutex
	initialized bool
	opts        Options
	scanner     PHIScanner
}

// NewBase creates an uninitialized base for the backend called name.
func NewBase(name string, logger *slog.Logger) *Base {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "prediction."+name)
	return &Base{
		name:   name,
		bus:    events.NewBus(logger, 0),
		logger: logger,
	}
}

// Name returns the backend name.
func (b *Base) Name() string {
	return b.name
}

// Logger returns the backend's component logger.
func (b *Base) Logger() *slog.Logger {
	return b.logger
}

// Configure installs opts and scanner and marks the backend initialized.
// The first call emits INITIALIZATION; later calls emit INITIALIZATION and
// CONFIG_CHANGE.
func (b *Base) Configure(ctx context.Context, opts Options, scanner PHIScanner) {
	opts = opts.Clone()
	if opts.Scanner != nil {
		scanner = opts.Scanner
	}

	b.mu.Lock()
	previous := b.opts
	reinit := b.initialized
	b.opts = opts
	b.scanner = scanner
	b.initialized = true
	b.mu.Unlock()

	b.bus.SetObserverTimeout(opts.ObserverTimeout)

	b.bus.Publish(ctx, events.Initialization, b.name, map[string]any{
		"backend":       b.name,
		"privacy_level": privacyLevel(opts),
		"region":        opts.Region,
	})
	if reinit {
		b.bus.Publish(ctx, events.ConfigChange, b.name, map[string]any{
			"backend":           b.name,
			"old_privacy_level": privacyLevel(previous),
			"new_privacy_level": privacyLevel(opts),
		})
	}

	b.logger.Info("prediction backend initialized",
		"privacy_level", privacyLevel(opts),
		"reinitialized", reinit,
	)
}

func privacyLevel(opts Options) string {
	if opts.PrivacyLevel == "" {
		return "standard"
	}
	return opts.PrivacyLevel
}

// Initialized reports whether Configure has been called.
func (b *Base) Initialized() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.initialized
}

// Options returns the active options, or ErrNotInitialized.
func (b *Base) Options() (Options, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.initialized {
		return Options{}, ErrNotInitialized
	}
	return b.opts, nil
}

// RequireInitialized returns ErrNotInitialized until Configure is called.
func (b *Base) RequireInitialized() error {
	if !b.Initialized() {
		return ErrNotInitialized
	}
	return nil
}

// RegisterObserver implements Backend.
func (b *Base) RegisterObserver(t events.Type, o events.Observer) error {
	if err := b.RequireInitialized(); err != nil {
		return err
	}
	return b.bus.Register(t, o)
}

// UnregisterObserver implements Backend.
func (b *Base) UnregisterObserver(t events.Type, o events.Observer) error {
	if err := b.RequireInitialized(); err != nil {
		return err
	}
	return b.bus.Unregister(t, o)
}

// ObserverCount returns the number of observers registered under t.
func (b *Base) ObserverCount(t events.Type) int {
	return b.bus.Count(t)
}

// Guard scans payload with the configured PHI scanner. The patient
// identifier and every request payload should be passed in one map so all
// findings are reported together.
func (b *Base) Guard(payload map[string]any) error {
	b.mu.RLock()
	scanner := b.scanner
	b.mu.RUnlock()

	if scanner == nil {
		return nil
	}
	return scanner.Check(payload)
}

// Call tracks a single backend operation for event emission and tracing.
// Every Call ends with exactly one of Fail, Predicted, Integrated or Done.
type Call struct {
	base      *Base
	operation string
	start     time.Time
	span      trace.Span
}

// Begin starts tracking operation and opens its span. The returned context
// carries the span and is used for the rest of the operation.
func (b *Base) Begin(ctx context.Context, operation string) (context.Context, *Call) {
	ctx, span := tracing.Global().Start(ctx, "prediction."+operation)
	tracing.SetOperationAttributes(span, b.name, operation)
	ctx = logging.WithBackend(ctx, b.name)
	return ctx, &Call{base: b, operation: operation, start: time.Now(), span: span}
}

func (c *Call) elapsedMS() int64 {
	return time.Since(c.start).Milliseconds()
}

func (c *Call) end(elapsed int64) {
	tracing.SetDurationAttribute(c.span, elapsed)
	c.span.End()
}

// Done ends a successful operation that emits no event.
func (c *Call) Done() {
	tracing.SetStatus(c.span, false, "")
	c.end(c.elapsedMS())
}

// Fail emits an ERROR event for err and returns err unchanged. The event
// carries the fault kind and operation, never request data.
// ErrNotInitialized is returned without an event.
func (c *Call) Fail(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, ErrNotInitialized) {
		c.Done()
		return err
	}
	kind := FaultKind(err)
	if kind == "" {
		kind = "internal"
	}
	elapsed := c.elapsedMS()
	tracing.SetFault(c.span, kind)
	c.end(elapsed)

	c.base.bus.Publish(ctx, events.Error, c.base.name, map[string]any{
		"kind":        kind,
		"operation":   c.operation,
		"duration_ms": elapsed,
	})
	c.base.logger.WarnContext(ctx, "prediction operation failed",
		"operation", c.operation,
		"kind", kind,
		"error", err,
	)
	return err
}

// Predicted emits a PREDICTION event for a completed prediction.
func (c *Call) Predicted(ctx context.Context, meta Meta) {
	elapsed := c.elapsedMS()
	tracing.SetPredictionAttributes(c.span, meta.PredictionID, meta.PredictionType, meta.ModelType, meta.Confidence)
	tracing.SetStatus(c.span, false, "")
	c.end(elapsed)

	c.base.bus.Publish(ctx, events.Prediction, c.base.name, map[string]any{
		"prediction_id":   meta.PredictionID,
		"patient_id":      meta.PatientID,
		"model_type":      meta.ModelType,
		"prediction_type": meta.PredictionType,
		"confidence":      meta.Confidence,
		"operation":       c.operation,
		"duration_ms":     elapsed,
	})
}

// Integrated emits an INTEGRATION event for a digital twin update.
func (c *Call) Integrated(ctx context.Context, result *TwinIntegration) {
	elapsed := c.elapsedMS()
	c.span.SetAttributes(
		attribute.String(tracing.AttrPredictionID, result.PredictionID),
		attribute.String(tracing.AttrIntegrationStatus, result.Status),
	)
	tracing.SetStatus(c.span, false, "")
	c.end(elapsed)

	c.base.bus.Publish(ctx, events.Integration, c.base.name, map[string]any{
		"prediction_id": result.PredictionID,
		"patient_id":    result.PatientID,
		"profile_id":    result.ProfileID,
		"status":        result.Status,
		"operation":     c.operation,
		"duration_ms":   elapsed,
	})
}

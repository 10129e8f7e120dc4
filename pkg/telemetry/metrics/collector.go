package metrics

import (
	"fmt"
	"sync"
	"time"

	"mercator-hq/prognos/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns the Prometheus metrics for prediction backends, their event
// buses and the prediction store.
//
// Metrics:
//   - prognos_predictions_events_total: events by backend and type
//   - prognos_predictions_predictions_total: predictions by backend, prediction type, model type
//   - prognos_predictions_errors_total: failures by backend and fault kind
//   - prognos_predictions_operation_duration_seconds: operation latency histogram
//   - prognos_predictions_retention_pruned_total: predictions removed by retention
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	eventsTotal      *prometheus.CounterVec
	predictionsTotal *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	prunedTotal      prometheus.Counter

	// Cardinality tracking
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "prognos",
//		Subsystem: "predictions",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	// Set defaults if not specified
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.LatencyBuckets) == 0 {
		// Covers in-process mock calls through slow remote inference
		cfg.LatencyBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(10000), // Max 10K unique label sets
	}

	c.eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "events_total",
			Help:      "Total number of events published by prediction backends",
		},
		[]string{"backend", "event_type"},
	)
	c.predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "predictions_total",
			Help:      "Total number of predictions produced",
		},
		[]string{"backend", "prediction_type", "model_type"},
	)
	c.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "errors_total",
			Help:      "Total number of failed operations by fault kind",
		},
		[]string{"backend", "kind"},
	)
	c.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "operation_duration_seconds",
			Help:      "Duration of backend operations in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"backend", "operation"},
	)
	c.prunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "retention_pruned_total",
			Help:      "Total number of stored predictions removed by retention",
		},
	)

	registry.MustRegister(
		c.eventsTotal,
		c.predictionsTotal,
		c.errorsTotal,
		c.duration,
		c.prunedTotal,
	)

	return c
}

// RecordEvent counts an event published by backend.
func (c *Collector) RecordEvent(backend, eventType string) {
	if !c.config.Enabled {
		return
	}
	c.eventsTotal.WithLabelValues(backend, eventType).Inc()
}

// RecordPrediction counts a completed prediction.
//
// Parameters:
//   - backend: backend name (e.g., "mock", "cloud")
//   - predictionType: "risk", "treatment_response" or "outcome"
//   - modelType: model that produced the prediction
func (c *Collector) RecordPrediction(backend, predictionType, modelType string) {
	if !c.config.Enabled {
		return
	}

	// Check cardinality limit
	labelSet := fmt.Sprintf("prediction:%s:%s:%s", backend, predictionType, modelType)
	if !c.cardinalityLimiter.Allow(labelSet) {
		// Aggregate into "other" to prevent cardinality explosion
		modelType = "other"
	}

	c.predictionsTotal.WithLabelValues(backend, predictionType, modelType).Inc()
}

// RecordError counts a failed operation. kind is the fault kind name, or
// "unknown" for errors outside the taxonomy.
func (c *Collector) RecordError(backend, kind string) {
	if !c.config.Enabled {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	c.errorsTotal.WithLabelValues(backend, kind).Inc()
}

// ObserveDuration records the latency of a backend operation.
func (c *Collector) ObserveDuration(backend, operation string, d time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.duration.WithLabelValues(backend, operation).Observe(d.Seconds())
}

// RecordPruned counts predictions removed by a retention run.
func (c *Collector) RecordPruned(n int64) {
	if !c.config.Enabled || n <= 0 {
		return
	}
	c.prunedTotal.Add(float64(n))
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if we haven't reached the cardinality limit yet.
// Returns false if adding this label set would exceed the limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}

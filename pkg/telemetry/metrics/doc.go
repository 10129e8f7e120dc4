// Package metrics provides Prometheus metrics for prognos.
//
// # Overview
//
// The Collector counts events, predictions and failures, and records
// operation latency. Backends are instrumented without a direct dependency:
// the collector exposes an events.Observer that is registered on each
// backend's bus.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	backend.RegisterObserver(events.All, collector.Observer())
//
//	mux := http.NewServeMux()
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// # Prometheus Endpoint
//
//	# HELP prognos_predictions_predictions_total Total number of predictions produced
//	# TYPE prognos_predictions_predictions_total counter
//	prognos_predictions_predictions_total{backend="mock",model_type="relapse_risk",prediction_type="risk"} 12
//
// # Cardinality Management
//
// Model type labels beyond 10,000 distinct label sets are aggregated into
// "other".
package metrics

// Package telemetry groups the observability packages used by prognos.
//
//   - logging: structured slog logging with PHI redaction
//   - metrics: Prometheus counters and latency histograms fed by backend events
//   - tracing: OpenTelemetry spans per backend operation and runtime request
//   - health: liveness, readiness and version endpoints for prognos watch
//
// Every package keeps patient identifiers and clinical data out of its
// output: log attributes are redacted, metric labels are limited to backend,
// operation, model type and fault kind, and spans record only prediction
// metadata.
package telemetry

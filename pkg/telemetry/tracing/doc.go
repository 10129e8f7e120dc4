// Package tracing provides OpenTelemetry distributed tracing for prognos.
//
// Every backend operation runs in a span named after the operation
// ("prediction.predict_risk", "prediction.get_model_info", ...). The cloud
// runtime client adds a child span per HTTP request and propagates the trace
// to the model runtime with W3C Trace Context headers:
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
// Spans never carry patient identifiers or clinical data. Prediction spans
// record the prediction id, model type and confidence; failed operations
// record only the fault kind.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
// New installs the tracer provider globally, so backends created before or
// after it pick up the exporter. With tracing disabled New installs nothing
// and spans are no-ops.
//
// # Sampling
//
// Three sampling strategies are supported, each wrapped in ParentBased so
// a sampled parent always yields sampled children:
//   - always: sample all traces (development)
//   - never: sample no traces
//   - ratio: sample a fraction of traces by trace ID
package tracing

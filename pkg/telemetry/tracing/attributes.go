package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for prognos spans. Patient identifiers and clinical data
// are never recorded.
const (
	AttrBackend   = "prognos.backend"
	AttrOperation = "prognos.operation"

	AttrPredictionID   = "prognos.prediction_id"
	AttrPredictionType = "prognos.prediction_type"
	AttrModelType      = "prognos.model_type"
	AttrConfidence     = "prognos.confidence"

	AttrIntegrationStatus = "prognos.integration.status"

	AttrErrorKind = "prognos.error.kind"
	AttrDuration  = "prognos.duration_ms"

	AttrHTTPMethod     = "http.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"
	AttrRetryCount     = "prognos.retry_count"
)

// SetOperationAttributes sets the backend and operation on a span.
func SetOperationAttributes(span trace.Span, backend, operation string) {
	span.SetAttributes(
		attribute.String(AttrBackend, backend),
		attribute.String(AttrOperation, operation),
	)
}

// SetPredictionAttributes sets the non-identifying prediction metadata on a
// span.
func SetPredictionAttributes(span trace.Span, predictionID, predictionType, modelType string, confidence float64) {
	span.SetAttributes(
		attribute.String(AttrPredictionID, predictionID),
		attribute.String(AttrPredictionType, predictionType),
		attribute.String(AttrModelType, modelType),
		attribute.Float64(AttrConfidence, confidence),
	)
}

// SetFault marks the span failed with the fault kind. The error message is
// not recorded because it may quote request values.
func SetFault(span trace.Span, kind string) {
	span.SetAttributes(
		attribute.Bool("error", true),
		attribute.String(AttrErrorKind, kind),
	)
	SetStatus(span, true, kind)
}

// SetDurationAttribute sets the duration in milliseconds on a span.
func SetDurationAttribute(span trace.Span, durationMs int64) {
	span.SetAttributes(attribute.Int64(AttrDuration, durationMs))
}

// SetHTTPAttributes sets the request attributes of a runtime client span.
func SetHTTPAttributes(span trace.Span, method, route string, status, retries int) {
	span.SetAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
		attribute.Int(AttrHTTPStatusCode, status),
		attribute.Int(AttrRetryCount, retries),
	)
}

package logging

import (
	"context"

	"mercator-hq/prognos/pkg/telemetry/tracing"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// PredictionIDKey is the context key for prediction identifiers.
	PredictionIDKey contextKey = "prediction_id"

	// BackendKey is the context key for backend names.
	BackendKey contextKey = "backend"

	// ModelTypeKey is the context key for model types.
	ModelTypeKey contextKey = "model_type"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithPredictionID adds a prediction ID to the context.
func WithPredictionID(ctx context.Context, predictionID string) context.Context {
	return context.WithValue(ctx, PredictionIDKey, predictionID)
}

// GetPredictionID retrieves the prediction ID from the context.
func GetPredictionID(ctx context.Context) string {
	if id, ok := ctx.Value(PredictionIDKey).(string); ok {
		return id
	}
	return ""
}

// WithBackend adds a backend name to the context.
func WithBackend(ctx context.Context, backend string) context.Context {
	return context.WithValue(ctx, BackendKey, backend)
}

// GetBackend retrieves the backend name from the context.
func GetBackend(ctx context.Context) string {
	if backend, ok := ctx.Value(BackendKey).(string); ok {
		return backend
	}
	return ""
}

// WithModelType adds a model type to the context.
func WithModelType(ctx context.Context, modelType string) context.Context {
	return context.WithValue(ctx, ModelTypeKey, modelType)
}

// GetModelType retrieves the model type from the context.
func GetModelType(ctx context.Context) string {
	if modelType, ok := ctx.Value(ModelTypeKey).(string); ok {
		return modelType
	}
	return ""
}

// extractContextFields extracts common fields from context for logging,
// including the trace and span ids of the active span.
// Returns a slice of key-value pairs suitable for logger.With().
func extractContextFields(ctx context.Context) []any {
	var fields []any

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if predictionID := GetPredictionID(ctx); predictionID != "" {
		fields = append(fields, "prediction_id", predictionID)
	}
	if backend := GetBackend(ctx); backend != "" {
		fields = append(fields, "backend", backend)
	}
	if modelType := GetModelType(ctx); modelType != "" {
		fields = append(fields, "model_type", modelType)
	}
	if traceID := tracing.TraceID(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID, "span_id", tracing.SpanID(ctx))
	}

	return fields
}

package prediction

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotInitialized is returned by every backend operation invoked before a
// successful Initialize. It is a programming fault and is deliberately not part
// of the fault taxonomy: IsFault reports false for it and callers should never
// retry it.
var ErrNotInitialized = errors.New("prediction backend not initialized: call Initialize first")

// ConfigurationError represents an invalid or missing backend configuration.
// It is raised before any remote call is attempted.
type ConfigurationError struct {
	// Field is the configuration key that is invalid
	Field string

	// Value is the offending value (empty when the key is missing)
	Value string

	// Message describes the problem
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("configuration error for %q (value %q): %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("configuration error for %q: %s", e.Field, e.Message)
}

// ValidationError represents a request that failed validation.
// This occurs before any side effect: no remote call, storage or event.
type ValidationError struct {
	// Field is the name of the invalid field
	Field string

	// Value is the rejected value, if it is safe to echo
	Value any

	// Message describes what is invalid about the field
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation error for field %q (value %v): %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("validation error for field %q: %s", e.Field, e.Message)
}

// DataPrivacyError represents a request payload that contains protected
// health information. PatternTypes lists every distinct detector label found;
// the matched text itself is never carried.
type DataPrivacyError struct {
	// PatternTypes are the PHI pattern labels found, in detector order
	PatternTypes []string

	// Message describes where the scan was applied
	Message string
}

// Error implements the error interface.
func (e *DataPrivacyError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "payload contains protected health information"
	}
	return fmt.Sprintf("data privacy violation: %s [%s]", msg, strings.Join(e.PatternTypes, ", "))
}

// ResourceNotFoundError represents a lookup of a resource that does not exist,
// such as an unknown prediction identifier.
type ResourceNotFoundError struct {
	// ResourceType is the kind of resource (e.g., "prediction", "endpoint")
	ResourceType string

	// ResourceID is the identifier that was looked up
	ResourceID string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.ResourceType, e.ResourceID)
}

// Unwrap returns the underlying error for error chain support.
func (e *ResourceNotFoundError) Unwrap() error {
	return e.Cause
}

// ModelNotFoundError represents a request for a model type the backend does
// not serve.
type ModelNotFoundError struct {
	// ModelType is the requested model type
	ModelType string
}

// Error implements the error interface.
func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %q not found", e.ModelType)
}

// PredictionError represents a failure while the model was executing or a
// model output that violates the result contract.
type PredictionError struct {
	// ModelType is the model that failed
	ModelType string

	// Message describes the failure
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *PredictionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("prediction failed for model %q: %s: %v", e.ModelType, e.Message, e.Cause)
	}
	return fmt.Sprintf("prediction failed for model %q: %s", e.ModelType, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *PredictionError) Unwrap() error {
	return e.Cause
}

// ServiceConnectionError represents a failure to reach, or an unclassified
// failure from, a remote service.
type ServiceConnectionError struct {
	// Service is the name of the remote service
	Service string

	// Message describes the failure
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *ServiceConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("service %q connection error: %s: %v", e.Service, e.Message, e.Cause)
	}
	return fmt.Sprintf("service %q connection error: %s", e.Service, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *ServiceConnectionError) Unwrap() error {
	return e.Cause
}

// IsFault reports whether err (or any error it wraps) belongs to the fault
// taxonomy. ErrNotInitialized and raw errors report false.
func IsFault(err error) bool {
	return FaultKind(err) != ""
}

// FaultKind returns a stable, snake_case name for the taxonomy member found in
// err's chain, or "" if there is none. It is used for event payloads and metric
// labels.
func FaultKind(err error) string {
	var (
		configErr   *ConfigurationError
		validErr    *ValidationError
		privacyErr  *DataPrivacyError
		notFoundErr *ResourceNotFoundError
		modelErr    *ModelNotFoundError
		predErr     *PredictionError
		connErr     *ServiceConnectionError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &privacyErr):
		return "data_privacy"
	case errors.As(err, &validErr):
		return "validation"
	case errors.As(err, &configErr):
		return "configuration"
	case errors.As(err, &modelErr):
		return "model_not_found"
	case errors.As(err, &notFoundErr):
		return "resource_not_found"
	case errors.As(err, &predErr):
		return "prediction"
	case errors.As(err, &connErr):
		return "service_connection"
	default:
		return ""
	}
}

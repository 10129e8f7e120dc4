// Package prediction defines the contract shared by every psychiatric
// prediction backend.
//
// # Backends
//
// A Backend serves three prediction operations (risk, treatment response and
// outcome) and three queries over earlier predictions (feature importance,
// digital twin integration and model information). The mock backend in
// prediction/mock synthesizes results in process; the cloud backend in
// prediction/cloud invokes remote model endpoints. predictionfactory builds
// either from options or environment variables.
//
// # Lifecycle
//
// A backend starts uninitialized. Every operation other than Initialize, Name
// and Close returns ErrNotInitialized until Initialize succeeds. Calling
// Initialize again replaces the options and emits CONFIG_CHANGE.
//
// # Request handling
//
// Each prediction operation runs in a fixed order:
//
//  1. ErrNotInitialized if the backend was never initialized
//  2. Request validation (ValidationError, ModelNotFoundError)
//  3. PHI scan of the patient id and every payload (DataPrivacyError)
//  4. Model execution, storage and integration
//  5. PREDICTION event, or ERROR event on failure
//
// Nothing reaches a model, a store or an observer before step 3 passes.
//
// # Errors
//
// Faults are reported as one of seven error types:
//
//   - ConfigurationError: missing or invalid backend configuration
//   - ValidationError: malformed request
//   - DataPrivacyError: request contains protected health information
//   - ResourceNotFoundError: unknown prediction or remote resource
//   - ModelNotFoundError: unknown model type
//   - PredictionError: model failure or invalid model output
//   - ServiceConnectionError: remote service unreachable or failing
//
// Use errors.As to inspect them and FaultKind for a stable label.
package prediction

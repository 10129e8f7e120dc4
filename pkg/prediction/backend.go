package prediction

import (
	"context"

	"mercator-hq/prognos/pkg/events"
)

// Backend is the interface every prediction service implementation must
// satisfy. A backend serves risk, treatment-response and outcome predictions
// for a patient, explains them, and forwards them to the digital twin.
//
// Implementations must be safe for concurrent use by multiple goroutines.
// Every method except Initialize, Name and Close returns ErrNotInitialized
// until Initialize has succeeded.
//
// Every prediction payload passes the PHI guard before it reaches a model, a
// store or an observer. Faults are reported with the types in errors.go;
// transport errors are never returned raw.
//
// Example usage:
//
//	backend, err := predictionfactory.NewBackend(ctx, "mock", opts)
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
//
//	pred, err := backend.PredictRisk(ctx, &prediction.RiskRequest{
//	    PatientID:    "p1",
//	    RiskType:     prediction.RiskRelapse,
//	    ClinicalData: map[string]any{"severity": "severe"},
//	})
type Backend interface {
	// Initialize applies opts and moves the backend to the initialized state.
	// Calling it again replaces the configuration and emits INITIALIZATION
	// and CONFIG_CHANGE events.
	Initialize(ctx context.Context, opts Options) error

	// RegisterObserver subscribes o to events of type t, or to every event
	// when t is events.All. Registering the same observer twice has no effect.
	RegisterObserver(t events.Type, o events.Observer) error

	// UnregisterObserver removes a subscription added by RegisterObserver.
	UnregisterObserver(t events.Type, o events.Observer) error

	// PredictRisk predicts relapse, suicide or hospitalization risk.
	PredictRisk(ctx context.Context, req *RiskRequest) (*RiskPrediction, error)

	// PredictTreatmentResponse predicts how a patient will respond to a
	// treatment over the requested horizon.
	PredictTreatmentResponse(ctx context.Context, req *TreatmentRequest) (*TreatmentPrediction, error)

	// PredictOutcome predicts clinical outcome metrics over a timeframe.
	PredictOutcome(ctx context.Context, req *OutcomeRequest) (*OutcomePrediction, error)

	// GetFeatureImportance explains a previous prediction. patientID and
	// modelType must match the stored prediction.
	GetFeatureImportance(ctx context.Context, patientID, modelType, predictionID string) (*FeatureImportance, error)

	// IntegrateWithDigitalTwin forwards a previous prediction to a patient's
	// digital twin profile.
	IntegrateWithDigitalTwin(ctx context.Context, patientID, profileID, predictionID string) (*TwinIntegration, error)

	// GetModelInfo describes the model serving modelType.
	GetModelInfo(ctx context.Context, modelType string) (*ModelDescriptor, error)

	// Name returns the backend type name (e.g., "mock", "cloud").
	Name() string

	// Close releases resources held by the backend.
	// After Close, the backend should not be used.
	Close() error
}

// PHIScanner rejects payloads that contain protected health information.
// *phi.Guard is the standard implementation.
type PHIScanner interface {
	// Check returns a *DataPrivacyError when payload contains PHI.
	Check(payload map[string]any) error
}

// Operation names reported in event payloads and metrics.
const (
	OpPredictRisk       = "predict_risk"
	OpPredictTreatment  = "predict_treatment_response"
	OpPredictOutcome    = "predict_outcome"
	OpFeatureImportance = "get_feature_importance"
	OpDigitalTwin       = "integrate_with_digital_twin"
	OpModelInfo         = "get_model_info"
)

package prediction

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// Model types served by prediction backends.
const (
	ModelRelapseRisk         = "relapse_risk"
	ModelSuicideRisk         = "suicide_risk"
	ModelHospitalizationRisk = "hospitalization_risk"
	ModelTreatmentResponse   = "treatment_response"
	ModelOutcomePrediction   = "outcome_prediction"
)

// ModelTypes lists every known model type.
var ModelTypes = []string{
	ModelRelapseRisk,
	ModelSuicideRisk,
	ModelHospitalizationRisk,
	ModelTreatmentResponse,
	ModelOutcomePrediction,
}

// IsKnownModelType reports whether modelType is one of ModelTypes.
func IsKnownModelType(modelType string) bool {
	return slices.Contains(ModelTypes, modelType)
}

// RiskModelType returns the model type that serves riskType
// (e.g., "relapse" is served by "relapse_risk").
func RiskModelType(riskType string) string {
	return riskType + "_risk"
}

// Prediction type labels carried in Meta.PredictionType.
const (
	TypeRisk              = "risk"
	TypeTreatmentResponse = "treatment_response"
	TypeOutcome           = "outcome"
)

// Risk types accepted by PredictRisk.
const (
	RiskRelapse         = "relapse"
	RiskSuicide         = "suicide"
	RiskHospitalization = "hospitalization"
)

// Risk and response levels, in ascending order.
const (
	LevelVeryLow  = "very_low"
	LevelLow      = "low"
	LevelModerate = "moderate"
	LevelHigh     = "high"
	LevelVeryHigh = "very_high"
)

// Prediction horizons for treatment response.
const (
	HorizonShortTerm  = "short_term"
	HorizonMediumTerm = "medium_term"
	HorizonLongTerm   = "long_term"
)

// Outcome types for PredictOutcome.
const (
	OutcomeSymptom        = "symptom"
	OutcomeFunctional     = "functional"
	OutcomeQualityOfLife  = "quality_of_life"
	OutcomeComprehensive  = "comprehensive"
	DefaultTimeFrameDays  = 90
	MaxTimeFrameDays      = 3650
	ValidationStatusValid = "valid"
)

// RiskRequest asks for a psychiatric risk prediction.
type RiskRequest struct {
	// PatientID is the opaque patient identifier (required)
	PatientID string `json:"patient_id"`

	// RiskType is one of "relapse", "suicide" or "hospitalization"
	RiskType string `json:"risk_type"`

	// ClinicalData is passed through to the model unchanged
	ClinicalData map[string]any `json:"clinical_data"`

	// TimeFrameDays is the prediction window (default 90)
	TimeFrameDays int `json:"time_frame_days,omitempty"`
}

// TreatmentRequest asks for a treatment response prediction.
type TreatmentRequest struct {
	PatientID        string         `json:"patient_id"`
	TreatmentType    string         `json:"treatment_type"`
	TreatmentDetails map[string]any `json:"treatment_details"`
	ClinicalData     map[string]any `json:"clinical_data"`

	// Horizon is one of the Horizon* constants (default short_term)
	Horizon string `json:"prediction_horizon,omitempty"`
}

// Timeframe is an outcome window. At least one unit must be positive.
type Timeframe struct {
	Days   int `json:"days,omitempty"`
	Weeks  int `json:"weeks,omitempty"`
	Months int `json:"months,omitempty"`
}

// TotalDays converts the timeframe to days using 7-day weeks and 30-day months.
func (t Timeframe) TotalDays() int {
	return t.Days + t.Weeks*7 + t.Months*30
}

// OutcomeRequest asks for a clinical outcome prediction.
type OutcomeRequest struct {
	PatientID     string         `json:"patient_id"`
	Timeframe     Timeframe      `json:"outcome_timeframe"`
	ClinicalData  map[string]any `json:"clinical_data"`
	TreatmentPlan map[string]any `json:"treatment_plan"`

	// OutcomeType is one of the Outcome* constants (default symptom)
	OutcomeType string `json:"outcome_type,omitempty"`
}

// Meta holds the fields shared by every prediction result.
type Meta struct {
	PredictionID     string    `json:"prediction_id"`
	PatientID        string    `json:"patient_id"`
	ModelType        string    `json:"model_type"`
	PredictionType   string    `json:"prediction_type"`
	Timestamp        time.Time `json:"timestamp"`
	Confidence       float64   `json:"confidence"`
	FeaturesUsed     []string  `json:"features_used"`
	ValidationStatus string    `json:"validation_status"`
}

// Factor is a named contribution to a prediction.
type Factor struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// RiskPrediction is the result of PredictRisk.
type RiskPrediction struct {
	Meta
	RiskType            string   `json:"risk_type"`
	RiskLevel           string   `json:"risk_level"`
	RiskScore           float64  `json:"risk_score"`
	ContributingFactors []Factor `json:"contributing_factors"`
	TimeFrameDays       int      `json:"time_frame_days"`
}

// TreatmentPrediction is the result of PredictTreatmentResponse.
type TreatmentPrediction struct {
	Meta
	TreatmentType        string   `json:"treatment_type"`
	ResponseLevel        string   `json:"response_level"`
	ResponseScore        float64  `json:"response_score"`
	SuggestedAdjustments []string `json:"suggested_adjustments"`
	PredictionHorizon    string   `json:"prediction_horizon"`
}

// OutcomePrediction is the result of PredictOutcome.
type OutcomePrediction struct {
	Meta
	OutcomeType        string             `json:"outcome_type"`
	Timeframe          Timeframe          `json:"outcome_timeframe"`
	OutcomeMetrics     map[string]float64 `json:"outcome_metrics"`
	InfluencingFactors []Factor           `json:"influencing_factors"`
}

// FeatureWeight is one bar of a feature importance chart.
type FeatureWeight struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Visualization describes how to chart feature importance.
type Visualization struct {
	Type     string          `json:"type"`
	Features []FeatureWeight `json:"features"`
}

// BarChart charts an importance vector as bars in descending order of
// importance, ties broken by feature name.
func BarChart(importance map[string]float64) Visualization {
	bars := make([]FeatureWeight, 0, len(importance))
	for name, w := range importance {
		bars = append(bars, FeatureWeight{Feature: name, Importance: w})
	}
	slices.SortFunc(bars, func(a, b FeatureWeight) int {
		if c := cmp.Compare(b.Importance, a.Importance); c != 0 {
			return c
		}
		return strings.Compare(a.Feature, b.Feature)
	})
	return Visualization{Type: "bar", Features: bars}
}

// FeatureImportance is the result of GetFeatureImportance.
type FeatureImportance struct {
	PredictionID  string             `json:"prediction_id"`
	PatientID     string             `json:"patient_id"`
	ModelType     string             `json:"model_type"`
	Importance    map[string]float64 `json:"feature_importance"`
	Visualization Visualization      `json:"visualization"`
}

// TwinIntegration is the result of IntegrateWithDigitalTwin.
type TwinIntegration struct {
	PredictionID          string    `json:"prediction_id"`
	PatientID             string    `json:"patient_id"`
	ProfileID             string    `json:"profile_id"`
	Status                string    `json:"status"`
	UpdatedProfileFactors []string  `json:"updated_profile_factors"`
	Timestamp             time.Time `json:"timestamp"`
}

// Integration statuses.
const (
	IntegrationCompleted = "completed"
	IntegrationPending   = "pending"
)

// Model lifecycle statuses.
const (
	ModelActive     = "active"
	ModelInactive   = "inactive"
	ModelDeprecated = "deprecated"
	ModelTraining   = "training"
	ModelValidating = "validating"
)

// ModelDescriptor describes a deployed model.
type ModelDescriptor struct {
	ModelType          string             `json:"model_type"`
	Version            string             `json:"version"`
	Features           []string           `json:"features"`
	PerformanceMetrics map[string]float64 `json:"performance_metrics"`
	Status             string             `json:"status"`
	LastUpdated        time.Time          `json:"last_updated,omitempty"`
}

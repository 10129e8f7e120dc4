package mock

import (
	"maps"
	"time"

	"mercator-hq/prognos/pkg/prediction"
)

// modelVersion is reported for every synthetic model.
const modelVersion = "mock-1.0.0"

// modelUpdated is the fixed training date reported for synthetic models.
var modelUpdated = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

// defaultFeatures are the features each synthetic model always reports,
// before any clinical data keys are added.
var defaultFeatures = map[string][]string{
	prediction.ModelRelapseRisk: {
		"phq9_score", "medication_adherence", "prior_episodes",
		"sleep_quality", "social_support", "substance_use",
	},
	prediction.ModelSuicideRisk: {
		"prior_attempts", "hopelessness_score", "phq9_item9",
		"recent_loss", "access_to_means", "social_support",
	},
	prediction.ModelHospitalizationRisk: {
		"prior_hospitalizations", "symptom_severity", "medication_adherence",
		"functional_status", "crisis_contacts",
	},
	prediction.ModelTreatmentResponse: {
		"baseline_severity", "prior_treatment_response", "medication_adherence",
		"comorbidities", "therapy_engagement",
	},
	prediction.ModelOutcomePrediction: {
		"baseline_severity", "treatment_intensity", "social_support",
		"functional_status", "comorbidities",
	},
}

var performance = map[string]map[string]float64{
	prediction.ModelRelapseRisk:         {"auc": 0.82, "precision": 0.76, "recall": 0.71, "f1": 0.73},
	prediction.ModelSuicideRisk:         {"auc": 0.79, "precision": 0.64, "recall": 0.81, "f1": 0.72},
	prediction.ModelHospitalizationRisk: {"auc": 0.84, "precision": 0.74, "recall": 0.69, "f1": 0.71},
	prediction.ModelTreatmentResponse:   {"auc": 0.77, "precision": 0.72, "recall": 0.70, "f1": 0.71},
	prediction.ModelOutcomePrediction:   {"mae": 0.11, "rmse": 0.15, "r2": 0.62},
}

// describe returns the canned descriptor for a known model type.
func describe(modelType string) *prediction.ModelDescriptor {
	return &prediction.ModelDescriptor{
		ModelType:          modelType,
		Version:            modelVersion,
		Features:           append([]string(nil), defaultFeatures[modelType]...),
		PerformanceMetrics: maps.Clone(performance[modelType]),
		Status:             prediction.ModelActive,
		LastUpdated:        modelUpdated,
	}
}

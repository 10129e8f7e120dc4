package cloud

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"mercator-hq/prognos/pkg/prediction"
)

// Invocation actions.
const (
	actionPredict = "predict"
	actionExplain = "explain"
)

// invocation is the body sent to a model endpoint.
type invocation struct {
	Action         string         `json:"action"`
	ModelType      string         `json:"model_type"`
	PredictionType string         `json:"prediction_type,omitempty"`
	PatientID      string         `json:"patient_id"`
	PredictionID   string         `json:"prediction_id,omitempty"`
	Input          map[string]any `json:"input,omitempty"`
}

// output is the union of model endpoint outputs. Each prediction type reads
// the fields it needs.
type output struct {
	ModelVersion string   `json:"model_version"`
	Confidence   *float64 `json:"confidence"`
	FeaturesUsed []string `json:"features_used"`

	RiskLevel           string              `json:"risk_level"`
	RiskScore           *float64            `json:"risk_score"`
	ContributingFactors []prediction.Factor `json:"contributing_factors"`

	ResponseLevel        string   `json:"response_level"`
	ResponseScore        *float64 `json:"response_score"`
	SuggestedAdjustments []string `json:"suggested_adjustments"`

	OutcomeMetrics     map[string]float64  `json:"outcome_metrics"`
	InfluencingFactors []prediction.Factor `json:"influencing_factors"`

	FeatureImportance map[string]float64 `json:"feature_importance"`
}

var levels = []string{
	prediction.LevelVeryLow,
	prediction.LevelLow,
	prediction.LevelModerate,
	prediction.LevelHigh,
	prediction.LevelVeryHigh,
}

func decodeOutput(raw json.RawMessage, modelType string) (*output, error) {
	var out output
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &prediction.PredictionError{ModelType: modelType, Message: "malformed model output", Cause: err}
	}
	return &out, nil
}

// unit checks that a required score is present and within [0,1].
func unit(name string, v *float64) error {
	if v == nil {
		return fmt.Errorf("missing %s", name)
	}
	if math.IsNaN(*v) || *v < 0 || *v > 1 {
		return fmt.Errorf("%s %v outside [0,1]", name, *v)
	}
	return nil
}

func level(name, v string) error {
	if !slices.Contains(levels, v) {
		return fmt.Errorf("unknown %s %q", name, v)
	}
	return nil
}

func weights(name string, m map[string]float64) error {
	for k, v := range m {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%s %q = %v outside [0,1]", name, k, v)
		}
	}
	return nil
}

func factors(name string, fs []prediction.Factor) error {
	for _, f := range fs {
		if math.IsNaN(f.Weight) || f.Weight < 0 || f.Weight > 1 {
			return fmt.Errorf("%s %q weight %v outside [0,1]", name, f.Name, f.Weight)
		}
	}
	return nil
}

// check validates the output for predictionType. Any violation rejects the
// whole output.
func (o *output) check(predictionType, modelType string) error {
	errs := []error{
		unit("confidence", o.Confidence),
		weights("feature_importance", o.FeatureImportance),
	}
	switch predictionType {
	case prediction.TypeRisk:
		errs = append(errs,
			unit("risk_score", o.RiskScore),
			level("risk_level", o.RiskLevel),
			factors("contributing_factors", o.ContributingFactors),
		)
	case prediction.TypeTreatmentResponse:
		errs = append(errs,
			unit("response_score", o.ResponseScore),
			level("response_level", o.ResponseLevel),
		)
	case prediction.TypeOutcome:
		if len(o.OutcomeMetrics) == 0 {
			errs = append(errs, errors.New("missing outcome_metrics"))
		}
		errs = append(errs,
			weights("outcome_metrics", o.OutcomeMetrics),
			factors("influencing_factors", o.InfluencingFactors),
		)
	}

	if err := errors.Join(errs...); err != nil {
		return &prediction.PredictionError{ModelType: modelType, Message: "invalid model output", Cause: err}
	}
	return nil
}

// endpointStatus maps runtime endpoint states onto model lifecycle states.
var endpointStatus = map[string]string{
	"inservice":      prediction.ModelActive,
	"active":         prediction.ModelActive,
	"creating":       prediction.ModelTraining,
	"training":       prediction.ModelTraining,
	"updating":       prediction.ModelValidating,
	"validating":     prediction.ModelValidating,
	"systemupdating": prediction.ModelValidating,
	"outofservice":   prediction.ModelInactive,
	"failed":         prediction.ModelInactive,
	"inactive":       prediction.ModelInactive,
	"deleting":       prediction.ModelDeprecated,
	"deprecated":     prediction.ModelDeprecated,
}

func modelStatus(s string) string {
	key := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	if status, ok := endpointStatus[key]; ok {
		return status
	}
	return prediction.ModelInactive
}

package prediction

import (
	"regexp"
	"slices"
	"strings"
)

var (
	riskTypes    = []string{RiskRelapse, RiskSuicide, RiskHospitalization}
	horizons     = []string{HorizonShortTerm, HorizonMediumTerm, HorizonLongTerm}
	outcomeTypes = []string{OutcomeSymptom, OutcomeFunctional, OutcomeQualityOfLife, OutcomeComprehensive}

	modelTypePattern = regexp.MustCompile(`^[a-z][a-z_]{0,63}$`)
)

// ValidateRisk checks req and fills in its defaults.
func ValidateRisk(req *RiskRequest) error {
	if req == nil {
		return &ValidationError{Field: "request", Message: "request is required"}
	}
	if err := validatePatientID(req.PatientID); err != nil {
		return err
	}
	if !slices.Contains(riskTypes, req.RiskType) {
		return &ValidationError{
			Field:   "risk_type",
			Message: "must be one of: " + strings.Join(riskTypes, ", "),
		}
	}
	if req.TimeFrameDays == 0 {
		req.TimeFrameDays = DefaultTimeFrameDays
	}
	if req.TimeFrameDays < 1 || req.TimeFrameDays > MaxTimeFrameDays {
		return &ValidationError{
			Field:   "time_frame_days",
			Value:   req.TimeFrameDays,
			Message: "must be between 1 and 3650",
		}
	}
	if len(req.ClinicalData) == 0 {
		return &ValidationError{Field: "clinical_data", Message: "clinical data is required"}
	}
	return nil
}

// ValidateTreatment checks req and fills in its defaults.
func ValidateTreatment(req *TreatmentRequest) error {
	if req == nil {
		return &ValidationError{Field: "request", Message: "request is required"}
	}
	if err := validatePatientID(req.PatientID); err != nil {
		return err
	}
	if strings.TrimSpace(req.TreatmentType) == "" {
		return &ValidationError{Field: "treatment_type", Message: "treatment type is required"}
	}
	if req.TreatmentDetails == nil {
		return &ValidationError{Field: "treatment_details", Message: "treatment details are required"}
	}
	if req.Horizon == "" {
		req.Horizon = HorizonShortTerm
	}
	if !slices.Contains(horizons, req.Horizon) {
		return &ValidationError{
			Field:   "prediction_horizon",
			Message: "must be one of: " + strings.Join(horizons, ", "),
		}
	}
	return nil
}

// ValidateOutcome checks req and fills in its defaults.
func ValidateOutcome(req *OutcomeRequest) error {
	if req == nil {
		return &ValidationError{Field: "request", Message: "request is required"}
	}
	if err := validatePatientID(req.PatientID); err != nil {
		return err
	}
	tf := req.Timeframe
	if tf.Days < 0 || tf.Weeks < 0 || tf.Months < 0 {
		return &ValidationError{Field: "outcome_timeframe", Message: "timeframe units cannot be negative"}
	}
	if tf.Days == 0 && tf.Weeks == 0 && tf.Months == 0 {
		return &ValidationError{Field: "outcome_timeframe", Message: "one of days, weeks or months is required"}
	}
	if req.OutcomeType == "" {
		req.OutcomeType = OutcomeSymptom
	}
	if !slices.Contains(outcomeTypes, req.OutcomeType) {
		return &ValidationError{
			Field:   "outcome_type",
			Message: "must be one of: " + strings.Join(outcomeTypes, ", "),
		}
	}
	return nil
}

// ValidateLookup checks the identifiers of a feature importance request.
func ValidateLookup(patientID, modelType, predictionID string) error {
	if err := validatePatientID(patientID); err != nil {
		return err
	}
	if strings.TrimSpace(predictionID) == "" {
		return &ValidationError{Field: "prediction_id", Message: "prediction id is required"}
	}
	return ValidateModelType(modelType)
}

// ValidateIntegration checks the identifiers of a digital twin request.
func ValidateIntegration(patientID, profileID, predictionID string) error {
	if err := validatePatientID(patientID); err != nil {
		return err
	}
	if strings.TrimSpace(profileID) == "" {
		return &ValidationError{Field: "profile_id", Message: "profile id is required"}
	}
	if strings.TrimSpace(predictionID) == "" {
		return &ValidationError{Field: "prediction_id", Message: "prediction id is required"}
	}
	return nil
}

// ValidateModelType returns a *ModelNotFoundError for unknown model types.
// Only identifier-shaped names are echoed back in the error.
func ValidateModelType(modelType string) error {
	if strings.TrimSpace(modelType) == "" {
		return &ValidationError{Field: "model_type", Message: "model type is required"}
	}
	if !IsKnownModelType(modelType) {
		if !modelTypePattern.MatchString(modelType) {
			return &ValidationError{Field: "model_type", Message: "must be a lowercase model identifier"}
		}
		return &ModelNotFoundError{ModelType: modelType}
	}
	return nil
}

func validatePatientID(id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: "patient_id", Message: "patient id is required"}
	}
	return nil
}

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"mercator-hq/prognos/pkg/phi"
	"mercator-hq/prognos/pkg/prediction"
	"mercator-hq/prognos/pkg/store"
	"mercator-hq/prognos/pkg/telemetry/logging"
)

// Name is the backend type name.
const Name = "cloud"

// runtimeService names the runtime in ServiceConnectionError.
const runtimeService = "model-runtime"

// Backend serves predictions from remote model endpoints.
//
// Each model type resolves to an endpoint through Options.ModelEndpoints,
// falling back to the "default" entry. Raw model outputs are persisted to the
// attached store when Options.PredictionsStoreName is set; persistence is
// best effort and a storage failure never fails a prediction. Digital twin
// integrations are handed to Options.DigitalTwinFunctionName as
// asynchronous events.
type Backend struct {
	*prediction.Base

	runtime Runtime
	store   store.Store
	now     func() time.Time
}

var _ prediction.Backend = (*Backend)(nil)

// New creates an uninitialized cloud backend. s may be nil when results are
// not persisted.
func New(rt Runtime, s store.Store, logger *slog.Logger) *Backend {
	return &Backend{
		Base:    prediction.NewBase(Name, logger),
		runtime: rt,
		store:   s,
		now:     time.Now,
	}
}

// Initialize implements prediction.Backend.
func (b *Backend) Initialize(ctx context.Context, opts prediction.Options) error {
	tier, err := phi.ParseTier(opts.PrivacyLevel)
	if err != nil {
		return &prediction.ConfigurationError{Field: "privacy_level", Value: opts.PrivacyLevel, Message: err.Error()}
	}
	if b.runtime == nil {
		return &prediction.ConfigurationError{Field: "runtime", Message: "no model runtime attached"}
	}
	if strings.TrimSpace(opts.Region) == "" {
		return &prediction.ConfigurationError{Field: "region", Message: "region is required"}
	}
	if opts.PredictionsStoreName != "" && b.store == nil {
		return &prediction.ConfigurationError{
			Field:   "predictions_store_name",
			Value:   opts.PredictionsStoreName,
			Message: "no prediction store attached",
		}
	}

	b.Configure(ctx, opts, phi.NewGuard(tier))
	return nil
}

// persisting reports whether results are stored.
func (b *Backend) persisting(opts prediction.Options) bool {
	return b.store != nil && opts.PredictionsStoreName != ""
}

// endpoint resolves the endpoint for modelType without touching the network.
func endpoint(opts prediction.Options, modelType string) (string, error) {
	name, ok := opts.Endpoint(modelType)
	if !ok {
		return "", &prediction.ConfigurationError{
			Field:   "model_endpoints",
			Value:   modelType,
			Message: "no endpoint configured for model type and no default endpoint",
		}
	}
	return name, nil
}

// predict invokes endpoint and validates its output for predictionType.
func (b *Backend) predict(ctx context.Context, endpoint string, in invocation) (json.RawMessage, *output, error) {
	ctx = logging.WithModelType(ctx, in.ModelType)
	raw, err := b.runtime.Invoke(ctx, endpoint, in)
	if err != nil {
		return nil, nil, Translate(err, Target{
			Service:      runtimeService,
			ResourceType: "endpoint",
			ResourceID:   endpoint,
			ModelType:    in.ModelType,
		})
	}
	out, err := decodeOutput(raw, in.ModelType)
	if err != nil {
		return nil, nil, err
	}
	if err := out.check(in.PredictionType, in.ModelType); err != nil {
		return nil, nil, err
	}
	return raw, out, nil
}

func (b *Backend) meta(id, patientID, modelType, predictionType string, out *output) prediction.Meta {
	return prediction.Meta{
		PredictionID:     id,
		PatientID:        patientID,
		ModelType:        modelType,
		PredictionType:   predictionType,
		Timestamp:        b.now().UTC(),
		Confidence:       *out.Confidence,
		FeaturesUsed:     out.FeaturesUsed,
		ValidationStatus: prediction.ValidationStatusValid,
	}
}

// persist stores the raw model output. Failures are logged and dropped.
func (b *Backend) persist(ctx context.Context, opts prediction.Options, meta prediction.Meta, raw json.RawMessage, importance map[string]float64) {
	if !b.persisting(opts) {
		return
	}
	err := b.store.Put(ctx, &store.Record{
		PredictionID:   meta.PredictionID,
		PatientID:      meta.PatientID,
		ModelType:      meta.ModelType,
		PredictionType: meta.PredictionType,
		CreatedAt:      meta.Timestamp,
		Result:         raw,
		Importance:     importance,
	})
	if err != nil {
		b.Logger().WarnContext(ctx, "failed to persist prediction",
			"prediction_id", meta.PredictionID,
			"model_type", meta.ModelType,
			"error", err,
		)
	}
}

// PredictRisk implements prediction.Backend.
func (b *Backend) PredictRisk(ctx context.Context, req *prediction.RiskRequest) (*prediction.RiskPrediction, error) {
	if err := b.RequireInitialized(); err != nil {
		return nil, err
	}
	ctx, call := b.Begin(ctx, prediction.OpPredictRisk)

	if err := prediction.ValidateRisk(req); err != nil {
		return nil, call.Fail(ctx, err)
	}
	if err := b.Guard(map[string]any{
		"patient_id":    req.PatientID,
		"clinical_data": req.ClinicalData,
	}); err != nil {
		return nil, call.Fail(ctx, err)
	}

	opts, _ := b.Options()
	modelType := prediction.RiskModelType(req.RiskType)
	name, err := endpoint(opts, modelType)
	if err != nil {
		return nil, call.Fail(ctx, err)
	}

	id := uuid.NewString()
	raw, out, err := b.predict(ctx, name, invocation{
		Action:         actionPredict,
		ModelType:      modelType,
		PredictionType: prediction.TypeRisk,
		PatientID:      req.PatientID,
		PredictionID:   id,
		Input: map[string]any{
			"risk_type":       req.RiskType,
			"clinical_data":   req.ClinicalData,
			"time_frame_days": req.TimeFrameDays,
		},
	})
	if err != nil {
		return nil, call.Fail(ctx, err)
	}

	pred := &prediction.RiskPrediction{
		Meta:                b.meta(id, req.PatientID, modelType, prediction.TypeRisk, out),
		RiskType:            req.RiskType,
		RiskLevel:           out.RiskLevel,
		RiskScore:           *out.RiskScore,
		ContributingFactors: out.ContributingFactors,
		TimeFrameDays:       req.TimeFrameDays,
	}

	b.persist(ctx, opts, pred.Meta, raw, out.FeatureImportance)
	call.Predicted(ctx, pred.Meta)
	return pred, nil
}

// PredictTreatmentResponse implements prediction.Backend.
func (b *Backend) PredictTreatmentResponse(ctx context.Context, req *prediction.TreatmentRequest) (*prediction.TreatmentPrediction, error) {
	if err := b.RequireInitialized(); err != nil {
		return nil, err
	}
	ctx, call := b.Begin(ctx, prediction.OpPredictTreatment)

	if err := prediction.ValidateTreatment(req); err != nil {
		return nil, call.Fail(ctx, err)
	}
	if err := b.Guard(map[string]any{
		"patient_id":        req.PatientID,
		"treatment_type":    req.TreatmentType,
		"treatment_details": req.TreatmentDetails,
		"clinical_data":     req.ClinicalData,
	}); err != nil {
		return nil, call.Fail(ctx, err)
	}

	opts, _ := b.Options()
	modelType := prediction.ModelTreatmentResponse
	name, err := endpoint(opts, modelType)
	if err != nil {
		return nil, call.Fail(ctx, err)
	}

	id := uuid.NewString()
	raw, out, err := b.predict(ctx, name, invocation{
		Action:         actionPredict,
		ModelType:      modelType,
		PredictionType: prediction.TypeTreatmentResponse,
		PatientID:      req.PatientID,
		PredictionID:   id,
		Input: map[string]any{
			"treatment_type":     req.TreatmentType,
			"treatment_details":  req.TreatmentDetails,
			"clinical_data":      req.ClinicalData,
			"prediction_horizon": req.Horizon,
		},
	})
	if err != nil {
		return nil, call.Fail(ctx, err)
	}

	pred := &prediction.TreatmentPrediction{
		Meta:                 b.meta(id, req.PatientID, modelType, prediction.TypeTreatmentResponse, out),
		TreatmentType:        req.TreatmentType,
		ResponseLevel:        out.ResponseLevel,
		ResponseScore:        *out.ResponseScore,
		SuggestedAdjustments: out.SuggestedAdjustments,
		PredictionHorizon:    req.Horizon,
	}

	b.persist(ctx, opts, pred.Meta, raw, out.FeatureImportance)
	call.Predicted(ctx, pred.Meta)
	return pred, nil
}

// PredictOutcome implements prediction.Backend.
func (b *Backend) PredictOutcome(ctx context.Context, req *prediction.OutcomeRequest) (*prediction.OutcomePrediction, error) {
	if err := b.RequireInitialized(); err != nil {
		return nil, err
	}
	ctx, call := b.Begin(ctx, prediction.OpPredictOutcome)

	if err := prediction.ValidateOutcome(req); err != nil {
		return nil, call.Fail(ctx, err)
	}
	if err := b.Guard(map[string]any{
		"patient_id":     req.PatientID,
		"clinical_data":  req.ClinicalData,
		"treatment_plan": req.TreatmentPlan,
	}); err != nil {
		return nil, call.Fail(ctx, err)
	}

	opts, _ := b.Options()
	modelType := prediction.ModelOutcomePrediction
	name, err := endpoint(opts, modelType)
	if err != nil {
		return nil, call.Fail(ctx, err)
	}

	id := uuid.NewString()
	raw, out, err := b.predict(ctx, name, invocation{
		Action:         actionPredict,
		ModelType:      modelType,
		PredictionType: prediction.TypeOutcome,
		PatientID:      req.PatientID,
		PredictionID:   id,
		Input: map[string]any{
			"outcome_timeframe": req.Timeframe,
			"clinical_data":     req.ClinicalData,
			"treatment_plan":    req.TreatmentPlan,
			"outcome_type":      req.OutcomeType,
		},
	})
	if err != nil {
		return nil, call.Fail(ctx, err)
	}

	pred := &prediction.OutcomePrediction{
		Meta:               b.meta(id, req.PatientID, modelType, prediction.TypeOutcome, out),
		OutcomeType:        req.OutcomeType,
		Timeframe:          req.Timeframe,
		OutcomeMetrics:     out.OutcomeMetrics,
		InfluencingFactors: out.InfluencingFactors,
	}

	b.persist(ctx, opts, pred.Meta, raw, out.FeatureImportance)
	call.Predicted(ctx, pred.Meta)
	return pred, nil
}

// stored loads a persisted prediction and checks it belongs to patientID.
// A nil record with a nil error means the store could not be read and the
// caller should continue without it.
func (b *Backend) stored(ctx context.Context, patientID, predictionID string) (*store.Record, error) {
	rec, err := b.store.Get(ctx, predictionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &prediction.ResourceNotFoundError{ResourceType: "prediction", ResourceID: predictionID, Cause: err}
	}
	if err != nil {
		b.Logger().WarnContext(ctx, "failed to load stored prediction", "error", err)
		return nil, nil
	}
	if rec.PatientID != patientID {
		return nil, &prediction.ValidationError{Field: "patient_id", Message: "does not match the stored prediction"}
	}
	return rec, nil
}

// GetFeatureImportance implements prediction.Backend. Stored importance
// vectors are returned directly; otherwise the model endpoint is asked to
// explain the prediction.
func (b *Backend) GetFeatureImportance(ctx context.Context, patientID, modelType, predictionID string) (*prediction.FeatureImportance, error) {
	if err := b.RequireInitialized(); err != nil {
		return nil, err
	}
	ctx, call := b.Begin(ctx, prediction.OpFeatureImportance)

	if err := prediction.ValidateLookup(patientID, modelType, predictionID); err != nil {
		return nil, call.Fail(ctx, err)
	}
	if err := b.Guard(map[string]any{"patient_id": patientID}); err != nil {
		return nil, call.Fail(ctx, err)
	}

	ctx = logging.WithPredictionID(ctx, predictionID)
	opts, _ := b.Options()
	if b.persisting(opts) {
		rec, err := b.stored(ctx, patientID, predictionID)
		if err != nil {
			return nil, call.Fail(ctx, err)
		}
		if rec != nil && rec.ModelType != modelType {
			return nil, call.Fail(ctx, &prediction.ValidationError{
				Field:   "model_type",
				Value:   modelType,
				Message: "does not match the stored prediction",
			})
		}
		if rec != nil && len(rec.Importance) > 0 {
			call.Done()
			return importanceResult(patientID, modelType, predictionID, rec.Importance), nil
		}
	}

	name, err := endpoint(opts, modelType)
	if err != nil {
		return nil, call.Fail(ctx, err)
	}
	raw, err := b.runtime.Invoke(ctx, name, invocation{
		Action:       actionExplain,
		ModelType:    modelType,
		PatientID:    patientID,
		PredictionID: predictionID,
	})
	if err != nil {
		return nil, call.Fail(ctx, Translate(err, Target{
			Service:      runtimeService,
			ResourceType: "prediction",
			ResourceID:   predictionID,
			ModelType:    modelType,
		}))
	}
	out, err := decodeOutput(raw, modelType)
	if err != nil {
		return nil, call.Fail(ctx, err)
	}
	if len(out.FeatureImportance) == 0 {
		return nil, call.Fail(ctx, &prediction.PredictionError{ModelType: modelType, Message: "model returned no feature importance"})
	}
	if err := weights("feature_importance", out.FeatureImportance); err != nil {
		return nil, call.Fail(ctx, &prediction.PredictionError{ModelType: modelType, Message: "invalid model output", Cause: err})
	}

	call.Done()
	return importanceResult(patientID, modelType, predictionID, out.FeatureImportance), nil
}

func importanceResult(patientID, modelType, predictionID string, importance map[string]float64) *prediction.FeatureImportance {
	return &prediction.FeatureImportance{
		PredictionID:  predictionID,
		PatientID:     patientID,
		ModelType:     modelType,
		Importance:    importance,
		Visualization: prediction.BarChart(importance),
	}
}

// IntegrateWithDigitalTwin implements prediction.Backend. The integration
// function is invoked asynchronously, so the result is always pending.
func (b *Backend) IntegrateWithDigitalTwin(ctx context.Context, patientID, profileID, predictionID string) (*prediction.TwinIntegration, error) {
	if err := b.RequireInitialized(); err != nil {
		return nil, err
	}
	ctx, call := b.Begin(ctx, prediction.OpDigitalTwin)

	if err := prediction.ValidateIntegration(patientID, profileID, predictionID); err != nil {
		return nil, call.Fail(ctx, err)
	}
	if err := b.Guard(map[string]any{"patient_id": patientID, "profile_id": profileID}); err != nil {
		return nil, call.Fail(ctx, err)
	}

	opts, _ := b.Options()
	function := opts.DigitalTwinFunctionName
	if function == "" {
		return nil, call.Fail(ctx, &prediction.ConfigurationError{
			Field:   "digital_twin_function_name",
			Message: "digital twin integration is not configured",
		})
	}

	payload := map[string]any{
		"prediction_id": predictionID,
		"patient_id":    patientID,
		"profile_id":    profileID,
	}
	if b.persisting(opts) {
		rec, err := b.stored(ctx, patientID, predictionID)
		if err != nil {
			return nil, call.Fail(ctx, err)
		}
		if rec != nil {
			payload["model_type"] = rec.ModelType
			payload["prediction_type"] = rec.PredictionType
			payload["result"] = rec.Result
		}
	}

	if err := b.runtime.InvokeFunction(ctx, function, payload, true); err != nil {
		return nil, call.Fail(ctx, Translate(err, Target{
			Service:      runtimeService,
			ResourceType: "function",
			ResourceID:   function,
		}))
	}

	result := &prediction.TwinIntegration{
		PredictionID:          predictionID,
		PatientID:             patientID,
		ProfileID:             profileID,
		Status:                prediction.IntegrationPending,
		UpdatedProfileFactors: []string{},
		Timestamp:             b.now().UTC(),
	}
	call.Integrated(ctx, result)
	return result, nil
}

// GetModelInfo implements prediction.Backend by describing the endpoint that
// serves modelType.
func (b *Backend) GetModelInfo(ctx context.Context, modelType string) (*prediction.ModelDescriptor, error) {
	if err := b.RequireInitialized(); err != nil {
		return nil, err
	}
	ctx, call := b.Begin(ctx, prediction.OpModelInfo)

	if err := prediction.ValidateModelType(modelType); err != nil {
		return nil, call.Fail(ctx, err)
	}
	opts, _ := b.Options()
	name, err := endpoint(opts, modelType)
	if err != nil {
		return nil, call.Fail(ctx, err)
	}

	desc, err := b.runtime.Describe(ctx, name)
	if err != nil {
		return nil, call.Fail(ctx, Translate(err, Target{
			Service:      runtimeService,
			ResourceType: "endpoint",
			ResourceID:   name,
			ModelType:    modelType,
		}))
	}

	call.Done()
	return &prediction.ModelDescriptor{
		ModelType:          modelType,
		Version:            desc.Version,
		Features:           desc.Features,
		PerformanceMetrics: desc.PerformanceMetrics,
		Status:             modelStatus(desc.Status),
		LastUpdated:        desc.LastUpdated,
	}, nil
}

// Close implements prediction.Backend.
func (b *Backend) Close() error {
	var errs []error
	if b.runtime != nil {
		errs = append(errs, b.runtime.Close())
	}
	if b.store != nil {
		errs = append(errs, b.store.Close())
	}
	return errors.Join(errs...)
}

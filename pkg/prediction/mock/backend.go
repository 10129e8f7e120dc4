package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/prognos/pkg/phi"
	"mercator-hq/prognos/pkg/prediction"
	"mercator-hq/prognos/pkg/store"
)

// Name is the backend type name.
const Name = "mock"

// Backend synthesizes predictions without any live dependency. It is meant
// for development and testing.
//
// Risk levels follow severity keywords in the clinical data ("severe",
// "moderate", "mild"). Without a keyword the level and score are derived
// from a hash of the patient id, so the same patient always gets the same
// result. Every prediction is kept in a store so it can be explained and
// integrated later.
type Backend struct {
	*prediction.Base

	store store.Store
	now   func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

var _ prediction.Backend = (*Backend)(nil)

// New creates an uninitialized mock backend. A nil store selects a new
// store.Memory.
func New(s store.Store, logger *slog.Logger) *Backend {
	if s == nil {
		s = store.NewMemory()
	}
	return &Backend{
		Base:  prediction.NewBase(Name, logger),
		store: s,
		now:   time.Now,
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Initialize implements prediction.Backend.
func (b *Backend) Initialize(ctx context.Context, opts prediction.Options) error {
	tier, err := phi.ParseTier(opts.PrivacyLevel)
	if err != nil {
		return &prediction.ConfigurationError{Field: "privacy_level", Value: opts.PrivacyLevel, Message: err.Error()}
	}

	if len(opts.RiskDistribution) > 0 {
		dist, err := normalizeDistribution(opts.RiskDistribution)
		if err != nil {
			return err
		}
		opts.RiskDistribution = dist
	}

	b.mu.Lock()
	if opts.Seed != 0 {
		b.rng = rand.New(rand.NewPCG(uint64(opts.Seed), uint64(opts.Seed)>>1|1))
	}
	b.mu.Unlock()

	b.Configure(ctx, opts, phi.NewGuard(tier))
	return nil
}

func normalizeDistribution(dist map[string]float64) (map[string]float64, error) {
	var sum float64
	for level, v := range dist {
		if _, ok := levelBands[level]; !ok {
			return nil, &prediction.ConfigurationError{
				Field:   "mock_risk_distribution",
				Value:   level,
				Message: "unknown risk level",
			}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &prediction.ConfigurationError{
				Field:   "mock_risk_distribution",
				Value:   fmt.Sprint(v),
				Message: "weights must be finite",
			}
		}
		if v < 0 {
			return nil, &prediction.ConfigurationError{
				Field:   "mock_risk_distribution",
				Value:   fmt.Sprint(v),
				Message: "weights cannot be negative",
			}
		}
		sum += v
	}
	if sum <= 0 || math.IsInf(sum, 0) {
		return nil, &prediction.ConfigurationError{Field: "mock_risk_distribution", Message: "weights must have a finite sum greater than zero"}
	}

	out := make(map[string]float64, len(levels))
	for _, level := range levels {
		out[level] = dist[level] / sum * 100
	}
	return out, nil
}

// random returns a generator for one prediction. Keyword-less risk
// predictions use the patient-seeded generator; everything else draws from
// the backend's shared source.
func (b *Backend) random() *rand.Rand {
	b.mu.Lock()
	defer b.mu.Unlock()
	return rand.New(rand.NewPCG(b.rng.Uint64(), b.rng.Uint64()))
}

// delay waits for the configured mock delay or until ctx is done.
func delay(ctx context.Context, d time.Duration, modelType string) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return &prediction.PredictionError{ModelType: modelType, Message: "prediction cancelled", Cause: ctx.Err()}
	case <-t.C:
		return nil
	}
}

func (b *Backend) meta(r *rand.Rand, patientID, modelType, predictionType string, features []string) prediction.Meta {
	return prediction.Meta{
		PredictionID:     uuid.NewString(),
		PatientID:        patientID,
		ModelType:        modelType,
		PredictionType:   predictionType,
		Timestamp:        b.now().UTC(),
		Confidence:       confidence(r),
		FeaturesUsed:     features,
		ValidationStatus: prediction.ValidationStatusValid,
	}
}

// save stores a prediction and its importance vector.
func (b *Backend) save(ctx context.Context, meta prediction.Meta, result any, weights map[string]float64) error {
	data, err := json.Marshal(result)
	if err != nil {
		return &prediction.PredictionError{ModelType: meta.ModelType, Message: "encode result", Cause: err}
	}
	err = b.store.Put(ctx, &store.Record{
		PredictionID:   meta.PredictionID,
		PatientID:      meta.PatientID,
		ModelType:      meta.ModelType,
		PredictionType: meta.PredictionType,
		CreatedAt:      meta.Timestamp,
		Result:         data,
		Importance:     weights,
	})
	if err != nil {
		return &prediction.PredictionError{ModelType: meta.ModelType, Message: "store prediction", Cause: err}
	}
	return nil
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
	if err := delay(ctx, opts.MockDelay, modelType); err != nil {
		return nil, call.Fail(ctx, err)
	}

	var (
		r     *rand.Rand
		bd    band
		score float64
	)
	if kb, ok := keywordBand(severity(req.ClinicalData)); ok {
		r = b.random()
		bd = kb
	} else {
		h := patientHash(req.PatientID)
		r = patientRand(h)
		bd = hashBand(h%100, opts.RiskDistribution)
	}
	score = round(bd.draw(r))

	names := features(modelType, req.ClinicalData)
	weights := importance(r, names)

	pred := &prediction.RiskPrediction{
		Meta:                b.meta(r, req.PatientID, modelType, prediction.TypeRisk, names),
		RiskType:            req.RiskType,
		RiskLevel:           bd.level,
		RiskScore:           clamp01(score),
		ContributingFactors: topFactors(weights, 5),
		TimeFrameDays:       req.TimeFrameDays,
	}

	if err := b.save(ctx, pred.Meta, pred, weights); err != nil {
		return nil, call.Fail(ctx, err)
	}
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
	if err := delay(ctx, opts.MockDelay, modelType); err != nil {
		return nil, call.Fail(ctx, err)
	}

	var (
		r    *rand.Rand
		base float64
	)
	if expected, ok := severityResponse[severity(req.ClinicalData)]; ok {
		r = b.random()
		base = expected
	} else {
		h := patientHash(req.PatientID + "|" + req.TreatmentType)
		r = patientRand(h)
		base = 0.40 + float64(h%41)/100
	}
	score := round(clamp01(base + horizonShift[req.Horizon] + (r.Float64()*0.2 - 0.1)))
	level := levelFor(score)

	names := features(modelType, req.TreatmentDetails, req.ClinicalData)
	weights := importance(r, names)

	pred := &prediction.TreatmentPrediction{
		Meta:                 b.meta(r, req.PatientID, modelType, prediction.TypeTreatmentResponse, names),
		TreatmentType:        req.TreatmentType,
		ResponseLevel:        level,
		ResponseScore:        score,
		SuggestedAdjustments: adjustments(level),
		PredictionHorizon:    req.Horizon,
	}

	if err := b.save(ctx, pred.Meta, pred, weights); err != nil {
		return nil, call.Fail(ctx, err)
	}
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
	if err := delay(ctx, opts.MockDelay, modelType); err != nil {
		return nil, call.Fail(ctx, err)
	}

	r := b.random()
	expected := 0.6
	if e, ok := severityResponse[severity(req.ClinicalData)]; ok {
		expected = e
	}
	reached := progress(req.Timeframe.TotalDays())

	metrics := make(map[string]float64)
	for _, name := range outcomeMetrics[req.OutcomeType] {
		metrics[name] = round(clamp01(expected*reached + (r.Float64()*0.1 - 0.05)))
	}

	names := features(modelType, req.ClinicalData, req.TreatmentPlan)
	weights := importance(r, names)

	pred := &prediction.OutcomePrediction{
		Meta:               b.meta(r, req.PatientID, modelType, prediction.TypeOutcome, names),
		OutcomeType:        req.OutcomeType,
		Timeframe:          req.Timeframe,
		OutcomeMetrics:     metrics,
		InfluencingFactors: topFactors(weights, 5),
	}

	if err := b.save(ctx, pred.Meta, pred, weights); err != nil {
		return nil, call.Fail(ctx, err)
	}
	call.Predicted(ctx, pred.Meta)
	return pred, nil
}

// lookup loads a stored prediction and checks it belongs to patientID.
func (b *Backend) lookup(ctx context.Context, patientID, predictionID string) (*store.Record, error) {
	rec, err := b.store.Get(ctx, predictionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &prediction.ResourceNotFoundError{ResourceType: "prediction", ResourceID: predictionID}
	}
	if err != nil {
		return nil, &prediction.PredictionError{Message: "load prediction", Cause: err}
	}
	if rec.PatientID != patientID {
		return nil, &prediction.ValidationError{Field: "patient_id", Message: "does not match the stored prediction"}
	}
	return rec, nil
}

// GetFeatureImportance implements prediction.Backend.
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

	rec, err := b.lookup(ctx, patientID, predictionID)
	if err != nil {
		return nil, call.Fail(ctx, err)
	}
	if rec.ModelType != modelType {
		return nil, call.Fail(ctx, &prediction.ValidationError{
			Field:   "model_type",
			Value:   modelType,
			Message: "does not match the stored prediction",
		})
	}

	call.Done()
	return &prediction.FeatureImportance{
		PredictionID:  predictionID,
		PatientID:     patientID,
		ModelType:     modelType,
		Importance:    rec.Importance,
		Visualization: prediction.BarChart(rec.Importance),
	}, nil
}

// profileSection names the digital twin section a prediction type updates.
var profileSection = map[string]string{
	prediction.TypeRisk:              "risk_profile",
	prediction.TypeTreatmentResponse: "treatment_history",
	prediction.TypeOutcome:           "outcome_trajectory",
}

// IntegrateWithDigitalTwin implements prediction.Backend. The mock backend
// completes integrations immediately.
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

	rec, err := b.lookup(ctx, patientID, predictionID)
	if err != nil {
		return nil, call.Fail(ctx, err)
	}

	updated := []string{profileSection[rec.PredictionType] + "." + rec.ModelType}
	for _, fw := range prediction.BarChart(rec.Importance).Features {
		if len(updated) == 4 {
			break
		}
		updated = append(updated, "features."+fw.Feature)
	}

	result := &prediction.TwinIntegration{
		PredictionID:          predictionID,
		PatientID:             patientID,
		ProfileID:             profileID,
		Status:                prediction.IntegrationCompleted,
		UpdatedProfileFactors: updated,
		Timestamp:             b.now().UTC(),
	}
	call.Integrated(ctx, result)
	return result, nil
}

// GetModelInfo implements prediction.Backend.
func (b *Backend) GetModelInfo(ctx context.Context, modelType string) (*prediction.ModelDescriptor, error) {
	if err := b.RequireInitialized(); err != nil {
		return nil, err
	}
	ctx, call := b.Begin(ctx, prediction.OpModelInfo)

	if err := prediction.ValidateModelType(modelType); err != nil {
		return nil, call.Fail(ctx, err)
	}
	call.Done()
	return describe(modelType), nil
}

// Close implements prediction.Backend.
func (b *Backend) Close() error {
	return b.store.Close()
}

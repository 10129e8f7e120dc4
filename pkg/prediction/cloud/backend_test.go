package cloud

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"mercator-hq/prognos/internal/testserver"
	"mercator-hq/prognos/pkg/events"
	"mercator-hq/prognos/pkg/prediction"
	"mercator-hq/prognos/pkg/store"
)

// recordingStore counts writes and can be made to fail them.
type recordingStore struct {
	*store.Memory
	puts    atomic.Int64
	failPut bool
}

func (s *recordingStore) Put(ctx context.Context, r *store.Record) error {
	s.puts.Add(1)
	if s.failPut {
		return errors.New("disk full")
	}
	return s.Memory.Put(ctx, r)
}

func baseOptions() prediction.Options {
	return prediction.Options{
		Region: "eu-west-1",
		ModelEndpoints: map[string]string{
			prediction.ModelRelapseRisk:       "relapse-v2",
			prediction.ModelTreatmentResponse: "treatment-v1",
			prediction.DefaultEndpointKey:     "general",
		},
	}
}

type fixture struct {
	backend *Backend
	server  *testserver.Server
	store   *recordingStore
	events  *events.Recorder
}

func newFixture(t *testing.T, opts prediction.Options) *fixture {
	t.Helper()
	srv := testserver.New()
	t.Cleanup(srv.Close)

	f := &fixture{
		server: srv,
		store:  &recordingStore{Memory: store.NewMemory()},
		events: &events.Recorder{},
	}
	f.backend = New(newTestRuntime(t, srv, 1), f.store, discardLogger())
	t.Cleanup(func() { _ = f.backend.Close() })

	if err := f.backend.Initialize(context.Background(), opts); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := f.backend.RegisterObserver(events.All, f.events); err != nil {
		t.Fatal(err)
	}
	return f
}

func riskRequest() *prediction.RiskRequest {
	return &prediction.RiskRequest{
		PatientID:    "p1",
		RiskType:     prediction.RiskRelapse,
		ClinicalData: map[string]any{"phq9_score": 18},
	}
}

func TestBackend_InitializeValidation(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	rt := newTestRuntime(t, srv, 0)

	tests := []struct {
		name    string
		backend *Backend
		opts    prediction.Options
		field   string
	}{
		{"no runtime", New(nil, nil, nil), prediction.Options{Region: "eu-west-1"}, "runtime"},
		{"no region", New(rt, nil, nil), prediction.Options{}, "region"},
		{"bad privacy level", New(rt, nil, nil), prediction.Options{Region: "eu-west-1", PrivacyLevel: "lax"}, "privacy_level"},
		{"store name without store", New(rt, nil, nil), prediction.Options{Region: "eu-west-1", PredictionsStoreName: "predictions"}, "predictions_store_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.backend.Initialize(context.Background(), tt.opts)
			var cfgErr *prediction.ConfigurationError
			if !errors.As(err, &cfgErr) || cfgErr.Field != tt.field {
				t.Errorf("got %v, want ConfigurationError for %s", err, tt.field)
			}
		})
	}
}

func TestBackend_NotInitialized(t *testing.T) {
	b := New(nil, nil, nil)
	if _, err := b.PredictRisk(context.Background(), riskRequest()); !errors.Is(err, prediction.ErrNotInitialized) {
		t.Errorf("got %v, want ErrNotInitialized", err)
	}
	if _, err := b.GetModelInfo(context.Background(), prediction.ModelRelapseRisk); !errors.Is(err, prediction.ErrNotInitialized) {
		t.Errorf("got %v, want ErrNotInitialized", err)
	}
}

func TestBackend_MissingEndpointFailsBeforeNetwork(t *testing.T) {
	opts := baseOptions()
	delete(opts.ModelEndpoints, prediction.DefaultEndpointKey)
	f := newFixture(t, opts)

	_, err := f.backend.PredictRisk(context.Background(), &prediction.RiskRequest{
		PatientID:    "p1",
		RiskType:     prediction.RiskSuicide,
		ClinicalData: map[string]any{"phq9_item9": 2},
	})
	var cfgErr *prediction.ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Value != prediction.ModelSuicideRisk {
		t.Fatalf("got %v, want ConfigurationError for suicide_risk", err)
	}
	if n := f.server.RequestCount(); n != 0 {
		t.Errorf("expected no network calls, got %d", n)
	}
}

func TestBackend_PredictRisk(t *testing.T) {
	opts := baseOptions()
	opts.PredictionsStoreName = "predictions"
	f := newFixture(t, opts)

	f.server.SetResponse(http.MethodPost, testserver.InvocationPath("relapse-v2"), testserver.Response{
		Body: testserver.RiskOutput(prediction.LevelHigh, 0.72, 0.88),
	})

	pred, err := f.backend.PredictRisk(context.Background(), riskRequest())
	if err != nil {
		t.Fatalf("PredictRisk: %v", err)
	}
	if pred.RiskLevel != prediction.LevelHigh || pred.RiskScore != 0.72 || pred.Confidence != 0.88 {
		t.Errorf("unexpected prediction: %+v", pred)
	}
	if pred.PredictionID == "" || pred.ModelType != prediction.ModelRelapseRisk {
		t.Errorf("unexpected meta: %+v", pred.Meta)
	}
	if len(pred.ContributingFactors) != 2 {
		t.Errorf("ContributingFactors = %v", pred.ContributingFactors)
	}

	reqs := f.server.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	var body invocation
	if err := reqs[0].JSON(&body); err != nil {
		t.Fatal(err)
	}
	if body.Action != actionPredict || body.ModelType != prediction.ModelRelapseRisk || body.PredictionID != pred.PredictionID {
		t.Errorf("unexpected invocation: %+v", body)
	}
	if body.Input["time_frame_days"] != float64(prediction.DefaultTimeFrameDays) {
		t.Errorf("time_frame_days = %v", body.Input["time_frame_days"])
	}

	rec, err := f.store.Get(context.Background(), pred.PredictionID)
	if err != nil {
		t.Fatalf("prediction not persisted: %v", err)
	}
	if rec.PatientID != "p1" || len(rec.Result) == 0 || rec.Importance["prior_episodes"] != 0.6 {
		t.Errorf("unexpected record: %+v", rec)
	}

	got := f.events.OfType(events.Prediction)
	if len(got) != 1 || got[0].Source != Name {
		t.Errorf("unexpected PREDICTION events: %v", got)
	}
}

func TestBackend_DefaultEndpoint(t *testing.T) {
	f := newFixture(t, baseOptions())

	f.server.SetResponse(http.MethodPost, testserver.InvocationPath("general"), testserver.Response{
		Body: testserver.RiskOutput(prediction.LevelLow, 0.2, 0.9),
	})

	_, err := f.backend.PredictRisk(context.Background(), &prediction.RiskRequest{
		PatientID:    "p1",
		RiskType:     prediction.RiskHospitalization,
		ClinicalData: map[string]any{"admissions": 1},
	})
	if err != nil {
		t.Fatalf("PredictRisk: %v", err)
	}
	if n := f.store.puts.Load(); n != 0 {
		t.Errorf("results should not be stored without a store name, got %d writes", n)
	}
}

func TestBackend_PHIBlocksRemoteCall(t *testing.T) {
	ctx := context.Background()
	nested := map[string]any{"n": "SSN 123-45-6789"}
	for range 69 {
		nested = map[string]any{"n": nested}
	}

	tests := []struct {
		name string
		call func(*Backend) error
	}{
		{"risk", func(b *Backend) error {
			_, err := b.PredictRisk(ctx, &prediction.RiskRequest{
				PatientID:    "p1",
				RiskType:     prediction.RiskRelapse,
				ClinicalData: map[string]any{"notes": "reach me at jane@example.com"},
			})
			return err
		}},
		{"treatment", func(b *Backend) error {
			_, err := b.PredictTreatmentResponse(ctx, &prediction.TreatmentRequest{
				PatientID:        "p1",
				TreatmentType:    "ssri",
				TreatmentDetails: map[string]any{"prescriber_phone": "555-123-4567"},
			})
			return err
		}},
		{"outcome", func(b *Backend) error {
			_, err := b.PredictOutcome(ctx, &prediction.OutcomeRequest{
				PatientID:     "p1",
				Timeframe:     prediction.Timeframe{Weeks: 4},
				TreatmentPlan: map[string]any{"ssn": "123-45-6789"},
			})
			return err
		}},
		{"deeply nested risk", func(b *Backend) error {
			_, err := b.PredictRisk(ctx, &prediction.RiskRequest{
				PatientID:    "p1",
				RiskType:     prediction.RiskRelapse,
				ClinicalData: nested,
			})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := baseOptions()
			opts.PredictionsStoreName = "predictions"
			f := newFixture(t, opts)

			var privacyErr *prediction.DataPrivacyError
			if err := tt.call(f.backend); !errors.As(err, &privacyErr) {
				t.Fatalf("got %v, want DataPrivacyError", err)
			}
			if n := f.server.RequestCount(); n != 0 {
				t.Errorf("expected no network calls, got %d", n)
			}
			if n := f.store.puts.Load(); n != 0 {
				t.Errorf("expected no storage calls, got %d", n)
			}
		})
	}
}

func TestBackend_RejectsInvalidOutputs(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"score above one", testserver.RiskOutput(prediction.LevelHigh, 1.3, 0.9)},
		{"negative score", testserver.RiskOutput(prediction.LevelLow, -0.1, 0.9)},
		{"confidence above one", testserver.RiskOutput(prediction.LevelHigh, 0.7, 1.2)},
		{"unknown level", testserver.RiskOutput("extreme", 0.7, 0.9)},
		{"missing score", map[string]any{"risk_level": "high", "confidence": 0.9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := baseOptions()
			opts.PredictionsStoreName = "predictions"
			f := newFixture(t, opts)
			f.server.SetResponse(http.MethodPost, testserver.InvocationPath("relapse-v2"), testserver.Response{Body: tt.body})

			_, err := f.backend.PredictRisk(context.Background(), riskRequest())
			var predErr *prediction.PredictionError
			if !errors.As(err, &predErr) {
				t.Fatalf("got %v, want PredictionError", err)
			}
			if n := f.store.puts.Load(); n != 0 {
				t.Errorf("invalid output was stored")
			}
		})
	}
}

func TestBackend_TranslatesRemoteErrors(t *testing.T) {
	tests := []struct {
		name     string
		response testserver.Response
		kind     string
	}{
		{"endpoint missing", testserver.ErrorResponse(http.StatusNotFound, "ResourceNotFound", "no such endpoint"), "resource_not_found"},
		{"bad input", testserver.ErrorResponse(http.StatusUnprocessableEntity, "ValidationError", "phq9_score must be an integer"), "validation"},
		{"model crash", testserver.ErrorResponse(http.StatusFailedDependency, "ModelError", "inference failed"), "prediction"},
		{"unavailable", testserver.Response{Body: testserver.RiskOutput("low", 0.1, 0.9), Failures: 5}, "service_connection"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, baseOptions())
			f.server.SetResponse(http.MethodPost, testserver.InvocationPath("relapse-v2"), tt.response)

			_, err := f.backend.PredictRisk(context.Background(), riskRequest())
			if kind := prediction.FaultKind(err); kind != tt.kind {
				t.Errorf("FaultKind = %q, want %q (%v)", kind, tt.kind, err)
			}

			errs := f.events.OfType(events.Error)
			if len(errs) != 1 || errs[0].Payload["kind"] != tt.kind {
				t.Errorf("unexpected ERROR events: %v", errs)
			}
		})
	}
}

func TestBackend_StorageFailureIsSwallowed(t *testing.T) {
	opts := baseOptions()
	opts.PredictionsStoreName = "predictions"
	f := newFixture(t, opts)
	f.store.failPut = true

	f.server.SetResponse(http.MethodPost, testserver.InvocationPath("treatment-v1"), testserver.Response{
		Body: testserver.TreatmentOutput(prediction.LevelModerate, 0.5, 0.8),
	})

	pred, err := f.backend.PredictTreatmentResponse(context.Background(), &prediction.TreatmentRequest{
		PatientID:        "p1",
		TreatmentType:    "cbt",
		TreatmentDetails: map[string]any{"sessions": 12},
	})
	if err != nil {
		t.Fatalf("storage failure must not fail the prediction: %v", err)
	}
	if pred.ResponseLevel != prediction.LevelModerate || pred.PredictionHorizon != prediction.HorizonShortTerm {
		t.Errorf("unexpected prediction: %+v", pred)
	}
	if n := f.store.puts.Load(); n != 1 {
		t.Errorf("expected one write attempt, got %d", n)
	}
	if n := len(f.events.OfType(events.Error)); n != 0 {
		t.Errorf("expected no ERROR events, got %d", n)
	}
}

func TestBackend_PredictOutcome(t *testing.T) {
	f := newFixture(t, baseOptions())
	f.server.SetResponse(http.MethodPost, testserver.InvocationPath("general"), testserver.Response{
		Body: testserver.OutcomeOutput(map[string]float64{"symptom_reduction": 0.4, "remission_probability": 0.3}, 0.75),
	})

	pred, err := f.backend.PredictOutcome(context.Background(), &prediction.OutcomeRequest{
		PatientID: "p1",
		Timeframe: prediction.Timeframe{Months: 3},
	})
	if err != nil {
		t.Fatalf("PredictOutcome: %v", err)
	}
	if pred.OutcomeMetrics["symptom_reduction"] != 0.4 || pred.OutcomeType != prediction.OutcomeSymptom {
		t.Errorf("unexpected prediction: %+v", pred)
	}
}

func TestBackend_FeatureImportanceFromStore(t *testing.T) {
	ctx := context.Background()
	opts := baseOptions()
	opts.PredictionsStoreName = "predictions"
	f := newFixture(t, opts)

	f.server.SetResponse(http.MethodPost, testserver.InvocationPath("relapse-v2"), testserver.Response{
		Body: testserver.RiskOutput(prediction.LevelHigh, 0.72, 0.88),
	})
	pred, err := f.backend.PredictRisk(ctx, riskRequest())
	if err != nil {
		t.Fatal(err)
	}
	f.server.Reset()

	fi, err := f.backend.GetFeatureImportance(ctx, "p1", prediction.ModelRelapseRisk, pred.PredictionID)
	if err != nil {
		t.Fatalf("GetFeatureImportance: %v", err)
	}
	if fi.Importance["prior_episodes"] != 0.6 || fi.Visualization.Features[0].Feature != "prior_episodes" {
		t.Errorf("unexpected importance: %+v", fi)
	}
	if n := f.server.RequestCount(); n != 0 {
		t.Errorf("stored importance should not hit the network, got %d requests", n)
	}

	var verr *prediction.ValidationError
	if _, err := f.backend.GetFeatureImportance(ctx, "p2", prediction.ModelRelapseRisk, pred.PredictionID); !errors.As(err, &verr) {
		t.Errorf("got %v, want ValidationError for a different patient", err)
	}
	if _, err := f.backend.GetFeatureImportance(ctx, "p1", prediction.ModelSuicideRisk, pred.PredictionID); !errors.As(err, &verr) {
		t.Errorf("got %v, want ValidationError for a different model", err)
	}
	var nf *prediction.ResourceNotFoundError
	if _, err := f.backend.GetFeatureImportance(ctx, "p1", prediction.ModelRelapseRisk, "missing"); !errors.As(err, &nf) {
		t.Errorf("got %v, want ResourceNotFoundError", err)
	}
}

func TestBackend_FeatureImportanceExplain(t *testing.T) {
	f := newFixture(t, baseOptions())
	f.server.SetResponse(http.MethodPost, testserver.InvocationPath("relapse-v2"), testserver.Response{
		Body: testserver.ExplainOutput(map[string]float64{"sleep_quality": 0.3, "phq9_score": 0.7}),
	})

	fi, err := f.backend.GetFeatureImportance(context.Background(), "p1", prediction.ModelRelapseRisk, "pred-123")
	if err != nil {
		t.Fatalf("GetFeatureImportance: %v", err)
	}
	if fi.Visualization.Features[0].Feature != "phq9_score" {
		t.Errorf("unexpected visualization: %+v", fi.Visualization)
	}

	var body invocation
	if err := f.server.Requests()[0].JSON(&body); err != nil {
		t.Fatal(err)
	}
	if body.Action != actionExplain || body.PredictionID != "pred-123" {
		t.Errorf("unexpected invocation: %+v", body)
	}
}

func TestBackend_DigitalTwin(t *testing.T) {
	ctx := context.Background()

	t.Run("not configured", func(t *testing.T) {
		f := newFixture(t, baseOptions())
		_, err := f.backend.IntegrateWithDigitalTwin(ctx, "p1", "twin-1", "pred-1")
		var cfgErr *prediction.ConfigurationError
		if !errors.As(err, &cfgErr) || cfgErr.Field != "digital_twin_function_name" {
			t.Errorf("got %v, want ConfigurationError", err)
		}
		if n := f.server.RequestCount(); n != 0 {
			t.Errorf("expected no network calls, got %d", n)
		}
	})

	t.Run("async invocation", func(t *testing.T) {
		opts := baseOptions()
		opts.PredictionsStoreName = "predictions"
		opts.DigitalTwinFunctionName = "twin-sync"
		f := newFixture(t, opts)

		f.server.SetResponse(http.MethodPost, testserver.InvocationPath("relapse-v2"), testserver.Response{
			Body: testserver.RiskOutput(prediction.LevelHigh, 0.72, 0.88),
		})
		f.server.SetResponse(http.MethodPost, testserver.FunctionPath("twin-sync"), testserver.Response{
			StatusCode: http.StatusAccepted,
		})

		pred, err := f.backend.PredictRisk(ctx, riskRequest())
		if err != nil {
			t.Fatal(err)
		}
		f.server.Reset()

		result, err := f.backend.IntegrateWithDigitalTwin(ctx, "p1", "twin-1", pred.PredictionID)
		if err != nil {
			t.Fatalf("IntegrateWithDigitalTwin: %v", err)
		}
		if result.Status != prediction.IntegrationPending {
			t.Errorf("Status = %q, want pending", result.Status)
		}

		reqs := f.server.Requests()
		if len(reqs) != 1 || reqs[0].Header.Get("X-Invocation-Type") != "Event" {
			t.Fatalf("expected one async function call, got %v", reqs)
		}
		var payload map[string]any
		if err := reqs[0].JSON(&payload); err != nil {
			t.Fatal(err)
		}
		if payload["model_type"] != prediction.ModelRelapseRisk || payload["result"] == nil {
			t.Errorf("unexpected payload: %v", payload)
		}
		if n := len(f.events.OfType(events.Integration)); n != 1 {
			t.Errorf("INTEGRATION events = %d, want 1", n)
		}
	})

	t.Run("unknown prediction", func(t *testing.T) {
		opts := baseOptions()
		opts.PredictionsStoreName = "predictions"
		opts.DigitalTwinFunctionName = "twin-sync"
		f := newFixture(t, opts)

		_, err := f.backend.IntegrateWithDigitalTwin(ctx, "p1", "twin-1", "missing")
		var nf *prediction.ResourceNotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("got %v, want ResourceNotFoundError", err)
		}
	})
}

func TestBackend_GetModelInfo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, baseOptions())
	f.server.SetResponse(http.MethodGet, testserver.EndpointPath("relapse-v2"), testserver.Response{
		Body: testserver.EndpointDescription("relapse-v2", prediction.ModelRelapseRisk, "InService"),
	})

	info, err := f.backend.GetModelInfo(ctx, prediction.ModelRelapseRisk)
	if err != nil {
		t.Fatalf("GetModelInfo: %v", err)
	}
	if info.Status != prediction.ModelActive || info.Version != "2.3.0" || info.PerformanceMetrics["auc"] != 0.81 {
		t.Errorf("unexpected descriptor: %+v", info)
	}

	var mnf *prediction.ModelNotFoundError
	if _, err := f.backend.GetModelInfo(ctx, "anxiety_risk"); !errors.As(err, &mnf) {
		t.Errorf("got %v, want ModelNotFoundError", err)
	}

	// No describe route is configured for the default endpoint.
	var nf *prediction.ResourceNotFoundError
	if _, err := f.backend.GetModelInfo(ctx, prediction.ModelOutcomePrediction); !errors.As(err, &nf) || nf.ResourceID != "general" {
		t.Errorf("got %v, want ResourceNotFoundError for endpoint general", err)
	}
}

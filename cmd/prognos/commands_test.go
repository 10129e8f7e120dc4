package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mercator-hq/prognos/pkg/cli"
	"mercator-hq/prognos/pkg/config"
	"mercator-hq/prognos/pkg/events"
	"mercator-hq/prognos/pkg/prediction"
)

// runCommand executes the root command with args and returns stdout. Flag
// values are reset first because cobra keeps them in package variables.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// mockEnv selects the mock backend with quiet logging.
func mockEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PROGNOS_SERVICE_TYPE", "mock")
	t.Setenv("PROGNOS_LOG_LEVEL", "error")
}

// sqliteEnv persists predictions to a temporary SQLite database so that
// separate invocations can see each other's predictions.
func sqliteEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PROGNOS_STORE_BACKEND", "sqlite")
	t.Setenv("PROGNOS_STORE_SQLITE_PATH", filepath.Join(t.TempDir(), "predictions.db"))
	t.Setenv("PROGNOS_PREDICTIONS_STORE_NAME", "predictions")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	return v
}

func TestPredictRisk(t *testing.T) {
	mockEnv(t)

	out, err := runCommand(t, "predict", "risk",
		"--patient", "p-104",
		"--data", `{"notes": "severe insomnia", "phq9_score": 21}`,
		"-o", "json",
	)
	if err != nil {
		t.Fatalf("predict risk failed: %v", err)
	}

	pred := decode[prediction.RiskPrediction](t, out)
	if pred.PatientID != "p-104" || pred.RiskType != prediction.RiskRelapse {
		t.Errorf("unexpected prediction: %+v", pred)
	}
	if pred.RiskLevel != prediction.LevelVeryHigh {
		t.Errorf("RiskLevel = %q, want very_high for a severe note", pred.RiskLevel)
	}
	if pred.TimeFrameDays != 90 {
		t.Errorf("TimeFrameDays = %d, want default 90", pred.TimeFrameDays)
	}
}

func TestPredictRisk_Text(t *testing.T) {
	mockEnv(t)

	out, err := runCommand(t, "predict", "risk", "--patient", "p-104", "--data", `{"notes": "mild"}`)
	if err != nil {
		t.Fatalf("predict risk failed: %v", err)
	}
	for _, want := range []string{"FIELD", "risk_level", "low", "prediction_id"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestPredictRisk_DataFromFile(t *testing.T) {
	mockEnv(t)
	path := writeFile(t, "clinical.json", `{"notes": "moderate anxiety"}`)

	out, err := runCommand(t, "predict", "risk", "--patient", "p-1", "--data", "@"+path, "-o", "json")
	if err != nil {
		t.Fatalf("predict risk failed: %v", err)
	}
	if pred := decode[prediction.RiskPrediction](t, out); pred.RiskLevel != prediction.LevelModerate {
		t.Errorf("RiskLevel = %q, want moderate", pred.RiskLevel)
	}
}

func TestPredictRisk_Failures(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		exitCode int
	}{
		{
			name:     "phi in clinical data",
			args:     []string{"--patient", "p-1", "--data", `{"notes": "SSN 123-45-6789"}`},
			exitCode: cli.ExitPrivacy,
		},
		{
			name:     "unknown risk type",
			args:     []string{"--patient", "p-1", "--risk-type", "boredom"},
			exitCode: cli.ExitInvalidInput,
		},
		{
			name:     "missing patient",
			args:     []string{"--data", `{}`},
			exitCode: cli.ExitInvalidInput,
		},
		{
			name:     "data is not an object",
			args:     []string{"--patient", "p-1", "--data", `[1, 2]`},
			exitCode: cli.ExitFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockEnv(t)
			_, err := runCommand(t, append([]string{"predict", "risk"}, tt.args...)...)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := cli.ExitCode(err); got != tt.exitCode {
				t.Errorf("ExitCode(%v) = %d, want %d", err, got, tt.exitCode)
			}
		})
	}
}

func TestPredictTreatment(t *testing.T) {
	mockEnv(t)

	out, err := runCommand(t, "predict", "treatment",
		"--patient", "p-104",
		"--treatment-type", "medication",
		"--details", `{"drug_class": "ssri"}`,
		"--horizon", prediction.HorizonMediumTerm,
		"-o", "json",
	)
	if err != nil {
		t.Fatalf("predict treatment failed: %v", err)
	}

	pred := decode[prediction.TreatmentPrediction](t, out)
	if pred.TreatmentType != "medication" || pred.PredictionHorizon != prediction.HorizonMediumTerm {
		t.Errorf("unexpected prediction: %+v", pred)
	}
	if pred.ResponseScore < 0 || pred.ResponseScore > 1 {
		t.Errorf("ResponseScore = %v out of range", pred.ResponseScore)
	}
}

func TestPredictOutcome(t *testing.T) {
	mockEnv(t)

	out, err := runCommand(t, "predict", "outcome",
		"--patient", "p-104",
		"--outcome-type", prediction.OutcomeFunctional,
		"--months", "6",
		"-o", "json",
	)
	if err != nil {
		t.Fatalf("predict outcome failed: %v", err)
	}

	pred := decode[prediction.OutcomePrediction](t, out)
	if pred.OutcomeType != prediction.OutcomeFunctional || pred.Timeframe.Months != 6 {
		t.Errorf("unexpected prediction: %+v", pred)
	}
	if len(pred.OutcomeMetrics) == 0 {
		t.Error("expected outcome metrics")
	}
}

func TestImportanceAndIntegrate_AcrossInvocations(t *testing.T) {
	mockEnv(t)
	sqliteEnv(t)

	out, err := runCommand(t, "predict", "risk", "--patient", "p-104", "--data", `{"phq9_score": 14}`, "-o", "json")
	if err != nil {
		t.Fatalf("predict risk failed: %v", err)
	}
	id := decode[prediction.RiskPrediction](t, out).PredictionID

	out, err = runCommand(t, "importance",
		"--patient", "p-104",
		"--model", prediction.ModelRelapseRisk,
		"--prediction", id,
		"-o", "csv",
	)
	if err != nil {
		t.Fatalf("importance failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if lines[0] != "FEATURE,IMPORTANCE" || len(lines) < 2 {
		t.Errorf("unexpected CSV output:\n%s", out)
	}

	out, err = runCommand(t, "integrate",
		"--patient", "p-104",
		"--profile", "twin-7",
		"--prediction", id,
		"-o", "json",
	)
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}
	res := decode[prediction.TwinIntegration](t, out)
	if res.Status != prediction.IntegrationCompleted || res.ProfileID != "twin-7" {
		t.Errorf("unexpected integration: %+v", res)
	}
}

func TestImportance_UnknownPrediction(t *testing.T) {
	mockEnv(t)

	_, err := runCommand(t, "importance",
		"--patient", "p-104",
		"--model", prediction.ModelRelapseRisk,
		"--prediction", "does-not-exist",
	)
	if got := cli.ExitCode(err); got != cli.ExitNotFound {
		t.Errorf("ExitCode(%v) = %d, want %d", err, got, cli.ExitNotFound)
	}
}

func TestModelInfo(t *testing.T) {
	mockEnv(t)

	out, err := runCommand(t, "model-info", "--model", prediction.ModelSuicideRisk, "-o", "json")
	if err != nil {
		t.Fatalf("model-info failed: %v", err)
	}
	desc := decode[prediction.ModelDescriptor](t, out)
	if desc.ModelType != prediction.ModelSuicideRisk || desc.Status != prediction.ModelActive {
		t.Errorf("unexpected descriptor: %+v", desc)
	}

	_, err = runCommand(t, "model-info", "--model", "astrology")
	if got := cli.ExitCode(err); got != cli.ExitNotFound {
		t.Errorf("ExitCode(%v) = %d, want %d", err, got, cli.ExitNotFound)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("PROGNOS_LOG_LEVEL", "error")

	valid := writeFile(t, "prognos.yaml", `
service:
  service_type: mock
  privacy_level: enhanced
  mock_risk_distribution: "5,20,50,20,5"
`)
	out, err := runCommand(t, "config", "validate", "--config", valid)
	if err != nil {
		t.Fatalf("config validate failed: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") || !strings.Contains(out, "enhanced") {
		t.Errorf("unexpected output:\n%s", out)
	}

	invalid := writeFile(t, "prognos.yaml", `
service:
  service_type: mock
  privacy_level: loose
`)
	_, err = runCommand(t, "config", "validate", "--config", invalid)
	if got := cli.ExitCode(err); got != cli.ExitConfiguration {
		t.Errorf("ExitCode(%v) = %d, want %d", err, got, cli.ExitConfiguration)
	}

	_, err = runCommand(t, "config", "validate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if got := cli.ExitCode(err); got != cli.ExitConfiguration {
		t.Errorf("ExitCode(%v) = %d, want %d", err, got, cli.ExitConfiguration)
	}
}

func TestConfigShow_RedactsSecrets(t *testing.T) {
	t.Setenv("PROGNOS_CLOUD_API_KEY", "sk-live-0123456789")

	out, err := runCommand(t, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if strings.Contains(out, "0123456789") {
		t.Errorf("API key leaked:\n%s", out)
	}
	if !strings.Contains(out, "sk-l***") {
		t.Errorf("expected redacted key in output:\n%s", out)
	}
	if !strings.Contains(out, "service_type: mock") {
		t.Errorf("expected default service type:\n%s", out)
	}
}

func TestEnvFile(t *testing.T) {
	mockEnv(t)
	envPath := writeFile(t, ".env", "PROGNOS_PRIVACY_LEVEL=maximum\n")

	// Maximum privacy rejects identifying keys such as first_name.
	_, err := runCommand(t, "predict", "risk",
		"--env-file", envPath,
		"--patient", "p-1",
		"--data", `{"first_name": "redacted"}`,
	)
	if got := cli.ExitCode(err); got != cli.ExitPrivacy {
		t.Errorf("ExitCode(%v) = %d, want %d", err, got, cli.ExitPrivacy)
	}

	// The process environment wins over the file.
	t.Setenv("PROGNOS_PRIVACY_LEVEL", "standard")
	if _, err := runCommand(t, "predict", "risk",
		"--env-file", envPath,
		"--patient", "p-1",
		"--data", `{"first_name": "redacted"}`,
	); err != nil {
		t.Errorf("standard privacy should accept the request: %v", err)
	}
}

func TestSecretReferences(t *testing.T) {
	mockEnv(t)
	t.Setenv("PROGNOS_CLOUD_API_KEY", "${secret:runtime-api-key}")

	args := []string{"predict", "risk", "--patient", "p-1", "-o", "json"}
	_, err := runCommand(t, args...)
	if got := cli.ExitCode(err); got != cli.ExitConfiguration {
		t.Fatalf("ExitCode(%v) = %d, want %d", err, got, cli.ExitConfiguration)
	}
	if !strings.Contains(err.Error(), "cloud.api_key") {
		t.Errorf("error %q does not name the field", err)
	}

	t.Setenv("PROGNOS_SECRET_RUNTIME_API_KEY", "sk-live-0123456789")
	if _, err := runCommand(t, args...); err != nil {
		t.Fatalf("predict with a resolvable secret failed: %v", err)
	}
}

func TestSimulate(t *testing.T) {
	mockEnv(t)
	t.Setenv("PROGNOS_MOCK_RISK_DISTRIBUTION", "0,0,1,0,0")

	out, err := runCommand(t, "simulate", "--count", "25", "--concurrency", "5", "--quiet", "-o", "json")
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}

	summary := decode[SimulationSummary](t, out)
	if summary.Total != 25 || summary.Failed != 0 || summary.Backend != "mock" {
		t.Errorf("unexpected summary: %+v", summary)
	}
	for _, lc := range summary.Levels {
		want := 0
		if lc.Level == prediction.LevelModerate {
			want = 25
		}
		if lc.Count != want {
			t.Errorf("level %s count = %d, want %d", lc.Level, lc.Count, want)
		}
	}
}

func TestHost_ReloadEmitsConfigChange(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.NewDefault()
	cfg.Service.PredictionsStoreName = "predictions"
	cfg.Store.Backend = "sqlite"
	cfg.Store.SQLite.Path = filepath.Join(t.TempDir(), "predictions.db")
	cfg.Retention.Days = 30

	h, err := newHost(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("newHost: %v", err)
	}
	defer h.close(ctx)

	if h.collector == nil {
		t.Error("expected a metrics collector with metrics enabled")
	}
	if h.scheduler == nil || !h.scheduler.IsRunning() {
		t.Error("expected the retention scheduler to run")
	}

	b, err := h.backend()
	if err != nil {
		t.Fatal(err)
	}
	rec := &events.Recorder{}
	if err := b.RegisterObserver(events.ConfigChange, rec); err != nil {
		t.Fatal(err)
	}

	next := config.NewDefault()
	next.Service.PrivacyLevel = "maximum"
	if err := h.reload(ctx, next); err != nil {
		t.Fatalf("reload: %v", err)
	}

	got := rec.OfType(events.ConfigChange)
	if len(got) != 1 {
		t.Fatalf("expected one CONFIG_CHANGE event, got %d", len(got))
	}
	if got[0].Payload["new_privacy_level"] != "maximum" {
		t.Errorf("unexpected payload: %v", got[0].Payload)
	}

	// The reloaded tier is in force.
	_, err = b.PredictRisk(ctx, &prediction.RiskRequest{
		PatientID:    "p-1",
		RiskType:     prediction.RiskRelapse,
		ClinicalData: map[string]any{"first_name": "redacted"},
	})
	if got := cli.ExitCode(err); got != cli.ExitPrivacy {
		t.Errorf("ExitCode(%v) = %d, want %d", err, got, cli.ExitPrivacy)
	}
}

func TestHost_TelemetryHandler(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.NewDefault()
	cfg.Service.PredictionsStoreName = "predictions"
	cfg.Store.Backend = "sqlite"
	cfg.Store.SQLite.Path = filepath.Join(t.TempDir(), "predictions.db")

	h, err := newHost(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("newHost: %v", err)
	}
	defer h.close(ctx)

	srv := httptest.NewServer(h.handler(cfg.Telemetry))
	defer srv.Close()

	resp, err := http.Get(srv.URL + cfg.Telemetry.Health.ReadinessPath)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready status = %d, want 200", resp.StatusCode)
	}
	var ready struct {
		Status string                     `json:"status"`
		Checks map[string]json.RawMessage `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ready); err != nil {
		t.Fatal(err)
	}
	if ready.Status != "ready" || len(ready.Checks) != 2 {
		t.Errorf("unexpected readiness: %s %v", ready.Status, ready.Checks)
	}

	metricsResp, err := http.Get(srv.URL + cfg.Telemetry.Metrics.Path)
	if err != nil {
		t.Fatal(err)
	}
	metricsResp.Body.Close()
	if metricsResp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d, want 200", metricsResp.StatusCode)
	}

	cfg.Telemetry.Health.Enabled = false
	h.collector = nil
	if h.handler(cfg.Telemetry) != nil {
		t.Error("expected no handler with metrics and health disabled")
	}
}

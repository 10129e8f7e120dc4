package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestParseRiskDistribution(t *testing.T) {
	dist, err := ParseRiskDistribution("5,20,50,20,5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dist) != 5 {
		t.Fatalf("expected 5 levels, got %d", len(dist))
	}

	var sum float64
	for _, level := range RiskLevels {
		v, ok := dist[level]
		if !ok {
			t.Errorf("missing level %q", level)
		}
		sum += v
	}
	if math.Abs(sum-100) > 1e-9 {
		t.Errorf("expected values to sum to 100, got %v", sum)
	}
	if dist["moderate"] != 50 {
		t.Errorf("expected moderate 50, got %v", dist["moderate"])
	}
}

func TestParseRiskDistribution_Normalizes(t *testing.T) {
	dist, err := ParseRiskDistribution("1, 1, 1, 1, 0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dist["very_low"] != 25 || dist["very_high"] != 0 {
		t.Errorf("expected 25/0 split, got %v", dist)
	}
}

func TestParseRiskDistribution_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"four values", "10,20,30,40"},
		{"six values", "10,10,20,20,20,20"},
		{"zero sum", "0,0,0,0,0"},
		{"negative value", "10,-5,50,20,5"},
		{"not a number", "10,x,50,20,5"},
		{"NaN", "NaN,1,1,1,1"},
		{"infinite", "Inf,1,1,1,1"},
		{"negative infinite", "1,-Inf,1,1,1"},
		{"sum overflows", "1e308,1e308,1,1,1"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRiskDistribution(tt.input); err == nil {
				t.Errorf("expected error for %q", tt.input)
			}
		})
	}
}

func TestParseModelEndpoints(t *testing.T) {
	env := map[string]string{
		"PROGNOS_MODEL_ENDPOINT_DEFAULT":      "general-v1",
		"PROGNOS_MODEL_ENDPOINT_RELAPSE_RISK": "relapse-v3",
		"PROGNOS_MODEL_ENDPOINT_EMPTY":        "  ",
		"PROGNOS_REGION":                      "eastus",
		"MODEL_ENDPOINT_IGNORED":              "x",
	}

	got := ParseModelEndpoints(env)

	want := map[string]string{
		"default":      "general-v1",
		"relapse_risk": "relapse-v3",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d endpoints, got %d: %v", len(want), len(got), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("endpoint %q: expected %q, got %q", k, v, got[k])
		}
	}
}

func TestFromEnv(t *testing.T) {
	cfg, err := FromEnv(map[string]string{
		"PROGNOS_SERVICE_TYPE":               "cloud",
		"PROGNOS_REGION":                     "eastus",
		"PROGNOS_CLOUD_BASE_URL":             "https://runtime.example.net",
		"PROGNOS_PREDICTIONS_STORE_NAME":     "predictions",
		"PROGNOS_DIGITAL_TWIN_FUNCTION_NAME": "twin",
		"PROGNOS_MOCK_RISK_DISTRIBUTION":     "5,20,50,20,5",
		"PROGNOS_MODEL_ENDPOINT_DEFAULT":     "general-v1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Service.ServiceType != "cloud" {
		t.Errorf("expected service type cloud, got %q", cfg.Service.ServiceType)
	}
	if cfg.Service.ModelEndpoints["default"] != "general-v1" {
		t.Errorf("expected default endpoint, got %v", cfg.Service.ModelEndpoints)
	}
	if cfg.Service.MockRiskDistribution != "5,20,50,20,5" {
		t.Errorf("expected distribution to be kept, got %q", cfg.Service.MockRiskDistribution)
	}
	if cfg.Service.PrivacyLevel != DefaultPrivacyLevel {
		t.Errorf("expected default privacy level, got %q", cfg.Service.PrivacyLevel)
	}
}

func TestFromEnv_CollectsErrors(t *testing.T) {
	_, err := FromEnv(map[string]string{
		"PROGNOS_MOCK_RISK_DISTRIBUTION": "1,2,3,4",
		"PROGNOS_RETENTION_DAYS":         "a week",
		"PROGNOS_METRICS_ENABLED":        "sometimes",
	})
	if err == nil {
		t.Fatal("expected error")
	}

	validationErr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(validationErr.Errors) != 3 {
		t.Errorf("expected 3 field errors, got %d: %v", len(validationErr.Errors), validationErr.Errors)
	}
}

func TestReadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "PROGNOS_SERVICE_TYPE=mock\nPROGNOS_MOCK_DELAY_MS=10\n# comment\nPROGNOS_MODEL_ENDPOINT_DEFAULT=general-v1\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}

	env, err := ReadEnvFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := FromEnv(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Service.MockDelayMS != 10 {
		t.Errorf("expected mock delay 10, got %d", cfg.Service.MockDelayMS)
	}
	if cfg.Service.ModelEndpoints["default"] != "general-v1" {
		t.Errorf("expected default endpoint, got %v", cfg.Service.ModelEndpoints)
	}
}

func TestReadEnvFile_Missing(t *testing.T) {
	if _, err := ReadEnvFile(filepath.Join(t.TempDir(), "nope.env")); err == nil {
		t.Error("expected error for missing env file")
	}
}

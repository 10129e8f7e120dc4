package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/prognos/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "valid JSON config",
			config: Config{Level: "info", Format: "json", RedactPHI: true},
		},
		{
			name:   "valid text config",
			config: Config{Level: "debug", Format: "text"},
		},
		{
			name:   "empty values use defaults",
			config: Config{},
		},
		{
			name:    "invalid log level",
			config:  Config{Level: "invalid", Format: "json"},
			wantErr: true,
		},
		{
			name:    "invalid format",
			config:  Config{Level: "info", Format: "console"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.Writer = &bytes.Buffer{}

			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "warn", Format: "json", Writer: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below warn should be filtered: %s", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("warn and error messages should be logged: %s", out)
	}
}

func TestLogger_RedactsPHI(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "info", Format: "json", RedactPHI: true, Writer: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("contact jane@example.com",
		"note", "ssn 123-45-6789 on file",
		"first_name", "Jane",
		"api_key", "sk-abcdef123456",
		"err", errors.New("lookup failed for 555-123-4567"),
		"payload", map[string]any{"dob": "1980-01-01", "risk": "high"},
	)

	out := buf.String()
	for _, leaked := range []string{"jane@example.com", "123-45-6789", "Jane", "sk-abcdef123456", "555-123-4567", "1980-01-01"} {
		if strings.Contains(out, leaked) {
			t.Errorf("log output leaked %q: %s", leaked, out)
		}
	}
	if !strings.Contains(out, "[REDACTED:SSN]") {
		t.Errorf("expected SSN marker in output: %s", out)
	}
	if !strings.Contains(out, `"risk":"high"`) {
		t.Errorf("non-sensitive map values should be kept: %s", out)
	}
}

func TestLogger_WithRedactsBoundAttrs(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "info", Format: "json", RedactPHI: true, Writer: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.With("email", "john@example.com").Info("bound")

	if strings.Contains(buf.String(), "john@example.com") {
		t.Errorf("bound attribute leaked: %s", buf.String())
	}
}

func TestLogger_SlogSharesRedaction(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "info", Format: "json", RedactPHI: true, Writer: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Slog().With("component", "test").Info("call 555-123-4567")

	if strings.Contains(buf.String(), "555-123-4567") {
		t.Errorf("slog logger leaked phone: %s", buf.String())
	}
}

func TestLogger_NoRedactionWhenDisabled(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "info", Format: "json", Writer: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("raw", "email", "jane@example.com")

	if !strings.Contains(buf.String(), "jane@example.com") {
		t.Errorf("expected raw value without redaction: %s", buf.String())
	}
	if logger.Redactor() != nil {
		t.Error("expected nil redactor when redaction is disabled")
	}
}

func TestLogger_ContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "info", Format: "json", Writer: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithPredictionID(ctx, "pred-1")
	ctx = WithBackend(ctx, "mock")
	ctx = WithModelType(ctx, "relapse_risk")

	logger.InfoContext(ctx, "predicted")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	want := map[string]string{
		"request_id":    "req-1",
		"prediction_id": "pred-1",
		"backend":       "mock",
		"model_type":    "relapse_risk",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("field %q: expected %q, got %v", k, v, entry[k])
		}
	}
}

func TestLogger_WithContextNoFields(t *testing.T) {
	logger, err := New(Config{Writer: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logger.WithContext(context.Background()) != logger {
		t.Error("expected same logger when context carries no fields")
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.LoggingConfig{
		Level:     "debug",
		Format:    "text",
		RedactPHI: true,
	}, nil)

	if cfg.Level != "debug" || cfg.Format != "text" || !cfg.RedactPHI {
		t.Errorf("unexpected mapping: %+v", cfg)
	}
}

func TestContextHandler_SlogLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "info", Format: "json", RedactPHI: true, Writer: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36},
		SpanID:     trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithBackend(ctx, "cloud")

	logger.Slog().InfoContext(ctx, "runtime request failed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	want := map[string]string{
		"backend":  "cloud",
		"trace_id": "4bf92f3577b34da6a3ce929d0e0e4736",
		"span_id":  "00f067aa0ba902b7",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("field %q: expected %q, got %v", k, v, entry[k])
		}
	}
}

func TestContextHandler_NoFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "info", Format: "json", Writer: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Slog().Info("started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	for _, k := range []string{"request_id", "backend", "trace_id"} {
		if _, ok := entry[k]; ok {
			t.Errorf("unexpected field %q in %v", k, entry)
		}
	}
}

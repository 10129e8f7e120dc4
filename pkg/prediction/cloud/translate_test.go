package cloud

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	azruntime "github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"

	"mercator-hq/prognos/pkg/prediction"
)

func azureError(t *testing.T, status int, code string) error {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "https://account.blob.core.windows.net/predictions/x.json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp := &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    req,
	}
	resp.Header.Set("x-ms-error-code", code)
	return azruntime.NewResponseError(resp)
}

func TestTranslate(t *testing.T) {
	target := Target{
		Service:      "model-runtime",
		ResourceType: "endpoint",
		ResourceID:   "relapse",
		ModelType:    prediction.ModelRelapseRisk,
	}

	tests := []struct {
		name string
		err  error
		kind string
	}{
		{"code not found", &RemoteError{StatusCode: http.StatusBadRequest, Code: "ResourceNotFound"}, "resource_not_found"},
		{"status not found", &RemoteError{StatusCode: http.StatusNotFound}, "resource_not_found"},
		{"code validation", &RemoteError{StatusCode: http.StatusInternalServerError, Code: "validation_error"}, "validation"},
		{"status 400", &RemoteError{StatusCode: http.StatusBadRequest, Code: "Whatever"}, "validation"},
		{"status 422", &RemoteError{StatusCode: http.StatusUnprocessableEntity}, "validation"},
		{"code model error", &RemoteError{StatusCode: http.StatusInternalServerError, Code: "ModelError"}, "prediction"},
		{"status 424", &RemoteError{StatusCode: http.StatusFailedDependency}, "prediction"},
		{"throttled", &RemoteError{StatusCode: http.StatusTooManyRequests, Code: "ThrottlingException"}, "service_connection"},
		{"server error", &RemoteError{StatusCode: http.StatusBadGateway}, "service_connection"},
		{"transport", errors.New("connection refused"), "service_connection"},
		{"cancelled", context.Canceled, "service_connection"},
		{"azure blob not found", azureError(t, http.StatusNotFound, "BlobNotFound"), "resource_not_found"},
		{"azure invalid input", azureError(t, http.StatusBadRequest, "InvalidInput"), "validation"},
		{"azure server busy", azureError(t, http.StatusServiceUnavailable, "ServerBusy"), "service_connection"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Translate(tt.err, target)
			if kind := prediction.FaultKind(got); kind != tt.kind {
				t.Errorf("FaultKind = %q, want %q (%v)", kind, tt.kind, got)
			}
		})
	}
}

func TestTranslate_Context(t *testing.T) {
	target := Target{Service: "model-runtime", ResourceType: "endpoint", ResourceID: "relapse", ModelType: "relapse_risk"}

	var nf *prediction.ResourceNotFoundError
	if err := Translate(&RemoteError{StatusCode: http.StatusNotFound}, target); !errors.As(err, &nf) ||
		nf.ResourceType != "endpoint" || nf.ResourceID != "relapse" {
		t.Errorf("unexpected not found error: %v", err)
	}

	var pe *prediction.PredictionError
	if err := Translate(&RemoteError{StatusCode: http.StatusFailedDependency}, target); !errors.As(err, &pe) || pe.ModelType != "relapse_risk" {
		t.Errorf("unexpected prediction error: %v", err)
	}

	var ce *prediction.ServiceConnectionError
	err := Translate(context.Canceled, target)
	if !errors.As(err, &ce) || ce.Service != "model-runtime" {
		t.Errorf("unexpected connection error: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("connection error should wrap its cause")
	}
}

func TestTranslate_PassesThrough(t *testing.T) {
	if Translate(nil, Target{}) != nil {
		t.Error("nil should stay nil")
	}

	fault := &prediction.ConfigurationError{Field: "model_endpoints"}
	if got := Translate(fault, Target{}); got != error(fault) {
		t.Errorf("taxonomy errors must pass through unchanged, got %v", got)
	}
}

func TestModelStatus(t *testing.T) {
	tests := map[string]string{
		"InService":    prediction.ModelActive,
		"in_service":   prediction.ModelActive,
		"Creating":     prediction.ModelTraining,
		"Updating":     prediction.ModelValidating,
		"OutOfService": prediction.ModelInactive,
		"Deleting":     prediction.ModelDeprecated,
		"mystery":      prediction.ModelInactive,
	}
	for in, want := range tests {
		if got := modelStatus(in); got != want {
			t.Errorf("modelStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

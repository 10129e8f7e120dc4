package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/prognos/pkg/config"
	"mercator-hq/prognos/pkg/telemetry/tracing"
)

// Runtime invokes remote model endpoints and functions.
type Runtime interface {
	// Invoke calls endpoint synchronously and returns its raw JSON output.
	Invoke(ctx context.Context, endpoint string, input any) (json.RawMessage, error)

	// Describe returns metadata about endpoint.
	Describe(ctx context.Context, endpoint string) (*EndpointDescription, error)

	// InvokeFunction calls a remote function. With async set the runtime
	// accepts the event and returns before the function runs.
	InvokeFunction(ctx context.Context, function string, payload any, async bool) error

	// Close releases idle connections.
	Close() error
}

// EndpointDescription describes a deployed model endpoint.
type EndpointDescription struct {
	Name               string             `json:"name"`
	ModelType          string             `json:"model_type"`
	Version            string             `json:"version"`
	Status             string             `json:"status"`
	Features           []string           `json:"features"`
	PerformanceMetrics map[string]float64 `json:"performance_metrics"`
	LastUpdated        time.Time          `json:"last_updated"`
}

// RemoteError is a non-2xx runtime response. Code and Message come from the
// {"code", "message"} error body when the runtime sends one.
type RemoteError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("runtime returned %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("runtime returned %d: %s", e.StatusCode, e.Message)
}

// HTTPRuntime is the JSON-over-HTTP Runtime. It pools connections and
// retries transport errors and 5xx responses with exponential backoff.
type HTTPRuntime struct {
	baseURL    string
	apiKey     string
	region     string
	maxRetries int
	backoff    time.Duration

	client *http.Client
	logger *slog.Logger
}

var _ Runtime = (*HTTPRuntime)(nil)

// NewHTTPRuntime creates a runtime client for cfg. region is sent with every
// request in the X-Region header.
func NewHTTPRuntime(cfg config.CloudConfig, region string, logger *slog.Logger) (*HTTPRuntime, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("cloud runtime base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid cloud runtime base URL: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &HTTPRuntime{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		region:     region,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Second,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		logger: logger.With("component", "cloud.runtime"),
	}, nil
}

// Invoke implements Runtime.
func (r *HTTPRuntime) Invoke(ctx context.Context, endpoint string, input any) (json.RawMessage, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invocation: %w", err)
	}
	return r.do(ctx, http.MethodPost, "/endpoints/"+url.PathEscape(endpoint)+"/invocations", body, nil)
}

// Describe implements Runtime.
func (r *HTTPRuntime) Describe(ctx context.Context, endpoint string) (*EndpointDescription, error) {
	raw, err := r.do(ctx, http.MethodGet, "/endpoints/"+url.PathEscape(endpoint), nil, nil)
	if err != nil {
		return nil, err
	}
	var desc EndpointDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("failed to decode endpoint description: %w", err)
	}
	return &desc, nil
}

// InvokeFunction implements Runtime.
func (r *HTTPRuntime) InvokeFunction(ctx context.Context, function string, payload any, async bool) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal function payload: %w", err)
	}
	headers := map[string]string{"X-Invocation-Type": "RequestResponse"}
	if async {
		headers["X-Invocation-Type"] = "Event"
	}
	_, err = r.do(ctx, http.MethodPost, "/functions/"+url.PathEscape(function)+"/invocations", body, headers)
	return err
}

// Close implements Runtime.
func (r *HTTPRuntime) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

// do performs a request, retrying transport errors and 5xx responses. The
// request runs in a client span whose context is propagated to the runtime.
func (r *HTTPRuntime) do(ctx context.Context, method, path string, body []byte, headers map[string]string) (data json.RawMessage, err error) {
	ctx, span := tracing.Global().Start(ctx, "runtime "+method, trace.WithSpanKind(trace.SpanKindClient))
	status, attempts := 0, 0
	defer func() {
		tracing.SetHTTPAttributes(span, method, path, status, attempts-1)
		tracing.SetStatus(span, err != nil, runtimeFault(err))
		span.End()
	}()

	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		attempts++
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * r.backoff
			r.logger.DebugContext(ctx, "retrying runtime request",
				"path", path,
				"attempt", attempt,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if r.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+r.apiKey)
		}
		if r.region != "" {
			req.Header.Set("X-Region", r.region)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		tracing.Inject(ctx, req.Header)

		resp, err := r.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			r.logger.WarnContext(ctx, "runtime request failed, will retry",
				"path", path,
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		status = resp.StatusCode
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}

		remoteErr := decodeRemoteError(resp.StatusCode, data)
		if resp.StatusCode < 500 {
			return nil, remoteErr
		}
		lastErr = remoteErr
		r.logger.WarnContext(ctx, "runtime returned error status, will retry",
			"path", path,
			"status", resp.StatusCode,
			"attempt", attempt+1,
		)
	}

	return nil, lastErr
}

// runtimeFault describes err for a span status without quoting the
// response body.
func runtimeFault(err error) string {
	var remote *RemoteError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &remote):
		if remote.Code != "" {
			return remote.Code
		}
		return http.StatusText(remote.StatusCode)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err.Error()
	default:
		return "transport error"
	}
}

func decodeRemoteError(status int, body []byte) *RemoteError {
	e := &RemoteError{StatusCode: status}
	var wire struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &wire); err == nil && (wire.Code != "" || wire.Message != "") {
		e.Code = wire.Code
		e.Message = wire.Message
		return e
	}
	e.Message = strings.TrimSpace(string(body))
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

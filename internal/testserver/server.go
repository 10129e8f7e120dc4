// Package testserver provides an httptest fake of the remote model runtime
// used by the cloud prediction backend.
package testserver

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// Server is a fake model runtime. Responses are configured per method and
// path; unconfigured routes answer 404 with a runtime error body.
type Server struct {
	server *httptest.Server

	mu        sync.Mutex
	responses map[string]Response
	hits      map[string]int
	requests  []Request
}

// Response defines a canned runtime response.
type Response struct {
	StatusCode int
	Body       any
	Delay      time.Duration
	Headers    map[string]string

	// Failures answers this many requests with 503 before the configured
	// response is returned.
	Failures int
}

// Request is a request received by the server.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// JSON decodes the request body into v.
func (r Request) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// New starts a fake runtime.
func New() *Server {
	s := &Server{
		responses: make(map[string]Response),
		hits:      make(map[string]int),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handler))
	return s
}

// URL returns the server's base URL.
func (s *Server) URL() string {
	return s.server.URL
}

// Close shuts the server down.
func (s *Server) Close() {
	s.server.Close()
}

// SetResponse configures the response for method and path.
func (s *Server) SetResponse(method, path string, r Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[method+" "+path] = r
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestCount returns the number of requests received.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Reset forgets recorded requests and failure counters.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
	s.hits = make(map[string]int)
}

func (s *Server) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	key := r.Method + " " + r.URL.Path

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
	})
	response, ok := s.responses[key]
	s.hits[key]++
	hit := s.hits[key]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorBody("ResourceNotFound", "no route for "+key))
		return
	}

	if response.Delay > 0 {
		select {
		case <-time.After(response.Delay):
		case <-r.Context().Done():
			return
		}
	}

	if hit <= response.Failures {
		writeJSON(w, http.StatusServiceUnavailable, ErrorBody("ServiceUnavailable", "try again"))
		return
	}

	for k, v := range response.Headers {
		w.Header().Set(k, v)
	}

	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, response.Body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	switch v := body.(type) {
	case nil:
		w.WriteHeader(status)
	case string:
		w.WriteHeader(status)
		_, _ = w.Write([]byte(v))
	case []byte:
		w.WriteHeader(status)
		_, _ = w.Write(v)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
}

// InvocationPath is the path that invokes endpoint.
func InvocationPath(endpoint string) string {
	return "/endpoints/" + url.PathEscape(endpoint) + "/invocations"
}

// EndpointPath is the path that describes endpoint.
func EndpointPath(endpoint string) string {
	return "/endpoints/" + url.PathEscape(endpoint)
}

// FunctionPath is the path that invokes function.
func FunctionPath(function string) string {
	return "/functions/" + url.PathEscape(function) + "/invocations"
}

// ErrorBody is a runtime error body.
func ErrorBody(code, message string) map[string]any {
	return map[string]any{"code": code, "message": message}
}

// ErrorResponse is a runtime error response.
func ErrorResponse(status int, code, message string) Response {
	return Response{StatusCode: status, Body: ErrorBody(code, message)}
}

// RiskOutput is a model output for a risk endpoint.
func RiskOutput(level string, score, confidence float64) map[string]any {
	return map[string]any{
		"model_version": "2.3.0",
		"risk_level":    level,
		"risk_score":    score,
		"confidence":    confidence,
		"features_used": []string{"phq9_score", "prior_episodes"},
		"contributing_factors": []map[string]any{
			{"name": "prior_episodes", "weight": 0.6},
			{"name": "phq9_score", "weight": 0.4},
		},
		"feature_importance": map[string]float64{
			"prior_episodes": 0.6,
			"phq9_score":     0.4,
		},
	}
}

// TreatmentOutput is a model output for a treatment response endpoint.
func TreatmentOutput(level string, score, confidence float64) map[string]any {
	return map[string]any{
		"model_version":         "1.4.2",
		"response_level":        level,
		"response_score":        score,
		"confidence":            confidence,
		"features_used":         []string{"baseline_severity"},
		"suggested_adjustments": []string{"Monitor response at 4 weeks"},
	}
}

// OutcomeOutput is a model output for an outcome endpoint.
func OutcomeOutput(metrics map[string]float64, confidence float64) map[string]any {
	return map[string]any{
		"model_version":   "1.1.0",
		"outcome_metrics": metrics,
		"confidence":      confidence,
		"features_used":   []string{"treatment_intensity"},
		"influencing_factors": []map[string]any{
			{"name": "treatment_intensity", "weight": 1.0},
		},
	}
}

// ExplainOutput is a model output for an explain action.
func ExplainOutput(importance map[string]float64) map[string]any {
	return map[string]any{"feature_importance": importance}
}

// EndpointDescription is a describe-endpoint body.
func EndpointDescription(name, modelType, status string) map[string]any {
	return map[string]any{
		"name":                name,
		"model_type":          modelType,
		"version":             "2.3.0",
		"status":              status,
		"features":            []string{"phq9_score", "prior_episodes"},
		"performance_metrics": map[string]float64{"auc": 0.81},
		"last_updated":        "2026-03-01T00:00:00Z",
	}
}

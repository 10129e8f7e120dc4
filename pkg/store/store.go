package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"strings"
	"time"
)

// ErrNotFound indicates that no record exists for a prediction id.
var ErrNotFound = errors.New("prediction record not found")

// Record is a stored prediction.
type Record struct {
	// PredictionID is the unique identifier of the prediction (primary key)
	PredictionID string `json:"prediction_id"`

	// PatientID is the patient the prediction was made for
	PatientID string `json:"patient_id"`

	// ModelType is the model that produced the prediction
	ModelType string `json:"model_type"`

	// PredictionType is "risk", "treatment_response" or "outcome"
	PredictionType string `json:"prediction_type"`

	// CreatedAt is when the prediction was made
	CreatedAt time.Time `json:"created_at"`

	// Result is the raw prediction result as returned to the caller
	Result json.RawMessage `json:"result"`

	// Importance is the feature importance vector, if known
	Importance map[string]float64 `json:"importance,omitempty"`
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	c.Result = append(json.RawMessage(nil), r.Result...)
	c.Importance = maps.Clone(r.Importance)
	return &c
}

// Store persists prediction records keyed by prediction id.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Put inserts or replaces a record.
	Put(ctx context.Context, record *Record) error

	// Get returns the record for predictionID, or ErrNotFound.
	Get(ctx context.Context, predictionID string) (*Record, error)

	// DeleteBefore removes records created before cutoff and returns how
	// many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)

	// Close releases resources held by the store.
	Close() error
}

// Error represents a failure in a storage backend.
type Error struct {
	Backend   string // Storage backend type ("sqlite", "postgres", etc.)
	Operation string // Operation that failed ("put", "get", "delete", etc.)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(backend, operation string, cause error) *Error {
	return &Error{Backend: backend, Operation: operation, Cause: cause}
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// TableName converts a predictions store name into a SQL table name.
// Hyphens become underscores; any other character outside [A-Za-z0-9_]
// is rejected.
func TableName(name string) (string, error) {
	if name == "" {
		return DefaultTableName, nil
	}
	table := strings.ReplaceAll(name, "-", "_")
	if !tableNamePattern.MatchString(table) {
		return "", fmt.Errorf("invalid predictions store name %q", name)
	}
	return table, nil
}

// DefaultTableName is used when no predictions store name is configured.
const DefaultTableName = "predictions"

func validateRecord(r *Record) error {
	if r == nil || r.PredictionID == "" {
		return errors.New("record must have a prediction id")
	}
	return nil
}

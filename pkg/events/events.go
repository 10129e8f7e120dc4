package events

import (
	"context"
	"fmt"
	"time"
)

// Type identifies the kind of event a backend emits.
type Type string

const (
	// Initialization is emitted every time a backend is (re)initialized.
	Initialization Type = "INITIALIZATION"

	// Prediction is emitted after a risk, treatment or outcome prediction.
	Prediction Type = "PREDICTION"

	// Integration is emitted after a digital twin integration.
	Integration Type = "INTEGRATION"

	// Error is emitted when an operation fails during execution or is
	// rejected for containing protected health information.
	Error Type = "ERROR"

	// ConfigChange is emitted when an initialized backend is re-initialized
	// with new options.
	ConfigChange Type = "CONFIG_CHANGE"

	// All is the wildcard key. Observers registered under it receive every
	// event after the type-specific observers.
	All Type = "*"
)

// Types lists every concrete event type.
var Types = []Type{Initialization, Prediction, Integration, Error, ConfigChange}

// Valid reports whether t is a concrete event type or the wildcard.
func (t Type) Valid() bool {
	if t == All {
		return true
	}
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// ParseType converts a case-sensitive name into a Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown event type %q", s)
	}
	return t, nil
}

// Event is a notification delivered to observers.
type Event struct {
	// Type is the event type
	Type Type

	// Source is the name of the backend that emitted the event
	Source string

	// Payload carries event details. It always contains a "timestamp" key
	// set by the bus at dispatch.
	Payload map[string]any

	// Timestamp is the dispatch time assigned by the bus
	Timestamp time.Time
}

// Observer receives events from a Bus.
//
// Observers are compared by identity for Register and Unregister, so their
// dynamic type must be comparable. Use pointer receivers or NewObserverFunc.
type Observer interface {
	Notify(ctx context.Context, event Event) error
}

type funcObserver struct {
	fn func(context.Context, Event) error
}

func (o *funcObserver) Notify(ctx context.Context, event Event) error {
	return o.fn(ctx, event)
}

// NewObserverFunc adapts fn to an Observer. Each call returns a distinct
// observer, so keep the returned value to unregister it later.
func NewObserverFunc(fn func(context.Context, Event) error) Observer {
	return &funcObserver{fn: fn}
}

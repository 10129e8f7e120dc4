package events

import (
	"context"
	"log/slog"
	"sync"
)

// LoggingObserver writes every event to a structured logger. Pass a logger
// backed by a redacting handler so payloads are scrubbed before output.
type LoggingObserver struct {
	logger *slog.Logger
}

// NewLoggingObserver creates a LoggingObserver.
func NewLoggingObserver(logger *slog.Logger) *LoggingObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{logger: logger.With("component", "events.logging_observer")}
}

// Notify implements Observer.
func (o *LoggingObserver) Notify(ctx context.Context, event Event) error {
	level := slog.LevelInfo
	if event.Type == Error {
		level = slog.LevelWarn
	}
	o.logger.Log(ctx, level, "prediction service event",
		"event_type", string(event.Type),
		"source", event.Source,
		"payload", event.Payload,
	)
	return nil
}

// Recorder keeps every event it receives, in order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Notify implements Observer.
func (r *Recorder) Notify(_ context.Context, event Event) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Reset discards all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

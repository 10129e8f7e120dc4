package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"sync"
	"time"
)

// DefaultObserverTimeout bounds a single observer notification.
const DefaultObserverTimeout = 2 * time.Second

// Bus is a synchronous publish/subscribe registry owned by a single backend.
//
// Observers registered for a specific type are notified first, in
// registration order, followed by wildcard observers. A failing or panicking
// observer is logged and never affects its peers or the publisher.
//
// The bus does not sanitize payloads. Publishers are responsible for keeping
// protected health information out of them.
type Bus struct {
	mu        sync.RWMutex
	observers map[Type][]Observer

	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewBus creates an empty bus. A non-positive timeout selects
// DefaultObserverTimeout.
func NewBus(logger *slog.Logger, timeout time.Duration) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultObserverTimeout
	}
	return &Bus{
		observers: make(map[Type][]Observer),
		logger:    logger.With("component", "events.bus"),
		timeout:   timeout,
		now:       time.Now,
	}
}

// SetObserverTimeout changes the per-observer timeout.
func (b *Bus) SetObserverTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultObserverTimeout
	}
	b.mu.Lock()
	b.timeout = timeout
	b.mu.Unlock()
}

// Register adds o to the observers of t. Registering the same observer twice
// for the same type has no effect.
func (b *Bus) Register(t Type, o Observer) error {
	if err := checkObserver(t, o); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if slices.Contains(b.observers[t], o) {
		return nil
	}
	b.observers[t] = append(b.observers[t], o)
	return nil
}

// Unregister removes o from the observers of t. Removing an observer that is
// not registered has no effect.
func (b *Bus) Unregister(t Type, o Observer) error {
	if err := checkObserver(t, o); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.observers[t]
	if i := slices.Index(list, o); i >= 0 {
		list = slices.Delete(slices.Clone(list), i, i+1)
		if len(list) == 0 {
			delete(b.observers, t)
		} else {
			b.observers[t] = list
		}
	}
	return nil
}

// Count returns the number of observers registered under t.
func (b *Bus) Count(t Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.observers[t])
}

// Publish stamps and delivers an event of type t. The payload is copied, so
// later changes by the publisher or by an observer are not seen by others.
// Publish returns the event as delivered.
func (b *Bus) Publish(ctx context.Context, t Type, source string, payload map[string]any) Event {
	ts := b.now().UTC()

	data := make(map[string]any, len(payload)+1)
	maps.Copy(data, payload)
	data["timestamp"] = ts.Format(time.RFC3339Nano)

	event := Event{
		Type:      t,
		Source:    source,
		Payload:   data,
		Timestamp: ts,
	}

	if t == All || !t.Valid() {
		b.logger.Error("refusing to publish event with invalid type", "event_type", string(t))
		return event
	}

	b.mu.RLock()
	targets := make([]Observer, 0, len(b.observers[t])+len(b.observers[All]))
	targets = append(targets, b.observers[t]...)
	targets = append(targets, b.observers[All]...)
	timeout := b.timeout
	b.mu.RUnlock()

	for _, o := range targets {
		delivered := event
		delivered.Payload = maps.Clone(data)
		b.notify(ctx, o, delivered, timeout)
	}

	return event
}

// notify calls a single observer behind a recover boundary.
func (b *Bus) notify(ctx context.Context, o Observer, event Event, timeout time.Duration) {
	octx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("observer panicked",
				"event_type", string(event.Type),
				"observer", fmt.Sprintf("%T", o),
				"panic", fmt.Sprint(r),
			)
		}
		if elapsed := time.Since(start); elapsed > timeout {
			b.logger.Warn("slow observer",
				"event_type", string(event.Type),
				"observer", fmt.Sprintf("%T", o),
				"elapsed_ms", elapsed.Milliseconds(),
				"timeout_ms", timeout.Milliseconds(),
			)
		}
	}()

	if err := o.Notify(octx, event); err != nil {
		b.logger.Warn("observer failed",
			"event_type", string(event.Type),
			"observer", fmt.Sprintf("%T", o),
			"error", err,
		)
	}
}

var errNilObserver = errors.New("observer cannot be nil")

func checkObserver(t Type, o Observer) error {
	if !t.Valid() {
		return fmt.Errorf("unknown event type %q", string(t))
	}
	if o == nil {
		return errNilObserver
	}
	if !reflect.TypeOf(o).Comparable() {
		return fmt.Errorf("observer of type %T is not comparable: use a pointer", o)
	}
	return nil
}

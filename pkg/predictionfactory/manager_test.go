package predictionfactory

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"

	"mercator-hq/prognos/pkg/prediction"
	"mercator-hq/prognos/pkg/prediction/mock"
)

// closeCounter counts Close calls and can fail them.
type closeCounter struct {
	prediction.Backend
	closed  atomic.Int64
	failErr error
}

func (c *closeCounter) Close() error {
	c.closed.Add(1)
	if c.failErr != nil {
		return c.failErr
	}
	return c.Backend.Close()
}

func newCounted(t *testing.T) *closeCounter {
	t.Helper()
	b := mock.New(nil, quietLogger())
	if err := b.Initialize(context.Background(), prediction.Options{}); err != nil {
		t.Fatal(err)
	}
	return &closeCounter{Backend: b}
}

func TestManager_CreateAndGet(t *testing.T) {
	m := NewManager(quietLogger())
	defer m.Close()

	ctx := context.Background()
	for _, name := range []string{"secondary", "primary"} {
		if _, err := m.Create(ctx, name, "mock", prediction.Options{}, WithLogger(quietLogger())); err != nil {
			t.Fatalf("Create(%s): %v", name, err)
		}
	}

	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}
	if got := m.Names(); !slices.Equal(got, []string{"primary", "secondary"}) {
		t.Errorf("Names() = %v", got)
	}

	b, err := m.Get("primary")
	if err != nil {
		t.Fatal(err)
	}
	if b.Name() != "mock" {
		t.Errorf("Name() = %q", b.Name())
	}

	if _, err := m.Get("missing"); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestManager_CreateFailure(t *testing.T) {
	m := NewManager(quietLogger())

	_, err := m.Create(context.Background(), "broken", "quantum", prediction.Options{}, WithLogger(quietLogger()))
	var cfgErr *prediction.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("got %v, want wrapped ConfigurationError", err)
	}
	if m.Count() != 0 {
		t.Errorf("failed backend was added")
	}
}

func TestManager_AddReplacesAndCloses(t *testing.T) {
	m := NewManager(quietLogger())
	first := newCounted(t)
	second := newCounted(t)

	m.Add("primary", first)
	m.Add("primary", second)

	if first.closed.Load() != 1 {
		t.Errorf("replaced backend closed %d times, want 1", first.closed.Load())
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
	got, _ := m.Get("primary")
	if got != second {
		t.Error("Get returned the replaced backend")
	}
}

func TestManager_Remove(t *testing.T) {
	m := NewManager(quietLogger())
	b := newCounted(t)
	m.Add("primary", b)

	if err := m.Remove("primary"); err != nil {
		t.Fatal(err)
	}
	if b.closed.Load() != 1 {
		t.Errorf("removed backend closed %d times, want 1", b.closed.Load())
	}
	if err := m.Remove("primary"); err == nil {
		t.Error("expected error removing an unknown backend")
	}
}

func TestManager_Close(t *testing.T) {
	m := NewManager(quietLogger())
	a, b, c := newCounted(t), newCounted(t), newCounted(t)
	closeErr := errors.New("connection reset")
	c.failErr = closeErr

	m.Add("a", a)
	m.Add("b", b)
	m.Add("c", c)

	err := m.Close()
	if !errors.Is(err, closeErr) {
		t.Errorf("Close() = %v, want %v", err, closeErr)
	}
	for name, cc := range map[string]*closeCounter{"a": a, "b": b, "c": c} {
		if cc.closed.Load() != 1 {
			t.Errorf("backend %s closed %d times, want 1", name, cc.closed.Load())
		}
	}
	if m.Count() != 0 {
		t.Errorf("Count() after Close = %d", m.Count())
	}

	// Closing an empty manager is a no-op.
	if err := m.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

package predictionfactory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"mercator-hq/prognos/pkg/prediction"
)

// Manager holds named backends, for hosts that serve more than one backend
// configuration at once.
//
// Manager is thread-safe and can be used concurrently.
type Manager struct {
	mu       sync.RWMutex
	backends map[string]prediction.Backend
	logger   *slog.Logger
}

// NewManager creates an empty manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		backends: make(map[string]prediction.Backend),
		logger:   logger.With("component", "predictionfactory.manager"),
	}
}

// Add stores b under name. An existing backend with the same name is closed
// and replaced.
func (m *Manager) Add(name string, b prediction.Backend) {
	m.mu.Lock()
	existing, ok := m.backends[name]
	m.backends[name] = b
	total := len(m.backends)
	m.mu.Unlock()

	if ok {
		m.logger.Warn("replacing existing backend", "name", name)
		if err := existing.Close(); err != nil {
			m.logger.Error("error closing replaced backend", "name", name, "error", err)
		}
	}
	m.logger.Info("backend added", "name", name, "backend", b.Name(), "total_backends", total)
}

// Create builds a backend with NewBackend and adds it under name.
func (m *Manager) Create(ctx context.Context, name, backendType string, opts prediction.Options, options ...Option) (prediction.Backend, error) {
	b, err := NewBackend(ctx, backendType, opts, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend %q: %w", name, err)
	}
	m.Add(name, b)
	return b, nil
}

// Get returns the backend stored under name.
func (m *Manager) Get(name string) (prediction.Backend, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.backends[name]
	if !ok {
		return nil, fmt.Errorf("backend %q not found", name)
	}
	return b, nil
}

// Remove closes and forgets the backend stored under name.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	b, ok := m.backends[name]
	delete(m.backends, name)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("backend %q not found", name)
	}
	if err := b.Close(); err != nil {
		return fmt.Errorf("failed to close backend %q: %w", name, err)
	}
	return nil
}

// Names returns the sorted backend names.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.backends))
	for name := range m.backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Count returns the number of backends.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.backends)
}

// Close closes every backend concurrently and empties the manager. It
// returns the first close error; every error is logged.
func (m *Manager) Close() error {
	m.mu.Lock()
	backends := m.backends
	m.backends = make(map[string]prediction.Backend)
	m.mu.Unlock()

	var g errgroup.Group
	for name, b := range backends {
		g.Go(func() error {
			if err := b.Close(); err != nil {
				m.logger.Error("error closing backend", "name", name, "error", err)
				return fmt.Errorf("failed to close backend %q: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	m.logger.Info("backend manager closed", "closed", len(backends))
	return nil
}

package store

import (
	"context"
	"sync"
	"time"
)

// Memory implements Store using an in-process map. Records are copied on
// the way in and out, so callers can never mutate stored state.
type Memory struct {
	records map[string]*Record
	mu      sync.RWMutex
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]*Record)}
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, record *Record) error {
	if err := validateRecord(record); err != nil {
		return newError("memory", "put", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.PredictionID] = record.Clone()
	return nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, predictionID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[predictionID]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

// DeleteBefore implements Store.
func (m *Memory) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, r := range m.records {
		if r.CreatedAt.Before(cutoff) {
			delete(m.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Count implements Store.
func (m *Memory) Count(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.records)), nil
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}

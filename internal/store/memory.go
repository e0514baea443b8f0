package store

import (
	"context"
	"sort"
	"sync"

	"github.com/xkilldash9x/deepsearch-cli/api/schemas"
)

// MemoryStore is an in-process schemas.RecordStore used when no database
// is configured. Safe for concurrent use.
type MemoryStore struct {
	mu         sync.RWMutex
	searches   map[string]schemas.SearchRecord
	iterations map[string][]schemas.Iteration
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		searches:   make(map[string]schemas.SearchRecord),
		iterations: make(map[string][]schemas.Iteration),
	}
}

// CreateSearch inserts a new search record.
func (m *MemoryStore) CreateSearch(_ context.Context, record schemas.SearchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches[record.ID] = record
	return nil
}

// GetSearch loads one search record by id.
func (m *MemoryStore) GetSearch(_ context.Context, id string) (schemas.SearchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.searches[id]
	if !ok {
		return schemas.SearchRecord{}, ErrNotFound
	}
	return record, nil
}

// UpdateSearch moves a search record to a new status, optionally attaching
// the final answer.
func (m *MemoryStore) UpdateSearch(_ context.Context, id, status string, answer *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.searches[id]
	if !ok {
		return ErrNotFound
	}
	record.Status = status
	if answer != nil {
		value := *answer
		record.Answer = &value
	}
	m.searches[id] = record
	return nil
}

// SaveIteration persists one round snapshot, replacing any previous
// snapshot for the same round.
func (m *MemoryStore) SaveIteration(_ context.Context, iteration schemas.Iteration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.iterations[iteration.SearchID]
	for i, it := range existing {
		if it.Round == iteration.Round {
			existing[i] = iteration
			return nil
		}
	}
	m.iterations[iteration.SearchID] = append(existing, iteration)
	return nil
}

// ListIterations returns a search's persisted rounds in ascending order.
func (m *MemoryStore) ListIterations(_ context.Context, searchID string) ([]schemas.Iteration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	iterations := make([]schemas.Iteration, len(m.iterations[searchID]))
	copy(iterations, m.iterations[searchID])
	sort.Slice(iterations, func(i, j int) bool {
		return iterations[i].Round < iterations[j].Round
	})
	return iterations, nil
}

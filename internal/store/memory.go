package store

import (
	"sort"
	"sync"

	"github.com/kmattern/basewatch/internal/analyzer"
)

// Memory keeps assessments in process memory. It backs deployments that run
// without a database path configured.
type Memory struct {
	mu      sync.RWMutex
	records map[string]analyzer.Assessment
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]analyzer.Assessment)}
}

// Put inserts or replaces the assessment for a path.
func (m *Memory) Put(a *analyzer.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[a.Path] = *a
	return nil
}

// Get returns the assessment for one path.
func (m *Memory) Get(path string) (*analyzer.Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.records[path]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

// List returns all assessments ordered by path.
func (m *Memory) List() ([]analyzer.Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]analyzer.Assessment, 0, len(m.records))
	for _, a := range m.records {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Delete removes the assessment for a path.
func (m *Memory) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[path]; !ok {
		return ErrNotFound
	}
	delete(m.records, path)
	return nil
}

// Count returns the number of stored assessments.
func (m *Memory) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error {
	return nil
}

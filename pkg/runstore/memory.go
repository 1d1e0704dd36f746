package runstore

import (
	"context"
	"sync"

	"github.com/Protocol-Lattice/calendar-agent/pkg/orchestrator"
)

// Memory keeps the most recent runs in process.
type Memory struct {
	mu       sync.RWMutex
	capacity int
	runs     []orchestrator.Result
	index    map[string]int
}

// NewMemory keeps at most capacity runs; non-positive means 100.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 100
	}
	return &Memory{capacity: capacity, index: make(map[string]int)}
}

func (m *Memory) Record(_ context.Context, r orchestrator.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i, ok := m.index[r.RunID]; ok {
		m.runs[i] = r
		return nil
	}
	if len(m.runs) == m.capacity {
		delete(m.index, m.runs[0].RunID)
		m.runs = append(m.runs[:0:0], m.runs[1:]...)
		for id, i := range m.index {
			m.index[id] = i - 1
		}
	}
	m.index[r.RunID] = len(m.runs)
	m.runs = append(m.runs, r)
	return nil
}

// Get returns a stored run by ID.
func (m *Memory) Get(runID string) (orchestrator.Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[runID]
	if !ok {
		return orchestrator.Result{}, false
	}
	return m.runs[i], true
}

// Recent returns up to limit summaries, newest first.
func (m *Memory) Recent(_ context.Context, limit int) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.runs) {
		limit = len(m.runs)
	}
	out := make([]Summary, 0, limit)
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, Summarize(m.runs[i]))
	}
	return out, nil
}

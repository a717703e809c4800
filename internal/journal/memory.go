package journal

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory keeps runs in process. It backs tests and the API when no database is configured.
type Memory struct {
	mu      sync.RWMutex
	runs    map[string]Run
	entries map[string][]Entry
}

// NewMemory constructs an empty Memory journal.
func NewMemory() *Memory {
	return &Memory{runs: make(map[string]Run), entries: make(map[string][]Entry)}
}

// StartRun implements Writer.
func (m *Memory) StartRun(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; ok {
		return fmt.Errorf("run %s already started", run.ID)
	}
	m.runs[run.ID] = copyRun(run)
	return nil
}

// Record implements Writer.
func (m *Memory) Record(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[entry.RunID]; !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, entry.RunID)
	}
	m.entries[entry.RunID] = append(m.entries[entry.RunID], entry)
	return nil
}

// FinishRun implements Writer.
func (m *Memory) FinishRun(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	m.runs[run.ID] = copyRun(run)
	return nil
}

// ListRuns implements Reader.
func (m *Memory) ListRuns(_ context.Context, cursor *Cursor, limit int) ([]Run, *Cursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]Run, 0, len(m.runs))
	for _, run := range m.runs {
		if cursor == nil || cursor.after(run) {
			all = append(all, copyRun(run))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].StartedAt.Equal(all[j].StartedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].StartedAt.After(all[j].StartedAt)
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	var next *Cursor
	if limit > 0 && len(all) == limit {
		last := all[len(all)-1]
		next = &Cursor{StartedAt: last.StartedAt, ID: last.ID}
	}
	return all, next, nil
}

// GetRun implements Reader.
func (m *Memory) GetRun(_ context.Context, id string) (*Run, []Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, nil, ErrRunNotFound
	}
	out := copyRun(run)
	return &out, append([]Entry(nil), m.entries[id]...), nil
}

func copyRun(run Run) Run {
	counts := make(map[Outcome]int, len(run.Counts))
	for k, v := range run.Counts {
		counts[k] = v
	}
	run.Counts = counts
	return run
}

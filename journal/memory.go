package journal

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Journal. Entries do not survive a restart; use a
// durable backend when crash recovery matters.
type Memory struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemory creates an empty in-memory journal.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]Entry),
	}
}

// Record upserts an entry.
func (m *Memory) Record(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.VectorIDs = append([]uint64(nil), entry.VectorIDs...)
	m.entries[entry.ID] = entry
	return nil
}

// Pending returns all incomplete entries, oldest first.
func (m *Memory) Pending(_ context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if e.Phase == PhaseComplete {
			continue
		}
		e.VectorIDs = append([]uint64(nil), e.VectorIDs...)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Complete removes the entry.
func (m *Memory) Complete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, id)
	return nil
}

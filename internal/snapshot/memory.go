package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raaihank/mask-sentinel/internal/privacy"
)

// MemoryStore keeps snapshots in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots []*Snapshot // oldest first
	max       int
	now       func() time.Time
}

// NewMemoryStore creates an in-memory store holding at most max snapshots.
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = DefaultMaxSnapshots
	}
	return &MemoryStore{max: max, now: time.Now}
}

// Save stores a copy of mapping, dropping the oldest snapshot when full.
func (m *MemoryStore) Save(_ context.Context, name string, mapping *privacy.MappingTable) (*Snapshot, error) {
	snap := &Snapshot{
		ID:         uuid.NewString(),
		Name:       name,
		CreatedAt:  m.now().UTC(),
		EntryCount: mapping.Len(),
		Mapping:    copyMapping(mapping),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots = append(m.snapshots, snap)
	if over := len(m.snapshots) - m.max; over > 0 {
		m.snapshots = append([]*Snapshot(nil), m.snapshots[over:]...)
	}
	return snap, nil
}

// Get returns a snapshot with a private copy of its mapping table.
func (m *MemoryStore) Get(_ context.Context, id string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.snapshots {
		if s.ID == id {
			out := *s
			out.Mapping = copyMapping(s.Mapping)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// List returns snapshot metadata, newest first.
func (m *MemoryStore) List(_ context.Context) ([]*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Snapshot, 0, len(m.snapshots))
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		out = append(out, m.snapshots[i].Meta())
	}
	return out, nil
}

// Delete removes a snapshot by ID.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.snapshots {
		if s.ID == id {
			m.snapshots = append(m.snapshots[:i], m.snapshots[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

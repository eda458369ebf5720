package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/raaihank/mask-sentinel/internal/privacy"
)

// ErrNotFound is returned when a snapshot ID is unknown or has expired.
var ErrNotFound = errors.New("snapshot not found")

// DefaultMaxSnapshots is the retention cap used when none is configured.
const DefaultMaxSnapshots = 10

// Snapshot is a named, timestamped copy of a mapping table.
type Snapshot struct {
	ID         string                `json:"id"`
	Name       string                `json:"name"`
	CreatedAt  time.Time             `json:"created_at"`
	EntryCount int                   `json:"entry_count"`
	Mapping    *privacy.MappingTable `json:"mapping_table,omitempty"`
}

// Meta returns the snapshot without its mapping table.
func (s *Snapshot) Meta() *Snapshot {
	return &Snapshot{
		ID:         s.ID,
		Name:       s.Name,
		CreatedAt:  s.CreatedAt,
		EntryCount: s.EntryCount,
	}
}

// Store persists mapping-table snapshots. When more than the configured
// maximum are held, the oldest are evicted first.
type Store interface {
	// Save stores a copy of mapping under name and returns the new snapshot.
	Save(ctx context.Context, name string, mapping *privacy.MappingTable) (*Snapshot, error)
	// Get returns a snapshot including its mapping table.
	Get(ctx context.Context, id string) (*Snapshot, error)
	// List returns snapshot metadata, newest first.
	List(ctx context.Context) ([]*Snapshot, error)
	// Delete removes a snapshot.
	Delete(ctx context.Context, id string) error
	Close() error
}

// copyMapping detaches a snapshot from the caller's table.
func copyMapping(mapping *privacy.MappingTable) *privacy.MappingTable {
	out := privacy.NewMappingTable()
	for _, e := range mapping.Entries() {
		out.Set(e.Placeholder, e.Original)
	}
	return out
}

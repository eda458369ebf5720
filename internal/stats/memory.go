package stats

import (
	"context"
	"sync"
	"time"

	"github.com/raaihank/mask-sentinel/internal/privacy"
)

// MemoryRecorder keeps totals in process memory.
type MemoryRecorder struct {
	mu     sync.Mutex
	totals map[string]Total
}

// NewMemoryRecorder creates an empty in-process recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{totals: make(map[string]Total)}
}

// Record adds the counts of one masking pass.
func (m *MemoryRecorder) Record(_ context.Context, summary privacy.Summary) error {
	if len(summary) == 0 {
		return nil
	}
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, st := range summary {
		t := m.totals[key]
		t.RuleKey = key
		t.Description = st.Description
		t.Count += int64(st.Count)
		t.UpdatedAt = now
		m.totals[key] = t
	}
	return nil
}

// Totals returns a copy of the cumulative counts.
func (m *MemoryRecorder) Totals(_ context.Context) (map[string]Total, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Total, len(m.totals))
	for k, v := range m.totals {
		out[k] = v
	}
	return out, nil
}

// Reset clears all counts.
func (m *MemoryRecorder) Reset(_ context.Context) error {
	m.mu.Lock()
	m.totals = make(map[string]Total)
	m.mu.Unlock()
	return nil
}

// Close is a no-op.
func (m *MemoryRecorder) Close() error {
	return nil
}

package stats

import (
	"context"
	"time"

	"github.com/raaihank/mask-sentinel/internal/privacy"
)

// Total is the cumulative count for one rule.
type Total struct {
	RuleKey     string    `json:"rule_key" db:"rule_key"`
	Description string    `json:"description" db:"description"`
	Count       int64     `json:"count" db:"count"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Recorder accumulates per-rule detection counts across masking passes.
type Recorder interface {
	Record(ctx context.Context, summary privacy.Summary) error
	Totals(ctx context.Context) (map[string]Total, error)
	Reset(ctx context.Context) error
	Close() error
}

// GrandTotal sums the counts of every rule.
func GrandTotal(totals map[string]Total) int64 {
	var sum int64
	for _, t := range totals {
		sum += t.Count
	}
	return sum
}

package stats

import (
	"fmt"

	"github.com/raaihank/mask-sentinel/internal/config"
	"github.com/raaihank/mask-sentinel/internal/logger"
)

// New creates the recorder selected by cfg.Backend.
func New(cfg config.StatsConfig, log *logger.Logger) (Recorder, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryRecorder(), nil
	case "postgres":
		return NewPostgresRecorder(cfg, log)
	default:
		return nil, fmt.Errorf("unknown stats backend: %s", cfg.Backend)
	}
}

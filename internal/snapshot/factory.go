package snapshot

import (
	"fmt"

	"github.com/raaihank/mask-sentinel/internal/config"
	"github.com/raaihank/mask-sentinel/internal/logger"
	"go.uber.org/zap"
)

// New creates the store selected by cfg.Backend.
func New(cfg config.SnapshotConfig, log *logger.Logger) (Store, error) {
	if log == nil {
		log = logger.NewNop()
	}

	switch cfg.Backend {
	case "", "memory":
		log.Info("Snapshot store initialized",
			zap.String("backend", "memory"),
			zap.Int("max_snapshots", cfg.MaxSnapshots))
		return NewMemoryStore(cfg.MaxSnapshots), nil
	case "redis":
		return NewRedisStore(cfg, log)
	default:
		return nil, fmt.Errorf("unknown snapshot backend: %s", cfg.Backend)
	}
}

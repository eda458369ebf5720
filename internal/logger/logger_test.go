package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		log, err := New(Config{Level: "info", Format: "json"})
		require.NoError(t, err)
		require.NotNil(t, log)
	})

	t.Run("console format", func(t *testing.T) {
		log, err := New(Config{Level: "debug", Format: "console"})
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(-1))
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := New(Config{Level: "loud", Format: "json"})
		assert.Error(t, err)
	})

	t.Run("file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "sentinel.log")
		log, err := New(Config{
			Level:  "info",
			Format: "json",
			File:   &FileConfig{Enabled: true, Path: path},
		})
		require.NoError(t, err)

		log.WithComponent("test").LogDetectionCounts("pass", map[string]int{"email": 2})
		_ = log.Sync()

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"rule.email":2`)
		assert.Contains(t, string(data), `"total_detections":2`)
		assert.Contains(t, string(data), `"component":"test"`)
	})
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	log.WithRequestID("abc").Info("discarded")
	log.LogDetectionCounts("discarded", nil)
}

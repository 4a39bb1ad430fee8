package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alkime/dictate/internal/config"
	"github.com/alkime/dictate/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logger.Level(&config.Config{Env: "development"}))
	assert.Equal(t, slog.LevelInfo, logger.Level(&config.Config{Env: config.EnvProduction}))
	assert.Equal(t, slog.LevelDebug, logger.Level(&config.Config{Env: config.EnvProduction, LogLevel: "debug"}))
	assert.Equal(t, slog.LevelWarn, logger.Level(&config.Config{Env: "development", LogLevel: "warn"}))
}

func TestNew_ProductionIsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&config.Config{Env: config.EnvProduction}, &buf)

	l.Info("Cycle started", "generation", 3)
	l.Debug("Hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Cycle started", rec["msg"])
	assert.EqualValues(t, 3, rec["generation"])
}

func TestSetupLogger_File(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "logs", "dictate.log")
	l, closer, err := logger.SetupLogger(&config.Config{Env: "development", LogFile: path})
	require.NoError(t, err)

	l.Debug("Capture started", "session", "abc")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Capture started")
	assert.Contains(t, string(data), "session=abc")
}

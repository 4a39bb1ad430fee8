package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alkime/dictate/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetupLogger configures structured logging based on environment. When
// LOG_FILE is set, records go there so the terminal UI keeps stdout; the
// returned closer releases the file.
func SetupLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out, closer = f, f
	}

	logger := New(cfg, out)
	slog.SetDefault(logger)

	return logger, closer, nil
}

// New builds a logger writing to w: JSON in production, text otherwise.
func New(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: Level(cfg)}

	if cfg.Env == config.EnvProduction {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// Level picks the minimum level: debug in development or when LOG_LEVEL
// asks for it.
func Level(cfg *config.Config) slog.Level {
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	if cfg.Env == "development" {
		return slog.LevelDebug
	}

	return slog.LevelInfo
}

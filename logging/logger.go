// Package logging provides a tiny abstraction over slog so components can
// depend on a minimal interface (Logger) while callers plug in any
// structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger is the minimal structured logging interface used across steward.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config controls handler construction for the default logger.
type Config struct {
	Level  slog.Level
	Format string // "json" or "text"
	Output io.Writer
}

// New builds a Logger from config. A nil config yields JSON at info level on
// stdout.
func New(cfg *Config) Logger {
	if cfg == nil {
		cfg = &Config{Level: slog.LevelInfo, Format: "json", Output: os.Stdout}
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return slog.New(handler)
}

// NewNop returns a Logger that discards everything. Useful in tests.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Default returns a Logger backed by slog.Default().
func Default() Logger { return slog.Default() }

// Package logging provides the JSON-lines structured logger habitd uses.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config configures the structured logger.
type Config struct {
	// Output is the writer for log output (default: os.Stderr).
	Output io.Writer

	// Level is the minimum log level (default: info).
	Level slog.Level

	// Debug forces debug level regardless of Level.
	Debug bool
}

// New creates a JSON-lines logger. The timestamp key is "ts" so daemon log
// lines stay grep-compatible with the rest of the tooling:
//
//	{"ts":"2026-02-03T07:30:00Z","level":"INFO","msg":"analysis complete","suggestions":4}
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = &Config{}
	}
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	level := cfg.Level
	if cfg.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	}
	return slog.New(slog.NewJSONHandler(output, opts))
}

// NewFromLevel creates a logger for a config-file level string.
// HABITD_DEBUG=1 overrides to debug.
func NewFromLevel(level string) *slog.Logger {
	cfg := &Config{Level: ParseLevel(level)}
	if os.Getenv("HABITD_DEBUG") == "1" {
		cfg.Debug = true
	}
	return New(cfg)
}

// ParseLevel maps a config level string to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

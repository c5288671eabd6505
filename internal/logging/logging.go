// Package logging builds the slog loggers used by the goclerk binaries.
//
// The SDK itself never constructs a logger; callers hand one to
// Builder.WithLogger. The binaries read a Config from their YAML file and use
// New to get a handler with the service and version attributes attached.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects level, format and destination.
type Config struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	Output string `yaml:"output"` // stdout or stderr
}

// New returns a logger writing to cfg.Output. Unknown values fall back to
// info, json and stderr.
func New(cfg Config, service, version string) *slog.Logger {
	var w io.Writer = os.Stderr
	if strings.EqualFold(cfg.Output, "stdout") {
		w = os.Stdout
	}
	return NewWithWriter(cfg, service, version, w)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(cfg Config, service, version string, w io.Writer) *slog.Logger {
	level := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler.WithAttrs([]slog.Attr{
		slog.String("service", service),
		slog.String("version", version),
	}))
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

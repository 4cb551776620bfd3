// Package logging wraps log/slog with the conventions used across the
// ingest pipeline: a single constructor, per-component field attachment,
// and context-aware logging that picks up a request/control-call ID.
package logging

import (
	"context"
	"log/slog"
	"os"

	"github.com/telhawk-systems/logflow/internal/httpmw"
)

// Logger wraps slog.Logger to provide context-aware structured logging.
type Logger struct {
	*slog.Logger
}

// New creates a Logger at the given level. format is "json" or "text";
// anything else falls back to "json".
func New(level slog.Level, format string) *Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelError,
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Default wraps slog.Default().
func Default() *Logger {
	return &Logger{Logger: slog.Default()}
}

// WithContext returns a logger enriched with the request ID found in ctx,
// if any.
func (l *Logger) WithContext(ctx context.Context) *slog.Logger {
	if id := httpmw.GetRequestID(ctx); id != "" {
		return l.Logger.With(slog.String("request_id", id))
	}
	return l.Logger
}

// With returns a new Logger with the given attributes attached.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component returns a Logger tagged with the given component name, e.g.
// logger.Component("listener") for per-subsystem log lines.
func (l *Logger) Component(name string) *Logger {
	return l.With(slog.String("component", name))
}

// Source returns a Logger tagged with the given source name.
func (l *Logger) Source(name string) *Logger {
	return l.With(slog.String("source", name))
}

// ParseLevel converts a string log level to slog.Level, defaulting to
// slog.LevelInfo for unrecognized values.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetDefault sets l as the process-wide default logger.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}

// Package logging holds the two output channels of webinject.
//
// Diagnostics go through a [log/slog] logger on stderr, tagged with the
// component that emitted them (watch, inject). The Inject, Missing, Update
// and Watching lines a user follows while editing assets are printed by
// [Status] on stdout, so --quiet and --log-level never hide them.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/hupe1980/webinject/internal/config"
)

type ctxKey struct{}

// Component names attached to log records.
const (
	ComponentWatch  = "watch"
	ComponentInject = "inject"
)

// Setup is SetupWithWriter on stderr.
func Setup(cfg *config.Config) *slog.Logger {
	return SetupWithWriter(cfg, os.Stderr)
}

// SetupWithWriter creates the diagnostics logger and installs it as the
// process-wide default. With --quiet only errors are logged, which keeps a
// long-running watch session down to its status lines.
func SetupWithWriter(cfg *config.Config, w io.Writer) *slog.Logger {
	level := ParseLevel(cfg.EffectiveLogLevel())
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler

	switch cfg.LogFormat {
	case config.LogFormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default: // text
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// Discard returns a logger that drops every record. It is the fallback for
// components constructed without a logger in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ForComponent returns the logger carried by ctx with a component attribute.
func ForComponent(ctx context.Context, component string) *slog.Logger {
	return FromContext(ctx).With(slog.String("component", component))
}

// NewContext returns a child context carrying logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from ctx, falling back to slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}

	return slog.Default()
}

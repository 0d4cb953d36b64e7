package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hupe1980/webinject/internal/inject"
	"github.com/hupe1980/webinject/internal/logging"
	"github.com/hupe1980/webinject/internal/marker"
)

// State is the lifecycle state of a Loop.
type State int32

const (
	// StateIdle is the state before Run is called.
	StateIdle State = iota
	// StateWatching is the steady state while notifications are handled.
	StateWatching
	// StateDraining is terminal: the loop was cancelled or its source
	// stopped or failed.
	StateDraining
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateWatching:
		return "watching"
	case StateDraining:
		return "draining"
	default:
		return "idle"
	}
}

// Builder reacts to a changed path.
type Builder interface {
	Build(ctx context.Context, changedPath string) (*inject.Report, error)
}

// Options configures the watch behaviour.
type Options struct {
	// Debounce is the quiet period that closes a batch of notifications.
	// Zero handles every notification on its own.
	Debounce time.Duration

	// Marker is consulted for every changed path; a consumed mark
	// suppresses the build. Nil disables suppression.
	Marker marker.Marker

	// Logger is used for structured logging.
	Logger *slog.Logger
}

// Loop feeds change notifications to a Builder. Batches are handled
// sequentially on the goroutine calling Run, so a rewrite and its mark are
// always complete before the notification it causes is looked at.
type Loop struct {
	builder Builder
	opts    Options
	state   atomic.Int32
	builds  atomic.Int64
}

// NewLoop creates a Loop.
func NewLoop(builder Builder, opts Options) *Loop {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	return &Loop{builder: builder, opts: opts}
}

// State returns the current lifecycle state.
func (l *Loop) State() State { return State(l.state.Load()) }

// Builds returns the number of builds started so far.
func (l *Loop) Builds() int64 { return l.builds.Load() }

// Run handles notifications from src until ctx is cancelled or src stops.
// It returns nil on cancellation or when the source closes, and an error
// when the notification subsystem fails. There is no automatic restart.
func (l *Loop) Run(ctx context.Context, src Source) error {
	l.state.Store(int32(StateWatching))
	defer l.state.Store(int32(StateDraining))

	debouncer := NewDebouncer(l.opts.Debounce)
	defer debouncer.Stop()

	for {
		select {
		case <-ctx.Done():
			l.opts.Logger.Debug("watch cancelled", slog.Int("dropped", debouncer.Len()))
			return nil

		case event, ok := <-src.Events():
			if !ok {
				return nil
			}

			l.opts.Logger.Debug("change", slog.String("op", event.Op.String()), slog.String("path", event.Path))

			if l.opts.Debounce <= 0 {
				l.Handle(ctx, []string{event.Path})
				continue
			}

			debouncer.Add(event.Path)

		case <-debouncer.C():
			l.Handle(ctx, debouncer.Flush())

		case watchErr, ok := <-src.Errors():
			if !ok {
				return nil
			}

			if errors.Is(watchErr, fsnotify.ErrEventOverflow) {
				l.opts.Logger.Warn("change notifications were dropped", slog.String("error", watchErr.Error()))
				continue
			}

			l.opts.Logger.Error("watcher error", slog.String("error", watchErr.Error()))

			return fmt.Errorf("watching: %w", watchErr)
		}
	}
}

// Handle processes one batch of changed paths in order.
func (l *Loop) Handle(ctx context.Context, paths []string) {
	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}

		if marker.IsArtifact(path) {
			continue
		}

		if l.opts.Marker != nil {
			self, err := l.opts.Marker.Consume(path)
			if err != nil {
				l.opts.Logger.Warn("consuming self-write marker failed",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
			}

			if self {
				l.opts.Logger.Debug("suppressed self-write", slog.String("path", path))
				continue
			}
		}

		l.builds.Add(1)

		report, err := l.builder.Build(ctx, path)
		if err != nil && ctx.Err() == nil {
			l.opts.Logger.Warn("build finished with errors",
				slog.String("trigger", path),
				slog.String("error", err.Error()),
			)
		}

		if report != nil {
			l.opts.Logger.Debug("build done",
				slog.String("trigger", path),
				slog.Int("scanned", len(report.Files)),
				slog.Int("updated", len(report.Changed())),
			)
		}
	}
}

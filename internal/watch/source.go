package watch

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Event is a single change notification.
type Event struct {
	Op   fsnotify.Op
	Path string
}

// Source delivers change notifications for a directory tree until closed.
type Source interface {
	// Events delivers notifications. It is closed when the source stops.
	Events() <-chan Event

	// Errors delivers faults of the notification subsystem.
	Errors() <-chan error

	// Close stops the source.
	Close() error
}

// FSSource is a Source backed by fsnotify. Directories created after start
// are added to the watch automatically.
type FSSource struct {
	watcher *fsnotify.Watcher
	events  chan Event
	errors  chan error
	done    chan struct{}
	once    sync.Once
	logger  *slog.Logger
}

// NewFSSource starts watching root and all of its non-hidden
// subdirectories.
func NewFSSource(root string, logger *slog.Logger) (*FSSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	if err := addRecursive(watcher, root); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", root, err)
	}

	s := &FSSource{
		watcher: watcher,
		events:  make(chan Event),
		errors:  make(chan error),
		done:    make(chan struct{}),
		logger:  logger,
	}

	go s.forward()

	return s, nil
}

// Events implements Source.
func (s *FSSource) Events() <-chan Event { return s.events }

// Errors implements Source.
func (s *FSSource) Errors() <-chan error { return s.errors }

// Close implements Source.
func (s *FSSource) Close() error {
	var err error

	s.once.Do(func() {
		close(s.done)
		err = s.watcher.Close()
	})

	return err
}

func (s *FSSource) forward() {
	defer close(s.events)
	defer close(s.errors)

	for {
		select {
		case <-s.done:
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			if !isRelevant(event) {
				continue
			}

			// If a new directory was created, watch it too.
			if event.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if err := addRecursive(s.watcher, event.Name); err != nil {
						s.logger.Warn("watching new directory failed",
							slog.String("path", event.Name),
							slog.String("error", err.Error()),
						)
					}

					continue
				}
			}

			select {
			case s.events <- Event{Op: event.Op, Path: event.Name}:
			case <-s.done:
				return
			}

		case watchErr, ok := <-s.watcher.Errors:
			if !ok {
				return
			}

			select {
			case s.errors <- watchErr:
			case <-s.done:
				return
			}
		}
	}
}

// addRecursive walks root and adds all directories to the watcher.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			// Skip hidden directories (e.g., .git).
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}

			return watcher.Add(path)
		}

		return nil
	})
}

// isRelevant filters out events that cannot change file content.
func isRelevant(event fsnotify.Event) bool {
	if event.Op == 0 {
		return false
	}

	// Only care about write, create, remove, rename.
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Base(event.Name)

	// Ignore editor temporary files and Finder metadata. Other dot-files
	// may be assets referenced by a directive.
	if name == ".DS_Store" || strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") || strings.HasPrefix(name, "#") {
		return false
	}

	return true
}

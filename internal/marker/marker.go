// Package marker implements the self-write suppression protocol: after the
// injector rewrites a file it marks the path, and the watcher consumes the
// mark on the next change notification for that path instead of rebuilding.
//
// A mark suppresses exactly one notification and at most one mark is
// outstanding per path.
package marker

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"
)

// LockSuffix is appended to a source path to form its marker artifact.
const LockSuffix = ".lock"

// Marker records and consumes self-write marks.
type Marker interface {
	// Mark records that path was just written with content.
	Mark(path string, content []byte) error

	// Consume reports whether a change notification for path was caused by
	// a previous Mark, clearing the mark either way.
	Consume(path string) (bool, error)
}

// IsArtifact reports whether path is a marker artifact. Such paths are
// bookkeeping and never sources or assets.
func IsArtifact(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), LockSuffix)
}

// ---------------------------------------------------------------------------
// File markers
// ---------------------------------------------------------------------------

// File marks a path by creating a zero-byte <path>.lock artifact next to it.
// The artifact survives restarts, so a crash between a write and its
// notification leaves it behind to be consumed by the next change.
type File struct{}

// NewFile returns a file based Marker.
func NewFile() *File { return &File{} }

// Mark creates the artifact, keeping an existing one as is.
func (File) Mark(path string, _ []byte) error {
	f, err := os.OpenFile(path+LockSuffix, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec // path is a watched source
	if err != nil {
		return fmt.Errorf("creating marker for %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("creating marker for %s: %w", path, err)
	}

	return nil
}

// Consume removes the artifact and reports whether it existed.
func (File) Consume(path string) (bool, error) {
	err := os.Remove(path + LockSuffix)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	return false, fmt.Errorf("removing marker for %s: %w", path, err)
}

// ---------------------------------------------------------------------------
// Memory markers
// ---------------------------------------------------------------------------

// DefaultGrace bounds how long an in-memory mark waits for its notification.
const DefaultGrace = 5 * time.Second

type entry struct {
	sum     [sha256.Size]byte
	written time.Time
}

// Memory marks a path by remembering the SHA-256 of the content written.
// A notification is suppressed only when the file still holds exactly that
// content, so an edit racing the write is never swallowed. Marks expire
// after the grace period and leave nothing on disk.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	grace   time.Duration
	now     func() time.Time
}

// NewMemory returns an in-memory Marker. A grace of zero selects
// DefaultGrace.
func NewMemory(grace time.Duration) *Memory {
	if grace <= 0 {
		grace = DefaultGrace
	}

	return &Memory{
		entries: make(map[string]entry),
		grace:   grace,
		now:     time.Now,
	}
}

// Mark records the hash of content for path, replacing an older mark.
func (m *Memory) Mark(path string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[path] = entry{sum: sha256.Sum256(content), written: m.now()}

	return nil
}

// Consume clears the mark for path and reports whether the file on disk
// still matches the marked content.
func (m *Memory) Consume(path string) (bool, error) {
	m.mu.Lock()
	e, ok := m.entries[path]
	delete(m.entries, path)
	m.mu.Unlock()

	if !ok || m.now().Sub(e.written) > m.grace {
		return false, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is a watched source
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("reading %s: %w", path, err)
	}

	return sha256.Sum256(data) == e.sum, nil
}

// Pending returns the number of outstanding marks.
func (m *Memory) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

// ---------------------------------------------------------------------------
// Selection
// ---------------------------------------------------------------------------

// Names of the available strategies.
const (
	KindFile   = "file"
	KindMemory = "memory"
)

// New returns the Marker named by kind.
func New(kind string) (Marker, error) {
	switch kind {
	case KindFile, "":
		return NewFile(), nil
	case KindMemory:
		return NewMemory(DefaultGrace), nil
	default:
		return nil, fmt.Errorf("unknown marker %q", kind)
	}
}

package inject

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/hupe1980/webinject/internal/logging"
	"github.com/hupe1980/webinject/internal/marker"
)

// FileResult describes what a rewrite did to one source file.
type FileResult struct {
	// Path is the absolute source path.
	Path string

	// Changed is true when the file content differs after scanning.
	Changed bool

	// Injections lists the directives whose text was replaced.
	Injections []Injection

	// Diff is the unified diff of the change, computed in dry-run mode only.
	Diff string
}

// Rewriter applies a Scanner to whole files and writes changed content back.
type Rewriter struct {
	scanner   *Scanner
	marker    marker.Marker
	opts      Options
	writeFile func(name string, data []byte, perm fs.FileMode) error
}

// NewRewriter creates a Rewriter. A nil marker disables self-write marking.
func NewRewriter(scanner *Scanner, m marker.Marker, opts Options) *Rewriter {
	if opts.Status == nil {
		opts.Status = logging.NewStatus(nil, opts.Root, true)
	}

	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	return &Rewriter{scanner: scanner, marker: m, opts: opts, writeFile: os.WriteFile}
}

// Rewrite scans parsedPath in reaction to a change of changedPath. When the
// content changes the file is written back in place and marked as
// self-written; otherwise nothing is written. The Inject and Update lines
// are printed only once the write has succeeded.
func (r *Rewriter) Rewrite(ctx context.Context, parsedPath, changedPath string) (*FileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(parsedPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", parsedPath, err)
	}

	data, err := os.ReadFile(parsedPath) //nolint:gosec // parsedPath is a watched source
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", parsedPath, err)
	}

	source := string(data)
	changed, injections := r.scanner.Scan(source, parsedPath, changedPath)

	result := &FileResult{Path: parsedPath, Injections: injections}
	if changed == source {
		return result, nil
	}

	result.Changed = true

	if r.opts.DryRun {
		diff, err := Diff(r.opts.Status.Rel(parsedPath), source, changed)
		if err != nil {
			return nil, err
		}

		result.Diff = diff

		return result, nil
	}

	if err := r.writeFile(parsedPath, []byte(changed), info.Mode().Perm()); err != nil {
		return nil, fmt.Errorf("writing %s: %w", parsedPath, err)
	}

	for _, inj := range injections {
		if inj.Missing {
			r.opts.Status.Missing(inj.Asset)
		} else {
			r.opts.Status.Inject(inj.Asset)
		}
	}

	r.opts.Status.Update(parsedPath)

	if r.marker != nil {
		if err := r.marker.Mark(parsedPath, []byte(changed)); err != nil {
			// The rewrite itself succeeded; the worst case is one redundant
			// rebuild of an already up-to-date file.
			r.opts.Logger.Warn("marking self-write failed",
				slog.String("path", parsedPath),
				slog.String("error", err.Error()),
			)
		}
	}

	return result, nil
}

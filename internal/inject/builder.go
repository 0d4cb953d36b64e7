// Package inject finds @inject directives in sketch sources and replaces
// their assigned expression with the literal contents of the referenced
// asset.
//
// A directive is a comment line naming an asset relative to the source
// file, immediately followed by the declaration it fills:
//
//	// @inject "web/index.html"
//	String page = "...";
//
// String declarations receive the minified asset as a string literal, any
// other declared type (and any binary asset) a byte array initializer.
package inject

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hupe1980/webinject/internal/config"
	"github.com/hupe1980/webinject/internal/logging"
	"github.com/hupe1980/webinject/internal/marker"
)

// ErrNotDirectory is returned when the injection root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Options configures a Builder.
type Options struct {
	// Root is the directory tree holding the sources. It is made absolute
	// by NewBuilder.
	Root string

	// Extensions selects the source files scanned for directives.
	Extensions []string

	// Encoder turns assets into literals. Nil selects NewEncoder(nil, nil).
	Encoder *Encoder

	// Marker records self-writes. Nil disables marking.
	Marker marker.Marker

	// DryRun computes diffs instead of writing files.
	DryRun bool

	// Status receives the Update/Inject lines.
	Status *logging.Status

	// Logger is used for structured logging.
	Logger *slog.Logger
}

// DefaultOptions returns options for root with the default source
// extensions and the file marker.
func DefaultOptions(root string) Options {
	return Options{
		Root:       root,
		Extensions: append([]string(nil), config.DefaultExtensions...),
		Marker:     marker.NewFile(),
		Logger:     slog.Default(),
	}
}

// Report summarises one build.
type Report struct {
	// Trigger is the changed path the build reacted to ("" for BuildAll).
	Trigger string

	// Files lists the result for every file scanned.
	Files []*FileResult
}

// Changed returns the results of the files whose content changed.
func (r *Report) Changed() []*FileResult {
	var out []*FileResult

	for _, f := range r.Files {
		if f.Changed {
			out = append(out, f)
		}
	}

	return out
}

// Builder decides which sources to rewrite for a change under Root.
type Builder struct {
	opts     Options
	rewriter *Rewriter
}

// NewBuilder validates opts and creates a Builder.
func NewBuilder(opts Options) (*Builder, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", opts.Root, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", root, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}

	opts.Root = root

	if len(opts.Extensions) == 0 {
		opts.Extensions = append([]string(nil), config.DefaultExtensions...)
	}

	if opts.Encoder == nil {
		opts.Encoder = NewEncoder(nil, nil)
	}

	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	if opts.Status == nil {
		opts.Status = logging.NewStatus(nil, root, true)
	}

	scanner := NewScanner(opts.Encoder, opts.Logger)

	return &Builder{
		opts:     opts,
		rewriter: NewRewriter(scanner, opts.Marker, opts),
	}, nil
}

// Root returns the absolute root directory.
func (b *Builder) Root() string { return b.opts.Root }

// IsSource reports whether path has one of the configured source
// extensions.
func (b *Builder) IsSource(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(b.opts.Extensions, ext)
}

// Sources enumerates the source files under Root. Hidden directories are
// skipped; symlinked files are included. The result is recomputed on
// every call.
func (b *Builder) Sources() ([]string, error) {
	var files []string

	err := filepath.WalkDir(b.opts.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == b.opts.Root {
				return err
			}

			b.opts.Logger.Warn("skipping unreadable path",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)

			return nil
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != b.opts.Root {
				return filepath.SkipDir
			}

			return nil
		}

		if b.IsSource(path) {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing sources in %s: %w", b.opts.Root, err)
	}

	return files, nil
}

// Build reacts to a change of changedPath. If it is a source file, only
// that file is rescanned with every directive eligible. Otherwise it is
// treated as a possible asset and every source file is rescanned; only the
// directives referencing it are re-encoded.
//
// A file that cannot be read or written is logged and skipped; the
// errors of all skipped files are returned joined.
func (b *Builder) Build(ctx context.Context, changedPath string) (*Report, error) {
	changed, err := filepath.Abs(changedPath)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", changedPath, err)
	}

	sources, err := b.Sources()
	if err != nil {
		return nil, err
	}

	report := &Report{Trigger: changed}

	if slices.Contains(sources, changed) {
		return report, b.rewrite(ctx, report, changed, changed)
	}

	var errs []error

	for _, src := range sources {
		if err := b.rewrite(ctx, report, src, changed); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}

			errs = append(errs, err)
		}
	}

	return report, errors.Join(errs...)
}

// BuildAll rescans every source file as if each had just been saved, so
// every directive is brought up to date.
func (b *Builder) BuildAll(ctx context.Context) (*Report, error) {
	sources, err := b.Sources()
	if err != nil {
		return nil, err
	}

	report := &Report{}

	var errs []error

	for _, src := range sources {
		if err := b.rewrite(ctx, report, src, src); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}

			errs = append(errs, err)
		}
	}

	return report, errors.Join(errs...)
}

func (b *Builder) rewrite(ctx context.Context, report *Report, parsedPath, changedPath string) error {
	res, err := b.rewriter.Rewrite(ctx, parsedPath, changedPath)
	if err != nil {
		if ctx.Err() == nil {
			b.opts.Logger.Error("rewrite failed",
				slog.String("path", parsedPath),
				slog.String("error", err.Error()),
			)
		}

		return err
	}

	report.Files = append(report.Files, res)

	return nil
}

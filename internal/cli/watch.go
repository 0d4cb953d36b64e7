package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/webinject/internal/config"
	"github.com/hupe1980/webinject/internal/inject"
	"github.com/hupe1980/webinject/internal/logging"
	"github.com/hupe1980/webinject/internal/marker"
	"github.com/hupe1980/webinject/internal/watch"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [directory]",
		Short: "Watch a sketch directory and inject assets on change",
		Long: `Watch monitors a directory tree and rewrites @inject directives
whenever a source file or a referenced asset changes.

Saving a source file re-injects all of its directives. Saving any other
file re-injects only the directives that reference it. Rewrites made by
webinject itself are recognised and do not trigger another round.

The directory defaults to the current working directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd, args)
		},
	}

	registerSourceFlags(cmd)
	registerWatchFlags(cmd)

	return cmd
}

// resolveDir returns the absolute directory named by args, or the working
// directory. A path that is not a directory yields exit code 2.
func resolveDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 && args[0] != "" {
		dir = args[0]
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", &ExitError{Code: 2, Err: fmt.Errorf("Your input is not a directory: %s", dir)} //nolint:staticcheck // user-facing sentence
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", &ExitError{Code: 2, Err: fmt.Errorf("resolving %s: %w", dir, err)}
	}

	return abs, nil
}

// newBuilder creates the injector for dir from the loaded configuration.
func newBuilder(ctx context.Context, cmd *cobra.Command, dir string, m marker.Marker, dryRun bool) (*inject.Builder, error) {
	cfg := config.FromContext(ctx)

	b, err := inject.NewBuilder(inject.Options{
		Root:       dir,
		Extensions: cfg.Extensions,
		Marker:     m,
		DryRun:     dryRun,
		Status:     logging.NewStatus(cmd.OutOrStdout(), dir, cfg.NoColor),
		Logger:     logging.ForComponent(ctx, logging.ComponentInject),
	})
	if err != nil {
		if errors.Is(err, inject.ErrNotDirectory) || errors.Is(err, fs.ErrNotExist) {
			return nil, &ExitError{Code: 2, Err: err}
		}

		return nil, err
	}

	return b, nil
}

func runWatch(ctx context.Context, cmd *cobra.Command, args []string) error {
	dir, err := resolveDir(args)
	if err != nil {
		return err
	}

	cfg := config.FromContext(ctx)
	logger := logging.ForComponent(ctx, logging.ComponentWatch)

	m, err := marker.New(cfg.Marker)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	builder, err := newBuilder(ctx, cmd, dir, m, false)
	if err != nil {
		return err
	}

	// Trap SIGINT / SIGTERM for graceful shutdown.
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := watch.NewFSSource(dir, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	logging.NewStatus(cmd.OutOrStdout(), dir, cfg.NoColor).Watching(dir)

	if cfg.Initial {
		if _, err := builder.BuildAll(sigCtx); err != nil && sigCtx.Err() == nil {
			logger.Warn("initial injection finished with errors", slog.String("error", err.Error()))
		}
	}

	loop := watch.NewLoop(builder, watch.Options{
		Debounce: cfg.Debounce,
		Marker:   m,
		Logger:   logger,
	})

	if err := loop.Run(sigCtx, src); err != nil {
		return err
	}

	logger.Debug("watcher stopped", slog.Int64("builds", loop.Builds()))

	return nil
}

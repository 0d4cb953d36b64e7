package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/webinject/internal/config"
	"github.com/hupe1980/webinject/internal/logging"
)

type buildOptions struct {
	dryRun bool
}

func newBuildCommand() *cobra.Command {
	opts := &buildOptions{}

	cmd := &cobra.Command{
		Use:   "build [directory]",
		Short: "Inject every directive once and exit",
		Long: `Build scans every source file below the directory and brings all
@inject directives up to date, as if every source file had just been
saved. No self-write markers are left behind.

Use --dry-run to print a unified diff of the pending changes instead of
writing them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), cmd, args, opts)
		},
	}

	registerSourceFlags(cmd)

	f := cmd.Flags()
	f.BoolVar(&opts.dryRun, "dry-run", false, "print diffs instead of writing files")

	return cmd
}

func runBuild(ctx context.Context, cmd *cobra.Command, args []string, opts *buildOptions) error {
	dir, err := resolveDir(args)
	if err != nil {
		return err
	}

	builder, err := newBuilder(ctx, cmd, dir, nil, opts.dryRun)
	if err != nil {
		return err
	}

	report, err := builder.BuildAll(ctx)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	if !opts.dryRun {
		return nil
	}

	status := logging.NewStatus(cmd.OutOrStdout(), dir, config.FromContext(ctx).NoColor)

	changed := report.Changed()
	if len(changed) == 0 {
		status.Diff("")
		return nil
	}

	for _, f := range changed {
		status.Diff(f.Diff)
	}

	return nil
}

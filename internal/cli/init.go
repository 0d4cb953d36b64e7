package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/webinject/internal/config"
)

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a .webinject.yaml with the current settings",
		Long: `Init writes a commented .webinject.yaml into the directory, filled
with the settings currently in effect (defaults, environment and flags).
An existing file is only replaced with --force.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveDir(args)
			if err != nil {
				return err
			}

			path, err := config.WriteSample(dir, config.FromContext(cmd.Context()), force)
			if err != nil {
				if errors.Is(err, config.ErrConfigExists) {
					return &ExitError{Code: 2, Err: fmt.Errorf("%w (use --force to overwrite)", err)}
				}

				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)

			return err
		},
	}

	registerSourceFlags(cmd)
	registerWatchFlags(cmd)

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}

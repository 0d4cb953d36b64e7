package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/webinject/internal/version"
)

func newVersionCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the webinject version",
		Args:  cobra.NoArgs,
		Long: `Print the webinject version with its git commit, build date, Go version
and platform.

A project can pin a minimum webinject release with the min-version key in
.webinject.yaml; compare it against the version printed here when watch,
build or inspect refuse to start.`,
		Example: `  webinject version
  webinject version --json`,
		// Override parent PersistentPreRunE: version needs no config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetInfo()

			if jsonOutput {
				j, err := info.JSON()
				if err != nil {
					return err
				}

				_, err = fmt.Fprintln(cmd.OutOrStdout(), j)

				return err
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), info.String())

			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the build information as JSON")

	return cmd
}

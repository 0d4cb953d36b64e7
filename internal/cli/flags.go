package cli

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/webinject/internal/config"
)

// registerSourceFlags adds the flags selecting which files are scanned for
// directives. They are bound to the "extensions" config key.
func registerSourceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSlice("extensions", config.DefaultExtensions, "source file extensions scanned for @inject directives")
}

// registerWatchFlags adds the flags controlling the watch loop.
func registerWatchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("marker", config.MarkerFile, "self-write suppression: file (<path>.lock) or memory (content hash)")
	f.Duration("debounce", config.DefaultDebounce, "group change notifications arriving within this window")
	f.Bool("initial", false, "inject every directive once before watching")

	_ = cmd.RegisterFlagCompletionFunc("marker", cobra.FixedCompletions(
		[]string{config.MarkerFile, config.MarkerMemory}, cobra.ShellCompDirectiveNoFileComp))
}

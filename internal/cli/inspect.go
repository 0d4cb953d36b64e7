package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/hupe1980/webinject/internal/inject"
)

type inspectOptions struct {
	format string
}

func newInspectCommand() *cobra.Command {
	opts := &inspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect [directory]",
		Short: "List @inject directives without changing anything",
		Long: `Inspect lists every @inject directive below the directory with its
declared type, the resolved asset, whether the asset exists, and the
literal form it would be injected as (string or bytes).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), cmd, args, opts)
		},
	}

	registerSourceFlags(cmd)

	f := cmd.Flags()
	f.StringVar(&opts.format, "format", "table", "output format: table, json, yaml")

	_ = cmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions(
		[]string{"table", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp))

	return cmd
}

// inspectResult is the structured output of the inspect command.
type inspectResult struct {
	Root       string         `json:"root"`
	Directives []inject.Entry `json:"directives"`
}

func runInspect(ctx context.Context, cmd *cobra.Command, args []string, opts *inspectOptions) error {
	switch opts.format {
	case "table", "json", "yaml":
	default:
		return &ExitError{Code: 2, Err: fmt.Errorf("invalid format %q: must be one of table, json, yaml", opts.format)}
	}

	dir, err := resolveDir(args)
	if err != nil {
		return err
	}

	builder, err := newBuilder(ctx, cmd, dir, nil, true)
	if err != nil {
		return err
	}

	entries, err := builder.Inspect()
	if err != nil {
		return err
	}

	result := inspectResult{Root: dir, Directives: entries}
	w := cmd.OutOrStdout()

	switch opts.format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling inspect result: %w", err)
		}

		_, err = fmt.Fprintln(w, string(data))

		return err
	case "yaml":
		data, err := sigsyaml.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshaling inspect result: %w", err)
		}

		_, err = w.Write(data)

		return err
	default:
		return writeInspectTable(w, result)
	}
}

func writeInspectTable(w io.Writer, result inspectResult) error {
	if len(result.Directives) == 0 {
		_, err := fmt.Fprintf(w, "No @inject directives found in %s\n", result.Root)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tLINE\tDECLARATION\tASSET\tMODE")

	for _, e := range result.Directives {
		decl := e.Type + " " + e.Ident
		if e.Array {
			decl += "[]"
		}

		mode := e.Mode
		if !e.Exists {
			mode = "missing"
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Source, strconv.Itoa(e.Line), decl, e.Asset, mode)
	}

	return tw.Flush()
}

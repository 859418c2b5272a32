package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dexscope/internal/resolve"
)

// ClassesResult holds the classes command payload.
type ClassesResult struct {
	Count   int      `json:"count"`
	Classes []string `json:"classes"`
}

// NewClassesCommand creates the classes command.
func NewClassesCommand(rootOpts *RootOptions) *cobra.Command {
	var pkg string

	cmd := &cobra.Command{
		Use:   "classes <dex-file>...",
		Short: "List every class defined in the given DEX archives",
		Long: `List every class name reachable through the archives' class tables,
in definition order. Use --package to restrict output to one package
prefix without decoding unrelated classes.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses(rootOpts, args, pkg, cmd)
		},
	}

	cmd.Flags().StringVar(&pkg, "package", "", "only list classes under this package prefix")

	return cmd
}

func runClasses(opts *RootOptions, paths []string, pkg string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	l, err := buildLoader(paths)
	if err != nil {
		return err
	}
	formatter.VerboseLog("loaded %d archive(s)", len(paths))

	names, err := resolve.New().ClassNames(l)
	if err != nil {
		formatter.Error("E_ENUMERATE", err.Error(), nil)
		return WrapExitError(ExitFailure, "class enumeration failed", err)
	}

	if pkg != "" {
		filtered := names[:0:0]
		for _, n := range names {
			if n == pkg || strings.HasPrefix(n, pkg+".") {
				filtered = append(filtered, n)
			}
		}
		names = filtered
	}

	result := ClassesResult{Count: len(names), Classes: names}
	return formatter.SuccessText(result, func(w io.Writer) {
		for _, n := range names {
			fmt.Fprintln(w, n)
		}
		fmt.Fprintf(w, "%d class(es)\n", len(names))
	})
}

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/dexscope/internal/rulefile"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Queries int    `json:"queries"`
	Error   string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <rules.yaml>",
		Short: "Validate a rule file without running it",
		Long: `Check a rule file against the document schema and reject malformed
rules before any archive is touched. Faster than find for authoring
feedback.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	doc, err := rulefile.Load(path)
	if err != nil {
		result := ValidationResult{Valid: false, Error: err.Error()}
		if outErr := formatter.SuccessText(result, func(w io.Writer) {
			fmt.Fprintf(w, "INVALID: %s\n", err)
		}); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "rule file invalid", err)
	}

	// Schema-valid documents can still carry unrunnable rules (no
	// constraints, all-wildcard parameter lists); surface those here
	// rather than at find time.
	for _, q := range doc.Queries {
		if err := validateQueryRules(q); err != nil {
			result := ValidationResult{Valid: false, Error: fmt.Sprintf("query %s: %v", q.Name, err)}
			if outErr := formatter.SuccessText(result, func(w io.Writer) {
				fmt.Fprintf(w, "INVALID: query %s: %v\n", q.Name, err)
			}); outErr != nil {
				return outErr
			}
			return WrapExitError(ExitFailure, "rule file invalid", err)
		}
	}

	result := ValidationResult{Valid: true, Queries: len(doc.Queries)}
	return formatter.SuccessText(result, func(w io.Writer) {
		fmt.Fprintf(w, "OK: %d quer(ies)\n", len(doc.Queries))
	})
}

func validateQueryRules(q rulefile.Query) error {
	if q.Class == nil {
		return fmt.Errorf("query has no class rule")
	}
	cr, err := q.Class.ClassRule()
	if err != nil {
		return err
	}
	if err := cr.Validate(); err != nil {
		return err
	}
	if q.Field != nil {
		fr, err := q.Field.FieldRule()
		if err != nil {
			return err
		}
		if err := fr.Validate(); err != nil {
			return err
		}
	}
	if q.Method != nil {
		mr, err := q.Method.MethodRule()
		if err != nil {
			return err
		}
		if err := mr.Validate(); err != nil {
			return err
		}
	}
	if q.Constructor != nil {
		ctr, err := q.Constructor.ConstructorRule()
		if err != nil {
			return err
		}
		if err := ctr.Validate(); err != nil {
			return err
		}
	}
	return nil
}

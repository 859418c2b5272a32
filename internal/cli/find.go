package cli

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/dexscope/internal/dex"
	"github.com/roach88/dexscope/internal/loader"
	"github.com/roach88/dexscope/internal/resolve"
	"github.com/roach88/dexscope/internal/rulefile"
)

// FindResult is the find command payload.
type FindResult struct {
	RunID   string        `json:"run_id"`
	Queries []QueryResult `json:"queries"`
}

// QueryResult is the outcome of one named query.
type QueryResult struct {
	Name    string        `json:"name"`
	Error   string        `json:"error,omitempty"`
	Classes []ClassResult `json:"classes,omitempty"`
}

// ClassResult is one matched class with its resolved members.
type ClassResult struct {
	Name         string   `json:"name"`
	Fields       []string `json:"fields,omitempty"`
	Methods      []string `json:"methods,omitempty"`
	Constructors []string `json:"constructors,omitempty"`
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find <rules.yaml> <dex-file>...",
		Short: "Resolve a rule file against DEX archives",
		Long: `Evaluate every query in a rule file against the given archives.

Each query's class rule selects target classes; any field, method, or
constructor rule in the query is then resolved on every matched class.
Queries are independent: one failing query does not stop the rest.`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(rootOpts, args[0], args[1:], cmd)
		},
	}
	return cmd
}

func runFind(opts *RootOptions, rulePath string, dexPaths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	doc, err := rulefile.Load(rulePath)
	if err != nil {
		formatter.Error("E_RULEFILE", err.Error(), nil)
		return WrapExitError(ExitCommandError, "rule file rejected", err)
	}
	l, err := buildLoader(dexPaths)
	if err != nil {
		return err
	}
	formatter.VerboseLog("running %d quer(ies) against %d archive(s)", len(doc.Queries), len(dexPaths))

	result := FindResult{RunID: uuid.NewString()}
	failed := 0
	resolver := resolve.New()
	for _, q := range doc.Queries {
		qr := runQuery(resolver, l, q)
		if qr.Error != "" {
			failed++
		}
		result.Queries = append(result.Queries, qr)
	}

	outErr := formatter.SuccessText(result, func(w io.Writer) {
		writeFindText(w, result)
	})
	if outErr != nil {
		return outErr
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d queries failed", failed, len(doc.Queries)))
	}
	return nil
}

// runQuery evaluates one query: class selection first, then member
// rules on every matched class.
func runQuery(r *resolve.Resolver, l loader.Loader, q rulefile.Query) QueryResult {
	qr := QueryResult{Name: q.Name}

	if q.Class == nil {
		qr.Error = "query has no class rule"
		return qr
	}
	classRule, err := q.Class.ClassRule()
	if err != nil {
		qr.Error = err.Error()
		return qr
	}
	classes, err := r.FindClasses(l, classRule)
	if err != nil {
		qr.Error = err.Error()
		return qr
	}

	for _, c := range classes {
		cr := ClassResult{Name: c.Name}
		if err := resolveMembers(r, l, c, q, &cr); err != nil {
			qr.Error = err.Error()
			return qr
		}
		qr.Classes = append(qr.Classes, cr)
	}
	return qr
}

func resolveMembers(r *resolve.Resolver, l loader.Loader, c *dex.Class, q rulefile.Query, cr *ClassResult) error {
	if q.Field != nil {
		fr, err := q.Field.FieldRule()
		if err != nil {
			return err
		}
		fields, err := r.FindFields(l, c, fr)
		if err != nil {
			return err
		}
		for _, f := range fields {
			cr.Fields = append(cr.Fields, f.String())
		}
	}
	if q.Method != nil {
		mr, err := q.Method.MethodRule()
		if err != nil {
			return err
		}
		methods, err := r.FindMethods(l, c, mr)
		if err != nil {
			return err
		}
		for _, m := range methods {
			cr.Methods = append(cr.Methods, m.String())
		}
	}
	if q.Constructor != nil {
		ctr, err := q.Constructor.ConstructorRule()
		if err != nil {
			return err
		}
		ctors, err := r.FindConstructors(l, c, ctr)
		if err != nil {
			return err
		}
		for _, m := range ctors {
			cr.Constructors = append(cr.Constructors, m.String())
		}
	}
	return nil
}

func writeFindText(w io.Writer, result FindResult) {
	for _, q := range result.Queries {
		if q.Error != "" {
			fmt.Fprintf(w, "query %s: FAILED\n%s\n", q.Name, q.Error)
			continue
		}
		fmt.Fprintf(w, "query %s: %d class(es)\n", q.Name, len(q.Classes))
		for _, c := range q.Classes {
			fmt.Fprintf(w, "  %s\n", c.Name)
			for _, f := range c.Fields {
				fmt.Fprintf(w, "    field %s\n", f)
			}
			for _, m := range c.Methods {
				fmt.Fprintf(w, "    method %s\n", m)
			}
			for _, m := range c.Constructors {
				fmt.Fprintf(w, "    constructor %s\n", m)
			}
		}
	}
}

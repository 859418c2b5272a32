package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/dexscope/internal/store"
)

// IndexResult is the index command payload.
type IndexResult struct {
	Database string        `json:"database"`
	Files    []IndexedFile `json:"files"`
}

// IndexedFile reports one indexed archive.
type IndexedFile struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
	Classes  int    `json:"classes"`
}

// NewIndexCommand creates the index command.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "index <dex-file>...",
		Short: "Build or refresh the persistent class index",
		Long: `Record each archive's class table in a SQLite index keyed by content
hash. Later runs over identical content can enumerate classes without
re-parsing the archive.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(rootOpts, dbPath, args, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "dexscope-index.db", "path to the index database")

	return cmd
}

func runIndex(opts *RootOptions, dbPath string, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	files, err := loadDexFiles(paths)
	if err != nil {
		return err
	}

	db, err := store.Open(dbPath)
	if err != nil {
		formatter.Error("E_INDEX_OPEN", err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot open index", err)
	}
	defer db.Close()

	result := IndexResult{Database: dbPath}
	for i, f := range files {
		if err := db.SaveFile(cmd.Context(), f, paths[i]); err != nil {
			formatter.Error("E_INDEX_WRITE", err.Error(), nil)
			return WrapExitError(ExitFailure, fmt.Sprintf("indexing %s failed", paths[i]), err)
		}
		result.Files = append(result.Files, IndexedFile{
			Path:     paths[i],
			Checksum: store.Checksum(f),
			Classes:  len(f.ClassNames()),
		})
		formatter.VerboseLog("indexed %s (%d classes)", paths[i], len(f.ClassNames()))
	}

	return formatter.SuccessText(result, func(w io.Writer) {
		for _, fr := range result.Files {
			fmt.Fprintf(w, "%s  %s  %d class(es)\n", fr.Checksum, fr.Path, fr.Classes)
		}
	})
}

package cli

import (
	"fmt"
	"os"

	"github.com/roach88/dexscope/internal/dex"
	"github.com/roach88/dexscope/internal/loader"
)

// loadDexFiles parses every path into a dex.File, failing on the first
// unreadable or malformed archive.
func loadDexFiles(paths []string) ([]*dex.File, error) {
	files := make([]*dex.File, 0, len(paths))
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("cannot read %s", path), err)
		}
		f, err := dex.Parse(raw)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("cannot parse %s", path), err)
		}
		files = append(files, f)
	}
	return files, nil
}

// buildLoader assembles the loader a CLI run resolves against: one
// dex-backed loader over all given archives, named after the tool.
func buildLoader(paths []string) (*loader.DexLoader, error) {
	files, err := loadDexFiles(paths)
	if err != nil {
		return nil, err
	}
	return loader.NewDexLoader("dexscope", nil, files...), nil
}

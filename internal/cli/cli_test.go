package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dexscope/internal/dex"
	"github.com/roach88/dexscope/internal/dextest"
	"github.com/roach88/dexscope/internal/store"
)

// writeSampleDex serializes a small fixture archive to disk and returns
// its path.
func writeSampleDex(t *testing.T) string {
	t.Helper()
	raw := dextest.Build(
		dextest.ClassSpec{
			Name:        "com.app.Base",
			AccessFlags: dex.AccPublic,
			Super:       "java.lang.Object",
			Methods: []dextest.MethodSpec{
				{Name: "<init>", Return: "void", AccessFlags: dex.AccPublic | dex.AccConstructor},
			},
		},
		dextest.ClassSpec{
			Name:        "com.app.MainActivity",
			AccessFlags: dex.AccPublic,
			Super:       "com.app.Base",
			Fields: []dextest.FieldSpec{
				{Name: "title", Type: "java.lang.String", AccessFlags: dex.AccPrivate},
			},
			Methods: []dextest.MethodSpec{
				{Name: "<init>", Return: "void", AccessFlags: dex.AccPublic | dex.AccConstructor},
				{Name: "onCreate", Return: "void", Params: []string{"android.os.Bundle"}, AccessFlags: dex.AccPublic},
			},
		},
		dextest.ClassSpec{
			Name:        "org.lib.Util",
			AccessFlags: dex.AccPublic | dex.AccFinal,
			Super:       "java.lang.Object",
		},
	)
	path := filepath.Join(t.TempDir(), "classes.dex")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func writeRuleFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the root command with args and captures stdout.
func execute(args ...string) (string, error) {
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestClassesCommand_Text(t *testing.T) {
	dexPath := writeSampleDex(t)

	out, err := execute("classes", dexPath)
	require.NoError(t, err)
	assert.Contains(t, out, "com.app.Base")
	assert.Contains(t, out, "com.app.MainActivity")
	assert.Contains(t, out, "org.lib.Util")
	assert.Contains(t, out, "3 class(es)")
}

func TestClassesCommand_PackageFilter(t *testing.T) {
	dexPath := writeSampleDex(t)

	out, err := execute("classes", "--package", "com.app", dexPath)
	require.NoError(t, err)
	assert.Contains(t, out, "com.app.MainActivity")
	assert.NotContains(t, out, "org.lib.Util")
	assert.Contains(t, out, "2 class(es)")
}

func TestClassesCommand_JSON(t *testing.T) {
	dexPath := writeSampleDex(t)

	out, err := execute("--format", "json", "classes", dexPath)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Count   int      `json:"count"`
			Classes []string `json:"classes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Data.Count)
	assert.Contains(t, resp.Data.Classes, "com.app.MainActivity")
}

func TestClassesCommand_UnreadablePath(t *testing.T) {
	_, err := execute("classes", filepath.Join(t.TempDir(), "absent.dex"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootCommand_RejectsUnknownFormat(t *testing.T) {
	dexPath := writeSampleDex(t)

	_, err := execute("--format", "xml", "classes", dexPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestFindCommand(t *testing.T) {
	dexPath := writeSampleDex(t)
	rulePath := writeRuleFile(t, `
version: 1
queries:
  - name: main-activity
    class:
      simple_name:
        prefix: Main
    method:
      name:
        eq: onCreate
      param_types: [android.os.Bundle]
`)

	out, err := execute("find", rulePath, dexPath)
	require.NoError(t, err)
	assert.Contains(t, out, "query main-activity: 1 class(es)")
	assert.Contains(t, out, "com.app.MainActivity")
	assert.Contains(t, out, "method void com.app.MainActivity.onCreate(android.os.Bundle)")
}

func TestFindCommand_FailedQuerySetsExitCode(t *testing.T) {
	dexPath := writeSampleDex(t)
	rulePath := writeRuleFile(t, `
version: 1
queries:
  - name: ghost
    class:
      simple_name:
        eq: Nowhere
`)

	out, err := execute("find", rulePath, dexPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "query ghost: FAILED")
	assert.Contains(t, out, "MissingClassError")
}

func TestFindCommand_RejectsBadRuleFile(t *testing.T) {
	dexPath := writeSampleDex(t)
	rulePath := writeRuleFile(t, "version: 1\nqueries: [{name: q, class: {colour: blue}}]\n")

	_, err := execute("find", rulePath, dexPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateCommand(t *testing.T) {
	rulePath := writeRuleFile(t, `
version: 1
queries:
  - name: ok
    class:
      simple_name:
        eq: Widget
`)

	out, err := execute("validate", rulePath)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: 1 quer(ies)")
}

func TestValidateCommand_UnrunnableRule(t *testing.T) {
	// Schema-valid, but the method rule pins nothing.
	rulePath := writeRuleFile(t, `
version: 1
queries:
  - name: vague
    class:
      simple_name:
        eq: Widget
    method:
      param_types: ["*", "*"]
`)

	out, err := execute("validate", rulePath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "INVALID: query vague")
}

func TestIndexCommand(t *testing.T) {
	dexPath := writeSampleDex(t)
	dbPath := filepath.Join(t.TempDir(), "index.db")

	out, err := execute("index", "--db", dbPath, dexPath)
	require.NoError(t, err)
	assert.Contains(t, out, dexPath)
	assert.Contains(t, out, "3 class(es)")

	// The index is readable afterwards and holds the class table.
	db, err := store.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	raw, err := os.ReadFile(dexPath)
	require.NoError(t, err)
	f, err := dex.Parse(raw)
	require.NoError(t, err)

	classes, ok, err := db.LookupFile(context.Background(), store.Checksum(f))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, classes, 3)
}

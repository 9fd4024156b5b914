package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlang/sqtest/internal/store"
)

// suiteFixture is a complete on-disk suite: manifest, corpora, and fake
// compiler/linker scripts. The fake compiler rejects sources containing
// INVALID and otherwise copies the source to output.s; the fake linker
// rejects BADASM assembly and otherwise installs the "assembly" (a shell
// script) as the executable.
type suiteFixture struct {
	dir      string
	manifest string
}

func newSuiteFixture(t *testing.T) *suiteFixture {
	t.Helper()
	dir := t.TempDir()

	sqc := writeScript(t, dir, "sqc.sh", `if grep -q INVALID "$1"; then
  echo "rejected: invalid program" >&2
  exit 1
fi
cp "$1" output.s
`)
	ld := writeScript(t, dir, "ld.sh", `if grep -q BADASM "$1"; then
  echo "assembler: malformed input" >&2
  exit 1
fi
cp "$1" "$4"
chmod +x "$4"
`)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tests", "fail"), 0o755))

	manifest := filepath.Join(dir, "suite.yaml")
	content := fmt.Sprintf(`corpus:
  dir: tests
compiler:
  command: [%q]
linker:
  command: [%q]
  runtime: lib.c
`, sqc, ld)
	require.NoError(t, os.WriteFile(manifest, []byte(content), 0o644))

	return &suiteFixture{dir: dir, manifest: manifest}
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func (f *suiteFixture) addPositive(t *testing.T, name, stdout, golden string) {
	t.Helper()
	src := "#!/bin/sh\nprintf '" + stdout + "'\n"
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "tests", name), []byte(src), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "tests", name+".y"), []byte(golden), 0o644))
}

func (f *suiteFixture) addOrphan(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "tests", name), []byte("program"), 0o644))
}

func (f *suiteFixture) addNegative(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "tests", "fail", name), []byte(content), 0o644))
}

// execute runs the CLI with the given args and returns combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRunAllCasesPass(t *testing.T) {
	f := newSuiteFixture(t)
	f.addPositive(t, "sum.sq", `7\n`, "7\n")
	f.addNegative(t, "bad_syntax.sq", "INVALID junk")

	out, err := execute(t, "run", f.manifest)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ sum.sq")
	assert.Contains(t, out, "✓ fail/bad_syntax.sq")
	assert.Contains(t, out, "Suite Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "✓ All cases passed")
}

func TestRunFailureExitCode(t *testing.T) {
	f := newSuiteFixture(t)
	f.addPositive(t, "sum.sq", `8\n`, "7\n")

	out, err := execute(t, "run", f.manifest)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ sum.sq (comparing: output_mismatch)")
	assert.Contains(t, out, "--- expected ---\n7\n")
	assert.Contains(t, out, "--- actual ---\n8\n")
	assert.Contains(t, out, "Suite Summary: 0 passed, 1 failed, 1 total")
}

func TestRunFailFastFlag(t *testing.T) {
	f := newSuiteFixture(t)
	f.addPositive(t, "a_broken.sq", `9\n`, "1\n")
	f.addPositive(t, "b_ok.sq", `1\n`, "1\n")

	out, err := execute(t, "run", f.manifest, "--fail-fast")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ a_broken.sq")
	assert.NotContains(t, out, "b_ok.sq", "no case after the first failure may run")
	assert.Contains(t, out, "Suite aborted at first failure")
}

func TestRunMissingGoldenAbortsBeforeAnyCase(t *testing.T) {
	f := newSuiteFixture(t)
	f.addOrphan(t, "orphan.sq")
	f.addPositive(t, "sum.sq", `7\n`, "7\n")

	out, err := execute(t, "run", f.manifest)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.NotContains(t, out, "✓ sum.sq", "suite must abort before running any case")
}

func TestRunMissingManifest(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunMissingCompilerTool(t *testing.T) {
	f := newSuiteFixture(t)
	f.addPositive(t, "sum.sq", `7\n`, "7\n")

	manifest := filepath.Join(f.dir, "broken.yaml")
	content := `corpus:
  dir: tests
compiler:
  command: ["/no/such/compiler"]
`
	require.NoError(t, os.WriteFile(manifest, []byte(content), 0o644))

	_, err := execute(t, "run", manifest)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunFilter(t *testing.T) {
	f := newSuiteFixture(t)
	f.addPositive(t, "sum.sq", `7\n`, "7\n")
	f.addPositive(t, "mul.sq", `6\n`, "6\n")

	out, err := execute(t, "run", f.manifest, "--filter", "sum*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ sum.sq")
	assert.NotContains(t, out, "mul.sq")
	assert.Contains(t, out, "Suite Summary: 1 passed, 0 failed, 1 total")
}

func TestRunNoCasesFound(t *testing.T) {
	f := newSuiteFixture(t)

	out, err := execute(t, "run", f.manifest, "--filter", "zzz*")
	require.NoError(t, err)
	assert.Contains(t, out, "No cases found.")
}

func TestRunJSONFormat(t *testing.T) {
	f := newSuiteFixture(t)
	f.addPositive(t, "sum.sq", `7\n`, "7\n")

	out, err := execute(t, "run", f.manifest, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Passed int `json:"passed"`
			Failed int `json:"failed"`
			Total  int `json:"total"`
			Cases  []struct {
				Name    string `json:"name"`
				Verdict string `json:"verdict"`
			} `json:"cases"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Total)
	require.Len(t, resp.Data.Cases, 1)
	assert.Equal(t, "sum.sq", resp.Data.Cases[0].Name)
	assert.Equal(t, "pass", resp.Data.Cases[0].Verdict)
}

func TestRunJSONFormatFailure(t *testing.T) {
	f := newSuiteFixture(t)
	f.addPositive(t, "sum.sq", `8\n`, "7\n")

	out, err := execute(t, "run", f.manifest, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string `json:"status"`
		Error  *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_SUITE_FAILED", resp.Error.Code)
}

func TestRunRecordsHistory(t *testing.T) {
	f := newSuiteFixture(t)
	f.addPositive(t, "sum.sq", `7\n`, "7\n")
	dbPath := filepath.Join(f.dir, "history.db")

	_, err := execute(t, "run", f.manifest, "--db", dbPath)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Passed)
	assert.True(t, runs[0].Pass)
}

package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/revgate/internal/model"
	"github.com/sprite-ai/revgate/internal/report"
)

const credentialDiff = `diff --git a/app/settings.py b/app/settings.py
new file mode 100644
--- /dev/null
+++ b/app/settings.py
@@ -0,0 +1,2 @@
+DEBUG = False
+API_KEY = "sk-live-1234567890"
`

const readmeDiff = `diff --git a/README.md b/README.md
index 1111111..2222222 100644
--- a/README.md
+++ b/README.md
@@ -1,2 +1,3 @@
 # Project
 Some text.
+More text about the project.
`

// resetFlags restores every flag of cmd to its default; the commands are
// package globals and keep flag state between runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	for _, c := range append(cmd.Commands(), cmd) {
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
	}
}

// run executes the root command with args and stdin, returning stdout and
// the exit code.
func run(t *testing.T, stdin string, args ...string) (string, int) {
	t.Helper()
	resetFlags(rootCmd)

	// A config path that does not exist keeps the repository's own config
	// and environment out of the test.
	noConfig := filepath.Join(t.TempDir(), "none.yaml")

	var out, errOut bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append(args, "--config", noConfig))
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	code := exitCode(rootCmd.Execute(), &errOut)
	t.Log(errOut.String())
	return out.String(), code
}

func TestRootCommandHasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, want := range []string{"review", "analyzers", "serve", "version"} {
		assert.True(t, names[want], "root command missing subcommand %q", want)
	}
}

func TestVersionOutput(t *testing.T) {
	// version vars are set via ldflags; in tests they have their defaults
	assert.Equal(t, "dev", version)

	out, code := run(t, "", "version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "revgate dev (commit none, built unknown)\n", out)
}

func TestExitCode(t *testing.T) {
	var stderr bytes.Buffer

	assert.Equal(t, 0, exitCode(nil, &stderr))
	assert.Equal(t, 2, exitCode(&ExitError{Code: 2}, &stderr))
	assert.Empty(t, stderr.String())

	assert.Equal(t, ExitInternal, exitCode(errors.New("boom"), &stderr))
	assert.Equal(t, "revgate: boom\n", stderr.String())
}

func TestReviewStdinBlocks(t *testing.T) {
	out, code := run(t, credentialDiff, "review", "-", "--format", "json")
	assert.Equal(t, 2, code)

	var r report.Report
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, model.VerdictBlock, r.Verdict)
	require.NotEmpty(t, r.Findings)
	assert.Equal(t, "hardcoded-credential", r.Findings[0].Category)
}

func TestReviewStdinPasses(t *testing.T) {
	out, code := run(t, readmeDiff, "review", "-")
	assert.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(out, "PASS"), out)
}

func TestReviewAnalyzerOverride(t *testing.T) {
	out, code := run(t, credentialDiff, "review", "-", "-f", "json", "--analyzers", "hygiene")
	assert.Equal(t, 0, code)

	var r report.Report
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, []string{"hygiene"}, r.Analyzers)
}

func TestReviewInternalErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown analyzer", []string{"review", "-", "--analyzers", "nope"}},
		{"bad format", []string{"review", "-", "--format", "pdf"}},
		{"bad max parallel", []string{"review", "-", "--max-parallel", "0"}},
		{"bad cache backend", []string{"review", "-", "--cache", "floppy"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, code := run(t, credentialDiff, tt.args...)
			assert.Equal(t, ExitInternal, code)
		})
	}
}

func TestReviewEmptyRegistry(t *testing.T) {
	dir := t.TempDir()
	regPath := filepath.Join(dir, "analyzers.yaml")
	require.NoError(t, os.WriteFile(regPath, []byte("version: 1\ninclude_defaults: false\nanalyzers: []\n"), 0o644))
	t.Setenv("REVGATE_REGISTRY_FILE", regPath)

	_, code := run(t, credentialDiff, "review", "-")
	assert.Equal(t, ExitInternal, code)
}

func TestReviewNothingCompleted(t *testing.T) {
	// docs does not apply to a Python change, so nothing runs.
	out, code := run(t, credentialDiff, "review", "-", "-f", "json", "--analyzers", "docs")
	assert.Equal(t, ExitInternal, code)

	var r report.Report
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.True(t, r.Degraded)
	assert.Empty(t, r.Analyzers)

	dir := t.TempDir()
	regPath := filepath.Join(dir, "analyzers.yaml")
	require.NoError(t, os.WriteFile(regPath, []byte(`version: 1
include_defaults: false
analyzers:
  - id: ext
    kind: command
    command: [/bin/false]
    always_run: true
`), 0o644))
	t.Setenv("REVGATE_REGISTRY_FILE", regPath)

	out, code = run(t, credentialDiff, "review", "-", "-f", "json")
	assert.Equal(t, ExitInternal, code)
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.True(t, r.Degraded)
	assert.Equal(t, model.VerdictPass, r.Verdict)
}

func TestReviewStat(t *testing.T) {
	out, code := run(t, credentialDiff, "review", "-", "--stat")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "1 file(s) changed, 2 insertions(+), 0 deletions(-)")
	assert.Contains(t, out, "A app/settings.py")
}

func TestReviewWritesOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")

	out, code := run(t, credentialDiff, "review", "-", "-f", "markdown", "-o", path)
	assert.Equal(t, 2, code)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Review: BLOCK")
}

func TestAnalyzersList(t *testing.T) {
	out, code := run(t, "", "analyzers", "--json")
	require.Equal(t, 0, code)

	var infos []analyzerInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 10)
	assert.Equal(t, "security", infos[0].ID)
	assert.Equal(t, "hygiene", infos[9].ID)

	out, code = run(t, "", "analyzers")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "APPLIES TO")
	assert.Contains(t, out, "always")
}

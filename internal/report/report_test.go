package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/revgate/internal/gate"
	"github.com/sprite-ai/revgate/internal/model"
)

func testSession() *model.ReviewSession {
	cs := model.NewChangeset(
		model.FileChange{Path: "app/db.py", ContentHash: "h1", Added: 12, Deleted: 2},
		model.FileChange{Path: "README.md", ContentHash: "h2", Added: 3},
	)
	findings := []model.MergedFinding{
		{
			Finding: model.Finding{
				ID: "a1", Analyzer: "security", Category: "hardcoded-credential", Severity: model.SeverityCritical,
				File: "app/db.py", Lines: model.LineRange{Start: 4, End: 4},
				Message: `Hardcoded credential: password = "****"`, Fix: "Load it from the environment.",
			},
			Sources: []string{"security"},
		},
		{
			Finding: model.Finding{
				ID: "b2", Analyzer: "complexity", Category: "function-length", Severity: model.SeverityMedium,
				File: "app/db.py", Lines: model.LineRange{Start: 40, End: 95},
				Message: "Function handle is 56 lines | long",
			},
			Sources: []string{"complexity", "maintainability"},
		},
	}
	return &model.ReviewSession{
		ID:        "session-1",
		Changeset: cs,
		Selected:  []string{"security", "complexity", "maintainability", "slow"},
		Outcomes: []model.AnalyzerOutcome{
			{Analyzer: "security", Status: model.StatusOK, Duration: 3 * time.Millisecond},
			{Analyzer: "slow", Status: model.StatusTimeout, Diagnostic: "timed out after 30s", Duration: 30 * time.Second},
			{Analyzer: "complexity", Status: model.StatusOK, Duration: time.Millisecond},
			{Analyzer: "maintainability", Status: model.StatusOK},
		},
		Findings:    findings,
		Diagnostics: []model.Diagnostic{{Analyzer: "ext", Message: "dropped finding x: unknown severity"}},
		Degraded:    true,
		Gate:        gate.Evaluate(findings, gate.DefaultPolicy()),
		State:       model.StateGated,
	}
}

func TestRender(t *testing.T) {
	r := Render(testSession(), nil)

	assert.Equal(t, model.VerdictBlock, r.Verdict)
	assert.Equal(t, Counts{Critical: 1, Medium: 1}, r.Counts)
	assert.Equal(t, Stats{Files: 2, Added: 15, Deleted: 2}, r.Stats)
	assert.Equal(t, "BLOCK: 2 finding(s), 1 blocking, 1 warning (degraded, 1 caveat(s))", r.Summary)

	require.Len(t, r.Findings, 2)
	assert.Equal(t, "app/db.py:4", r.Findings[0].Location)
	assert.Equal(t, model.TierBlocking, r.Findings[0].Tier)
	assert.Equal(t, "app/db.py:40-95", r.Findings[1].Location)
	assert.Equal(t, model.TierWarning, r.Findings[1].Tier)

	require.Len(t, r.Caveats, 1)
	assert.Equal(t, Caveat{Analyzer: "slow", Status: model.StatusTimeout, Reason: "timed out after 30s"}, r.Caveats[0])
}

func TestRenderNoAnalyzers(t *testing.T) {
	s := &model.ReviewSession{
		ID:        "empty",
		Changeset: model.NewChangeset(),
		Degraded:  true,
		Gate:      gate.Evaluate(nil, gate.DefaultPolicy()),
	}
	r := Render(s, nil)

	assert.Equal(t, model.VerdictPass, r.Verdict)
	assert.Equal(t, []Caveat{{Reason: NoAnalyzersCaveat}}, r.Caveats)
	assert.Equal(t, "PASS: no findings (degraded, 1 caveat(s))", r.Summary)
	assert.NotNil(t, r.Findings)
}

func TestJSONHasAllCountsAndNoTimings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeJSON(&buf, Render(testSession(), nil)))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	counts := decoded["counts"].(map[string]any)
	for _, sev := range []string{"critical", "high", "medium", "low"} {
		assert.Contains(t, counts, sev)
	}
	assert.Equal(t, "block", decoded["verdict"])
	assert.NotContains(t, buf.String(), "duration")
	assert.Contains(t, buf.String(), `"severity": "critical"`)
}

func TestEncodingsAreDeterministic(t *testing.T) {
	for _, f := range Formats {
		t.Run(string(f), func(t *testing.T) {
			var a, b bytes.Buffer
			require.NoError(t, Encode(&a, Render(testSession(), nil), f))
			require.NoError(t, Encode(&b, Render(testSession(), nil), f))
			assert.Equal(t, a.String(), b.String())
			assert.NotEmpty(t, a.String())
		})
	}
}

func TestEncodeText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeText(&buf, Render(testSession(), nil)))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "BLOCK: 2 finding(s)"))
	assert.NotContains(t, out, "\x1b[", "no color when not writing to a terminal")
	assert.Contains(t, out, "critical 1  high 0  medium 1  low 0")
	assert.Contains(t, out, "slow timeout: timed out after 30s")
	assert.Contains(t, out, "!!critical app/db.py:4")
	assert.Contains(t, out, "[complexity,maintainability]")
	assert.Contains(t, out, "fix: Load it from the environment.")
	assert.Contains(t, out, "ext: dropped finding x")
}

func TestEncodeMarkdownEscapesCells(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeMarkdown(&buf, Render(testSession(), nil)))
	out := buf.String()

	assert.Contains(t, out, "## Review: BLOCK")
	assert.Contains(t, out, `56 lines \| long`)
	assert.Contains(t, out, "| 1 | 0 | 1 | 0 |")
	assert.Contains(t, out, "- slow timeout: timed out after 30s")
}

func TestEncodeHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeHTML(&buf, Render(testSession(), nil)))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<code>app/db.py:4</code>")
	assert.Contains(t, out, "Review: BLOCK")
	assert.NotContains(t, out, "<script")
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"json": FormatJSON, "TEXT": FormatText, "md": FormatMarkdown, " html ": FormatHTML,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

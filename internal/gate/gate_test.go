package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/sprite-ai/revgate/internal/model"
)

func merged(sev model.Severity, file string) model.MergedFinding {
	return model.MergedFinding{Finding: model.Finding{Severity: sev, File: file, Message: "m"}}
}

func TestEvaluateDefaultPolicy(t *testing.T) {
	tests := []struct {
		name     string
		findings []model.MergedFinding
		want     model.Verdict
		blocking int
		warning  int
	}{
		{"no findings", nil, model.VerdictPass, 0, 0},
		{"low only", []model.MergedFinding{merged(model.SeverityLow, "a")}, model.VerdictPass, 0, 0},
		{"medium", []model.MergedFinding{merged(model.SeverityMedium, "a"), merged(model.SeverityLow, "b")}, model.VerdictWarn, 0, 1},
		{"high", []model.MergedFinding{merged(model.SeverityHigh, "a"), merged(model.SeverityMedium, "b")}, model.VerdictBlock, 1, 1},
		{"critical", []model.MergedFinding{merged(model.SeverityCritical, "a"), merged(model.SeverityHigh, "b")}, model.VerdictBlock, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(tt.findings, DefaultPolicy())
			assert.Equal(t, tt.want, res.Verdict)
			assert.Len(t, res.Blocking, tt.blocking)
			assert.Len(t, res.Warning, tt.warning)
		})
	}
}

func TestVerdictExitCodes(t *testing.T) {
	assert.Equal(t, 0, model.VerdictPass.ExitCode())
	assert.Equal(t, 1, model.VerdictWarn.ExitCode())
	assert.Equal(t, 2, model.VerdictBlock.ExitCode())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy(map[string]string{"medium": "Blocking", "HIGH": "warning"})
	require.NoError(t, err)
	assert.Equal(t, model.TierBlocking, p.Tier(model.SeverityMedium))
	assert.Equal(t, model.TierWarning, p.Tier(model.SeverityHigh))
	assert.Equal(t, model.TierBlocking, p.Tier(model.SeverityCritical), "unmentioned severities keep their default")

	_, err = ParsePolicy(map[string]string{"urgent": "blocking"})
	require.ErrorIs(t, err, ErrInvalidPolicy)
	_, err = ParsePolicy(map[string]string{"low": "loud"})
	require.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestPartialPolicyFallsBack(t *testing.T) {
	p := Policy{model.SeverityLow: model.TierWarning}

	res := Evaluate([]model.MergedFinding{merged(model.SeverityCritical, "a")}, p)
	assert.Equal(t, model.VerdictBlock, res.Verdict)

	res = Evaluate([]model.MergedFinding{merged(model.SeverityLow, "a")}, p)
	assert.Equal(t, model.VerdictWarn, res.Verdict)

	assert.Equal(t, map[string]string{
		"critical": "blocking", "high": "blocking", "medium": "warning", "low": "warning",
	}, p.Strings())
}

func verdictRank(v model.Verdict) int {
	return v.ExitCode()
}

// Raising any finding's severity never lowers the verdict under the default
// policy.
func TestEvaluateMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sevs := rapid.SliceOf(rapid.IntRange(0, 3)).Draw(t, "severities")
		var findings []model.MergedFinding
		for _, s := range sevs {
			findings = append(findings, merged(model.Severity(s), "f"))
		}
		before := Evaluate(findings, DefaultPolicy())

		if len(findings) == 0 {
			return
		}
		i := rapid.IntRange(0, len(findings)-1).Draw(t, "index")
		raised := make([]model.MergedFinding, len(findings))
		copy(raised, findings)
		if raised[i].Severity > model.SeverityCritical {
			raised[i].Severity--
		}
		after := Evaluate(raised, DefaultPolicy())

		assert.GreaterOrEqual(t, verdictRank(after.Verdict), verdictRank(before.Verdict))
	})
}

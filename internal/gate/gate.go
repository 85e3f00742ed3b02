// Package gate turns merged findings into a pass, warn or block verdict.
package gate

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sprite-ai/revgate/internal/model"
)

// ErrInvalidPolicy is returned by ParsePolicy for unknown severities or
// tiers.
var ErrInvalidPolicy = errors.New("invalid quality gate policy")

// Policy assigns a tier to each severity.
type Policy map[model.Severity]model.Tier

// DefaultPolicy blocks on critical and high, warns on medium and treats low
// as advisory.
func DefaultPolicy() Policy {
	return Policy{
		model.SeverityCritical: model.TierBlocking,
		model.SeverityHigh:     model.TierBlocking,
		model.SeverityMedium:   model.TierWarning,
		model.SeverityLow:      model.TierAdvisory,
	}
}

// ParseTier maps a case-insensitive name to a Tier.
func ParseTier(name string) (model.Tier, error) {
	switch t := model.Tier(strings.ToLower(strings.TrimSpace(name))); t {
	case model.TierBlocking, model.TierWarning, model.TierAdvisory:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown tier %q", ErrInvalidPolicy, name)
	}
}

// ParsePolicy builds a policy from severity → tier names, the shape used in
// config files. Severities left out keep their default tier.
func ParsePolicy(raw map[string]string) (Policy, error) {
	p := DefaultPolicy()
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sev, err := model.ParseSeverity(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
		}
		tier, err := ParseTier(raw[k])
		if err != nil {
			return nil, fmt.Errorf("severity %s: %w", sev, err)
		}
		p[sev] = tier
	}
	return p, nil
}

// Tier returns the tier for sev, falling back to the default policy when p
// does not mention it.
func (p Policy) Tier(sev model.Severity) model.Tier {
	if t, ok := p[sev]; ok {
		return t
	}
	return DefaultPolicy()[sev]
}

// Strings renders the policy for config output, in severity order.
func (p Policy) Strings() map[string]string {
	out := make(map[string]string, len(model.Severities))
	for _, sev := range model.Severities {
		out[sev.String()] = string(p.Tier(sev))
	}
	return out
}

// Evaluate applies p to findings. The verdict is block if any finding is in
// the blocking tier, else warn if any is in the warning tier, else pass.
func Evaluate(findings []model.MergedFinding, p Policy) model.QualityGateResult {
	res := model.QualityGateResult{
		Verdict:  model.VerdictPass,
		Blocking: []model.MergedFinding{},
		Warning:  []model.MergedFinding{},
	}
	for _, f := range findings {
		switch p.Tier(f.Severity) {
		case model.TierBlocking:
			res.Blocking = append(res.Blocking, f)
		case model.TierWarning:
			res.Warning = append(res.Warning, f)
		}
	}

	switch {
	case len(res.Blocking) > 0:
		res.Verdict = model.VerdictBlock
	case len(res.Warning) > 0:
		res.Verdict = model.VerdictWarn
	}
	return res
}

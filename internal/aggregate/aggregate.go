// Package aggregate merges the findings of every analyzer in a session into
// one deduplicated, deterministically ordered list.
//
// Findings are grouped by file and category family. Within a group,
// overlapping line ranges chain into one cluster and each cluster becomes a
// single merged finding whose severity is the most severe contributor. The
// result does not depend on the order analyzers finished in.
package aggregate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/sprite-ai/revgate/internal/model"
)

// Aggregate flattens the findings of ok outcomes, drops invalid ones with a
// diagnostic, and merges the rest. A nil fam uses DefaultFamilies.
func Aggregate(outcomes []model.AnalyzerOutcome, fam Families) ([]model.MergedFinding, []model.Diagnostic) {
	if fam == nil {
		fam = DefaultFamilies()
	}

	var (
		valid []model.Finding
		diags []model.Diagnostic
	)
	for _, o := range outcomes {
		if o.Status != model.StatusOK {
			continue
		}
		for _, f := range o.Findings {
			if f.Analyzer == "" {
				f.Analyzer = o.Analyzer
			}
			if reason := invalid(f); reason != "" {
				diags = append(diags, model.Diagnostic{
					Analyzer: f.Analyzer,
					Message:  fmt.Sprintf("dropped finding %s: %s", describe(f), reason),
				})
				continue
			}
			f.Lines = f.Lines.Normalize()
			if f.Lines.FileLevel() {
				f.Lines.End = 0
			}
			valid = append(valid, f)
		}
	}

	merged := make([]model.MergedFinding, 0, len(valid))
	for _, g := range group(valid, fam) {
		for _, c := range cluster(g.findings) {
			merged = append(merged, merge(g.file, g.family, c))
		}
	}
	Sort(merged)
	sortDiagnostics(diags)
	return merged, diags
}

// invalid returns why f cannot be merged, or "" when it is well formed.
func invalid(f model.Finding) string {
	switch {
	case !f.Severity.Valid():
		return "unknown severity"
	case strings.TrimSpace(f.File) == "":
		return "missing file"
	case strings.TrimSpace(f.Category) == "":
		return "missing category"
	case strings.TrimSpace(f.Message) == "":
		return "missing message"
	case f.Lines.Start < 0 || f.Lines.End < 0:
		return "negative line number"
	}
	return ""
}

func describe(f model.Finding) string {
	loc := f.Location()
	switch {
	case loc != "" && f.Category != "":
		return f.Category + " at " + loc
	case loc != "":
		return "at " + loc
	case f.Category != "":
		return f.Category
	}
	return "without location"
}

type fileFamily struct {
	file     string
	family   string
	findings []model.Finding
}

// group buckets findings by (file, family), in key order.
func group(findings []model.Finding, fam Families) []*fileFamily {
	byKey := map[[2]string]*fileFamily{}
	var groups []*fileFamily
	for _, f := range findings {
		k := [2]string{f.File, fam.Of(f.Category)}
		g, ok := byKey[k]
		if !ok {
			g = &fileFamily{file: k[0], family: k[1]}
			byKey[k] = g
			groups = append(groups, g)
		}
		g.findings = append(g.findings, f)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].file != groups[j].file {
			return groups[i].file < groups[j].file
		}
		return groups[i].family < groups[j].family
	})
	return groups
}

type span struct {
	lines    model.LineRange
	findings []model.Finding
}

// cluster chains overlapping ranges into spans. File-level findings form
// their own span.
func cluster(findings []model.Finding) []span {
	sorted := make([]model.Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Lines, sorted[j].Lines
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End < b.End
	})

	var spans []span
	for _, f := range sorted {
		if n := len(spans); n > 0 && spans[n-1].lines.Overlaps(f.Lines) {
			last := &spans[n-1]
			if f.Lines.End > last.lines.End {
				last.lines.End = f.Lines.End
			}
			last.findings = append(last.findings, f)
			continue
		}
		spans = append(spans, span{lines: f.Lines, findings: []model.Finding{f}})
	}
	return spans
}

// DedupeKey is the identity of a merged finding.
func DedupeKey(file, family string, lines model.LineRange) string {
	lines = lines.Normalize()
	return fmt.Sprintf("%s|%s|%d-%d", file, family, lines.Start, lines.End)
}

// merge folds one cluster into a merged finding.
func merge(file, family string, s span) model.MergedFinding {
	ranked := make([]model.Finding, len(s.findings))
	copy(ranked, s.findings)
	sort.SliceStable(ranked, func(i, j int) bool {
		return outranks(ranked[i], ranked[j])
	})
	chosen := ranked[0]

	out := model.MergedFinding{Finding: chosen}
	out.File = file
	out.Lines = s.lines
	out.DedupeKey = DedupeKey(file, family, s.lines)
	sum := sha256.Sum256([]byte(out.DedupeKey))
	out.ID = hex.EncodeToString(sum[:])

	seen := map[string]bool{}
	for _, f := range ranked {
		out.Severity = out.Severity.Max(f.Severity)
		out.Authoritative = out.Authoritative || f.Authoritative
		if out.Fix == "" {
			out.Fix = f.Fix
		}
		if !seen[f.Analyzer] {
			seen[f.Analyzer] = true
			out.Sources = append(out.Sources, f.Analyzer)
		}
	}
	sort.Strings(out.Sources)
	return out
}

// outranks orders the contributors of a cluster by whose message wins:
// authoritative first, then the longest message, then the lowest analyzer
// id, then the lexicographically smallest message.
func outranks(a, b model.Finding) bool {
	if a.Authoritative != b.Authoritative {
		return a.Authoritative
	}
	if len(a.Message) != len(b.Message) {
		return len(a.Message) > len(b.Message)
	}
	if a.Analyzer != b.Analyzer {
		return a.Analyzer < b.Analyzer
	}
	if a.Message != b.Message {
		return a.Message < b.Message
	}
	if a.Category != b.Category {
		return a.Category < b.Category
	}
	if a.Severity != b.Severity {
		return a.Severity.MoreSevere(b.Severity)
	}
	return a.Fix < b.Fix
}

// Sort orders merged findings by severity, file, start line and dedupe key.
func Sort(findings []model.MergedFinding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Severity != b.Severity {
			return a.Severity.MoreSevere(b.Severity)
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Lines.Start != b.Lines.Start {
			return a.Lines.Start < b.Lines.Start
		}
		return a.DedupeKey < b.DedupeKey
	})
}

func sortDiagnostics(diags []model.Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Analyzer != diags[j].Analyzer {
			return diags[i].Analyzer < diags[j].Analyzer
		}
		return diags[i].Message < diags[j].Message
	})
}

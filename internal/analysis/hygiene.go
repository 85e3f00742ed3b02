package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sprite-ai/revgate/internal/model"
)

const defaultMaxChangedLines = 1000

var (
	conflictMarkerPattern = regexp.MustCompile(`^(<{7}|>{7})(\s|$)`)
	debugStatementPattern = regexp.MustCompile(`\b(pdb\.set_trace\(\)|breakpoint\(\)|binding\.pry|byebug)|^\s*debugger;?\s*$|\bruntime\.Breakpoint\(\)`)
)

// HygienePass runs on every changeset regardless of language. It catches
// unresolved merge conflicts, leftover debugger hooks, committed binaries and
// oversized file changes.
//
// Config keys: max_changed_lines (default 1000).
func HygienePass(f model.FileChange, cfg map[string]string) []model.Finding {
	var findings []model.Finding

	if f.IsBinary && !f.IsDeleted {
		findings = append(findings, model.Finding{
			Category: "binary-file",
			Severity: model.SeverityLow,
			File:     f.Path,
			Message:  "Binary file added or modified",
		})
	}

	if limit := configInt(cfg, "max_changed_lines", defaultMaxChangedLines); f.Changed() > limit {
		findings = append(findings, model.Finding{
			Category: "large-change",
			Severity: model.SeverityLow,
			File:     f.Path,
			Message:  fmt.Sprintf("File changes %d lines (limit %d); consider splitting the change", f.Changed(), limit),
		})
	}

	// A bare "=======" is only a conflict separator after an opening marker;
	// on its own it is a setext heading underline.
	opened := false
	for _, line := range f.AddedLines() {
		isMarker := conflictMarkerPattern.MatchString(line.Text)
		if isMarker && strings.HasPrefix(line.Text, "<") {
			opened = true
		}
		if opened && line.Text == "=======" {
			isMarker = true
		}
		switch {
		case isMarker:
			findings = append(findings, model.Finding{
				Category: "merge-conflict",
				Severity: model.SeverityCritical,
				File:     f.Path,
				Lines:    lineAt(line.NewNum),
				Message:  fmt.Sprintf("Unresolved merge conflict marker: %s", strings.TrimSpace(line.Text)),
				Fix:      "Resolve the conflict and remove the markers.",
			})
		case debugStatementPattern.MatchString(line.Text):
			findings = append(findings, model.Finding{
				Category: "debug-statement",
				Severity: model.SeverityMedium,
				File:     f.Path,
				Lines:    lineAt(line.NewNum),
				Message:  fmt.Sprintf("Debugger hook left in code: %s", strings.TrimSpace(line.Text)),
				Fix:      "Remove the breakpoint before merging.",
			})
		}
	}

	return findings
}

package analysis

import (
	"fmt"
	"strings"

	"github.com/sprite-ai/revgate/internal/model"
)

const (
	defaultMaxFunctionLines = 50
	defaultMaxNesting       = 5
)

// funcSpan is a function added by the change, in new-file line numbers.
type funcSpan struct {
	name  string
	start int
	end   int
}

func (s funcSpan) length() int {
	return s.end - s.start + 1
}

// functionSpans finds functions whose definitions were added by the change.
// A function ends at the first added line indented no deeper than its
// definition, at a context line, or at the end of its hunk.
func functionSpans(f model.FileChange) []funcSpan {
	var spans []funcSpan

	for _, h := range f.Hunks {
		var open *funcSpan
		indent := 0

		closeOpen := func() {
			if open != nil {
				spans = append(spans, *open)
				open = nil
			}
		}

		for _, l := range h.Lines {
			if l.Op == model.OpDelete {
				continue
			}
			if l.Op == model.OpContext {
				closeOpen()
				continue
			}

			trimmed := strings.TrimSpace(l.Text)
			if name := funcName(l.Text); name != "" && !isCommentLine(l.Text) {
				closeOpen()
				open = &funcSpan{name: name, start: l.NewNum, end: l.NewNum}
				indent = indentWidth(l.Text)
				continue
			}
			if open == nil {
				continue
			}
			if trimmed == "" {
				continue
			}
			if indentWidth(l.Text) <= indent {
				if strings.HasPrefix(trimmed, "}") || trimmed == "end" {
					open.end = l.NewNum
				}
				closeOpen()
				continue
			}
			open.end = l.NewNum
		}
		closeOpen()
	}

	return spans
}

// funcName returns the name defined on a line, or "" when the line does not
// start a function.
func funcName(text string) string {
	for _, pat := range funcDefPatterns {
		if m := pat.FindStringSubmatch(text); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

// indentWidth counts leading whitespace, with a tab worth four spaces.
func indentWidth(text string) int {
	w := 0
	for _, r := range text {
		switch r {
		case ' ':
			w++
		case '\t':
			w += 4
		default:
			return w
		}
	}
	return w
}

// ComplexityPass flags long functions and deeply nested added code.
//
// Config keys: max_function_lines (default 50), max_nesting (default 5).
func ComplexityPass(f model.FileChange, cfg map[string]string) []model.Finding {
	maxLines := configInt(cfg, "max_function_lines", defaultMaxFunctionLines)
	maxNesting := configInt(cfg, "max_nesting", defaultMaxNesting)

	var findings []model.Finding

	for _, s := range functionSpans(f) {
		if s.length() <= maxLines {
			continue
		}
		findings = append(findings, model.Finding{
			Category: "function-length",
			Severity: model.SeverityMedium,
			File:     f.Path,
			Lines:    model.LineRange{Start: s.start, End: s.end},
			Message:  fmt.Sprintf("Function %s is %d lines long (limit %d)", s.name, s.length(), maxLines),
			Fix:      "Split the function into smaller helpers.",
		})
	}

	// Report a run of over-nested lines once, at its first line.
	inRun := false
	for _, l := range addedLines(f, true) {
		depth := indentWidth(l.Text) / 4
		if strings.TrimSpace(l.Text) == "" {
			continue
		}
		if depth <= maxNesting {
			inRun = false
			continue
		}
		if inRun {
			continue
		}
		inRun = true
		findings = append(findings, model.Finding{
			Category: "nesting-depth",
			Severity: model.SeverityLow,
			File:     f.Path,
			Lines:    lineAt(l.NewNum),
			Message:  fmt.Sprintf("Code nested %d levels deep (limit %d)", depth, maxNesting),
			Fix:      "Return early or extract the inner block.",
		})
	}

	return findings
}

package analysis

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sprite-ai/revgate/internal/model"
)

const defaultMaxLineLength = 120

var (
	emptyLinkPattern    = regexp.MustCompile(`\[[^\]]+\]\(\s*\)`)
	headingSpacePattern = regexp.MustCompile(`^#{1,6}[^#\s]`)
	placeholderPattern  = regexp.MustCompile(`(?i)\b(lorem ipsum|TBD|coming soon)\b`)
)

// DocumentationPass checks prose files for formatting slips. Every finding
// is low severity.
//
// Config keys: max_line_length (default 120).
func DocumentationPass(f model.FileChange, cfg map[string]string) []model.Finding {
	maxLen := configInt(cfg, "max_line_length", defaultMaxLineLength)
	markdown := strings.HasSuffix(strings.ToLower(f.Path), ".md")

	var findings []model.Finding
	add := func(category string, line int, msg string) {
		findings = append(findings, model.Finding{
			Category: category,
			Severity: model.SeverityLow,
			File:     f.Path,
			Lines:    lineAt(line),
			Message:  msg,
		})
	}

	inFence := false
	for _, line := range f.AddedLines() {
		text := line.Text
		if markdown && strings.HasPrefix(strings.TrimSpace(text), "```") {
			inFence = !inFence
			continue
		}

		if strings.TrimRight(text, " \t") != text && !strings.HasSuffix(text, "  ") {
			add("trailing-whitespace", line.NewNum, "Trailing whitespace")
		}
		if n := utf8.RuneCountInString(text); n > maxLen && !strings.Contains(text, "://") {
			add("long-line", line.NewNum, fmt.Sprintf("Line is %d characters (limit %d)", n, maxLen))
		}
		if inFence || !markdown {
			continue
		}
		if emptyLinkPattern.MatchString(text) {
			add("empty-link", line.NewNum, fmt.Sprintf("Link has no target: %s", strings.TrimSpace(text)))
		}
		if headingSpacePattern.MatchString(text) {
			add("heading-format", line.NewNum, "Heading marker is not followed by a space")
		}
		if m := placeholderPattern.FindString(text); m != "" {
			add("placeholder-text", line.NewNum, fmt.Sprintf("Placeholder text left in documentation: %q", m))
		}
	}

	return findings
}

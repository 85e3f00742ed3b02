package analysis

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"

	"github.com/sprite-ai/revgate/internal/model"
)

const (
	defaultLongFunctionLines = 40
	duplicateWindow          = 4
)

var (
	// Commented-out code patterns (lines that look like disabled code, not natural comments)
	commentedCodePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?://|#)\s*(?:func |def |class |if |for |while |return |import |from |const |let |var |pub fn )`),
		regexp.MustCompile(`^\s*(?://|#)\s*\w+(\.\w+)*\s*(\(.*\)\s*;?|:?=\s*\S+)\s*$`),
		regexp.MustCompile(`^\s*{?/\*.*\b(?:func|def|class|return)\b.*\*/}?`),
	}

	todoPattern = regexp.MustCompile(`\b(TODO|FIXME|HACK|XXX)\b`)
)

// MaintainabilityPass flags code that will be costly to keep: long
// functions, commented-out code, leftover work markers and blocks repeated
// within the file.
//
// Config keys: max_function_lines (default 40).
func MaintainabilityPass(f model.FileChange, cfg map[string]string) []model.Finding {
	var findings []model.Finding
	findings = append(findings, checkLongFunctions(f, configInt(cfg, "max_function_lines", defaultLongFunctionLines))...)
	findings = append(findings, checkCommentedCode(f)...)
	findings = append(findings, checkTodos(f)...)
	findings = append(findings, checkDuplication(f)...)
	return findings
}

func checkLongFunctions(f model.FileChange, limit int) []model.Finding {
	var findings []model.Finding
	for _, s := range functionSpans(f) {
		if s.length() <= limit {
			continue
		}
		findings = append(findings, model.Finding{
			Category: "long-function",
			Severity: model.SeverityLow,
			File:     f.Path,
			Lines:    lineAt(s.start),
			Message:  fmt.Sprintf("Function %s exceeds %d lines", s.name, limit),
		})
	}
	return findings
}

func checkCommentedCode(f model.FileChange) []model.Finding {
	var findings []model.Finding
	for _, line := range addedLines(f, false) {
		for _, pat := range commentedCodePatterns {
			if pat.MatchString(line.Text) {
				findings = append(findings, model.Finding{
					Category: "commented-code",
					Severity: model.SeverityLow,
					File:     f.Path,
					Lines:    lineAt(line.NewNum),
					Message:  fmt.Sprintf("Commented-out code: %s", strings.TrimSpace(line.Text)),
					Fix:      "Delete dead code; version control keeps the history.",
				})
				break
			}
		}
	}
	return findings
}

func checkTodos(f model.FileChange) []model.Finding {
	var findings []model.Finding
	for _, line := range addedLines(f, false) {
		if marker := todoPattern.FindString(line.Text); marker != "" {
			findings = append(findings, model.Finding{
				Category: "todo-marker",
				Severity: model.SeverityLow,
				File:     f.Path,
				Lines:    lineAt(line.NewNum),
				Message:  fmt.Sprintf("%s marker added: %s", marker, strings.TrimSpace(line.Text)),
			})
		}
	}
	return findings
}

// checkDuplication slides a window over the non-trivial added lines and
// reports every repeat of an earlier block, pointing back at the first.
func checkDuplication(f model.FileChange) []model.Finding {
	var added []model.HunkLine
	for _, l := range f.AddedLines() {
		trimmed := strings.TrimSpace(l.Text)
		if trimmed == "" || trimmed == "{" || trimmed == "}" || trimmed == ")" || trimmed == "(" {
			continue
		}
		added = append(added, l)
	}

	first := make(map[string]int)
	var findings []model.Finding
	lastReported := 0
	for i := 0; i+duplicateWindow <= len(added); i++ {
		h := hashBlock(added[i : i+duplicateWindow])
		start, seen := first[h]
		if !seen {
			first[h] = added[i].NewNum
			continue
		}
		// A repeated block slides through several windows; report it once.
		if lastReported != 0 && added[i].NewNum <= lastReported {
			continue
		}
		end := added[i+duplicateWindow-1].NewNum
		lastReported = end
		findings = append(findings, model.Finding{
			Category: "duplicate-code",
			Severity: model.SeverityLow,
			File:     f.Path,
			Lines:    model.LineRange{Start: added[i].NewNum, End: end},
			Message:  fmt.Sprintf("Near-duplicate code block (also at line %d)", start),
			Fix:      "Extract the shared logic into a function.",
		})
	}
	return findings
}

func hashBlock(lines []model.HunkLine) string {
	h := sha256.New()
	for _, l := range lines {
		h.Write([]byte(strings.TrimSpace(l.Text)))
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sprite-ai/revgate/internal/model"
)

var (
	// SQL assembled from strings instead of bound parameters.
	sqlConcatPatterns = compilePatterns(
		`(?i)\b(SELECT|INSERT\s+INTO|UPDATE|DELETE\s+FROM)\b.*["']\s*(\+|\.\.|\|\|)\s*\w`,
		`(?i)(Sprintf|\.format|String\.format)\(\s*["'][^"']*\b(SELECT|INSERT\s+INTO|UPDATE|DELETE\s+FROM)\b[^"']*%[sv]`,
		`(?i)\bf["'][^"']*\b(SELECT|INSERT\s+INTO|UPDATE|DELETE\s+FROM)\b[^"']*\{`,
		`(?i)\b(SELECT|INSERT\s+INTO|UPDATE|DELETE\s+FROM)\b[^"']*["']\s*%\s*\(?\w`,
	)

	// Broad exception handling
	broadExceptPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)except\s*:`),                            // Python: bare except
		regexp.MustCompile(`(?i)except\s+Exception\s*:`),                // Python: catch-all
		regexp.MustCompile(`(?i)catch\s*\(\s*(Exception|Throwable)\s+\w*\s*\)`), // Java/C#
		regexp.MustCompile(`(?i)rescue\s*$`),                            // Ruby: bare rescue
		regexp.MustCompile(`(?i)rescue\s+StandardError`),                // Ruby: catch-all
		regexp.MustCompile(`\.catch\(\s*(?:_|\(\s*\))\s*=>\s*\{\s*\}\s*\)`), // JS: swallowed promise error
	}

	// Errors assigned to the blank identifier in Go.
	ignoredErrPattern = regexp.MustCompile(`^\s*_\s*(,\s*_\s*)?=\s*\w+(\.\w+)*\(`)
)

// CorrectnessPass flags constructs that are likely bugs: SQL built by string
// concatenation, swallowed exceptions and discarded errors.
func CorrectnessPass(f model.FileChange, _ map[string]string) []model.Finding {
	var findings []model.Finding

	for _, line := range addedLines(f, true) {
		text := strings.TrimSpace(line.Text)

		if matchesAny(sqlConcatPatterns, line.Text) {
			findings = append(findings, model.Finding{
				Category: "sql-injection",
				Severity: model.SeverityHigh,
				File:     f.Path,
				Lines:    lineAt(line.NewNum),
				Message:  fmt.Sprintf("SQL query built by string concatenation: %s", text),
				Fix:      "Use a parameterized query and pass values as bound arguments.",
			})
			continue
		}

		if matchesAny(broadExceptPatterns, line.Text) {
			findings = append(findings, model.Finding{
				Category: "error-handling",
				Severity: model.SeverityMedium,
				File:     f.Path,
				Lines:    lineAt(line.NewNum),
				Message:  fmt.Sprintf("Broad exception handling: %s", text),
				Fix:      "Catch the specific exception types you can handle.",
			})
			continue
		}

		if f.Language == "go" && ignoredErrPattern.MatchString(line.Text) {
			findings = append(findings, model.Finding{
				Category: "error-handling",
				Severity: model.SeverityLow,
				File:     f.Path,
				Lines:    lineAt(line.NewNum),
				Message:  fmt.Sprintf("Result discarded with blank identifier: %s", text),
			})
		}
	}

	return findings
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

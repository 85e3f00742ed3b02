package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sprite-ai/revgate/internal/model"
)

// Security patterns grouped by category.
var securityPatterns = []struct {
	category string
	patterns []*regexp.Regexp
	severity model.Severity
	message  string
	fix      string
}{
	{
		category: "hardcoded-credential",
		patterns: compilePatterns(
			`(?i)\b\w*(password|passwd|pwd|secret|api[_-]?key|access[_-]?key|auth[_-]?token|token)\w*["']?\s*(:=|=|:)\s*["'][^"'\s]{4,}["']`,
			`\bAKIA[0-9A-Z]{16}\b`,
			`-----BEGIN (RSA |EC |OPENSSH |DSA )?PRIVATE KEY-----`,
		),
		severity: model.SeverityCritical,
		message:  "Hardcoded credential",
		fix:      "Load the secret from the environment or a secret manager and rotate the exposed value.",
	},
	{
		category: "insecure-transport",
		patterns: compilePatterns(
			`InsecureSkipVerify\s*:\s*true`,
			`(?i)verify\s*=\s*False`,
			`(?i)rejectUnauthorized\s*:\s*false`,
		),
		severity: model.SeverityHigh,
		message:  "TLS certificate verification disabled",
		fix:      "Keep certificate verification enabled; trust a custom CA instead.",
	},
	{
		category: "command-execution",
		patterns: compilePatterns(
			`(?i)(os\.system|subprocess\.(call|run|Popen)\(.*shell\s*=\s*True|child_process|shell_exec)`,
			`exec\.Command\("(ba|z)?sh",\s*"-c"`,
			`(?i)\beval\(`,
		),
		severity: model.SeverityHigh,
		message:  "Shell or eval execution",
		fix:      "Pass arguments as a list and avoid evaluating untrusted input.",
	},
	{
		category: "weak-crypto",
		patterns: compilePatterns(
			`(?i)\b(md5|sha1)\.(New|Sum)`,
			`(?i)hashlib\.(md5|sha1)\(`,
			`(?i)\bDES\b|\bRC4\b`,
		),
		severity: model.SeverityMedium,
		message:  "Weak cryptographic primitive",
		fix:      "Use SHA-256 or stronger, and an AEAD cipher.",
	},
}

func compilePatterns(patterns ...string) []*regexp.Regexp {
	var compiled []*regexp.Regexp
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// SecurityPass flags security-sensitive lines added by the change.
func SecurityPass(f model.FileChange, _ map[string]string) []model.Finding {
	var findings []model.Finding

	for _, line := range addedLines(f, false) {
		for _, sp := range securityPatterns {
			for _, re := range sp.patterns {
				if !re.MatchString(line.Text) {
					continue
				}
				text := strings.TrimSpace(line.Text)
				if sp.category == "hardcoded-credential" {
					text = redact(text)
				}
				findings = append(findings, model.Finding{
					Category: sp.category,
					Severity: sp.severity,
					File:     f.Path,
					Lines:    lineAt(line.NewNum),
					Message:  fmt.Sprintf("%s: %s", sp.message, text),
					Fix:      sp.fix,
				})
				break // one finding per pattern group per line
			}
		}
	}

	return findings
}

var quotedValue = regexp.MustCompile(`(["'])[^"']{4,}(["'])`)

// redact masks quoted literals so reports never repeat a leaked secret.
func redact(text string) string {
	return quotedValue.ReplaceAllString(text, `$1****$2`)
}

package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sprite-ai/revgate/internal/model"
)

// Function/method definition patterns for various languages.
var funcDefPatterns = []*regexp.Regexp{
	// Go: func Name(
	regexp.MustCompile(`^\s*func\s+(\w+)\s*\(`),
	// Go method: func (r *Type) Name(
	regexp.MustCompile(`^\s*func\s+\([^)]+\)\s+(\w+)\s*\(`),
	// Python: def name(
	regexp.MustCompile(`^\s*def\s+(\w+)\s*\(`),
	// JS/TS: function name(  or  const name = (  or  name(
	regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+(\w+)\s*\(`),
	regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s+)?\(`),
	// Ruby: def name
	regexp.MustCompile(`^\s*def\s+(\w+)`),
	// Rust: fn name(  or  pub fn name(
	regexp.MustCompile(`^\s*(?:pub\s+)?(?:async\s+)?fn\s+(\w+)\s*[(<]`),
	// Java/C#: visibility type name(
	regexp.MustCompile(`^\s*(?:public|private|protected|static|final|abstract|override|async)\s+.*?(\w+)\s*\(`),
	// Elixir: def name(  or  defp name(
	regexp.MustCompile(`^\s*defp?\s+(\w+)\s*[(\n]`),
}

// DeletedCodePass reports deleted functions. When the analyzer config names
// a repo_dir, tests near the file are searched for references to each
// deleted name and a referenced deletion is raised to high.
func DeletedCodePass(f model.FileChange, cfg map[string]string) []model.Finding {
	var findings []model.Finding
	repoDir := cfg["repo_dir"]

	for _, fn := range extractDeletedFunctions(f) {
		testRefs := findTestReferences(repoDir, f.Path, fn.name)
		if len(testRefs) > 0 {
			findings = append(findings, model.Finding{
				Category: "deleted-tested-function",
				Severity: model.SeverityHigh,
				File:     f.Path,
				Lines:    lineAt(fn.line),
				Message:  fmt.Sprintf("Deleted function %q is referenced in tests: %s", fn.name, strings.Join(testRefs, ", ")),
				Fix:      "Update or remove the tests that still call it.",
			})
			continue
		}
		findings = append(findings, model.Finding{
			Category: "deleted-function",
			Severity: model.SeverityLow,
			File:     f.Path,
			Lines:    lineAt(fn.line),
			Message:  fmt.Sprintf("Deleted function: %s", fn.name),
		})
	}

	return findings
}

type funcInfo struct {
	name string
	line int // old-file line number
}

func extractDeletedFunctions(f model.FileChange) []funcInfo {
	var funcs []funcInfo
	for _, h := range f.Hunks {
		for _, line := range h.Lines {
			if line.Op != model.OpDelete {
				continue
			}
			if name := funcName(line.Text); name != "" {
				funcs = append(funcs, funcInfo{name: name, line: line.OldNum})
			}
		}
	}
	return funcs
}

func findTestReferences(repoDir, filePath, name string) []string {
	if repoDir == "" {
		return nil
	}

	var refs []string
	testPattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)

	// Determine test file patterns based on language
	dir := filepath.Dir(filepath.Join(repoDir, filePath))
	testGlobs := []string{
		filepath.Join(dir, "*_test.*"),
		filepath.Join(dir, "test_*"),
		filepath.Join(dir, "*_spec.*"),
		filepath.Join(dir, "**", "*_test.*"),
	}

	seen := make(map[string]bool)
	for _, pattern := range testGlobs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, match := range matches {
			content, err := os.ReadFile(match)
			if err != nil {
				continue
			}
			if !testPattern.Match(content) {
				continue
			}
			rel, err := filepath.Rel(repoDir, match)
			if err != nil {
				rel = match
			}
			if !seen[rel] {
				seen[rel] = true
				refs = append(refs, filepath.ToSlash(rel))
			}
		}
	}

	return refs
}

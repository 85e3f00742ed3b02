package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sprite-ai/revgate/internal/model"
)

const (
	defaultBlastMedium = 5
	defaultBlastHigh   = 15
)

// BlastRadiusPass estimates how many places reference the functions a file
// changes. It needs a repo_dir in the analyzer config and reports nothing
// without one.
//
// Config keys: repo_dir, medium_refs (default 5), high_refs (default 15).
func BlastRadiusPass(f model.FileChange, cfg map[string]string) []model.Finding {
	repoDir := cfg["repo_dir"]
	if repoDir == "" {
		return nil
	}
	medium := configInt(cfg, "medium_refs", defaultBlastMedium)
	high := configInt(cfg, "high_refs", defaultBlastHigh)

	var findings []model.Finding
	for _, fn := range extractChangedFunctions(f) {
		count := countReferences(repoDir, f.Path, fn.name, high)
		switch {
		case count > high:
			findings = append(findings, model.Finding{
				Category: "blast-radius",
				Severity: model.SeverityHigh,
				File:     f.Path,
				Lines:    lineAt(fn.line),
				Message:  fmt.Sprintf("Function %q has more than %d references (high blast radius)", fn.name, high),
				Fix:      "Check every caller, or keep the old signature as a wrapper.",
			})
		case count > medium:
			findings = append(findings, model.Finding{
				Category: "blast-radius",
				Severity: model.SeverityMedium,
				File:     f.Path,
				Lines:    lineAt(fn.line),
				Message:  fmt.Sprintf("Function %q has %d references across the codebase", fn.name, count),
			})
		}
	}

	return findings
}

// extractChangedFunctions returns the functions defined on added or deleted
// lines, located at the new-side line when there is one.
func extractChangedFunctions(f model.FileChange) []funcInfo {
	seen := make(map[string]bool)
	var funcs []funcInfo

	for _, h := range f.Hunks {
		for _, line := range h.Lines {
			if line.Op == model.OpContext {
				continue
			}
			name := funcName(line.Text)
			if name == "" || seen[name] || len(name) <= 2 { // skip very short names
				continue
			}
			seen[name] = true
			funcs = append(funcs, funcInfo{name: name, line: line.NewNum})
		}
	}

	return funcs
}

func countReferences(repoDir, sourceFile, name string, limit int) int {
	if len(name) < 3 {
		return 0
	}

	pattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
	count := 0

	// Walk the repo directory looking for source files
	_ = filepath.Walk(repoDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip errors
		}

		// Skip hidden dirs, vendor, node_modules, etc.
		if info.IsDir() {
			base := filepath.Base(path)
			if strings.HasPrefix(base, ".") || base == "vendor" || base == "node_modules" || base == "dist" || base == "build" {
				return filepath.SkipDir
			}
			return nil
		}

		// Only check source files
		if !isSourceFile(path) {
			return nil
		}

		// Skip the source file itself
		rel, _ := filepath.Rel(repoDir, path)
		if filepath.ToSlash(rel) == sourceFile {
			return nil
		}

		// Read and search
		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		matches := pattern.FindAll(content, -1)
		count += len(matches)

		if count > limit {
			return filepath.SkipAll
		}

		return nil
	})

	return count
}

func isSourceFile(path string) bool {
	ext := filepath.Ext(path)
	switch ext {
	case ".go", ".py", ".js", ".ts", ".tsx", ".jsx", ".rb", ".rs",
		".java", ".kt", ".scala", ".c", ".cpp", ".h", ".hpp",
		".cs", ".ex", ".exs", ".erl", ".hs", ".ml", ".swift":
		return true
	}
	return false
}

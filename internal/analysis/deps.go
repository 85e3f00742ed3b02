package analysis

import (
	"fmt"
	"strings"

	"github.com/sprite-ai/revgate/internal/model"
)

// Dependency manifests and lockfiles, by base name.
var depFiles = map[string]string{
	"go.mod":           "go",
	"package.json":     "npm",
	"Cargo.toml":       "cargo",
	"requirements.txt": "pip",
	"Pipfile":          "pip",
	"pyproject.toml":   "pip",
	"Gemfile":          "gem",
	"mix.exs":          "hex",
}

// lockFiles change alongside manifests; a lockfile-only change is reported
// at file level rather than per line.
var lockFiles = map[string]bool{
	"go.sum":            true,
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"Cargo.lock":        true,
	"Pipfile.lock":      true,
	"poetry.lock":       true,
	"Gemfile.lock":      true,
	"mix.lock":          true,
}

// NewDependencyPass reports dependencies added to a manifest file.
func NewDependencyPass(f model.FileChange, _ map[string]string) []model.Finding {
	name := baseName(f.Path)
	if lockFiles[name] {
		if f.Added == 0 {
			return nil
		}
		return []model.Finding{{
			Category: "lockfile-change",
			Severity: model.SeverityLow,
			File:     f.Path,
			Message:  fmt.Sprintf("Lockfile changed (+%d -%d)", f.Added, f.Deleted),
		}}
	}

	eco, ok := depFiles[name]
	if !ok {
		return nil
	}

	var findings []model.Finding
	for _, line := range f.AddedLines() {
		dep := parseDepLine(strings.TrimSpace(line.Text), eco)
		if dep == "" {
			continue
		}
		findings = append(findings, model.Finding{
			Category: "new-dependency",
			Severity: model.SeverityMedium,
			File:     f.Path,
			Lines:    lineAt(line.NewNum),
			Message:  fmt.Sprintf("New %s dependency: %s", eco, dep),
			Fix:      "Confirm the dependency is maintained, licensed compatibly and pinned.",
		})
	}
	return findings
}

func parseDepLine(line, eco string) string {
	switch eco {
	case "go":
		// go.mod: require github.com/foo/bar v1.2.3
		// go.mod: \tgithub.com/foo/bar v1.2.3
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "require ") {
			parts := strings.Fields(line)
			if len(parts) >= 3 {
				return parts[1]
			}
		}
		// Inside require block
		parts := strings.Fields(line)
		if len(parts) >= 2 && strings.Contains(parts[0], "/") && !strings.HasPrefix(parts[0], "//") {
			return parts[0]
		}

	case "npm":
		// package.json: "dep-name": "^1.0.0"
		line = strings.TrimSpace(line)
		line = strings.TrimSuffix(line, ",")
		if strings.Contains(line, ":") {
			parts := strings.SplitN(line, ":", 2)
			name := strings.Trim(parts[0], `" `)
			value := strings.TrimSpace(parts[1])
			if strings.HasPrefix(value, "{") || strings.HasPrefix(value, "[") {
				return ""
			}
			if name != "" && !strings.HasPrefix(name, "@types/") &&
				name != "dependencies" && name != "devDependencies" &&
				name != "peerDependencies" && name != "name" && name != "version" {
				return name
			}
		}

	case "cargo":
		// Cargo.toml: dep-name = "1.0"  or  dep-name = { version = "1.0" }
		line = strings.TrimSpace(line)
		if strings.Contains(line, "=") && !strings.HasPrefix(line, "[") && !strings.HasPrefix(line, "#") {
			parts := strings.SplitN(line, "=", 2)
			name := strings.TrimSpace(parts[0])
			if name != "" && name != "name" && name != "version" && name != "edition" &&
				name != "authors" && name != "description" && name != "license" &&
				!strings.Contains(name, ".") {
				return name
			}
		}

	case "pip":
		// requirements.txt: package==1.0.0 or package>=1.0
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			return ""
		}
		// Split on version specifiers
		for _, sep := range []string{"==", ">=", "<=", "!=", "~=", ">"} {
			if idx := strings.Index(line, sep); idx > 0 {
				return strings.TrimSpace(line[:idx])
			}
		}
		if !strings.Contains(line, " ") {
			return line
		}

	case "gem":
		// Gemfile: gem 'name', '~> 1.0'
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "gem ") {
			parts := strings.SplitN(line, ",", 2)
			name := strings.TrimPrefix(parts[0], "gem ")
			name = strings.Trim(name, `'" `)
			return name
		}

	case "hex":
		// mix.exs: {:dep_name, "~> 1.0"}
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "{:") {
			end := strings.Index(line, ",")
			if end > 2 {
				return strings.TrimPrefix(line[:end], "{:")
			}
		}
	}

	return ""
}

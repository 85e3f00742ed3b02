package registry

import (
	"time"

	"github.com/sprite-ai/revgate/internal/analysis"
)

// DefaultTimeout applies to analyzers that do not set one.
const DefaultTimeout = 30 * time.Second

var codeExtensions = []string{
	".go", ".py", ".js", ".jsx", ".ts", ".tsx", ".rb", ".rs", ".java", ".kt",
	".scala", ".c", ".cc", ".cpp", ".h", ".hpp", ".cs", ".php", ".swift",
	".ex", ".exs",
}

var schemaPaths = []string{
	"**/migrations/**", "**/migrate/**", "**/*schema*", "*.sql", "*.proto",
	"openapi.*", "swagger.*", "*.graphql", "*.prisma",
}

var manifestPaths = []string{
	"go.mod", "go.sum", "package.json", "package-lock.json", "yarn.lock",
	"pnpm-lock.yaml", "Cargo.toml", "Cargo.lock", "requirements.txt",
	"Pipfile", "Pipfile.lock", "pyproject.toml", "poetry.lock", "Gemfile",
	"Gemfile.lock", "mix.exs", "mix.lock",
}

// builtinSpec is one entry of the built-in catalog.
type builtinSpec struct {
	id        string
	priority  int
	timeout   time.Duration
	weight    int64
	alwaysRun bool
	cacheable bool
	repoAware bool
	predicate Predicate
}

var builtinCatalog = []builtinSpec{
	{id: "security", priority: 100, cacheable: true, predicate: Predicate{Extensions: codeExtensions}},
	{id: "correctness", priority: 90, cacheable: true, predicate: Predicate{Extensions: codeExtensions}},
	{id: "schema", priority: 80, cacheable: true, predicate: Predicate{Paths: schemaPaths}},
	{id: "deps", priority: 70, cacheable: true, predicate: Predicate{Paths: manifestPaths}},
	{id: "deleted", priority: 60, repoAware: true, predicate: Predicate{Extensions: codeExtensions}},
	{id: "blast_radius", priority: 55, timeout: time.Minute, weight: 2, repoAware: true, predicate: Predicate{Extensions: codeExtensions}},
	{id: "complexity", priority: 50, cacheable: true, predicate: Predicate{Extensions: codeExtensions}},
	{id: "maintainability", priority: 40, cacheable: true, predicate: Predicate{Extensions: codeExtensions}},
	{id: "docs", priority: 20, cacheable: true, predicate: Predicate{Extensions: []string{".md", ".markdown", ".rst", ".txt", ".adoc"}}},
	{id: "hygiene", priority: 10, alwaysRun: true, cacheable: true},
}

// Defaults returns the built-in analyzer descriptors. Analyzers that look
// beyond the diff get repoDir in their config; with an empty repoDir they
// only see the diff.
func Defaults(repoDir string) []Descriptor {
	out := make([]Descriptor, 0, len(builtinCatalog))
	for _, b := range builtinCatalog {
		inv, err := analysis.Builtin(b.id)
		if err != nil {
			panic(err) // catalog and builtin table out of sync
		}
		d := Descriptor{
			ID:        b.id,
			Kind:      KindBuiltin,
			Predicate: b.predicate.clone(),
			Priority:  b.priority,
			Timeout:   b.timeout,
			Weight:    b.weight,
			AlwaysRun: b.alwaysRun,
			Cacheable: b.cacheable,
			Invoker:   inv,
		}
		if d.Timeout == 0 {
			d.Timeout = DefaultTimeout
		}
		if d.Weight == 0 {
			d.Weight = 1
		}
		if b.repoAware && repoDir != "" {
			d.Config = map[string]string{"repo_dir": repoDir}
		}
		out = append(out, d)
	}
	return out
}

// Default returns a registry holding the built-in catalog.
func Default(repoDir string) *Registry {
	r, err := New(Defaults(repoDir)...)
	if err != nil {
		panic(err)
	}
	return r
}

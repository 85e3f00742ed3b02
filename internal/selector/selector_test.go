package selector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/sprite-ai/revgate/internal/analysis"
	"github.com/sprite-ai/revgate/internal/model"
	"github.com/sprite-ai/revgate/internal/registry"
)

var nopInvoker = analysis.InvokerFunc(func(context.Context, analysis.View) ([]model.Finding, error) {
	return nil, nil
})

func file(path string) model.FileChange {
	return model.FileChange{Path: path, ContentHash: "h-" + path, Added: 1}
}

func TestSelectPythonChange(t *testing.T) {
	cs := model.NewChangeset(file("app/db.py"))

	got, err := Select(cs, registry.Default(""), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"security", "correctness", "deleted", "blast_radius",
		"complexity", "maintainability", "hygiene",
	}, IDs(got))
}

func TestSelectDocsOnly(t *testing.T) {
	cs := model.NewChangeset(file("README.md"))

	got, err := Select(cs, registry.Default(""), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"docs", "hygiene"}, IDs(got))
}

func TestSelectEmptyChangeset(t *testing.T) {
	got, err := Select(model.NewChangeset(), registry.Default(""), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"hygiene"}, IDs(got))

	noAlways, err := registry.New(registry.Descriptor{
		ID: "only-go", Timeout: time.Second, Weight: 1, Invoker: nopInvoker,
		Predicate: registry.Predicate{Extensions: []string{".go"}},
	})
	require.NoError(t, err)
	got, err = Select(model.NewChangeset(), noAlways, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSelectOverride(t *testing.T) {
	cs := model.NewChangeset(file("app/db.py"))
	reg := registry.Default("")

	got, err := Select(cs, reg, []string{"hygiene", "docs", "security", "security"})
	require.NoError(t, err)
	// docs does not match a .py file even when asked for.
	assert.Equal(t, []string{"security", "hygiene"}, IDs(got))

	_, err = Select(cs, reg, []string{"security", "nope", "also-nope"})
	require.ErrorIs(t, err, ErrUnknownAnalyzer)
	assert.Contains(t, err.Error(), "also-nope, nope")
}

func TestSelectTieBreaksOnID(t *testing.T) {
	var ds []registry.Descriptor
	for _, id := range []string{"zeta", "alpha", "mid"} {
		ds = append(ds, registry.Descriptor{ID: id, Priority: 5, Timeout: time.Second, Weight: 1, AlwaysRun: true, Invoker: nopInvoker})
	}
	ds = append(ds, registry.Descriptor{ID: "top", Priority: 9, Timeout: time.Second, Weight: 1, AlwaysRun: true, Invoker: nopInvoker})
	reg, err := registry.New(ds...)
	require.NoError(t, err)

	got, err := Select(model.NewChangeset(), reg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"top", "alpha", "mid", "zeta"}, IDs(got))
}

// Selection must not depend on file order or on how many times it runs.
func TestSelectIsPure(t *testing.T) {
	reg := registry.Default("")
	paths := []string{
		"main.go", "README.md", "go.mod", "db/migrations/001.sql", "web/app.ts",
		"docs/guide.rst", "schema.graphql", "Makefile", "lib/util.rb",
	}

	rapid.Check(t, func(t *rapid.T) {
		picked := rapid.SliceOfDistinct(rapid.SampledFrom(paths), func(s string) string { return s }).Draw(t, "paths")

		files := make([]model.FileChange, len(picked))
		for i, p := range picked {
			files[i] = file(p)
		}
		perm := rapid.Permutation(files).Draw(t, "perm")

		a, err := Select(model.NewChangeset(files...), reg, nil)
		if err != nil {
			t.Fatal(err)
		}
		b, err := Select(model.NewChangeset(perm...), reg, nil)
		if err != nil {
			t.Fatal(err)
		}
		if fmt.Sprint(IDs(a)) != fmt.Sprint(IDs(b)) {
			t.Fatalf("selection depends on file order: %v vs %v", IDs(a), IDs(b))
		}

		hasHygiene := false
		for i, d := range a {
			if d.ID == "hygiene" {
				hasHygiene = true
			}
			if i > 0 && a[i-1].Priority < d.Priority {
				t.Fatalf("not sorted by priority: %v", IDs(a))
			}
		}
		if !hasHygiene {
			t.Fatal("always-run analyzer missing")
		}
	})
}

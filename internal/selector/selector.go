// Package selector picks the analyzers that apply to a changeset.
package selector

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sprite-ai/revgate/internal/model"
	"github.com/sprite-ai/revgate/internal/registry"
)

// ErrUnknownAnalyzer is returned when an override names an id the registry
// does not hold.
var ErrUnknownAnalyzer = errors.New("unknown analyzer")

// Select returns the descriptors that apply to cs, ordered by priority
// (highest first) and then id. Always-run descriptors are included without
// consulting their predicate; the rest need at least one matching file.
//
// A non-empty override restricts the candidates to those ids. Overridden
// analyzers still have to match unless they are always-run.
//
// The result depends only on the changeset content, the registry and the
// override, so the same input always yields the same selection.
func Select(cs *model.Changeset, reg *registry.Registry, override []string) ([]registry.Descriptor, error) {
	candidates, err := candidates(reg, override)
	if err != nil {
		return nil, err
	}

	files := cs.Files()
	var selected []registry.Descriptor
	for _, d := range candidates {
		if d.Applies(files) {
			selected = append(selected, d)
		}
	}

	Sort(selected)
	return selected, nil
}

// Sort orders descriptors by priority descending, then id ascending.
func Sort(ds []registry.Descriptor) {
	sort.SliceStable(ds, func(i, j int) bool {
		if ds[i].Priority != ds[j].Priority {
			return ds[i].Priority > ds[j].Priority
		}
		return ds[i].ID < ds[j].ID
	})
}

// IDs returns the ids of ds in order.
func IDs(ds []registry.Descriptor) []string {
	ids := make([]string, len(ds))
	for i, d := range ds {
		ids[i] = d.ID
	}
	return ids
}

func candidates(reg *registry.Registry, override []string) ([]registry.Descriptor, error) {
	if len(override) == 0 {
		return reg.All(), nil
	}

	var unknown []string
	seen := make(map[string]bool, len(override))
	var out []registry.Descriptor
	for _, id := range override {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		d, ok := reg.Get(id)
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		out = append(out, d)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s", ErrUnknownAnalyzer, strings.Join(unknown, ", "))
	}
	return out, nil
}

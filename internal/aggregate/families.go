package aggregate

import (
	"fmt"
	"sort"
	"strings"
)

// Families maps a finding category to the family it dedupes under. Two
// analyzers that report the same problem under different category names
// collapse into one merged finding when their categories share a family.
type Families map[string]string

// DefaultFamilies returns the built-in category table.
func DefaultFamilies() Families {
	fam, err := ParseFamilies(map[string][]string{
		"size":          {"function-length", "long-function", "excessive-length", "function-too-long"},
		"credentials":   {"hardcoded-credential", "hardcoded-secret", "secret-leak"},
		"injection":     {"sql-injection", "command-execution", "command-injection"},
		"errors":        {"error-handling", "swallowed-error", "ignored-error"},
		"ddl":           {"ddl", "destructive-ddl"},
		"deleted-code":  {"deleted-function", "deleted-tested-function"},
		"debug":         {"debug-statement", "breakpoint"},
		"duplication":   {"duplicate-code", "copy-paste"},
		"documentation": {"placeholder-text", "empty-link"},
	})
	if err != nil {
		panic(err)
	}
	return fam
}

// ParseFamilies builds a table from family → categories, the shape used in
// config files. A category may belong to at most one family.
func ParseFamilies(groups map[string][]string) (Families, error) {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	fam := Families{}
	for _, name := range names {
		family := strings.TrimSpace(name)
		if family == "" {
			return nil, fmt.Errorf("empty family name")
		}
		for _, c := range groups[name] {
			category := strings.TrimSpace(c)
			if category == "" {
				return nil, fmt.Errorf("family %s: empty category", family)
			}
			if prev, ok := fam[category]; ok && prev != family {
				return nil, fmt.Errorf("category %s is in families %s and %s", category, prev, family)
			}
			fam[category] = family
		}
	}
	return fam, nil
}

// Merge returns a copy of f with other's entries layered on top.
func (f Families) Merge(other Families) Families {
	out := make(Families, len(f)+len(other))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Of returns the family of category. Unknown categories are their own
// family.
func (f Families) Of(category string) string {
	if family, ok := f[category]; ok {
		return family
	}
	return category
}

package registry

import (
	"fmt"
	"path"
	"strings"

	"github.com/sprite-ai/revgate/internal/model"
)

// Predicate decides whether an analyzer applies to a file. Every non-empty
// filter must match; an empty filter matches every file.
type Predicate struct {
	// Extensions, with or without the leading dot.
	Extensions []string `yaml:"extensions,omitempty" json:"extensions,omitempty"`

	// Paths are globs over the slash-separated path; "**" spans directories.
	Paths []string `yaml:"paths,omitempty" json:"paths,omitempty"`

	// Exclude globs remove files even when everything else matches.
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`

	// Languages are the tags produced by diff.LanguageOf.
	Languages []string `yaml:"languages,omitempty" json:"languages,omitempty"`

	// MinChanged and MaxChanged bound the added plus deleted lines of the
	// file. Zero disables a bound.
	MinChanged int `yaml:"min_changed,omitempty" json:"min_changed,omitempty"`
	MaxChanged int `yaml:"max_changed,omitempty" json:"max_changed,omitempty"`
}

// Validate checks globs and size bounds.
func (p Predicate) Validate() error {
	for _, g := range append(append([]string(nil), p.Paths...), p.Exclude...) {
		if err := validateGlob(g); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPredicate, err)
		}
	}
	for _, ext := range p.Extensions {
		if strings.TrimPrefix(ext, ".") == "" {
			return fmt.Errorf("%w: empty extension", ErrInvalidPredicate)
		}
	}
	if p.MinChanged < 0 || p.MaxChanged < 0 {
		return fmt.Errorf("%w: negative size bound", ErrInvalidPredicate)
	}
	if p.MaxChanged > 0 && p.MinChanged > p.MaxChanged {
		return fmt.Errorf("%w: min_changed %d exceeds max_changed %d", ErrInvalidPredicate, p.MinChanged, p.MaxChanged)
	}
	return nil
}

// Matches reports whether f satisfies the predicate.
func (p Predicate) Matches(f model.FileChange) bool {
	for _, g := range p.Exclude {
		if matchGlob(g, f.Path) {
			return false
		}
	}

	if len(p.Extensions) > 0 {
		ext := strings.TrimPrefix(path.Ext(f.Path), ".")
		if !containsFold(p.Extensions, ext, func(s string) string { return strings.TrimPrefix(s, ".") }) {
			return false
		}
	}

	if len(p.Paths) > 0 {
		matched := false
		for _, g := range p.Paths {
			if matchGlob(g, f.Path) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if len(p.Languages) > 0 && !containsFold(p.Languages, f.Language, nil) {
		return false
	}

	changed := f.Changed()
	if p.MinChanged > 0 && changed < p.MinChanged {
		return false
	}
	if p.MaxChanged > 0 && changed > p.MaxChanged {
		return false
	}
	return true
}

// MatchesAny reports whether any file satisfies the predicate.
func (p Predicate) MatchesAny(files []model.FileChange) bool {
	for _, f := range files {
		if p.Matches(f) {
			return true
		}
	}
	return false
}

// Filter returns the files that satisfy the predicate, in order.
func (p Predicate) Filter(files []model.FileChange) []model.FileChange {
	var out []model.FileChange
	for _, f := range files {
		if p.Matches(f) {
			out = append(out, f)
		}
	}
	return out
}

// String renders the predicate compactly for listings.
func (p Predicate) String() string {
	var parts []string
	if len(p.Extensions) > 0 {
		parts = append(parts, "ext="+strings.Join(p.Extensions, ","))
	}
	if len(p.Paths) > 0 {
		parts = append(parts, "paths="+strings.Join(p.Paths, ","))
	}
	if len(p.Exclude) > 0 {
		parts = append(parts, "exclude="+strings.Join(p.Exclude, ","))
	}
	if len(p.Languages) > 0 {
		parts = append(parts, "lang="+strings.Join(p.Languages, ","))
	}
	if p.MinChanged > 0 {
		parts = append(parts, fmt.Sprintf("min=%d", p.MinChanged))
	}
	if p.MaxChanged > 0 {
		parts = append(parts, fmt.Sprintf("max=%d", p.MaxChanged))
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}

func (p Predicate) clone() Predicate {
	p.Extensions = append([]string(nil), p.Extensions...)
	p.Paths = append([]string(nil), p.Paths...)
	p.Exclude = append([]string(nil), p.Exclude...)
	p.Languages = append([]string(nil), p.Languages...)
	return p
}

func containsFold(list []string, v string, norm func(string) string) bool {
	for _, s := range list {
		if norm != nil {
			s = norm(s)
		}
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

package registry

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

func validateGlob(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("empty glob")
	}
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("glob %q: %w", pattern, doublestar.ErrBadPattern)
	}
	return nil
}

// matchGlob matches a slash-separated path against a glob. "**" matches any
// number of whole segments, including none. A pattern without a slash is
// matched against the base name only, so "go.mod" matches at any depth.
func matchGlob(pattern, name string) bool {
	if !strings.Contains(pattern, "/") {
		name = path.Base(name)
	}
	ok, _ := doublestar.Match(pattern, name)
	return ok
}

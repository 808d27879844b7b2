package validators

import (
	"fmt"

	"github.com/gobwas/glob"
)

// NameMatcher reports whether an object name matches a pattern
type NameMatcher interface {
	Match(name string) bool
}

// CompileNamePattern compiles a glob pattern for object names. An empty
// pattern matches every name.
func CompileNamePattern(pattern string) (NameMatcher, error) {
	if pattern == "" {
		pattern = "*"
	}
	// no separators, so * matches across dots
	compiled, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid name pattern %q: %w", pattern, err)
	}
	return compiled, nil
}

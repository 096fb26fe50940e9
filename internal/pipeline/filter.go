package pipeline

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Filter selects logical paths.
type Filter func(logicalPath string) bool

// ParseFilter turns a filter pattern into a Filter. A pattern is either an exact
// logical path, a glob ("*.js", "lib/*.css"), or a regular expression
// prefixed with "regexp:". Globs without a slash also match the basename,
// so "*.js" selects "lib/app.js".
func ParseFilter(pattern string) (Filter, error) {
	if expr, ok := strings.CutPrefix(pattern, "regexp:"); ok {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", pattern, err)
		}
		return re.MatchString, nil
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", pattern, err)
	}
	return func(logical string) bool {
		if ok, _ := path.Match(pattern, logical); ok {
			return true
		}
		if !strings.Contains(pattern, "/") {
			ok, _ := path.Match(pattern, path.Base(logical))
			return ok
		}
		return false
	}, nil
}

// ParseFilters parses each pattern with ParseFilter.
func ParseFilters(patterns []string) ([]Filter, error) {
	filters := make([]Filter, 0, len(patterns))
	for _, pattern := range patterns {
		f, err := ParseFilter(pattern)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

func matchesAny(filters []Filter, logical string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f(logical) {
			return true
		}
	}
	return false
}

// indexAlias maps "lib/index.js" to "lib.js".
func indexAlias(logical string) (string, bool) {
	base := path.Base(logical)
	if stem, _, _ := strings.Cut(base, "."); stem != "index" {
		return "", false
	}
	dir := path.Dir(logical)
	if dir == "." {
		return "", false
	}
	return dir + strings.TrimPrefix(base, "index"), true
}

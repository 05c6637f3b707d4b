package orchestrator

import (
	"fmt"
	"regexp"
	"strings"
)

// compileGlobs compiles each shell-style glob into an anchored,
// case-insensitive regexp: '*' becomes '.*', '?' becomes '.', and every
// other regex metacharacter is escaped.
func compileGlobs(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := compileGlob(p)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: invalid auto-rule pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func compileGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// matchesAny reports whether url matches any of the compiled glob
// patterns. An empty url never matches.
func matchesAny(patterns []*regexp.Regexp, url string) bool {
	if url == "" {
		return false
	}
	for _, re := range patterns {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

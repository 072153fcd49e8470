package urlutil

import (
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// HasHTTPPrefix reports whether s literally starts with "http://" or "https://".
// Extractors use it on raw attribute and scalar values before any parsing.
func HasHTTPPrefix(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

var (
	globMu    sync.Mutex
	globCache = map[string]glob.Glob{}
)

// MatchGlob reports whether s matches the shell-style pattern. Unlike
// path.Match, "*" also crosses "/" so "https://example.com/*" matches every
// page on the host. "?" matches one character, "[...]" a character class and
// "{a,b}" either alternative. A pattern that does not compile only matches
// itself.
func MatchGlob(pattern, s string) bool {
	globMu.Lock()
	g, ok := globCache[pattern]
	if !ok {
		// No separators: every wildcard may span "/".
		compiled, err := glob.Compile(pattern)
		if err == nil {
			g = compiled
		}
		globCache[pattern] = g
	}
	globMu.Unlock()

	if g == nil {
		return pattern == s
	}
	return g.Match(s)
}

// Package extract finds http(s) URLs in documentation and markup files.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lukemcguire/linkguard/urlutil"
)

// Link is one URL occurrence found in a file.
type Link struct {
	URL     string // Cleaned, scheme-qualified URL
	Line    int    // 1-based line, 0 when the format gives none
	Context string // Surrounding text or structural path
}

// contextLimit is the maximum length, in runes, of Link.Context for text formats.
const contextLimit = 60

var (
	// urlPattern matches bare http(s) URLs in free text, up to whitespace,
	// quotes or angle brackets. Trailing punctuation is removed by Clean.
	urlPattern = regexp.MustCompile("https?://[^\\s<>\"'`{}|\\\\^]+")

	// mdLinkPattern matches [text](target) outside of Markdown files proper.
	mdLinkPattern = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
)

// Supported reports whether FromBytes understands files named like path.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt", ".js", ".jsx", ".ts", ".tsx",
		".html", ".htm", ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// FromFile reads path and extracts its links.
func FromFile(path string) ([]Link, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return FromBytes(path, content), nil
}

// FromBytes extracts links from content, choosing the parser by the
// extension of name. Unknown extensions and undecodable structured
// documents yield no links.
func FromBytes(name string, content []byte) []Link {
	// Undecodable bytes are dropped rather than failing the file.
	text := strings.ToValidUTF8(string(content), "")

	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return fromMarkdown([]byte(text))
	case ".txt", ".js", ".jsx", ".ts", ".tsx":
		return fromText(text)
	case ".html", ".htm":
		return fromHTML(text)
	case ".json":
		return fromJSON([]byte(text))
	case ".yaml", ".yml":
		return fromYAML([]byte(text))
	}
	return nil
}

type linkKey struct {
	url  string
	line int
}

// collector keeps links in discovery order, dropping repeats of the same URL
// on the same line.
type collector struct {
	seen  map[linkKey]bool
	links []Link
}

func newCollector() *collector {
	return &collector{seen: make(map[linkKey]bool)}
}

// add records a URL exactly as given, apart from surrounding space.
func (c *collector) add(rawURL string, line int, context string) {
	u := strings.TrimSpace(rawURL)
	if !urlutil.HasHTTPPrefix(u) {
		return
	}
	key := linkKey{url: u, line: line}
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.links = append(c.links, Link{URL: u, Line: line, Context: context})
}

// addLoose records a URL matched by a pattern, dropping the trailing
// punctuation such patterns pick up from prose.
func (c *collector) addLoose(rawURL string, line int, context string) {
	c.add(urlutil.Clean(strings.TrimSpace(rawURL)), line, context)
}

// lineContext is the trimmed line cut to contextLimit runes.
func lineContext(line string) string {
	trimmed := strings.TrimSpace(line)
	if runes := []rune(trimmed); len(runes) > contextLimit {
		return string(runes[:contextLimit])
	}
	return trimmed
}

// fromText handles plain text and source files: Markdown-style links first,
// then bare URLs, line by line.
func fromText(text string) []Link {
	c := newCollector()
	for i, line := range strings.Split(text, "\n") {
		lineNum := i + 1
		ctx := lineContext(line)
		for _, m := range mdLinkPattern.FindAllStringSubmatch(line, -1) {
			c.addLoose(m[2], lineNum, ctx)
		}
		for _, u := range urlPattern.FindAllString(line, -1) {
			c.addLoose(u, lineNum, ctx)
		}
	}
	return c.links
}

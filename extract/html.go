package extract

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// linkAttrs lists, per tag, the attributes that may carry a URL.
var linkAttrs = map[string][]string{
	"a":      {"href"},
	"link":   {"href"},
	"img":    {"src"},
	"script": {"src"},
}

// fromHTML tokenizes an HTML document and collects absolute http(s) targets
// of a, link, img and script tags. Lines are counted from the raw token text.
func fromHTML(doc string) []Link {
	tokenizer := html.NewTokenizer(strings.NewReader(doc))
	var links []Link
	line := 1

	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			return links
		}

		tokenLine := line
		line += bytes.Count(tokenizer.Raw(), []byte("\n"))

		if tokenType != html.StartTagToken && tokenType != html.SelfClosingTagToken {
			continue
		}
		token := tokenizer.Token()
		attrs, ok := linkAttrs[token.Data]
		if !ok {
			continue
		}
		for _, attr := range token.Attr {
			if !slices.Contains(attrs, attr.Key) {
				continue
			}
			val := strings.TrimSpace(attr.Val)
			if !strings.HasPrefix(val, "http://") && !strings.HasPrefix(val, "https://") {
				continue
			}
			links = append(links, Link{
				URL:     val,
				Line:    tokenLine,
				Context: fmt.Sprintf(`<%s %s="%s">`, token.Data, attr.Key, val),
			})
		}
	}
}

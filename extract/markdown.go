package extract

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdownParser = goldmark.New().Parser()

// fromMarkdown walks the Markdown AST for link, image and autolink targets,
// then scans each line for bare URLs. Per line, AST links come first.
func fromMarkdown(source []byte) []Link {
	lineStarts := lineOffsets(source)
	byLine := make(map[int][]string)

	doc := markdownParser.Parse(text.NewReader(source))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		var dest []byte
		switch node := n.(type) {
		case *ast.Link:
			dest = node.Destination
		case *ast.Image:
			dest = node.Destination
		case *ast.AutoLink:
			if node.AutoLinkType != ast.AutoLinkURL {
				return ast.WalkContinue, nil
			}
			dest = node.URL(source)
		default:
			return ast.WalkContinue, nil
		}

		line := lineOf(lineStarts, locate(source, n, dest))
		byLine[line] = append(byLine[line], string(dest))
		return ast.WalkContinue, nil
	})

	c := newCollector()
	for i, line := range strings.Split(string(source), "\n") {
		lineNum := i + 1
		ctx := lineContext(line)
		for _, dest := range byLine[lineNum] {
			c.add(dest, lineNum, ctx)
		}
		for _, u := range urlPattern.FindAllString(withoutDestinations(line, byLine[lineNum]), -1) {
			c.addLoose(u, lineNum, ctx)
		}
	}
	return c.links
}

// withoutDestinations blanks out AST link destinations so the bare URL
// pattern does not pick up a truncated copy of them, as it would on
// "(https://en.wikipedia.org/wiki/Go_(language))".
func withoutDestinations(line string, dests []string) string {
	for _, dest := range dests {
		line = strings.Replace(line, dest, " ", 1)
	}
	return line
}

// locate returns the byte offset of dest in source, searching from the
// earliest position known for n. Inline nodes carry no offsets of their own,
// so the first text segment below n or the enclosing block is used.
func locate(source []byte, n ast.Node, dest []byte) int {
	from := textOffset(n)
	if from < 0 {
		from = blockOffset(n)
	}
	from = max(from, 0)
	if len(dest) > 0 {
		if idx := bytes.Index(source[from:], dest); idx >= 0 {
			return from + idx
		}
	}
	return from
}

func textOffset(n ast.Node) int {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			return t.Segment.Start
		}
		if off := textOffset(c); off >= 0 {
			return off
		}
	}
	return -1
}

func blockOffset(n ast.Node) int {
	for p := n; p != nil; p = p.Parent() {
		if p.Type() == ast.TypeBlock && p.Lines().Len() > 0 {
			return p.Lines().At(0).Start
		}
	}
	return -1
}

func lineOffsets(source []byte) []int {
	starts := []int{0}
	for i, b := range source {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineOf maps a byte offset to its 1-based line.
func lineOf(starts []int, offset int) int {
	lo, hi := 0, len(starts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if starts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1
}

package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	jsonLabel = "JSON path"
	yamlLabel = "YAML path"
)

// structuredLink builds a link for a string value when it is an http(s) URL.
func structuredLink(value, label, path string, line int) (Link, bool) {
	val := strings.TrimSpace(value)
	if !strings.HasPrefix(val, "http://") && !strings.HasPrefix(val, "https://") {
		return Link{}, false
	}
	return Link{URL: val, Line: line, Context: label + ": " + path}, true
}

// fromJSON walks the token stream of a single JSON document and collects
// every http(s) string value with its path (".a.b[0]") and line. A document
// that fails to decode yields no links at all.
func fromJSON(content []byte) []Link {
	dec := json.NewDecoder(bytes.NewReader(content))
	starts := lineOffsets(content)

	var links []Link
	visit := func(path, value string) {
		// InputOffset is just past the closing quote.
		line := lineOf(starts, int(dec.InputOffset())-1)
		if link, ok := structuredLink(value, jsonLabel, path, line); ok {
			links = append(links, link)
		}
	}
	if err := walkJSON(dec, "", visit); err != nil {
		return nil
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil
	}
	return links
}

// walkJSON consumes one value from dec, visiting its strings in document
// order. Object keys are part of the path, not visited.
func walkJSON(dec *json.Decoder, path string, visit func(path, value string)) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return err
				}
				key, ok := keyTok.(string)
				if !ok {
					return fmt.Errorf("object key at offset %d is not a string", dec.InputOffset())
				}
				if err := walkJSON(dec, path+"."+key, visit); err != nil {
					return err
				}
			}
		case '[':
			for i := 0; dec.More(); i++ {
				if err := walkJSON(dec, fmt.Sprintf("%s[%d]", path, i), visit); err != nil {
					return err
				}
			}
		}
		// Closing delimiter.
		_, err := dec.Token()
		return err
	case string:
		visit(path, v)
	}
	return nil
}

// fromYAML decodes every document of a YAML stream into node trees and
// collects each http(s) string scalar. A stream that fails to decode yields
// no links at all.
func fromYAML(content []byte) []Link {
	var links []Link
	dec := yaml.NewDecoder(bytes.NewReader(content))
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return links
		}
		if err != nil {
			return nil
		}
		walkNode(&doc, "", func(path string, n *yaml.Node) {
			if link, ok := structuredLink(n.Value, yamlLabel, path, n.Line); ok {
				links = append(links, link)
			}
		})
	}
}

// walkNode visits string scalars depth first in document order.
func walkNode(n *yaml.Node, path string, visit func(path string, n *yaml.Node)) {
	switch n.Kind {
	case yaml.DocumentNode:
		for _, child := range n.Content {
			walkNode(child, path, visit)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			walkNode(n.Content[i+1], path+"."+n.Content[i].Value, visit)
		}
	case yaml.SequenceNode:
		for i, child := range n.Content {
			walkNode(child, fmt.Sprintf("%s[%d]", path, i), visit)
		}
	case yaml.ScalarNode:
		if n.ShortTag() == "!!str" {
			visit(path, n)
		}
	}
}

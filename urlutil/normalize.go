package urlutil

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// trailingPunct lists characters that prose commonly places right after a
// URL and that are almost never part of it.
const trailingPunct = ".,;:)"

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Clean strips trailing punctuation picked up by loose URL patterns, e.g.
// "https://example.com)." becomes "https://example.com".
func Clean(rawURL string) string {
	return strings.TrimRight(rawURL, trailingPunct)
}

// HostKey returns the key the verifier uses to group URLs by target host:
// the lowercased host, plus the port when it is not the scheme's default.
// "https://Example.com:443/a" and "https://example.com/b" share a key.
//
// Returns an error if the input is empty or has no host.
func HostKey(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errors.New("cannot derive host from empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse URL %q: %w", rawURL, err)
	}

	if parsed.Hostname() == "" {
		return "", fmt.Errorf("URL %q has no host", rawURL)
	}

	host := strings.ToLower(parsed.Hostname())
	port := parsed.Port()
	if port == "" || port == defaultPorts[strings.ToLower(parsed.Scheme)] {
		if strings.Contains(host, ":") {
			return "[" + host + "]", nil
		}
		return host, nil
	}
	return net.JoinHostPort(host, port), nil
}

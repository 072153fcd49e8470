// Package rules applies environment policy to discovered URLs.
package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lukemcguire/linkguard/result"
	"github.com/lukemcguire/linkguard/verifier"
)

// Scan modes.
const (
	ModeDev  = "dev"
	ModeProd = "prod"
)

// RuleNoLocalhost flags development hosts in a production scan.
const RuleNoLocalhost = "no-localhost-in-prod"

// SeverityError marks violations that fail a production scan.
const SeverityError = "error"

// localhostPattern matches loopback, private-network and development-only
// hosts anywhere in the URL text.
var localhostPattern = regexp.MustCompile(`(?i)` + strings.Join([]string{
	`localhost`,
	`127\.0\.0\.1`,
	`0\.0\.0\.0`,
	`192\.168\.\d{1,3}\.\d{1,3}`,
	`10\.\d{1,3}\.\d{1,3}\.\d{1,3}`,
	`::1`,
	`\.local(?:/|$)`,
	`\.test(?:/|$)`,
}, "|"))

// ValidMode reports whether mode is a known scan mode.
func ValidMode(mode string) bool {
	return mode == ModeDev || mode == ModeProd
}

// Checker evaluates URLs against the rules of one mode.
type Checker struct {
	mode string
}

// New returns a Checker for mode. Unknown modes are rejected.
func New(mode string) (*Checker, error) {
	if !ValidMode(mode) {
		return nil, fmt.Errorf("unknown mode %q (want %q or %q)", mode, ModeDev, ModeProd)
	}
	return &Checker{mode: mode}, nil
}

// Mode returns the checker's scan mode.
func (c *Checker) Mode() string { return c.mode }

// Check returns the violation for one URL occurrence, or nil.
func (c *Checker) Check(url, origin string, line int) *result.Violation {
	if c.mode != ModeProd || !localhostPattern.MatchString(url) {
		return nil
	}
	return &result.Violation{
		URL:      url,
		Rule:     RuleNoLocalhost,
		Severity: SeverityError,
		Message:  "Localhost/development URL found in production mode",
		Origin:   origin,
		Line:     line,
	}
}

// CheckAll checks every record and returns the violations in input order.
func (c *Checker) CheckAll(records []verifier.LinkRecord) []result.Violation {
	var violations []result.Violation
	for _, rec := range records {
		if v := c.Check(rec.URL, rec.Origin, rec.Line); v != nil {
			violations = append(violations, *v)
		}
	}
	return violations
}

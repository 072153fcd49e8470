// Package result holds the records produced by a linkguard scan and the
// writers that turn them into reports.
package result

import (
	"slices"
	"time"
)

// LinkResult represents the result of verifying a single link record.
type LinkResult struct {
	Index      int           // Position of the originating record in the verifier input
	URL        string        // The URL that was checked
	StatusCode int           // Final HTTP status code (0 if no response was received)
	IsBroken   bool          // Whether the link is unreachable or returned >= 400
	Error      string        // Short failure classification, empty on a response
	Category   ErrorCategory // Category classification of the failure
	Elapsed    time.Duration // Wall-clock time from dispatch to resolution
	Origin     string        // Where the URL was found, usually a file path
	Line       int           // Line in Origin (0 if the format has no line semantics)
}

// IsBrokenFor is the single definition of a broken link: a failure was
// recorded or the server answered with a status >= 400.
func IsBrokenFor(statusCode int, errMsg string) bool {
	return errMsg != "" || statusCode >= 400
}

// Violation is an environment policy violation for one URL occurrence.
type Violation struct {
	URL      string
	Rule     string
	Severity string
	Message  string
	Origin   string
	Line     int
}

// ScanInfo describes the parameters of a scan run.
type ScanInfo struct {
	Directory    string
	Mode         string
	Timeout      time.Duration
	Concurrency  int
	PerHostLimit int
	FilesScanned int
}

// Stats contains aggregate statistics for a scan.
type Stats struct {
	TotalChecked int           // Total number of links checked
	BrokenCount  int           // Number of broken links found
	WorkingCount int           // Number of links that answered below 400
	Violations   int           // Number of policy violations
	Duration     time.Duration // Total time taken for verification
}

// Result represents the complete output of a scan.
type Result struct {
	RunID      string
	Timestamp  time.Time
	Links      []LinkResult
	Violations []Violation
	Scan       ScanInfo
	Stats      Stats
}

// New assembles a Result and computes its statistics.
func New(runID string, links []LinkResult, violations []Violation, scan ScanInfo, duration time.Duration) *Result {
	res := &Result{
		RunID:      runID,
		Timestamp:  time.Now(),
		Links:      links,
		Violations: violations,
		Scan:       scan,
	}
	res.Stats.TotalChecked = len(links)
	res.Stats.Violations = len(violations)
	res.Stats.Duration = duration
	for _, link := range links {
		if link.IsBroken {
			res.Stats.BrokenCount++
		} else {
			res.Stats.WorkingCount++
		}
	}
	return res
}

// BrokenLinks returns the broken links in their current order.
func (r *Result) BrokenLinks() []LinkResult {
	return r.filter(true)
}

// WorkingLinks returns the links that are not broken.
func (r *Result) WorkingLinks() []LinkResult {
	return r.filter(false)
}

func (r *Result) filter(broken bool) []LinkResult {
	out := make([]LinkResult, 0, len(r.Links))
	for _, link := range r.Links {
		if link.IsBroken == broken {
			out = append(out, link)
		}
	}
	return out
}

// SortByIndex orders links by their input position, restoring the order in
// which records were handed to the verifier.
func SortByIndex(links []LinkResult) {
	slices.SortStableFunc(links, func(a, b LinkResult) int {
		return a.Index - b.Index
	})
}

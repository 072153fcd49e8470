package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

type jsonMetadata struct {
	RunID        string  `json:"run_id"`
	Timestamp    string  `json:"timestamp"`
	TotalLinks   int     `json:"total_links"`
	BrokenLinks  int     `json:"broken_links"`
	WorkingLinks int     `json:"working_links"`
	Violations   int     `json:"violations"`
	Directory    string  `json:"directory"`
	Mode         string  `json:"mode"`
	Timeout      float64 `json:"timeout"` // seconds
	FilesScanned int     `json:"files_scanned"`
	Concurrency  int     `json:"concurrency"`
	PerHostLimit int     `json:"per_host_limit"`
}

type jsonLink struct {
	URL        string  `json:"url"`
	StatusCode *int    `json:"status_code"`
	IsBroken   bool    `json:"is_broken"`
	Error      *string `json:"error"`
	Category   string  `json:"category,omitempty"`
	Elapsed    float64 `json:"elapsed"`
	Origin     string  `json:"origin"`
	LineHint   *int    `json:"line_hint"`
}

type jsonViolation struct {
	URL      string `json:"url"`
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Origin   string `json:"origin"`
	LineHint *int   `json:"line_hint"`
}

type jsonReport struct {
	Metadata   jsonMetadata    `json:"metadata"`
	Results    []jsonLink      `json:"results"`
	Violations []jsonViolation `json:"violations"`
}

// WriteJSON writes the full report (run metadata, every link result and
// every violation) as indented JSON.
func WriteJSON(w io.Writer, res *Result) error {
	report := jsonReport{
		Metadata: jsonMetadata{
			RunID:        res.RunID,
			Timestamp:    res.Timestamp.Format(time.RFC3339),
			TotalLinks:   res.Stats.TotalChecked,
			BrokenLinks:  res.Stats.BrokenCount,
			WorkingLinks: res.Stats.WorkingCount,
			Violations:   res.Stats.Violations,
			Directory:    res.Scan.Directory,
			Mode:         res.Scan.Mode,
			Timeout:      res.Scan.Timeout.Seconds(),
			FilesScanned: res.Scan.FilesScanned,
			Concurrency:  res.Scan.Concurrency,
			PerHostLimit: res.Scan.PerHostLimit,
		},
		Results:    make([]jsonLink, 0, len(res.Links)),
		Violations: make([]jsonViolation, 0, len(res.Violations)),
	}

	for _, link := range res.Links {
		report.Results = append(report.Results, jsonLink{
			URL:        link.URL,
			StatusCode: optionalInt(link.StatusCode),
			IsBroken:   link.IsBroken,
			Error:      optionalString(link.Error),
			Category:   string(link.Category),
			Elapsed:    link.Elapsed.Seconds(),
			Origin:     link.Origin,
			LineHint:   optionalInt(link.Line),
		})
	}
	for _, v := range res.Violations {
		report.Violations = append(report.Violations, jsonViolation{
			URL:      v.URL,
			Rule:     v.Rule,
			Severity: v.Severity,
			Message:  v.Message,
			Origin:   v.Origin,
			LineHint: optionalInt(v.Line),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}

// csvHeader is the column order of WriteCSV.
var csvHeader = []string{"url", "status_code", "is_broken", "error", "elapsed", "origin", "line_hint", "rule", "severity"}

// WriteCSV writes one row per link result. Violation columns are filled when
// a violation was recorded for the same URL.
// Always includes a header row, even if there are no results.
func WriteCSV(w io.Writer, res *Result) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	violations := make(map[string]Violation, len(res.Violations))
	for _, v := range res.Violations {
		if _, ok := violations[v.URL]; !ok {
			violations[v.URL] = v
		}
	}

	for _, link := range res.Links {
		v := violations[link.URL]
		record := []string{
			link.URL,
			statusCodeStr(link.StatusCode),
			strconv.FormatBool(link.IsBroken),
			link.Error,
			strconv.FormatFloat(link.Elapsed.Seconds(), 'f', 3, 64),
			link.Origin,
			lineStr(link.Line),
			v.Rule,
			v.Severity,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record for %s: %w", link.URL, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}

// WriteMarkdown writes a human-readable report with summary, scan details,
// violations, broken links and working links.
func WriteMarkdown(w io.Writer, res *Result) error {
	var b strings.Builder
	line := func(format string, a ...any) { fmt.Fprintf(&b, format+"\n", a...) }

	line("# Linkguard Scan Report")
	line("")
	line("**Generated on:** %s", res.Timestamp.Format(time.RFC3339))
	if res.RunID != "" {
		line("**Run ID:** `%s`", res.RunID)
	}
	line("")
	line("## Summary")
	line("")
	line("- Total Links Checked: %d", res.Stats.TotalChecked)
	line("- Working Links: %d", res.Stats.WorkingCount)
	line("- Broken Links: %d", res.Stats.BrokenCount)
	line("- Rule Violations: %d", res.Stats.Violations)
	line("")
	line("## Scan Details")
	line("")
	line("- **Directory:** `%s`", orNA(res.Scan.Directory))
	line("- **Mode:** `%s`", orNA(res.Scan.Mode))
	line("- **Timeout:** `%s seconds`", strconv.FormatFloat(res.Scan.Timeout.Seconds(), 'f', -1, 64))
	line("- **Files Scanned:** %d", res.Scan.FilesScanned)
	line("")

	if len(res.Violations) > 0 {
		line("## Rule Violations")
		line("")
		line("| URL | Rule | Severity | Message | File Path | Line Number |")
		line("|-----|------|----------|---------|-----------|-------------|")
		for _, v := range res.Violations {
			line("| %s | %s | %s | %s | %s | %s |",
				mdCell(v.URL), v.Rule, v.Severity, mdCell(v.Message), mdCell(v.Origin), lineOrNA(v.Line))
		}
		line("")
	}

	if broken := res.BrokenLinks(); len(broken) > 0 {
		line("## Broken Links")
		line("")
		line("| URL | Status Code | Error | Response Time (s) | File Path | Line Number |")
		line("|-----|-------------|-------|-------------------|-----------|-------------|")
		for _, link := range broken {
			line("| %s | %s | %s | %.2f | %s | %s |",
				mdCell(link.URL), orNA(statusCodeStr(link.StatusCode)), mdCell(orNA(link.Error)),
				link.Elapsed.Seconds(), mdCell(link.Origin), lineOrNA(link.Line))
		}
		line("")
	}

	if working := res.WorkingLinks(); len(working) > 0 {
		line("## Working Links")
		line("")
		line("| URL | Status Code | Response Time (s) | File Path | Line Number |")
		line("|-----|-------------|-------------------|-----------|-------------|")
		for _, link := range working {
			line("| %s | %d | %.2f | %s | %s |",
				mdCell(link.URL), link.StatusCode, link.Elapsed.Seconds(), mdCell(link.Origin), lineOrNA(link.Line))
		}
		line("")
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write markdown output: %w", err)
	}
	return nil
}

// statusCodeStr converts an HTTP status code to a string.
// Returns empty string for 0 (no HTTP status).
func statusCodeStr(code int) string {
	if code == 0 {
		return ""
	}
	return strconv.Itoa(code)
}

func lineStr(line int) string {
	if line <= 0 {
		return ""
	}
	return strconv.Itoa(line)
}

func lineOrNA(line int) string {
	return orNA(lineStr(line))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// mdCell escapes pipes so a value cannot break the table layout.
func mdCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func optionalInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

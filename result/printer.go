package result

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
)

var (
	brokenColor  = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow, color.Bold)
	successColor = color.New(color.FgGreen, color.Bold)
	dimColor     = color.New(color.Faint)
)

// PrintResults writes violations, broken link details and a summary to w.
// The summary line is always printed, even when every count is zero.
// Colors follow fatih/color's TTY detection and NO_COLOR.
func PrintResults(w io.Writer, res *Result) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	if len(res.Violations) > 0 {
		writef("%s\n", warnColor.Sprintf("Rule Violations (%d):", len(res.Violations)))
		for _, v := range res.Violations {
			writef("  %s in %s (Rule: %s)\n", v.URL, location(v.Origin, v.Line), v.Rule)
		}
		writef("\n")
	}

	broken := res.BrokenLinks()
	if len(broken) == 0 {
		writef("%s\n", successColor.Sprint("No broken links found!"))
	} else {
		writef("%s\n", brokenColor.Sprint("Broken Links:"))
		for i, link := range broken {
			writef("  URL: %s\n", link.URL)
			if link.Error != "" {
				writef("  Error: %s\n", link.Error)
			} else {
				writef("  Status: %d\n", link.StatusCode)
			}
			writef("  Found in: %s\n", location(link.Origin, link.Line))
			if i < len(broken)-1 {
				writef("\n")
			}
		}
	}
	writef("Checked %d URLs, found %d broken links, %d working, %d rule violations\n",
		res.Stats.TotalChecked, res.Stats.BrokenCount, res.Stats.WorkingCount, res.Stats.Violations)
	if res.Stats.Duration > 0 {
		writef("%s\n", dimColor.Sprintf("Finished in %s", res.Stats.Duration.Round(1_000_000)))
	}
}

// location renders "origin:line", using "?" when the line is unknown.
func location(origin string, line int) string {
	if line <= 0 {
		return origin + ":?"
	}
	return origin + ":" + strconv.Itoa(line)
}

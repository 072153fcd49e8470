package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lukemcguire/linkguard/result"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	successStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warnStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	categoryStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle         = lipgloss.NewStyle().Faint(true)
	urlStyle         = lipgloss.NewStyle()
	statusErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// categoryOrder defines the display order for error categories (most to least actionable).
var categoryOrder = []result.ErrorCategory{
	result.Category4xx,
	result.Category5xx,
	result.CategoryTimeout,
	result.CategoryDNSFailure,
	result.CategoryConnectionRefused,
	result.CategoryTLS,
	result.CategoryRedirectLoop,
	result.CategoryCancelled,
	result.CategoryUnknown,
}

// RenderSummary produces a Lip Gloss styled summary of a verification run.
func RenderSummary(res *result.Result) string {
	if res == nil {
		return errorStyle.Render("No results available.")
	}

	var builder strings.Builder

	if len(res.Violations) > 0 {
		builder.WriteString(warnStyle.Render(fmt.Sprintf("Rule Violations (%d)", len(res.Violations))))
		builder.WriteString("\n")
		rows := make([][]string, 0, len(res.Violations))
		for _, v := range res.Violations {
			rows = append(rows, []string{v.URL, v.Rule, location(v.Origin, v.Line)})
		}
		builder.WriteString(renderTable([]string{"URL", "Rule", "Found In"}, rows))
		builder.WriteString("\n\n")
	}

	broken := res.BrokenLinks()
	if len(broken) == 0 {
		builder.WriteString(successStyle.Render("No broken links found!"))
		builder.WriteString("\n")
		builder.WriteString(dimStyle.Render(summaryLine(res)))
		builder.WriteString("\n")
		return builder.String()
	}

	grouped := make(map[result.ErrorCategory][]result.LinkResult)
	for _, link := range broken {
		cat := link.Category
		if cat == result.CategoryNone {
			cat = result.CategoryUnknown
		}
		grouped[cat] = append(grouped[cat], link)
	}

	for _, cat := range categoryOrder {
		links := grouped[cat]
		if len(links) == 0 {
			continue
		}

		builder.WriteString(categoryStyle.Render(fmt.Sprintf("## %s (%d)", result.FormatCategory(cat), len(links))))
		builder.WriteString("\n")

		rows := make([][]string, 0, len(links))
		for _, link := range links {
			status := strconv.Itoa(link.StatusCode)
			if link.Error != "" {
				status = link.Error
			}
			rows = append(rows, []string{link.URL, status, location(link.Origin, link.Line)})
		}
		builder.WriteString(renderTable([]string{"URL", "Status", "Found In"}, rows))
		builder.WriteString("\n\n")
	}

	builder.WriteString(titleStyle.Render(summaryLine(res)))
	builder.WriteString("\n")

	return builder.String()
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 {
				return statusErrorStyle
			}
			return urlStyle
		}).
		Rows(rows...).
		Render()
}

func summaryLine(res *result.Result) string {
	return fmt.Sprintf("Checked %d URLs, found %d broken links, %d working, %d rule violations (%s)",
		res.Stats.TotalChecked,
		res.Stats.BrokenCount,
		res.Stats.WorkingCount,
		res.Stats.Violations,
		res.Stats.Duration.Round(1_000_000), // round to ms
	)
}

func location(origin string, line int) string {
	if line <= 0 {
		return origin + ":?"
	}
	return origin + ":" + strconv.Itoa(line)
}

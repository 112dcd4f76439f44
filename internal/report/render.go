package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const barWidth = 30

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7B2D26"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C28F2C"))
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headingStyle = lipgloss.NewStyle().Bold(true)
)

// Render draws the report as terminal panels.
func Render(rep Report) string {
	summary := lipgloss.JoinVertical(lipgloss.Left,
		headingStyle.Render("Citations that are already archived"),
		shareLine(rep.AlreadyArchived),
		"",
		headingStyle.Render("Archival of regular citation links"),
		shareLine(rep.RegularFound),
	)

	sections := []string{
		titleStyle.Render("Citation archive coverage"),
		panelStyle.Render(summary),
		panelStyle.Render(rateTable("Archival rate by category", rep.ByCategory)),
		panelStyle.Render(rateTable("Top 10 domains (archival %)", rep.TopDomains)),
		panelStyle.Render(yearTable(rep.Years)),
		panelStyle.Render(rateTable("Archival rate by top 10 TLDs", rep.TopTLDs)),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func shareLine(r Rate) string {
	return fmt.Sprintf("%s %5.1f%%  %s",
		bar(r.Percent(), 100),
		r.Percent(),
		labelStyle.Render(fmt.Sprintf("(%d of %d)", r.Found, r.Total)),
	)
}

func rateTable(title string, rates []Rate) string {
	lines := []string{headingStyle.Render(title)}
	if len(rates) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, append(lines, labelStyle.Render("no data"))...)
	}
	width := 0
	for _, r := range rates {
		width = max(width, lipgloss.Width(r.Name))
	}
	for _, r := range rates {
		lines = append(lines, fmt.Sprintf("%-*s %s %5.1f%%  %s",
			width, r.Name,
			bar(r.Percent(), 100),
			r.Percent(),
			labelStyle.Render(fmt.Sprintf("(%d/%d)", r.Found, r.Total)),
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func yearTable(years []YearCount) string {
	lines := []string{headingStyle.Render("Archived snapshots by year")}
	if len(years) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, append(lines, labelStyle.Render("no data"))...)
	}
	peak := 0
	for _, y := range years {
		peak = max(peak, y.Count)
	}
	for _, y := range years {
		lines = append(lines, fmt.Sprintf("%d %s %d", y.Year, bar(float64(y.Count), float64(peak)), y.Count))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func bar(value, full float64) string {
	filled := 0
	if full > 0 {
		filled = int(value / full * barWidth)
	}
	filled = min(max(filled, 0), barWidth)
	return barStyle.Render(strings.Repeat("█", filled)) + strings.Repeat("░", barWidth-filled)
}

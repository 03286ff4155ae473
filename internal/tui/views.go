package tui

import (
	"fmt"
	"strings"

	"github.com/caevv/buildtime/internal/history"
	"github.com/caevv/buildtime/internal/report"
	"github.com/charmbracelet/lipgloss"
)

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return "Bye.\n"
	}

	if m.viewMode == ViewModeDetail {
		return m.renderDetailView()
	}

	sections := []string{
		m.renderHeader(""),
		m.renderStats(),
		m.renderDayList(),
		m.renderHelpBar("q: quit  │  ↑/↓: navigate  │  enter: builds  │  r: refresh"),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader(suffix string) string {
	text := "⏱ Build Times - " + m.project
	if suffix != "" {
		text += " - " + suffix
	}
	title := titleStyle.Render(text)
	subtitle := subtitleStyle.Render(fmt.Sprintf("Last updated: %s", m.lastUpdate.Format("15:04:05")))

	header := lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", subtitle)
	return headerStyle.Render(header)
}

// renderStats renders the totals bar.
func (m Model) renderStats() string {
	stats := []string{
		fmt.Sprintf("%s %d", keyStyle.Render("Days:"), len(m.days)),
		fmt.Sprintf("%s %d", keyStyle.Render("Builds:"), m.totalBuilds),
	}

	if m.totalBuilds > 0 {
		successRate := float64(m.succeeded) / float64(m.totalBuilds) * 100
		stats = append(stats, fmt.Sprintf("%s %d/%d (%.0f%%)",
			keyStyle.Render("Success:"),
			m.succeeded,
			m.totalBuilds,
			successRate,
		))
		stats = append(stats, fmt.Sprintf("%s %s",
			keyStyle.Render("Time:"),
			durationStyle.Render(report.Clock(m.totalTime)),
		))
	}

	return statsStyle.Render(strings.Join(stats, "  │  "))
}

// renderDayList renders one row per day, newest first.
func (m Model) renderDayList() string {
	if len(m.days) == 0 {
		return panelStyle.Render(subtitleStyle.Render(report.NoHistory))
	}

	rows := []string{titleStyle.Render("Days"), ""}

	header := fmt.Sprintf("   %-24s  %6s  %5s  %5s  %5s  %-9s  %s",
		"Day", "Builds", iconSuccess, iconFailed, iconCancelled, "Total", "Average")
	rows = append(rows, keyStyle.Render(header))
	rows = append(rows, keyStyle.Render(strings.Repeat("─", 78)))

	for i, day := range m.days {
		rows = append(rows, m.renderDayRow(day, i == m.selectedDay))
	}

	return panelStyle.Render(strings.Join(rows, "\n"))
}

func (m Model) renderDayRow(day DayState, selected bool) string {
	cursor := " "
	if selected {
		cursor = iconArrow
	}

	s := day.Summary
	total, avg := "-", "-"
	if s.Timed {
		total = report.Clock(s.Total)
		avg = report.HumanDuration(s.Average)
	}

	row := fmt.Sprintf("%s  %-24s  %6d  %s  %s  %s  %s  %s",
		cursor,
		truncate(dayLabel(day), 24),
		s.Count,
		outcomeStyle(history.OutcomeSucceeded).Render(fmt.Sprintf("%5d", s.Succeeded)),
		outcomeStyle(history.OutcomeFailed).Render(fmt.Sprintf("%5d", s.Failed)),
		outcomeStyle(history.OutcomeCancelled).Render(fmt.Sprintf("%5d", s.Cancelled)),
		durationStyle.Render(padRight(total, 9)),
		durationStyle.Render(avg),
	)

	if selected {
		return itemSelectedStyle.Render(row)
	}
	return itemStyle.Render(row)
}

// renderDetailView lists the builds of the selected day.
func (m Model) renderDetailView() string {
	if m.selectedDay >= len(m.days) {
		return "Invalid day selection"
	}
	day := m.days[m.selectedDay]

	sections := []string{m.renderHeader(dayLabel(day))}

	info := []string{
		titleStyle.Render(report.DayHeading(day.DaysAgo, day.Bucket.Date)),
		"",
		valueStyle.Render(report.Figures(day.Summary)),
	}
	sections = append(sections, panelStyle.Render(strings.Join(info, "\n")))

	events := []string{
		titleStyle.Render(fmt.Sprintf("Builds (%d)", len(day.Bucket.Events))),
		"",
		keyStyle.Render(fmt.Sprintf("  %-10s  %-12s  %s", "Finished", "Outcome", "Duration")),
		keyStyle.Render("  " + strings.Repeat("─", 50)),
	}
	for _, e := range day.Bucket.Events {
		events = append(events, renderEvent(e))
	}
	sections = append(sections, detailStyle.Render(strings.Join(events, "\n")))

	sections = append(sections, m.renderHelpBar("esc: back  │  q: quit  │  r: refresh"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderEvent(e history.Event) string {
	duration := "unavailable"
	if e.Timed {
		duration = fmt.Sprintf("%s (%s)", report.Clock(e.Duration), report.HumanDuration(e.Duration))
	}

	label := fmt.Sprintf("%s %-10s", outcomeIcon(e.Outcome), e.Outcome.String())
	return fmt.Sprintf("  %-10s  %s  %s",
		e.Timestamp.Format("15:04:05"),
		outcomeStyle(e.Outcome).Render(label),
		durationStyle.Render(duration),
	)
}

// renderHelpBar renders the help/status bar at the bottom.
func (m Model) renderHelpBar(help string) string {
	if m.errorMessage != "" {
		return statusBarStyle.Render(errorStyle.Render("Error: " + m.errorMessage))
	}
	return statusBarStyle.Render(help)
}

func dayLabel(day DayState) string {
	switch day.DaysAgo {
	case 0:
		return "Today"
	case 1:
		return "Yesterday"
	default:
		return day.Bucket.Date.Format("Mon Jan 2 2006")
	}
}

// truncate truncates a string to a maximum length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// padRight pads a string with spaces to reach the desired length.
func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

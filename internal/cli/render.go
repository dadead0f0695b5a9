// Package cli renders poll results for the one-shot commands: a styled
// block for interactive terminals and a single plain line for status
// bars (tmux, SketchyBar, xbar).
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/janekbaraniewski/claudebar/internal/poller"
)

const gaugeWidth = 24

// RenderStatus renders the full status block for `claudebar status`.
func RenderStatus(state poller.State, warnThresh, critThresh float64, now time.Time) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Claude usage"))
	b.WriteString(dimStyle.Render("  " + state.Profile.Label))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("status "))
	b.WriteString(statusStyle(state.Status).Render(string(state.Status)))
	if state.Message != "" && state.Status != poller.StatusOK {
		b.WriteString(dimStyle.Render("  " + state.Message))
	}
	b.WriteString("\n")

	if state.Snapshot == nil {
		b.WriteString(dimStyle.Render("no usage data yet"))
		b.WriteString("\n")
		return b.String()
	}

	for _, lw := range state.Snapshot.Windows() {
		b.WriteString(fmt.Sprintf("%s %s",
			labelStyle.Render(fmt.Sprintf("%-13s", lw.Label)),
			RenderUsageGauge(lw.Window.Utilization, gaugeWidth, warnThresh, critThresh),
		))
		if lw.Window.ResetsAt != nil {
			b.WriteString(dimStyle.Render("  resets " + formatReset(now, *lw.Window.ResetsAt)))
		}
		b.WriteString("\n")
	}

	if extra := state.Snapshot.Extra; extra != nil && extra.Enabled {
		line := fmt.Sprintf("%.2f credits", extra.UsedCredits)
		if extra.MonthlyLimit != nil {
			line = fmt.Sprintf("%.2f / %.2f credits", extra.UsedCredits, *extra.MonthlyLimit)
		}
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-13s", "extra usage")))
		b.WriteString(" " + valueStyle.Render(line))
		b.WriteString("\n")
	}

	b.WriteString(dimStyle.Render("updated " + state.UpdatedAt.Local().Format("15:04:05")))
	b.WriteString("\n")
	return b.String()
}

// StatusLine renders the one-line status-bar form: an indicator, the
// worst utilization across the 5-hour and 7-day windows, and the next
// reset. Output is plain text so bar hosts do not have to strip ANSI.
func StatusLine(state poller.State, warnThresh, critThresh float64, now time.Time, maxWidth int) string {
	var line string
	switch {
	case state.Status == poller.StatusAuth:
		line = "🔑 login required"
	case state.Snapshot == nil:
		line = "⏳ Claude …"
	default:
		worst := state.Snapshot.Worst()
		if worst < 0 {
			line = "⚪ Claude n/a"
			break
		}
		indicator := "🟢"
		switch usageColor(worst, warnThresh, critThresh) {
		case colorCrit:
			indicator = "🔴"
		case colorWarn:
			indicator = "🟡"
		}
		line = fmt.Sprintf("%s %.0f%%", indicator, worst)
		if reset := nextReset(state); reset != nil {
			line += " · " + formatReset(now, *reset)
		}
		if state.Status == poller.StatusStale {
			line += " (stale)"
		}
	}

	if maxWidth > 0 {
		line = fitWidth(line, maxWidth)
	}
	return line
}

// nextReset picks the soonest reset across the snapshot's windows.
func nextReset(state poller.State) *time.Time {
	if state.Snapshot == nil {
		return nil
	}
	var soonest *time.Time
	for _, lw := range state.Snapshot.Windows() {
		r := lw.Window.ResetsAt
		if r == nil {
			continue
		}
		if soonest == nil || r.Before(*soonest) {
			soonest = r
		}
	}
	return soonest
}

// formatReset gives a compact countdown like "2h14m" or "3d".
func formatReset(now, at time.Time) string {
	d := at.Sub(now)
	if d <= 0 {
		return "now"
	}
	switch {
	case d >= 48*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours())/24)
	case d >= time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
}

func fitWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	return ansi.Cut(s, 0, width)
}

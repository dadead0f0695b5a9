package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/janekbaraniewski/claudebar/internal/poller"
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderUsageCard())
	if m.hasSpark {
		b.WriteString("\n")
		b.WriteString(m.renderHistoryCard())
	}
	b.WriteString("\n")
	b.WriteString(m.renderProfiles())
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("  r refresh · p switch profile · q quit"))
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderHeader() string {
	title := brandStyle.Render(" claudebar ")
	status := statusBadge(m.state.Status)

	age := ""
	if !m.state.UpdatedAt.IsZero() {
		age = dimStyle.Render(fmt.Sprintf("updated %s ago", humanAge(m.now().Sub(m.state.UpdatedAt))))
	}

	line := lipgloss.JoinHorizontal(lipgloss.Center, title, " ", status, "  ", age)
	if m.state.Message != "" && m.state.Status != poller.StatusOK {
		line += "\n  " + dimStyle.Render(m.state.Message)
	}
	return line
}

func (m Model) renderUsageCard() string {
	if m.state.Snapshot == nil {
		return cardStyle.Render(dimStyle.Render("waiting for first poll"))
	}

	gaugeW := m.width - 30
	if gaugeW < 10 {
		gaugeW = 10
	}
	if gaugeW > 40 {
		gaugeW = 40
	}

	var rows []string
	for _, lw := range m.state.Snapshot.Windows() {
		row := fmt.Sprintf("%s %s",
			labelStyle.Render(fmt.Sprintf("%-13s", lw.Label)),
			renderUsageGauge(lw.Window.Utilization, gaugeW, m.warnThreshold, m.critThreshold),
		)
		if lw.Window.ResetsAt != nil {
			row += dimStyle.Render("  " + humanReset(m.now(), *lw.Window.ResetsAt))
		}
		rows = append(rows, row)
	}

	if extra := m.state.Snapshot.Extra; extra != nil && extra.Enabled {
		line := fmt.Sprintf("%.2f credits", extra.UsedCredits)
		if extra.MonthlyLimit != nil {
			line = fmt.Sprintf("%.2f / %.2f credits", extra.UsedCredits, *extra.MonthlyLimit)
		}
		rows = append(rows, labelStyle.Render(fmt.Sprintf("%-13s", "extra usage"))+" "+valueStyle.Render(line))
	}

	return cardStyle.Render(strings.Join(rows, "\n"))
}

func (m Model) renderHistoryCard() string {
	header := labelStyle.Render("5-hour window, last samples")
	return cardStyle.Render(header + "\n" + m.spark.View())
}

func (m Model) renderProfiles() string {
	if len(m.profiles) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m.profiles))
	for _, p := range m.profiles {
		label := p.Label
		if label == "" {
			label = p.ID
		}
		if p.ID == m.state.Profile.ID {
			parts = append(parts, activeProfileStyle.Render("● "+label))
		} else {
			parts = append(parts, dimStyle.Render("○ "+label))
		}
	}
	return "  " + strings.Join(parts, "   ")
}

func statusBadge(status poller.Status) string {
	var color lipgloss.Color
	switch status {
	case poller.StatusOK:
		color = colorOK
	case poller.StatusStale:
		color = colorWarn
	case poller.StatusAuth:
		color = colorAuth
	case poller.StatusError:
		color = colorCrit
	default:
		color = colorDim
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(colorSurface0).
		Background(color).
		Padding(0, 1).
		Render(string(status))
}

func humanAge(d time.Duration) string {
	switch {
	case d < time.Second:
		return "0s"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}

func humanReset(now, at time.Time) string {
	d := at.Sub(now)
	if d <= 0 {
		return "resets now"
	}
	switch {
	case d >= 48*time.Hour:
		return fmt.Sprintf("resets in %dd", int(d.Hours())/24)
	case d >= time.Hour:
		return fmt.Sprintf("resets in %dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("resets in %dm", int(d.Minutes()))
	}
}

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/janekbaraniewski/claudebar/internal/poller"
)

// Catppuccin Mocha subset.
var (
	colorSurface1 = lipgloss.Color("#45475A")
	colorText     = lipgloss.Color("#CDD6F4")
	colorSubtext  = lipgloss.Color("#A6ADC8")
	colorDim      = lipgloss.Color("#585B70")
	colorLavender = lipgloss.Color("#B4BEFE")
	colorGreen    = lipgloss.Color("#A6E3A1")
	colorYellow   = lipgloss.Color("#F9E2AF")
	colorRed      = lipgloss.Color("#F38BA8")
	colorPeach    = lipgloss.Color("#FAB387")

	colorOK   = colorGreen
	colorWarn = colorYellow
	colorCrit = colorRed
	colorAuth = colorPeach
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorLavender)
	labelStyle  = lipgloss.NewStyle().Foreground(colorSubtext)
	valueStyle  = lipgloss.NewStyle().Foreground(colorText)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	alertStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	authStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAuth)
	staleStyle  = lipgloss.NewStyle().Foreground(colorYellow)
	trackStyle  = lipgloss.NewStyle().Foreground(colorSurface1)
	okBoldStyle = lipgloss.NewStyle().Bold(true).Foreground(colorOK)
)

// usageColor picks the gauge color for a used percentage. Thresholds
// are used fractions, e.g. 0.50 warn and 0.80 crit.
func usageColor(usedPercent, warnThresh, critThresh float64) lipgloss.Color {
	switch {
	case usedPercent >= critThresh*100:
		return colorCrit
	case usedPercent >= warnThresh*100:
		return colorWarn
	default:
		return colorOK
	}
}

func statusStyle(status poller.Status) lipgloss.Style {
	switch status {
	case poller.StatusOK:
		return okBoldStyle
	case poller.StatusStale:
		return staleStyle
	case poller.StatusAuth:
		return authStyle
	case poller.StatusError:
		return alertStyle
	default:
		return dimStyle
	}
}

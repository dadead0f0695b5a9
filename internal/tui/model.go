// Package tui is the interactive dashboard behind the bare `claudebar`
// command: live usage gauges for the active profile, a utilization
// sparkline fed from the history store, and profile switching.
package tui

import (
	"context"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/janekbaraniewski/claudebar/internal/history"
	"github.com/janekbaraniewski/claudebar/internal/poller"
	"github.com/janekbaraniewski/claudebar/internal/profile"
)

// StateMsg carries a fresh poll result into the program. The launcher
// forwards the poller's OnUpdate callback as this message.
type StateMsg poller.State

type samplesMsg []history.Sample

type profilesMsg []profile.Profile

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Controller is the slice of poller and registry behavior the keys
// need. Kept narrow so tests can drive the model with a fake.
type Controller interface {
	RefreshNow()
	SetActive(id string) error
	List() ([]profile.Profile, error)
}

// HistorySource loads recent samples for the sparkline.
type HistorySource interface {
	Recent(ctx context.Context, profileID string, limit int) ([]history.Sample, error)
}

const sparklineSamples = 120

type Model struct {
	controller Controller
	histSource HistorySource

	state    poller.State
	profiles []profile.Profile
	samples  []history.Sample

	spark    sparkline.Model
	hasSpark bool

	warnThreshold float64
	critThreshold float64

	width  int
	height int
	now    func() time.Time
}

func NewModel(controller Controller, histSource HistorySource, warnThresh, critThresh float64) Model {
	return Model{
		controller:    controller,
		histSource:    histSource,
		state:         poller.State{Status: poller.StatusPending},
		warnThreshold: warnThresh,
		critThreshold: critThresh,
		now:           time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadProfilesCmd(), tickCmd())
}

func (m Model) loadProfilesCmd() tea.Cmd {
	return func() tea.Msg {
		profiles, err := m.controller.List()
		if err != nil {
			return profilesMsg(nil)
		}
		return profilesMsg(profiles)
	}
}

func (m Model) loadSamplesCmd(profileID string) tea.Cmd {
	if m.histSource == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		samples, err := m.histSource.Recent(ctx, profileID, sparklineSamples)
		if err != nil {
			return samplesMsg(nil)
		}
		return samplesMsg(samples)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.rebuildSparkline()
		return m, nil

	case tickMsg:
		// Drives the "updated Ns ago" line and reset countdowns.
		return m, tickCmd()

	case StateMsg:
		m.state = poller.State(msg)
		return m, m.loadSamplesCmd(m.state.Profile.ID)

	case samplesMsg:
		m.samples = []history.Sample(msg)
		m.rebuildSparkline()
		return m, nil

	case profilesMsg:
		m.profiles = []profile.Profile(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "r":
		m.controller.RefreshNow()
		return m, nil
	case "p", "tab":
		return m.cycleProfile()
	}
	return m, nil
}

// cycleProfile activates the next profile in display order. The poller
// picks the switch up on its next cycle; a manual kick makes that
// immediate.
func (m Model) cycleProfile() (tea.Model, tea.Cmd) {
	if len(m.profiles) < 2 {
		return m, nil
	}
	idx := lo.IndexOf(profileIDs(m.profiles), m.state.Profile.ID)
	next := m.profiles[(idx+1)%len(m.profiles)]

	if err := m.controller.SetActive(next.ID); err != nil {
		return m, nil
	}
	m.controller.RefreshNow()
	return m, nil
}

func profileIDs(profiles []profile.Profile) []string {
	return lo.Map(profiles, func(p profile.Profile, _ int) string { return p.ID })
}

func (m *Model) rebuildSparkline() {
	series := history.Series(m.samples, func(s history.Sample) *float64 { return s.FiveHour })
	if len(series) == 0 || m.width < 20 {
		m.hasSpark = false
		return
	}

	w := m.width - 8
	if w > sparklineSamples {
		w = sparklineSamples
	}
	sl := sparkline.New(w, 4,
		sparkline.WithMaxValue(100),
		sparkline.WithStyle(lipgloss.NewStyle().Foreground(colorAccent)),
	)
	sl.PushAll(series)
	sl.Draw()
	m.spark = sl
	m.hasSpark = true
}

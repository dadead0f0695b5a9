package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/janekbaraniewski/claudebar/internal/appupdate"
	"github.com/janekbaraniewski/claudebar/internal/config"
	"github.com/janekbaraniewski/claudebar/internal/poller"
	"github.com/janekbaraniewski/claudebar/internal/profile"
	"github.com/janekbaraniewski/claudebar/internal/tui"
	"github.com/janekbaraniewski/claudebar/internal/version"
)

// dashboardController narrows the poller and registry to the handful
// of actions the dashboard keys trigger.
type dashboardController struct {
	poller   *poller.Poller
	registry *profile.Registry
}

func (c dashboardController) RefreshNow() { c.poller.RefreshNow() }

func (c dashboardController) SetActive(id string) error { return c.registry.SetActive(id) }

func (c dashboardController) List() ([]profile.Profile, error) { return c.registry.List() }

func runDashboard(app *app) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := app.newPoller()

	var histSource tui.HistorySource
	hist, err := openHistory()
	if err != nil {
		log.Printf("[dashboard] history store unavailable: %v", err)
	} else {
		defer hist.Close()
		p.Recorder = hist
		histSource = hist
		go func() {
			if n, err := hist.Prune(ctx, historyRetention); err == nil && n > 0 {
				log.Printf("[dashboard] pruned %d old samples", n)
			}
		}()
	}

	model := tui.NewModel(
		dashboardController{poller: p, registry: app.registry},
		histSource,
		app.cfg.WarnThreshold,
		app.cfg.CritThreshold,
	)
	program := tea.NewProgram(model, tea.WithAltScreen())

	p.OnUpdate = func(state poller.State) {
		program.Send(tui.StateMsg(state))
	}

	// Config edits take effect live: a changed cadence re-arms the
	// timer, and profile edits surface on the next cycle.
	go func() {
		err := config.Watch(ctx, config.ConfigPath(), func(cfg config.Config) {
			p.SetInterval(time.Duration(cfg.RefreshSeconds) * time.Second)
		})
		if err != nil {
			log.Printf("[dashboard] config watch: %v", err)
		}
	}()

	go p.Run(ctx)

	updateCh := checkForUpdate(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}

	select {
	case result := <-updateCh:
		if result.UpdateAvailable {
			fmt.Fprintf(os.Stderr, "claudebar %s is available (current %s): %s\n",
				result.LatestVersion, result.CurrentVersion, result.UpgradeHint)
		}
	default:
	}
	return nil
}

// checkForUpdate runs the release check in the background so the
// dashboard never waits on GitHub.
func checkForUpdate(ctx context.Context) <-chan appupdate.Result {
	ch := make(chan appupdate.Result, 1)
	go func() {
		result, err := appupdate.Check(ctx, appupdate.CheckOptions{
			CurrentVersion: version.Version,
		})
		if err != nil {
			log.Printf("[dashboard] update check: %v", err)
			return
		}
		ch <- result
	}()
	return ch
}

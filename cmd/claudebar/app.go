package main

import (
	"path/filepath"
	"time"

	"github.com/janekbaraniewski/claudebar/internal/config"
	"github.com/janekbaraniewski/claudebar/internal/history"
	"github.com/janekbaraniewski/claudebar/internal/keychain"
	"github.com/janekbaraniewski/claudebar/internal/oauth"
	"github.com/janekbaraniewski/claudebar/internal/poller"
	"github.com/janekbaraniewski/claudebar/internal/profile"
	"github.com/janekbaraniewski/claudebar/internal/usage"
)

const historyRetention = 90 * 24 * time.Hour

// app bundles the wired components every command starts from.
type app struct {
	cfg      config.Config
	store    keychain.Store
	registry *profile.Registry
	tokens   *oauth.Manager
	fetcher  *usage.Client
}

func newApp(cfg config.Config) (*app, error) {
	store, err := keychain.NewExecStore()
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		store:    store,
		registry: profile.NewRegistry(config.ConfigPath(), store),
		tokens:   oauth.NewManager(store),
		fetcher:  usage.NewClient(),
	}, nil
}

func (a *app) newPoller() *poller.Poller {
	interval := time.Duration(a.cfg.RefreshSeconds) * time.Second
	return poller.New(a.tokens, a.fetcher, a.registry, interval)
}

func historyPath() string {
	return filepath.Join(config.ConfigDir(), "history.db")
}

func openHistory() (*history.Store, error) {
	return history.Open(historyPath())
}

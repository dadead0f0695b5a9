package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/janekbaraniewski/claudebar/internal/config"
	"github.com/janekbaraniewski/claudebar/internal/keychain"
)

var (
	ErrNotFound      = errors.New("profile: not found")
	ErrAlreadyExists = errors.New("profile: already exists")
	// ErrProtected is returned for operations the auto profile does
	// not allow (it always exists and always reads the live keychain).
	ErrProtected = errors.New("profile: auto profile cannot be modified")
)

// Registry persists profile metadata in the config file and snapshot
// credentials in the keychain. Config stays secret-free.
type Registry struct {
	configPath string
	store      keychain.Store
}

func NewRegistry(configPath string, store keychain.Store) *Registry {
	return &Registry{configPath: configPath, store: store}
}

// List returns all profiles, auto first, the rest ordered by ID.
func (r *Registry) List() ([]Profile, error) {
	cfg, err := config.LoadFrom(r.configPath)
	if err != nil {
		return nil, err
	}
	profiles := make([]Profile, 0, len(cfg.Profiles))
	for id, pc := range cfg.Profiles {
		profiles = append(profiles, fromConfig(id, pc))
	}
	sortProfiles(profiles)
	return profiles, nil
}

// Active returns the currently selected profile. A dangling
// active_profile entry resolves to auto (config.LoadFrom repairs it).
func (r *Registry) Active() (Profile, error) {
	cfg, err := config.LoadFrom(r.configPath)
	if err != nil {
		return Profile{}, err
	}
	pc, ok := cfg.Profiles[cfg.ActiveProfile]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, cfg.ActiveProfile)
	}
	return fromConfig(cfg.ActiveProfile, pc), nil
}

func (r *Registry) Get(id string) (Profile, error) {
	cfg, err := config.LoadFrom(r.configPath)
	if err != nil {
		return Profile{}, err
	}
	pc, ok := cfg.Profiles[id]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return fromConfig(id, pc), nil
}

func (r *Registry) SetActive(id string) error {
	cfg, err := config.LoadFrom(r.configPath)
	if err != nil {
		return err
	}
	if _, ok := cfg.Profiles[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return config.UpdateAt(r.configPath, func(c *config.Config) {
		c.ActiveProfile = id
	})
}

// Add snapshots the current live credential under a new profile key.
// The copy is point-in-time: later logins in Claude Code do not touch
// it. The profile's plan is recorded from the credential so the
// display layer can show it without another keychain read.
func (r *Registry) Add(ctx context.Context, id, label string) (Profile, error) {
	if err := ValidateID(id); err != nil {
		return Profile{}, err
	}
	if id == config.AutoProfileID {
		return Profile{}, ErrProtected
	}

	cfg, err := config.LoadFrom(r.configPath)
	if err != nil {
		return Profile{}, err
	}
	if _, ok := cfg.Profiles[id]; ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}

	cred, err := r.store.Get(ctx, LiveCredentialKey)
	if err != nil {
		return Profile{}, fmt.Errorf("reading live credential: %w", err)
	}

	p := Profile{ID: id, Label: label, Source: SourceSnapshot, Plan: cred.SubscriptionType}
	if p.Label == "" {
		p.Label = id
	}

	if err := r.store.Set(ctx, CredentialKey(p), cred); err != nil {
		return Profile{}, fmt.Errorf("storing snapshot credential: %w", err)
	}

	if err := config.UpdateAt(r.configPath, func(c *config.Config) {
		c.Profiles[id] = config.ProfileConfig{
			Label:  p.Label,
			Source: string(SourceSnapshot),
			Plan:   p.Plan,
		}
	}); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Refresh re-snapshots the live credential into an existing profile,
// for when the snapshot's refresh token has itself been revoked.
func (r *Registry) Refresh(ctx context.Context, id string) (Profile, error) {
	p, err := r.Get(id)
	if err != nil {
		return Profile{}, err
	}
	if p.Source != SourceSnapshot {
		return Profile{}, ErrProtected
	}

	cred, err := r.store.Get(ctx, LiveCredentialKey)
	if err != nil {
		return Profile{}, fmt.Errorf("reading live credential: %w", err)
	}
	if err := r.store.Set(ctx, CredentialKey(p), cred); err != nil {
		return Profile{}, fmt.Errorf("storing snapshot credential: %w", err)
	}

	p.Plan = cred.SubscriptionType
	if err := config.UpdateAt(r.configPath, func(c *config.Config) {
		pc := c.Profiles[id]
		pc.Plan = cred.SubscriptionType
		c.Profiles[id] = pc
	}); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Remove deletes a snapshot profile and its stored credential. If the
// removed profile was active, selection falls back to auto.
func (r *Registry) Remove(ctx context.Context, id string) error {
	if id == config.AutoProfileID {
		return ErrProtected
	}
	p, err := r.Get(id)
	if err != nil {
		return err
	}

	if err := r.store.Delete(ctx, CredentialKey(p)); err != nil &&
		!errors.Is(err, keychain.ErrNotFound) {
		return fmt.Errorf("deleting snapshot credential: %w", err)
	}

	return config.UpdateAt(r.configPath, func(c *config.Config) {
		delete(c.Profiles, id)
		if c.ActiveProfile == id {
			c.ActiveProfile = config.AutoProfileID
		}
	})
}

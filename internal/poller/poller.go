// Package poller drives the periodic refresh cycle: ensure a valid
// token, fetch usage, publish the result. The presentation layer only
// ever reads the last published state; it never blocks on the network.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/janekbaraniewski/claudebar/internal/keychain"
	"github.com/janekbaraniewski/claudebar/internal/oauth"
	"github.com/janekbaraniewski/claudebar/internal/profile"
	"github.com/janekbaraniewski/claudebar/internal/usage"
)

type Status string

const (
	// StatusPending: no poll has completed yet.
	StatusPending Status = "PENDING"
	// StatusOK: the displayed snapshot is from the latest cycle.
	StatusOK Status = "OK"
	// StatusStale: the latest cycle failed transiently; the previous
	// snapshot is still shown and the next cycle will retry.
	StatusStale Status = "STALE"
	// StatusAuth: the user has to log into Claude Code again.
	StatusAuth Status = "AUTH_REQUIRED"
	// StatusError: terminal for the cycle and user-actionable.
	StatusError Status = "ERROR"
)

// State is the atomically-replaced poll result. Snapshot survives
// failed cycles so the display can keep the last-good figures.
type State struct {
	Snapshot  *usage.Snapshot
	Profile   profile.Profile
	UpdatedAt time.Time // last successful fetch
	Status    Status
	Message   string
}

// TokenSource is what the poller needs from the token lifecycle
// manager.
type TokenSource interface {
	EnsureValidToken(ctx context.Context, p profile.Profile) (string, error)
	ForceRefresh(ctx context.Context, p profile.Profile) (string, error)
}

// Fetcher is what the poller needs from the usage client.
type Fetcher interface {
	Fetch(ctx context.Context, accessToken string) (usage.Snapshot, error)
}

// ActiveSource resolves the profile to poll. Reading it every tick
// means profile switches take effect on the next cycle without any
// poller restart.
type ActiveSource interface {
	Active() (profile.Profile, error)
}

// Recorder receives successful snapshots, e.g. for the history store.
type Recorder interface {
	Record(ctx context.Context, profileID string, snap usage.Snapshot) error
}

type Poller struct {
	tokens   TokenSource
	fetcher  Fetcher
	profiles ActiveSource

	// Recorder and OnUpdate are optional hooks, set before Run.
	Recorder Recorder
	OnUpdate func(State)

	interval atomic.Int64 // nanoseconds
	timeout  time.Duration

	inFlight atomic.Bool
	kick     chan struct{}

	mu    sync.RWMutex
	state State
}

func New(tokens TokenSource, fetcher Fetcher, profiles ActiveSource, interval time.Duration) *Poller {
	p := &Poller{
		tokens:   tokens,
		fetcher:  fetcher,
		profiles: profiles,
		timeout:  30 * time.Second,
		kick:     make(chan struct{}, 1),
		state:    State{Status: StatusPending, Message: "waiting for first refresh"},
	}
	p.interval.Store(int64(interval))
	return p
}

// Latest returns the last published state.
func (p *Poller) Latest() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// SetInterval re-bases the schedule to a new cadence, effective after
// the next tick fires.
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.interval.Store(int64(d))
}

// RefreshNow requests an out-of-band tick. The manual tick re-bases
// the timer phase: the next scheduled tick happens one full interval
// after it. If a poll is already in flight the request is dropped.
func (p *Poller) RefreshNow() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run polls immediately, then on the configured interval, until ctx is
// cancelled. In-flight work is abandoned on shutdown; the credential
// store write inside the lifecycle manager is its own single commit
// point, so no partial write can be observed.
func (p *Poller) Run(ctx context.Context) {
	p.tick(ctx)

	timer := time.NewTimer(p.intervalDur())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			p.tick(ctx)
			timer.Reset(p.intervalDur())
		case <-p.kick:
			p.tick(ctx)
			// Phase reset: manual refresh restarts the cadence.
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.intervalDur())
		}
	}
}

func (p *Poller) intervalDur() time.Duration {
	return time.Duration(p.interval.Load())
}

// PollOnce runs one synchronous cycle and returns the resulting state.
// Used by the one-shot CLI commands; Run uses the asynchronous tick.
func (p *Poller) PollOnce(ctx context.Context) State {
	if p.inFlight.CompareAndSwap(false, true) {
		cycleCtx, cancel := context.WithTimeout(ctx, p.timeout)
		p.poll(cycleCtx)
		cancel()
		p.inFlight.Store(false)
	}
	return p.Latest()
}

// tick runs one full cycle in the background. A tick arriving while a
// previous one is still outstanding is dropped, not queued: one
// in-flight window means at most one fetch and one credential write.
func (p *Poller) tick(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		log.Println("[poller] tick coalesced, previous poll still in flight")
		return
	}
	go func() {
		defer p.inFlight.Store(false)

		cycleCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		p.poll(cycleCtx)
	}()
}

func (p *Poller) poll(ctx context.Context) {
	prof, err := p.profiles.Active()
	if err != nil {
		p.publishFailure(profile.Profile{}, StatusError, fmt.Sprintf("config unreadable: %v", err))
		return
	}

	snap, err := p.pollProfile(ctx, prof)
	if err != nil {
		status, msg := classify(err)
		p.publishFailure(prof, status, msg)
		return
	}

	if p.Recorder != nil {
		if err := p.Recorder.Record(ctx, prof.ID, snap); err != nil {
			log.Printf("[poller] recording history: %v", err)
		}
	}

	p.publish(State{
		Snapshot:  &snap,
		Profile:   prof,
		UpdatedAt: snap.FetchedAt,
		Status:    StatusOK,
		Message:   "",
	})
}

// pollProfile is one token+fetch cycle, with the single forced
// refresh-and-retry the 401 contract calls for.
func (p *Poller) pollProfile(ctx context.Context, prof profile.Profile) (usage.Snapshot, error) {
	token, err := p.tokens.EnsureValidToken(ctx, prof)
	if err != nil {
		return usage.Snapshot{}, err
	}

	snap, err := p.fetcher.Fetch(ctx, token)
	if !errors.Is(err, usage.ErrUnauthorized) {
		return snap, err
	}

	// Server rejected a token our clock liked. Force exactly one
	// refresh and retry once; a second 401 surfaces to the user.
	log.Printf("[poller] usage endpoint rejected token for %q, forcing refresh", prof.ID)
	token, err = p.tokens.ForceRefresh(ctx, prof)
	if err != nil {
		return usage.Snapshot{}, err
	}
	return p.fetcher.Fetch(ctx, token)
}

func (p *Poller) publish(next State) {
	p.mu.Lock()
	p.state = next
	p.mu.Unlock()

	if p.OnUpdate != nil {
		p.OnUpdate(next)
	}
}

// publishFailure keeps the previous snapshot and success timestamp but
// records why the cycle failed.
func (p *Poller) publishFailure(prof profile.Profile, status Status, msg string) {
	p.mu.Lock()
	prev := p.state
	next := State{
		Snapshot:  prev.Snapshot,
		Profile:   prof,
		UpdatedAt: prev.UpdatedAt,
		Status:    status,
		Message:   msg,
	}
	if prof.ID == "" {
		next.Profile = prev.Profile
	}
	p.state = next
	p.mu.Unlock()

	log.Printf("[poller] cycle failed (%s): %s", status, msg)
	if p.OnUpdate != nil {
		p.OnUpdate(next)
	}
}

// classify maps the error taxonomy onto a display status and a short
// actionable message. Transient classes come back as StatusStale and
// are retried on the next cycle without user involvement.
func classify(err error) (Status, string) {
	switch {
	case errors.Is(err, oauth.ErrNoCredentials):
		return StatusAuth, "no Claude Code credentials: run `claude` and log in"
	case errors.Is(err, oauth.ErrInvalidRefreshResponse):
		return StatusAuth, "token refresh rejected: re-login to Claude Code"
	case errors.Is(err, usage.ErrUnauthorized):
		return StatusAuth, "access token rejected: re-login to Claude Code"
	case errors.Is(err, keychain.ErrAccessDenied):
		return StatusError, "keychain access denied: unlock the login keychain"
	case errors.Is(err, keychain.ErrStoreUnavailable):
		return StatusError, "keychain unavailable"
	case errors.Is(err, keychain.ErrMalformedEntry):
		return StatusError, "stored credentials unreadable: re-login to Claude Code"
	case errors.Is(err, usage.ErrInvalidPayload):
		return StatusError, "usage endpoint returned malformed data"
	case errors.Is(err, oauth.ErrRefreshFailed):
		return StatusStale, "token refresh failed, will retry"
	default:
		return StatusStale, fmt.Sprintf("update failed, will retry: %v", err)
	}
}

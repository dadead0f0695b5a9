// Package oauth owns the token lifecycle: deciding when the stored
// access token is still usable, exchanging the refresh token for a new
// one, and persisting the result without ever leaving the store in a
// half-written state.
package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/janekbaraniewski/claudebar/internal/keychain"
	"github.com/janekbaraniewski/claudebar/internal/profile"
)

const (
	// TokenEndpoint is the same refresh endpoint Claude Code uses.
	TokenEndpoint = "https://console.anthropic.com/v1/oauth/token"
	// ClientID identifies the Claude Code OAuth client.
	ClientID = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"

	// DefaultSafetyMargin absorbs clock skew: tokens within this much
	// of expiry are refreshed early rather than risked against a 401.
	DefaultSafetyMargin = 60 * time.Second

	defaultTimeout = 10 * time.Second
)

var (
	// ErrNoCredentials: nothing stored (or no refresh token); the
	// user has to log into Claude Code again.
	ErrNoCredentials = errors.New("oauth: no credentials")
	// ErrRefreshFailed: transport-level failure; the stored credential
	// is untouched and the next poll cycle can retry.
	ErrRefreshFailed = errors.New("oauth: token refresh failed")
	// ErrInvalidRefreshResponse: the endpoint answered but the payload
	// cannot be trusted; nothing is written to the store.
	ErrInvalidRefreshResponse = errors.New("oauth: invalid refresh response")
)

// Manager hands out currently-valid access tokens for a profile,
// refreshing and persisting behind the scenes.
//
// Refreshes for the same credential key are serialized with a per-key
// lock, so concurrent timer ticks cannot race on the store write.
type Manager struct {
	Store    keychain.Store
	Client   *http.Client
	Endpoint string
	ClientID string
	Margin   time.Duration
	Now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(store keychain.Store) *Manager {
	return &Manager{
		Store:    store,
		Client:   &http.Client{Timeout: defaultTimeout},
		Endpoint: TokenEndpoint,
		ClientID: ClientID,
		Margin:   DefaultSafetyMargin,
		Now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (m *Manager) keyLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks == nil {
		m.locks = make(map[string]*sync.Mutex)
	}
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// EnsureValidToken returns an access token for the profile, refreshing
// it first if it is at or past expiry minus the safety margin. A token
// still inside the margin is returned as-is with no network call.
func (m *Manager) EnsureValidToken(ctx context.Context, p profile.Profile) (string, error) {
	key := profile.CredentialKey(p)
	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	cred, err := m.load(ctx, key)
	if err != nil {
		return "", err
	}
	if !cred.ExpiresWithin(m.Now(), m.Margin) {
		return cred.AccessToken, nil
	}
	return m.refreshAndStore(ctx, key, cred)
}

// ForceRefresh refreshes regardless of local expiry. The usage client
// calls this once when the server rejects a token our clock still
// considers valid.
func (m *Manager) ForceRefresh(ctx context.Context, p profile.Profile) (string, error) {
	key := profile.CredentialKey(p)
	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	cred, err := m.load(ctx, key)
	if err != nil {
		return "", err
	}
	return m.refreshAndStore(ctx, key, cred)
}

func (m *Manager) load(ctx context.Context, key string) (keychain.Credential, error) {
	cred, err := m.Store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, keychain.ErrNotFound) {
			return keychain.Credential{}, fmt.Errorf("%w: nothing stored under %q", ErrNoCredentials, key)
		}
		return keychain.Credential{}, err
	}
	return cred, nil
}

type refreshRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	ExpiresIn    int64  `json:"expires_in"`
}

// refreshAndStore runs steps 4-6 of the lifecycle: call the endpoint,
// validate every required field, then replace the stored credential in
// a single commit. Any validation failure leaves the store untouched.
func (m *Manager) refreshAndStore(ctx context.Context, key string, old keychain.Credential) (string, error) {
	if old.RefreshToken == "" {
		return "", fmt.Errorf("%w: stored entry has no refresh token", ErrNoCredentials)
	}

	body, err := json.Marshal(refreshRequest{
		GrantType:    "refresh_token",
		RefreshToken: old.RefreshToken,
		ClientID:     m.ClientID,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encoding request: %v", ErrRefreshFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		// The connection died mid-body. The response never arrived
		// intact, so this is transport failure, not a bad payload.
		return "", fmt.Errorf("%w: reading response: %v", ErrRefreshFailed, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: HTTP %d", ErrRefreshFailed, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		// 4xx means the refresh token itself was rejected; retrying
		// next cycle will not help, the user has to re-login.
		return "", fmt.Errorf("%w: HTTP %d", ErrInvalidRefreshResponse, resp.StatusCode)
	}

	var parsed refreshResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRefreshResponse, err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("%w: missing access_token", ErrInvalidRefreshResponse)
	}

	expiresAt, err := normalizeExpiry(parsed, m.Now())
	if err != nil {
		return "", err
	}

	newCred := keychain.Credential{
		AccessToken: parsed.AccessToken,
		// Some providers rotate the refresh token, some reuse it.
		RefreshToken:     parsed.RefreshToken,
		ExpiresAt:        expiresAt,
		Scopes:           old.Scopes,
		SubscriptionType: old.SubscriptionType,
	}
	if newCred.RefreshToken == "" {
		newCred.RefreshToken = old.RefreshToken
	}

	if err := m.Store.Set(ctx, key, newCred); err != nil {
		return "", fmt.Errorf("persisting refreshed credential: %w", err)
	}

	log.Printf("[oauth] refreshed credential for %q, expires %s", key, expiresAt.Format(time.RFC3339))
	return newCred.AccessToken, nil
}

// normalizeExpiry derives an absolute expiry from either an absolute
// expires_at (seconds or milliseconds since epoch) or a TTL
// expires_in. A response with neither is rejected outright.
func normalizeExpiry(resp refreshResponse, now time.Time) (time.Time, error) {
	switch {
	case resp.ExpiresAt > 1e12: // epoch milliseconds
		return time.UnixMilli(resp.ExpiresAt), nil
	case resp.ExpiresAt > 0: // epoch seconds
		return time.Unix(resp.ExpiresAt, 0), nil
	case resp.ExpiresIn > 0:
		return now.Add(time.Duration(resp.ExpiresIn) * time.Second), nil
	default:
		return time.Time{}, fmt.Errorf("%w: no derivable expiry", ErrInvalidRefreshResponse)
	}
}

// Package keychain wraps the OS secret service that Claude Code uses to
// store its OAuth credentials. Everything goes through a single
// key-value Store contract; the only real backend shells out to the
// macOS security(1) binary.
package keychain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound means no entry exists under the requested key.
	ErrNotFound = errors.New("keychain: entry not found")
	// ErrStoreUnavailable means the secret service itself cannot be reached.
	ErrStoreUnavailable = errors.New("keychain: store unavailable")
	// ErrAccessDenied means the store refused the operation.
	ErrAccessDenied = errors.New("keychain: access denied")
	// ErrMalformedEntry means an entry exists but is not parseable as
	// the expected credential JSON.
	ErrMalformedEntry = errors.New("keychain: malformed entry")
)

// Credential is one OAuth credential set. Exactly one lives under each
// store key; a refresh replaces the whole entry.
type Credential struct {
	AccessToken      string
	RefreshToken     string
	ExpiresAt        time.Time
	Scopes           []string
	SubscriptionType string
}

// Valid reports whether the credential carries the fields needed to
// call the usage endpoint at all.
func (c Credential) Valid() bool {
	return c.AccessToken != ""
}

// ExpiresWithin reports whether the credential expires before
// now+margin. A zero ExpiresAt is treated as already expired so a
// refresh gets attempted rather than a known-stale token reused.
func (c Credential) ExpiresWithin(now time.Time, margin time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return true
	}
	return !now.Add(margin).Before(c.ExpiresAt)
}

// Store is the credential service contract. Keys are stable strings: a
// fixed service name for the live Claude Code entry and a per-profile
// service name for snapshots.
type Store interface {
	Get(ctx context.Context, key string) (Credential, error)
	Set(ctx context.Context, key string, cred Credential) error
	Delete(ctx context.Context, key string) error
}

// envelope mirrors the on-disk JSON Claude Code writes: the credential
// sits under a "claudeAiOauth" wrapper with a millisecond expiry.
type envelope struct {
	ClaudeAiOauth oauthEntry `json:"claudeAiOauth"`
}

type oauthEntry struct {
	AccessToken      string   `json:"accessToken"`
	RefreshToken     string   `json:"refreshToken"`
	ExpiresAt        int64    `json:"expiresAt"`
	Scopes           []string `json:"scopes,omitempty"`
	SubscriptionType string   `json:"subscriptionType,omitempty"`
}

// EncodeCredential renders a credential in the claudeAiOauth JSON shape.
func EncodeCredential(cred Credential) ([]byte, error) {
	env := envelope{ClaudeAiOauth: oauthEntry{
		AccessToken:      cred.AccessToken,
		RefreshToken:     cred.RefreshToken,
		Scopes:           cred.Scopes,
		SubscriptionType: cred.SubscriptionType,
	}}
	if !cred.ExpiresAt.IsZero() {
		env.ClaudeAiOauth.ExpiresAt = cred.ExpiresAt.UnixMilli()
	}
	return json.Marshal(env)
}

// DecodeCredential parses the claudeAiOauth JSON shape.
func DecodeCredential(data []byte) (Credential, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	entry := env.ClaudeAiOauth
	if entry.AccessToken == "" {
		return Credential{}, fmt.Errorf("%w: missing accessToken", ErrMalformedEntry)
	}
	cred := Credential{
		AccessToken:      entry.AccessToken,
		RefreshToken:     entry.RefreshToken,
		Scopes:           entry.Scopes,
		SubscriptionType: entry.SubscriptionType,
	}
	if entry.ExpiresAt > 0 {
		cred.ExpiresAt = time.UnixMilli(entry.ExpiresAt)
	}
	return cred, nil
}

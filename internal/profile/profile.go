// Package profile maps user-chosen profile names onto credential
// sources. The "auto" profile follows the live Claude Code keychain
// entry; every other profile is a point-in-time snapshot of it.
package profile

import (
	"fmt"
	"sort"

	"github.com/janekbaraniewski/claudebar/internal/config"
)

// SourceKind is a closed union; config files carry it as a string,
// but nothing outside these two values is accepted.
type SourceKind string

const (
	SourceKeychain SourceKind = "keychain"
	SourceSnapshot SourceKind = "token"
)

func ParseSourceKind(raw string) (SourceKind, error) {
	switch SourceKind(raw) {
	case SourceKeychain, SourceSnapshot:
		return SourceKind(raw), nil
	default:
		return "", fmt.Errorf("unknown profile source %q", raw)
	}
}

type Profile struct {
	ID     string
	Label  string
	Source SourceKind
	Plan   string
}

// LiveCredentialKey is the keychain service Claude Code itself writes.
const LiveCredentialKey = "Claude Code-credentials"

const snapshotKeyPrefix = "claudebar-profile-"

// CredentialKey resolves the keychain service name for a profile.
func CredentialKey(p Profile) string {
	if p.Source == SourceKeychain {
		return LiveCredentialKey
	}
	return snapshotKeyPrefix + p.ID
}

// ValidateID restricts profile IDs to characters that are safe inside
// a keychain service name and a CLI argument.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("profile id is empty")
	}
	for _, c := range id {
		ok := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_'
		if !ok {
			return fmt.Errorf("profile id %q contains invalid character %q", id, c)
		}
	}
	return nil
}

func fromConfig(id string, pc config.ProfileConfig) Profile {
	source, err := ParseSourceKind(pc.Source)
	if err != nil {
		// Legacy or hand-edited entries fall back to snapshot
		// semantics; keychain access stays reserved for "auto".
		source = SourceSnapshot
	}
	label := pc.Label
	if label == "" {
		label = id
	}
	return Profile{ID: id, Label: label, Source: source, Plan: pc.Plan}
}

// sortProfiles orders the auto profile first, then the rest by ID.
func sortProfiles(profiles []Profile) {
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].ID == config.AutoProfileID {
			return true
		}
		if profiles[j].ID == config.AutoProfileID {
			return false
		}
		return profiles[i].ID < profiles[j].ID
	})
}

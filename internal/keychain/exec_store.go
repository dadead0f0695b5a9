package keychain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// securityBinary is the only executable the store will ever run. Using
// a fixed absolute path keeps a poisoned $PATH from substituting a
// different binary for security(1).
const securityBinary = "/usr/bin/security"

// ExecStore talks to the macOS Keychain through security(1).
type ExecStore struct {
	binary  string
	account string
}

// NewExecStore verifies the security binary is present at its
// well-known location and returns a store bound to it.
func NewExecStore() (*ExecStore, error) {
	info, err := os.Stat(securityBinary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, securityBinary, err)
	}
	if info.IsDir() || info.Mode()&0o111 == 0 {
		return nil, fmt.Errorf("%w: %s is not executable", ErrStoreUnavailable, securityBinary)
	}
	account := os.Getenv("USER")
	if account == "" {
		account = "claude"
	}
	return &ExecStore{binary: securityBinary, account: account}, nil
}

func (s *ExecStore) Get(ctx context.Context, key string) (Credential, error) {
	cmd := exec.CommandContext(ctx, s.binary, "find-generic-password", "-s", key, "-w")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return Credential{}, classifyFailure(err, stderr.String(), "read")
	}
	raw := strings.TrimSpace(string(out))
	if raw == "" {
		return Credential{}, fmt.Errorf("%w: empty entry under %q", ErrMalformedEntry, key)
	}
	return DecodeCredential([]byte(raw))
}

// Set replaces the entry under key in one call. The -U flag makes
// add-generic-password update in place, so there is no window where
// the key has no readable entry.
func (s *ExecStore) Set(ctx context.Context, key string, cred Credential) error {
	if !cred.Valid() {
		return fmt.Errorf("keychain: refusing to store credential without access token")
	}
	payload, err := EncodeCredential(cred)
	if err != nil {
		return fmt.Errorf("keychain: encoding credential: %w", err)
	}
	cmd := exec.CommandContext(ctx, s.binary, "add-generic-password",
		"-a", s.account, "-s", key, "-w", string(payload), "-U")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return classifyFailure(err, stderr.String(), "write")
	}
	return nil
}

func (s *ExecStore) Delete(ctx context.Context, key string) error {
	cmd := exec.CommandContext(ctx, s.binary, "delete-generic-password", "-s", key)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		failure := classifyFailure(err, stderr.String(), "delete")
		if errors.Is(failure, ErrNotFound) {
			return nil
		}
		return failure
	}
	return nil
}

// classifyFailure maps security(1) failures onto the store error
// taxonomy. The binary reports conditions as prose on stderr, so this
// matches the phrases it has used across macOS releases.
func classifyFailure(err error, stderr, op string) error {
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "could not be found"):
		return ErrNotFound
	case strings.Contains(msg, "user interaction is not allowed"),
		strings.Contains(msg, "not authorized"),
		strings.Contains(msg, "access denied"):
		return fmt.Errorf("%w: %s", ErrAccessDenied, strings.TrimSpace(stderr))
	default:
		return fmt.Errorf("%w: %s failed: %v", ErrStoreUnavailable, op, err)
	}
}

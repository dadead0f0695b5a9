package profile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/janekbaraniewski/claudebar/internal/config"
	"github.com/janekbaraniewski/claudebar/internal/keychain"
)

type fakeStore struct {
	entries map[string]keychain.Credential
	getErr  error
	setErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]keychain.Credential)}
}

func (s *fakeStore) Get(_ context.Context, key string) (keychain.Credential, error) {
	if s.getErr != nil {
		return keychain.Credential{}, s.getErr
	}
	cred, ok := s.entries[key]
	if !ok {
		return keychain.Credential{}, keychain.ErrNotFound
	}
	return cred, nil
}

func (s *fakeStore) Set(_ context.Context, key string, cred keychain.Credential) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.entries[key] = cred
	return nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	if _, ok := s.entries[key]; !ok {
		return keychain.ErrNotFound
	}
	delete(s.entries, key)
	return nil
}

func liveCred() keychain.Credential {
	return keychain.Credential{
		AccessToken:      "sk-ant-oat01-live",
		RefreshToken:     "sk-ant-ort01-live",
		ExpiresAt:        time.Now().Add(time.Hour),
		SubscriptionType: "max",
	}
}

func newTestRegistry(t *testing.T) (*Registry, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	store.entries[LiveCredentialKey] = liveCred()
	return NewRegistry(filepath.Join(t.TempDir(), "config.json"), store), store
}

func TestRegistry_ListAlwaysHasAuto(t *testing.T) {
	r, _ := newTestRegistry(t)

	profiles, err := r.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(profiles) != 1 || profiles[0].ID != config.AutoProfileID {
		t.Fatalf("profiles = %+v, want just auto", profiles)
	}
	if profiles[0].Source != SourceKeychain {
		t.Errorf("auto source = %q", profiles[0].Source)
	}
}

func TestRegistry_AddSnapshotsLiveCredential(t *testing.T) {
	r, store := newTestRegistry(t)
	ctx := context.Background()

	p, err := r.Add(ctx, "work", "Work (Enterprise)")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if p.Source != SourceSnapshot {
		t.Errorf("Source = %q", p.Source)
	}
	if p.Plan != "max" {
		t.Errorf("Plan = %q, want copied from credential", p.Plan)
	}

	snap, ok := store.entries["claudebar-profile-work"]
	if !ok {
		t.Fatal("snapshot credential was not written")
	}
	if snap.AccessToken != "sk-ant-oat01-live" {
		t.Errorf("snapshot token = %q", snap.AccessToken)
	}

	// A later change to the live entry must not affect the snapshot.
	live := store.entries[LiveCredentialKey]
	live.AccessToken = "sk-ant-oat01-other"
	store.entries[LiveCredentialKey] = live

	snap = store.entries["claudebar-profile-work"]
	if snap.AccessToken != "sk-ant-oat01-live" {
		t.Error("snapshot followed the live entry; want point-in-time copy")
	}
}

func TestRegistry_AddRejectsDuplicatesAndBadIDs(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.Add(ctx, "work", "Work"); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	if _, err := r.Add(ctx, "work", "Work"); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate Add = %v, want ErrAlreadyExists", err)
	}
	if _, err := r.Add(ctx, "auto", "Auto"); !errors.Is(err, ErrProtected) {
		t.Errorf("Add auto = %v, want ErrProtected", err)
	}
	if _, err := r.Add(ctx, "bad name", "Bad"); err == nil {
		t.Error("Add with space in id succeeded")
	}
}

func TestRegistry_AddWithoutLiveCredential(t *testing.T) {
	store := newFakeStore() // no live entry
	r := NewRegistry(filepath.Join(t.TempDir(), "config.json"), store)

	_, err := r.Add(context.Background(), "work", "Work")
	if !errors.Is(err, keychain.ErrNotFound) {
		t.Errorf("Add = %v, want ErrNotFound", err)
	}
}

func TestRegistry_SetActiveAndRemove(t *testing.T) {
	r, store := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.Add(ctx, "work", "Work"); err != nil {
		t.Fatal(err)
	}
	if err := r.SetActive("work"); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	active, err := r.Active()
	if err != nil {
		t.Fatal(err)
	}
	if active.ID != "work" {
		t.Errorf("active = %q", active.ID)
	}

	if err := r.SetActive("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetActive(nope) = %v, want ErrNotFound", err)
	}

	if err := r.Remove(ctx, "work"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := store.entries["claudebar-profile-work"]; ok {
		t.Error("snapshot credential survived Remove")
	}
	active, err = r.Active()
	if err != nil {
		t.Fatal(err)
	}
	if active.ID != config.AutoProfileID {
		t.Errorf("active after Remove = %q, want auto", active.ID)
	}

	if err := r.Remove(ctx, config.AutoProfileID); !errors.Is(err, ErrProtected) {
		t.Errorf("Remove(auto) = %v, want ErrProtected", err)
	}
}

func TestRegistry_RefreshResnapshots(t *testing.T) {
	r, store := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.Add(ctx, "work", "Work"); err != nil {
		t.Fatal(err)
	}

	live := store.entries[LiveCredentialKey]
	live.AccessToken = "sk-ant-oat01-rotated"
	live.SubscriptionType = "pro"
	store.entries[LiveCredentialKey] = live

	p, err := r.Refresh(ctx, "work")
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if p.Plan != "pro" {
		t.Errorf("Plan = %q, want updated", p.Plan)
	}
	if store.entries["claudebar-profile-work"].AccessToken != "sk-ant-oat01-rotated" {
		t.Error("snapshot was not re-copied")
	}

	if _, err := r.Refresh(ctx, config.AutoProfileID); !errors.Is(err, ErrProtected) {
		t.Errorf("Refresh(auto) = %v, want ErrProtected", err)
	}
}

func TestCredentialKey(t *testing.T) {
	auto := Profile{ID: "auto", Source: SourceKeychain}
	if got := CredentialKey(auto); got != LiveCredentialKey {
		t.Errorf("CredentialKey(auto) = %q", got)
	}
	snap := Profile{ID: "work", Source: SourceSnapshot}
	if got := CredentialKey(snap); got != "claudebar-profile-work" {
		t.Errorf("CredentialKey(work) = %q", got)
	}
}

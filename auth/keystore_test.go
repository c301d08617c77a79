package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_keys.txt")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	if store.Count() != 0 {
		t.Fatalf("expected empty allow-list, got %d", store.Count())
	}
}

func TestOpenLoadsExistingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_keys.txt")
	if err := os.WriteFile(path, []byte("key-one\n\nkey-two\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	store, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	if store.Count() != 2 {
		t.Fatalf("expected 2 keys, got %d", store.Count())
	}
	if !store.Valid("key-one") || !store.Valid("key-two") {
		t.Fatal("expected file keys on the allow-list")
	}
}

func TestGeneratePersistsKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_keys.txt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	key, err := store.Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !store.Valid(key) {
		t.Fatal("generated key should be valid immediately")
	}
	if store.Count() != 1 {
		t.Fatalf("expected 1 key, got %d", store.Count())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != key {
		t.Fatal("expected generated key persisted to file")
	}

	// a fresh keystore over the same file sees the key
	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer reopened.Close()
	if !reopened.Valid(key) {
		t.Fatal("generated key should survive reopen")
	}
}

func TestReloadDropsRevokedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_keys.txt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	key, err := store.Generate()
	if err != nil {
		t.Fatal(err)
	}

	// revoke everything by truncating the file
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := store.Reload(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.Valid(key) {
		t.Fatal("revoked key should be rejected after reload")
	}
	if store.Count() != 0 {
		t.Fatalf("expected empty allow-list, got %d", store.Count())
	}
}

func TestValidRejectsEmptyAndUnknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_keys.txt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	if _, err := store.Generate(); err != nil {
		t.Fatal(err)
	}
	if store.Valid("") {
		t.Fatal("empty key should be invalid")
	}
	if store.Valid("not-a-key") {
		t.Fatal("unknown key should be invalid")
	}
}

func TestWatchReloadsOnFileChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_keys.txt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	old, err := store.Generate()
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Watch(); err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := os.WriteFile(path, []byte("replacement-key\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.Valid("replacement-key") && !store.Valid(old) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("watcher did not pick up the rewritten key file")
}

func TestNewKeyIsURLSafe(t *testing.T) {
	key, err := NewKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(key) < 40 {
		t.Fatalf("key too short: %d", len(key))
	}
	if strings.ContainsAny(key, "+/=\n ") {
		t.Fatalf("key is not URL-safe: %q", key)
	}
}

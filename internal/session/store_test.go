package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")
	store := NewStore(path)

	if _, err := store.Token(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken on empty store, got %v", err)
	}
	if err := store.Save("tok-1"); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("session file perm = %o, want 600", perm)
	}

	reopened := NewStore(path)
	got, err := reopened.Token()
	if err != nil || got != "tok-1" {
		t.Fatalf("token = %q, %v; want tok-1", got, err)
	}
	if err := reopened.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if reopened.HasToken() {
		t.Fatalf("token should be gone after clear")
	}
	if err := reopened.Clear(); err != nil {
		t.Fatalf("second clear should be a no-op, got %v", err)
	}
}

func TestSaveRejectsEmptyToken(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "session.json"))
	if err := store.Save("   "); err == nil {
		t.Fatalf("expected error for blank token")
	}
}

func TestExpiresAt(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "clerk",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	got, ok := ExpiresAt(signed)
	if !ok || !got.Equal(exp) {
		t.Fatalf("ExpiresAt = %s, %t; want %s", got, ok, exp)
	}
	if _, ok := ExpiresAt("opaque-token"); ok {
		t.Fatalf("opaque token should report no expiry")
	}
}

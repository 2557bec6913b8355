// Package session persists the login token between runs.
//
// The token lives in a small JSON key-value file (0600) under a fixed key.
// It is opaque to the client; ExpiresAt peeks at JWT claims when the server
// happens to issue one.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenKey is the fixed storage key for the session token.
const TokenKey = "token"

// ErrNoToken is returned when no session is stored.
var ErrNoToken = errors.New("session: no token stored")

type storeFile struct {
	Values map[string]string `json:"values"`
}

// Store is a file-backed key-value store holding the session token.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store backed by path. The file is created on first save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Token returns the stored token or ErrNoToken.
func (s *Store) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, err := s.load()
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(sf.Values[TokenKey])
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// HasToken reports whether a token is stored.
func (s *Store) HasToken() bool {
	_, err := s.Token()
	return err == nil
}

// Save stores token, replacing any previous one.
func (s *Store) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("session: empty token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, err := s.load()
	if err != nil {
		return err
	}
	sf.Values[TokenKey] = token
	return s.save(sf)
}

// Clear removes the token. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := sf.Values[TokenKey]; !ok {
		return nil
	}
	delete(sf.Values, TokenKey)
	return s.save(sf)
}

func (s *Store) load() (storeFile, error) {
	sf := storeFile{Values: map[string]string{}}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sf, nil
		}
		return sf, fmt.Errorf("session: read %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, &sf); err != nil {
		return sf, fmt.Errorf("session: parse %s: %w", s.path, err)
	}
	if sf.Values == nil {
		sf.Values = map[string]string{}
	}
	return sf, nil
}

func (s *Store) save(sf storeFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("session: ensure dir: %w", err)
	}
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session: write: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// ExpiresAt reads the exp claim of a JWT without verifying it. It reports
// false for opaque tokens or tokens without an expiry.
func ExpiresAt(token string) (time.Time, bool) {
	parsed, _, err := new(jwt.Parser).ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return time.Time{}, false
	}
	switch exp := claims["exp"].(type) {
	case float64:
		return time.Unix(int64(exp), 0).UTC(), true
	case json.Number:
		v, err := exp.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(v, 0).UTC(), true
	}
	return time.Time{}, false
}

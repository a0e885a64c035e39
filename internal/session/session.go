// Package session holds the bearer token the classifier expects. The token
// is issued elsewhere (the backend's /login); this package only carries it
// around and keeps a copy on disk between CLI invocations.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

const (
	sessionDir  = ".leafscan"
	sessionFile = "session.json"

	// TokenEnvVar overrides any stored session.
	TokenEnvVar = "LEAFSCAN_TOKEN"
)

// ErrNoSession means neither the environment nor the store holds a token.
var ErrNoSession = errors.New("no session found, run `leafscan login` or set " + TokenEnvVar)

// Session is an authenticated identity. Expiry is not tracked; the server
// rejects stale tokens and that rejection surfaces as a failed submission.
type Session struct {
	Token string `json:"token"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// BearerToken returns the token, or "" for a nil session.
func (s *Session) BearerToken() string {
	if s == nil {
		return ""
	}
	return s.Token
}

// Store persists one session as JSON with owner-only permissions.
type Store struct {
	path string
}

// NewStore returns a store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultStore returns the store at ~/.leafscan/session.json.
func DefaultStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return NewStore(filepath.Join(home, sessionDir, sessionFile)), nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the stored session. A missing file is ErrNoSession.
func (s *Store) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", s.path, err)
	}
	if sess.Token == "" {
		return nil, ErrNoSession
	}
	return &sess, nil
}

// Save writes the session, creating the parent directory if needed.
func (s *Store) Save(sess *Session) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	log.Debug().Str("file", s.path).Msg("Session saved")
	return nil
}

// Clear removes the stored session. Clearing an absent session is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// Resolve finds the active session.
// Priority order:
//  1. LEAFSCAN_TOKEN environment variable
//  2. The session file in store (may be nil)
func Resolve(store *Store) (*Session, error) {
	if token := os.Getenv(TokenEnvVar); token != "" {
		log.Debug().Msg("Using token from environment variable")
		return &Session{Token: token}, nil
	}
	if store == nil {
		return nil, ErrNoSession
	}

	sess, err := store.Load()
	if err != nil {
		return nil, err
	}
	log.Debug().Str("file", store.Path()).Msg("Using token from session file")
	return sess, nil
}

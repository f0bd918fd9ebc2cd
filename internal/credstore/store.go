// Package credstore persists the opaque credential handle between sessions
// so re-authentication ceremonies can target the same hardware credential
// without a manual selection step. The handle is not secret and is stored as
// plain JSON; the master seed must never pass through this package.
package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/seedframe-io/seedframe/internal/logging"
)

// On-disk representation.
type handleFile struct {
	Handle  string `json:"handle"`
	Updated string `json:"updated,omitempty"`
}

// Store is a file-backed holder for the credential handle. A store with an
// empty path is degraded: reads return nothing, writes are no-ops. Losing the
// handle never loses the wallet, it only costs the user a selection prompt.
type Store struct {
	mu   sync.RWMutex
	path string
}

// NewStore creates a store backed by a JSON file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// NewDefaultStore resolves the canonical per-user path. If the home directory
// cannot be resolved (sandboxed or privacy-restricted hosts), it returns a
// degraded store rather than an error.
func NewDefaultStore() *Store {
	home, err := os.UserHomeDir()
	if err != nil {
		logging.Warn("credential store degraded, handle will not persist", "error", err)
		return &Store{}
	}
	return &Store{path: filepath.Join(home, ".config", "seedframe", "credential.json")}
}

// Get returns the stored handle, or ("", false) when none is available.
// Storage failures read as absence; the ceremony simply re-prompts.
func (s *Store) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.path == "" {
		return "", false
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("read credential handle", "error", err)
		}
		return "", false
	}
	var hf handleFile
	if err := json.Unmarshal(b, &hf); err != nil || hf.Handle == "" {
		return "", false
	}
	return hf.Handle, true
}

// Put stores the handle. On degraded stores or storage failure this is a
// logged no-op; it must never break the authentication flow.
func (s *Store) Put(handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return
	}
	if err := s.write(handle); err != nil {
		logging.Warn("persist credential handle", "error", err)
	}
}

// Clear removes the stored handle, used after the ceremony reports the
// credential as missing. Idempotent.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		logging.Warn("clear credential handle", "error", err)
	}
}

func (s *Store) write(handle string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("mkdir credential dir: %w", err)
	}
	b, err := json.MarshalIndent(handleFile{
		Handle:  handle,
		Updated: time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credential handle: %w", err)
	}
	if err := os.WriteFile(s.path, b, 0o600); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}
	return nil
}

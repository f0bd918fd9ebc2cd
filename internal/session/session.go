// Package session holds the per-dialog authentication state: the master
// seed obtained from the ceremony, the active account index, and the one
// pending connect continuation. The seed is the only sensitive shared
// mutable resource in the process; it is written once per ceremony, read by
// every signing operation, and zeroed (not just dropped) on disconnect.
package session

import (
	"errors"
	"sync"
)

// ErrNotAuthenticated is returned when signing material is requested
// without a completed ceremony.
var ErrNotAuthenticated = errors.New("session: not authenticated")

// ErrBusy is returned when a second request arrives while one is in flight.
var ErrBusy = errors.New("session: a request is already pending")

// PendingConnect is the explicit continuation for a connect request held
// open until an out-of-band ceremony finishes. Resume must be called exactly
// once, with either the public key result or the terminal error.
type PendingConnect struct {
	RequestID string
	Origin    string
	Resume    func(publicKey string, err error)
}

// Session is passed by reference into the dispatcher; there is no package
// singleton, so tests can run many simulated sessions side by side.
type Session struct {
	mu          sync.RWMutex
	seed        []byte
	activeIndex uint32
	pending     *PendingConnect
	inFlight    string
}

func New() *Session {
	return &Session{}
}

// Authenticated reports whether a master seed is currently held.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seed != nil
}

// Activate installs the master seed, replacing (and wiping) any previous one.
func (s *Session) Activate(seed []byte) {
	cp := make([]byte, len(seed))
	copy(cp, seed)

	s.mu.Lock()
	defer s.mu.Unlock()
	zero(s.seed)
	s.seed = cp
}

// Seed returns a copy of the master seed for a signing operation.
func (s *Session) Seed() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.seed == nil {
		return nil, ErrNotAuthenticated
	}
	cp := make([]byte, len(s.seed))
	copy(cp, s.seed)
	return cp, nil
}

// Clear wipes the seed. The credential handle is untouched, so a later
// connect can re-authenticate without re-registration.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	zero(s.seed)
	s.seed = nil
}

// ActiveIndex is the derivation index signing operations use.
func (s *Session) ActiveIndex() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeIndex
}

func (s *Session) SetActiveIndex(i uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeIndex = i
}

// HoldConnect parks the connect continuation. Only one may be held.
func (s *Session) HoldConnect(p *PendingConnect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return ErrBusy
	}
	s.pending = p
	return nil
}

// TakePending removes and returns the held continuation, if any.
func (s *Session) TakePending() *PendingConnect {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pending
	s.pending = nil
	return p
}

// Begin marks a request as the single in-flight one. A second distinct
// request is rejected with ErrBusy rather than silently dropped or raced.
func (s *Session) Begin(requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight != "" {
		return ErrBusy
	}
	s.inFlight = requestID
	return nil
}

// End releases the in-flight slot.
func (s *Session) End(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight == requestID {
		s.inFlight = ""
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

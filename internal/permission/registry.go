// Package permission is the in-memory table of scoped grants and their
// session keys. A grant's origin is fixed at grant time and never widened;
// every authorization compares the requesting origin against the stored one.
// Expiry is checked lazily at use time, there is no sweeper: the table is
// bounded by the dialog-session lifetime.
package permission

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

var (
	// ErrOriginMismatch rejects use of a grant by any origin other than
	// the one it was issued to.
	ErrOriginMismatch = errors.New("permission: origin mismatch")
	// ErrExpired rejects use of a grant past its expiry.
	ErrExpired = errors.New("permission: expired")
	// ErrScope rejects an action outside the grant's scope.
	ErrScope = errors.New("permission: outside granted scope")
	// ErrNotFound is returned by lookups, never by Revoke (idempotent).
	ErrNotFound = errors.New("permission: not found")
)

// Scope limits what a grant authorizes. Empty slices mean "any".
// MaxAmount is a lamport ceiling enforced against calls whose transfer
// value is recognizable (plain system-program transfers); opaque program
// data carries amount 0 and is bounded by Programs/Methods only.
type Scope struct {
	Programs    []string `json:"programs,omitempty"`
	Methods     []string `json:"methods,omitempty"`
	MaxAmount   *uint64  `json:"maxAmount,omitempty"`
	AutoApprove bool     `json:"autoApprove,omitempty"`
}

// Permission is one scoped grant as surfaced to callers. SessionKey, when
// present, is the base58 public key of the ephemeral keypair minted for the
// grant; the private half never leaves the registry.
type Permission struct {
	ID         string     `json:"id"`
	Origin     string     `json:"origin"`
	GrantedAt  time.Time  `json:"grantedAt"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	Scope      Scope      `json:"scope"`
	SessionKey string     `json:"sessionKey,omitempty"`
}

// GrantParams is what wallet_grantPermissions carries.
type GrantParams struct {
	Scope          Scope
	TTL            time.Duration
	WithSessionKey bool
}

// Registry owns the grants and their session keys.
type Registry struct {
	mu          sync.RWMutex
	perms       map[string]Permission
	sessionKeys map[string]solana.PrivateKey
	now         func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		perms:       make(map[string]Permission),
		sessionKeys: make(map[string]solana.PrivateKey),
		now:         time.Now,
	}
}

// Grant stores a new permission for origin. The origin comes from the
// transport layer, never from the request payload.
func (r *Registry) Grant(params GrantParams, origin string) (Permission, error) {
	p := Permission{
		ID:        uuid.NewString(),
		Origin:    origin,
		GrantedAt: r.now().UTC(),
		Scope:     params.Scope,
	}
	if params.TTL > 0 {
		exp := p.GrantedAt.Add(params.TTL)
		p.ExpiresAt = &exp
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if params.WithSessionKey {
		w := solana.NewWallet()
		p.SessionKey = w.PublicKey().String()
		r.sessionKeys[p.ID] = w.PrivateKey
	}
	r.perms[p.ID] = p
	return p, nil
}

// Revoke removes a permission and destroys its session key. Revoking an
// unknown id succeeds.
func (r *Registry) Revoke(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.perms, id)
	if key, ok := r.sessionKeys[id]; ok {
		for i := range key {
			key[i] = 0
		}
		delete(r.sessionKeys, id)
	}
}

// List returns all live permissions, granted-at order. Expired entries are
// included; validity filtering is the caller's job against ExpiresAt.
func (r *Registry) List() []Permission {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Permission, 0, len(r.perms))
	for _, p := range r.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantedAt.Before(out[j].GrantedAt) })
	return out
}

// SessionKey returns the private session key minted for a grant.
func (r *Registry) SessionKey(id string) (solana.PrivateKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.sessionKeys[id]
	return key, ok
}

// Authorize checks whether grant id permits origin to invoke method against
// program for amount, at time-of-use.
func (r *Registry) Authorize(id, origin, program, method string, amount uint64) error {
	r.mu.RLock()
	p, ok := r.perms[id]
	r.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	if p.Origin != origin {
		return ErrOriginMismatch
	}
	if p.ExpiresAt != nil && r.now().After(*p.ExpiresAt) {
		return ErrExpired
	}
	if len(p.Scope.Programs) > 0 && !contains(p.Scope.Programs, program) {
		return ErrScope
	}
	if len(p.Scope.Methods) > 0 && !contains(p.Scope.Methods, method) {
		return ErrScope
	}
	if p.Scope.MaxAmount != nil && amount > *p.Scope.MaxAmount {
		return ErrScope
	}
	return nil
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

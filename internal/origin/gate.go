// Package origin decides which embedding-page origins may talk to this
// wallet instance. The allow-list is exact-match only: no wildcards, no
// suffix matching. A new deployment origin must be added to configuration.
package origin

import (
	"fmt"
	"net/url"
	"strings"
)

// Normalize reduces a raw origin string to lowercase scheme://host[:port].
// Returns "" for anything that does not parse as an origin.
func Normalize(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	u, err := url.Parse(in)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s://%s", strings.ToLower(u.Scheme), strings.ToLower(u.Host))
}

// Gate is a pure predicate over the configured allow-list. It is loaded once
// and never mutated afterwards, so reads need no locking.
type Gate struct {
	allowed map[string]struct{}
}

// NewGate builds a gate from configured origins. Entries that do not
// normalize to a valid origin are skipped.
func NewGate(origins []string) *Gate {
	g := &Gate{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		n := Normalize(o)
		if n == "" {
			continue
		}
		g.allowed[n] = struct{}{}
	}
	return g
}

// Trusted reports whether the given origin exactly matches an allow-list
// entry. Untrusted origins are the caller's cue to drop silently; they are
// never an error.
func (g *Gate) Trusted(o string) bool {
	n := Normalize(o)
	if n == "" {
		return false
	}
	_, ok := g.allowed[n]
	return ok
}

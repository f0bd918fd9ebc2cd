package credstore

import (
	"path/filepath"
	"testing"
)

func TestPutGetClear(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "sub", "credential.json"))

	if _, ok := s.Get(); ok {
		t.Fatalf("empty store returned a handle")
	}

	s.Put("cred-abc123")
	h, ok := s.Get()
	if !ok || h != "cred-abc123" {
		t.Fatalf("Get = (%q, %v), want (cred-abc123, true)", h, ok)
	}

	s.Put("cred-def456")
	if h, _ := s.Get(); h != "cred-def456" {
		t.Fatalf("overwrite failed, got %q", h)
	}

	s.Clear()
	if _, ok := s.Get(); ok {
		t.Fatalf("handle survived Clear")
	}
	s.Clear() // idempotent
}

func TestDegradedStoreIsSilent(t *testing.T) {
	s := NewStore("")

	s.Put("cred-abc123") // must not panic or error
	if _, ok := s.Get(); ok {
		t.Fatalf("degraded store returned a handle")
	}
	s.Clear()
}

package session

import (
	"bytes"
	"errors"
	"testing"
)

func TestSeedLifecycle(t *testing.T) {
	s := New()

	if s.Authenticated() {
		t.Fatalf("fresh session reports authenticated")
	}
	if _, err := s.Seed(); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Seed err = %v, want ErrNotAuthenticated", err)
	}

	master := []byte{1, 2, 3, 4}
	s.Activate(master)
	if !s.Authenticated() {
		t.Fatalf("session not authenticated after Activate")
	}

	got, err := s.Seed()
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if !bytes.Equal(got, master) {
		t.Fatalf("Seed = %v, want %v", got, master)
	}

	// The returned copy must be detached from session state.
	got[0] = 0xff
	again, _ := s.Seed()
	if again[0] == 0xff {
		t.Fatalf("Seed returned aliased memory")
	}

	s.Clear()
	if s.Authenticated() {
		t.Fatalf("session still authenticated after Clear")
	}
}

func TestActivateWipesCallerIndependentCopy(t *testing.T) {
	s := New()
	master := []byte{9, 9, 9}
	s.Activate(master)
	master[0] = 0 // caller mutates its buffer
	got, _ := s.Seed()
	if got[0] != 9 {
		t.Fatalf("session seed aliased the caller's buffer")
	}
}

func TestSingleInFlightRequest(t *testing.T) {
	s := New()

	if err := s.Begin("1"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.Begin("2"); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Begin err = %v, want ErrBusy", err)
	}
	s.End("other") // wrong id releases nothing
	if err := s.Begin("2"); !errors.Is(err, ErrBusy) {
		t.Fatalf("End with wrong id released the slot")
	}
	s.End("1")
	if err := s.Begin("2"); err != nil {
		t.Fatalf("Begin after End: %v", err)
	}
}

func TestSinglePendingConnect(t *testing.T) {
	s := New()

	p := &PendingConnect{RequestID: "1", Origin: "https://dapp.example.com"}
	if err := s.HoldConnect(p); err != nil {
		t.Fatalf("HoldConnect: %v", err)
	}
	if err := s.HoldConnect(&PendingConnect{RequestID: "2"}); !errors.Is(err, ErrBusy) {
		t.Fatalf("second hold err = %v, want ErrBusy", err)
	}

	got := s.TakePending()
	if got == nil || got.RequestID != "1" {
		t.Fatalf("TakePending = %+v, want request 1", got)
	}
	if s.TakePending() != nil {
		t.Fatalf("TakePending did not clear the slot")
	}
}

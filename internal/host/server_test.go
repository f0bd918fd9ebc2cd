package host

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const embedderOrigin = "https://dapp.example.com"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(Config{AllowedOrigins: []string{embedderOrigin}})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func loopbackRequest(method, target string, body []byte) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewReader(body))
	r.RemoteAddr = "127.0.0.1:54321"
	r.Host = "127.0.0.1:9700"
	return r
}

func TestPairIssuesSessionToken(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, loopbackRequest(http.MethodPost, "/v1/pair", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("pair status = %d", w.Code)
	}

	var res struct {
		SessionToken string `json:"sessionToken"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil || res.SessionToken == "" {
		t.Fatalf("pair response missing token: %s", w.Body.String())
	}
	if res.SessionToken != s.sessionToken {
		t.Fatalf("pair returned a different token")
	}
}

func TestPairRefusesRemotePeers(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	r := httptest.NewRequest(http.MethodPost, "/v1/pair", nil)
	r.RemoteAddr = "203.0.113.7:40000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusForbidden {
		t.Fatalf("remote pair status = %d, want forbidden", w.Code)
	}
}

func TestMessagesRequireSessionToken(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, loopbackRequest(http.MethodPost, "/v1/messages", []byte(`{}`)))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("tokenless post = %d, want unauthorized", w.Code)
	}

	r := loopbackRequest(http.MethodPost, "/v1/messages", []byte(`{}`))
	r.Header.Set(sessionHeader, "wrong-token")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong-token post = %d, want unauthorized", w.Code)
	}
}

func TestCORSRejectsUnlistedOrigin(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	r := loopbackRequest(http.MethodPost, "/v1/messages", []byte(`{}`))
	r.Header.Set(sessionHeader, s.sessionToken)
	r.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusForbidden {
		t.Fatalf("unlisted origin = %d, want forbidden", w.Code)
	}
}

func TestInboundReachesMediumWithNormalizedOrigin(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	r := loopbackRequest(http.MethodPost, "/v1/messages", []byte(`{"topic":"ready"}`))
	r.Header.Set(sessionHeader, s.sessionToken)
	r.Header.Set("Origin", "HTTPS://Dapp.Example.COM")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusAccepted {
		t.Fatalf("post = %d, want accepted", w.Code)
	}

	select {
	case msg := <-s.Receive():
		if msg.Origin != embedderOrigin {
			t.Fatalf("origin = %q, want normalized %q", msg.Origin, embedderOrigin)
		}
		if string(msg.Data) != `{"topic":"ready"}` {
			t.Fatalf("payload altered: %s", msg.Data)
		}
	case <-time.After(time.Second):
		t.Fatalf("message never reached the medium")
	}
}

func TestLongPollDeliversPostedPayloads(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	if err := s.Post(context.Background(), []byte("one")); err != nil {
		t.Fatalf("post: %v", err)
	}
	if err := s.Post(context.Background(), []byte("two")); err != nil {
		t.Fatalf("post: %v", err)
	}

	r := loopbackRequest(http.MethodGet, "/v1/messages", nil)
	r.Header.Set(sessionHeader, s.sessionToken)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("long poll = %d", w.Code)
	}

	var res struct {
		Messages []string `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Messages) != 2 {
		t.Fatalf("got %d messages, want both queued payloads", len(res.Messages))
	}
	first, _ := base64.StdEncoding.DecodeString(res.Messages[0])
	if string(first) != "one" {
		t.Fatalf("delivery out of order: %q", first)
	}
}

func TestClosePropagatesToMedium(t *testing.T) {
	s := newTestServer(t)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if err := s.Post(context.Background(), []byte("x")); err == nil {
		t.Fatalf("post after close must fail")
	}

	if _, ok := <-s.Receive(); ok {
		t.Fatalf("receive channel still open after close")
	}

	w := httptest.NewRecorder()
	r := loopbackRequest(http.MethodPost, "/v1/messages", []byte(`{}`))
	r.Header.Set(sessionHeader, s.sessionToken)
	s.Handler().ServeHTTP(w, r)
	if w.Code != http.StatusGone {
		t.Fatalf("post after close = %d, want gone", w.Code)
	}
}

// Package host exposes the wallet frame to out-of-process embedders over
// loopback HTTP. It implements transport.Medium: embedder posts become
// inbound messages for the bridge, and bridge sends are delivered through a
// long-poll endpoint. Origin gating stays in the transport layer; this
// package only enforces the loopback/session-token perimeter and CORS.
package host

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/seedframe-io/seedframe/internal/logging"
	"github.com/seedframe-io/seedframe/internal/origin"
	"github.com/seedframe-io/seedframe/internal/transport"
)

const (
	sessionHeader = "X-Seedframe-Session"

	// longPollWindow bounds how long a receive request waits for traffic.
	longPollWindow = 25 * time.Second

	inboundBuffer  = 64
	outboundBuffer = 64
	maxBodyBytes   = 1 << 20
)

// Config tunes the embedding surface.
type Config struct {
	// AllowedOrigins is the exact-match CORS allowlist for browser
	// embedders. Requests without an Origin header (curl, native apps)
	// pass CORS and are judged by the loopback and token guards alone.
	AllowedOrigins []string
}

// Server is one embedding endpoint. It is handed to the frame as its
// Medium and to an http.Server as its Handler.
type Server struct {
	allowedOrigins map[string]struct{}
	sessionToken   string

	in  chan transport.Message
	out chan []byte

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func NewServer(cfg Config) (*Server, error) {
	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if n := origin.Normalize(o); n != "" {
			allowed[n] = struct{}{}
		}
	}

	return &Server{
		allowedOrigins: allowed,
		sessionToken:   token,
		in:             make(chan transport.Message, inboundBuffer),
		out:            make(chan []byte, outboundBuffer),
		done:           make(chan struct{}),
	}, nil
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/pair", s.withLoopbackOnly(s.handlePair))
	mux.HandleFunc("/v1/messages", s.withSessionGuards(s.handleMessages))
	mux.HandleFunc("/v1/status", s.withSessionGuards(s.handleStatus))

	return mux
}

// Post implements transport.Medium: queue one outbound payload for the
// next long-poll receive.
func (s *Server) Post(ctx context.Context, data []byte) error {
	if s.isClosed() {
		return transport.ErrMediumClosed
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	select {
	case s.out <- buf:
		return nil
	case <-s.done:
		return transport.ErrMediumClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive implements transport.Medium.
func (s *Server) Receive() <-chan transport.Message { return s.in }

// Close implements transport.Medium. Idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	close(s.in)
	return nil
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePair hands the session token to a loopback caller. The embedder
// presents it on every subsequent request.
func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionToken": s.sessionToken})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"closed":  s.isClosed(),
		"pending": len(s.out),
	})
}

// handleMessages is the bidirectional channel: POST delivers one payload
// into the frame, GET long-polls for outbound payloads.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleInbound(w, r)
	case http.MethodGet:
		s.handleOutbound(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	if s.isClosed() {
		http.Error(w, "gone", http.StatusGone)
		return
	}

	body, err := readBody(r, maxBodyBytes)
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	msg := transport.Message{
		Origin: origin.Normalize(r.Header.Get("Origin")),
		Data:   body,
	}

	// The lock orders this send against Close, which closes s.in.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, "gone", http.StatusGone)
		return
	}
	select {
	case s.in <- msg:
		s.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	default:
		s.mu.Unlock()
		http.Error(w, "backlogged", http.StatusTooManyRequests)
	}
}

func (s *Server) handleOutbound(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), longPollWindow)
	defer cancel()

	var payloads [][]byte
	select {
	case first := <-s.out:
		payloads = append(payloads, first)
		// Drain whatever else is already queued.
		for {
			select {
			case next := <-s.out:
				payloads = append(payloads, next)
			default:
				writeMessages(w, payloads)
				return
			}
		}
	case <-s.done:
		http.Error(w, "gone", http.StatusGone)
	case <-ctx.Done():
		writeMessages(w, nil)
	}
}

// Serve runs an http.Server on addr until ctx ends, then drains with a
// short grace period.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("embedding endpoint listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// Package transport implements the framed, topic-addressed message channel
// between the untrusted embedding page and the wallet frame. Inbound traffic
// is origin-gated before any handler runs; malformed envelopes and untrusted
// senders are dropped silently so a probing peer gets no oracle.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/seedframe-io/seedframe/internal/logging"
	"github.com/seedframe-io/seedframe/internal/origin"
)

// ErrDestroyed is the settlement error for operations pending on a bridge
// that has been torn down.
var ErrDestroyed = errors.New("transport: bridge destroyed")

// State is the bridge lifecycle: Uninitialized -> AwaitingReady -> Ready ->
// Destroyed. AwaitingReady is skipped when WaitForReady is disabled.
type State int

const (
	StateUninitialized State = iota
	StateAwaitingReady
	StateReady
	StateDestroyed
)

// Meta accompanies every dispatched envelope with transport-level facts the
// payload cannot be trusted to carry.
type Meta struct {
	Origin string
}

// HandlerFunc handles one inbound envelope. Handlers for a topic run in
// registration order, on the single receive goroutine; a handler that blocks
// stalls the whole bridge.
type HandlerFunc func(env Envelope, meta Meta)

// Options tune bridge behavior at construction time.
type Options struct {
	// WaitForReady blocks outbound sends until the peer's ready envelope
	// has been observed. When false, sends are fire-and-forget and may
	// race the peer attaching its listener.
	WaitForReady bool
	// Capabilities announced by Ready.
	Capabilities Capabilities
}

// Bridge composes two directed channels over a Medium into one typed
// request/response surface.
type Bridge struct {
	medium Medium
	gate   *origin.Gate
	opts   Options

	mu       sync.Mutex
	state    State
	handlers map[Topic][]HandlerFunc

	peerReady     chan struct{}
	peerReadyOnce sync.Once
	sendReadyOnce sync.Once
	destroyOnce   sync.Once
	done          chan struct{}
}

// New builds a bridge. Call Start to begin receiving.
func New(medium Medium, gate *origin.Gate, opts Options) *Bridge {
	return &Bridge{
		medium:    medium,
		gate:      gate,
		opts:      opts,
		state:     StateUninitialized,
		handlers:  make(map[Topic][]HandlerFunc),
		peerReady: make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the receive loop. The bridge moves to AwaitingReady (or
// straight to Ready when WaitForReady is off) and stays there until the
// peer's ready envelope arrives or the bridge is destroyed.
func (b *Bridge) Start(ctx context.Context) {
	b.mu.Lock()
	if b.state != StateUninitialized {
		b.mu.Unlock()
		return
	}
	if b.opts.WaitForReady {
		b.state = StateAwaitingReady
	} else {
		b.state = StateReady
	}
	b.mu.Unlock()

	go b.loop(ctx)
}

func (b *Bridge) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = b.Close()
			return
		case <-b.done:
			return
		case msg, ok := <-b.medium.Receive():
			if !ok {
				_ = b.Close()
				return
			}
			b.dispatch(msg)
		}
	}
}

func (b *Bridge) dispatch(msg Message) {
	if b.State() == StateDestroyed {
		return
	}
	// Untrusted senders get zero observable side effects.
	if !b.gate.Trusted(msg.Origin) {
		return
	}
	env, ok := decodeEnvelope(msg.Data)
	if !ok {
		return
	}

	if env.Topic == TopicReady {
		b.peerReadyOnce.Do(func() { close(b.peerReady) })
		b.mu.Lock()
		if b.state == StateAwaitingReady {
			b.state = StateReady
		}
		b.mu.Unlock()
	}

	b.mu.Lock()
	hs := make([]HandlerFunc, len(b.handlers[env.Topic]))
	copy(hs, b.handlers[env.Topic])
	b.mu.Unlock()

	meta := Meta{Origin: origin.Normalize(msg.Origin)}
	for _, h := range hs {
		h(env, meta)
	}
}

// On registers a handler for every inbound envelope matching topic. No-op
// once the bridge is destroyed.
func (b *Bridge) On(topic Topic, h HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateDestroyed {
		return
	}
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Send serializes payload into an envelope and posts it to the peer. When
// WaitForReady is enabled, sends on non-handshake topics block until the
// peer's ready envelope has been observed.
func (b *Bridge) Send(ctx context.Context, topic Topic, payload any) error {
	if b.State() == StateDestroyed {
		return ErrDestroyed
	}

	// Teardown signaling must go out even to a peer that never handshook.
	if b.opts.WaitForReady && topic != TopicReady && topic != TopicInternal && topic != TopicClose {
		select {
		case <-b.peerReady:
		case <-b.done:
			return ErrDestroyed
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(Envelope{Topic: topic, Payload: raw})
	if err != nil {
		return err
	}
	return b.medium.Post(ctx, data)
}

// Ready emits the one-time ready envelope announcing protocol capabilities.
// Subsequent calls are no-ops.
func (b *Bridge) Ready(ctx context.Context) error {
	var err error
	b.sendReadyOnce.Do(func() {
		err = b.Send(ctx, TopicReady, b.opts.Capabilities)
		if err == nil {
			logging.Debug("transport ready announced",
				"chain_ids", b.opts.Capabilities.ChainIDs)
		}
	})
	return err
}

// AwaitPeerReady blocks until the peer's ready envelope has been observed.
func (b *Bridge) AwaitPeerReady(ctx context.Context) error {
	select {
	case <-b.peerReady:
		return nil
	case <-b.done:
		return ErrDestroyed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Close deregisters all handlers and settles anything pending on the bridge
// with ErrDestroyed. Idempotent.
func (b *Bridge) Close() error {
	b.destroyOnce.Do(func() {
		b.mu.Lock()
		b.state = StateDestroyed
		b.handlers = make(map[Topic][]HandlerFunc)
		b.mu.Unlock()
		close(b.done)
	})
	return nil
}

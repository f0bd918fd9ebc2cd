package transport

import (
	"context"
	"errors"
	"sync"
)

// ErrMediumClosed is returned by Post once the medium is torn down.
var ErrMediumClosed = errors.New("transport: medium closed")

// Message is one raw posting between two script contexts. Origin is the
// sender's origin as asserted by the medium itself (never by the payload);
// the bridge checks it against the origin gate before any handler runs.
type Message struct {
	Origin string
	Data   []byte
}

// Medium is the postable-message surface between two contexts that share no
// memory. Implementations must preserve posting order.
type Medium interface {
	// Post delivers data to the peer context.
	Post(ctx context.Context, data []byte) error
	// Receive yields inbound messages in arrival order. The channel is
	// closed when the medium closes.
	Receive() <-chan Message
	// Close tears the medium down. Idempotent.
	Close() error
}

// Pipe is an in-process Medium: two connected endpoints, each seeing the
// other's posts tagged with the other's origin. It backs tests and
// same-process embedding of the wallet frame.
type Pipe struct {
	origin string
	peer   *Pipe

	mu     sync.Mutex
	in     chan Message
	closed bool
}

// NewPipe returns two connected endpoints. originA and originB are the
// origins the respective endpoint asserts on its outbound posts.
func NewPipe(originA, originB string) (*Pipe, *Pipe) {
	a := &Pipe{origin: originA, in: make(chan Message, 64)}
	b := &Pipe{origin: originB, in: make(chan Message, 64)}
	a.peer = b
	b.peer = a
	return a, b
}

func (p *Pipe) Post(ctx context.Context, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	p.peer.mu.Lock()
	defer p.peer.mu.Unlock()
	if p.peer.closed {
		return ErrMediumClosed
	}
	select {
	case p.peer.in <- Message{Origin: p.origin, Data: buf}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipe) Receive() <-chan Message { return p.in }

func (p *Pipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.in)
	return nil
}

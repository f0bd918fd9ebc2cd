// Package frame is the wallet-side composition root: it binds the transport
// bridge to the RPC dispatcher, drives the authentication ceremony, and owns
// the dialog-session lifecycle. The embedding UI talks to a Frame through
// Approve and Reject; it never touches signing material.
package frame

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/seedframe-io/seedframe/internal/ceremony"
	"github.com/seedframe-io/seedframe/internal/chain"
	"github.com/seedframe-io/seedframe/internal/credstore"
	"github.com/seedframe-io/seedframe/internal/keyring"
	"github.com/seedframe-io/seedframe/internal/logging"
	"github.com/seedframe-io/seedframe/internal/origin"
	"github.com/seedframe-io/seedframe/internal/permission"
	"github.com/seedframe-io/seedframe/internal/rpc"
	"github.com/seedframe-io/seedframe/internal/session"
	"github.com/seedframe-io/seedframe/internal/transport"
)

// Config wires a frame's collaborators.
type Config struct {
	Medium         transport.Medium
	TrustedOrigins []string
	Capabilities   rpc.Capabilities
	Chain          chain.Client
	Assets         *chain.AssetService
	Authenticator  ceremony.Authenticator
	Handles        *credstore.Store
	// User is the display identity passed to credential registration.
	User string
	// OnAuthRequired is called when a connect arrives unauthenticated. The
	// embedding surface reacts by prompting and then calling Approve or
	// Reject. May be nil for embedders that poll state instead.
	OnAuthRequired func(requestOrigin string)
}

// Frame is one wallet-dialog instance.
type Frame struct {
	bridge     *transport.Bridge
	dispatcher *rpc.Dispatcher
	session    *session.Session
	auth       ceremony.Authenticator
	handles    *credstore.Store
	user       string

	runCtx context.Context

	// ceremonies are user-driven and serialized; a second Approve while
	// one is running waits on the mutex.
	authMu sync.Mutex
}

func New(cfg Config) (*Frame, error) {
	if cfg.Medium == nil {
		return nil, errors.New("frame: medium is required")
	}
	if cfg.Authenticator == nil {
		return nil, errors.New("frame: authenticator is required")
	}
	if len(cfg.TrustedOrigins) == 0 {
		return nil, errors.New("frame: at least one trusted origin is required")
	}
	if cfg.Handles == nil {
		cfg.Handles = credstore.NewDefaultStore()
	}

	sess := session.New()
	dispatcher, err := rpc.New(rpc.Config{
		Session:        sess,
		Permissions:    permission.NewRegistry(),
		Chain:          cfg.Chain,
		Assets:         cfg.Assets,
		Capabilities:   cfg.Capabilities,
		OnAuthRequired: cfg.OnAuthRequired,
	})
	if err != nil {
		return nil, err
	}

	bridge := transport.New(cfg.Medium, origin.NewGate(cfg.TrustedOrigins), transport.Options{
		WaitForReady: true,
		Capabilities: transport.Capabilities{
			ChainIDs:     cfg.Capabilities.ChainIDs,
			TrustedHosts: cfg.TrustedOrigins,
		},
	})

	return &Frame{
		bridge:     bridge,
		dispatcher: dispatcher,
		session:    sess,
		auth:       cfg.Authenticator,
		handles:    cfg.Handles,
		user:       cfg.User,
	}, nil
}

// Start attaches handlers, begins receiving and announces readiness. The
// frame keeps running until ctx ends or Close is called.
func (f *Frame) Start(ctx context.Context) error {
	f.runCtx = ctx

	f.bridge.On(transport.TopicRPCRequests, f.onRequest)
	f.bridge.On(transport.TopicRPCRequest, f.onRequest)
	f.bridge.On(transport.TopicClose, func(transport.Envelope, transport.Meta) {
		logging.Info("close requested by peer")
		_ = f.Close()
	})

	f.bridge.Start(ctx)
	return f.bridge.Ready(ctx)
}

// onRequest runs on the bridge's receive goroutine; the work moves to its
// own goroutine so a slow network call cannot stall other topics. The
// session's single in-flight slot keeps request handling serialized.
func (f *Frame) onRequest(env transport.Envelope, meta transport.Meta) {
	var req rpc.Request
	if err := json.Unmarshal(env.Payload, &req); err != nil || req.ID == "" {
		// Malformed request payloads are dropped like malformed envelopes.
		logging.Debug("dropping malformed rpc payload", "origin", meta.Origin)
		return
	}

	go f.dispatcher.Handle(f.runCtx, meta.Origin, req, func(resp rpc.Response) {
		if err := f.bridge.Send(f.runCtx, transport.TopicRPCResponse, resp); err != nil {
			logging.Warn("failed to deliver rpc response", "id", resp.ID, "err", err)
		}
	})
}

// Approve runs the authentication ceremony and resumes a held connect. A
// missing credential triggers a one-time registration; the resulting handle
// is persisted so later ceremonies skip it.
func (f *Frame) Approve(ctx context.Context) error {
	f.authMu.Lock()
	defer f.authMu.Unlock()

	handle, _ := f.handles.Get()
	secret, err := f.auth.Assert(ctx, handle)
	if errors.Is(err, ceremony.ErrCredentialMissing) {
		logging.Info("no usable credential, registering")
		handle, secret, err = f.auth.Register(ctx, f.user)
		if err == nil {
			f.handles.Put(handle)
		}
	}
	if err != nil {
		f.dispatcher.RejectPending(err)
		return fmt.Errorf("ceremony: %w", err)
	}
	defer keyring.Zero(secret)

	return f.dispatcher.CompleteAuthentication(secret)
}

// Reject settles a held connect as user-rejected.
func (f *Frame) Reject() {
	f.dispatcher.RejectPending(ceremony.ErrUserCancelled)
}

// SetAccountIndex switches the active derivation index for subsequent
// signing operations.
func (f *Frame) SetAccountIndex(i uint32) {
	f.session.SetActiveIndex(i)
}

// SignalClose asks the embedding context to tear down the dialog.
func (f *Frame) SignalClose(ctx context.Context) error {
	return f.bridge.Send(ctx, transport.TopicClose, struct{}{})
}

// Close tears the frame down: pending operations settle with a cancellation
// error, the seed is wiped, and the credential device is released.
func (f *Frame) Close() error {
	f.dispatcher.RejectPending(transport.ErrDestroyed)
	f.session.Clear()
	err := f.bridge.Close()
	if cerr := f.auth.Close(); err == nil {
		err = cerr
	}
	return err
}

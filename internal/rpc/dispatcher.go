// Package rpc routes decoded wallet-protocol requests to handlers,
// enforces authentication preconditions, and shapes every outcome into
// the single-result-or-error response envelope. All internal errors are
// normalized here; nothing rawer than an Error crosses the transport.
package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/seedframe-io/seedframe/internal/callbatch"
	"github.com/seedframe-io/seedframe/internal/ceremony"
	"github.com/seedframe-io/seedframe/internal/chain"
	"github.com/seedframe-io/seedframe/internal/keyring"
	"github.com/seedframe-io/seedframe/internal/logging"
	"github.com/seedframe-io/seedframe/internal/permission"
	"github.com/seedframe-io/seedframe/internal/session"
)

// Capabilities is the static descriptor wallet_getCapabilities returns.
// It is a function of configuration, not of session state.
type Capabilities struct {
	ChainIDs                []string `json:"chainIds" mapstructure:"chain_ids"`
	Features                []string `json:"features" mapstructure:"features"`
	MaxPermissionTTLSeconds uint64   `json:"maxPermissionTtlSeconds,omitempty" mapstructure:"max_permission_ttl_seconds"`
}

// Config wires the dispatcher's collaborators.
type Config struct {
	Session      *session.Session
	Permissions  *permission.Registry
	Chain        chain.Client
	Assets       *chain.AssetService
	Capabilities Capabilities

	// OnAuthRequired is invoked when a connect arrives unauthenticated,
	// so the embedding surface can start the ceremony. May be nil.
	OnAuthRequired func(origin string)
}

// Dispatcher is stateless per call; the Session carries the pending
// connect continuation and the single in-flight request slot.
type Dispatcher struct {
	session        *session.Session
	perms          *permission.Registry
	chain          chain.Client
	assets         *chain.AssetService
	caps           Capabilities
	onAuthRequired func(origin string)
}

func New(cfg Config) (*Dispatcher, error) {
	if cfg.Session == nil {
		return nil, errors.New("rpc: session is required")
	}
	if cfg.Permissions == nil {
		return nil, errors.New("rpc: permission registry is required")
	}
	return &Dispatcher{
		session:        cfg.Session,
		perms:          cfg.Permissions,
		chain:          cfg.Chain,
		assets:         cfg.Assets,
		caps:           cfg.Capabilities,
		onAuthRequired: cfg.OnAuthRequired,
	}, nil
}

// Handle processes one request and emits exactly one response through
// emit, either synchronously or, for a suspended connect, when the
// ceremony settles. origin comes from the transport layer, never from the
// payload.
func (d *Dispatcher) Handle(ctx context.Context, origin string, req Request, emit func(Response)) {
	logging.Debug("rpc request", "method", req.Method, "id", req.ID, "origin", origin)

	m, ok := ParseMethod(req.Method)
	if !ok {
		emit(Fault(req.ID, CodeUnsupportedMethod, fmt.Sprintf("unsupported method %q", req.Method)))
		return
	}

	if err := d.session.Begin(req.ID); err != nil {
		emit(Fault(req.ID, CodeBusy, "another request is in flight"))
		return
	}

	if m == MethodConnect {
		d.handleConnect(origin, req, emit)
		return
	}

	defer d.session.End(req.ID)
	res, err := d.invoke(ctx, origin, m, req)
	if err != nil {
		logging.Debug("rpc request failed", "method", req.Method, "id", req.ID, "err", err)
		emit(d.fault(req.ID, err))
		return
	}
	emit(Result(req.ID, res))
}

// handleConnect answers immediately when authenticated, otherwise parks
// the request as an explicit continuation until CompleteAuthentication or
// RejectPending settles it.
func (d *Dispatcher) handleConnect(origin string, req Request, emit func(Response)) {
	if d.session.Authenticated() {
		defer d.session.End(req.ID)
		pk, err := d.activePublicKey()
		if err != nil {
			emit(d.fault(req.ID, err))
			return
		}
		emit(Result(req.ID, connectResult{PublicKey: pk}))
		return
	}

	pending := &session.PendingConnect{
		RequestID: req.ID,
		Origin:    origin,
		Resume: func(publicKey string, err error) {
			defer d.session.End(req.ID)
			if err != nil {
				emit(d.fault(req.ID, err))
				return
			}
			emit(Result(req.ID, connectResult{PublicKey: publicKey}))
		},
	}
	if err := d.session.HoldConnect(pending); err != nil {
		d.session.End(req.ID)
		emit(Fault(req.ID, CodeBusy, "a connect is already pending"))
		return
	}

	if d.onAuthRequired != nil {
		d.onAuthRequired(origin)
	}
}

// CompleteAuthentication installs the ceremony's master seed and resumes a
// held connect, if any. The caller retains ownership of masterSeed and
// should zero it after this returns.
func (d *Dispatcher) CompleteAuthentication(masterSeed []byte) error {
	d.session.Activate(masterSeed)

	pk, err := d.activePublicKey()
	if err != nil {
		d.session.Clear()
		if p := d.session.TakePending(); p != nil {
			p.Resume("", err)
		}
		return err
	}

	if p := d.session.TakePending(); p != nil {
		p.Resume(pk, nil)
	}
	return nil
}

// RejectPending settles a held connect with a ceremony failure. A no-op
// when nothing is pending.
func (d *Dispatcher) RejectPending(err error) {
	if p := d.session.TakePending(); p != nil {
		p.Resume("", err)
	}
}

// activeKey derives the signing keypair for the current account index.
func (d *Dispatcher) activeKey() (solana.PrivateKey, error) {
	seed, err := d.session.Seed()
	if err != nil {
		return nil, err
	}
	defer keyring.Zero(seed)
	return keyring.DeriveWalletAccount(seed, d.session.ActiveIndex())
}

func (d *Dispatcher) activePublicKey() (string, error) {
	key, err := d.activeKey()
	if err != nil {
		return "", err
	}
	return key.PublicKey().String(), nil
}

// fault maps internal errors onto the wire taxonomy. Upstream failures
// keep their original message so callers can distinguish retryable network
// conditions from precondition failures.
func (d *Dispatcher) fault(id string, err error) Response {
	var up *upstreamError
	switch {
	case errors.As(err, &up):
		return Fault(id, CodeUpstreamFailure, up.err.Error())
	case errors.Is(err, session.ErrNotAuthenticated):
		return Fault(id, CodeNotAuthenticated, "not authenticated")
	case errors.Is(err, session.ErrBusy):
		return Fault(id, CodeBusy, "another request is in flight")
	case errors.Is(err, ceremony.ErrUserCancelled):
		return Fault(id, CodeUserRejected, "user rejected the request")
	case errors.Is(err, callbatch.ErrInvalidParams), errors.Is(err, errInvalidParams):
		return Fault(id, CodeInvalidParams, err.Error())
	case errors.Is(err, permission.ErrNotFound),
		errors.Is(err, permission.ErrOriginMismatch),
		errors.Is(err, permission.ErrExpired),
		errors.Is(err, permission.ErrScope):
		return Fault(id, CodeNotAuthenticated, err.Error())
	default:
		return Fault(id, CodeInternal, err.Error())
	}
}

// upstreamError tags failures from the network collaborator so fault can
// preserve their detail under a dedicated code.
type upstreamError struct{ err error }

func (e *upstreamError) Error() string { return e.err.Error() }
func (e *upstreamError) Unwrap() error { return e.err }

func upstream(err error) error {
	if err == nil {
		return nil
	}
	return &upstreamError{err: err}
}

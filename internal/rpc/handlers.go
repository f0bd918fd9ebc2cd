package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/seedframe-io/seedframe/internal/callbatch"
	"github.com/seedframe-io/seedframe/internal/keyring"
	"github.com/seedframe-io/seedframe/internal/logging"
	"github.com/seedframe-io/seedframe/internal/permission"
	"github.com/seedframe-io/seedframe/internal/session"
)

var errInvalidParams = errors.New("rpc: invalid params")

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing params", errInvalidParams)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return nil
}

// invoke covers every method except connect, which suspends and is routed
// before this switch. The switch is exhaustive over the closed method set.
func (d *Dispatcher) invoke(ctx context.Context, origin string, m Method, req Request) (any, error) {
	switch m {
	case MethodDisconnect:
		return d.disconnect()
	case MethodSignMessage:
		return d.signMessage(req.Params)
	case MethodSignTransaction:
		return d.signTransaction(req.Params)
	case MethodSignAllTransactions:
		return d.signAllTransactions(req.Params)
	case MethodSendTransaction:
		return d.sendTransaction(ctx, req.Params)
	case MethodSendCalls:
		return d.sendCalls(ctx, origin, req.Params)
	case MethodPrepareCalls:
		return d.prepareCalls(ctx, req.Params)
	case MethodGetCapabilities:
		return d.caps, nil
	case MethodGetAssets:
		return d.getAssets(ctx)
	case MethodGrantPermissions:
		return d.grantPermissions(origin, req.Params)
	case MethodRevokePermissions:
		return d.revokePermissions(req.Params)
	case MethodGetPermissions:
		return d.getPermissions(origin), nil
	case MethodConnect:
		// Routed by Handle before reaching here.
		return nil, fmt.Errorf("rpc: connect reached the synchronous path")
	}
	return nil, fmt.Errorf("rpc: no handler for %q", m)
}

type connectResult struct {
	PublicKey string `json:"publicKey"`
}

// disconnect clears authentication state. Always succeeds; the credential
// handle survives so the next connect skips re-registration.
func (d *Dispatcher) disconnect() (any, error) {
	d.session.Clear()
	return true, nil
}

type signMessageParams struct {
	Message string `json:"message"` // base64url
}

type signMessageResult struct {
	Signature string `json:"signature"` // base64url
	PublicKey string `json:"publicKey"`
}

func (d *Dispatcher) signMessage(raw json.RawMessage) (any, error) {
	var p signMessageParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	msg, err := keyring.FromB64URL(p.Message)
	if err != nil {
		return nil, fmt.Errorf("%w: message is not base64url", errInvalidParams)
	}

	key, err := d.activeKey()
	if err != nil {
		return nil, err
	}
	sig, err := key.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	return signMessageResult{
		Signature: keyring.ToB64URL(sig[:]),
		PublicKey: key.PublicKey().String(),
	}, nil
}

type signTransactionParams struct {
	Transaction string `json:"transaction"` // base64
}

type signTransactionResult struct {
	SignedTransaction string `json:"signedTransaction"` // base64
}

func (d *Dispatcher) signTransaction(raw json.RawMessage) (any, error) {
	var p signTransactionParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	key, err := d.activeKey()
	if err != nil {
		return nil, err
	}
	signed, err := signOne(p.Transaction, key)
	if err != nil {
		return nil, err
	}
	return signTransactionResult{SignedTransaction: signed}, nil
}

type signAllTransactionsParams struct {
	Transactions []string `json:"transactions"`
}

type signAllTransactionsResult struct {
	SignedTransactions []string `json:"signedTransactions"`
}

func (d *Dispatcher) signAllTransactions(raw json.RawMessage) (any, error) {
	var p signAllTransactionsParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if len(p.Transactions) == 0 {
		return nil, fmt.Errorf("%w: empty transaction list", errInvalidParams)
	}

	key, err := d.activeKey()
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(p.Transactions))
	for i, enc := range p.Transactions {
		signed, err := signOne(enc, key)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		out = append(out, signed)
	}
	return signAllTransactionsResult{SignedTransactions: out}, nil
}

// signOne attaches the derived key's signature to a serialized transaction.
// Partial-sign semantics: slots belonging to other signers are untouched.
func signOne(encoded string, key solana.PrivateKey) (string, error) {
	tx, err := decodeTransaction(encoded)
	if err != nil {
		return "", err
	}
	if _, err := tx.PartialSign(signerFor(key)); err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}
	bytes, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("serialize transaction: %w", err)
	}
	return keyring.ToB64(bytes), nil
}

func decodeTransaction(encoded string) (*solana.Transaction, error) {
	raw, err := keyring.FromB64(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: transaction is not base64", errInvalidParams)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable transaction: %v", errInvalidParams, err)
	}
	return tx, nil
}

func signerFor(keys ...solana.PrivateKey) func(solana.PublicKey) *solana.PrivateKey {
	return func(pk solana.PublicKey) *solana.PrivateKey {
		for i := range keys {
			if keys[i].PublicKey() == pk {
				return &keys[i]
			}
		}
		return nil
	}
}

type sendTransactionParams struct {
	Transaction       string  `json:"transaction"` // base64
	PriorityFee       *uint64 `json:"priorityFee,omitempty"`
	ComputeUnits      *uint32 `json:"computeUnits,omitempty"`
	AwaitConfirmation bool    `json:"awaitConfirmation,omitempty"`
}

type sendTransactionResult struct {
	Signature string `json:"signature"`
}

// sendTransaction signs with partial-sign semantics and submits. When
// budget injection is requested the message is rebuilt around a fresh
// checkpoint, which invalidates prior co-signatures anyway; without
// injection the caller's message and any existing signature slots are
// left exactly as received. Confirmation is awaited only when asked for;
// submission retry counts live in the chain client's options.
func (d *Dispatcher) sendTransaction(ctx context.Context, raw json.RawMessage) (any, error) {
	var p sendTransactionParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	key, err := d.activeKey()
	if err != nil {
		return nil, err
	}
	tx, err := decodeTransaction(p.Transaction)
	if err != nil {
		return nil, err
	}

	if p.PriorityFee != nil || p.ComputeUnits != nil {
		cp, err := d.chain.LatestCheckpoint(ctx)
		if err != nil {
			return nil, upstream(err)
		}
		tx, err = callbatch.Reframe(tx, p.PriorityFee, p.ComputeUnits, cp)
		if err != nil {
			return nil, err
		}
	}

	if _, err := tx.PartialSign(signerFor(key)); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := d.chain.Submit(ctx, tx)
	if err != nil {
		return nil, upstream(err)
	}
	if p.AwaitConfirmation {
		if err := d.chain.AwaitConfirmation(ctx, sig); err != nil {
			return nil, upstream(err)
		}
	}
	return sendTransactionResult{Signature: sig.String()}, nil
}

type sendCallsParams struct {
	callbatch.Params
	PermissionID      string `json:"permissionId,omitempty"`
	AwaitConfirmation bool   `json:"awaitConfirmation,omitempty"`
}

// sendCalls assembles the batch, authorizes it against a grant when one is
// named, signs with the derived key (and the grant's session key, when the
// transaction references it) and submits.
func (d *Dispatcher) sendCalls(ctx context.Context, origin string, raw json.RawMessage) (any, error) {
	var p sendCallsParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	key, err := d.activeKey()
	if err != nil {
		return nil, err
	}

	signers := []solana.PrivateKey{key}
	if p.PermissionID != "" {
		for _, call := range p.Calls {
			amount, _ := call.TransferLamports()
			if err := d.perms.Authorize(p.PermissionID, origin, call.ProgramID, string(MethodSendCalls), amount); err != nil {
				return nil, err
			}
		}
		if sk, ok := d.perms.SessionKey(p.PermissionID); ok {
			signers = append(signers, sk)
		}
	}

	tx, _, err := callbatch.Build(ctx, d.chain, key.PublicKey(), p.Params)
	if err != nil {
		if errors.Is(err, callbatch.ErrInvalidParams) {
			return nil, err
		}
		return nil, upstream(err)
	}
	if _, err := tx.PartialSign(signerFor(signers...)); err != nil {
		return nil, fmt.Errorf("sign batch: %w", err)
	}

	sig, err := d.chain.Submit(ctx, tx)
	if err != nil {
		return nil, upstream(err)
	}
	if p.AwaitConfirmation {
		if err := d.chain.AwaitConfirmation(ctx, sig); err != nil {
			return nil, upstream(err)
		}
	}
	return sendTransactionResult{Signature: sig.String()}, nil
}

// prepareCalls stops after the unsigned message and signer list, for
// external or hardware signing flows.
func (d *Dispatcher) prepareCalls(ctx context.Context, raw json.RawMessage) (any, error) {
	var p callbatch.Params
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	key, err := d.activeKey()
	if err != nil {
		return nil, err
	}

	prepared, err := callbatch.Prepare(ctx, d.chain, key.PublicKey(), p)
	if err != nil {
		if errors.Is(err, callbatch.ErrInvalidParams) {
			return nil, err
		}
		return nil, upstream(err)
	}
	return prepared, nil
}

func (d *Dispatcher) getAssets(ctx context.Context) (any, error) {
	key, err := d.activeKey()
	if err != nil {
		return nil, err
	}
	assets, err := d.assets.List(ctx, key.PublicKey())
	if err != nil {
		return nil, upstream(err)
	}
	return assets, nil
}

type grantPermissionsParams struct {
	Scope      permission.Scope `json:"scope"`
	TTLSeconds uint64           `json:"ttlSeconds,omitempty"`
	SessionKey bool             `json:"sessionKey,omitempty"`
}

func (d *Dispatcher) grantPermissions(origin string, raw json.RawMessage) (any, error) {
	var p grantPermissionsParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if !d.session.Authenticated() {
		return nil, session.ErrNotAuthenticated
	}

	ttl := p.TTLSeconds
	if max := d.caps.MaxPermissionTTLSeconds; max > 0 && (ttl == 0 || ttl > max) {
		ttl = max
	}

	grant, err := d.perms.Grant(permission.GrantParams{
		Scope:          p.Scope,
		TTL:            time.Duration(ttl) * time.Second,
		WithSessionKey: p.SessionKey,
	}, origin)
	if err != nil {
		return nil, err
	}
	logging.Info("permission granted", "id", grant.ID, "origin", origin, "sessionKey", grant.SessionKey != "")
	return grant, nil
}

type revokePermissionsParams struct {
	ID string `json:"id"`
}

func (d *Dispatcher) revokePermissions(raw json.RawMessage) (any, error) {
	var p revokePermissionsParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, fmt.Errorf("%w: id is required", errInvalidParams)
	}
	d.perms.Revoke(p.ID)
	return true, nil
}

// getPermissions returns only the caller origin's grants; grants are
// origin-pinned and invisible across origins.
func (d *Dispatcher) getPermissions(origin string) []permission.Permission {
	all := d.perms.List()
	out := make([]permission.Permission, 0, len(all))
	for _, p := range all {
		if p.Origin == origin {
			out = append(out, p)
		}
	}
	return out
}

// Package chain is the network collaborator: checkpoint fetch, balance
// queries, transaction submission and confirmation. The wallet core only
// depends on the Client interface; the RPC implementation lives alongside
// so tests can substitute a fake without network access.
package chain

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Checkpoint is the short-lived network reference a transaction binds to.
// It must be fetched immediately before signing to minimize staleness.
type Checkpoint struct {
	Blockhash solana.Hash
	Slot      uint64
}

// Client is the minimal surface the wallet core needs from the network.
type Client interface {
	// LatestCheckpoint fetches a fresh recent blockhash.
	LatestCheckpoint(ctx context.Context) (Checkpoint, error)
	// Submit broadcasts a signed transaction.
	Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	// AwaitConfirmation blocks until sig is confirmed, errors, or ctx ends.
	AwaitConfirmation(ctx context.Context, sig solana.Signature) error
	// Balance returns the native balance in base units.
	Balance(ctx context.Context, owner solana.PublicKey) (uint64, error)
	// TokenBalance returns the owner's balance for mint, in base units.
	TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error)
}

package chain

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/seedframe-io/seedframe/internal/logging"
)

// Options tune the network behavior. Zero values pick the defaults below.
type Options struct {
	// SubmitRetries is handed to the node's transaction relayer.
	SubmitRetries uint
	// ConfirmPollInterval is how often AwaitConfirmation polls.
	ConfirmPollInterval time.Duration
	// ConfirmWait bounds how long AwaitConfirmation waits in total.
	ConfirmWait time.Duration
}

const (
	defaultConfirmPoll = 2 * time.Second
	defaultConfirmWait = 60 * time.Second
)

// RPCClient implements Client over a Solana JSON-RPC endpoint.
type RPCClient struct {
	rpc  *rpc.Client
	opts Options
}

// NewRPCClient connects to endpoint. No request is made until first use.
func NewRPCClient(endpoint string, opts Options) *RPCClient {
	if opts.ConfirmPollInterval <= 0 {
		opts.ConfirmPollInterval = defaultConfirmPoll
	}
	if opts.ConfirmWait <= 0 {
		opts.ConfirmWait = defaultConfirmWait
	}
	return &RPCClient{rpc: rpc.New(endpoint), opts: opts}
}

func (c *RPCClient) LatestCheckpoint(ctx context.Context) (Checkpoint, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	return Checkpoint{
		Blockhash: out.Value.Blockhash,
		Slot:      out.Context.Slot,
	}, nil
}

func (c *RPCClient) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	retries := c.opts.SubmitRetries
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		MaxRetries: &retries,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	return sig, nil
}

func (c *RPCClient) AwaitConfirmation(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ConfirmWait)
	defer cancel()

	ticker := time.NewTicker(c.opts.ConfirmPollInterval)
	defer ticker.Stop()

	for {
		out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			logging.Warn("signature status poll failed", "error", err)
		} else if len(out.Value) > 0 && out.Value[0] != nil {
			st := out.Value[0]
			if st.Err != nil {
				return fmt.Errorf("transaction failed on chain: %v", st.Err)
			}
			switch st.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation wait: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *RPCClient) Balance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, owner, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return out.Value, nil
}

func (c *RPCClient) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, fmt.Errorf("derive token account: %w", err)
	}
	out, err := c.rpc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("get token balance: %w", err)
	}
	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token amount %q: %w", out.Value.Amount, err)
	}
	return amount, nil
}

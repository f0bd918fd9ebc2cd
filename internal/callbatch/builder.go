// Package callbatch assembles wallet_sendCalls / wallet_prepareCalls
// batches into a single signable transaction. Fee and compute-budget
// framing is transaction-scoped: at most one compute-unit-price and one
// compute-unit-limit instruction are prepended, then the caller's
// instructions follow in caller order. Ordering is significant (earlier
// instructions may set up state later ones depend on) and is never changed.
package callbatch

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/seedframe-io/seedframe/internal/chain"
	"github.com/seedframe-io/seedframe/internal/keyring"
)

// ErrInvalidParams marks malformed caller input, detected before any
// network call is attempted.
var ErrInvalidParams = errors.New("callbatch: invalid params")

const (
	// DefaultCallComputeUnits is assumed for calls that do not declare a
	// compute requirement.
	DefaultCallComputeUnits = 200_000
	// DefaultTxComputeCeiling is the network's per-transaction default.
	DefaultTxComputeCeiling = 200_000
	// MaxTxComputeUnits is the network hard maximum. Totals are capped
	// here; calls are never dropped to fit.
	MaxTxComputeUnits = 1_400_000
)

var computeBudgetProgram = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// ComputeBudget instruction discriminators.
const (
	setComputeUnitLimitIx = 2
	setComputeUnitPriceIx = 3
)

// System-program transfer discriminator (u32 LE) followed by lamports
// (u64 LE).
const systemTransferIx = 2

// AccountRef is a caller-declared account role. Roles are preserved
// verbatim; the builder does not infer or correct them.
type AccountRef struct {
	Pubkey     string `json:"pubkey"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

// Call is the atomic unit of a batch.
type Call struct {
	ProgramID    string       `json:"programId"`
	Accounts     []AccountRef `json:"accounts"`
	Data         string       `json:"data"` // base64url
	ComputeUnits *uint32      `json:"computeUnits,omitempty"`
	PriorityFee  *uint64      `json:"priorityFee,omitempty"`
}

// TransferLamports reports the lamport amount a call moves, for calls
// recognizable as plain system-program transfers. Opaque program data
// returns false; amount ceilings can only bind value the builder can see.
func (c Call) TransferLamports() (uint64, bool) {
	if c.ProgramID != solana.SystemProgramID.String() {
		return 0, false
	}
	data, err := keyring.FromB64URL(c.Data)
	if err != nil || len(data) < 12 {
		return 0, false
	}
	if binary.LittleEndian.Uint32(data[:4]) != systemTransferIx {
		return 0, false
	}
	return binary.LittleEndian.Uint64(data[4:12]), true
}

// Params is the decoded wallet_sendCalls / wallet_prepareCalls payload.
type Params struct {
	Calls       []Call  `json:"calls"`
	PriorityFee *uint64 `json:"priorityFee,omitempty"` // batch-wide floor
}

// Prepared is the wallet_prepareCalls result: the unsigned serialized
// message plus the signer set, for external/hardware signing flows.
type Prepared struct {
	Message         string   `json:"message"` // base64
	RequiredSigners []string `json:"requiredSigners"`
	Blockhash       string   `json:"blockhash"`
	Slot            uint64   `json:"slot"`
}

// Compile turns the batch into an ordered instruction list with its
// compute-budget framing. Pure; no network access.
func Compile(p Params) ([]solana.Instruction, error) {
	if len(p.Calls) == 0 {
		return nil, fmt.Errorf("%w: empty call list", ErrInvalidParams)
	}

	var (
		maxFee   uint64
		totalCU  uint64
		business []solana.Instruction
	)
	if p.PriorityFee != nil {
		maxFee = *p.PriorityFee
	}

	for i, c := range p.Calls {
		if c.PriorityFee != nil && *c.PriorityFee > maxFee {
			maxFee = *c.PriorityFee
		}
		if c.ComputeUnits != nil {
			totalCU += uint64(*c.ComputeUnits)
		} else {
			totalCU += DefaultCallComputeUnits
		}

		ix, err := compileCall(i, c)
		if err != nil {
			return nil, err
		}
		business = append(business, ix)
	}

	var out []solana.Instruction
	if maxFee > 0 {
		out = append(out, NewComputeUnitPrice(maxFee))
	}
	if totalCU > DefaultTxComputeCeiling {
		if totalCU > MaxTxComputeUnits {
			totalCU = MaxTxComputeUnits
		}
		out = append(out, NewComputeUnitLimit(uint32(totalCU)))
	}
	return append(out, business...), nil
}

func compileCall(i int, c Call) (solana.Instruction, error) {
	program, err := solana.PublicKeyFromBase58(c.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("%w: call %d: bad program id %q", ErrInvalidParams, i, c.ProgramID)
	}

	accounts := make(solana.AccountMetaSlice, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		pk, err := solana.PublicKeyFromBase58(a.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("%w: call %d: bad account %q", ErrInvalidParams, i, a.Pubkey)
		}
		accounts = append(accounts, solana.NewAccountMeta(pk, a.IsWritable, a.IsSigner))
	}

	data, err := keyring.FromB64URL(c.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: call %d: bad instruction data", ErrInvalidParams, i)
	}
	return solana.NewInstruction(program, accounts, data), nil
}

// NewComputeUnitPrice builds a SetComputeUnitPrice instruction with the
// fee in micro-lamports per compute unit.
func NewComputeUnitPrice(microLamports uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = setComputeUnitPriceIx
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return solana.NewInstruction(computeBudgetProgram, solana.AccountMetaSlice{}, data)
}

// NewComputeUnitLimit builds a SetComputeUnitLimit instruction.
func NewComputeUnitLimit(units uint32) solana.Instruction {
	data := make([]byte, 5)
	data[0] = setComputeUnitLimitIx
	binary.LittleEndian.PutUint32(data[1:], units)
	return solana.NewInstruction(computeBudgetProgram, solana.AccountMetaSlice{}, data)
}

// Build compiles the batch and binds a fresh checkpoint and fee payer,
// returning a transaction ready for signing. The checkpoint is fetched
// last so its validity window starts as late as possible.
func Build(ctx context.Context, client chain.Client, feePayer solana.PublicKey, p Params) (*solana.Transaction, chain.Checkpoint, error) {
	instrs, err := Compile(p)
	if err != nil {
		return nil, chain.Checkpoint{}, err
	}

	cp, err := client.LatestCheckpoint(ctx)
	if err != nil {
		return nil, chain.Checkpoint{}, err
	}

	tx, err := solana.NewTransaction(instrs, cp.Blockhash, solana.TransactionPayer(feePayer))
	if err != nil {
		return nil, chain.Checkpoint{}, fmt.Errorf("assemble transaction: %w", err)
	}
	return tx, cp, nil
}

// Prepare produces the unsigned message and required-signer list; signing
// and submission are deferred to the caller.
func Prepare(ctx context.Context, client chain.Client, feePayer solana.PublicKey, p Params) (*Prepared, error) {
	tx, cp, err := Build(ctx, client, feePayer, p)
	if err != nil {
		return nil, err
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize message: %w", err)
	}

	n := int(tx.Message.Header.NumRequiredSignatures)
	signers := make([]string, 0, n)
	for _, pk := range tx.Message.AccountKeys[:n] {
		signers = append(signers, pk.String())
	}

	return &Prepared{
		Message:         base64.StdEncoding.EncodeToString(msg),
		RequiredSigners: signers,
		Blockhash:       cp.Blockhash.String(),
		Slot:            cp.Slot,
	}, nil
}

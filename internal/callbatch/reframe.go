package callbatch

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/seedframe-io/seedframe/internal/chain"
)

// Reframe rebuilds a caller-supplied transaction with compute-budget
// instructions prepended and a fresh checkpoint bound. The original
// instructions keep their order and their declared account roles; the fee
// payer stays the message's first signer. Signature slots are discarded,
// the caller re-signs the rebuilt transaction.
func Reframe(tx *solana.Transaction, price *uint64, units *uint32, cp chain.Checkpoint) (*solana.Transaction, error) {
	original, err := decompile(&tx.Message)
	if err != nil {
		return nil, err
	}

	var instrs []solana.Instruction
	if price != nil {
		instrs = append(instrs, NewComputeUnitPrice(*price))
	}
	if units != nil {
		instrs = append(instrs, NewComputeUnitLimit(*units))
	}
	instrs = append(instrs, original...)

	if len(tx.Message.AccountKeys) == 0 {
		return nil, fmt.Errorf("%w: transaction has no accounts", ErrInvalidParams)
	}
	return solana.NewTransaction(instrs, cp.Blockhash, solana.TransactionPayer(tx.Message.AccountKeys[0]))
}

// decompile reverses message compilation: compiled instruction indices are
// resolved back to account metas using the header's signer/writability
// partitioning for legacy messages.
func decompile(msg *solana.Message) ([]solana.Instruction, error) {
	numSigners := int(msg.Header.NumRequiredSignatures)
	roSigned := int(msg.Header.NumReadonlySignedAccounts)
	roUnsigned := int(msg.Header.NumReadonlyUnsignedAccounts)
	total := len(msg.AccountKeys)

	isSigner := func(i int) bool { return i < numSigners }
	isWritable := func(i int) bool {
		if i < numSigners {
			return i < numSigners-roSigned
		}
		return i < total-roUnsigned
	}

	out := make([]solana.Instruction, 0, len(msg.Instructions))
	for _, ci := range msg.Instructions {
		if int(ci.ProgramIDIndex) >= total {
			return nil, fmt.Errorf("%w: program index out of range", ErrInvalidParams)
		}
		program := msg.AccountKeys[ci.ProgramIDIndex]

		metas := make(solana.AccountMetaSlice, 0, len(ci.Accounts))
		for _, ai := range ci.Accounts {
			i := int(ai)
			if i >= total {
				return nil, fmt.Errorf("%w: account index out of range", ErrInvalidParams)
			}
			metas = append(metas, solana.NewAccountMeta(msg.AccountKeys[i], isWritable(i), isSigner(i)))
		}
		out = append(out, solana.NewInstruction(program, metas, ci.Data))
	}
	return out, nil
}

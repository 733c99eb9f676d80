// Package fraud implements out-of-band fraud proofs: structural checks on
// submitted proofs, re-execution of disputed blocks against snapshotted
// state, and interactive bisection down to a single disputed step.
package fraud

import (
	"errors"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/params"
)

var (
	ErrProofNoChallenger = errors.New("fraud: missing challenger address")
	ErrProofNoSequencer  = errors.New("fraud: missing sequencer address")
	ErrProofBondTooSmall = errors.New("fraud: bond below required amount")
	ErrProofSameRoots    = errors.New("fraud: disputed root equals previous root")
	ErrProofNoRoots      = errors.New("fraud: missing state roots")
	ErrProofTooManyTxs   = errors.New("fraud: transaction list exceeds cap")
	ErrProofTooManySteps = errors.New("fraud: bisection trace exceeds cap")
)

// Step is one instruction-level execution step in a bisection trace.
type Step struct {
	PreRoot  types.Hash
	PostRoot types.Hash
	// Instruction is the opaque encoded instruction; the executor owns
	// its semantics.
	Instruction []byte
	GasUsed     uint64
}

// Proof disputes the state root a sequencer declared for a block. PrevRoot
// is the last root both sides agree on.
type Proof struct {
	DisputedRoot  types.Hash
	DisputedBlock uint64
	PrevRoot      types.Hash

	Challenger types.Address
	Sequencer  types.Address
	Bond       int64

	// Transactions of the disputed block relevant to the dispute.
	Transactions []*types.Transaction

	// Steps is an optional bisection trace for interactive verification.
	Steps []Step
}

// ValidateStructure checks the proof's standalone rules: both parties
// named, bond posted, distinct non-null roots, and size caps.
func (p *Proof) ValidateStructure() error {
	if p.Challenger.IsZero() {
		return ErrProofNoChallenger
	}
	if p.Sequencer.IsZero() {
		return ErrProofNoSequencer
	}
	if p.Bond < params.FraudProofBond {
		return ErrProofBondTooSmall
	}
	if p.DisputedRoot.IsZero() || p.PrevRoot.IsZero() {
		return ErrProofNoRoots
	}
	if p.DisputedRoot == p.PrevRoot {
		return ErrProofSameRoots
	}
	if len(p.Transactions) > types.MaxBlockTransactions {
		return ErrProofTooManyTxs
	}
	if len(p.Steps) > params.MaxBisectionSteps {
		return ErrProofTooManySteps
	}
	return nil
}

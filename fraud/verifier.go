package fraud

import (
	"errors"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/log"
	"github.com/cascoin/cascoin-l2/params"
	"github.com/cascoin/cascoin-l2/state"
)

var ErrNoPrevState = errors.New("fraud: previous root not available for replay")

// Outcome classifies a verified proof.
type Outcome int

const (
	// OutcomeValid: the recomputed root differs from the disputed one; the
	// sequencer is slashed and the challenger rewarded.
	OutcomeValid Outcome = iota
	// OutcomeInvalid: re-execution reproduced the disputed root; the
	// challenger's bond is forfeited.
	OutcomeInvalid
	// OutcomeInconclusive: re-execution could not be completed within
	// budget; no stake moves.
	OutcomeInconclusive
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeValid:
		return "VALID"
	case OutcomeInvalid:
		return "INVALID"
	case OutcomeInconclusive:
		return "INCONCLUSIVE"
	default:
		return "UNKNOWN"
	}
}

// Verdict is the result of verifying a fraud proof.
type Verdict struct {
	Outcome        Outcome
	RecomputedRoot types.Hash

	// SlashAmount is taken from the sequencer when the proof is valid.
	SlashAmount int64
	// ChallengerReward is the share of the slash paid to the challenger,
	// on top of the returned bond.
	ChallengerReward int64
	// BondForfeited is set when the proof is invalid.
	BondForfeited bool
}

// StateAtFunc resolves a snapshotted state for re-execution. Injected so
// the verifier does not own snapshot retention.
type StateAtFunc func(root types.Hash) (*state.Manager, error)

// Verifier re-executes disputed blocks.
type Verifier struct {
	stateAt StateAtFunc
	log     *log.Logger

	// slashAmount applied on valid proofs, at least params.MinSlashAmount.
	slashAmount int64
}

// NewVerifier creates a verifier resolving replay state through stateAt.
func NewVerifier(stateAt StateAtFunc) *Verifier {
	return &Verifier{
		stateAt:     stateAt,
		log:         log.Module("fraud"),
		slashAmount: params.MinSlashAmount,
	}
}

// SetSlashAmount raises the slash applied on valid proofs. Values below
// the configured minimum are ignored.
func (v *Verifier) SetSlashAmount(amount int64) {
	if amount > v.slashAmount {
		v.slashAmount = amount
	}
}

// Verify re-executes the proof's transactions from the previous root and
// compares the result with the disputed root.
func (v *Verifier) Verify(p *Proof) (*Verdict, error) {
	if err := p.ValidateStructure(); err != nil {
		return nil, err
	}
	replay, err := v.stateAt(p.PrevRoot)
	if err != nil {
		return nil, ErrNoPrevState
	}
	if _, err := replay.ApplyBatch(p.Transactions, p.DisputedBlock); err != nil {
		// The disputed block cannot even be replayed; without a completed
		// execution there is no root to compare, so the dispute needs the
		// interactive path.
		v.log.Warn("fraud replay failed", "block", p.DisputedBlock, "err", err)
		return &Verdict{Outcome: OutcomeInconclusive}, nil
	}

	got := replay.Root()
	if got != p.DisputedRoot {
		verdict := &Verdict{
			Outcome:          OutcomeValid,
			RecomputedRoot:   got,
			SlashAmount:      v.slashAmount,
			ChallengerReward: v.slashAmount * params.ChallengerRewardPercent / 100,
		}
		v.log.Info("fraud proof valid", "block", p.DisputedBlock,
			"sequencer", p.Sequencer, "slash", verdict.SlashAmount)
		return verdict, nil
	}
	return &Verdict{
		Outcome:        OutcomeInvalid,
		RecomputedRoot: got,
		BondForfeited:  true,
	}, nil
}

package fraud

import (
	"errors"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/params"
)

var (
	ErrBisectionBudget  = errors.New("fraud: bisection step budget exhausted")
	ErrBisectionNotDone = errors.New("fraud: dispute not narrowed to one step")
	ErrBisectionDone    = errors.New("fraud: dispute already narrowed to one step")
	ErrBisectionNoSteps = errors.New("fraud: empty execution range")
)

// StepExecutor executes one instruction step from preRoot and returns the
// resulting root. The executor owns instruction semantics; this package
// only compares roots.
type StepExecutor func(preRoot types.Hash, step Step) (types.Hash, error)

// Session narrows a disputed execution range [lo, hi) of instruction
// steps to a single step through alternating moves: the sequencer claims
// the root at the midpoint, the challenger picks the half it disagrees
// with. Each round spends one unit of the step budget; exhausting the
// budget makes the dispute inconclusive.
type Session struct {
	proof *Proof

	lo, hi  uint64
	loRoot  types.Hash
	hiRoot  types.Hash
	midRoot types.Hash
	midSet  bool
	rounds  int
}

// NewSession opens a bisection session over totalSteps execution steps
// between the proof's previous and disputed roots.
func NewSession(p *Proof, totalSteps uint64) (*Session, error) {
	if err := p.ValidateStructure(); err != nil {
		return nil, err
	}
	if totalSteps == 0 {
		return nil, ErrBisectionNoSteps
	}
	return &Session{
		proof:  p,
		lo:     0,
		hi:     totalSteps,
		loRoot: p.PrevRoot,
		hiRoot: p.DisputedRoot,
	}, nil
}

// Converged reports whether the dispute is down to a single step.
func (s *Session) Converged() bool {
	return s.hi-s.lo == 1
}

// Range returns the currently disputed step range [lo, hi) and its
// boundary roots.
func (s *Session) Range() (lo, hi uint64, loRoot, hiRoot types.Hash) {
	return s.lo, s.hi, s.loRoot, s.hiRoot
}

// Mid returns the midpoint step index the sequencer must provide a root
// for.
func (s *Session) Mid() uint64 {
	return s.lo + (s.hi-s.lo)/2
}

// ClaimMidRoot records the sequencer's claimed root at the midpoint.
func (s *Session) ClaimMidRoot(root types.Hash) error {
	if s.Converged() {
		return ErrBisectionDone
	}
	s.midRoot = root
	s.midSet = true
	return nil
}

// ChooseHalf is the challenger's move: disagreeFirst selects [lo, mid)
// when the challenger disputes the first half, otherwise [mid, hi). Each
// call consumes one round of the budget.
func (s *Session) ChooseHalf(disagreeFirst bool) error {
	if s.Converged() {
		return ErrBisectionDone
	}
	if !s.midSet {
		return errors.New("fraud: midpoint root not claimed")
	}
	s.rounds++
	if s.rounds > params.MaxBisectionSteps {
		return ErrBisectionBudget
	}
	mid := s.Mid()
	if disagreeFirst {
		s.hi = mid
		s.hiRoot = s.midRoot
	} else {
		s.lo = mid
		s.loRoot = s.midRoot
	}
	s.midSet = false
	return nil
}

// VerifyStep executes the single remaining step and renders the final
// verdict for the whole dispute: if the executed root differs from the
// claimed post-root the proof is valid.
func (s *Session) VerifyStep(step Step, exec StepExecutor) (*Verdict, error) {
	if !s.Converged() {
		return nil, ErrBisectionNotDone
	}
	got, err := exec(s.loRoot, step)
	if err != nil {
		return &Verdict{Outcome: OutcomeInconclusive}, nil
	}
	if got != s.hiRoot {
		slash := params.MinSlashAmount
		return &Verdict{
			Outcome:          OutcomeValid,
			RecomputedRoot:   got,
			SlashAmount:      slash,
			ChallengerReward: slash * params.ChallengerRewardPercent / 100,
		}, nil
	}
	return &Verdict{
		Outcome:        OutcomeInvalid,
		RecomputedRoot: got,
		BondForfeited:  true,
	}, nil
}

package validator

import (
	"errors"
	"sync"
	"time"

	"github.com/cascoin/cascoin-l2/core/types"
)

var (
	ErrUnknownCandidate = errors.New("validator: unknown block candidate")
	ErrBadTransition    = errors.New("validator: candidate not in expected status")
)

// Candidate is a proposed block moving through consensus.
type Candidate struct {
	Block    *types.Block
	Status   Status
	Reason   Result
	Proposed time.Time
}

// CandidateSet tracks block candidates keyed by hash and enforces the
// PROPOSED -> CONSENSUS_PENDING -> FINALIZED | REJECTED transitions.
type CandidateSet struct {
	mu         sync.Mutex
	candidates map[types.Hash]*Candidate
}

// NewCandidateSet creates an empty candidate tracker.
func NewCandidateSet() *CandidateSet {
	return &CandidateSet{candidates: make(map[types.Hash]*Candidate)}
}

// Propose registers a new candidate in PROPOSED status.
func (s *CandidateSet) Propose(block *types.Block) *Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &Candidate{Block: block, Status: StatusProposed, Proposed: time.Now()}
	s.candidates[block.Hash()] = c
	return c
}

// Get returns the candidate for hash.
func (s *CandidateSet) Get(hash types.Hash) (*Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[hash]
	if !ok {
		return nil, ErrUnknownCandidate
	}
	return c, nil
}

// MarkPending moves a PROPOSED candidate into CONSENSUS_PENDING after its
// structural and header checks pass.
func (s *CandidateSet) MarkPending(hash types.Hash) error {
	return s.transition(hash, StatusProposed, StatusConsensusPending, ok())
}

// Finalize moves a CONSENSUS_PENDING candidate into FINALIZED and sets the
// block's finalized flag.
func (s *CandidateSet) Finalize(hash types.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[hash]
	if !ok {
		return ErrUnknownCandidate
	}
	if c.Status != StatusConsensusPending {
		return ErrBadTransition
	}
	c.Status = StatusFinalized
	c.Block.Finalized = true
	return nil
}

// Reject moves a candidate into REJECTED from any non-final status,
// recording the reason. A rejected or finalized candidate stays put.
func (s *CandidateSet) Reject(hash types.Hash, reason Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[hash]
	if !ok {
		return ErrUnknownCandidate
	}
	if c.Status == StatusFinalized || c.Status == StatusRejected {
		return ErrBadTransition
	}
	c.Status = StatusRejected
	c.Reason = reason
	return nil
}

// Pending returns candidates awaiting consensus whose proposal time is
// older than cutoff, for failover handling.
func (s *CandidateSet) Pending(cutoff time.Time) []*Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Candidate
	for _, c := range s.candidates {
		if c.Status == StatusConsensusPending && c.Proposed.Before(cutoff) {
			out = append(out, c)
		}
	}
	return out
}

// Remove drops a candidate.
func (s *CandidateSet) Remove(hash types.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.candidates, hash)
}

func (s *CandidateSet) transition(hash types.Hash, from, to Status, reason Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[hash]
	if !ok {
		return ErrUnknownCandidate
	}
	if c.Status != from {
		return ErrBadTransition
	}
	c.Status = to
	c.Reason = reason
	return nil
}

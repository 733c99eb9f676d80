package sequencer

import (
	"errors"
	"sync"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/crypto"
	"github.com/cascoin/cascoin-l2/log"
)

var (
	ErrVoteConflict       = errors.New("sequencer: conflicting vote from same voter")
	ErrVoteBadSignature   = errors.New("sequencer: vote signature invalid")
	ErrVoterNotRegistered = errors.New("sequencer: voter not registered")
)

// VoteKind is a sequencer's stance on a proposed block.
type VoteKind uint8

const (
	VoteAccept VoteKind = iota
	VoteReject
	VoteAbstain
)

// String implements fmt.Stringer.
func (v VoteKind) String() string {
	switch v {
	case VoteAccept:
		return "ACCEPT"
	case VoteReject:
		return "REJECT"
	case VoteAbstain:
		return "ABSTAIN"
	default:
		return "UNKNOWN"
	}
}

// Vote is one sequencer's signed stance on a block.
type Vote struct {
	BlockHash types.Hash
	Voter     types.Address
	Kind      VoteKind
	Slot      uint64
	Signature []byte
}

// SigningHash returns the digest the voter signs.
func (v *Vote) SigningHash() types.Hash {
	return types.HashBytes(v.BlockHash.Bytes(), v.Voter.Bytes(),
		[]byte{byte(v.Kind)}, uint64le(v.Slot))
}

func uint64le(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

// Consensus collects votes per block and tallies them by weight. Thresholds
// are measured against the registry's total weight, not against the weight
// of votes received.
type Consensus struct {
	mu       sync.Mutex
	registry *Registry
	log      *log.Logger

	// Consensus requires acceptWeight/totalWeight >= thresholdNum/thresholdDen,
	// compared in integers so that exactly the threshold passes.
	thresholdNum uint64
	thresholdDen uint64

	// votes[blockHash][voter]
	votes map[types.Hash]map[types.Address]*Vote
}

// NewConsensus creates a vote collector over the registry. The threshold is
// the fraction num/den of total registered weight required to accept.
func NewConsensus(registry *Registry, num, den uint64) *Consensus {
	return &Consensus{
		registry:     registry,
		log:          log.Module("consensus"),
		thresholdNum: num,
		thresholdDen: den,
		votes:        make(map[types.Hash]map[types.Address]*Vote),
	}
}

// SubmitVote records a vote. A second identical vote from the same voter is
// idempotent; a conflicting one is rejected without changing the tally.
// Votes from unregistered sequencers and votes whose signature does not
// recover the voter are rejected.
func (c *Consensus) SubmitVote(v *Vote) error {
	if _, err := c.registry.Get(v.Voter); err != nil {
		return ErrVoterNotRegistered
	}
	signer, err := crypto.RecoverAddress(v.SigningHash(), v.Signature)
	if err != nil || signer != v.Voter {
		return ErrVoteBadSignature
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	byVoter, ok := c.votes[v.BlockHash]
	if !ok {
		byVoter = make(map[types.Address]*Vote)
		c.votes[v.BlockHash] = byVoter
	}
	if prev, ok := byVoter[v.Voter]; ok {
		if prev.Kind == v.Kind && prev.Slot == v.Slot {
			return nil
		}
		return ErrVoteConflict
	}
	byVoter[v.Voter] = v
	c.log.Debug("vote recorded", "block", v.BlockHash, "voter", v.Voter,
		"vote", v.Kind.String())
	return nil
}

// AcceptWeight returns the summed weight behind ACCEPT votes for blockHash.
func (c *Consensus) AcceptWeight(blockHash types.Hash) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acceptWeightLocked(blockHash)
}

func (c *Consensus) acceptWeightLocked(blockHash types.Hash) uint64 {
	var weight uint64
	for voter, v := range c.votes[blockHash] {
		if v.Kind == VoteAccept {
			weight += c.registry.Weight(voter)
		}
	}
	return weight
}

// HasConsensus reports whether the weighted ACCEPT votes for blockHash
// reach the threshold of total registered weight. Exactly the threshold
// passes; anything below does not.
func (c *Consensus) HasConsensus(blockHash types.Hash) bool {
	total := c.registry.TotalWeight()
	if total == 0 {
		return false
	}
	c.mu.Lock()
	accept := c.acceptWeightLocked(blockHash)
	c.mu.Unlock()
	return accept*c.thresholdDen >= total*c.thresholdNum
}

// VoteCount returns how many votes have been recorded for blockHash.
func (c *Consensus) VoteCount(blockHash types.Hash) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.votes[blockHash])
}

// Prune discards the vote set of a decided block.
func (c *Consensus) Prune(blockHash types.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.votes, blockHash)
}

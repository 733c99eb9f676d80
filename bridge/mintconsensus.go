package bridge

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/crypto"
	"github.com/cascoin/cascoin-l2/log"
	"github.com/cascoin/cascoin-l2/metrics"
	"github.com/cascoin/cascoin-l2/params"
	"github.com/cascoin/cascoin-l2/sequencer"
)

var (
	ErrConfirmationDuplicate = errors.New("bridge: duplicate confirmation from sequencer")
	ErrConfirmationBadSig    = errors.New("bridge: confirmation signature invalid")
	ErrConfirmationUnknown   = errors.New("bridge: confirmation from unregistered sequencer")
	ErrMintExpired           = errors.New("bridge: mint consensus window expired")
	ErrTooFewSequencers      = errors.New("bridge: sequencer set below minimum for minting")
)

// MintConfirmation is one sequencer's signed attestation that it observed
// a specific burn.
type MintConfirmation struct {
	L1TxHash  types.Hash
	Recipient types.Address
	Amount    int64
	Sequencer types.Address
	Signature []byte
}

// SigningHash returns the digest the sequencer signs: the exact
// (l1TxHash, recipient, amount) tuple consensus must agree on.
func (c *MintConfirmation) SigningHash() types.Hash {
	var amt [8]byte
	for i := 0; i < 8; i++ {
		amt[i] = byte(uint64(c.Amount) >> (8 * i))
	}
	return types.HashBytes(c.L1TxHash.Bytes(), c.Recipient.Bytes(), amt[:])
}

type pendingMint struct {
	created time.Time
	// one confirmation per sequencer; tuple equality is checked on tally
	confirmations map[types.Address]*MintConfirmation
}

// MintConsensus collects confirmations per burn and decides when a mint is
// authorized: confirmations from sequencers whose combined weight reaches
// 2/3 of total registered weight, all agreeing on an identical tuple, with
// at least the minimum sequencer count registered, inside the timeout
// window.
type MintConsensus struct {
	mu       sync.Mutex
	registry *sequencer.Registry
	clock    clockwork.Clock
	log      *log.Logger

	timeout time.Duration
	pending map[types.Hash]*pendingMint
}

// NewMintConsensus creates a collector over the sequencer registry. clock
// is injectable for tests.
func NewMintConsensus(registry *sequencer.Registry, clock clockwork.Clock) *MintConsensus {
	return &MintConsensus{
		registry: registry,
		clock:    clock,
		log:      log.Module("bridge"),
		timeout:  params.MintConsensusTimeout * time.Second,
		pending:  make(map[types.Hash]*pendingMint),
	}
}

// SubmitConfirmation records one sequencer's confirmation for a burn. A
// second confirmation from the same sequencer for the same burn is
// rejected without affecting the tally. Returns true when this submission
// completes consensus.
func (m *MintConsensus) SubmitConfirmation(c *MintConfirmation) (bool, error) {
	if _, err := m.registry.Get(c.Sequencer); err != nil {
		return false, ErrConfirmationUnknown
	}
	signer, err := crypto.RecoverAddress(c.SigningHash(), c.Signature)
	if err != nil || signer != c.Sequencer {
		return false, ErrConfirmationBadSig
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[c.L1TxHash]
	if !ok {
		p = &pendingMint{
			created:       m.clock.Now(),
			confirmations: make(map[types.Address]*MintConfirmation),
		}
		m.pending[c.L1TxHash] = p
	}
	if m.clock.Now().Sub(p.created) > m.timeout {
		delete(m.pending, c.L1TxHash)
		return false, ErrMintExpired
	}
	if _, dup := p.confirmations[c.Sequencer]; dup {
		return false, ErrConfirmationDuplicate
	}
	p.confirmations[c.Sequencer] = c

	reached, err := m.consensusLocked(p)
	if err != nil {
		return false, err
	}
	if reached {
		metrics.MintConsensusTime.Observe(m.clock.Now().Sub(p.created).Seconds())
		m.log.Info("mint consensus reached", "l1tx", c.L1TxHash,
			"confirmations", len(p.confirmations))
	}
	return reached, nil
}

// HasConsensus reports whether the burn currently has an authorizing
// confirmation set.
func (m *MintConsensus) HasConsensus(l1TxHash types.Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[l1TxHash]
	if !ok {
		return false
	}
	reached, err := m.consensusLocked(p)
	return err == nil && reached
}

// consensusLocked tallies the weight behind the majority tuple. Only
// confirmations matching that exact tuple count.
func (m *MintConsensus) consensusLocked(p *pendingMint) (bool, error) {
	if m.registry.Len() < params.MinMintSequencers {
		return false, ErrTooFewSequencers
	}
	total := m.registry.TotalWeight()
	if total == 0 {
		return false, nil
	}

	// Weight per distinct tuple; the signature binds each confirmation to
	// its tuple, so the signing hash identifies it.
	byTuple := make(map[types.Hash]uint64)
	for seq, c := range p.confirmations {
		byTuple[c.SigningHash()] += m.registry.Weight(seq)
	}
	for _, weight := range byTuple {
		if weight*params.MintThresholdDenominator >= total*params.MintThresholdNumerator {
			return true, nil
		}
	}
	return false, nil
}

// AgreedTuple returns the tuple that reached consensus for l1TxHash.
func (m *MintConsensus) AgreedTuple(l1TxHash types.Hash) (*MintConfirmation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[l1TxHash]
	if !ok {
		return nil, false
	}
	total := m.registry.TotalWeight()
	if total == 0 || m.registry.Len() < params.MinMintSequencers {
		return nil, false
	}
	byTuple := make(map[types.Hash]uint64)
	for seq, c := range p.confirmations {
		byTuple[c.SigningHash()] += m.registry.Weight(seq)
	}
	for tuple, weight := range byTuple {
		if weight*params.MintThresholdDenominator >= total*params.MintThresholdNumerator {
			for _, c := range p.confirmations {
				if c.SigningHash() == tuple {
					cp := *c
					return &cp, true
				}
			}
		}
	}
	return nil, false
}

// ExpirePending drops pending mints older than the timeout and returns
// how many were dropped.
func (m *MintConsensus) ExpirePending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	dropped := 0
	for hash, p := range m.pending {
		if now.Sub(p.created) > m.timeout {
			delete(m.pending, hash)
			dropped++
		}
	}
	return dropped
}

// Finish discards the pending state of a decided burn.
func (m *MintConsensus) Finish(l1TxHash types.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, l1TxHash)
}

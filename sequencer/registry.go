// Package sequencer implements the sequencer registry, deterministic
// weighted leader election, and the weighted vote consensus over proposed
// blocks.
package sequencer

import (
	"errors"
	"sort"
	"sync"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/log"
	"github.com/cascoin/cascoin-l2/params"
)

var (
	ErrUnknownSequencer = errors.New("sequencer: unknown sequencer")
	ErrBadPubKey        = errors.New("sequencer: public key must be 33 bytes compressed")
)

// Info describes one registered sequencer. Stake and HAT score are
// verified externally; this package only consumes them.
type Info struct {
	Address   types.Address
	PubKey    []byte // 33-byte compressed secp256k1 key
	Stake     int64
	HATScore  uint32
	PeerCount int
	Eligible  bool
}

// Weight returns the election weight: HAT score times the integer square
// root of the stake in whole coins. A well-connected, reputable sequencer
// with little stake and a rich sequencer with no reputation both end up
// with low weight.
func (s *Info) Weight() uint64 {
	stakeCoins := uint64(s.Stake / params.Coin)
	sqrt := uint64(1)
	if stakeCoins > 0 {
		for sqrt*sqrt < stakeCoins {
			sqrt++
		}
	}
	return uint64(s.HATScore) * sqrt
}

// MeetsMinimums reports whether the sequencer clears the network's stake,
// reputation, and connectivity floors.
func (s *Info) MeetsMinimums(cfg *params.L2Params) bool {
	return s.Stake >= cfg.MinSequencerStake &&
		s.HATScore >= cfg.MinSequencerHATScore &&
		s.PeerCount >= cfg.MinSequencerPeerCount
}

// Copy returns a deep copy of the info.
func (s *Info) Copy() *Info {
	cp := *s
	cp.PubKey = append([]byte(nil), s.PubKey...)
	return &cp
}

// Registry tracks known sequencers. Reads return copies; election and
// tallying operate on immutable snapshots taken under the lock.
type Registry struct {
	mu         sync.RWMutex
	cfg        *params.L2Params
	log        *log.Logger
	sequencers map[types.Address]*Info
}

// NewRegistry creates an empty registry for the network cfg.
func NewRegistry(cfg *params.L2Params) *Registry {
	return &Registry{
		cfg:        cfg,
		log:        log.Module("sequencer"),
		sequencers: make(map[types.Address]*Info),
	}
}

// Register adds or replaces a sequencer entry, recomputing eligibility
// from the network minimums.
func (r *Registry) Register(info *Info) error {
	if len(info.PubKey) != 33 {
		return ErrBadPubKey
	}
	cp := info.Copy()
	cp.Eligible = cp.MeetsMinimums(r.cfg)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sequencers[cp.Address] = cp
	r.log.Debug("sequencer registered", "address", cp.Address,
		"weight", cp.Weight(), "eligible", cp.Eligible)
	return nil
}

// Remove drops a sequencer from the registry.
func (r *Registry) Remove(addr types.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sequencers, addr)
}

// Get returns a copy of the entry for addr.
func (r *Registry) Get(addr types.Address) (*Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.sequencers[addr]
	if !ok {
		return nil, ErrUnknownSequencer
	}
	return info.Copy(), nil
}

// Weight returns the election weight of addr, zero if unknown.
func (r *Registry) Weight(addr types.Address) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.sequencers[addr]
	if !ok {
		return 0
	}
	return info.Weight()
}

// Len returns the number of registered sequencers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sequencers)
}

// TotalWeight sums the weight of every registered sequencer. Consensus
// thresholds are measured against this, so silent non-voters count against
// a proposal, never for it.
func (r *Registry) TotalWeight() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total uint64
	for _, info := range r.sequencers {
		total += info.Weight()
	}
	return total
}

// Eligible returns copies of every eligible sequencer, sorted by address
// for a canonical ordering shared by all nodes.
func (r *Registry) Eligible() []*Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Info, 0, len(r.sequencers))
	for _, info := range r.sequencers {
		if info.Eligible {
			out = append(out, info.Copy())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return addressLess(out[i].Address, out[j].Address)
	})
	return out
}

func addressLess(a, b types.Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

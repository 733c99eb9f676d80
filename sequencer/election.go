package sequencer

import (
	"encoding/binary"
	"errors"
	"sort"

	"github.com/holiman/uint256"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/params"
)

// electionSeedTag versions the seed derivation; changing the derivation
// requires a new tag.
const electionSeedTag = "CASCOIN_L2_ELECTION_SEED_V1"

var ErrNoEligibleSequencers = errors.New("sequencer: no eligible sequencers")

// ElectionResult is the outcome of leader election for one slot. Backups
// are ordered for deterministic failover: if the leader misses its window,
// Backups[0] takes the slot, then Backups[1], and so on.
type ElectionResult struct {
	Slot    uint64
	Seed    types.Hash
	Leader  types.Address
	Backups []types.Address
}

// ElectionSeed derives the deterministic election seed for a slot from the
// slot number, an agreed L1 block hash, and the chain id. The seed is
// unpredictable before the L1 block exists and fixed once it does.
func ElectionSeed(slot uint64, l1Hash types.Hash, chainID uint64) types.Hash {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], slot)
	binary.LittleEndian.PutUint64(buf[8:], chainID)
	return types.HashBytes(buf[:8], l1Hash.Bytes(), buf[8:], []byte(electionSeedTag))
}

// Elect picks the leader and failover order for a slot. It is a pure
// function of (slot, seed, eligible set): every node computes the same
// result without communication.
//
// Selection is weighted: the seed picks a point in [0, totalWeight) and
// the leader is the sequencer whose cumulative weight interval contains
// it. If every weight is zero, selection falls back to uniform. Backups
// are the remaining sequencers sorted by weight descending (address
// ascending on ties), capped.
func Elect(slot uint64, seed types.Hash, eligible []*Info) (*ElectionResult, error) {
	if len(eligible) == 0 {
		return nil, ErrNoEligibleSequencers
	}

	// Canonical input order regardless of how the caller built the slice.
	sorted := make([]*Info, len(eligible))
	copy(sorted, eligible)
	sort.Slice(sorted, func(i, j int) bool {
		return addressLess(sorted[i].Address, sorted[j].Address)
	})

	result := &ElectionResult{Slot: slot, Seed: seed}
	result.Leader = weightedSelect(sorted, seed)

	byWeight := make([]*Info, len(sorted))
	copy(byWeight, sorted)
	sort.Slice(byWeight, func(i, j int) bool {
		wi, wj := byWeight[i].Weight(), byWeight[j].Weight()
		if wi != wj {
			return wi > wj
		}
		return addressLess(byWeight[i].Address, byWeight[j].Address)
	})
	for _, s := range byWeight {
		if s.Address == result.Leader {
			continue
		}
		result.Backups = append(result.Backups, s.Address)
		if len(result.Backups) >= params.MaxBackupSequencers {
			break
		}
	}
	return result, nil
}

// weightedSelect maps the seed onto the cumulative weight line of the
// address-sorted sequencer set.
func weightedSelect(sorted []*Info, seed types.Hash) types.Address {
	var total uint64
	for _, s := range sorted {
		total += s.Weight()
	}

	r := new(uint256.Int).SetBytes(seed.Bytes())
	if total == 0 {
		// Uniform fallback when all weights are zero.
		idx := new(uint256.Int).Mod(r, uint256.NewInt(uint64(len(sorted)))).Uint64()
		return sorted[idx].Address
	}

	point := new(uint256.Int).Mod(r, uint256.NewInt(total)).Uint64()
	var cumulative uint64
	for _, s := range sorted {
		cumulative += s.Weight()
		if point < cumulative {
			return s.Address
		}
	}
	return sorted[len(sorted)-1].Address
}

// ProposerForSlot combines seed derivation and election against the
// registry's current eligible set.
func (r *Registry) ProposerForSlot(slot uint64, l1Hash types.Hash) (*ElectionResult, error) {
	return Elect(slot, ElectionSeed(slot, l1Hash, r.cfg.ChainID), r.Eligible())
}

package bridge

import (
	"errors"
	"sync"

	"github.com/cascoin/cascoin-l2/core/types"
)

var ErrBurnAlreadyProcessed = errors.New("bridge: burn already processed")

// BurnRecord is one observed burn and its processing state.
type BurnRecord struct {
	L1TxHash    types.Hash
	L1Block     uint64
	L1BlockHash types.Hash
	Recipient   types.Address
	Amount      int64
	Processed   bool
	L2Block     uint64 // block the mint landed in, once processed
}

// BurnRegistry tracks observed burns and which of them have been minted.
// It is the exactly-once guard for the minter.
type BurnRegistry struct {
	mu          sync.Mutex
	records     map[types.Hash]*BurnRecord
	byBlock     map[uint64][]types.Hash
	byRecipient map[types.Address][]types.Hash
	burnedTotal int64
}

// NewBurnRegistry creates an empty registry.
func NewBurnRegistry() *BurnRegistry {
	return &BurnRegistry{
		records:     make(map[types.Hash]*BurnRecord),
		byBlock:     make(map[uint64][]types.Hash),
		byRecipient: make(map[types.Address][]types.Hash),
	}
}

// Record registers an observed burn. Re-recording the same burn is a
// no-op that keeps the existing processing state.
func (r *BurnRegistry) Record(rec *BurnRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.L1TxHash]; ok {
		return
	}
	cp := *rec
	r.records[rec.L1TxHash] = &cp
	r.byBlock[rec.L1Block] = append(r.byBlock[rec.L1Block], rec.L1TxHash)
	r.byRecipient[rec.Recipient] = append(r.byRecipient[rec.Recipient], rec.L1TxHash)
	r.burnedTotal += rec.Amount
}

// IsProcessed reports whether the burn behind l1TxHash has been minted.
func (r *BurnRegistry) IsProcessed(l1TxHash types.Hash) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[l1TxHash]
	return ok && rec.Processed
}

// Get returns a copy of the record for l1TxHash.
func (r *BurnRegistry) Get(l1TxHash types.Hash) (*BurnRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[l1TxHash]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

// BurnsFor returns copies of every burn recorded for recipient, in the
// order they were observed.
func (r *BurnRegistry) BurnsFor(recipient types.Address) []*BurnRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	hashes := r.byRecipient[recipient]
	if len(hashes) == 0 {
		return nil
	}
	out := make([]*BurnRecord, 0, len(hashes))
	for _, h := range hashes {
		if rec, ok := r.records[h]; ok {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out
}

// TotalBurned returns the sum of all tracked burn amounts. Records dropped
// by an L1 reorg no longer count.
func (r *BurnRegistry) TotalBurned() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.burnedTotal
}

// markProcessed flips the record to processed. It fails if the burn is
// unknown or already processed; the caller holds no other lock, so this
// is the atomic exactly-once gate.
func (r *BurnRegistry) markProcessed(l1TxHash types.Hash, l2Block uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[l1TxHash]
	if !ok {
		return ErrBurnUnknown
	}
	if rec.Processed {
		return ErrBurnAlreadyProcessed
	}
	rec.Processed = true
	rec.L2Block = l2Block
	return nil
}

// unmarkProcessed reverts a processed flag after a failed mint commit.
func (r *BurnRegistry) unmarkProcessed(l1TxHash types.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[l1TxHash]; ok {
		rec.Processed = false
		rec.L2Block = 0
	}
}

// HandleReorg drops unprocessed burn records at or above the reorged L1
// height. Processed burns are kept: their mints are handled by L2 reorg
// recovery, not by forgetting the burn.
func (r *BurnRegistry) HandleReorg(fromL1Block uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for block, hashes := range r.byBlock {
		if block < fromL1Block {
			continue
		}
		kept := hashes[:0]
		for _, h := range hashes {
			rec := r.records[h]
			if rec != nil && !rec.Processed {
				delete(r.records, h)
				r.dropRecipientIndexLocked(rec.Recipient, h)
				r.burnedTotal -= rec.Amount
				dropped++
			} else {
				kept = append(kept, h)
			}
		}
		if len(kept) == 0 {
			delete(r.byBlock, block)
		} else {
			r.byBlock[block] = kept
		}
	}
	return dropped
}

func (r *BurnRegistry) dropRecipientIndexLocked(recipient types.Address, h types.Hash) {
	hashes := r.byRecipient[recipient]
	for i, cur := range hashes {
		if cur == h {
			hashes = append(hashes[:i], hashes[i+1:]...)
			break
		}
	}
	if len(hashes) == 0 {
		delete(r.byRecipient, recipient)
	} else {
		r.byRecipient[recipient] = hashes
	}
}

// Len returns the number of tracked burns.
func (r *BurnRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

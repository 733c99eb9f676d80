package reorg

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/log"
	"github.com/cascoin/cascoin-l2/params"
	"github.com/cascoin/cascoin-l2/state"
)

var ErrReorgUnrecoverable = errors.New("reorg: no shared anchor inside recovery window")

// LoggedTx is one entry of the replay log: an L2 transaction together
// with the L2 block it was applied in.
type LoggedTx struct {
	L2Block uint64
	Tx      *types.Transaction
}

// Recovery reverts L2 state after an L1 reorg and replays the
// transactions that were applied after the last shared anchor. It keeps a
// bounded log of recently applied transactions for that purpose.
type Recovery struct {
	mu      sync.Mutex
	log     *log.Logger
	monitor *Monitor
	state   *state.Manager

	txLog []LoggedTx
}

// NewRecovery wires a recovery manager to a monitor and a state manager.
func NewRecovery(monitor *Monitor, st *state.Manager) *Recovery {
	return &Recovery{
		log:     log.Module("reorg"),
		monitor: monitor,
		state:   st,
	}
}

// LogTransaction records an applied transaction for later replay. Entries
// beyond the log capacity evict the oldest first.
func (r *Recovery) LogTransaction(l2Block uint64, tx *types.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txLog = append(r.txLog, LoggedTx{L2Block: l2Block, Tx: tx})
	if len(r.txLog) > params.TxLogCapacity {
		r.txLog = r.txLog[len(r.txLog)-params.TxLogCapacity:]
	}
}

// LogLen reports the number of retained replay entries.
func (r *Recovery) LogLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.txLog)
}

// Result summarizes a completed recovery.
type Result struct {
	Anchor   *AnchorPoint
	Replayed int
	Skipped  int
	NewRoot  types.Hash
}

// Recover handles a detected L1 reorg: it locates the last anchor shared
// with the surviving chain, reverts L2 state to that anchor's root, and
// replays the logged transactions from blocks after the anchor in their
// original order. Transactions that no longer apply on the reverted state
// are skipped and counted, matching at-most-once semantics across the
// reorg. A reorg deeper than the retained window is unrecoverable and
// must halt the node.
func (r *Recovery) Recover(ev *Event) (*Result, error) {
	if ev.Depth > params.MaxReorgDepth {
		return nil, ErrReorgUnrecoverable
	}
	anchor, ok := r.monitor.LastSharedAnchor(ev.ForkHeight)
	if !ok {
		return nil, ErrReorgUnrecoverable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.state.RevertToStateRoot(anchor.L2StateRoot); err != nil {
		return nil, fmt.Errorf("reorg: revert to anchor %d: %w", anchor.L2Block, err)
	}

	res := &Result{Anchor: anchor}
	kept := r.txLog[:0]
	for _, entry := range r.txLog {
		if entry.L2Block <= anchor.L2Block {
			kept = append(kept, entry)
			continue
		}
		if _, err := r.state.ApplyTransaction(entry.Tx, entry.L2Block); err != nil {
			r.log.Warn("skipping transaction during reorg replay",
				"block", entry.L2Block, "tx", entry.Tx.Hash(), "err", err)
			res.Skipped++
			continue
		}
		kept = append(kept, entry)
		res.Replayed++
	}
	r.txLog = kept
	res.NewRoot = r.state.Root()

	r.log.Info("reorg recovery complete",
		"anchorL1", anchor.L1Block, "anchorL2", anchor.L2Block,
		"replayed", res.Replayed, "skipped", res.Skipped, "root", res.NewRoot)
	return res, nil
}

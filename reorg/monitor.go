// Package reorg tracks the L1 anchor chain, detects L1 reorganizations,
// and recovers L2 state by reverting to the last shared anchor and
// replaying the transactions anchored after the divergence point.
package reorg

import (
	"errors"
	"sync"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/log"
	"github.com/cascoin/cascoin-l2/params"
)

var (
	ErrUnknownParent = errors.New("reorg: header parent not in tracked window")
	ErrStaleHeader   = errors.New("reorg: header below tracked window")
)

// L1Header is the slice of an L1 block header the monitor consumes.
type L1Header struct {
	Number     uint64
	Hash       types.Hash
	ParentHash types.Hash
	Timestamp  uint64
}

// AnchorPoint joins an L1 block to the L2 state that was anchored in it.
type AnchorPoint struct {
	L1Block     uint64
	L1Hash      types.Hash
	L2Block     uint64
	L2StateRoot types.Hash
	BatchHash   types.Hash
	Finalized   bool
}

// Event describes a detected L1 reorganization.
type Event struct {
	// ForkHeight is the first L1 height whose tracked block was replaced.
	ForkHeight uint64
	// Depth is how many tracked blocks were replaced.
	Depth uint64
	// NewTip is the replacing header.
	NewTip *L1Header
}

// Monitor keeps a rolling window of L1 headers keyed by height and the
// anchor chain built on them.
type Monitor struct {
	mu  sync.Mutex
	cfg *params.L2Params
	log *log.Logger

	headers map[uint64]*L1Header
	tip     uint64
	started bool

	anchors []*AnchorPoint
}

// NewMonitor creates a monitor for the network cfg.
func NewMonitor(cfg *params.L2Params) *Monitor {
	return &Monitor{
		cfg:     cfg,
		log:     log.Module("reorg"),
		headers: make(map[uint64]*L1Header),
	}
}

// ProcessHeader feeds one L1 header into the window. A header extending
// the tip returns (nil, nil). A header that replaces tracked history
// returns a reorg event. Headers whose parent cannot be connected inside
// the retained window are fatal for recovery.
func (m *Monitor) ProcessHeader(h *L1Header) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		m.headers[h.Number] = h
		m.tip = h.Number
		m.started = true
		return nil, nil
	}

	lowest := m.lowestTracked()
	if h.Number <= lowest {
		return nil, ErrStaleHeader
	}

	parent, ok := m.headers[h.Number-1]
	if !ok || parent.Hash != h.ParentHash {
		return nil, ErrUnknownParent
	}

	// Plain extension of the tracked tip.
	if h.Number == m.tip+1 {
		m.headers[h.Number] = h
		m.tip = h.Number
		m.pruneLocked()
		return nil, nil
	}

	// The header connects below the tip: everything tracked at and above
	// its height is being replaced.
	if existing := m.headers[h.Number]; existing != nil && existing.Hash == h.Hash {
		return nil, nil // duplicate of tracked history
	}
	depth := m.tip - h.Number + 1
	for n := h.Number; n <= m.tip; n++ {
		delete(m.headers, n)
	}
	m.headers[h.Number] = h
	m.tip = h.Number
	m.log.Warn("L1 reorg detected", "fork", h.Number, "depth", depth)
	return &Event{ForkHeight: h.Number, Depth: depth, NewTip: h}, nil
}

// Tip returns the tracked tip header.
func (m *Monitor) Tip() (*L1Header, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil, false
	}
	return m.headers[m.tip], true
}

// RecordAnchor appends an anchor point joining the current L1 chain to an
// L2 state root.
func (m *Monitor) RecordAnchor(a *AnchorPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.anchors = append(m.anchors, &cp)
	// Keep the anchor list bounded alongside the header window.
	keep := params.MaxReorgDepth / params.AnchorInterval * 2
	if keep > 0 && len(m.anchors) > keep {
		m.anchors = m.anchors[len(m.anchors)-keep:]
	}
}

// LastSharedAnchor returns the most recent anchor strictly below the fork
// height, the join point recovery reverts to.
func (m *Monitor) LastSharedAnchor(forkHeight uint64) (*AnchorPoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.anchors) - 1; i >= 0; i-- {
		if m.anchors[i].L1Block < forkHeight {
			cp := *m.anchors[i]
			return &cp, true
		}
	}
	return nil, false
}

// Anchors returns a copy of the tracked anchor chain.
func (m *Monitor) Anchors() []*AnchorPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*AnchorPoint, len(m.anchors))
	for i, a := range m.anchors {
		cp := *a
		out[i] = &cp
	}
	return out
}

// FinalizeAnchors marks anchors buried deeper than the finality depth
// below the tracked tip.
func (m *Monitor) FinalizeAnchors() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return 0
	}
	finalized := 0
	for _, a := range m.anchors {
		if !a.Finalized && a.L1Block+m.cfg.FinalityDepth <= m.tip {
			a.Finalized = true
			finalized++
		}
	}
	return finalized
}

func (m *Monitor) lowestTracked() uint64 {
	if m.tip >= params.MaxReorgDepth {
		return m.tip - params.MaxReorgDepth
	}
	return 0
}

func (m *Monitor) pruneLocked() {
	lowest := m.lowestTracked()
	for n := range m.headers {
		if n < lowest {
			delete(m.headers, n)
		}
	}
}

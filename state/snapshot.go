package state

import (
	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/params"
	"github.com/cascoin/cascoin-l2/smt"
)

// stateCapture holds everything restoreLocked needs to roll back.
type stateCapture struct {
	tree    *smt.Tree
	storage map[types.Address]*smt.Tree
	code    map[types.Hash][]byte

	mintedTotal    int64
	burnedTotal    int64
	depositTotal   int64
	withdrawnTotal int64
}

func (m *Manager) captureLocked() *stateCapture {
	c := &stateCapture{
		tree:           m.tree.Copy(),
		storage:        make(map[types.Address]*smt.Tree, len(m.storage)),
		code:           make(map[types.Hash][]byte, len(m.code)),
		mintedTotal:    m.mintedTotal,
		burnedTotal:    m.burnedTotal,
		depositTotal:   m.depositTotal,
		withdrawnTotal: m.withdrawnTotal,
	}
	for a, t := range m.storage {
		c.storage[a] = t.Copy()
	}
	for h, code := range m.code {
		c.code[h] = code
	}
	return c
}

func (m *Manager) restoreLocked(c *stateCapture) {
	m.tree = c.tree
	m.storage = c.storage
	m.code = c.code
	m.mintedTotal = c.mintedTotal
	m.burnedTotal = c.burnedTotal
	m.depositTotal = c.depositTotal
	m.withdrawnTotal = c.withdrawnTotal
}

// CreateSnapshot stores a deep copy of the current state keyed by its root.
// Retention is bounded: once the cap is reached the oldest snapshot is
// evicted.
func (m *Manager) CreateSnapshot(blockNumber uint64, l1Anchor types.Hash) types.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()

	root := m.tree.Root()
	if _, ok := m.snapshots[root]; ok {
		return root
	}

	snap := &Snapshot{
		Root:           root,
		BlockNumber:    blockNumber,
		L1Anchor:       l1Anchor,
		tree:           m.tree.Copy(),
		storage:        make(map[types.Address]*smt.Tree, len(m.storage)),
		code:           make(map[types.Hash][]byte, len(m.code)),
		mintedTotal:    m.mintedTotal,
		burnedTotal:    m.burnedTotal,
		depositTotal:   m.depositTotal,
		withdrawnTotal: m.withdrawnTotal,
	}
	for a, t := range m.storage {
		snap.storage[a] = t.Copy()
	}
	for h, code := range m.code {
		snap.code[h] = code
	}

	m.snapshots[root] = snap
	m.snapshotOrder = append(m.snapshotOrder, root)
	if len(m.snapshotOrder) > params.MaxSnapshots {
		oldest := m.snapshotOrder[0]
		m.snapshotOrder = m.snapshotOrder[1:]
		delete(m.snapshots, oldest)
		m.log.Debug("evicted oldest snapshot", "root", oldest)
	}
	m.log.Debug("snapshot created", "root", root, "block", blockNumber,
		"retained", len(m.snapshotOrder))
	return root
}

// HasSnapshot reports whether a snapshot exists for root.
func (m *Manager) HasSnapshot(root types.Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.snapshots[root]
	return ok
}

// SnapshotCount returns the number of retained snapshots.
func (m *Manager) SnapshotCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

// SnapshotInfo returns the metadata of the snapshot at root.
func (m *Manager) SnapshotInfo(root types.Hash) (blockNumber uint64, l1Anchor types.Hash, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[root]
	if !ok {
		return 0, types.Hash{}, false
	}
	return snap.BlockNumber, snap.L1Anchor, true
}

// RevertToStateRoot replaces the live state with the snapshot at root. It
// fails if no snapshot exists, and re-verifies that the restored tree
// hashes back to the requested root.
func (m *Manager) RevertToStateRoot(root types.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.snapshots[root]
	if !ok {
		return ErrSnapshotNotFound
	}

	tree := snap.tree.Copy()
	if got := tree.Root(); got != root {
		return ErrRootMismatch
	}
	m.tree = tree
	m.storage = make(map[types.Address]*smt.Tree, len(snap.storage))
	for a, t := range snap.storage {
		m.storage[a] = t.Copy()
	}
	m.code = make(map[types.Hash][]byte, len(snap.code))
	for h, code := range snap.code {
		m.code[h] = code
	}
	m.mintedTotal = snap.mintedTotal
	m.burnedTotal = snap.burnedTotal
	m.depositTotal = snap.depositTotal
	m.withdrawnTotal = snap.withdrawnTotal
	m.log.Info("state reverted", "root", root, "block", snap.BlockNumber)
	return nil
}

// StateAt returns a detached manager seeded from the snapshot at root,
// used for block re-execution and fraud-proof verification. The detached
// manager shares nothing mutable with the live one.
func (m *Manager) StateAt(root types.Hash) (*Manager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.snapshots[root]
	if !ok {
		return nil, ErrSnapshotNotFound
	}

	d := NewManager(m.cfg, nil)
	d.tree = snap.tree.Copy()
	for a, t := range snap.storage {
		d.storage[a] = t.Copy()
	}
	for h, code := range snap.code {
		d.code[h] = code
	}
	d.feeCollector = m.feeCollector
	d.mintedTotal = snap.mintedTotal
	d.burnedTotal = snap.burnedTotal
	d.depositTotal = snap.depositTotal
	d.withdrawnTotal = snap.withdrawnTotal
	return d, nil
}

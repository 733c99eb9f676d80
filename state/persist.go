package state

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/kvstore"
	"github.com/cascoin/cascoin-l2/smt"
)

var snapshotKeyPrefix = []byte("snapshot/")

type persistedLeaf struct {
	Key   types.Hash
	Value []byte
}

type persistedStorage struct {
	Address types.Address
	Leaves  []persistedLeaf
}

type persistedCode struct {
	Hash types.Hash
	Code []byte
}

type persistedSnapshot struct {
	Root        types.Hash
	BlockNumber uint64
	L1Anchor    types.Hash
	Accounts    []persistedLeaf
	Storage     []persistedStorage
	Code        []persistedCode

	// Supply counters, never negative, stored unsigned for RLP.
	Minted    uint64
	Burned    uint64
	Deposited uint64
	Withdrawn uint64
}

func snapshotKey(root types.Hash) []byte {
	return append(append([]byte(nil), snapshotKeyPrefix...), root.Bytes()...)
}

func sortedLeaves(m map[types.Hash][]byte) []persistedLeaf {
	out := make([]persistedLeaf, 0, len(m))
	for k, v := range m {
		out = append(out, persistedLeaf{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Key.Bytes(), out[j].Key.Bytes()) < 0
	})
	return out
}

// PersistSnapshot writes the snapshot at root to the backing store. It
// fails if the manager has no store or no snapshot for root.
func (m *Manager) PersistSnapshot(root types.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store == nil {
		return kvstore.ErrClosed
	}
	snap, ok := m.snapshots[root]
	if !ok {
		return ErrSnapshotNotFound
	}

	p := &persistedSnapshot{
		Root:        snap.Root,
		BlockNumber: snap.BlockNumber,
		L1Anchor:    snap.L1Anchor,
		Accounts:    sortedLeaves(snap.tree.Leaves()),
		Minted:      uint64(snap.mintedTotal),
		Burned:      uint64(snap.burnedTotal),
		Deposited:   uint64(snap.depositTotal),
		Withdrawn:   uint64(snap.withdrawnTotal),
	}
	addrs := make([]types.Address, 0, len(snap.storage))
	for a := range snap.storage {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i].Bytes(), addrs[j].Bytes()) < 0
	})
	for _, a := range addrs {
		p.Storage = append(p.Storage, persistedStorage{
			Address: a,
			Leaves:  sortedLeaves(snap.storage[a].Leaves()),
		})
	}
	hashes := make([]types.Hash, 0, len(snap.code))
	for h := range snap.code {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i].Bytes(), hashes[j].Bytes()) < 0
	})
	for _, h := range hashes {
		p.Code = append(p.Code, persistedCode{Hash: h, Code: snap.code[h]})
	}

	enc, err := rlp.EncodeToBytes(p)
	if err != nil {
		return err
	}
	return m.store.Put(snapshotKey(root), enc)
}

// LoadSnapshot reads a previously persisted snapshot back into the
// retained set, verifying that the rebuilt tree hashes to root.
func (m *Manager) LoadSnapshot(root types.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store == nil {
		return kvstore.ErrClosed
	}
	if _, ok := m.snapshots[root]; ok {
		return nil
	}

	enc, err := m.store.Get(snapshotKey(root))
	if err != nil {
		return err
	}
	var p persistedSnapshot
	if err := rlp.DecodeBytes(enc, &p); err != nil {
		return err
	}

	tree := smt.New()
	for _, leaf := range p.Accounts {
		if err := tree.Update(leaf.Key, leaf.Value); err != nil {
			return err
		}
	}
	if got := tree.Root(); got != root {
		return ErrRootMismatch
	}

	snap := &Snapshot{
		Root:           p.Root,
		BlockNumber:    p.BlockNumber,
		L1Anchor:       p.L1Anchor,
		tree:           tree,
		storage:        make(map[types.Address]*smt.Tree, len(p.Storage)),
		code:           make(map[types.Hash][]byte, len(p.Code)),
		mintedTotal:    int64(p.Minted),
		burnedTotal:    int64(p.Burned),
		depositTotal:   int64(p.Deposited),
		withdrawnTotal: int64(p.Withdrawn),
	}
	for _, st := range p.Storage {
		t := smt.New()
		for _, leaf := range st.Leaves {
			if err := t.Update(leaf.Key, leaf.Value); err != nil {
				return err
			}
		}
		snap.storage[st.Address] = t
	}
	for _, c := range p.Code {
		snap.code[c.Hash] = c.Code
	}

	m.snapshots[root] = snap
	m.snapshotOrder = append(m.snapshotOrder, root)
	return nil
}

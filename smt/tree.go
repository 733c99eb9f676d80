// Package smt implements the sparse Merkle tree that authenticates L2
// state. Keys are 32-byte digests addressed bit by bit from the most
// significant bit; empty subtrees collapse to precomputed default hashes,
// so the root over any subset of the 2^256 key space is well defined.
package smt

import (
	"errors"
	"sync"

	"github.com/cascoin/cascoin-l2/core/types"
)

// TreeDepth is the number of bit levels between the root and the leaves.
const TreeDepth = 256

var (
	ErrEmptyValue = errors.New("smt: empty value, use Delete")
)

// defaultHashes[h] is the hash of an empty subtree of height h, so
// defaultHashes[TreeDepth] is the root of an empty tree.
var defaultHashes [TreeDepth + 1]types.Hash

func init() {
	defaultHashes[0] = types.HashBytes(nil)
	for h := 1; h <= TreeDepth; h++ {
		defaultHashes[h] = types.HashBytes(
			defaultHashes[h-1].Bytes(), defaultHashes[h-1].Bytes())
	}
}

// EmptyRoot returns the root hash of a tree with no leaves.
func EmptyRoot() types.Hash {
	return defaultHashes[TreeDepth]
}

// leafHash commits to both the key and the value, so a leaf cannot be
// replayed under a different key.
func leafHash(key types.Hash, value []byte) types.Hash {
	return types.HashBytes(key.Bytes(), value)
}

// keyBit returns bit i of key, counting from the most significant bit.
func keyBit(key types.Hash, i int) byte {
	return (key[i/8] >> (7 - uint(i%8))) & 1
}

// Tree is a sparse Merkle tree over 32-byte keys. Safe for concurrent use.
type Tree struct {
	mu     sync.RWMutex
	leaves map[types.Hash][]byte

	root      types.Hash
	rootValid bool
}

// New creates an empty tree.
func New() *Tree {
	return &Tree{leaves: make(map[types.Hash][]byte)}
}

// Get returns the value stored under key.
func (t *Tree) Get(key types.Hash) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.leaves[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

// Update stores value under key. The value must be non-empty; absence is
// modelled by Delete so that every stored leaf has a distinct hash from
// the empty-subtree default.
func (t *Tree) Update(key types.Hash, value []byte) error {
	if len(value) == 0 {
		return ErrEmptyValue
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.leaves[key] = append([]byte(nil), value...)
	t.rootValid = false
	return nil
}

// Delete removes the leaf under key. Deleting an absent key is a no-op.
func (t *Tree) Delete(key types.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.leaves[key]; !ok {
		return
	}
	delete(t.leaves, key)
	t.rootValid = false
}

// Len returns the number of stored leaves.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.leaves)
}

// Root returns the current root hash. The root is cached between writes.
func (t *Tree) Root() types.Hash {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rootLocked()
}

func (t *Tree) rootLocked() types.Hash {
	if !t.rootValid {
		keys := make([]types.Hash, 0, len(t.leaves))
		for k := range t.leaves {
			keys = append(keys, k)
		}
		t.root = t.subtreeHash(keys, 0)
		t.rootValid = true
	}
	return t.root
}

// subtreeHash computes the hash of the subtree at the given depth holding
// exactly the listed keys.
func (t *Tree) subtreeHash(keys []types.Hash, depth int) types.Hash {
	if len(keys) == 0 {
		return defaultHashes[TreeDepth-depth]
	}
	if depth == TreeDepth {
		// Keys are distinct 256-bit values, so exactly one remains here.
		return leafHash(keys[0], t.leaves[keys[0]])
	}
	left, right := partition(keys, depth)
	return types.HashBytes(
		t.subtreeHash(left, depth+1).Bytes(),
		t.subtreeHash(right, depth+1).Bytes())
}

// partition splits keys by their bit at the given depth.
func partition(keys []types.Hash, depth int) (left, right []types.Hash) {
	for _, k := range keys {
		if keyBit(k, depth) == 0 {
			left = append(left, k)
		} else {
			right = append(right, k)
		}
	}
	return left, right
}

// Copy returns an independent deep copy sharing no mutable state with t.
func (t *Tree) Copy() *Tree {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cp := &Tree{
		leaves:    make(map[types.Hash][]byte, len(t.leaves)),
		root:      t.root,
		rootValid: t.rootValid,
	}
	for k, v := range t.leaves {
		cp.leaves[k] = append([]byte(nil), v...)
	}
	return cp
}

// Leaves returns a copy of every stored key/value pair. Used when
// persisting snapshots.
func (t *Tree) Leaves() map[types.Hash][]byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[types.Hash][]byte, len(t.leaves))
	for k, v := range t.leaves {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

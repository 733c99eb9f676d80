package smt

import (
	"github.com/cascoin/cascoin-l2/core/types"
)

// Proof authenticates the presence or absence of a key against a root.
// Siblings[i] is the sibling hash at depth i, topmost first.
type Proof struct {
	Key      types.Hash
	Value    []byte // nil for an exclusion proof
	Siblings [TreeDepth]types.Hash
}

// Exists reports whether the proof asserts the key is present.
func (p *Proof) Exists() bool { return p.Value != nil }

// Prove builds a proof for key against the current tree contents. If the
// key is absent the proof demonstrates exclusion.
func (t *Tree) Prove(key types.Hash) *Proof {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p := &Proof{Key: key}
	if v, ok := t.leaves[key]; ok {
		p.Value = append([]byte(nil), v...)
	}

	keys := make([]types.Hash, 0, len(t.leaves))
	for k := range t.leaves {
		keys = append(keys, k)
	}
	for depth := 0; depth < TreeDepth; depth++ {
		left, right := partition(keys, depth)
		if keyBit(key, depth) == 0 {
			p.Siblings[depth] = t.subtreeHash(right, depth+1)
			keys = left
		} else {
			p.Siblings[depth] = t.subtreeHash(left, depth+1)
			keys = right
		}
	}
	return p
}

// Verify checks the proof against root. An inclusion proof binds key to
// its value; an exclusion proof binds key to the empty leaf.
func (p *Proof) Verify(root types.Hash) bool {
	var h types.Hash
	if p.Exists() {
		h = leafHash(p.Key, p.Value)
	} else {
		h = defaultHashes[0]
	}
	for depth := TreeDepth - 1; depth >= 0; depth-- {
		if keyBit(p.Key, depth) == 0 {
			h = types.HashBytes(h.Bytes(), p.Siblings[depth].Bytes())
		} else {
			h = types.HashBytes(p.Siblings[depth].Bytes(), h.Bytes())
		}
	}
	return h == root
}

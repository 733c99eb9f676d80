package state

import (
	"github.com/holiman/uint256"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/smt"
)

// GetStorage returns the storage word under (addr, key), or zero if the
// slot is unset.
func (m *Manager) GetStorage(addr types.Address, key types.Hash) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()

	tree, ok := m.storage[addr]
	if !ok {
		return uint256.NewInt(0)
	}
	raw, ok := tree.Get(key)
	if !ok {
		return uint256.NewInt(0)
	}
	v := new(uint256.Int)
	v.SetBytes(raw)
	return v
}

// SetStorage writes a storage word under (addr, key). Writing zero deletes
// the slot; every write refreshes the owning account's storage root.
func (m *Manager) SetStorage(addr types.Address, key types.Hash, value *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tree, ok := m.storage[addr]
	if !ok {
		if value == nil || value.IsZero() {
			return nil
		}
		tree = smt.New()
		m.storage[addr] = tree
	}

	if value == nil || value.IsZero() {
		tree.Delete(key)
	} else {
		if err := tree.Update(key, value.Bytes()); err != nil {
			return err
		}
	}

	acc := m.getAccountLocked(addr)
	if tree.Len() == 0 {
		delete(m.storage, addr)
		acc.StorageRoot = types.Hash{}
	} else {
		acc.StorageRoot = tree.Root()
	}
	return m.setAccountLocked(addr, acc)
}

// GetCode returns the contract code deployed at addr, or nil for an EOA.
func (m *Manager) GetCode(addr types.Address) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc := m.getAccountLocked(addr)
	if !acc.IsContract() {
		return nil
	}
	code := m.code[acc.CodeHash]
	return append([]byte(nil), code...)
}

// SetCode installs code at addr, recording its hash in the account.
func (m *Manager) SetCode(addr types.Address, code []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc := m.getAccountLocked(addr)
	codeHash := types.HashBytes(code)
	m.code[codeHash] = append([]byte(nil), code...)
	acc.CodeHash = codeHash
	return m.setAccountLocked(addr, acc)
}

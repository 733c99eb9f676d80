package state

import (
	"errors"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/smt"
)

var (
	ErrNotArchived     = errors.New("state: account not archived")
	ErrArchiveMismatch = errors.New("state: archived state mismatch")
)

// blocksPerYear at the 150-second target block interval.
const blocksPerYear = 365 * 24 * 60 * 60 / 150

// accountBaseSize is the serialized footprint rent is charged on:
// balance(8) + nonce(8) + codeHash(32) + storageRoot(32) + hatScore(4) +
// lastActivity(8).
const accountBaseSize = 92

// RentConfig parameterizes the state rent sweep.
type RentConfig struct {
	// RentPerBytePerYear in base units.
	RentPerBytePerYear int64
	// MinimumBalance keeps an account active even when it cannot pay.
	MinimumBalance int64
	// ArchiveThresholdBlocks of inactivity before ArchiveInactive evicts.
	ArchiveThresholdBlocks uint64
	// GracePeriodBlocks after the last activity before rent accrues.
	GracePeriodBlocks uint64
}

// DefaultRentConfig returns the chain defaults.
func DefaultRentConfig() RentConfig {
	return RentConfig{
		RentPerBytePerYear:     1,
		MinimumBalance:         1000,
		ArchiveThresholdBlocks: blocksPerYear,
		GracePeriodBlocks:      1000,
	}
}

// ArchivedAccount preserves an evicted account together with an inclusion
// proof against the root it was archived under, so restoration can be
// checked later.
type ArchivedAccount struct {
	State           types.AccountState
	ArchivedAtBlock uint64
	ArchiveRoot     types.Hash
	Proof           *smt.Proof
}

// ProcessStateRent charges every account past its grace period rent
// proportional to its footprint and idle time. Accounts that cannot pay
// and sit below the minimum balance are archived. Collected rent goes to
// the fee collector when one is set; a zero collector burns it, the same
// as transaction fees. Returns the number of accounts charged.
func (m *Manager) ProcessStateRent(currentBlock uint64, cfg RentConfig) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	charged := 0
	var collected int64
	var evict []types.Address
	for key, enc := range m.tree.Leaves() {
		addr := types.KeyAddress(key)
		acc, err := types.DecodeAccountState(enc)
		if err != nil {
			continue
		}
		if acc.LastActivity+cfg.GracePeriodBlocks > currentBlock {
			continue
		}
		size := int64(accountBaseSize)
		if acc.IsContract() {
			if st, ok := m.storage[addr]; ok {
				size += int64(st.Len()) * 32
			}
		}
		idle := int64(currentBlock - acc.LastActivity)
		rent := size * cfg.RentPerBytePerYear * idle / blocksPerYear
		if rent <= 0 {
			continue
		}
		if acc.Balance >= rent {
			acc.Balance -= rent
			if err := m.setAccountLocked(addr, acc); err != nil {
				continue
			}
			collected += rent
			charged++
		} else if acc.Balance < cfg.MinimumBalance {
			evict = append(evict, addr)
		}
	}

	if collected > 0 && !m.feeCollector.IsZero() {
		collector := m.getAccountLocked(m.feeCollector)
		collector.Balance += collected
		collector.LastActivity = currentBlock
		if err := m.setAccountLocked(m.feeCollector, collector); err != nil {
			m.log.Error("rent credit failed", "err", err)
		}
	}
	for _, addr := range evict {
		m.archiveLocked(addr, currentBlock)
	}
	if charged > 0 || len(evict) > 0 {
		m.log.Info("state rent processed", "block", currentBlock,
			"charged", charged, "archived", len(evict))
	}
	return charged
}

// ArchiveInactive evicts accounts idle for at least threshold blocks,
// keeping their state and an inclusion proof for later restoration.
// Returns the number archived.
func (m *Manager) ArchiveInactive(currentBlock, threshold uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var evict []types.Address
	for key, enc := range m.tree.Leaves() {
		acc, err := types.DecodeAccountState(enc)
		if err != nil {
			continue
		}
		if acc.LastActivity+threshold <= currentBlock {
			evict = append(evict, types.KeyAddress(key))
		}
	}
	for _, addr := range evict {
		m.archiveLocked(addr, currentBlock)
	}
	return len(evict)
}

// archiveLocked moves addr out of the active tree. The proof is taken
// against the pre-eviction root.
func (m *Manager) archiveLocked(addr types.Address, currentBlock uint64) {
	key := types.AddressKey(addr)
	enc, ok := m.tree.Get(key)
	if !ok {
		return
	}
	acc, err := types.DecodeAccountState(enc)
	if err != nil {
		return
	}
	m.archived[addr] = &ArchivedAccount{
		State:           acc,
		ArchivedAtBlock: currentBlock,
		ArchiveRoot:     m.tree.Root(),
		Proof:           m.tree.Prove(key),
	}
	m.tree.Delete(key)
	delete(m.storage, addr)
	m.log.Debug("account archived", "addr", addr, "block", currentBlock)
}

// ArchivedState returns the archived record for addr, if any.
func (m *Manager) ArchivedState(addr types.Address) (*ArchivedAccount, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.archived[addr]
	return a, ok
}

// RestoreArchived puts an archived account back into the active state. The
// caller's record must match the held one and its proof must verify
// against the archive-time root. The restored account's activity clock
// starts at currentBlock.
func (m *Manager) RestoreArchived(addr types.Address, archived *ArchivedAccount, currentBlock uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	held, ok := m.archived[addr]
	if !ok {
		return ErrNotArchived
	}
	if held.State != archived.State || held.ArchiveRoot != archived.ArchiveRoot {
		return ErrArchiveMismatch
	}
	if held.Proof == nil || !held.Proof.Verify(held.ArchiveRoot) {
		return ErrArchiveMismatch
	}
	acc := held.State
	acc.LastActivity = currentBlock
	if err := m.setAccountLocked(addr, acc); err != nil {
		return err
	}
	delete(m.archived, addr)
	m.log.Info("archived account restored", "addr", addr)
	return nil
}

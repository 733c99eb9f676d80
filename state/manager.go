// Package state implements the L2 state manager: account states and
// per-contract storage authenticated by sparse Merkle trees, atomic
// transaction and batch application, and bounded snapshot/revert used by
// consensus and reorg recovery.
package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/kvstore"
	"github.com/cascoin/cascoin-l2/log"
	"github.com/cascoin/cascoin-l2/params"
	"github.com/cascoin/cascoin-l2/smt"
)

var (
	ErrNonceMismatch     = errors.New("state: nonce mismatch")
	ErrInsufficientFunds = errors.New("state: insufficient funds")
	ErrIntrinsicGas      = errors.New("state: gas limit below intrinsic cost")
	ErrSupplyOverflow    = errors.New("state: total supply would exceed max money")
	ErrBatchTooLarge     = errors.New("state: batch exceeds size cap")
	ErrSnapshotNotFound  = errors.New("state: no snapshot for root")
	ErrRootMismatch      = errors.New("state: restored root does not match snapshot")
	ErrNegativeAmount    = errors.New("state: negative amount")
)

// Snapshot is a deep copy of the full state keyed by its root.
type Snapshot struct {
	Root        types.Hash
	BlockNumber uint64
	L1Anchor    types.Hash

	tree    *smt.Tree
	storage map[types.Address]*smt.Tree
	code    map[types.Hash][]byte

	// Supply counters at snapshot time; restored on revert so TotalSupply
	// and TotalValueLocked stay consistent with the restored accounts.
	mintedTotal    int64
	burnedTotal    int64
	depositTotal   int64
	withdrawnTotal int64
}

// Manager owns the L2 state. All mutation goes through one lock; a batch
// holds the lock for its whole duration so readers never observe a
// partially applied batch.
type Manager struct {
	mu sync.Mutex

	cfg *params.L2Params
	log *log.Logger

	tree    *smt.Tree
	storage map[types.Address]*smt.Tree
	code    map[types.Hash][]byte

	snapshots     map[types.Hash]*Snapshot
	snapshotOrder []types.Hash

	// feeCollector receives transaction fees when set. The reward split is
	// advisory, not a consensus rule.
	feeCollector types.Address

	mintedTotal    int64
	burnedTotal    int64
	depositTotal   int64
	withdrawnTotal int64

	// archived holds accounts evicted from the active tree for inactivity
	// or unpaid rent, keyed by address until restoration.
	archived map[types.Address]*ArchivedAccount

	store kvstore.Store
}

// NewManager creates a state manager over an empty tree. store may be nil
// for in-memory operation.
func NewManager(cfg *params.L2Params, store kvstore.Store) *Manager {
	return &Manager{
		cfg:       cfg,
		log:       log.Module("state"),
		tree:      smt.New(),
		storage:   make(map[types.Address]*smt.Tree),
		code:      make(map[types.Hash][]byte),
		snapshots: make(map[types.Hash]*Snapshot),
		archived:  make(map[types.Address]*ArchivedAccount),
		store:     store,
	}
}

// SetFeeCollector directs transaction fees to addr. A zero address burns
// the fees.
func (m *Manager) SetFeeCollector(addr types.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feeCollector = addr
}

// Root returns the current state root.
func (m *Manager) Root() types.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tree.Root()
}

// GetAccountState returns the account under addr, or the empty account if
// absent. It never fails.
func (m *Manager) GetAccountState(addr types.Address) types.AccountState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getAccountLocked(addr)
}

func (m *Manager) getAccountLocked(addr types.Address) types.AccountState {
	raw, ok := m.tree.Get(types.AddressKey(addr))
	if !ok {
		return types.AccountState{}
	}
	acc, err := types.DecodeAccountState(raw)
	if err != nil {
		// A leaf we wrote ourselves must decode; anything else means the
		// backing tree is corrupt.
		panic(fmt.Sprintf("state: corrupt account leaf for %s: %v", addr, err))
	}
	return acc
}

// SetAccountState writes acc under addr. Empty accounts are pruned from
// the tree rather than stored as zero entries.
func (m *Manager) SetAccountState(addr types.Address, acc types.AccountState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setAccountLocked(addr, acc)
}

func (m *Manager) setAccountLocked(addr types.Address, acc types.AccountState) error {
	if err := acc.Validate(); err != nil {
		return err
	}
	key := types.AddressKey(addr)
	if acc.IsEmpty() {
		m.tree.Delete(key)
		return nil
	}
	enc, err := acc.Encode()
	if err != nil {
		return err
	}
	return m.tree.Update(key, enc)
}

// Mint credits addr with amount and counts it toward the minted total.
func (m *Manager) Mint(addr types.Address, amount int64, blockNumber uint64) error {
	if amount <= 0 {
		return ErrNegativeAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mintedTotal-m.burnedTotal+amount > params.MaxMoney {
		return ErrSupplyOverflow
	}
	acc := m.getAccountLocked(addr)
	acc.Balance += amount
	acc.LastActivity = blockNumber
	if err := m.setAccountLocked(addr, acc); err != nil {
		return err
	}
	m.mintedTotal += amount
	m.depositTotal += amount
	return nil
}

// Burn debits addr by amount and counts it toward the burned total.
func (m *Manager) Burn(addr types.Address, amount int64, blockNumber uint64) error {
	if amount <= 0 {
		return ErrNegativeAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := m.getAccountLocked(addr)
	if acc.Balance < amount {
		return ErrInsufficientFunds
	}
	acc.Balance -= amount
	acc.LastActivity = blockNumber
	if err := m.setAccountLocked(addr, acc); err != nil {
		return err
	}
	m.burnedTotal += amount
	return nil
}

// MintedTotal returns the cumulative amount minted since genesis.
func (m *Manager) MintedTotal() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mintedTotal
}

// TotalSupply returns cumulative minted minus cumulative burned.
func (m *Manager) TotalSupply() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mintedTotal - m.burnedTotal
}

// TotalValueLocked returns cumulative deposits minus completed withdrawals.
func (m *Manager) TotalValueLocked() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.depositTotal - m.withdrawnTotal
}

// SetHATScore caches the externally computed reputation score for addr.
func (m *Manager) SetHATScore(addr types.Address, score uint32) error {
	if score > types.MaxHATScore {
		return types.ErrHATScoreOutOfRange
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := m.getAccountLocked(addr)
	acc.HATScore = score
	return m.setAccountLocked(addr, acc)
}

// HATScore returns the cached reputation score for addr.
func (m *Manager) HATScore(addr types.Address) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getAccountLocked(addr).HATScore
}

// ProveAccount builds an inclusion (or exclusion) proof for addr against
// the current root.
func (m *Manager) ProveAccount(addr types.Address) *smt.Proof {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tree.Prove(types.AddressKey(addr))
}

// VerifyAccountProof checks an account proof against root and, for
// inclusion proofs, decodes the proven account.
func VerifyAccountProof(root types.Hash, addr types.Address, proof *smt.Proof) (types.AccountState, bool) {
	if proof.Key != types.AddressKey(addr) {
		return types.AccountState{}, false
	}
	if !proof.Verify(root) {
		return types.AccountState{}, false
	}
	if !proof.Exists() {
		return types.AccountState{}, true
	}
	acc, err := types.DecodeAccountState(proof.Value)
	if err != nil {
		return types.AccountState{}, false
	}
	return acc, true
}

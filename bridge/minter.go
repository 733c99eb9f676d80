package bridge

import (
	"errors"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/log"
	"github.com/cascoin/cascoin-l2/state"
)

var (
	ErrMintNoConsensus = errors.New("bridge: mint has no consensus")
	ErrMintTupleDrift  = errors.New("bridge: agreed tuple does not match record")
	ErrSupplyExceeded  = errors.New("bridge: minted total exceeds burned total")
)

// MintEvent reports one completed mint.
type MintEvent struct {
	L1TxHash  types.Hash
	Recipient types.Address
	Amount    int64
	L2Block   uint64
}

// Minter credits mint-consensus burns into L2 state exactly once. The
// processed flag in the burn registry is flipped before the credit and
// rolled back if the credit fails, so a concurrent or replayed consensus
// event can never double-mint.
type Minter struct {
	registry  *BurnRegistry
	consensus *MintConsensus
	state     *state.Manager
	log       *log.Logger

	onMint func(MintEvent)
}

// NewMinter wires the minter to the burn registry, mint consensus, and
// state manager.
func NewMinter(registry *BurnRegistry, consensus *MintConsensus, st *state.Manager) *Minter {
	return &Minter{
		registry:  registry,
		consensus: consensus,
		state:     st,
		log:       log.Module("bridge"),
	}
}

// OnMint registers a callback invoked after each successful mint.
func (m *Minter) OnMint(fn func(MintEvent)) {
	m.onMint = fn
}

// ProcessMint mints the burn behind l1TxHash into l2Block if consensus has
// authorized it. Calling it again for the same burn, from any goroutine,
// credits nothing.
func (m *Minter) ProcessMint(l1TxHash types.Hash, l2Block uint64) (*MintEvent, error) {
	tuple, ok := m.consensus.AgreedTuple(l1TxHash)
	if !ok {
		return nil, ErrMintNoConsensus
	}
	rec, ok := m.registry.Get(l1TxHash)
	if !ok {
		return nil, ErrBurnUnknown
	}
	// The agreed tuple must match what the burn validator recorded from
	// the L1 script itself.
	if tuple.Recipient != rec.Recipient || tuple.Amount != rec.Amount {
		return nil, ErrMintTupleDrift
	}

	// A correct burn registry makes this unreachable: every mint matches a
	// recorded burn and mints at most once. It still gates the credit so a
	// registry bug cannot inflate the L2 supply past what was burned on L1.
	if m.state.MintedTotal()+tuple.Amount > m.registry.TotalBurned() {
		return nil, ErrSupplyExceeded
	}

	// Exactly-once gate: claim the burn before touching state.
	if err := m.registry.markProcessed(l1TxHash, l2Block); err != nil {
		return nil, err
	}
	if err := m.state.Mint(tuple.Recipient, tuple.Amount, l2Block); err != nil {
		m.registry.unmarkProcessed(l1TxHash)
		return nil, err
	}
	m.consensus.Finish(l1TxHash)

	ev := MintEvent{
		L1TxHash:  l1TxHash,
		Recipient: tuple.Recipient,
		Amount:    tuple.Amount,
		L2Block:   l2Block,
	}
	m.log.Info("mint processed", "l1tx", l1TxHash, "recipient", ev.Recipient,
		"amount", ev.Amount, "block", l2Block)
	if m.onMint != nil {
		m.onMint(ev)
	}
	return &ev, nil
}

// VerifySupplyInvariant checks that the cumulative amount minted into L2
// state does not exceed the cumulative amount burned on L1.
func (m *Minter) VerifySupplyInvariant() error {
	if m.state.MintedTotal() > m.registry.TotalBurned() {
		return ErrSupplyExceeded
	}
	return nil
}

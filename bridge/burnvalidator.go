package bridge

import (
	"errors"

	"github.com/cascoin/cascoin-l2/log"
	"github.com/cascoin/cascoin-l2/params"
)

var (
	ErrBurnUnknown       = errors.New("bridge: unknown burn")
	ErrBurnWrongChain    = errors.New("bridge: burn targets another chain")
	ErrBurnUnconfirmed   = errors.New("bridge: burn below confirmation depth")
	ErrBurnProcessedGate = errors.New("bridge: burn already processed")
)

// BurnValidator gates parsed burns before they may enter mint consensus.
// The chain-id, confirmation-depth, and processed-state checks are
// independent; each must pass on its own.
type BurnValidator struct {
	cfg      *params.L2Params
	registry *BurnRegistry
	log      *log.Logger
}

// NewBurnValidator creates a validator for the network cfg, consulting
// registry for the processed-state gate.
func NewBurnValidator(cfg *params.L2Params, registry *BurnRegistry) *BurnValidator {
	return &BurnValidator{cfg: cfg, registry: registry, log: log.Module("bridge")}
}

// ValidateBurn parses tx's burn output and runs the three gates. On
// success it returns the parsed data and records the burn in the registry
// as observed-but-unprocessed.
func (v *BurnValidator) ValidateBurn(tx *L1Transaction) (*BurnData, error) {
	data, err := BurnedAmount(tx)
	if err != nil {
		return nil, err
	}
	if uint64(data.ChainID) != v.cfg.ChainID {
		return nil, ErrBurnWrongChain
	}
	if tx.Confirmations < v.cfg.FinalityDepth {
		return nil, ErrBurnUnconfirmed
	}
	if v.registry.IsProcessed(tx.Hash) {
		return nil, ErrBurnProcessedGate
	}

	v.registry.Record(&BurnRecord{
		L1TxHash:    tx.Hash,
		L1Block:     tx.BlockNumber,
		L1BlockHash: tx.BlockHash,
		Recipient:   data.Recipient,
		Amount:      data.Amount,
	})
	v.log.Debug("burn validated", "l1tx", tx.Hash, "recipient", data.Recipient,
		"amount", data.Amount)
	return data, nil
}

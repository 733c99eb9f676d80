package validator

import (
	"time"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/crypto"
	"github.com/cascoin/cascoin-l2/log"
	"github.com/cascoin/cascoin-l2/params"
	"github.com/cascoin/cascoin-l2/sequencer"
	"github.com/cascoin/cascoin-l2/state"
)

// BlockValidator checks proposed blocks against the parent chain, the
// sequencer registry, and re-executed state.
type BlockValidator struct {
	cfg       *params.L2Params
	registry  *sequencer.Registry
	consensus *sequencer.Consensus
	state     *state.Manager
	senders   *crypto.SenderCache
	log       *log.Logger
}

// New creates a block validator wired to the registry, vote collector, and
// state manager.
func New(cfg *params.L2Params, reg *sequencer.Registry, cons *sequencer.Consensus, st *state.Manager) *BlockValidator {
	return &BlockValidator{
		cfg:       cfg,
		registry:  reg,
		consensus: cons,
		state:     st,
		senders:   crypto.NewSenderCache(crypto.DefaultSenderCacheSize),
		log:       log.Module("validator"),
	}
}

// ValidateHeader checks header rules relative to parent. parent is nil only
// for genesis.
func (v *BlockValidator) ValidateHeader(header, parent *types.BlockHeader) Result {
	if header.ChainID != v.cfg.ChainID {
		return fail(CodeBadChainID, -1, "chain id %d, want %d", header.ChainID, v.cfg.ChainID)
	}
	if header.GasLimit < params.MinGasLimit {
		return fail(CodeBadGasLimit, -1, "gas limit %d below floor %d", header.GasLimit, params.MinGasLimit)
	}
	if header.GasUsed > header.GasLimit {
		return fail(CodeBadGasLimit, -1, "gas used %d exceeds limit %d", header.GasUsed, header.GasLimit)
	}

	if parent == nil {
		if header.Number != 0 {
			return fail(CodeBadNumber, -1, "block %d has no parent", header.Number)
		}
		if !header.ParentHash.IsZero() {
			return fail(CodeBadParentHash, -1, "genesis with non-null parent hash")
		}
		return ok()
	}

	if header.Number != parent.Number+1 {
		return fail(CodeBadNumber, -1, "number %d after parent %d", header.Number, parent.Number)
	}
	if header.ParentHash != parent.Hash() {
		return fail(CodeBadParentHash, -1, "parent hash mismatch at %d", header.Number)
	}
	if header.Timestamp <= parent.Timestamp {
		return fail(CodeBadTimestamp, -1, "timestamp %d not after parent %d",
			header.Timestamp, parent.Timestamp)
	}

	// Gas limit may drift at most parent/1024 per block.
	maxDelta := parent.GasLimit / params.GasLimitBoundDivisor
	diff := header.GasLimit - parent.GasLimit
	if header.GasLimit < parent.GasLimit {
		diff = parent.GasLimit - header.GasLimit
	}
	if diff > maxDelta {
		return fail(CodeBadGasLimit, -1, "gas limit moved %d, bound %d", diff, maxDelta)
	}
	return ok()
}

// ValidateBlock runs structural checks plus parent-relative header rules
// and the per-transaction aggregate gas bound.
func (v *BlockValidator) ValidateBlock(block *types.Block, parent *types.BlockHeader, now time.Time) Result {
	if err := block.ValidateStructure(now); err != nil {
		return fail(CodeBadStructure, -1, "%v", err)
	}
	if r := v.ValidateHeader(block.Header, parent); !r.Valid {
		return r
	}
	var gasSum uint64
	for i, tx := range block.Transactions {
		gasSum += tx.GasLimit
		if gasSum > block.Header.GasLimit {
			return fail(CodeBadTransaction, i, "cumulative tx gas %d exceeds block limit %d",
				gasSum, block.Header.GasLimit)
		}
		if tx.ChainID != v.cfg.ChainID {
			return fail(CodeBadTransaction, i, "tx chain id %d", tx.ChainID)
		}
		if err := v.senders.VerifyTxSignature(tx); err != nil {
			return fail(CodeBadSignature, i, "tx signature: %v", err)
		}
	}
	return ok()
}

// ValidateSignatures checks the sequencer signature set on a block: each
// must come from a registered sequencer, verify against the block hash,
// and appear at most once per signer.
func (v *BlockValidator) ValidateSignatures(block *types.Block) Result {
	blockHash := block.Hash()
	seen := make(map[types.Address]struct{}, len(block.Signatures))
	for i, sig := range block.Signatures {
		if _, err := v.registry.Get(sig.Sequencer); err != nil {
			return fail(CodeUnknownSigner, i, "signer %s not registered", sig.Sequencer)
		}
		if _, dup := seen[sig.Sequencer]; dup {
			return fail(CodeDuplicateSignature, i, "second signature from %s", sig.Sequencer)
		}
		signer, err := crypto.RecoverAddress(blockHash, sig.Signature)
		if err != nil || signer != sig.Sequencer {
			return fail(CodeBadSignature, i, "signature does not recover %s", sig.Sequencer)
		}
		seen[sig.Sequencer] = struct{}{}
	}
	return ok()
}

// ValidateStateTransition re-applies the block's transactions against the
// parent root's snapshot and compares the resulting root bit for bit with
// the declared one. Any mismatch is fatal for the block.
func (v *BlockValidator) ValidateStateTransition(block *types.Block, parentRoot types.Hash) Result {
	replay, err := v.state.StateAt(parentRoot)
	if err != nil {
		return fail(CodeStateMismatch, -1, "no snapshot for parent root %s", parentRoot)
	}
	if _, err := replay.ApplyBatch(block.Transactions, block.Header.Number); err != nil {
		return fail(CodeStateMismatch, -1, "replay failed: %v", err)
	}
	if got := replay.Root(); got != block.Header.StateRoot {
		v.log.Warn("state root mismatch", "block", block.Header.Number,
			"declared", block.Header.StateRoot, "recomputed", got)
		return fail(CodeStateMismatch, -1, "declared %s, recomputed %s",
			block.Header.StateRoot, got)
	}
	return ok()
}

// HasConsensus reports whether the weighted ACCEPT votes behind the block
// reach the threshold of total registered weight.
func (v *BlockValidator) HasConsensus(blockHash types.Hash) bool {
	return v.consensus.HasConsensus(blockHash)
}

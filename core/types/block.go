package types

import (
	"errors"
	"time"
)

// Block structural limits.
const (
	MaxExtraDataSize     = 32
	MaxFutureDrift       = 60 // seconds a block timestamp may lead wall time
	MaxBlockTransactions = 10_000
	MaxBlockSignatures   = 1_000
)

// Block structural errors.
var (
	ErrBlockNoSequencer      = errors.New("block: zero sequencer address")
	ErrBlockExtraDataTooLong = errors.New("block: extra data exceeds cap")
	ErrBlockFutureTimestamp  = errors.New("block: timestamp too far in the future")
	ErrBlockTooManyTxs       = errors.New("block: transaction count exceeds cap")
	ErrBlockTooManySigs      = errors.New("block: signature count exceeds cap")
	ErrBlockTxRootMismatch   = errors.New("block: transaction root mismatch")
	ErrBlockGasOverflow      = errors.New("block: gas used exceeds gas limit")
)

// BlockHeader carries the consensus fields of an L2 block.
type BlockHeader struct {
	Number       uint64
	ParentHash   Hash
	StateRoot    Hash
	TxRoot       Hash
	ReceiptsRoot Hash
	Sequencer    Address
	Timestamp    uint64
	GasLimit     uint64
	GasUsed      uint64
	ChainID      uint64

	// L1 anchoring.
	L1AnchorNumber uint64
	L1AnchorHash   Hash

	// Slot the producing sequencer was elected for.
	Slot uint64

	ExtraData []byte
}

// Hash returns the canonical header hash.
func (h *BlockHeader) Hash() Hash {
	return RLPHash(h)
}

// Copy returns a deep copy of the header.
func (h *BlockHeader) Copy() *BlockHeader {
	cp := *h
	cp.ExtraData = append([]byte(nil), h.ExtraData...)
	return &cp
}

// SequencerSignature is one sequencer's attestation over a block hash.
type SequencerSignature struct {
	Sequencer Address
	Signature []byte // 65-byte recoverable signature over the header hash
}

// Block is an L2 block: header, transaction body, and the sequencer
// signatures collected during consensus.
type Block struct {
	Header       *BlockHeader
	Transactions []*Transaction
	Signatures   []SequencerSignature

	// Finalized is set once the block has gathered a weighted quorum and
	// its L1 anchor is buried past the finality depth.
	Finalized bool
}

// NewBlock assembles a block over header and txs and fills the header's
// transaction root.
func NewBlock(header *BlockHeader, txs []*Transaction) *Block {
	h := header.Copy()
	h.TxRoot = ComputeTxRoot(txs)
	return &Block{Header: h, Transactions: txs}
}

// Hash returns the block's header hash.
func (b *Block) Hash() Hash {
	return b.Header.Hash()
}

// Number returns the block height.
func (b *Block) Number() uint64 { return b.Header.Number }

// ValidateStructure checks the block's standalone rules: sequencer
// presence, size caps, timestamp drift, gas accounting, and that the
// header's transaction root commits to the body. Parent-relative rules
// live in the validator.
func (b *Block) ValidateStructure(now time.Time) error {
	h := b.Header
	if h.Sequencer.IsZero() {
		return ErrBlockNoSequencer
	}
	if len(h.ExtraData) > MaxExtraDataSize {
		return ErrBlockExtraDataTooLong
	}
	if h.Timestamp > uint64(now.Unix())+MaxFutureDrift {
		return ErrBlockFutureTimestamp
	}
	if len(b.Transactions) > MaxBlockTransactions {
		return ErrBlockTooManyTxs
	}
	if len(b.Signatures) > MaxBlockSignatures {
		return ErrBlockTooManySigs
	}
	if h.GasUsed > h.GasLimit {
		return ErrBlockGasOverflow
	}
	if got := ComputeTxRoot(b.Transactions); got != h.TxRoot {
		return ErrBlockTxRootMismatch
	}
	for _, tx := range b.Transactions {
		if err := tx.ValidateStructure(); err != nil {
			return err
		}
	}
	return nil
}

// ComputeTxRoot builds a binary Merkle root over the transaction hashes.
// Odd levels duplicate their last node; an empty body yields the zero hash.
func ComputeTxRoot(txs []*Transaction) Hash {
	if len(txs) == 0 {
		return Hash{}
	}
	level := make([]Hash, len(txs))
	for i, tx := range txs {
		level[i] = tx.Hash()
	}
	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]Hash, len(level)/2)
		for i := range next {
			next[i] = HashBytes(level[2*i].Bytes(), level[2*i+1].Bytes())
		}
		level = next
	}
	return level[0]
}

// Copy returns a deep copy of the block.
func (b *Block) Copy() *Block {
	cp := &Block{
		Header:       b.Header.Copy(),
		Transactions: make([]*Transaction, len(b.Transactions)),
		Signatures:   make([]SequencerSignature, len(b.Signatures)),
		Finalized:    b.Finalized,
	}
	for i, tx := range b.Transactions {
		cp.Transactions[i] = tx.Copy()
	}
	for i, s := range b.Signatures {
		cp.Signatures[i] = SequencerSignature{
			Sequencer: s.Sequencer,
			Signature: append([]byte(nil), s.Signature...),
		}
	}
	return cp
}

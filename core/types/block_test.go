package types

import (
	"errors"
	"testing"
	"time"
)

func testHeader() *BlockHeader {
	return &BlockHeader{
		Number:     5,
		ParentHash: HashBytes([]byte("parent")),
		Sequencer:  HexToAddress("0x3333333333333333333333333333333333333333"),
		Timestamp:  uint64(time.Now().Unix()),
		GasLimit:   8_000_000,
		ChainID:    1,
		Slot:       5,
	}
}

func TestBlockValidateStructure(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		mutate  func(*Block)
		wantErr error
	}{
		{"valid empty block", func(b *Block) {}, nil},
		{"zero sequencer", func(b *Block) { b.Header.Sequencer = Address{} }, ErrBlockNoSequencer},
		{"extra data too long", func(b *Block) {
			b.Header.ExtraData = make([]byte, MaxExtraDataSize+1)
		}, ErrBlockExtraDataTooLong},
		{"future timestamp", func(b *Block) {
			b.Header.Timestamp = uint64(now.Unix()) + MaxFutureDrift + 10
		}, ErrBlockFutureTimestamp},
		{"gas used over limit", func(b *Block) {
			b.Header.GasUsed = b.Header.GasLimit + 1
		}, ErrBlockGasOverflow},
		{"tx root mismatch", func(b *Block) {
			b.Header.TxRoot = HashBytes([]byte("bogus"))
		}, ErrBlockTxRootMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBlock(testHeader(), nil)
			tt.mutate(b)
			err := b.ValidateStructure(now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateStructure() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestComputeTxRoot(t *testing.T) {
	if got := ComputeTxRoot(nil); !got.IsZero() {
		t.Fatalf("empty body root = %s, want zero", got)
	}

	one := []*Transaction{validTransfer()}
	if got := ComputeTxRoot(one); got.IsZero() {
		t.Fatal("single-tx root is zero")
	}

	// An odd level duplicates its last node: [a b c] hashes like [a b c c].
	a, b, c := validTransfer(), validTransfer(), validTransfer()
	b.Nonce, c.Nonce = 2, 3
	odd := ComputeTxRoot([]*Transaction{a, b, c})
	padded := ComputeTxRoot([]*Transaction{a, b, c, c})
	if odd != padded {
		t.Fatalf("odd root %s != duplicate-padded root %s", odd, padded)
	}

	// Order matters.
	if ComputeTxRoot([]*Transaction{a, b}) == ComputeTxRoot([]*Transaction{b, a}) {
		t.Fatal("transaction order does not affect root")
	}
}

func TestHeaderHashCoversAnchor(t *testing.T) {
	h1 := testHeader()
	h2 := testHeader()
	h2.L1AnchorHash = HashBytes([]byte("anchor"))
	if h1.Hash() == h2.Hash() {
		t.Fatal("anchor hash change did not change header hash")
	}
}

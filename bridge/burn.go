// Package bridge implements the L1 -> L2 burn/mint pipeline: strict burn
// script parsing, the burn validator's independent acceptance gates, the
// processed-burn registry, weighted mint consensus, and the exactly-once
// minter.
package bridge

import (
	"encoding/binary"
	"errors"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/crypto"
	"github.com/cascoin/cascoin-l2/params"
)

// Burn script layout: OP_RETURN, one push of exactly 51 bytes:
// marker(6) || chainId(u32 LE) || pubkey(33, compressed) || amount(u64 LE).
const (
	opReturn = 0x6a

	burnPayloadLen = 51
	burnScriptLen  = 2 + burnPayloadLen

	markerLen = 6
	pubKeyLen = 33
)

var (
	ErrNotBurnScript = errors.New("bridge: not a burn script")
	ErrBurnBadMarker = errors.New("bridge: burn marker mismatch")
	ErrBurnBadPubKey = errors.New("bridge: burn pubkey not a valid compressed key")
	ErrBurnBadAmount = errors.New("bridge: burn amount out of range")
)

// BurnData is a fully parsed burn payload.
type BurnData struct {
	ChainID   uint32
	PubKey    []byte // 33-byte compressed recipient key
	Amount    int64
	Recipient types.Address // derived from PubKey
}

// L1TxOutput is one output of an L1 transaction.
type L1TxOutput struct {
	Value  int64
	Script []byte
}

// L1Transaction is the slice of an L1 transaction the bridge consumes.
type L1Transaction struct {
	Hash          types.Hash
	BlockNumber   uint64
	BlockHash     types.Hash
	Confirmations uint64
	Outputs       []L1TxOutput
}

// ParseBurnScript parses a burn output script. Any deviation in marker,
// length, or field bounds fails the whole parse; there is no partial
// success.
func ParseBurnScript(script []byte) (*BurnData, error) {
	if len(script) != burnScriptLen {
		return nil, ErrNotBurnScript
	}
	if script[0] != opReturn || script[1] != burnPayloadLen {
		return nil, ErrNotBurnScript
	}
	payload := script[2:]
	if string(payload[:markerLen]) != params.BurnScriptMarker {
		return nil, ErrBurnBadMarker
	}

	data := &BurnData{
		ChainID: binary.LittleEndian.Uint32(payload[markerLen : markerLen+4]),
		PubKey:  append([]byte(nil), payload[markerLen+4:markerLen+4+pubKeyLen]...),
	}
	amount := binary.LittleEndian.Uint64(payload[markerLen+4+pubKeyLen:])
	if amount == 0 || amount > uint64(params.MaxMoney) {
		return nil, ErrBurnBadAmount
	}
	data.Amount = int64(amount)

	if _, err := crypto.DecompressPubKey(data.PubKey); err != nil {
		return nil, ErrBurnBadPubKey
	}
	data.Recipient = crypto.Hash160Address(data.PubKey)
	return data, nil
}

// EncodeBurnScript builds the canonical burn script for a recipient key
// and amount.
func EncodeBurnScript(chainID uint32, pubKey []byte, amount int64) ([]byte, error) {
	if len(pubKey) != pubKeyLen {
		return nil, ErrBurnBadPubKey
	}
	if amount <= 0 || amount > params.MaxMoney {
		return nil, ErrBurnBadAmount
	}
	script := make([]byte, 0, burnScriptLen)
	script = append(script, opReturn, burnPayloadLen)
	script = append(script, params.BurnScriptMarker...)
	script = binary.LittleEndian.AppendUint32(script, chainID)
	script = append(script, pubKey...)
	script = binary.LittleEndian.AppendUint64(script, uint64(amount))
	return script, nil
}

// BurnOutputIndex returns the index of the burn output in tx, or -1 if tx
// carries none.
func BurnOutputIndex(tx *L1Transaction) int {
	for i, out := range tx.Outputs {
		if _, err := ParseBurnScript(out.Script); err == nil {
			return i
		}
	}
	return -1
}

// IsBurnTransaction reports whether tx carries a parseable burn output.
func IsBurnTransaction(tx *L1Transaction) bool {
	return BurnOutputIndex(tx) >= 0
}

// BurnedAmount returns the parsed burn data of tx's burn output.
func BurnedAmount(tx *L1Transaction) (*BurnData, error) {
	idx := BurnOutputIndex(tx)
	if idx < 0 {
		return nil, ErrNotBurnScript
	}
	return ParseBurnScript(tx.Outputs[idx].Script)
}

package types

import (
	"errors"
)

// TxType identifies the kind of L2 transaction.
type TxType uint8

const (
	TxTransfer          TxType = 0 // standard value transfer
	TxContractDeploy    TxType = 1 // deploy new contract
	TxContractCall      TxType = 2 // call existing contract
	TxDeposit           TxType = 3 // L1 -> L2 deposit
	TxWithdrawal        TxType = 4 // L2 -> L1 withdrawal
	TxCrossLayerMessage TxType = 5 // cross-layer message
	TxSequencerAnnounce TxType = 6 // sequencer announcement
	TxForcedInclusion   TxType = 7 // forced transaction from L1
)

// String implements fmt.Stringer.
func (t TxType) String() string {
	switch t {
	case TxTransfer:
		return "TRANSFER"
	case TxContractDeploy:
		return "CONTRACT_DEPLOY"
	case TxContractCall:
		return "CONTRACT_CALL"
	case TxDeposit:
		return "DEPOSIT"
	case TxWithdrawal:
		return "WITHDRAWAL"
	case TxCrossLayerMessage:
		return "CROSS_LAYER_MSG"
	case TxSequencerAnnounce:
		return "SEQUENCER_ANNOUNCE"
	case TxForcedInclusion:
		return "FORCED_INCLUSION"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether t is a known transaction type.
func (t TxType) Valid() bool {
	return t <= TxForcedInclusion
}

// Transaction structural limits.
const (
	TxMinGas          = 21_000
	TxMaxGas          = 10_000_000
	MaxTxDataSize     = 128 * 1024
	MaxAccessListSize = 256
	SignatureLength   = 65 // R(32) || S(32) || V(1)
)

// Transaction structural errors.
var (
	ErrTxUnknownType       = errors.New("tx: unknown transaction type")
	ErrTxNoSender          = errors.New("tx: sender required for non-deposit transaction")
	ErrTxNegativeValue     = errors.New("tx: value is negative")
	ErrTxNegativeGasPrice  = errors.New("tx: negative fee field")
	ErrTxGasOutOfRange     = errors.New("tx: gas limit outside allowed range")
	ErrTxDataTooLarge      = errors.New("tx: data exceeds size cap")
	ErrTxAccessListTooLong = errors.New("tx: access list exceeds size cap")
	ErrTxNoRecipient       = errors.New("tx: recipient required")
	ErrTxHasRecipient      = errors.New("tx: deployment must not name a recipient")
	ErrTxNoCode            = errors.New("tx: deployment requires non-empty code")
	ErrTxZeroValue         = errors.New("tx: positive value required")
	ErrTxWrongChain        = errors.New("tx: chain id mismatch")
	ErrTxUnsigned          = errors.New("tx: missing signature")
	ErrTxBadSignatureLen   = errors.New("tx: signature must be 65 bytes")
)

// AccessTuple names an address and the storage keys a transaction intends
// to touch.
type AccessTuple struct {
	Address     Address
	StorageKeys []Hash
}

// Transaction is a single L2 transaction. Deposits originate on L1 and may
// omit the signature; every other type is signed by its sender over the
// canonical signing hash.
type Transaction struct {
	From                 Address
	To                   Address
	Value                int64
	Nonce                uint64
	GasLimit             uint64
	GasPrice             int64
	MaxFeePerGas         int64
	MaxPriorityFeePerGas int64
	Data                 []byte
	Type                 TxType
	ChainID              uint64
	AccessList           []AccessTuple

	// Signature is R || S || V with V in {0, 1}.
	Signature []byte

	// L1 linkage for deposits and forced inclusions.
	L1TxHash      Hash
	L1BlockNumber uint64
}

// rlpTxSigning is the canonical signing preimage: every consensus field,
// no signature.
type rlpTxSigning struct {
	From                 Address
	To                   Address
	Value                uint64
	Nonce                uint64
	GasLimit             uint64
	GasPrice             uint64
	MaxFeePerGas         uint64
	MaxPriorityFeePerGas uint64
	Data                 []byte
	Type                 uint8
	ChainID              uint64
	AccessList           []rlpAccessTuple
	L1TxHash             Hash
	L1BlockNumber        uint64
}

type rlpAccessTuple struct {
	Address     Address
	StorageKeys []Hash
}

func (tx *Transaction) signingFields() *rlpTxSigning {
	al := make([]rlpAccessTuple, len(tx.AccessList))
	for i, t := range tx.AccessList {
		al[i] = rlpAccessTuple{Address: t.Address, StorageKeys: t.StorageKeys}
	}
	return &rlpTxSigning{
		From:                 tx.From,
		To:                   tx.To,
		Value:                uint64(tx.Value),
		Nonce:                tx.Nonce,
		GasLimit:             tx.GasLimit,
		GasPrice:             uint64(tx.GasPrice),
		MaxFeePerGas:         uint64(tx.MaxFeePerGas),
		MaxPriorityFeePerGas: uint64(tx.MaxPriorityFeePerGas),
		Data:                 tx.Data,
		Type:                 uint8(tx.Type),
		ChainID:              tx.ChainID,
		AccessList:           al,
		L1TxHash:             tx.L1TxHash,
		L1BlockNumber:        tx.L1BlockNumber,
	}
}

// Hash returns the canonical transaction hash.
func (tx *Transaction) Hash() Hash {
	return RLPHash(tx.signingFields())
}

// SigningHash returns the digest the sender signs. It is identical to the
// transaction hash: the signature covers every consensus field.
func (tx *Transaction) SigningHash() Hash {
	return tx.Hash()
}

// IsDeposit reports whether the transaction is an L1 -> L2 deposit.
func (tx *Transaction) IsDeposit() bool { return tx.Type == TxDeposit }

// IsWithdrawal reports whether the transaction is an L2 -> L1 withdrawal.
func (tx *Transaction) IsWithdrawal() bool { return tx.Type == TxWithdrawal }

// IsContractDeploy reports whether the transaction deploys a contract.
func (tx *Transaction) IsContractDeploy() bool { return tx.Type == TxContractDeploy }

// MaxFee returns the maximum fee the sender can be charged.
func (tx *Transaction) MaxFee() int64 {
	if tx.MaxFeePerGas > 0 {
		return tx.MaxFeePerGas * int64(tx.GasLimit)
	}
	return tx.GasPrice * int64(tx.GasLimit)
}

// EffectiveGasPrice returns the price actually paid per gas unit given the
// block base fee. Legacy transactions pay their fixed gas price.
func (tx *Transaction) EffectiveGasPrice(baseFee int64) int64 {
	if tx.MaxFeePerGas > 0 {
		priority := tx.MaxPriorityFeePerGas
		if room := tx.MaxFeePerGas - baseFee; room < priority {
			priority = room
		}
		if priority < 0 {
			priority = 0
		}
		price := baseFee + priority
		if price > tx.MaxFeePerGas {
			price = tx.MaxFeePerGas
		}
		return price
	}
	return tx.GasPrice
}

// ValidateStructure checks the transaction's standalone structural rules:
// type, sender presence, gas bounds, value sign, size caps, and the
// type-specific recipient/value/code rules. It does not touch state and
// does not verify the signature.
func (tx *Transaction) ValidateStructure() error {
	if !tx.Type.Valid() {
		return ErrTxUnknownType
	}
	if tx.From.IsZero() && !tx.IsDeposit() {
		return ErrTxNoSender
	}
	if tx.Value < 0 {
		return ErrTxNegativeValue
	}
	if tx.GasPrice < 0 || tx.MaxFeePerGas < 0 || tx.MaxPriorityFeePerGas < 0 {
		return ErrTxNegativeGasPrice
	}
	if tx.GasLimit < TxMinGas || tx.GasLimit > TxMaxGas {
		return ErrTxGasOutOfRange
	}
	if len(tx.Data) > MaxTxDataSize {
		return ErrTxDataTooLarge
	}
	if len(tx.AccessList) > MaxAccessListSize {
		return ErrTxAccessListTooLong
	}
	switch tx.Type {
	case TxWithdrawal:
		if tx.Value <= 0 {
			return ErrTxZeroValue
		}
		if tx.To.IsZero() {
			return ErrTxNoRecipient
		}
	case TxContractDeploy:
		if len(tx.Data) == 0 {
			return ErrTxNoCode
		}
		if !tx.To.IsZero() {
			return ErrTxHasRecipient
		}
	case TxTransfer, TxContractCall, TxCrossLayerMessage, TxForcedInclusion:
		if tx.To.IsZero() {
			return ErrTxNoRecipient
		}
	case TxDeposit:
		if tx.To.IsZero() {
			return ErrTxNoRecipient
		}
		if tx.Value <= 0 {
			return ErrTxZeroValue
		}
	}
	return nil
}

// Copy returns a deep copy of the transaction.
func (tx *Transaction) Copy() *Transaction {
	cp := *tx
	cp.Data = append([]byte(nil), tx.Data...)
	cp.Signature = append([]byte(nil), tx.Signature...)
	cp.AccessList = make([]AccessTuple, len(tx.AccessList))
	for i, t := range tx.AccessList {
		cp.AccessList[i] = AccessTuple{
			Address:     t.Address,
			StorageKeys: append([]Hash(nil), t.StorageKeys...),
		}
	}
	return &cp
}

package crypto

import (
	"crypto/ecdsa"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cascoin/cascoin-l2/core/types"
)

var (
	ErrTxUnsigned        = errors.New("crypto: transaction is unsigned")
	ErrTxSenderMismatch  = errors.New("crypto: recovered signer does not match declared sender")
	ErrDepositNoL1Origin = errors.New("crypto: deposit missing L1 origin")
)

// DefaultSenderCacheSize bounds the recovered-sender memo in a SenderCache.
const DefaultSenderCacheSize = 4096

// SenderCache memoizes tx hash -> recovered sender across repeated
// validation of the same transactions (mempool, block, re-execution).
// Each validating component owns its own instance.
type SenderCache struct {
	senders *lru.Cache[types.Hash, types.Address]
}

// NewSenderCache creates a cache holding up to size recovered senders.
// Sizes below 1 fall back to DefaultSenderCacheSize.
func NewSenderCache(size int) *SenderCache {
	if size < 1 {
		size = DefaultSenderCacheSize
	}
	c, _ := lru.New[types.Hash, types.Address](size)
	return &SenderCache{senders: c}
}

// Sender returns the transaction's authenticated sender, recovering it at
// most once per transaction hash.
func (sc *SenderCache) Sender(tx *types.Transaction) (types.Address, error) {
	if tx.IsDeposit() {
		return TxSender(tx)
	}
	if len(tx.Signature) != 65 {
		return types.Address{}, ErrTxUnsigned
	}
	h := tx.Hash()
	if addr, ok := sc.senders.Get(h); ok {
		return addr, nil
	}
	addr, err := TxSender(tx)
	if err != nil {
		return types.Address{}, err
	}
	sc.senders.Add(h, addr)
	return addr, nil
}

// VerifyTxSignature checks that tx carries a valid signature from its
// declared sender, consulting the cache first.
func (sc *SenderCache) VerifyTxSignature(tx *types.Transaction) error {
	sender, err := sc.Sender(tx)
	if err != nil {
		return err
	}
	if !tx.IsDeposit() && sender != tx.From {
		return ErrTxSenderMismatch
	}
	return nil
}

// SignTx signs tx with key and fills in From and Signature. Any previous
// signature is replaced.
func SignTx(tx *types.Transaction, key *ecdsa.PrivateKey) error {
	tx.From = KeyAddress(key)
	sig, err := Sign(tx.SigningHash(), key)
	if err != nil {
		return err
	}
	tx.Signature = sig
	return nil
}

// TxSender returns the transaction's authenticated sender. For deposits the
// sender is taken from the L1-derived From field; every other type recovers
// the signer from the signature and requires it to match the declared From.
func TxSender(tx *types.Transaction) (types.Address, error) {
	if tx.IsDeposit() {
		if tx.L1TxHash.IsZero() {
			return types.Address{}, ErrDepositNoL1Origin
		}
		return tx.From, nil
	}
	if len(tx.Signature) != 65 {
		return types.Address{}, ErrTxUnsigned
	}
	return recoverSearch(tx.SigningHash(), tx.Signature, tx.From)
}

// VerifyTxSignature checks that tx carries a valid signature from its
// declared sender.
func VerifyTxSignature(tx *types.Transaction) error {
	sender, err := TxSender(tx)
	if err != nil {
		return err
	}
	if !tx.IsDeposit() && sender != tx.From {
		return ErrTxSenderMismatch
	}
	return nil
}

// recoverSearch tries the stored recovery id first, then the alternate one,
// accepting whichever recovers the declared sender. Signatures produced by
// other signers occasionally carry a malleated V.
func recoverSearch(digest types.Hash, sig []byte, want types.Address) (types.Address, error) {
	addr, err := RecoverAddress(digest, sig)
	if err == nil && addr == want {
		return addr, nil
	}

	alt := make([]byte, 65)
	copy(alt, sig)
	alt[64] ^= 1
	altAddr, altErr := RecoverAddress(digest, alt)
	if altErr == nil && altAddr == want {
		return altAddr, nil
	}

	if err != nil {
		return types.Address{}, err
	}
	return types.Address{}, ErrTxSenderMismatch
}

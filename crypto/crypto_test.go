package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/cascoin/cascoin-l2/core/types"
)

func TestHash160KnownVector(t *testing.T) {
	// Hash160("") = RIPEMD160(SHA256("")).
	want := "b472a266d0bd89c13706a4132ccfb16f7c3b9fcb"
	got := Hash160(nil)
	if hex.EncodeToString(got[:]) != want {
		t.Fatalf("Hash160(nil) = %x, want %s", got, want)
	}
}

func TestPubKeyAddressDeterministic(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	a := PubKeyAddress(&key.PublicKey)
	b := KeyAddress(key)
	if a != b || a.IsZero() {
		t.Fatalf("address derivation mismatch: %s vs %s", a, b)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	comp := CompressPubKey(&key.PublicKey)
	if len(comp) != 33 {
		t.Fatalf("compressed key length = %d, want 33", len(comp))
	}
	pub, err := DecompressPubKey(comp)
	if err != nil {
		t.Fatalf("DecompressPubKey: %v", err)
	}
	if !bytes.Equal(CompressPubKey(pub), comp) {
		t.Fatal("decompress/compress round trip mismatch")
	}
}

func TestSignRecover(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	digest := types.HashBytes([]byte("payload"))
	sig, err := Sign(digest, key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("signature length = %d, want 65", len(sig))
	}
	addr, err := RecoverAddress(digest, sig)
	if err != nil {
		t.Fatalf("RecoverAddress: %v", err)
	}
	if want := KeyAddress(key); addr != want {
		t.Fatalf("recovered %s, want %s", addr, want)
	}
	if !VerifySignature(CompressPubKey(&key.PublicKey), digest, sig) {
		t.Fatal("VerifySignature rejected a valid signature")
	}
}

func TestSignTxAndSender(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tx := &types.Transaction{
		To:       types.HexToAddress("0x2222222222222222222222222222222222222222"),
		Value:    100,
		Nonce:    1,
		GasLimit: 21_000,
		GasPrice: 1,
		Type:     types.TxTransfer,
		ChainID:  1,
	}
	if err := SignTx(tx, key); err != nil {
		t.Fatalf("SignTx: %v", err)
	}
	sender, err := TxSender(tx)
	if err != nil {
		t.Fatalf("TxSender: %v", err)
	}
	if sender != KeyAddress(key) {
		t.Fatalf("sender = %s, want %s", sender, KeyAddress(key))
	}
	if err := VerifyTxSignature(tx); err != nil {
		t.Fatalf("VerifyTxSignature: %v", err)
	}
}

func TestTxSenderMismatch(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tx := &types.Transaction{
		To:       types.HexToAddress("0x2222222222222222222222222222222222222222"),
		Value:    100,
		Nonce:    1,
		GasLimit: 21_000,
		Type:     types.TxTransfer,
		ChainID:  1,
	}
	if err := SignTx(tx, key); err != nil {
		t.Fatalf("SignTx: %v", err)
	}
	// Forge the declared sender; the signature no longer recovers it.
	tx.From = types.HexToAddress("0x9999999999999999999999999999999999999999")
	_, err = TxSender(tx)
	if !errors.Is(err, ErrTxSenderMismatch) {
		t.Fatalf("TxSender on forged sender = %v, want %v", err, ErrTxSenderMismatch)
	}
}

func TestSenderCache(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tx := &types.Transaction{
		To:       types.HexToAddress("0x2222222222222222222222222222222222222222"),
		Value:    100,
		Nonce:    1,
		GasLimit: 21_000,
		Type:     types.TxTransfer,
		ChainID:  1,
	}
	if err := SignTx(tx, key); err != nil {
		t.Fatalf("SignTx: %v", err)
	}

	cache := NewSenderCache(8)
	first, err := cache.Sender(tx)
	if err != nil {
		t.Fatalf("Sender: %v", err)
	}
	if first != KeyAddress(key) {
		t.Fatalf("sender = %s, want %s", first, KeyAddress(key))
	}
	second, err := cache.Sender(tx)
	if err != nil || second != first {
		t.Fatalf("memoized sender = %s, %v", second, err)
	}
	if err := cache.VerifyTxSignature(tx); err != nil {
		t.Fatalf("VerifyTxSignature: %v", err)
	}

	// A forged copy hashes differently, so the memo cannot vouch for it.
	forged := *tx
	forged.From = types.HexToAddress("0x9999999999999999999999999999999999999999")
	if err := cache.VerifyTxSignature(&forged); !errors.Is(err, ErrTxSenderMismatch) {
		t.Fatalf("forged tx = %v, want %v", err, ErrTxSenderMismatch)
	}
}

func TestDepositSenderFromL1(t *testing.T) {
	tx := &types.Transaction{
		From:     types.HexToAddress("0x1111111111111111111111111111111111111111"),
		To:       types.HexToAddress("0x2222222222222222222222222222222222222222"),
		Value:    100,
		GasLimit: 21_000,
		Type:     types.TxDeposit,
		ChainID:  1,
		L1TxHash: types.HashBytes([]byte("l1tx")),
	}
	sender, err := TxSender(tx)
	if err != nil {
		t.Fatalf("TxSender: %v", err)
	}
	if sender != tx.From {
		t.Fatalf("deposit sender = %s, want %s", sender, tx.From)
	}

	tx.L1TxHash = types.Hash{}
	if _, err := TxSender(tx); !errors.Is(err, ErrDepositNoL1Origin) {
		t.Fatalf("deposit without L1 origin = %v, want %v", err, ErrDepositNoL1Origin)
	}
}

package types

import (
	"errors"
	"testing"
)

func TestAccountStateRoundTrip(t *testing.T) {
	acc := &AccountState{
		Balance:      12_345,
		Nonce:        7,
		CodeHash:     HashBytes([]byte("code")),
		StorageRoot:  HashBytes([]byte("storage")),
		HATScore:     42,
		LastActivity: 100,
	}
	enc, err := acc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dec, err := DecodeAccountState(enc)
	if err != nil {
		t.Fatalf("DecodeAccountState: %v", err)
	}
	if dec != *acc {
		t.Fatalf("round trip mismatch: got %+v, want %+v", dec, acc)
	}
}

func TestDecodeEmptyAccount(t *testing.T) {
	dec, err := DecodeAccountState(nil)
	if err != nil {
		t.Fatalf("DecodeAccountState(nil): %v", err)
	}
	if !dec.IsEmpty() {
		t.Fatalf("decoded account not empty: %+v", dec)
	}
}

func TestAccountValidate(t *testing.T) {
	acc := &AccountState{Balance: -1}
	if err := acc.Validate(); !errors.Is(err, ErrNegativeBalance) {
		t.Fatalf("Validate() = %v, want %v", err, ErrNegativeBalance)
	}
	acc = &AccountState{HATScore: MaxHATScore + 1}
	if err := acc.Validate(); !errors.Is(err, ErrHATScoreOutOfRange) {
		t.Fatalf("Validate() = %v, want %v", err, ErrHATScoreOutOfRange)
	}
}

func TestAddressKeyRoundTrip(t *testing.T) {
	addr := HexToAddress("0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	key := AddressKey(addr)
	if got := KeyAddress(key); got != addr {
		t.Fatalf("KeyAddress(AddressKey(a)) = %s, want %s", got, addr)
	}
}

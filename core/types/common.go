// Package types defines the core Cascoin L2 data structures: hashes,
// addresses, account states, transactions and blocks.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

const (
	HashLength    = 32
	AddressLength = 20
)

// Hash represents the 32-byte double-SHA256 hash of data.
type Hash [HashLength]byte

// Address represents the 20-byte Hash160 of a compressed public key.
type Address [AddressLength]byte

// BytesToHash converts bytes to Hash, left-padding if shorter than 32 bytes.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// HexToHash converts a hex string (with or without 0x prefix) to Hash.
func HexToHash(s string) Hash {
	return BytesToHash(fromHex(s))
}

// Bytes returns the byte representation of the hash.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the hex string representation of the hash.
func (h Hash) Hex() string { return fmt.Sprintf("0x%x", h[:]) }

// SetBytes sets the hash from a byte slice, left-padding if necessary.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

// IsZero returns whether the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// BytesToAddress converts bytes to Address, left-padding if shorter than 20 bytes.
func BytesToAddress(b []byte) Address {
	var a Address
	a.SetBytes(b)
	return a
}

// HexToAddress converts a hex string to Address.
func HexToAddress(s string) Address {
	return BytesToAddress(fromHex(s))
}

// Bytes returns the byte representation of the address.
func (a Address) Bytes() []byte { return a[:] }

// Hex returns the hex string representation of the address.
func (a Address) Hex() string { return fmt.Sprintf("0x%x", a[:]) }

// SetBytes sets the address from a byte slice.
func (a *Address) SetBytes(b []byte) {
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

// IsZero returns whether the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String implements fmt.Stringer.
func (a Address) String() string { return a.Hex() }

// AddressKey converts an address into its 256-bit state tree key. The
// address occupies the leading 20 bytes; the remainder is zero.
func AddressKey(a Address) Hash {
	var k Hash
	copy(k[:AddressLength], a[:])
	return k
}

// KeyAddress extracts the address from a state tree key produced by
// AddressKey.
func KeyAddress(k Hash) Address {
	var a Address
	copy(a[:], k[:AddressLength])
	return a
}

// HashBytes computes the canonical chain digest (double SHA-256) over the
// concatenation of the given byte slices.
func HashBytes(data ...[]byte) Hash {
	h := sha256.New()
	for _, b := range data {
		h.Write(b)
	}
	first := h.Sum(nil)
	return Hash(sha256.Sum256(first))
}

// RLPHash computes the chain digest of the RLP encoding of v. It is the
// hashing primitive for all structured values (transactions, headers,
// account states).
func RLPHash(v any) Hash {
	enc, err := rlp.EncodeToBytes(v)
	if err != nil {
		// All hashed types in this package are RLP-encodable by
		// construction; an error here is a programming bug.
		panic(fmt.Sprintf("types: RLP encoding failed: %v", err))
	}
	return HashBytes(enc)
}

func fromHex(s string) []byte {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

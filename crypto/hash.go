// Package crypto provides the hashing and secp256k1 signature primitives
// shared by the L2 state machine, consensus, and bridge.
package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160"

	"github.com/cascoin/cascoin-l2/core/types"
)

// Hash160 returns RIPEMD160(SHA256(data)), the digest behind L2 addresses.
func Hash160(data []byte) [20]byte {
	sha := sha256.Sum256(data)
	rip := ripemd160.New()
	rip.Write(sha[:])
	var out [20]byte
	copy(out[:], rip.Sum(nil))
	return out
}

// Hash160Address returns the address form of Hash160(data).
func Hash160Address(data []byte) types.Address {
	h := Hash160(data)
	return types.BytesToAddress(h[:])
}

// DoubleSHA256 returns SHA256(SHA256(data)).
func DoubleSHA256(data []byte) types.Hash {
	return types.HashBytes(data)
}

package crypto

import (
	"crypto/ecdsa"
	"errors"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/cascoin/cascoin-l2/core/types"
)

var (
	ErrInvalidSignatureLen = errors.New("crypto: signature must be 65 bytes")
	ErrInvalidPubKey       = errors.New("crypto: invalid compressed public key")
	ErrRecoveryFailed      = errors.New("crypto: public key recovery failed")
)

// GenerateKey creates a fresh secp256k1 private key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ethcrypto.GenerateKey()
}

// HexToKey parses a secp256k1 private key from its hex encoding, with or
// without a 0x prefix.
func HexToKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	return ethcrypto.HexToECDSA(hexKey)
}

// CompressPubKey returns the 33-byte compressed encoding of pub.
func CompressPubKey(pub *ecdsa.PublicKey) []byte {
	return ethcrypto.CompressPubkey(pub)
}

// DecompressPubKey parses a 33-byte compressed public key.
func DecompressPubKey(data []byte) (*ecdsa.PublicKey, error) {
	pub, err := ethcrypto.DecompressPubkey(data)
	if err != nil {
		return nil, ErrInvalidPubKey
	}
	return pub, nil
}

// PubKeyAddress derives the L2 address of pub: Hash160 over the compressed
// encoding, matching the address committed inside L1 burn outputs.
func PubKeyAddress(pub *ecdsa.PublicKey) types.Address {
	return Hash160Address(CompressPubKey(pub))
}

// KeyAddress derives the L2 address of the key's public half.
func KeyAddress(key *ecdsa.PrivateKey) types.Address {
	return PubKeyAddress(&key.PublicKey)
}

// Sign produces a 65-byte recoverable signature [R || S || V] over digest.
func Sign(digest types.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	return ethcrypto.Sign(digest.Bytes(), key)
}

// RecoverPubKey recovers the signing public key from a 65-byte signature.
func RecoverPubKey(digest types.Hash, sig []byte) (*ecdsa.PublicKey, error) {
	if len(sig) != 65 {
		return nil, ErrInvalidSignatureLen
	}
	pub, err := ethcrypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return nil, ErrRecoveryFailed
	}
	return pub, nil
}

// RecoverAddress recovers the signer's L2 address from a 65-byte signature.
func RecoverAddress(digest types.Hash, sig []byte) (types.Address, error) {
	pub, err := RecoverPubKey(digest, sig)
	if err != nil {
		return types.Address{}, err
	}
	return PubKeyAddress(pub), nil
}

// VerifySignature checks a signature (64 or 65 bytes, V ignored) against a
// compressed public key.
func VerifySignature(compressedPub []byte, digest types.Hash, sig []byte) bool {
	if len(sig) == 65 {
		sig = sig[:64]
	}
	if len(sig) != 64 {
		return false
	}
	return ethcrypto.VerifySignature(compressedPub, digest.Bytes(), sig)
}

package types

import (
	"errors"

	"github.com/ethereum/go-ethereum/rlp"
)

// Account state errors.
var (
	ErrAccountDecode       = errors.New("types: account state decode failed")
	ErrNegativeBalance     = errors.New("types: account balance is negative")
	ErrHATScoreOutOfRange  = errors.New("types: HAT score exceeds 100")
	MaxHATScore     uint32 = 100
)

// AccountState is the full state of an L2 account: balance in satoshis,
// replay-protection nonce, contract code hash and storage root (both zero
// for externally owned accounts), the cached HAT reputation score from L1,
// and the block number of the last activity (used for state rent).
//
// An account is empty when balance, nonce, code hash and storage root are
// all zero; empty accounts are pruned from the state tree rather than
// stored as zero entries.
type AccountState struct {
	Balance      int64
	Nonce        uint64
	CodeHash     Hash
	StorageRoot  Hash
	HATScore     uint32
	LastActivity uint64
}

// rlpAccount is the wire form of AccountState. Balance is encoded unsigned;
// non-negativity is a state invariant enforced before encoding.
type rlpAccount struct {
	Balance      uint64
	Nonce        uint64
	CodeHash     Hash
	StorageRoot  Hash
	HATScore     uint32
	LastActivity uint64
}

// IsEmpty reports whether the account holds no balance, nonce, code or
// storage. Empty accounts are deleted from the state tree.
func (s *AccountState) IsEmpty() bool {
	return s.Balance == 0 && s.Nonce == 0 && s.CodeHash.IsZero() && s.StorageRoot.IsZero()
}

// IsContract reports whether the account has contract code.
func (s *AccountState) IsContract() bool {
	return !s.CodeHash.IsZero()
}

// IsEOA reports whether the account is externally owned (no code).
func (s *AccountState) IsEOA() bool {
	return s.CodeHash.IsZero()
}

// Validate checks the account invariants.
func (s *AccountState) Validate() error {
	if s.Balance < 0 {
		return ErrNegativeBalance
	}
	if s.HATScore > MaxHATScore {
		return ErrHATScoreOutOfRange
	}
	return nil
}

// Hash returns the chain digest of the serialized account state.
func (s *AccountState) Hash() Hash {
	return RLPHash(&rlpAccount{
		Balance:      uint64(s.Balance),
		Nonce:        s.Nonce,
		CodeHash:     s.CodeHash,
		StorageRoot:  s.StorageRoot,
		HATScore:     s.HATScore,
		LastActivity: s.LastActivity,
	})
}

// Encode serializes the account state for storage as a state tree leaf.
func (s *AccountState) Encode() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(&rlpAccount{
		Balance:      uint64(s.Balance),
		Nonce:        s.Nonce,
		CodeHash:     s.CodeHash,
		StorageRoot:  s.StorageRoot,
		HATScore:     s.HATScore,
		LastActivity: s.LastActivity,
	})
}

// DecodeAccountState deserializes a state tree leaf. An empty input decodes
// to the empty account, matching the tree's treatment of absent keys.
func DecodeAccountState(data []byte) (AccountState, error) {
	if len(data) == 0 {
		return AccountState{}, nil
	}
	var enc rlpAccount
	if err := rlp.DecodeBytes(data, &enc); err != nil {
		return AccountState{}, ErrAccountDecode
	}
	return AccountState{
		Balance:      int64(enc.Balance),
		Nonce:        enc.Nonce,
		CodeHash:     enc.CodeHash,
		StorageRoot:  enc.StorageRoot,
		HATScore:     enc.HATScore,
		LastActivity: enc.LastActivity,
	}, nil
}

// Copy returns an independent copy of the account state.
func (s *AccountState) Copy() AccountState {
	return *s
}

package sequencer

import (
	"encoding/binary"
	"errors"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/crypto"
)

var (
	ErrClaimWrongSlot    = errors.New("sequencer: claim for a different slot")
	ErrClaimBadPosition  = errors.New("sequencer: claimed position does not match failover order")
	ErrClaimBadSignature = errors.New("sequencer: claim signature invalid")
	ErrClaimFromFuture   = errors.New("sequencer: claim timestamp too far ahead")
)

// maxClaimDrift bounds how many seconds ahead of local time a claim may
// be stamped.
const maxClaimDrift = 60

// LeadershipClaim announces that a sequencer takes over a slot after the
// leader (or an earlier backup) failed to produce in its window.
type LeadershipClaim struct {
	Claimant       types.Address
	Slot           uint64
	Position       uint32 // 0 = elected leader, 1 = first backup, ...
	Timestamp      uint64
	PreviousLeader types.Address
	Reason         string
	Signature      []byte
}

// SigningHash returns the digest the claimant signs. The reason string is
// advisory and excluded.
func (c *LeadershipClaim) SigningHash() types.Hash {
	var buf [20]byte
	binary.LittleEndian.PutUint64(buf[:8], c.Slot)
	binary.LittleEndian.PutUint32(buf[8:12], c.Position)
	binary.LittleEndian.PutUint64(buf[12:], c.Timestamp)
	return types.HashBytes(c.Claimant.Bytes(), buf[:], c.PreviousLeader.Bytes())
}

// FailoverAt returns the address entitled to the slot at the given
// failover position: 0 is the elected leader, 1 the first backup, and so
// on through the backup list.
func (r *ElectionResult) FailoverAt(position uint32) (types.Address, bool) {
	if position == 0 {
		return r.Leader, true
	}
	i := int(position) - 1
	if i >= len(r.Backups) {
		return types.Address{}, false
	}
	return r.Backups[i], true
}

// ValidateClaim checks a leadership claim against the computed election:
// right slot, the claimed position resolves to the claimant in the
// failover order, a sane timestamp, and the claimant's own signature over
// the claim.
func ValidateClaim(c *LeadershipClaim, res *ElectionResult, now uint64) error {
	if c.Slot != res.Slot {
		return ErrClaimWrongSlot
	}
	want, ok := res.FailoverAt(c.Position)
	if !ok || want != c.Claimant {
		return ErrClaimBadPosition
	}
	if c.Timestamp > now+maxClaimDrift {
		return ErrClaimFromFuture
	}
	signer, err := crypto.RecoverAddress(c.SigningHash(), c.Signature)
	if err != nil || signer != c.Claimant {
		return ErrClaimBadSignature
	}
	return nil
}

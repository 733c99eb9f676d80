package bridge

import (
	"crypto/ecdsa"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/crypto"
	"github.com/cascoin/cascoin-l2/params"
	"github.com/cascoin/cascoin-l2/sequencer"
	"github.com/cascoin/cascoin-l2/state"
)

func burnRecipient(t *testing.T) (key *ecdsa.PrivateKey, pub []byte, addr types.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub = crypto.CompressPubKey(&key.PublicKey)
	return key, pub, crypto.Hash160Address(pub)
}

func burnTx(t *testing.T, chainID uint32, pub []byte, amount int64, confirmations uint64) *L1Transaction {
	t.Helper()
	script, err := EncodeBurnScript(chainID, pub, amount)
	if err != nil {
		t.Fatalf("EncodeBurnScript: %v", err)
	}
	return &L1Transaction{
		Hash:          types.HashBytes([]byte("l1tx"), pub),
		BlockNumber:   100,
		BlockHash:     types.HashBytes([]byte("l1block")),
		Confirmations: confirmations,
		Outputs: []L1TxOutput{
			{Value: 0, Script: []byte{0x76, 0xa9}}, // unrelated output
			{Value: 0, Script: script},
		},
	}
}

func TestParseBurnScriptRoundTrip(t *testing.T) {
	_, pub, addr := burnRecipient(t)
	script, err := EncodeBurnScript(1000, pub, 100*params.Coin)
	if err != nil {
		t.Fatalf("EncodeBurnScript: %v", err)
	}
	if len(script) != burnScriptLen {
		t.Fatalf("script length = %d, want %d", len(script), burnScriptLen)
	}
	data, err := ParseBurnScript(script)
	if err != nil {
		t.Fatalf("ParseBurnScript: %v", err)
	}
	if data.ChainID != 1000 || data.Amount != 100*params.Coin {
		t.Fatalf("parsed %+v", data)
	}
	if data.Recipient != addr {
		t.Fatalf("recipient = %s, want %s", data.Recipient, addr)
	}
}

func TestParseBurnScriptRejections(t *testing.T) {
	_, pub, _ := burnRecipient(t)
	good, err := EncodeBurnScript(1000, pub, params.Coin)
	if err != nil {
		t.Fatalf("EncodeBurnScript: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func([]byte) []byte
		wantErr error
	}{
		{"truncated", func(s []byte) []byte { return s[:len(s)-1] }, ErrNotBurnScript},
		{"extended", func(s []byte) []byte { return append(s, 0) }, ErrNotBurnScript},
		{"not op_return", func(s []byte) []byte { s[0] = 0x51; return s }, ErrNotBurnScript},
		{"wrong push length", func(s []byte) []byte { s[1] = 50; return s }, ErrNotBurnScript},
		{"wrong marker", func(s []byte) []byte { s[2] = 'X'; return s }, ErrBurnBadMarker},
		{"zero amount", func(s []byte) []byte {
			for i := len(s) - 8; i < len(s); i++ {
				s[i] = 0
			}
			return s
		}, ErrBurnBadAmount},
		{"amount over max money", func(s []byte) []byte {
			for i := len(s) - 8; i < len(s); i++ {
				s[i] = 0xff
			}
			return s
		}, ErrBurnBadAmount},
		{"invalid pubkey", func(s []byte) []byte {
			s[2+markerLen+4] = 0x07 // not a valid compressed key prefix
			return s
		}, ErrBurnBadPubKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := append([]byte(nil), good...)
			_, err := ParseBurnScript(tt.mutate(script))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseBurnScript = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBurnOutputIndex(t *testing.T) {
	_, pub, _ := burnRecipient(t)
	tx := burnTx(t, 1000, pub, params.Coin, 6)
	if got := BurnOutputIndex(tx); got != 1 {
		t.Fatalf("BurnOutputIndex = %d, want 1", got)
	}
	if !IsBurnTransaction(tx) {
		t.Fatal("burn transaction not recognized")
	}
	plain := &L1Transaction{Outputs: []L1TxOutput{{Script: []byte{0x76}}}}
	if IsBurnTransaction(plain) {
		t.Fatal("non-burn transaction recognized as burn")
	}
}

func TestBurnValidatorGates(t *testing.T) {
	cfg := params.RegtestParams() // finality depth 1
	_, pub, _ := burnRecipient(t)

	t.Run("wrong chain id", func(t *testing.T) {
		v := NewBurnValidator(cfg, NewBurnRegistry())
		tx := burnTx(t, 9999, pub, params.Coin, 6)
		if _, err := v.ValidateBurn(tx); !errors.Is(err, ErrBurnWrongChain) {
			t.Fatalf("ValidateBurn = %v, want %v", err, ErrBurnWrongChain)
		}
	})
	t.Run("insufficient confirmations", func(t *testing.T) {
		v := NewBurnValidator(cfg, NewBurnRegistry())
		tx := burnTx(t, 1000, pub, params.Coin, 0)
		if _, err := v.ValidateBurn(tx); !errors.Is(err, ErrBurnUnconfirmed) {
			t.Fatalf("ValidateBurn = %v, want %v", err, ErrBurnUnconfirmed)
		}
	})
	t.Run("valid burn recorded", func(t *testing.T) {
		reg := NewBurnRegistry()
		v := NewBurnValidator(cfg, reg)
		tx := burnTx(t, 1000, pub, params.Coin, 6)
		data, err := v.ValidateBurn(tx)
		if err != nil {
			t.Fatalf("ValidateBurn: %v", err)
		}
		rec, ok := reg.Get(tx.Hash)
		if !ok || rec.Amount != data.Amount || rec.Processed {
			t.Fatalf("registry record = %+v", rec)
		}
	})
}

type mintHarness struct {
	cfg       *params.L2Params
	seqReg    *sequencer.Registry
	burnReg   *BurnRegistry
	clock     clockwork.FakeClock
	consensus *MintConsensus
	state     *state.Manager
	minter    *Minter
	keys      []*ecdsa.PrivateKey
	addrs     []types.Address
}

func newMintHarness(t *testing.T, sequencers int) *mintHarness {
	t.Helper()
	cfg := params.RegtestParams()
	h := &mintHarness{
		cfg:     cfg,
		seqReg:  sequencer.NewRegistry(cfg),
		burnReg: NewBurnRegistry(),
		clock:   clockwork.NewFakeClock(),
		state:   state.NewManager(cfg, nil),
	}
	h.consensus = NewMintConsensus(h.seqReg, h.clock)
	h.minter = NewMinter(h.burnReg, h.consensus, h.state)
	for i := 0; i < sequencers; i++ {
		key, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("GenerateKey: %v", err)
		}
		addr := crypto.KeyAddress(key)
		if err := h.seqReg.Register(&sequencer.Info{
			Address:   addr,
			PubKey:    crypto.CompressPubKey(&key.PublicKey),
			Stake:     100 * params.Coin,
			HATScore:  80,
			PeerCount: 5,
		}); err != nil {
			t.Fatalf("Register: %v", err)
		}
		h.keys = append(h.keys, key)
		h.addrs = append(h.addrs, addr)
	}
	return h
}

func (h *mintHarness) confirm(t *testing.T, i int, l1TxHash types.Hash, recipient types.Address, amount int64) (bool, error) {
	t.Helper()
	c := &MintConfirmation{
		L1TxHash:  l1TxHash,
		Recipient: recipient,
		Amount:    amount,
		Sequencer: h.addrs[i],
	}
	sig, err := crypto.Sign(c.SigningHash(), h.keys[i])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	c.Signature = sig
	return h.consensus.SubmitConfirmation(c)
}

func TestMintConsensusFourOfFive(t *testing.T) {
	// A burn of 100 CAS on chain id 1000 with five equal-weight sequencers:
	// 3 of 5 must not authorize the mint, 4 of 5 must, and the recipient is
	// credited exactly once even when the remaining confirmations arrive
	// after consensus.
	h := newMintHarness(t, 5)
	_, pub, recipient := burnRecipient(t)
	tx := burnTx(t, 1000, pub, 100*params.Coin, 6)
	v := NewBurnValidator(h.cfg, h.burnReg)
	if _, err := v.ValidateBurn(tx); err != nil {
		t.Fatalf("ValidateBurn: %v", err)
	}

	for i := 0; i < 3; i++ {
		reached, err := h.confirm(t, i, tx.Hash, recipient, 100*params.Coin)
		if err != nil {
			t.Fatalf("confirmation %d: %v", i, err)
		}
		if reached {
			t.Fatalf("consensus reached at %d of 5", i+1)
		}
	}
	if _, err := h.minter.ProcessMint(tx.Hash, 10); !errors.Is(err, ErrMintNoConsensus) {
		t.Fatalf("mint before consensus = %v, want %v", err, ErrMintNoConsensus)
	}

	reached, err := h.confirm(t, 3, tx.Hash, recipient, 100*params.Coin)
	if err != nil {
		t.Fatalf("confirmation 4: %v", err)
	}
	if !reached {
		t.Fatal("4 of 5 did not reach mint consensus")
	}
	ev, err := h.minter.ProcessMint(tx.Hash, 10)
	if err != nil {
		t.Fatalf("ProcessMint: %v", err)
	}
	if ev.Amount != 100*params.Coin {
		t.Fatalf("mint event amount = %d", ev.Amount)
	}
	if got := h.state.GetAccountState(recipient).Balance; got != 100*params.Coin {
		t.Fatalf("recipient balance = %d, want %d", got, 100*params.Coin)
	}

	// The fifth confirmation arrives late; replaying the mint must not
	// credit again.
	if _, err := h.confirm(t, 4, tx.Hash, recipient, 100*params.Coin); err != nil {
		t.Fatalf("late confirmation: %v", err)
	}
	if _, err := h.minter.ProcessMint(tx.Hash, 11); err == nil {
		t.Fatal("replayed mint succeeded")
	}
	if got := h.state.GetAccountState(recipient).Balance; got != 100*params.Coin {
		t.Fatalf("balance after replay = %d, want %d", got, 100*params.Coin)
	}
	if got := h.state.TotalSupply(); got != 100*params.Coin {
		t.Fatalf("TotalSupply = %d, want %d", got, 100*params.Coin)
	}
}

func TestConfirmationUniqueness(t *testing.T) {
	h := newMintHarness(t, 5)
	_, _, recipient := burnRecipient(t)
	l1 := types.HashBytes([]byte("burn"))

	if _, err := h.confirm(t, 0, l1, recipient, params.Coin); err != nil {
		t.Fatalf("first confirmation: %v", err)
	}
	_, err := h.confirm(t, 0, l1, recipient, params.Coin)
	if !errors.Is(err, ErrConfirmationDuplicate) {
		t.Fatalf("duplicate confirmation = %v, want %v", err, ErrConfirmationDuplicate)
	}
	// Still only one sequencer's weight behind the burn.
	if h.consensus.HasConsensus(l1) {
		t.Fatal("single sequencer reached consensus via duplicates")
	}
}

func TestConfirmationTupleMustMatch(t *testing.T) {
	h := newMintHarness(t, 3)
	_, _, recipient := burnRecipient(t)
	other := types.HexToAddress("0x9999999999999999999999999999999999999999")
	l1 := types.HashBytes([]byte("burn"))

	// Two of three confirm different tuples: no consensus.
	if _, err := h.confirm(t, 0, l1, recipient, params.Coin); err != nil {
		t.Fatalf("confirm 0: %v", err)
	}
	if _, err := h.confirm(t, 1, l1, other, params.Coin); err != nil {
		t.Fatalf("confirm 1: %v", err)
	}
	if h.consensus.HasConsensus(l1) {
		t.Fatal("disagreeing tuples reached consensus")
	}
	// A third matching the first makes 2 of 3 on an identical tuple.
	if _, err := h.confirm(t, 2, l1, recipient, params.Coin); err != nil {
		t.Fatalf("confirm 2: %v", err)
	}
	if !h.consensus.HasConsensus(l1) {
		t.Fatal("identical 2-of-3 tuple did not reach consensus")
	}
}

func TestMintConsensusMinimumSequencers(t *testing.T) {
	h := newMintHarness(t, 2) // below MinMintSequencers
	_, _, recipient := burnRecipient(t)
	l1 := types.HashBytes([]byte("burn"))

	_, err := h.confirm(t, 0, l1, recipient, params.Coin)
	if !errors.Is(err, ErrTooFewSequencers) {
		t.Fatalf("confirmation with tiny set = %v, want %v", err, ErrTooFewSequencers)
	}
}

func TestMintConsensusTimeout(t *testing.T) {
	h := newMintHarness(t, 5)
	_, _, recipient := burnRecipient(t)
	l1 := types.HashBytes([]byte("burn"))

	if _, err := h.confirm(t, 0, l1, recipient, params.Coin); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	h.clock.Advance(params.MintConsensusTimeout*time.Second + time.Second)
	_, err := h.confirm(t, 1, l1, recipient, params.Coin)
	if !errors.Is(err, ErrMintExpired) {
		t.Fatalf("confirmation after timeout = %v, want %v", err, ErrMintExpired)
	}
	if h.consensus.ExpirePending() != 0 {
		// The expired entry was already dropped on submission.
		t.Fatal("expired entry survived")
	}
}

func TestConfirmationSignatureChecks(t *testing.T) {
	h := newMintHarness(t, 3)
	_, _, recipient := burnRecipient(t)
	l1 := types.HashBytes([]byte("burn"))

	c := &MintConfirmation{L1TxHash: l1, Recipient: recipient, Amount: params.Coin, Sequencer: h.addrs[0]}
	sig, err := crypto.Sign(c.SigningHash(), h.keys[1]) // wrong key
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	c.Signature = sig
	if _, err := h.consensus.SubmitConfirmation(c); !errors.Is(err, ErrConfirmationBadSig) {
		t.Fatalf("forged confirmation = %v, want %v", err, ErrConfirmationBadSig)
	}

	stranger, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	c2 := &MintConfirmation{L1TxHash: l1, Recipient: recipient, Amount: params.Coin, Sequencer: crypto.KeyAddress(stranger)}
	sig2, err := crypto.Sign(c2.SigningHash(), stranger)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	c2.Signature = sig2
	if _, err := h.consensus.SubmitConfirmation(c2); !errors.Is(err, ErrConfirmationUnknown) {
		t.Fatalf("unregistered confirmation = %v, want %v", err, ErrConfirmationUnknown)
	}
}

func TestBurnRegistryReorg(t *testing.T) {
	reg := NewBurnRegistry()
	reg.Record(&BurnRecord{L1TxHash: types.HashBytes([]byte("a")), L1Block: 90})
	reg.Record(&BurnRecord{L1TxHash: types.HashBytes([]byte("b")), L1Block: 100})
	processed := &BurnRecord{L1TxHash: types.HashBytes([]byte("c")), L1Block: 100}
	reg.Record(processed)
	if err := reg.markProcessed(processed.L1TxHash, 5); err != nil {
		t.Fatalf("markProcessed: %v", err)
	}

	dropped := reg.HandleReorg(100)
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
	if _, ok := reg.Get(types.HashBytes([]byte("a"))); !ok {
		t.Fatal("pre-reorg record dropped")
	}
	if _, ok := reg.Get(types.HashBytes([]byte("b"))); ok {
		t.Fatal("reorged unprocessed record kept")
	}
	if !reg.IsProcessed(processed.L1TxHash) {
		t.Fatal("processed record forgotten on reorg")
	}
}

func TestBurnRegistryRecipientIndex(t *testing.T) {
	reg := NewBurnRegistry()
	alice := types.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob := types.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	reg.Record(&BurnRecord{L1TxHash: types.HashBytes([]byte("a1")), L1Block: 90, Recipient: alice, Amount: 10})
	reg.Record(&BurnRecord{L1TxHash: types.HashBytes([]byte("a2")), L1Block: 100, Recipient: alice, Amount: 20})
	reg.Record(&BurnRecord{L1TxHash: types.HashBytes([]byte("b1")), L1Block: 100, Recipient: bob, Amount: 5})

	if got := reg.TotalBurned(); got != 35 {
		t.Fatalf("TotalBurned = %d, want 35", got)
	}
	burns := reg.BurnsFor(alice)
	if len(burns) != 2 || burns[0].Amount != 10 || burns[1].Amount != 20 {
		t.Fatalf("BurnsFor(alice) = %+v", burns)
	}
	if got := reg.BurnsFor(bob); len(got) != 1 {
		t.Fatalf("BurnsFor(bob) = %+v", got)
	}
	stranger := types.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	if got := reg.BurnsFor(stranger); got != nil {
		t.Fatalf("BurnsFor(stranger) = %+v", got)
	}

	// Reorging out the block-100 burns unwinds both the index and the total.
	if dropped := reg.HandleReorg(100); dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
	if got := reg.TotalBurned(); got != 10 {
		t.Fatalf("TotalBurned after reorg = %d, want 10", got)
	}
	if got := reg.BurnsFor(alice); len(got) != 1 || got[0].Amount != 10 {
		t.Fatalf("BurnsFor(alice) after reorg = %+v", got)
	}
	if got := reg.BurnsFor(bob); got != nil {
		t.Fatalf("BurnsFor(bob) after reorg = %+v", got)
	}
}

func TestMinterSupplyInvariant(t *testing.T) {
	h := newMintHarness(t, 3)
	_, pub, recipient := burnRecipient(t)
	tx := burnTx(t, 1000, pub, 100*params.Coin, 6)
	v := NewBurnValidator(h.cfg, h.burnReg)
	if _, err := v.ValidateBurn(tx); err != nil {
		t.Fatalf("ValidateBurn: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := h.confirm(t, i, tx.Hash, recipient, 100*params.Coin); err != nil {
			t.Fatalf("confirm %d: %v", i, err)
		}
	}
	if err := h.minter.VerifySupplyInvariant(); err != nil {
		t.Fatalf("VerifySupplyInvariant before mint: %v", err)
	}

	// Credit state outside the bridge path; the pending mint would now push
	// the minted total past what was burned on L1.
	other := types.HexToAddress("0x9999999999999999999999999999999999999999")
	if err := h.state.Mint(other, params.Coin, 0); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if _, err := h.minter.ProcessMint(tx.Hash, 10); !errors.Is(err, ErrSupplyExceeded) {
		t.Fatalf("ProcessMint = %v, want %v", err, ErrSupplyExceeded)
	}
	if h.burnReg.IsProcessed(tx.Hash) {
		t.Fatal("refused mint left the burn marked processed")
	}
	if got := h.state.GetAccountState(recipient).Balance; got != 0 {
		t.Fatalf("recipient balance = %d, want 0", got)
	}

	if err := h.state.Mint(other, 100*params.Coin, 0); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := h.minter.VerifySupplyInvariant(); !errors.Is(err, ErrSupplyExceeded) {
		t.Fatalf("VerifySupplyInvariant = %v, want %v", err, ErrSupplyExceeded)
	}
}

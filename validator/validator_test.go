package validator

import (
	"testing"
	"time"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/crypto"
	"github.com/cascoin/cascoin-l2/params"
	"github.com/cascoin/cascoin-l2/sequencer"
	"github.com/cascoin/cascoin-l2/state"
)

type harness struct {
	cfg       *params.L2Params
	registry  *sequencer.Registry
	consensus *sequencer.Consensus
	state     *state.Manager
	validator *BlockValidator
	keys      []*keyed
}

type keyed struct {
	addr types.Address
}

func newHarness(t *testing.T, sequencers int) *harness {
	t.Helper()
	cfg := params.RegtestParams()
	reg := sequencer.NewRegistry(cfg)
	h := &harness{
		cfg:      cfg,
		registry: reg,
		state:    state.NewManager(cfg, nil),
	}
	h.consensus = sequencer.NewConsensus(reg, 2, 3)
	h.validator = New(cfg, reg, h.consensus, h.state)
	for i := 0; i < sequencers; i++ {
		key, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("GenerateKey: %v", err)
		}
		info := &sequencer.Info{
			Address:   crypto.KeyAddress(key),
			PubKey:    crypto.CompressPubKey(&key.PublicKey),
			Stake:     100 * params.Coin,
			HATScore:  80,
			PeerCount: 5,
		}
		if err := reg.Register(info); err != nil {
			t.Fatalf("Register: %v", err)
		}
		h.keys = append(h.keys, &keyed{addr: info.Address})
	}
	return h
}

func genesisHeader(cfg *params.L2Params, seq types.Address, stateRoot types.Hash) *types.BlockHeader {
	return &types.BlockHeader{
		Number:    0,
		StateRoot: stateRoot,
		Sequencer: seq,
		Timestamp: 1_700_000_000,
		GasLimit:  cfg.BlockGasLimit,
		ChainID:   cfg.ChainID,
	}
}

func childHeader(parent *types.BlockHeader) *types.BlockHeader {
	return &types.BlockHeader{
		Number:     parent.Number + 1,
		ParentHash: parent.Hash(),
		Sequencer:  parent.Sequencer,
		Timestamp:  parent.Timestamp + 2,
		GasLimit:   parent.GasLimit,
		ChainID:    parent.ChainID,
		Slot:       parent.Slot + 1,
	}
}

func TestValidateHeaderGenesis(t *testing.T) {
	h := newHarness(t, 1)
	g := genesisHeader(h.cfg, h.keys[0].addr, types.Hash{})

	if r := h.validator.ValidateHeader(g, nil); !r.Valid {
		t.Fatalf("genesis rejected: %s (%s)", r.Code, r.Msg)
	}

	bad := *g
	bad.ParentHash = types.HashBytes([]byte("x"))
	if r := h.validator.ValidateHeader(&bad, nil); r.Valid || r.Code != CodeBadParentHash {
		t.Fatalf("genesis with parent hash: %+v", r)
	}

	bad = *g
	bad.Number = 1
	if r := h.validator.ValidateHeader(&bad, nil); r.Valid || r.Code != CodeBadNumber {
		t.Fatalf("non-genesis without parent: %+v", r)
	}
}

func TestValidateHeaderRelativeRules(t *testing.T) {
	h := newHarness(t, 1)
	parent := genesisHeader(h.cfg, h.keys[0].addr, types.Hash{})

	tests := []struct {
		name   string
		mutate func(*types.BlockHeader)
		code   Code
	}{
		{"valid child", func(c *types.BlockHeader) {}, CodeOK},
		{"wrong chain id", func(c *types.BlockHeader) { c.ChainID = 9 }, CodeBadChainID},
		{"number gap", func(c *types.BlockHeader) { c.Number = 3 }, CodeBadNumber},
		{"wrong parent hash", func(c *types.BlockHeader) {
			c.ParentHash = types.HashBytes([]byte("wrong"))
		}, CodeBadParentHash},
		{"timestamp equal to parent", func(c *types.BlockHeader) {
			c.Timestamp = parent.Timestamp
		}, CodeBadTimestamp},
		{"timestamp before parent", func(c *types.BlockHeader) {
			c.Timestamp = parent.Timestamp - 1
		}, CodeBadTimestamp},
		{"gas limit jump up", func(c *types.BlockHeader) {
			c.GasLimit = parent.GasLimit + parent.GasLimit/params.GasLimitBoundDivisor + 1
		}, CodeBadGasLimit},
		{"gas limit jump down", func(c *types.BlockHeader) {
			c.GasLimit = parent.GasLimit - parent.GasLimit/params.GasLimitBoundDivisor - 1
		}, CodeBadGasLimit},
		{"gas limit max allowed move", func(c *types.BlockHeader) {
			c.GasLimit = parent.GasLimit + parent.GasLimit/params.GasLimitBoundDivisor
		}, CodeOK},
		{"gas used over limit", func(c *types.BlockHeader) {
			c.GasUsed = c.GasLimit + 1
		}, CodeBadGasLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			child := childHeader(parent)
			tt.mutate(child)
			r := h.validator.ValidateHeader(child, parent)
			if r.Code != tt.code {
				t.Fatalf("code = %s, want %s (%s)", r.Code, tt.code, r.Msg)
			}
		})
	}
}

func TestGasOverflowRejectedBeforeApplication(t *testing.T) {
	h := newHarness(t, 1)
	parent := genesisHeader(h.cfg, h.keys[0].addr, h.state.Root())
	h.state.CreateSnapshot(0, types.Hash{})
	stateBefore := h.state.Root()

	child := childHeader(parent)
	child.GasUsed = child.GasLimit + 1
	block := types.NewBlock(child, nil)

	r := h.validator.ValidateBlock(block, parent, time.Now())
	if r.Valid {
		t.Fatal("block with gasUsed > gasLimit accepted")
	}
	if h.state.Root() != stateBefore {
		t.Fatal("rejected block touched state")
	}
}

func TestValidateStateTransition(t *testing.T) {
	h := newHarness(t, 1)
	alice := types.HexToAddress("0x1111111111111111111111111111111111111111")
	bob := types.HexToAddress("0x2222222222222222222222222222222222222222")
	if err := h.state.Mint(alice, 1_000_000, 0); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	parentRoot := h.state.CreateSnapshot(0, types.Hash{})

	tx := &types.Transaction{
		From: alice, To: bob, Value: 500, Nonce: 0,
		GasLimit: 21_000, GasPrice: 1,
		Type: types.TxTransfer, ChainID: h.cfg.ChainID,
	}

	// Compute the honest post-root on a detached copy.
	replay, err := h.state.StateAt(parentRoot)
	if err != nil {
		t.Fatalf("StateAt: %v", err)
	}
	if _, err := replay.ApplyBatch([]*types.Transaction{tx}, 1); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	honestRoot := replay.Root()

	parent := genesisHeader(h.cfg, h.keys[0].addr, parentRoot)
	child := childHeader(parent)
	child.StateRoot = honestRoot
	block := types.NewBlock(child, []*types.Transaction{tx})

	if r := h.validator.ValidateStateTransition(block, parentRoot); !r.Valid {
		t.Fatalf("honest transition rejected: %s (%s)", r.Code, r.Msg)
	}

	// A forged declared root must be REJECTED with state-mismatch.
	forged := childHeader(parent)
	forged.StateRoot = types.HashBytes([]byte("forged"))
	forgedBlock := types.NewBlock(forged, []*types.Transaction{tx})
	r := h.validator.ValidateStateTransition(forgedBlock, parentRoot)
	if r.Valid || r.Code != CodeStateMismatch {
		t.Fatalf("forged root result = %+v, want state-mismatch", r)
	}
}

func TestValidateSignatures(t *testing.T) {
	cfg := params.RegtestParams()
	reg := sequencer.NewRegistry(cfg)
	st := state.NewManager(cfg, nil)
	cons := sequencer.NewConsensus(reg, 2, 3)
	v := New(cfg, reg, cons, st)

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	addr := crypto.KeyAddress(key)
	if err := reg.Register(&sequencer.Info{
		Address: addr, PubKey: crypto.CompressPubKey(&key.PublicKey),
		Stake: 100 * params.Coin, HATScore: 80, PeerCount: 5,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	header := genesisHeader(cfg, addr, types.Hash{})
	block := types.NewBlock(header, nil)
	sig, err := crypto.Sign(block.Hash(), key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	block.Signatures = []types.SequencerSignature{{Sequencer: addr, Signature: sig}}

	if r := v.ValidateSignatures(block); !r.Valid {
		t.Fatalf("valid signature set rejected: %s (%s)", r.Code, r.Msg)
	}

	// Duplicate signer.
	block.Signatures = append(block.Signatures, types.SequencerSignature{Sequencer: addr, Signature: sig})
	if r := v.ValidateSignatures(block); r.Valid || r.Code != CodeDuplicateSignature || r.Index != 1 {
		t.Fatalf("duplicate signer result = %+v", r)
	}

	// Unknown signer.
	stranger, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	ssig, err := crypto.Sign(block.Hash(), stranger)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	block.Signatures = []types.SequencerSignature{{Sequencer: crypto.KeyAddress(stranger), Signature: ssig}}
	if r := v.ValidateSignatures(block); r.Valid || r.Code != CodeUnknownSigner {
		t.Fatalf("unknown signer result = %+v", r)
	}

	// Signature that does not recover the claimed signer.
	block.Signatures = []types.SequencerSignature{{Sequencer: addr, Signature: ssig}}
	if r := v.ValidateSignatures(block); r.Valid || r.Code != CodeBadSignature {
		t.Fatalf("mismatched signature result = %+v", r)
	}
}

func TestCandidateLifecycle(t *testing.T) {
	h := newHarness(t, 1)
	set := NewCandidateSet()
	header := genesisHeader(h.cfg, h.keys[0].addr, types.Hash{})
	block := types.NewBlock(header, nil)
	hash := block.Hash()

	c := set.Propose(block)
	if c.Status != StatusProposed {
		t.Fatalf("initial status = %s", c.Status)
	}
	if err := set.Finalize(hash); err == nil {
		t.Fatal("finalized straight from PROPOSED")
	}
	if err := set.MarkPending(hash); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}
	if err := set.Finalize(hash); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !block.Finalized {
		t.Fatal("finalize did not set the block flag")
	}
	if err := set.Reject(hash, fail(CodeStateMismatch, -1, "late")); err == nil {
		t.Fatal("rejected a finalized candidate")
	}
}

func TestCandidateRejectRecordsReason(t *testing.T) {
	h := newHarness(t, 1)
	set := NewCandidateSet()
	block := types.NewBlock(genesisHeader(h.cfg, h.keys[0].addr, types.Hash{}), nil)
	set.Propose(block)

	reason := fail(CodeStateMismatch, -1, "declared root mismatch")
	if err := set.Reject(block.Hash(), reason); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	c, err := set.Get(block.Hash())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.Status != StatusRejected || c.Reason.Code != CodeStateMismatch {
		t.Fatalf("candidate after reject = %+v", c)
	}
}

package node

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cascoin/cascoin-l2/bridge"
	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/crypto"
	"github.com/cascoin/cascoin-l2/fraud"
	"github.com/cascoin/cascoin-l2/kvstore"
	"github.com/cascoin/cascoin-l2/log"
	"github.com/cascoin/cascoin-l2/metrics"
	"github.com/cascoin/cascoin-l2/params"
	"github.com/cascoin/cascoin-l2/ratelimit"
	"github.com/cascoin/cascoin-l2/reorg"
	"github.com/cascoin/cascoin-l2/sequencer"
	"github.com/cascoin/cascoin-l2/state"
	"github.com/cascoin/cascoin-l2/validator"
)

// Node is the top-level L2 node that manages all subsystems.
type Node struct {
	config *Config
	chain  *params.L2Params
	log    *log.Logger

	// Subsystems.
	db            kvstore.Store
	state         *state.Manager
	registry      *sequencer.Registry
	consensus     *sequencer.Consensus
	validator     *validator.BlockValidator
	candidates    *validator.CandidateSet
	burnRegistry  *bridge.BurnRegistry
	burnValidator *bridge.BurnValidator
	mintConsensus *bridge.MintConsensus
	minter        *bridge.Minter
	fraudVerifier *fraud.Verifier
	reorgMonitor  *reorg.Monitor
	reorgRecovery *reorg.Recovery
	limiter       *ratelimit.Limiter
	events        *EventBus

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// New creates a Node with the given configuration. It initializes every
// subsystem but does not start any of them.
func New(config *Config) (*Node, error) {
	if config == nil {
		c := DefaultConfig()
		config = &c
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.SetDefault(log.New(log.ParseLevel(config.LogLevel)))

	n := &Node{
		config: config,
		chain:  config.ChainParams(),
		log:    log.Module("node"),
		stop:   make(chan struct{}),
	}

	if config.MemoryDB {
		n.db = kvstore.NewMemoryStore()
	} else {
		db, err := kvstore.OpenLevelStore(config.DBPath())
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		n.db = db
	}

	n.state = state.NewManager(n.chain, n.db)
	if config.FeeCollector != "" {
		n.state.SetFeeCollector(types.HexToAddress(config.FeeCollector))
	}

	n.registry = sequencer.NewRegistry(n.chain)
	n.consensus = sequencer.NewConsensus(n.registry,
		params.MintThresholdNumerator, params.MintThresholdDenominator)
	n.validator = validator.New(n.chain, n.registry, n.consensus, n.state)
	n.candidates = validator.NewCandidateSet()

	n.burnRegistry = bridge.NewBurnRegistry()
	n.burnValidator = bridge.NewBurnValidator(n.chain, n.burnRegistry)
	n.mintConsensus = bridge.NewMintConsensus(n.registry, clockwork.NewRealClock())
	n.minter = bridge.NewMinter(n.burnRegistry, n.mintConsensus, n.state)

	n.events = NewEventBus(64)
	n.minter.OnMint(func(ev bridge.MintEvent) {
		metrics.MintsProcessed.Inc()
		n.events.Publish(EventMint, ev)
	})

	n.fraudVerifier = fraud.NewVerifier(n.state.StateAt)
	n.reorgMonitor = reorg.NewMonitor(n.chain)
	n.reorgRecovery = reorg.NewRecovery(n.reorgMonitor, n.state)
	n.limiter = ratelimit.NewLimiter(n.chain, clockwork.NewRealClock())

	if config.SequencerKeyHex != "" {
		if err := n.registerSelf(config.SequencerKeyHex); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// registerSelf places this node's own sequencer identity into the
// registry so it participates in election and consensus.
func (n *Node) registerSelf(keyHex string) error {
	key, err := crypto.HexToKey(keyHex)
	if err != nil {
		return fmt.Errorf("sequencer key: %w", err)
	}
	addr := crypto.KeyAddress(key)
	info := &sequencer.Info{
		Address:   addr,
		PubKey:    crypto.CompressPubKey(&key.PublicKey),
		Stake:     n.chain.MinSequencerStake,
		HATScore:  n.chain.MinSequencerHATScore,
		PeerCount: n.chain.MinSequencerPeerCount,
	}
	if err := n.registry.Register(info); err != nil {
		return fmt.Errorf("register sequencer: %w", err)
	}
	n.log.Info("registered local sequencer", "addr", addr)
	return nil
}

// Start starts the node.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return errors.New("node: already running")
	}
	n.log.Info("starting node",
		"network", n.chain.Name, "chainID", n.chain.ChainID,
		"stateRoot", n.state.Root())
	n.running = true
	return nil
}

// Stop shuts the node down and closes the store. Stopping a node that is
// not running is a no-op.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running {
		return nil
	}
	n.log.Info("stopping node")
	n.events.Close()
	if err := n.db.Close(); err != nil {
		n.log.Error("store close", "err", err)
	}
	n.running = false
	close(n.stop)
	return nil
}

// Wait blocks until the node is stopped.
func (n *Node) Wait() {
	<-n.stop
}

// Running reports whether the node is currently running.
func (n *Node) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

// SubmitTransaction runs a transaction through the spam filter and
// applies it to pending state. The rate limiter budget is consumed only
// on successful application.
func (n *Node) SubmitTransaction(tx *types.Transaction, blockNumber uint64) (*types.Receipt, error) {
	if err := tx.ValidateStructure(); err != nil {
		return nil, err
	}
	v := n.limiter.Check(tx.From, tx.GasPrice, tx.GasLimit)
	if !v.Allowed {
		metrics.RateLimited.Inc()
		return nil, fmt.Errorf("node: rejected, retry in %d blocks: %s",
			v.RetryAfterBlocks, v.Reason)
	}
	receipt, err := n.state.ApplyTransaction(tx, blockNumber)
	if err != nil {
		metrics.TxRejected.Inc()
		return nil, err
	}
	metrics.TxApplied.Inc()
	metrics.TotalSupply.Set(n.state.TotalSupply())
	n.limiter.Record(tx.From, receipt.GasUsed)
	n.reorgRecovery.LogTransaction(blockNumber, tx)
	n.events.Publish(EventTxApplied, receipt)
	return receipt, nil
}

// ProcessL1Header feeds an L1 header to the reorg monitor and runs
// recovery when a reorganization is detected.
func (n *Node) ProcessL1Header(h *reorg.L1Header) error {
	ev, err := n.reorgMonitor.ProcessHeader(h)
	if err != nil {
		return err
	}
	metrics.L1Height.Set(int64(h.Number))
	if ev == nil {
		n.reorgMonitor.FinalizeAnchors()
		return nil
	}
	n.burnRegistry.HandleReorg(ev.ForkHeight)
	res, err := n.reorgRecovery.Recover(ev)
	if err != nil {
		// An unrecoverable reorg must halt the node, never be masked.
		n.log.Error("reorg recovery failed", "fork", ev.ForkHeight,
			"depth", ev.Depth, "err", err)
		return err
	}
	metrics.ReorgsDetected.Inc()
	metrics.ReorgTxReplayed.Add(int64(res.Replayed))
	n.events.Publish(EventReorg, ev)
	n.log.Info("recovered from L1 reorg",
		"fork", ev.ForkHeight, "replayed", res.Replayed, "root", res.NewRoot)
	return nil
}

// AnchorState snapshots current L2 state against the tracked L1 tip. The
// caller invokes it every anchor interval.
func (n *Node) AnchorState(l2Block uint64) (types.Hash, error) {
	tip, ok := n.reorgMonitor.Tip()
	if !ok {
		return types.Hash{}, errors.New("node: no L1 tip tracked")
	}
	root := n.state.CreateSnapshot(l2Block, tip.Hash)
	n.reorgMonitor.RecordAnchor(&reorg.AnchorPoint{
		L1Block:     tip.Number,
		L1Hash:      tip.Hash,
		L2Block:     l2Block,
		L2StateRoot: root,
	})
	if err := n.state.PersistSnapshot(root); err != nil {
		n.log.Warn("snapshot persistence failed", "root", root, "err", err)
	}
	metrics.SnapshotCount.Set(int64(n.state.SnapshotCount()))
	n.events.Publish(EventAnchor, root)
	return root, nil
}

// RecordBurn validates an observed L1 burn transaction and records it so
// it can enter mint consensus. All validation gates must pass.
func (n *Node) RecordBurn(tx *bridge.L1Transaction) (*bridge.BurnData, error) {
	data, err := n.burnValidator.ValidateBurn(tx)
	if err != nil {
		return nil, err
	}
	metrics.BurnsRecorded.Inc()
	n.events.Publish(EventBurnRecorded, data)
	return data, nil
}

// ImportBlock validates a proposed block against its parent and tracks
// it as a candidate. Invalid blocks are rejected immediately; valid ones
// move to CONSENSUS_PENDING to wait for signature weight.
func (n *Node) ImportBlock(block *types.Block, parent *types.BlockHeader) (validator.Result, error) {
	n.candidates.Propose(block)
	res := n.validator.ValidateBlock(block, parent, time.Now())
	hash := block.Hash()
	if !res.Valid {
		metrics.BlocksRejected.Inc()
		if err := n.candidates.Reject(hash, res); err != nil {
			return res, err
		}
		n.events.Publish(EventBlockRejected, res)
		return res, nil
	}
	if err := n.candidates.MarkPending(hash); err != nil {
		return res, err
	}
	n.events.Publish(EventBlockProposed, block)
	return res, nil
}

// FinalizeBlock finalizes a pending candidate once enough signature
// weight stands behind it. Insufficient weight leaves the candidate
// pending, it is not a rejection.
func (n *Node) FinalizeBlock(hash types.Hash) error {
	cand, err := n.candidates.Get(hash)
	if err != nil {
		return err
	}
	if !n.validator.HasConsensus(hash) {
		return errors.New("node: block lacks consensus weight")
	}
	if err := n.candidates.Finalize(hash); err != nil {
		return err
	}
	metrics.BlocksFinalized.Inc()
	metrics.ChainHeight.Set(int64(cand.Block.Header.Number))
	n.events.Publish(EventBlockFinal, cand.Block)
	return nil
}

// VerifyFraudProof runs the verifier over p and publishes the verdict.
func (n *Node) VerifyFraudProof(p *fraud.Proof) (*fraud.Verdict, error) {
	verdict, err := n.fraudVerifier.Verify(p)
	if err != nil {
		return nil, err
	}
	metrics.FraudProofsVerified.Inc()
	if verdict.Outcome == fraud.OutcomeValid {
		metrics.SequencersSlashed.Inc()
	}
	n.events.Publish(EventFraudVerdict, verdict)
	return verdict, nil
}

// State returns the state manager.
func (n *Node) State() *state.Manager { return n.state }

// Registry returns the sequencer registry.
func (n *Node) Registry() *sequencer.Registry { return n.registry }

// Consensus returns the block vote tracker.
func (n *Node) Consensus() *sequencer.Consensus { return n.consensus }

// Validator returns the block validator.
func (n *Node) Validator() *validator.BlockValidator { return n.validator }

// Candidates returns the candidate block set.
func (n *Node) Candidates() *validator.CandidateSet { return n.candidates }

// BurnValidator returns the L1 burn validator.
func (n *Node) BurnValidator() *bridge.BurnValidator { return n.burnValidator }

// MintConsensus returns the mint confirmation tracker.
func (n *Node) MintConsensus() *bridge.MintConsensus { return n.mintConsensus }

// Minter returns the bridge minter.
func (n *Node) Minter() *bridge.Minter { return n.minter }

// FraudVerifier returns the fraud proof verifier.
func (n *Node) FraudVerifier() *fraud.Verifier { return n.fraudVerifier }

// Limiter returns the spam limiter.
func (n *Node) Limiter() *ratelimit.Limiter { return n.limiter }

// Events returns the node's event bus.
func (n *Node) Events() *EventBus { return n.events }

// Config returns the node configuration.
func (n *Node) Config() *Config { return n.config }

package metrics

// DefaultRegistry holds the pre-defined node metrics below so they are
// accessible without passing a registry around.
var DefaultRegistry = NewRegistry()

var (
	// ---- Chain metrics ----

	// ChainHeight tracks the latest L2 block number.
	ChainHeight = DefaultRegistry.Gauge("chain.height")
	// BlocksFinalized counts L2 blocks that reached consensus.
	BlocksFinalized = DefaultRegistry.Counter("chain.blocks_finalized")
	// BlocksRejected counts candidate blocks that failed validation or
	// consensus.
	BlocksRejected = DefaultRegistry.Counter("chain.blocks_rejected")
	// BatchApplyTime records batch application duration in milliseconds.
	BatchApplyTime = DefaultRegistry.Histogram("chain.batch_apply_ms")

	// ---- State metrics ----

	// TxApplied counts transactions applied to state.
	TxApplied = DefaultRegistry.Counter("state.txs_applied")
	// TxRejected counts transactions rejected during application.
	TxRejected = DefaultRegistry.Counter("state.txs_rejected")
	// TotalSupply tracks the circulating L2 supply in base units.
	TotalSupply = DefaultRegistry.Gauge("state.total_supply")
	// SnapshotCount tracks retained state snapshots.
	SnapshotCount = DefaultRegistry.Gauge("state.snapshots")

	// ---- Bridge metrics ----

	// BurnsRecorded counts L1 burns accepted by the burn validator.
	BurnsRecorded = DefaultRegistry.Counter("bridge.burns_recorded")
	// MintsProcessed counts completed mints.
	MintsProcessed = DefaultRegistry.Counter("bridge.mints_processed")
	// MintConsensusTime records seconds from burn confirmation to mint.
	MintConsensusTime = DefaultRegistry.Histogram("bridge.mint_consensus_s")

	// ---- L1 tracking metrics ----

	// L1Height tracks the tip of the monitored L1 chain.
	L1Height = DefaultRegistry.Gauge("l1.height")
	// ReorgsDetected counts L1 reorganisation events.
	ReorgsDetected = DefaultRegistry.Counter("l1.reorgs")
	// ReorgTxReplayed counts transactions replayed during recovery.
	ReorgTxReplayed = DefaultRegistry.Counter("l1.reorg_txs_replayed")

	// ---- Fraud proof metrics ----

	// FraudProofsVerified counts fraud proof verdicts by the verifier.
	FraudProofsVerified = DefaultRegistry.Counter("fraud.proofs_verified")
	// SequencersSlashed counts sequencers found to have produced invalid
	// state transitions.
	SequencersSlashed = DefaultRegistry.Counter("fraud.sequencers_slashed")

	// ---- Spam protection metrics ----

	// RateLimited counts submissions rejected by the rate limiter.
	RateLimited = DefaultRegistry.Counter("ratelimit.rejected")
)

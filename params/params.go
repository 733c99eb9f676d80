// Package params holds the chain-wide constants and per-network parameter
// sets for the L2.
package params

// Monetary units. Amounts are denominated in the base unit; one coin is
// 100 million base units.
const (
	Coin     int64 = 100_000_000
	MaxMoney int64 = 21_000_000 * Coin
)

// Consensus and bridge constants shared by every network.
const (
	// MintThresholdNumerator / MintThresholdDenominator is the weighted
	// vote fraction required to confirm a mint. Exactly the threshold
	// passes.
	MintThresholdNumerator   = 2
	MintThresholdDenominator = 3

	// MinMintSequencers is the minimum registered sequencer count before
	// mint consensus can conclude.
	MinMintSequencers = 3

	// MintConsensusTimeout bounds how long a pending mint may wait for
	// confirmations, in seconds.
	MintConsensusTimeout = 600

	// MaxBackupSequencers caps the backup list attached to an election.
	MaxBackupSequencers = 10

	// FraudProofBond is the stake a challenger posts with a fraud proof.
	FraudProofBond = 10 * Coin

	// MinSlashAmount is the smallest penalty applied to a sequencer found
	// to have produced an invalid state transition.
	MinSlashAmount = 50 * Coin

	// ChallengerRewardPercent of the slashed amount goes to the challenger.
	ChallengerRewardPercent = 50

	// MaxBisectionSteps bounds an interactive fraud-proof session.
	MaxBisectionSteps = 256

	// L1FinalityDepth is the burial depth after which an L1 block is
	// treated as final.
	L1FinalityDepth = 6

	// MaxReorgDepth is the deepest L1 reorganization the node attempts to
	// recover from.
	MaxReorgDepth = 100

	// AnchorInterval is the L2 block interval between recorded L1 anchors.
	AnchorInterval = 10

	// TxLogCapacity caps the replay log used during reorg recovery.
	TxLogCapacity = 100_000

	// MaxSnapshots caps retained state snapshots; the oldest is evicted.
	MaxSnapshots = 100

	// MaxBatchSize caps the transactions applied in one atomic batch.
	MaxBatchSize = 1000

	// GasLimitBoundDivisor bounds the per-block gas limit drift to
	// parent/1024 in either direction.
	GasLimitBoundDivisor = 1024

	// MinGasLimit is the floor for a block gas limit.
	MinGasLimit = 5000
)

// Rate limiting and adaptive gas pricing.
const (
	// DefaultAddressTxLimit is the per-block transaction cap for
	// low-reputation addresses.
	DefaultAddressTxLimit = 100

	// HighReputationTxLimit is the per-block cap once an address clears
	// the network's HAT threshold.
	HighReputationTxLimit = 500

	// RateLimitWindowBlocks is how many recent blocks of per-address
	// activity are retained.
	RateLimitWindowBlocks = 10

	// RateLimitCooldownBlocks is how long an address stays limited after
	// exceeding its cap.
	RateLimitCooldownBlocks = 5

	// MinGasPrice prevents zero-fee spam, in base units per gas.
	MinGasPrice int64 = 1

	// BaseGasPrice seeds adaptive pricing, in base units per gas.
	BaseGasPrice int64 = 10

	// MaxGasPriceMultiplier caps congestion pricing at 10x.
	MaxGasPriceMultiplier = 10

	// TargetBlockUtilizationPercent is the utilization adaptive pricing
	// steers toward.
	TargetBlockUtilizationPercent = 50

	// GasPriceAdjustmentPercent is the per-block base fee step.
	GasPriceAdjustmentPercent = 12
)

// BurnScriptMarker prefixes every L1 burn payload.
const BurnScriptMarker = "L2BURN"

// L2Params describes one network.
type L2Params struct {
	// Name is the human-readable network name.
	Name string
	// ChainID distinguishes signatures and burns across networks.
	ChainID uint64
	// SlotDuration is the target seconds between sequencer slots.
	SlotDuration uint64
	// BlockGasLimit is the genesis block gas limit.
	BlockGasLimit uint64
	// MinSequencerStake is the stake floor for election eligibility, in
	// base units.
	MinSequencerStake int64
	// MinSequencerHATScore is the reputation floor for eligibility.
	MinSequencerHATScore uint32
	// MinSequencerPeerCount is the connectivity floor for eligibility.
	MinSequencerPeerCount int
	// FinalityDepth overrides L1FinalityDepth for the network.
	FinalityDepth uint64
	// RateLimitHATThreshold is the HAT score at which an address earns
	// the high-reputation transaction cap.
	RateLimitHATThreshold uint32
}

// MainnetParams returns the production network parameters.
func MainnetParams() *L2Params {
	return &L2Params{
		Name:                  "mainnet",
		ChainID:               1,
		SlotDuration:          2,
		BlockGasLimit:         30_000_000,
		MinSequencerStake:     100 * Coin,
		MinSequencerHATScore:  70,
		MinSequencerPeerCount: 3,
		FinalityDepth:         L1FinalityDepth,
		RateLimitHATThreshold: 70,
	}
}

// TestnetParams returns the public test network parameters.
func TestnetParams() *L2Params {
	return &L2Params{
		Name:                  "testnet",
		ChainID:               2,
		SlotDuration:          2,
		BlockGasLimit:         30_000_000,
		MinSequencerStake:     10 * Coin,
		MinSequencerHATScore:  50,
		MinSequencerPeerCount: 1,
		FinalityDepth:         L1FinalityDepth,
		RateLimitHATThreshold: 50,
	}
}

// RegtestParams returns parameters for local regression testing: a short
// finality depth and no stake floor.
func RegtestParams() *L2Params {
	return &L2Params{
		Name:                  "regtest",
		ChainID:               1000,
		SlotDuration:          1,
		BlockGasLimit:         30_000_000,
		MinSequencerStake:     Coin,
		MinSequencerHATScore:  0,
		MinSequencerPeerCount: 0,
		FinalityDepth:         1,
		RateLimitHATThreshold: 0,
	}
}

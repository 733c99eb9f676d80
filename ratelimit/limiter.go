// Package ratelimit protects the node from transaction spam with
// per-address fixed-window limits and congestion-driven gas pricing.
// Verdicts are non-blocking: a rejected submitter is told to retry later,
// nothing ever queues.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/log"
	"github.com/cascoin/cascoin-l2/params"
)

// idleEviction drops per-address tracking after this much inactivity.
const idleEviction = 30 * time.Minute

// Verdict is the non-blocking answer to a submission attempt.
type Verdict struct {
	Allowed bool
	// Reason is set when the submission was rejected.
	Reason string
	// RetryAfterBlocks hints how long the submitter should wait.
	RetryAfterBlocks uint64
	// Limit and Used describe the address's current window.
	Limit uint32
	Used  uint32
	// RequiredGasPrice is the effective price a transaction must offer.
	RequiredGasPrice int64
}

type addressState struct {
	count        uint32 // txs in the current block
	countBlock   uint64 // block the count belongs to
	hatScore     uint32
	limited      bool
	limitedUntil uint64
	lastActivity time.Time
}

// Limiter tracks per-address submission counts per block. Addresses above
// the network's HAT threshold get the high-reputation cap; exceeding the
// cap puts the address in a cooldown.
type Limiter struct {
	mu    sync.Mutex
	cfg   *params.L2Params
	log   *log.Logger
	clock clockwork.Clock

	addrs  map[types.Address]*addressState
	pricer *GasPricer

	currentBlock uint64
	blockGasUsed uint64
}

// NewLimiter creates a limiter for the network cfg. A nil clock falls
// back to the real clock.
func NewLimiter(cfg *params.L2Params, clock clockwork.Clock) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Limiter{
		cfg:    cfg,
		log:    log.Module("ratelimit"),
		clock:  clock,
		addrs:  make(map[types.Address]*addressState),
		pricer: NewGasPricer(cfg.BlockGasLimit),
	}
}

// Pricer exposes the limiter's gas pricer.
func (l *Limiter) Pricer() *GasPricer { return l.pricer }

// limitFor returns the per-block cap for a HAT score.
func (l *Limiter) limitFor(score uint32) uint32 {
	if score >= l.cfg.RateLimitHATThreshold {
		return params.HighReputationTxLimit
	}
	return params.DefaultAddressTxLimit
}

// Check decides whether addr may submit a transaction right now. It does
// not consume budget; call Record once the transaction is accepted.
func (l *Limiter) Check(addr types.Address, gasPrice int64, gasLimit uint64) Verdict {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.ensureLocked(addr)
	limit := l.limitFor(st.hatScore)
	used := l.usedLocked(st)

	if st.limited && l.currentBlock < st.limitedUntil {
		return Verdict{
			Reason:           "address in rate limit cooldown",
			RetryAfterBlocks: st.limitedUntil - l.currentBlock,
			Limit:            limit,
			Used:             used,
			RequiredGasPrice: l.pricer.EffectiveGasPrice(),
		}
	}
	if used >= limit {
		return Verdict{
			Reason:           fmt.Sprintf("per-block limit of %d reached", limit),
			RetryAfterBlocks: 1,
			Limit:            limit,
			Used:             used,
			RequiredGasPrice: l.pricer.EffectiveGasPrice(),
		}
	}
	if required := l.pricer.EffectiveGasPrice(); gasPrice < required {
		return Verdict{
			Reason:           fmt.Sprintf("gas price %d below required %d", gasPrice, required),
			RetryAfterBlocks: 1,
			Limit:            limit,
			Used:             used,
			RequiredGasPrice: required,
		}
	}
	if l.blockGasUsed+gasLimit > l.cfg.BlockGasLimit {
		return Verdict{
			Reason:           "block gas capacity exhausted",
			RetryAfterBlocks: 1,
			Limit:            limit,
			Used:             used,
			RequiredGasPrice: l.pricer.EffectiveGasPrice(),
		}
	}
	return Verdict{
		Allowed:          true,
		Limit:            limit,
		Used:             used,
		RequiredGasPrice: l.pricer.EffectiveGasPrice(),
	}
}

// Record consumes budget for an accepted transaction. An address pushed
// past its cap enters the cooldown.
func (l *Limiter) Record(addr types.Address, gasUsed uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.ensureLocked(addr)
	if st.countBlock != l.currentBlock {
		st.countBlock = l.currentBlock
		st.count = 0
	}
	st.count++
	st.lastActivity = l.clock.Now()
	l.blockGasUsed += gasUsed

	if st.count > l.limitFor(st.hatScore) && !st.limited {
		st.limited = true
		st.limitedUntil = l.currentBlock + params.RateLimitCooldownBlocks
		l.log.Warn("address rate limited", "addr", addr,
			"until", st.limitedUntil)
	}
}

// SetHATScore updates the cached reputation used to tier the cap.
func (l *Limiter) SetHATScore(addr types.Address, score uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLocked(addr).hatScore = score
}

// Penalize puts an address into cooldown for the given number of blocks.
func (l *Limiter) Penalize(addr types.Address, blocks uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.ensureLocked(addr)
	st.limited = true
	st.limitedUntil = l.currentBlock + blocks
}

// Forgive clears any cooldown on an address.
func (l *Limiter) Forgive(addr types.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok := l.addrs[addr]; ok {
		st.limited = false
		st.limitedUntil = 0
	}
}

// IsLimited reports whether the address is in cooldown right now.
func (l *Limiter) IsLimited(addr types.Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.addrs[addr]
	return ok && st.limited && l.currentBlock < st.limitedUntil
}

// Used reports the transactions the address has consumed in the current
// block.
func (l *Limiter) Used(addr types.Address) uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.addrs[addr]
	if !ok {
		return 0
	}
	return l.usedLocked(st)
}

// OnNewBlock advances the limiter to a new block: the previous block's
// utilization feeds the pricer, per-block counters reset lazily, expired
// cooldowns clear, and idle addresses are evicted.
func (l *Limiter) OnNewBlock(blockNumber uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentBlock != 0 || l.blockGasUsed != 0 {
		l.pricer.RecordBlock(l.currentBlock, l.blockGasUsed)
	}
	l.currentBlock = blockNumber
	l.blockGasUsed = 0

	cutoff := l.clock.Now().Add(-idleEviction)
	for addr, st := range l.addrs {
		if st.limited && blockNumber >= st.limitedUntil {
			st.limited = false
			st.limitedUntil = 0
		}
		if !st.limited && st.lastActivity.Before(cutoff) {
			delete(l.addrs, addr)
		}
	}
}

// Tracked reports how many addresses the limiter currently follows.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.addrs)
}

func (l *Limiter) ensureLocked(addr types.Address) *addressState {
	st, ok := l.addrs[addr]
	if !ok {
		st = &addressState{lastActivity: l.clock.Now()}
		l.addrs[addr] = st
	}
	return st
}

func (l *Limiter) usedLocked(st *addressState) uint32 {
	if st.countBlock != l.currentBlock {
		return 0
	}
	return st.count
}

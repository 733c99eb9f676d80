package ratelimit

import (
	"sync"

	"github.com/cascoin/cascoin-l2/params"
)

type utilizationSample struct {
	block   uint64
	gasUsed uint64
}

// GasPricer adjusts the effective gas price with block utilization,
// EIP-1559 style: above-target blocks raise the price multiplier, idle
// blocks let it decay back toward 1x.
type GasPricer struct {
	mu sync.Mutex

	blockGasLimit uint64
	baseFee       int64
	multiplier    uint32 // 100 = 1x
	history       []utilizationSample
	avgUtil       uint32
}

// NewGasPricer creates a pricer for the given block gas limit.
func NewGasPricer(blockGasLimit uint64) *GasPricer {
	return &GasPricer{
		blockGasLimit: blockGasLimit,
		baseFee:       params.BaseGasPrice,
		multiplier:    100,
	}
}

// RecordBlock feeds one sealed block's gas usage into the utilization
// window and recomputes the multiplier.
func (p *GasPricer) RecordBlock(blockNumber, gasUsed uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.history = append(p.history, utilizationSample{block: blockNumber, gasUsed: gasUsed})
	if len(p.history) > params.RateLimitWindowBlocks {
		p.history = p.history[len(p.history)-params.RateLimitWindowBlocks:]
	}

	var total uint64
	for _, s := range p.history {
		total += s.gasUsed
	}
	avg := total / uint64(len(p.history))
	if p.blockGasLimit > 0 {
		p.avgUtil = uint32(avg * 100 / p.blockGasLimit)
	} else {
		p.avgUtil = 0
	}
	p.multiplier = priceMultiplier(p.avgUtil)
}

// priceMultiplier maps average utilization to a price multiplier where
// 100 means 1x. The multiplier never drops below 1x and is capped at the
// congestion ceiling.
func priceMultiplier(utilizationPercent uint32) uint32 {
	if utilizationPercent <= params.TargetBlockUtilizationPercent {
		return 100
	}
	increase := (utilizationPercent - params.TargetBlockUtilizationPercent) *
		params.GasPriceAdjustmentPercent / 100
	if increase > 100*(params.MaxGasPriceMultiplier-1) {
		increase = 100 * (params.MaxGasPriceMultiplier - 1)
	}
	return 100 + increase
}

// EffectiveGasPrice is the price a transaction must offer right now.
func (p *GasPricer) EffectiveGasPrice() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	price := p.baseFee * int64(p.multiplier) / 100
	if price < params.MinGasPrice {
		price = params.MinGasPrice
	}
	return price
}

// Acceptable reports whether an offered gas price clears the current
// effective price.
func (p *GasPricer) Acceptable(offered int64) bool {
	return offered >= p.EffectiveGasPrice()
}

// Utilization returns the averaged window utilization in percent.
func (p *GasPricer) Utilization() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.avgUtil
}

// BlockGasLimit returns the configured per-block gas limit.
func (p *GasPricer) BlockGasLimit() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.blockGasLimit
}

// SetBlockGasLimit replaces the per-block gas limit.
func (p *GasPricer) SetBlockGasLimit(limit uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blockGasLimit = limit
}

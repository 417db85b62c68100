// Package mev implements the MEV-protected execution transport: protection
// parameter derivation, bundle-first/private-pool/standard-RPC submission,
// and best-effort post-execution monitoring.
package mev

import (
	"math"
	"math/rand"
	"time"

	"github.com/ajitpratap0/triarb/internal/domain"
)

// priorityFloor is the lowest priority fee randomization will ever produce.
const priorityFloor = 1

// deriveParams computes the protection parameters for one execution from
// its size (as a fraction of the sizer's configured max) and expected
// profit percentage, per the transport's documented formula.
func deriveParams(
	basePriority uint64,
	randomizeGas bool,
	maxSubmitJitterMs int,
	bundlesEnabled bool,
	expectedProfitUSD float64,
	sizeFraction float64,
	profitPct float64,
	rng *rand.Rand,
) domain.ProtectionParams {
	priority := basePriority
	if randomizeGas {
		factor := 0.8 + rng.Float64()*0.4 // U(0.8, 1.2)
		priority = uint64(math.Round(float64(basePriority) * factor))
		if priority < priorityFloor {
			priority = priorityFloor
		}
	}

	var sendDelay int
	if maxSubmitJitterMs > 0 {
		sendDelay = rng.Intn(maxSubmitJitterMs + 1)
	}

	var bundleTip float64
	if bundlesEnabled {
		bundleTip = clamp(expectedProfitUSD*0.1, 0.001, 0.01)
	}

	score := 0.6*sizeFraction + 0.4*(profitPct/5)
	level := domain.ProtectionLow
	switch {
	case score >= 0.8:
		level = domain.ProtectionHigh
	case score >= 0.5:
		level = domain.ProtectionMedium
	}

	return domain.ProtectionParams{
		Priority:        priority,
		SendDelay:       time.Duration(sendDelay) * time.Millisecond,
		BundleTip:       bundleTip,
		ProtectionLevel: level,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package sizer

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/triarb/internal/clockwork"
	"github.com/ajitpratap0/triarb/internal/domain"
	"github.com/ajitpratap0/triarb/internal/quoteclient"
)

func sizerTestAssets() (domain.Asset, domain.Asset) {
	return domain.Asset{Address: "sol", Symbol: "SOL", Decimals: 9},
		domain.Asset{Address: "usdc", Symbol: "USDC", Decimals: 6}
}

func basicParams(anchor, intermediate domain.Asset) Params {
	return Params{
		Anchor:            anchor,
		Intermediate:      intermediate,
		AnchorUSD:         150,
		MinSize:           0.01,
		MaxSize:           0.1,
		Strategy:          StrategyStepped,
		SizeTests:         3,
		MinProfitPct:      0.1,
		MinProfitUSD:      0.01,
		MaxPriceImpactPct: 2.0,
		MaxSlippageBps:    100,
		ProbeDelay:        0,
	}
}

// profitableQuoter returns a leg2 quote yielding a fixed profit fraction
// above size, regardless of size, so every probe is profitable.
func profitableQuoter(profitFrac float64) QuoteFunc {
	return func(ctx context.Context, in, out domain.Asset, inAmount *domain.RawAmount, slippageBps int) (*domain.Quote, error) {
		if out.Symbol == "SOL" {
			// leg2: B -> A, return size*(1+profitFrac) back in anchor units
			outAmt := new(big.Int).Set(inAmount)
			outAmt = applyFrac(outAmt, 1+profitFrac)
			return &domain.Quote{InAsset: in, OutAsset: out, InAmount: inAmount, OutAmount: outAmt, PriceImpactFrac: 0.001}, nil
		}
		// leg1: A -> B, pass amount straight through (1:1, ignore decimals for test simplicity)
		return &domain.Quote{InAsset: in, OutAsset: out, InAmount: inAmount, OutAmount: new(big.Int).Set(inAmount), PriceImpactFrac: 0.001}, nil
	}
}

func applyFrac(amt *big.Int, frac float64) *big.Int {
	f := new(big.Float).SetInt(amt)
	f.Mul(f, big.NewFloat(frac))
	out, _ := f.Int(nil)
	return out
}

func TestFindOptimalPicksProfitableCandidate(t *testing.T) {
	anchor, intermediate := sizerTestAssets()
	clock := clockwork.NewFakeClock(time.Now())
	s := New(profitableQuoter(0.05), clock, NewStore())

	candidate := s.FindOptimal(t.Context(), basicParams(anchor, intermediate))
	require.NotNil(t, candidate)
	assert.True(t, candidate.Success)
	assert.Greater(t, candidate.ProfitPct, 0.0)
}

func TestFindOptimalReturnsNilWhenNoneEligible(t *testing.T) {
	anchor, intermediate := sizerTestAssets()
	clock := clockwork.NewFakeClock(time.Now())
	s := New(profitableQuoter(-0.5), clock, NewStore())

	candidate := s.FindOptimal(t.Context(), basicParams(anchor, intermediate))
	assert.Nil(t, candidate)
}

func TestFindOptimalContinuesPastLegFailure(t *testing.T) {
	anchor, intermediate := sizerTestAssets()
	clock := clockwork.NewFakeClock(time.Now())

	calls := 0
	quoter := func(ctx context.Context, in, out domain.Asset, inAmount *domain.RawAmount, slippageBps int) (*domain.Quote, error) {
		calls++
		if calls == 1 {
			return nil, &quoteclient.Error{Kind: quoteclient.KindTransient}
		}
		return profitableQuoter(0.05)(ctx, in, out, inAmount, slippageBps)
	}
	s := New(quoter, clock, NewStore())

	candidate := s.FindOptimal(t.Context(), basicParams(anchor, intermediate))
	require.NotNil(t, candidate)
}

func TestFindOptimalRecordsSelectionInStore(t *testing.T) {
	anchor, intermediate := sizerTestAssets()
	clock := clockwork.NewFakeClock(time.Now())
	store := NewStore()
	s := New(profitableQuoter(0.05), clock, store)

	candidate := s.FindOptimal(t.Context(), basicParams(anchor, intermediate))
	require.NotNil(t, candidate)

	entry := store.Snapshot(anchor, intermediate)
	require.NotNil(t, entry)
	assert.Len(t, entry.RecentSamples, 1)
}

func TestFindOptimalSleepsProbeDelayBetweenProbes(t *testing.T) {
	anchor, intermediate := sizerTestAssets()
	clock := clockwork.NewFakeClock(time.Now())
	s := New(profitableQuoter(0.05), clock, NewStore())

	params := basicParams(anchor, intermediate)
	params.ProbeDelay = 500 * time.Millisecond
	params.SizeTests = 3

	start := clock.NowMonotonic()
	s.FindOptimal(t.Context(), params)
	elapsed := clock.NowMonotonic().Sub(start)

	assert.GreaterOrEqual(t, elapsed, 1000*time.Millisecond) // 2 gaps between 3 probes
}

func TestBetterBreaksTiesByProfitUSDThenSize(t *testing.T) {
	a := &domain.ProbeResult{Score: 1.0, ProfitUSD: 5, SizeNative: 0.05}
	b := &domain.ProbeResult{Score: 1.0, ProfitUSD: 5, SizeNative: 0.02}
	assert.True(t, better(a, b))

	c := &domain.ProbeResult{Score: 1.0, ProfitUSD: 10, SizeNative: 0.01}
	d := &domain.ProbeResult{Score: 1.0, ProfitUSD: 5, SizeNative: 0.05}
	assert.True(t, better(c, d))
}

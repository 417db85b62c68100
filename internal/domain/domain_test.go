package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAssetEqualComparesByAddressOnly(t *testing.T) {
	a := Asset{Address: "mint1", Symbol: "SOL", Decimals: 9}
	b := Asset{Address: "mint1", Symbol: "WSOL", Decimals: 9}
	c := Asset{Address: "mint2", Symbol: "SOL", Decimals: 9}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestQuoteValid(t *testing.T) {
	var nilQuote *Quote
	assert.False(t, nilQuote.Valid())

	assert.False(t, (&Quote{OutAmount: big.NewInt(0)}).Valid())
	assert.True(t, (&Quote{OutAmount: big.NewInt(1)}).Valid())
}

func TestPerformanceEntryAppendSampleEvictsOldest(t *testing.T) {
	p := &PerformanceEntry{}
	for i := 0; i < maxRecentSamples+10; i++ {
		p.AppendSample(Sample{SizeRaw: big.NewInt(int64(i)), ProfitPct: 1, Success: true, At: time.Now()})
	}
	assert.Len(t, p.RecentSamples, maxRecentSamples)
	assert.Equal(t, "10", p.RecentSamples[0].SizeRaw.String())
}

func TestPerformanceEntryMaybeImproveBestOnlyOnStrictImprovement(t *testing.T) {
	p := &PerformanceEntry{}
	p.MaybeImproveBest(big.NewInt(100), 1.0)
	p.MaybeImproveBest(big.NewInt(200), 0.5)

	assert.Equal(t, 1.0, p.BestProfitPct)
	assert.Equal(t, "100", p.BestSize.String())
}

func TestPerformanceEntryIsStale(t *testing.T) {
	p := &PerformanceEntry{}
	assert.True(t, p.IsStale(time.Now(), time.Hour), "an entry with no samples is vacuously stale")

	p.AppendSample(Sample{SizeRaw: big.NewInt(1), At: time.Now()})
	assert.False(t, p.IsStale(time.Now(), time.Hour))
	assert.True(t, p.IsStale(time.Now().Add(2*time.Hour), time.Hour))
}

package domain

import (
	"sync"
	"time"
)

// PairKey identifies an (anchor, intermediate) route for the historical store.
type PairKey struct {
	Anchor       string
	Intermediate string
}

// Sample is a reduced, stored probe outcome kept in PerformanceEntry.RecentSamples.
type Sample struct {
	SizeRaw   *RawAmount
	ProfitPct float64
	Success   bool
	Actual    bool // true when recorded via UpdateActual rather than a probe
	At        time.Time
}

// PerformanceEntry tracks the sizer's learning state for one (A,B) pair.
type PerformanceEntry struct {
	mu               sync.Mutex
	BestSize         *RawAmount
	BestProfitPct    float64
	RecentSamples    []Sample // bounded to 100, FIFO eviction
	TotalTrades      int
	SuccessfulTrades int
}

const maxRecentSamples = 100

// AppendSample records a sample, evicting the oldest once the cap is reached.
// Safe for concurrent use by a single owning sizer.
func (p *PerformanceEntry) AppendSample(s Sample) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.RecentSamples = append(p.RecentSamples, s)
	if len(p.RecentSamples) > maxRecentSamples {
		p.RecentSamples = p.RecentSamples[len(p.RecentSamples)-maxRecentSamples:]
	}
}

// MaybeImproveBest updates BestSize/BestProfitPct if strictly improved.
func (p *PerformanceEntry) MaybeImproveBest(size *RawAmount, profitPct float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.BestSize == nil || profitPct > p.BestProfitPct {
		p.BestSize = new(RawAmount).Set(size)
		p.BestProfitPct = profitPct
	}
}

// RecordTrade increments the trade counters under the entry's lock.
func (p *PerformanceEntry) RecordTrade(success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.TotalTrades++
	if success {
		p.SuccessfulTrades++
	}
}

// IsStale reports whether every sample is older than maxAge, i.e. the entry
// is eligible for pruning.
func (p *PerformanceEntry) IsStale(now time.Time, maxAge time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range p.RecentSamples {
		if now.Sub(s.At) < maxAge {
			return false
		}
	}
	return true
}

// PriceSample is one observation of the anchor asset's USD price.
type PriceSample struct {
	Timestamp           time.Time
	PriceUSD            float64
	ContributingSources map[string]struct{}
}

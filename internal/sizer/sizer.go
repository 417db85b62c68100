// Package sizer searches a bounded trade-size range for the most valuable
// profitable round-trip size, probing both legs of A->B->A through the
// quote client and scoring eligible probes.
package sizer

import (
	"context"
	"math"
	"math/big"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/triarb/internal/clockwork"
	"github.com/ajitpratap0/triarb/internal/domain"
	"github.com/ajitpratap0/triarb/internal/metrics"
	"github.com/ajitpratap0/triarb/internal/quoteclient"
)

const interLegPause = 200 * time.Millisecond

// QuoteFunc fetches a single-leg quote; satisfied by *quoteclient.Client.Quote.
type QuoteFunc func(ctx context.Context, in, out domain.Asset, inAmount *domain.RawAmount, slippageBps int) (*domain.Quote, error)

// Params bundles the per-iteration inputs a sizing search needs beyond the
// quote function itself.
type Params struct {
	Anchor            domain.Asset
	Intermediate      domain.Asset
	AnchorUSD         float64
	MinSize           float64 // anchor-native units
	MaxSize           float64
	Strategy          Strategy
	SizeTests         int
	PreferredPercents []int
	MinProfitPct      float64
	MinProfitUSD      float64
	MaxPriceImpactPct float64
	MaxSlippageBps    int
	ProbeDelay        time.Duration
}

// Strategy selects how candidate probe sizes are generated.
type Strategy string

const (
	StrategyStepped Strategy = "stepped"
	StrategyOptimal Strategy = "optimal"
)

// Sizer finds the optimal probe size for a route and remembers outcomes per
// (anchor, intermediate) pair to bias future decisions.
type Sizer struct {
	quote QuoteFunc
	clock clockwork.Clock
	store *Store
}

// New builds a Sizer backed by quote for single-leg fetches.
func New(quote QuoteFunc, clock clockwork.Clock, store *Store) *Sizer {
	return &Sizer{quote: quote, clock: clock, store: store}
}

// UpdateActual feeds a post-execution realized outcome into the learning
// store, called by the search loop once a round-trip has actually executed
// (or failed). It does not replace BestSize directly; see domain.Sample.
func (s *Sizer) UpdateActual(anchor, intermediate domain.Asset, sizeRaw *domain.RawAmount, profitPct float64, success bool, at time.Time) {
	if s.store == nil {
		return
	}
	s.store.UpdateActual(anchor, intermediate, sizeRaw, profitPct, success, at)
}

// CleanupOld prunes performance entries whose entire sample history has
// aged out, called periodically by the search loop's bookkeeping stage.
func (s *Sizer) CleanupOld(now time.Time) int {
	if s.store == nil {
		return 0
	}
	return s.store.CleanupOld(now)
}

// Snapshot exposes the learning entry for one pair, or nil if none exists.
func (s *Sizer) Snapshot(anchor, intermediate domain.Asset) *domain.PerformanceEntry {
	if s.store == nil {
		return nil
	}
	return s.store.Snapshot(anchor, intermediate)
}

// FindOptimal probes the configured size range for route A->B->A and
// returns the highest-scoring eligible candidate, or nil if none qualifies.
func (s *Sizer) FindOptimal(ctx context.Context, p Params) *domain.Candidate {
	sizes := generateSizes(p.Strategy, p.MinSize, p.MaxSize, p.SizeTests, p.PreferredPercents)

	var probes []*domain.ProbeResult
	for i, size := range sizes {
		select {
		case <-ctx.Done():
			return pickBest(probes, p)
		default:
		}

		probe := s.probe(ctx, p, size)
		metrics.SizerProbes.Inc()
		probes = append(probes, probe)

		if i < len(sizes)-1 && p.ProbeDelay > 0 {
			s.clock.Sleep(p.ProbeDelay)
		}
	}

	candidate := pickBest(probes, p)
	if candidate != nil && s.store != nil {
		s.store.RecordSelection(p.Anchor, p.Intermediate, candidate, s.clock.NowWall())
	}
	return candidate
}

func (s *Sizer) probe(ctx context.Context, p Params, sizeNative float64) *domain.ProbeResult {
	result := &domain.ProbeResult{SizeNative: sizeNative}

	sizeRaw := domain.FromDecimal(decimal.NewFromFloat(sizeNative), p.Anchor.Decimals)
	result.SizeRaw = sizeRaw

	leg1, err := s.quote(ctx, p.Anchor, p.Intermediate, sizeRaw, p.MaxSlippageBps)
	if err != nil || !leg1.Valid() {
		result.FailReason = classifyFailure(err)
		return result
	}
	result.Leg1 = leg1

	s.clock.Sleep(interLegPause)

	leg2, err := s.quote(ctx, p.Intermediate, p.Anchor, leg1.OutAmount, p.MaxSlippageBps)
	if err != nil || !leg2.Valid() {
		result.FailReason = classifyFailure(err)
		return result
	}
	result.Leg2 = leg2

	score(result, sizeRaw, p)
	return result
}

func classifyFailure(err error) string {
	if err == nil {
		return "invalid_quote"
	}
	if qcErr, ok := err.(*quoteclient.Error); ok {
		return string(qcErr.Kind)
	}
	return err.Error()
}

// score computes profit/impact figures and the selection score for a
// fully-quoted probe, per the documented formula.
func score(r *domain.ProbeResult, sizeRaw *domain.RawAmount, p Params) {
	profitRaw := new(big.Int).Sub(r.Leg2.OutAmount, sizeRaw)
	r.ProfitRaw = profitRaw

	sizeDec := domain.ToDecimal(sizeRaw, p.Anchor.Decimals)
	profitDec := domain.ToDecimal(profitRaw, p.Anchor.Decimals)

	if sizeDec.IsZero() {
		return
	}
	r.ProfitPct, _ = profitDec.Div(sizeDec).Mul(decimal.NewFromInt(100)).Float64()
	r.ProfitUSD = r.ProfitPct / 100 * sizeDec.InexactFloat64() * p.AnchorUSD
	r.TotalValueUSD = sizeDec.InexactFloat64() * p.AnchorUSD
	r.TotalImpact = (r.Leg1.PriceImpactFrac + r.Leg2.PriceImpactFrac) * 100

	r.MeetsPct = r.ProfitPct >= p.MinProfitPct
	r.MeetsUSD = r.ProfitUSD >= p.MinProfitUSD
	r.MeetsImpact = r.TotalImpact <= p.MaxPriceImpactPct
	r.Success = r.MeetsPct && r.MeetsUSD && r.MeetsImpact

	if !r.Success {
		return
	}

	impactTerm := math.Max(0, 1-r.TotalImpact/p.MaxPriceImpactPct)
	r.Score = 0.4*(r.ProfitUSD/p.MinProfitUSD) +
		0.3*(r.ProfitPct/p.MinProfitPct) +
		0.2*(r.TotalValueUSD/(p.MaxSize*p.AnchorUSD)) +
		0.1*impactTerm
}

// pickBest returns the highest-scoring eligible probe, breaking ties by
// larger ProfitUSD then larger SizeNative.
func pickBest(probes []*domain.ProbeResult, p Params) *domain.Candidate {
	var best *domain.ProbeResult
	for _, probe := range probes {
		if !probe.Success {
			continue
		}
		if best == nil || better(probe, best) {
			best = probe
		}
	}
	return best
}

func better(a, b *domain.ProbeResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.ProfitUSD != b.ProfitUSD {
		return a.ProfitUSD > b.ProfitUSD
	}
	return a.SizeNative > b.SizeNative
}

// generateSizes builds the ascending, deduplicated probe sizes for the
// configured strategy, each rounded to 4 decimals.
func generateSizes(strategy Strategy, min, max float64, n int, preferredPercentages []int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{round4(min)}
	}

	var raw []float64
	switch strategy {
	case StrategyOptimal:
		raw = append(raw, min)
		usablePercents := preferredPercentages
		if len(usablePercents) > n-2 {
			usablePercents = usablePercents[:n-2]
		}
		for _, pct := range usablePercents {
			raw = append(raw, min+(max-min)*float64(pct)/100)
		}
		raw = append(raw, max)
	default: // stepped
		step := (max - min) / float64(n-1)
		for i := 0; i < n; i++ {
			raw = append(raw, min+step*float64(i))
		}
	}

	return dedupeSorted(raw, n)
}

func dedupeSorted(raw []float64, n int) []float64 {
	rounded := make([]float64, len(raw))
	for i, v := range raw {
		rounded[i] = round4(v)
	}
	sort.Float64s(rounded)

	out := rounded[:0]
	var last float64
	first := true
	for _, v := range rounded {
		if first || v != last {
			out = append(out, v)
			last = v
			first = false
		}
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

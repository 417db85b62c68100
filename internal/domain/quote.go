package domain

import "math/big"

// Quote is the result of asking the aggregator for a single-leg swap.
type Quote struct {
	InAsset           Asset
	OutAsset          Asset
	InAmount          *RawAmount
	OutAmount         *RawAmount
	PriceImpactFrac   float64 // fraction, e.g. 0.001 == 0.1%
	RouteDescriptor   []byte  // opaque bytes sufficient to construct the exchange call
}

// Valid reports whether the quote can be used: OutAmount must be positive.
func (q *Quote) Valid() bool {
	return q != nil && q.OutAmount != nil && q.OutAmount.Sign() > 0
}

// ProbeResult is a fully-quoted, scored candidate for a given input size.
type ProbeResult struct {
	SizeRaw      *RawAmount
	SizeNative   float64 // SOL-equivalent decimal size, for logging
	Leg1         *Quote
	Leg2         *Quote
	ProfitRaw    *big.Int // leg2.OutAmount - SizeRaw
	ProfitPct    float64  // ProfitRaw / SizeRaw * 100
	ProfitUSD    float64
	TotalValueUSD float64
	TotalImpact  float64 // Leg1 impact + Leg2 impact, percent
	MeetsPct     bool
	MeetsUSD     bool
	MeetsImpact  bool
	Success      bool
	Score        float64
	FailReason   string // set when either leg failed to quote
}

// Candidate is the winning probe selected by the sizer for possible execution.
type Candidate = ProbeResult

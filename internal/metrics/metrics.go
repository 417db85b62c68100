// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bounded cardinality constants for metric labels, so a misbehaving upstream
// error string can never blow up a label's cardinality.
const (
	QuoteErrorTransient    = "transient"
	QuoteErrorRateLimited  = "rate_limited"
	QuoteErrorCircuitOpen  = "circuit_open"
	QuoteErrorInvalid      = "quote_invalid"
	QuoteErrorClientError  = "client_error"
	QuoteErrorExecFailed   = "execution_failed"
	QuoteErrorFatal        = "fatal"
	QuoteErrorOther        = "other"

	OutcomeNoProfitable = "no_profitable"
	OutcomeExecuted     = "executed"
	OutcomeFailed       = "failed"
	OutcomeSkipped      = "skipped"
)

// NormalizeQuoteError maps an arbitrary error message to the bounded set of
// quote-client error categories.
func NormalizeQuoteError(err error) string {
	if err == nil {
		return ""
	}
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "rate") || strings.Contains(lower, "429"):
		return QuoteErrorRateLimited
	case strings.Contains(lower, "circuit"):
		return QuoteErrorCircuitOpen
	case strings.Contains(lower, "invalid") || strings.Contains(lower, "stale"):
		return QuoteErrorInvalid
	case strings.Contains(lower, "400") || strings.Contains(lower, "bad request"):
		return QuoteErrorClientError
	case strings.Contains(lower, "execution") || strings.Contains(lower, "revert"):
		return QuoteErrorExecFailed
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "connection") || strings.Contains(lower, "network"):
		return QuoteErrorTransient
	case strings.Contains(lower, "fatal"):
		return QuoteErrorFatal
	default:
		return QuoteErrorOther
	}
}

// Circuit breaker / quote client metrics.
var (
	CircuitBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triarb_quote_circuit_breaker_state",
		Help: "Quote client circuit breaker state (0=closed, 1=half_open, 2=open)",
	})

	CircuitBreakerTrips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triarb_quote_circuit_breaker_trips_total",
		Help: "Total number of times the quote circuit breaker opened",
	})

	QuoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triarb_quote_requests_total",
		Help: "Total quote requests by outcome",
	}, []string{"result"})

	QuoteLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "triarb_quote_latency_ms",
		Help:    "Quote request latency in milliseconds",
		Buckets: []float64{25, 50, 100, 250, 500, 1000, 2500, 5000},
	})
)

// Price oracle metrics.
var (
	AnchorPriceUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triarb_anchor_price_usd",
		Help: "Last accepted anchor asset USD price",
	})

	PriceVolatility = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triarb_anchor_price_volatility",
		Help: "Coefficient of variation of the last price samples",
	})

	PriceSourcesHealthy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triarb_price_sources_healthy",
		Help: "Count of price sources that answered the last poll",
	})

	PriceRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triarb_price_rejections_total",
		Help: "Total price samples rejected by the plausibility band",
	})
)

// Search loop / sizer / MEV metrics.
var (
	Iterations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triarb_iterations_total",
		Help: "Total search-loop iterations by outcome",
	}, []string{"outcome"})

	RealizedProfitUSD = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "triarb_realized_profit_usd",
		Help:    "Realized USD profit per executed iteration",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50},
	})

	SwapInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triarb_swap_in_flight",
		Help: "1 while an execution holds the single-flight guard, else 0",
	})

	SizerProbes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triarb_sizer_probes_total",
		Help: "Total probe quotes taken while sizing a candidate route",
	})

	MEVProtectionLevel = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "triarb_mev_protection_level",
		Help: "Most recent MEV protection level used for submission (0=low,1=medium,2=high)",
	}, []string{"route"})

	RotationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triarb_rotations_total",
		Help: "Total intermediate-asset rotations performed",
	})
)

// Quote de-duplication cache instrumentation (internal/quoteclient.Cache).
var (
	QuoteCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triarb_quote_cache_hits_total",
		Help: "Total quote de-duplication cache hits",
	})

	QuoteCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triarb_quote_cache_misses_total",
		Help: "Total quote de-duplication cache misses",
	})

	QuoteCacheHitRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triarb_quote_cache_hit_rate",
		Help: "Quote de-duplication cache hit rate as a ratio (0.0 to 1.0)",
	})
)

// cacheHits and cacheMisses back QuoteCacheHitRate; the counters
// above are monotonic and can't be read back to compute a ratio.
var cacheHits, cacheMisses int64

// RecordQuoteCacheResult records a single quote-cache lookup and refreshes
// the hit-rate gauge.
func RecordQuoteCacheResult(hit bool) {
	if hit {
		QuoteCacheHits.Inc()
		cacheHits++
	} else {
		QuoteCacheMisses.Inc()
		cacheMisses++
	}
	if total := cacheHits + cacheMisses; total > 0 {
		QuoteCacheHitRate.Set(float64(cacheHits) / float64(total))
	}
}

// RecordIterationOutcome records a completed search-loop iteration.
func RecordIterationOutcome(outcome string) {
	Iterations.WithLabelValues(outcome).Inc()
}

// RecordExecutedProfit records the realized USD profit of an executed iteration.
func RecordExecutedProfit(usd float64) {
	RealizedProfitUSD.Observe(usd)
}

// SetSwapInFlight marks whether the single-flight execution guard is held.
func SetSwapInFlight(inFlight bool) {
	if inFlight {
		SwapInFlight.Set(1)
		return
	}
	SwapInFlight.Set(0)
}

// SetCircuitBreakerState mirrors a gobreaker.State's numeric encoding
// (StateClosed=0, StateHalfOpen=1, StateOpen=2) onto the gauge.
func SetCircuitBreakerState(state int) {
	CircuitBreakerState.Set(float64(state))
}

package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func testGaugeValue(g prometheus.Gauge) float64 {
	return testutil.ToFloat64(g)
}

func TestNormalizeQuoteError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil error", err: nil, want: ""},
		{name: "rate limited", err: errors.New("429 too many requests"), want: QuoteErrorRateLimited},
		{name: "circuit open", err: errors.New("circuit breaker is open"), want: QuoteErrorCircuitOpen},
		{name: "stale quote", err: errors.New("quote is stale"), want: QuoteErrorInvalid},
		{name: "bad request", err: errors.New("400 bad request: invalid mint"), want: QuoteErrorClientError},
		{name: "execution reverted", err: errors.New("transaction execution reverted"), want: QuoteErrorExecFailed},
		{name: "network timeout", err: errors.New("dial tcp: i/o timeout"), want: QuoteErrorTransient},
		{name: "fatal", err: errors.New("fatal: unrecoverable state"), want: QuoteErrorFatal},
		{name: "unrecognized", err: errors.New("teapot"), want: QuoteErrorOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeQuoteError(tt.err))
		})
	}
}

func TestRecordQuoteCacheResult(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordQuoteCacheResult(true)
		RecordQuoteCacheResult(false)
	})
	RecordQuoteCacheResult(true)
	rate := testGaugeValue(QuoteCacheHitRate)
	assert.True(t, rate >= 0 && rate <= 1)
}

func TestRecordIterationOutcome(t *testing.T) {
	for _, outcome := range []string{OutcomeNoProfitable, OutcomeExecuted, OutcomeFailed, OutcomeSkipped} {
		assert.NotPanics(t, func() {
			RecordIterationOutcome(outcome)
		})
	}
}

func TestRecordExecutedProfit(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordExecutedProfit(1.25)
		RecordExecutedProfit(0)
	})
}

func TestSetSwapInFlight(t *testing.T) {
	assert.NotPanics(t, func() {
		SetSwapInFlight(true)
		SetSwapInFlight(false)
	})
	SetSwapInFlight(true)
	assert.Equal(t, float64(1), testGaugeValue(SwapInFlight))
	SetSwapInFlight(false)
	assert.Equal(t, float64(0), testGaugeValue(SwapInFlight))
}

func TestSetCircuitBreakerState(t *testing.T) {
	for _, state := range []int{0, 1, 2} {
		SetCircuitBreakerState(state)
		assert.Equal(t, float64(state), testGaugeValue(CircuitBreakerState))
	}
}

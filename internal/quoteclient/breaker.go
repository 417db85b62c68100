package quoteclient

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ajitpratap0/triarb/internal/metrics"
)

// newBreaker builds the quote client's circuit breaker. It trips on
// *consecutive* failures rather than a failure ratio over a counting window,
// matching the quote API's single-upstream failure mode.
func newBreaker(threshold uint32, openTimeout time.Duration) *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        "quote_client",
		MaxRequests: 1, // one trial call while half-open
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetCircuitBreakerState(stateOrdinal(to))
			if to == gobreaker.StateOpen {
				metrics.CircuitBreakerTrips.Inc()
			}
		},
	}
	return gobreaker.NewCircuitBreaker(settings)
}

func stateOrdinal(s gobreaker.State) int {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// errCircuitOpen stands in for gobreaker's open-state sentinels so callers can classify it.
var errCircuitOpen = errors.New("circuit breaker is open")

package quoteclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ajitpratap0/triarb/internal/clockwork"
)

// queueTimeout is the default ceiling on how long a caller may wait for a
// rate-limit slot before being failed with a timeout error.
const queueTimeout = 30 * time.Second

// limiter enforces the quote client's two rate constraints: a minimum
// inter-call spacing, and a rolling one-minute request cap.
type limiter struct {
	minInterval  time.Duration
	queueTimeout time.Duration
	clock        clockwork.Clock

	mu       sync.Mutex
	lastCall time.Time

	perMinute *rate.Limiter
}

func newLimiter(minInterval time.Duration, maxPerMinute int, queueTO time.Duration, clock clockwork.Clock) *limiter {
	if queueTO <= 0 {
		queueTO = queueTimeout
	}
	return &limiter{
		minInterval:  minInterval,
		queueTimeout: queueTO,
		clock:        clock,
		perMinute:    rate.NewLimiter(rate.Limit(float64(maxPerMinute)/60.0), maxPerMinute),
	}
}

// wait blocks the caller until both constraints are satisfied, or returns a
// timeout error if that takes longer than the configured queue timeout.
func (l *limiter) wait(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.queueTimeout)
	defer cancel()

	if err := l.perMinute.Wait(waitCtx); err != nil {
		return &Error{Kind: KindTransient, Err: fmt.Errorf("rate limiter queue timeout: %w", err)}
	}

	l.mu.Lock()
	elapsed := l.clock.NowMonotonic().Sub(l.lastCall)
	var sleepFor time.Duration
	if !l.lastCall.IsZero() && elapsed < l.minInterval {
		sleepFor = l.minInterval - elapsed
	}
	l.mu.Unlock()

	if sleepFor > 0 {
		select {
		case <-waitCtx.Done():
			return &Error{Kind: KindTransient, Err: fmt.Errorf("rate limiter queue timeout waiting for min interval")}
		case <-l.clock.After(sleepFor):
		}
	}

	l.mu.Lock()
	l.lastCall = l.clock.NowMonotonic()
	l.mu.Unlock()
	return nil
}

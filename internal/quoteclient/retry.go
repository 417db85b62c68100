package quoteclient

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/triarb/internal/clockwork"
)

// RetryLadder is a fixed, ordered sequence of sleep durations tried between
// attempts of the same operation. Each error Kind gets its own fixed ladder
// per the quote API's documented retry policy, rather than one shared
// exponential backoff curve.
type RetryLadder []time.Duration

var (
	rateLimitedLadder = RetryLadder{5 * time.Second, 10 * time.Second, 20 * time.Second}
	transientLadder   = RetryLadder{3 * time.Second, 6 * time.Second, 9 * time.Second}
	serverErrorLadder = RetryLadder{4 * time.Second, 8 * time.Second, 12 * time.Second}
)

// ladderFor returns the retry ladder for a classified Kind, and whether that
// Kind retries at all. ClientError and anything not covered here is not
// retried, per the quote API's documented policy.
func ladderFor(k Kind) (RetryLadder, bool) {
	switch k {
	case KindRateLimited:
		return rateLimitedLadder, true
	case KindTransient:
		return transientLadder, true
	case KindServerError:
		return serverErrorLadder, true
	default:
		return nil, false
	}
}

// Operation is a single quote-client attempt. It must return a *Error (or
// nil) so the retry loop can classify the failure.
type Operation func(ctx context.Context) error

// WithRetry runs operation, retrying per the ladder selected by the Kind of
// each failure, sleeping via clock between attempts and honoring ctx
// cancellation both before an attempt and during a backoff sleep.
func WithRetry(ctx context.Context, clock clockwork.Clock, log zerolog.Logger, operation Operation) error {
	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled: %w", ctx.Err())
		default:
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info().Int("attempt", attempt+1).Msg("quote operation succeeded after retry")
			}
			return nil
		}

		qcErr, ok := err.(*Error)
		if !ok {
			return err
		}

		ladder, retryable := ladderFor(qcErr.Kind)
		if !retryable || attempt >= len(ladder) {
			return err
		}

		backoff := ladder[attempt]
		log.Warn().
			Err(err).
			Str("kind", string(qcErr.Kind)).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("quote operation failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled during backoff: %w", ctx.Err())
		case <-clock.After(backoff):
		}
	}
}

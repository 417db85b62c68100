package quoteclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/triarb/internal/clockwork"
)

func TestWithRetrySucceedsWithoutRetry(t *testing.T) {
	clock := clockwork.NewFakeClock(time.Now())
	calls := 0

	err := WithRetry(t.Context(), clock, zerolog.Nop(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryExhaustsTransientLadder(t *testing.T) {
	clock := clockwork.NewFakeClock(time.Now())
	calls := 0

	err := WithRetry(t.Context(), clock, zerolog.Nop(), func(ctx context.Context) error {
		calls++
		return &Error{Kind: KindTransient, Err: errors.New("timeout")}
	})
	require.Error(t, err)
	assert.Equal(t, len(transientLadder)+1, calls)
}

func TestWithRetryUsesServerErrorLadder(t *testing.T) {
	clock := clockwork.NewFakeClock(time.Now())
	calls := 0

	err := WithRetry(t.Context(), clock, zerolog.Nop(), func(ctx context.Context) error {
		calls++
		return &Error{Kind: KindServerError, Err: errors.New("bad gateway")}
	})
	require.Error(t, err)
	assert.Equal(t, len(serverErrorLadder)+1, calls)
}

func TestWithRetryDoesNotRetryClientError(t *testing.T) {
	clock := clockwork.NewFakeClock(time.Now())
	calls := 0

	err := WithRetry(t.Context(), clock, zerolog.Nop(), func(ctx context.Context) error {
		calls++
		return &Error{Kind: KindClientError, Err: errors.New("bad request")}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryStopsOnSuccessPartway(t *testing.T) {
	clock := clockwork.NewFakeClock(time.Now())
	calls := 0

	err := WithRetry(t.Context(), clock, zerolog.Nop(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return &Error{Kind: KindRateLimited, Err: errors.New("too many requests")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestWithRetryHonorsContextCancellationDuringBackoff(t *testing.T) {
	clock := clockwork.NewFakeClock(time.Now())
	ctx, cancel := context.WithCancel(t.Context())

	calls := 0
	err := WithRetry(ctx, clock, zerolog.Nop(), func(ctx context.Context) error {
		calls++
		cancel()
		return &Error{Kind: KindTransient, Err: errors.New("timeout")}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestLadderForUnknownKindIsNotRetryable(t *testing.T) {
	_, retryable := ladderFor(KindFatal)
	assert.False(t, retryable)
}

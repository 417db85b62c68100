package quoteclient

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := newBreaker(3, time.Minute)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		_, err := b.Execute(func() (interface{}, error) { return nil, boom })
		require.Error(t, err)
	}

	_, err := b.Execute(func() (interface{}, error) { return nil, nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBreakerStaysClosedOnInterleavedSuccess(t *testing.T) {
	b := newBreaker(3, time.Minute)
	boom := errors.New("boom")

	for i := 0; i < 5; i++ {
		_, err := b.Execute(func() (interface{}, error) { return nil, boom })
		require.Error(t, err)
		_, err = b.Execute(func() (interface{}, error) { return "ok", nil })
		require.NoError(t, err)
	}

	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestStateOrdinal(t *testing.T) {
	assert.Equal(t, 0, stateOrdinal(gobreaker.StateClosed))
	assert.Equal(t, 1, stateOrdinal(gobreaker.StateHalfOpen))
	assert.Equal(t, 2, stateOrdinal(gobreaker.StateOpen))
}

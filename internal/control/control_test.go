package control

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalsDrainIsNonBlockingAndOneShot(t *testing.T) {
	sig := NewSignals()

	rotate, force, revert := sig.Drain()
	assert.False(t, rotate)
	assert.False(t, force)
	assert.False(t, revert)

	sig.Rotate <- struct{}{}
	sig.Revert <- struct{}{}

	rotate, force, revert = sig.Drain()
	assert.True(t, rotate)
	assert.False(t, force)
	assert.True(t, revert)

	// One-shot: a second drain sees nothing pending.
	rotate, force, revert = sig.Drain()
	assert.False(t, rotate)
	assert.False(t, force)
	assert.False(t, revert)
}

func TestConnectWithEmptyURLIsANoop(t *testing.T) {
	sig := NewSignals()
	bridge, err := Connect("", sig, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, bridge)

	// Close on a nil bridge must not panic, since cmd/triarb always defers it.
	bridge.Close()
}

func TestConnectWithUnreachableURLReturnsError(t *testing.T) {
	sig := NewSignals()
	_, err := Connect("nats://127.0.0.1:1", sig, zerolog.Nop())
	assert.Error(t, err)
}

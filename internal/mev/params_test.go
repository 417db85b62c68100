package mev

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/triarb/internal/domain"
)

func TestDeriveParamsWithoutRandomizationUsesBasePriority(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	params := deriveParams(1000, false, 0, false, 0, 0.5, 1, rng)
	assert.Equal(t, uint64(1000), params.Priority)
	assert.Equal(t, time.Duration(0), params.SendDelay)
	assert.Equal(t, 0.0, params.BundleTip)
}

func TestDeriveParamsRandomizesGasWithinBand(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		params := deriveParams(1000, true, 0, false, 0, 0.5, 1, rng)
		assert.GreaterOrEqual(t, params.Priority, uint64(800))
		assert.LessOrEqual(t, params.Priority, uint64(1200))
	}
}

func TestDeriveParamsEnforcesPriorityFloor(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		params := deriveParams(0, true, 0, false, 0, 0.5, 1, rng)
		assert.GreaterOrEqual(t, params.Priority, uint64(priorityFloor))
	}
}

func TestDeriveParamsSendDelayWithinJitterBound(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		params := deriveParams(1000, false, 2000, false, 0, 0.5, 1, rng)
		assert.GreaterOrEqual(t, params.SendDelay, time.Duration(0))
		assert.LessOrEqual(t, params.SendDelay, 2000*time.Millisecond)
	}
}

func TestDeriveParamsBundleTipClamped(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	low := deriveParams(1000, false, 0, true, 0.001, 0.5, 1, rng)
	assert.Equal(t, 0.001, low.BundleTip)

	high := deriveParams(1000, false, 0, true, 1000, 0.5, 1, rng)
	assert.Equal(t, 0.01, high.BundleTip)

	mid := deriveParams(1000, false, 0, true, 0.05, 0.5, 1, rng)
	assert.InDelta(t, 0.005, mid.BundleTip, 1e-9)
}

func TestDeriveParamsProtectionLevelThresholds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	// score = 0.6*size + 0.4*(pct/5)
	high := deriveParams(1000, false, 0, false, 0, 1.0, 5, rng) // score = 1.0
	assert.Equal(t, domain.ProtectionHigh, high.ProtectionLevel)

	medium := deriveParams(1000, false, 0, false, 0, 0.7, 2.5, rng) // score = 0.62
	assert.Equal(t, domain.ProtectionMedium, medium.ProtectionLevel)

	low := deriveParams(1000, false, 0, false, 0, 0.1, 0.5, rng) // score = 0.1
	assert.Equal(t, domain.ProtectionLow, low.ProtectionLevel)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.001, clamp(-5, 0.001, 0.01))
	assert.Equal(t, 0.01, clamp(5, 0.001, 0.01))
	assert.Equal(t, 0.005, clamp(0.005, 0.001, 0.01))
}

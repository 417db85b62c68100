package sizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSizesSteppedIsEvenlySpaced(t *testing.T) {
	sizes := generateSizes(StrategyStepped, 0.005, 0.1, 5, nil)
	assert.Len(t, sizes, 5)
	assert.Equal(t, 0.005, sizes[0])
	assert.Equal(t, 0.1, sizes[len(sizes)-1])
	for i := 1; i < len(sizes); i++ {
		assert.Greater(t, sizes[i], sizes[i-1])
	}
}

func TestGenerateSizesOptimalIncludesMinAndMax(t *testing.T) {
	sizes := generateSizes(StrategyOptimal, 0.005, 0.1, 5, []int{10, 25, 50, 75, 90})
	assert.Equal(t, 0.005, sizes[0])
	assert.Equal(t, 0.1, sizes[len(sizes)-1])
	assert.LessOrEqual(t, len(sizes), 5)
}

func TestGenerateSizesOptimalUsesFirstNMinusTwoPercentages(t *testing.T) {
	sizes := generateSizes(StrategyOptimal, 0, 100, 4, []int{10, 25, 50, 75, 90})
	// N-2 = 2 percentages used: 10, 25 -> {0, 10, 25, 100}
	assert.Equal(t, []float64{0, 10, 25, 100}, sizes)
}

func TestGenerateSizesRoundsToFourDecimals(t *testing.T) {
	sizes := generateSizes(StrategyStepped, 0.00501234, 0.00501234, 1, nil)
	assert.Equal(t, []float64{0.0050}, sizes)
}

func TestGenerateSizesDedupesAndSorts(t *testing.T) {
	sizes := generateSizes(StrategyOptimal, 10, 10, 5, []int{10, 25, 50})
	assert.Equal(t, []float64{10}, sizes)
}

func TestGenerateSizesSingleProbeReturnsMin(t *testing.T) {
	sizes := generateSizes(StrategyStepped, 0.01, 0.5, 1, nil)
	assert.Equal(t, []float64{0.01}, sizes)
}

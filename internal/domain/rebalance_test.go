package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebalance_TwoOutcomeStake(t *testing.T) {
	probs := []float64{0.5, 0.5}

	out := Rebalance(probs, 0, 10)

	assert.InDelta(t, 0.60, out[0], 1e-9)
	assert.InDelta(t, 0.40, out[1], 1e-9)
	// Input untouched.
	assert.Equal(t, []float64{0.5, 0.5}, probs)
}

func TestRebalance_ThreeOutcomeProportionalRedistribution(t *testing.T) {
	probs := []float64{0.34, 0.33, 0.33}

	out := Rebalance(probs, 0, 5)

	assert.InDelta(t, 0.39, out[0], 1e-9)
	assert.InDelta(t, 0.305, out[1], 1e-9)
	assert.InDelta(t, 0.305, out[2], 1e-9)

	var sum float64
	for _, p := range out {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestRebalance_NegativeAmountWithdraws(t *testing.T) {
	probs := []float64{0.6, 0.4}

	out := Rebalance(probs, 0, -10)

	assert.InDelta(t, 0.50, out[0], 1e-9)
	assert.InDelta(t, 0.50, out[1], 1e-9)
}

func TestRebalance_ClampsAtCeil(t *testing.T) {
	probs := []float64{0.95, 0.05}

	out := Rebalance(probs, 0, 20) // raw target would be 1.15

	assert.InDelta(t, ProbCeil, out[0], 1e-9)
	assert.GreaterOrEqual(t, out[1], ProbFloor)
}

func TestRebalance_ClampsAtFloor(t *testing.T) {
	probs := []float64{0.05, 0.95}

	out := Rebalance(probs, 0, -20)

	assert.InDelta(t, ProbFloor, out[0], 1e-9)
	assert.LessOrEqual(t, out[1], ProbCeil)
}

func TestRebalance_BoundsHoldForAllOutcomes(t *testing.T) {
	probs := []float64{0.25, 0.25, 0.25, 0.25}
	for _, amount := range []float64{0.5, 5, 50, -0.5, -5, -50} {
		out := Rebalance(probs, 2, amount)
		for i, p := range out {
			assert.GreaterOrEqual(t, p, ProbFloor, "outcome %d, amount %v", i, amount)
			assert.LessOrEqual(t, p, ProbCeil, "outcome %d, amount %v", i, amount)
		}
	}
}

func TestRebalance_ZeroOtherMassLeavesOthersUntouched(t *testing.T) {
	// Degenerate vector: all remaining mass on the target. Nothing to
	// redistribute, only the target moves.
	probs := []float64{1.0, 0.0}

	out := Rebalance(probs, 0, -10)

	assert.InDelta(t, 0.90, out[0], 1e-9)
	assert.Equal(t, 0.0, out[1])
}

func TestRebalance_ZeroAmountIsIdentity(t *testing.T) {
	probs := []float64{0.3, 0.7}
	assert.Equal(t, probs, Rebalance(probs, 1, 0))
}

func TestRebalance_OutOfRangeTargetIsIdentity(t *testing.T) {
	probs := []float64{0.3, 0.7}
	assert.Equal(t, probs, Rebalance(probs, -1, 5))
	assert.Equal(t, probs, Rebalance(probs, 2, 5))
}

func TestRebalance_Deterministic(t *testing.T) {
	probs := []float64{0.2, 0.5, 0.3}
	first := Rebalance(probs, 1, 7)
	second := Rebalance(probs, 1, 7)
	assert.Equal(t, first, second)
}

func TestNormalize(t *testing.T) {
	out := Normalize([]float64{0.5, 0.3, 0.1})

	var sum float64
	for _, p := range out {
		sum += p
	}
	require.InDelta(t, 1.0, sum, 1e-12)
	assert.InDelta(t, 0.5/0.9, out[0], 1e-12)
}

func TestNormalize_ZeroSumUnchanged(t *testing.T) {
	assert.Equal(t, []float64{0, 0}, Normalize([]float64{0, 0}))
}

func TestUniform(t *testing.T) {
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, Uniform(4))
	assert.Nil(t, Uniform(0))
}

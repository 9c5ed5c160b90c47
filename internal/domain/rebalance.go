package domain

import "math"

// Rebalancing constants. One unit of stake moves the target outcome's
// probability by roughly one percentage point; every probability is kept
// inside [ProbFloor, ProbCeil] so no outcome is ever priced as certain.
const (
	ImpactPerVote = 0.01
	ProbFloor     = 0.01
	ProbCeil      = 0.99
)

// Rebalance applies a signed stake delta on the target outcome to the
// probability vector and returns the new vector. The input is not mutated.
//
// The target moves by |amount|×ImpactPerVote in the direction of the sign,
// clamped to [ProbFloor, ProbCeil]. Whatever the target gained (or lost)
// is taken from (given to) the other outcomes in proportion to their share
// of the remaining mass, each independently clamped. Because of clamping
// at the extremes the result is not guaranteed to sum to exactly 1;
// callers that need an exact unit sum must Normalize afterwards.
//
// If the other outcomes hold zero total mass there is nothing to
// redistribute and only the target changes.
func Rebalance(probs []float64, target int, amount float64) []float64 {
	out := append([]float64(nil), probs...)
	if target < 0 || target >= len(out) || amount == 0 {
		return out
	}

	impact := math.Abs(amount) * ImpactPerVote
	if amount < 0 {
		impact = -impact
	}

	oldTarget := out[target]
	newTarget := clampProb(oldTarget + impact)
	adjustment := newTarget - oldTarget
	out[target] = newTarget

	var otherTotal float64
	for i, p := range out {
		if i != target {
			otherTotal += p
		}
	}
	if otherTotal <= 0 {
		return out
	}

	for i := range out {
		if i == target {
			continue
		}
		ratio := probs[i] / otherTotal
		out[i] = clampProb(out[i] - adjustment*ratio)
	}
	return out
}

// Normalize scales the vector to sum to exactly 1. A zero-sum vector is
// returned unchanged.
func Normalize(probs []float64) []float64 {
	out := append([]float64(nil), probs...)
	var sum float64
	for _, p := range out {
		sum += p
	}
	if sum <= 0 {
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Uniform returns the 1/N vector for n outcomes.
func Uniform(n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = 1.0 / float64(n)
	}
	return out
}

func clampProb(p float64) float64 {
	return math.Max(ProbFloor, math.Min(ProbCeil, p))
}

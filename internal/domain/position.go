package domain

// Position is a user's currently held stake per outcome on one question.
// Quantities is positionally aligned with the question's outcome list;
// several consumers read it back by index, so the alignment is a hard
// correctness requirement and the slice is never reordered.
type Position struct {
	QuestionID string
	UserID     string
	Quantities []float64
}

// NewPosition returns an empty position (zero on every outcome) for a
// question with n outcomes.
func NewPosition(questionID, userID string, n int) Position {
	return Position{
		QuestionID: questionID,
		UserID:     userID,
		Quantities: make([]float64, n),
	}
}

// Total returns the sum of held quantities across all outcomes.
func (p Position) Total() float64 {
	var sum float64
	for _, q := range p.Quantities {
		sum += q
	}
	return sum
}

// MinQuantity returns the smallest held quantity across all outcomes. A
// symmetric withdrawal is capped by this value, since the user's net
// exposure is bounded by their smallest position. Returns 0 for an empty
// vector.
func (p Position) MinQuantity() float64 {
	if len(p.Quantities) == 0 {
		return 0
	}
	min := p.Quantities[0]
	for _, q := range p.Quantities[1:] {
		if q < min {
			min = q
		}
	}
	return min
}

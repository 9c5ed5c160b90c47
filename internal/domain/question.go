package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QuestionStatus represents the lifecycle state of a question.
type QuestionStatus string

const (
	QuestionStatusOpen    QuestionStatus = "open"
	QuestionStatusEnded   QuestionStatus = "ended"
	QuestionStatusExpired QuestionStatus = "expired"
)

// QuestionType distinguishes binary questions from multi-outcome ones.
type QuestionType string

const (
	QuestionTypeTwo      QuestionType = "two"
	QuestionTypeMultiple QuestionType = "multiple"
)

// SumEpsilon is the tolerance applied when validating that a probability
// vector sums to 1 at creation time.
const SumEpsilon = 0.01

// Question is a prediction with N mutually exclusive outcomes and a live
// probability vector. Outcomes and Probabilities are positionally aligned
// and never reordered or resized after creation.
type Question struct {
	ID            string
	Title         string
	Type          QuestionType
	Status        QuestionStatus
	Tags          []string
	Outcomes      []string
	Probabilities []float64
	Rules         string
	CreatedBy     string
	CreatedAt     time.Time
	ExpireAt      time.Time

	// Terminal fields, set exactly once by resolution or expiry.
	Result  *string
	EndedBy *string
	EndAt   *time.Time
}

// NewQuestion validates the inputs and builds an open question with a fresh
// ID. It returns ErrValidation (wrapped with detail) on malformed input.
func NewQuestion(title string, outcomes []string, probabilities []float64, tags []string, createdBy string, expireAt time.Time, rules string) (Question, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Question{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if createdBy == "" {
		return Question{}, fmt.Errorf("%w: creator is required", ErrValidation)
	}
	if len(outcomes) < 2 {
		return Question{}, fmt.Errorf("%w: at least two outcomes required, got %d", ErrValidation, len(outcomes))
	}
	if len(probabilities) != len(outcomes) {
		return Question{}, fmt.Errorf("%w: %d probabilities for %d outcomes", ErrValidation, len(probabilities), len(outcomes))
	}

	seen := make(map[string]bool, len(outcomes))
	cleaned := make([]string, len(outcomes))
	for i, o := range outcomes {
		o = strings.TrimSpace(o)
		if o == "" {
			return Question{}, fmt.Errorf("%w: outcome %d is empty", ErrValidation, i)
		}
		if seen[o] {
			return Question{}, fmt.Errorf("%w: duplicate outcome %q", ErrValidation, o)
		}
		seen[o] = true
		cleaned[i] = o
	}

	sum := 0.0
	for i, p := range probabilities {
		if p <= 0 {
			return Question{}, fmt.Errorf("%w: probability for %q must be > 0, got %v", ErrValidation, cleaned[i], p)
		}
		sum += p
	}
	if math.Abs(sum-1.0) > SumEpsilon {
		return Question{}, fmt.Errorf("%w: probabilities sum to %.4f, want 1.0 ±%.2f", ErrValidation, sum, SumEpsilon)
	}

	qType := QuestionTypeMultiple
	if len(cleaned) == 2 {
		qType = QuestionTypeTwo
	}

	return Question{
		ID:            uuid.New().String(),
		Title:         title,
		Type:          qType,
		Status:        QuestionStatusOpen,
		Tags:          normalizeTags(tags),
		Outcomes:      cleaned,
		Probabilities: append([]float64(nil), probabilities...),
		Rules:         rules,
		CreatedBy:     createdBy,
		CreatedAt:     time.Now().UTC(),
		ExpireAt:      expireAt.UTC(),
	}, nil
}

// OutcomeIndex returns the position of the named outcome, or -1.
func (q Question) OutcomeIndex(outcome string) int {
	for i, o := range q.Outcomes {
		if o == outcome {
			return i
		}
	}
	return -1
}

// IsOpen reports whether the question still accepts stake actions.
func (q Question) IsOpen() bool {
	return q.Status == QuestionStatusOpen
}

// LeadingOutcome returns the outcome with the highest probability and its
// value. Ties resolve to the earliest outcome.
func (q Question) LeadingOutcome() (string, float64) {
	best := 0
	for i := 1; i < len(q.Probabilities); i++ {
		if q.Probabilities[i] > q.Probabilities[best] {
			best = i
		}
	}
	return q.Outcomes[best], q.Probabilities[best]
}

func normalizeTags(tags []string) []string {
	var out []string
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

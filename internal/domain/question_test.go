package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQuestionArgs() (string, []string, []float64) {
	return "Will it rain tomorrow?", []string{"Yes", "No"}, []float64{0.5, 0.5}
}

func TestNewQuestion_Valid(t *testing.T) {
	title, outcomes, probs := validQuestionArgs()
	expire := time.Now().Add(24 * time.Hour)

	q, err := NewQuestion(title, outcomes, probs, []string{"weather", "weather", " "}, "alice", expire, "resolves by local report")
	require.NoError(t, err)

	assert.NotEmpty(t, q.ID)
	assert.Equal(t, QuestionStatusOpen, q.Status)
	assert.Equal(t, QuestionTypeTwo, q.Type)
	assert.Equal(t, []string{"weather"}, q.Tags) // deduplicated, blanks dropped
	assert.Equal(t, outcomes, q.Outcomes)
	assert.Equal(t, "alice", q.CreatedBy)
	assert.Nil(t, q.Result)
}

func TestNewQuestion_MultipleType(t *testing.T) {
	q, err := NewQuestion("Who wins?", []string{"A", "B", "C"}, []float64{0.4, 0.3, 0.3}, nil, "bob", time.Now().Add(time.Hour), "")
	require.NoError(t, err)
	assert.Equal(t, QuestionTypeMultiple, q.Type)
}

func TestNewQuestion_EmptyTitle(t *testing.T) {
	_, outcomes, probs := validQuestionArgs()
	_, err := NewQuestion("  ", outcomes, probs, nil, "alice", time.Now(), "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewQuestion_SumOffByTooMuch(t *testing.T) {
	// Probabilities sum to 0.9: rejected, nothing persisted downstream.
	_, err := NewQuestion("q", []string{"A", "B"}, []float64{0.5, 0.4}, nil, "alice", time.Now(), "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewQuestion_SumWithinEpsilonAccepted(t *testing.T) {
	_, err := NewQuestion("q", []string{"A", "B"}, []float64{0.505, 0.5}, nil, "alice", time.Now(), "")
	assert.NoError(t, err)
}

func TestNewQuestion_DuplicateOutcomes(t *testing.T) {
	_, err := NewQuestion("q", []string{"A", "A"}, []float64{0.5, 0.5}, nil, "alice", time.Now(), "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewQuestion_SingleOutcome(t *testing.T) {
	_, err := NewQuestion("q", []string{"A"}, []float64{1.0}, nil, "alice", time.Now(), "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewQuestion_NonPositiveProbability(t *testing.T) {
	_, err := NewQuestion("q", []string{"A", "B"}, []float64{1.0, 0}, nil, "alice", time.Now(), "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewQuestion_LengthMismatch(t *testing.T) {
	_, err := NewQuestion("q", []string{"A", "B"}, []float64{1.0}, nil, "alice", time.Now(), "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestQuestion_OutcomeIndex(t *testing.T) {
	q := Question{Outcomes: []string{"A", "B", "C"}}
	assert.Equal(t, 1, q.OutcomeIndex("B"))
	assert.Equal(t, -1, q.OutcomeIndex("missing"))
}

func TestQuestion_LeadingOutcome(t *testing.T) {
	q := Question{
		Outcomes:      []string{"A", "B", "C"},
		Probabilities: []float64{0.2, 0.5, 0.3},
	}
	name, p := q.LeadingOutcome()
	assert.Equal(t, "B", name)
	assert.Equal(t, 0.5, p)
}

func TestPosition_MinQuantity(t *testing.T) {
	p := Position{Quantities: []float64{3, 5, 2}}
	assert.Equal(t, 2.0, p.MinQuantity())
	assert.Equal(t, 10.0, p.Total())

	empty := Position{}
	assert.Equal(t, 0.0, empty.MinQuantity())
}

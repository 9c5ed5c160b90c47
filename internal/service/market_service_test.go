package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castmarket/castmarket/internal/domain"
)

func newMarketFixture(t *testing.T) (*MarketService, *memStore, *memBus) {
	t.Helper()
	store := newMemStore()
	bus := &memBus{}
	return NewMarketService(store, bus, testLogger()), store, bus
}

func TestCreateQuestion_PersistsAndAnnounces(t *testing.T) {
	svc, store, bus := newMarketFixture(t)

	q, err := svc.CreateQuestion(context.Background(), CreateQuestionInput{
		Title:         "Will it rain tomorrow?",
		Outcomes:      []string{"Yes", "No"},
		Probabilities: []float64{0.7, 0.3},
		Tags:          []string{"weather"},
		CreatedBy:     "alice",
		ExpireAt:      time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, q.ID)
	assert.Equal(t, domain.QuestionStatusOpen, q.Status)
	assert.Equal(t, domain.QuestionTypeTwo, q.Type)

	stored, err := store.Questions().GetByID(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, "Will it rain tomorrow?", stored.Title)

	events := bus.onChannel(ChannelQuestions)
	require.Len(t, events, 1)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(events[0].payload, &payload))
	assert.Equal(t, "question_created", payload["event"])
	assert.Equal(t, q.ID, payload["question_id"])
}

func TestCreateQuestion_RejectsMalformedInput(t *testing.T) {
	svc, store, _ := newMarketFixture(t)

	cases := []struct {
		name string
		in   CreateQuestionInput
	}{
		{"empty title", CreateQuestionInput{Outcomes: []string{"Yes", "No"}, Probabilities: []float64{0.5, 0.5}, CreatedBy: "alice"}},
		{"single outcome", CreateQuestionInput{Title: "t", Outcomes: []string{"Yes"}, Probabilities: []float64{1}, CreatedBy: "alice"}},
		{"probabilities do not sum to one", CreateQuestionInput{Title: "t", Outcomes: []string{"Yes", "No"}, Probabilities: []float64{0.5, 0.3}, CreatedBy: "alice"}},
		{"duplicate outcomes", CreateQuestionInput{Title: "t", Outcomes: []string{"Yes", "Yes"}, Probabilities: []float64{0.5, 0.5}, CreatedBy: "alice"}},
		{"missing creator", CreateQuestionInput{Title: "t", Outcomes: []string{"Yes", "No"}, Probabilities: []float64{0.5, 0.5}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateQuestion(context.Background(), tc.in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	listed, err := store.Questions().List(context.Background(), domain.QuestionFilter{})
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestListQuestions_FiltersAndSummarizes(t *testing.T) {
	svc, store, _ := newMarketFixture(t)
	q1 := seedQuestion(store, []string{"Yes", "No"}, []float64{0.7, 0.3}, "alice", time.Now().Add(time.Hour))
	q2 := seedQuestion(store, []string{"A", "B"}, []float64{0.5, 0.5}, "bob", time.Now().Add(time.Hour))
	require.NoError(t, store.Questions().MarkEnded(context.Background(), q2.ID, "A", "bob", time.Now()))

	pos := domain.Position{QuestionID: q1.ID, UserID: "carol", Quantities: []float64{8, 2}}
	require.NoError(t, store.Positions().Upsert(context.Background(), pos))

	open, err := svc.ListQuestions(context.Background(), domain.QuestionFilter{Status: domain.QuestionStatusOpen})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, q1.ID, open[0].ID)
	assert.InDelta(t, 10, open[0].TotalStaked, 1e-9)
	assert.Equal(t, "Yes", open[0].LeadingOutcome)
	assert.InDelta(t, 0.7, open[0].LeadingProbability, 1e-9)

	all, err := svc.ListQuestions(context.Background(), domain.QuestionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeleteQuestion_CreatorOnlyAndCascades(t *testing.T) {
	svc, store, bus := newMarketFixture(t)
	q := seedQuestion(store, []string{"Yes", "No"}, []float64{0.5, 0.5}, "alice", time.Now().Add(time.Hour))
	pos := domain.Position{QuestionID: q.ID, UserID: "bob", Quantities: []float64{5, 0}}
	require.NoError(t, store.Positions().Upsert(context.Background(), pos))
	require.NoError(t, store.Votes().Append(context.Background(), domain.VoteRecord{
		ID: "v1", QuestionID: q.ID, UserID: "bob", Outcome: "Yes", Amount: 5, CreatedAt: time.Now(),
	}))

	err := svc.DeleteQuestion(context.Background(), q.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, svc.DeleteQuestion(context.Background(), q.ID, "alice"))

	_, err = store.Questions().GetByID(context.Background(), q.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	positions, err := store.Positions().ListByQuestion(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Empty(t, positions)
	votes, err := store.Votes().ListByQuestion(context.Background(), q.ID, domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, votes)

	events := bus.onChannel(ChannelQuestions)
	require.Len(t, events, 1)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(events[0].payload, &payload))
	assert.Equal(t, "question_deleted", payload["event"])
}

func TestDeleteQuestion_Unknown(t *testing.T) {
	svc, _, _ := newMarketFixture(t)

	err := svc.DeleteQuestion(context.Background(), "missing", "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/castmarket/castmarket/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedQuestion creates and stores an open question directly, bypassing the
// service layer.
func seedQuestion(store *memStore, outcomes []string, probs []float64, createdBy string, expireAt time.Time) domain.Question {
	q, err := domain.NewQuestion("test question", outcomes, probs, nil, createdBy, expireAt, "")
	if err != nil {
		panic(err)
	}
	store.questions[q.ID] = copyQuestion(q)
	return q
}

// memStore is an in-memory store backing the service tests. It implements
// StoreTx and TxRunner over plain maps. InTx snapshots the maps before
// running fn and restores them when fn fails, so the tests can assert the
// all-or-nothing commit of the stake unit. The per-kind stores are thin
// views over the shared data.
type memStore struct {
	mu        sync.Mutex
	questions map[string]domain.Question
	positions map[string]domain.Position
	votes     []domain.VoteRecord

	// appendErr, when set, makes Votes().Append fail after
	// appendErrAfter successful appends.
	appendErr      error
	appendErrAfter int
}

func newMemStore() *memStore {
	return &memStore{
		questions: make(map[string]domain.Question),
		positions: make(map[string]domain.Position),
	}
}

func posKey(questionID, userID string) string {
	return questionID + "/" + userID
}

func copyQuestion(q domain.Question) domain.Question {
	q.Tags = append([]string(nil), q.Tags...)
	q.Outcomes = append([]string(nil), q.Outcomes...)
	q.Probabilities = append([]float64(nil), q.Probabilities...)
	return q
}

func (m *memStore) InTx(_ context.Context, fn func(tx domain.StoreTx) error) error {
	m.mu.Lock()
	questions := make(map[string]domain.Question, len(m.questions))
	for id, q := range m.questions {
		questions[id] = copyQuestion(q)
	}
	positions := make(map[string]domain.Position, len(m.positions))
	for key, p := range m.positions {
		p.Quantities = append([]float64(nil), p.Quantities...)
		positions[key] = p
	}
	votes := append([]domain.VoteRecord(nil), m.votes...)
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.questions = questions
		m.positions = positions
		m.votes = votes
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) Questions() domain.QuestionStore { return (*memQuestionStore)(m) }
func (m *memStore) Positions() domain.PositionStore { return (*memPositionStore)(m) }
func (m *memStore) Votes() domain.VoteStore         { return (*memVoteStore)(m) }

type memQuestionStore memStore

func (m *memQuestionStore) Create(_ context.Context, q domain.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions[q.ID] = copyQuestion(q)
	return nil
}

func (m *memQuestionStore) GetByID(_ context.Context, id string) (domain.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrNotFound
	}
	return copyQuestion(q), nil
}

func (m *memQuestionStore) GetForUpdate(ctx context.Context, id string) (domain.Question, error) {
	return m.GetByID(ctx, id)
}

func (m *memQuestionStore) List(_ context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Question
	for _, q := range m.questions {
		if filter.Status != "" && q.Status != filter.Status {
			continue
		}
		if filter.Tag != "" && !hasTag(q, filter.Tag) {
			continue
		}
		out = append(out, copyQuestion(q))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Opts.Offset > 0 {
		if filter.Opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Opts.Offset:]
	}
	if filter.Opts.Limit > 0 && len(out) > filter.Opts.Limit {
		out = out[:filter.Opts.Limit]
	}
	return out, nil
}

func hasTag(q domain.Question, tag string) bool {
	for _, t := range q.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (m *memQuestionStore) UpdateProbabilities(_ context.Context, id string, probs []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return domain.ErrNotFound
	}
	q.Probabilities = append([]float64(nil), probs...)
	m.questions[id] = q
	return nil
}

func (m *memQuestionStore) MarkEnded(_ context.Context, id, result, endedBy string, endAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if q.Status != domain.QuestionStatusOpen {
		return domain.ErrAlreadyEnded
	}
	q.Status = domain.QuestionStatusEnded
	q.Result = &result
	q.EndedBy = &endedBy
	q.EndAt = &endAt
	m.questions[id] = q
	return nil
}

func (m *memQuestionStore) ExpireDue(_ context.Context, now time.Time) ([]domain.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []domain.Question
	for id, q := range m.questions {
		if q.Status != domain.QuestionStatusOpen || !q.ExpireAt.Before(now) {
			continue
		}
		q.Status = domain.QuestionStatusExpired
		endAt := now
		q.EndAt = &endAt
		m.questions[id] = q
		expired = append(expired, copyQuestion(q))
	}
	return expired, nil
}

func (m *memQuestionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.questions, id)
	for key, p := range m.positions {
		if p.QuestionID == id {
			delete(m.positions, key)
		}
	}
	kept := m.votes[:0]
	for _, v := range m.votes {
		if v.QuestionID != id {
			kept = append(kept, v)
		}
	}
	m.votes = kept
	return nil
}

type memPositionStore memStore

func (m *memPositionStore) Get(_ context.Context, questionID, userID string) (domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[posKey(questionID, userID)]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	p.Quantities = append([]float64(nil), p.Quantities...)
	return p, nil
}

func (m *memPositionStore) Upsert(_ context.Context, p domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Quantities = append([]float64(nil), p.Quantities...)
	m.positions[posKey(p.QuestionID, p.UserID)] = p
	return nil
}

func (m *memPositionStore) ListByQuestion(_ context.Context, questionID string) ([]domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Position
	for _, p := range m.positions {
		if p.QuestionID == questionID {
			p.Quantities = append([]float64(nil), p.Quantities...)
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPositionStore) TotalStaked(_ context.Context, questionID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum float64
	for _, p := range m.positions {
		if p.QuestionID == questionID {
			sum += p.Total()
		}
	}
	return sum, nil
}

type memVoteStore memStore

func (m *memVoteStore) Append(_ context.Context, v domain.VoteRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		if m.appendErrAfter == 0 {
			return m.appendErr
		}
		m.appendErrAfter--
	}
	m.votes = append(m.votes, v)
	return nil
}

func (m *memVoteStore) ListByQuestion(_ context.Context, questionID string, opts domain.ListOpts) ([]domain.VoteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.VoteRecord
	for _, v := range m.votes {
		if v.QuestionID == questionID {
			out = append(out, v)
		}
	}
	// Newest first, like the SQL store.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memVoteStore) ListByUser(_ context.Context, userID string, opts domain.ListOpts) ([]domain.VoteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.VoteRecord
	for _, v := range m.votes {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memVoteStore) ListBefore(_ context.Context, before time.Time) ([]domain.VoteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.VoteRecord
	for _, v := range m.votes {
		if v.CreatedAt.Before(before) {
			out = append(out, v)
		}
	}
	return out, nil
}

// fakeLockManager records acquisitions. With held set it refuses every
// Acquire, simulating a contender that never releases.
type fakeLockManager struct {
	mu       sync.Mutex
	held     bool
	acquired []string
	released int
}

func (f *fakeLockManager) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held {
		return nil, domain.ErrLockHeld
	}
	f.acquired = append(f.acquired, key)
	return func() {
		f.mu.Lock()
		f.released++
		f.mu.Unlock()
	}, nil
}

// memBus records everything published to it.
type memBus struct {
	mu     sync.Mutex
	events []busEvent
}

type busEvent struct {
	channel string
	payload []byte
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, busEvent{channel: channel, payload: payload})
	return nil
}

func (b *memBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *memBus) onChannel(channel string) []busEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []busEvent
	for _, e := range b.events {
		if e.channel == channel {
			out = append(out, e)
		}
	}
	return out
}

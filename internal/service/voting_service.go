package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/castmarket/castmarket/internal/domain"
)

// LockConfig bounds the per-question lock acquisition. After Retries
// failed attempts the operation fails with domain.ErrQuestionBusy instead
// of blocking indefinitely.
type LockConfig struct {
	TTL        time.Duration
	Retries    int
	RetryDelay time.Duration
}

// DefaultLockConfig is used when the caller leaves LockConfig zero.
var DefaultLockConfig = LockConfig{
	TTL:        5 * time.Second,
	Retries:    5,
	RetryDelay: 100 * time.Millisecond,
}

// VotingService executes stake actions. A stake touches three resources --
// the question's probability vector, the caller's ledger row, and the vote
// journal -- and commits them as one transaction. Actions on the same
// question are serialized by a per-question lock plus the question row
// lock; actions on different questions run fully in parallel.
type VotingService struct {
	tx     domain.TxRunner
	locks  domain.LockManager
	bus    domain.SignalBus
	lock   LockConfig
	logger *slog.Logger
}

// NewVotingService creates a VotingService. locks may be nil when a single
// process owns the database (the row lock still serializes); bus may be
// nil to disable event publishing.
func NewVotingService(tx domain.TxRunner, locks domain.LockManager, bus domain.SignalBus, lock LockConfig, logger *slog.Logger) *VotingService {
	if lock.TTL <= 0 {
		lock.TTL = DefaultLockConfig.TTL
	}
	if lock.Retries <= 0 {
		lock.Retries = DefaultLockConfig.Retries
	}
	if lock.RetryDelay <= 0 {
		lock.RetryDelay = DefaultLockConfig.RetryDelay
	}
	return &VotingService{
		tx:     tx,
		locks:  locks,
		bus:    bus,
		lock:   lock,
		logger: logger.With(slog.String("component", "voting_service")),
	}
}

// StakeResult is returned to the caller for display after a stake action.
type StakeResult struct {
	QuestionID    string
	Outcomes      []string
	Probabilities []float64
	Position      domain.Position
}

// Stake applies a signed stake delta for userID on a question and returns
// the new probability vector. A positive amount stakes on the named
// outcome. A negative amount performs a symmetric withdrawal: |amount| is
// removed from every outcome and is only permitted when the smallest held
// quantity covers it, since net exposure is bounded by the smallest
// position.
func (s *VotingService) Stake(ctx context.Context, questionID, userID, outcome string, amount float64) (StakeResult, error) {
	if userID == "" {
		return StakeResult{}, fmt.Errorf("%w: user is required", domain.ErrValidation)
	}
	if amount == 0 {
		return StakeResult{}, fmt.Errorf("%w: amount must be non-zero", domain.ErrValidation)
	}

	unlock, err := acquireLock(ctx, s.locks, s.lock, questionLockKey(questionID))
	if err != nil {
		return StakeResult{}, err
	}
	defer unlock()

	var result StakeResult
	err = s.tx.InTx(ctx, func(tx domain.StoreTx) error {
		q, err := tx.Questions().GetForUpdate(ctx, questionID)
		if err != nil {
			return err
		}
		if !q.IsOpen() {
			return domain.ErrQuestionNotOpen
		}

		if amount > 0 {
			result, err = s.applyStake(ctx, tx, q, userID, outcome, amount)
		} else {
			result, err = s.applyWithdrawal(ctx, tx, q, userID, -amount)
		}
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound),
			errors.Is(err, domain.ErrValidation),
			errors.Is(err, domain.ErrQuestionNotOpen),
			errors.Is(err, domain.ErrInsufficientPosition):
			return StakeResult{}, err
		}
		return StakeResult{}, fmt.Errorf("voting_service: stake on %q: %w", questionID, err)
	}

	s.publishProbabilities(ctx, result)
	s.publishVote(ctx, questionID, userID, outcome, amount)
	s.logger.InfoContext(ctx, "voting_service: stake applied",
		slog.String("question_id", questionID),
		slog.String("user_id", userID),
		slog.String("outcome", outcome),
		slog.Float64("amount", amount),
	)

	return result, nil
}

// applyStake adds a positive delta on one outcome. The ledger row is
// created on demand with zero on every outcome.
func (s *VotingService) applyStake(ctx context.Context, tx domain.StoreTx, q domain.Question, userID, outcome string, amount float64) (StakeResult, error) {
	idx := q.OutcomeIndex(outcome)
	if idx < 0 {
		return StakeResult{}, fmt.Errorf("%w: unknown outcome %q", domain.ErrValidation, outcome)
	}

	pos, err := tx.Positions().Get(ctx, q.ID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		pos = domain.NewPosition(q.ID, userID, len(q.Outcomes))
	} else if err != nil {
		return StakeResult{}, err
	}
	pos.Quantities[idx] += amount

	probs := domain.Normalize(domain.Rebalance(q.Probabilities, idx, amount))

	if err := tx.Questions().UpdateProbabilities(ctx, q.ID, probs); err != nil {
		return StakeResult{}, err
	}
	if err := tx.Positions().Upsert(ctx, pos); err != nil {
		return StakeResult{}, err
	}
	if err := tx.Votes().Append(ctx, domain.VoteRecord{
		ID:          uuid.New().String(),
		QuestionID:  q.ID,
		UserID:      userID,
		Outcome:     outcome,
		Amount:      amount,
		Probability: probs[idx],
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		return StakeResult{}, err
	}

	return StakeResult{
		QuestionID:    q.ID,
		Outcomes:      q.Outcomes,
		Probabilities: probs,
		Position:      pos,
	}, nil
}

// applyWithdrawal removes amount from every outcome, rebalancing each in
// turn, and journals one record per outcome the way a stake does.
func (s *VotingService) applyWithdrawal(ctx context.Context, tx domain.StoreTx, q domain.Question, userID string, amount float64) (StakeResult, error) {
	pos, err := tx.Positions().Get(ctx, q.ID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return StakeResult{}, domain.ErrInsufficientPosition
	} else if err != nil {
		return StakeResult{}, err
	}
	if pos.MinQuantity() < amount {
		return StakeResult{}, domain.ErrInsufficientPosition
	}

	now := time.Now().UTC()
	probs := q.Probabilities
	for i := range q.Outcomes {
		pos.Quantities[i] -= amount
		probs = domain.Rebalance(probs, i, -amount)

		if err := tx.Votes().Append(ctx, domain.VoteRecord{
			ID:          uuid.New().String(),
			QuestionID:  q.ID,
			UserID:      userID,
			Outcome:     q.Outcomes[i],
			Amount:      -amount,
			Probability: probs[i],
			CreatedAt:   now,
		}); err != nil {
			return StakeResult{}, err
		}
	}
	probs = domain.Normalize(probs)

	if err := tx.Questions().UpdateProbabilities(ctx, q.ID, probs); err != nil {
		return StakeResult{}, err
	}
	if err := tx.Positions().Upsert(ctx, pos); err != nil {
		return StakeResult{}, err
	}

	return StakeResult{
		QuestionID:    q.ID,
		Outcomes:      q.Outcomes,
		Probabilities: probs,
		Position:      pos,
	}, nil
}

// Preview computes the probability vector a stake would produce without
// writing anything. Safe to call on any question state.
func (s *VotingService) Preview(ctx context.Context, questionID, outcome string, amount float64) ([]float64, error) {
	var q domain.Question
	err := s.tx.InTx(ctx, func(tx domain.StoreTx) error {
		var err error
		q, err = tx.Questions().GetByID(ctx, questionID)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("voting_service: preview on %q: %w", questionID, err)
	}

	idx := q.OutcomeIndex(outcome)
	if idx < 0 {
		return nil, fmt.Errorf("%w: unknown outcome %q", domain.ErrValidation, outcome)
	}
	return domain.Normalize(domain.Rebalance(q.Probabilities, idx, amount)), nil
}

// GetPosition returns the caller's ledger row for a question. A user with
// no row holds zero on every outcome.
func (s *VotingService) GetPosition(ctx context.Context, questionID, userID string) (domain.Position, error) {
	var pos domain.Position
	err := s.tx.InTx(ctx, func(tx domain.StoreTx) error {
		q, err := tx.Questions().GetByID(ctx, questionID)
		if err != nil {
			return err
		}
		pos, err = tx.Positions().Get(ctx, questionID, userID)
		if errors.Is(err, domain.ErrNotFound) {
			pos = domain.NewPosition(questionID, userID, len(q.Outcomes))
			return nil
		}
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("voting_service: get position %q/%q: %w", questionID, userID, err)
	}
	return pos, nil
}

// ListUserVotes returns a user's stake history across all questions,
// newest first.
func (s *VotingService) ListUserVotes(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.VoteRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", domain.ErrValidation)
	}

	var votes []domain.VoteRecord
	err := s.tx.InTx(ctx, func(tx domain.StoreTx) error {
		var err error
		votes, err = tx.Votes().ListByUser(ctx, userID, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("voting_service: list votes for user %q: %w", userID, err)
	}
	return votes, nil
}

// ListVotes returns the journal slice for a question, newest first.
func (s *VotingService) ListVotes(ctx context.Context, questionID string, opts domain.ListOpts) ([]domain.VoteRecord, error) {
	var votes []domain.VoteRecord
	err := s.tx.InTx(ctx, func(tx domain.StoreTx) error {
		if _, err := tx.Questions().GetByID(ctx, questionID); err != nil {
			return err
		}
		var err error
		votes, err = tx.Votes().ListByQuestion(ctx, questionID, opts)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("voting_service: list votes for %q: %w", questionID, err)
	}
	return votes, nil
}

// publishVote emits the stake action itself on the votes channel. A
// withdrawal carries its negative amount and an empty outcome, since it
// touches every outcome.
func (s *VotingService) publishVote(ctx context.Context, questionID, userID, outcome string, amount float64) {
	if s.bus == nil {
		return
	}
	if amount < 0 {
		outcome = ""
	}
	payload, _ := json.Marshal(map[string]any{
		"event":       "vote_recorded",
		"question_id": questionID,
		"user_id":     userID,
		"outcome":     outcome,
		"amount":      amount,
	})
	if err := s.bus.Publish(ctx, ChannelVotes, payload); err != nil {
		s.logger.WarnContext(ctx, "voting_service: publish vote failed",
			slog.String("question_id", questionID),
			slog.String("error", err.Error()),
		)
	}
}

// publishProbabilities emits the post-stake vector for live displays.
func (s *VotingService) publishProbabilities(ctx context.Context, r StakeResult) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"event":         "probabilities_updated",
		"question_id":   r.QuestionID,
		"outcomes":      r.Outcomes,
		"probabilities": r.Probabilities,
	})
	if err := s.bus.Publish(ctx, ChannelProbabilities, payload); err != nil {
		s.logger.WarnContext(ctx, "voting_service: publish probabilities failed",
			slog.String("question_id", r.QuestionID),
			slog.String("error", err.Error()),
		)
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/castmarket/castmarket/internal/domain"
)

// MarketService is the question registry: it creates, lists, and deletes
// questions. Deletion is creator-gated and cascades to the position ledger
// and the vote journal.
type MarketService struct {
	tx     domain.TxRunner
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewMarketService creates a MarketService with the given dependencies.
// bus may be nil, in which case no events are published.
func NewMarketService(tx domain.TxRunner, bus domain.SignalBus, logger *slog.Logger) *MarketService {
	return &MarketService{
		tx:     tx,
		bus:    bus,
		logger: logger.With(slog.String("component", "market_service")),
	}
}

// CreateQuestionInput carries the caller-supplied fields of a new question.
type CreateQuestionInput struct {
	Title         string
	Outcomes      []string
	Probabilities []float64
	Tags          []string
	CreatedBy     string
	ExpireAt      time.Time
	Rules         string
}

// QuestionSummary is a question enriched with aggregate ledger data for
// list output.
type QuestionSummary struct {
	domain.Question
	TotalStaked        float64
	LeadingOutcome     string
	LeadingProbability float64
}

// CreateQuestion validates the input and persists a new open question. On
// malformed input it returns an error wrapping domain.ErrValidation and
// nothing is persisted.
func (s *MarketService) CreateQuestion(ctx context.Context, in CreateQuestionInput) (domain.Question, error) {
	q, err := domain.NewQuestion(in.Title, in.Outcomes, in.Probabilities, in.Tags, in.CreatedBy, in.ExpireAt, in.Rules)
	if err != nil {
		return domain.Question{}, err
	}

	err = s.tx.InTx(ctx, func(tx domain.StoreTx) error {
		return tx.Questions().Create(ctx, q)
	})
	if err != nil {
		return domain.Question{}, fmt.Errorf("market_service: create question: %w", err)
	}

	s.publish(ctx, ChannelQuestions, map[string]any{
		"event":       "question_created",
		"question_id": q.ID,
		"title":       q.Title,
		"outcomes":    q.Outcomes,
		"created_by":  q.CreatedBy,
	})

	s.logger.InfoContext(ctx, "market_service: question created",
		slog.String("question_id", q.ID),
		slog.String("title", q.Title),
		slog.Int("outcomes", len(q.Outcomes)),
		slog.String("created_by", q.CreatedBy),
	)

	return q, nil
}

// GetQuestion returns one question by ID.
func (s *MarketService) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	var q domain.Question
	err := s.tx.InTx(ctx, func(tx domain.StoreTx) error {
		var err error
		q, err = tx.Questions().GetByID(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Question{}, domain.ErrNotFound
		}
		return domain.Question{}, fmt.Errorf("market_service: get question %q: %w", id, err)
	}
	return q, nil
}

// ListQuestions returns a snapshot of questions matching the filter,
// newest first, each enriched with the total staked volume and the leading
// outcome.
func (s *MarketService) ListQuestions(ctx context.Context, filter domain.QuestionFilter) ([]QuestionSummary, error) {
	var summaries []QuestionSummary
	err := s.tx.InTx(ctx, func(tx domain.StoreTx) error {
		questions, err := tx.Questions().List(ctx, filter)
		if err != nil {
			return err
		}
		for _, q := range questions {
			total, err := tx.Positions().TotalStaked(ctx, q.ID)
			if err != nil {
				return err
			}
			leading, prob := q.LeadingOutcome()
			summaries = append(summaries, QuestionSummary{
				Question:           q,
				TotalStaked:        total,
				LeadingOutcome:     leading,
				LeadingProbability: prob,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("market_service: list questions: %w", err)
	}
	return summaries, nil
}

// DeleteQuestion removes a question and, by cascade, every position and
// vote record referencing it. Only the creator may delete.
func (s *MarketService) DeleteQuestion(ctx context.Context, id, requester string) error {
	err := s.tx.InTx(ctx, func(tx domain.StoreTx) error {
		q, err := tx.Questions().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if q.CreatedBy != requester {
			return domain.ErrUnauthorized
		}
		return tx.Questions().Delete(ctx, id)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnauthorized) {
			return err
		}
		return fmt.Errorf("market_service: delete question %q: %w", id, err)
	}

	s.publish(ctx, ChannelQuestions, map[string]any{
		"event":       "question_deleted",
		"question_id": id,
	})

	s.logger.InfoContext(ctx, "market_service: question deleted",
		slog.String("question_id", id),
		slog.String("requester", requester),
	)
	return nil
}

// publish sends a JSON event on the bus. Publish failures are logged, not
// propagated: the state change has already committed.
func (s *MarketService) publish(ctx context.Context, channel string, event map[string]any) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(event)
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "market_service: publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/castmarket/castmarket/internal/domain"
	"github.com/castmarket/castmarket/internal/notify"
)

// ResolutionService performs the one-shot, creator-gated transition of a
// question to its terminal ended state.
type ResolutionService struct {
	tx       domain.TxRunner
	locks    domain.LockManager
	bus      domain.SignalBus
	notifier *notify.Notifier
	lock     LockConfig
	logger   *slog.Logger
}

// NewResolutionService creates a ResolutionService. locks, bus, and
// notifier may each be nil.
func NewResolutionService(tx domain.TxRunner, locks domain.LockManager, bus domain.SignalBus, notifier *notify.Notifier, lock LockConfig, logger *slog.Logger) *ResolutionService {
	if lock.TTL <= 0 {
		lock.TTL = DefaultLockConfig.TTL
	}
	if lock.Retries <= 0 {
		lock.Retries = DefaultLockConfig.Retries
	}
	if lock.RetryDelay <= 0 {
		lock.RetryDelay = DefaultLockConfig.RetryDelay
	}
	return &ResolutionService{
		tx:       tx,
		locks:    locks,
		bus:      bus,
		notifier: notifier,
		lock:     lock,
		logger:   logger.With(slog.String("component", "resolution_service")),
	}
}

// EndQuestion declares the winning outcome of an open question. Only the
// creator may resolve; the winning outcome must be one of the question's
// outcomes; a question that already reached a terminal state yields
// domain.ErrAlreadyEnded and no write.
func (s *ResolutionService) EndQuestion(ctx context.Context, id, winningOutcome, requester string) error {
	unlock, err := acquireLock(ctx, s.locks, s.lock, questionLockKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	var title string
	err = s.tx.InTx(ctx, func(tx domain.StoreTx) error {
		q, err := tx.Questions().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if q.CreatedBy != requester {
			return domain.ErrUnauthorized
		}
		if !q.IsOpen() {
			return domain.ErrAlreadyEnded
		}
		if q.OutcomeIndex(winningOutcome) < 0 {
			return fmt.Errorf("%w: unknown outcome %q", domain.ErrValidation, winningOutcome)
		}
		title = q.Title
		return tx.Questions().MarkEnded(ctx, id, winningOutcome, requester, time.Now().UTC())
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound),
			errors.Is(err, domain.ErrUnauthorized),
			errors.Is(err, domain.ErrAlreadyEnded),
			errors.Is(err, domain.ErrValidation):
			return err
		}
		return fmt.Errorf("resolution_service: end question %q: %w", id, err)
	}

	if s.bus != nil {
		payload, _ := json.Marshal(map[string]any{
			"event":       "question_ended",
			"question_id": id,
			"result":      winningOutcome,
			"ended_by":    requester,
		})
		if pubErr := s.bus.Publish(ctx, ChannelQuestions, payload); pubErr != nil {
			s.logger.WarnContext(ctx, "resolution_service: publish event failed",
				slog.String("question_id", id),
				slog.String("error", pubErr.Error()),
			)
		}
	}

	if s.notifier != nil {
		msg := fmt.Sprintf("%q resolved: %s (by %s)", title, winningOutcome, requester)
		if nErr := s.notifier.Notify(ctx, notify.EventQuestionEnded, "Question resolved", msg); nErr != nil {
			s.logger.WarnContext(ctx, "resolution_service: notify failed",
				slog.String("question_id", id),
				slog.String("error", nErr.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "resolution_service: question ended",
		slog.String("question_id", id),
		slog.String("result", winningOutcome),
		slog.String("ended_by", requester),
	)
	return nil
}

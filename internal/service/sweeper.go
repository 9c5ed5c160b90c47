package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/castmarket/castmarket/internal/domain"
	"github.com/castmarket/castmarket/internal/notify"
)

// ExpirePolicy controls what happens to the probability vector of a
// question when it expires.
type ExpirePolicy string

const (
	// ExpirePolicyFreeze leaves the last-known vector untouched.
	ExpirePolicyFreeze ExpirePolicy = "freeze"
	// ExpirePolicyReset replaces the vector with a uniform 1/N
	// distribution to signal that no informative result was reached.
	ExpirePolicyReset ExpirePolicy = "reset"
)

// Valid reports whether p is a known policy.
func (p ExpirePolicy) Valid() bool {
	return p == ExpirePolicyFreeze || p == ExpirePolicyReset
}

// Sweeper transitions overdue open questions into the terminal expired
// state. It runs either on a fixed interval or on demand. The configured
// policy applies uniformly to every sweep.
type Sweeper struct {
	tx       domain.TxRunner
	bus      domain.SignalBus
	notifier *notify.Notifier
	policy   ExpirePolicy
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper applying the given policy. An empty policy
// defaults to freeze. bus and notifier may be nil.
func NewSweeper(tx domain.TxRunner, bus domain.SignalBus, notifier *notify.Notifier, policy ExpirePolicy, logger *slog.Logger) *Sweeper {
	if policy == "" {
		policy = ExpirePolicyFreeze
	}
	return &Sweeper{
		tx:       tx,
		bus:      bus,
		notifier: notifier,
		policy:   policy,
		logger:   logger.With(slog.String("component", "sweeper")),
	}
}

// SweepExpired expires every open question whose deadline has passed and
// returns the questions it transitioned. The status predicate in the
// store makes the transition one-shot: a second sweep over the same
// questions is a no-op.
func (s *Sweeper) SweepExpired(ctx context.Context) ([]domain.Question, error) {
	now := time.Now().UTC()

	var expired []domain.Question
	err := s.tx.InTx(ctx, func(tx domain.StoreTx) error {
		var err error
		expired, err = tx.Questions().ExpireDue(ctx, now)
		if err != nil {
			return err
		}
		if s.policy != ExpirePolicyReset {
			return nil
		}
		for _, q := range expired {
			if err := tx.Questions().UpdateProbabilities(ctx, q.ID, domain.Uniform(len(q.Outcomes))); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sweeper: sweep expired: %w", err)
	}

	for _, q := range expired {
		s.announce(ctx, q)
	}

	if len(expired) > 0 {
		s.logger.InfoContext(ctx, "sweeper: questions expired",
			slog.Int("count", len(expired)),
			slog.String("policy", string(s.policy)),
		)
	}
	return expired, nil
}

// RunEvery sweeps on the given interval until the context is cancelled.
// Sweep errors are logged and the loop continues; the storage layer is
// expected to recover.
func (s *Sweeper) RunEvery(ctx context.Context, interval time.Duration) error {
	s.logger.InfoContext(ctx, "sweeper: started",
		slog.Duration("interval", interval),
		slog.String("policy", string(s.policy)),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper: stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SweepExpired(ctx); err != nil {
				s.logger.ErrorContext(ctx, "sweeper: sweep failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (s *Sweeper) announce(ctx context.Context, q domain.Question) {
	if s.bus != nil {
		payload, _ := json.Marshal(map[string]any{
			"event":       "question_expired",
			"question_id": q.ID,
			"title":       q.Title,
		})
		if err := s.bus.Publish(ctx, ChannelQuestions, payload); err != nil {
			s.logger.WarnContext(ctx, "sweeper: publish event failed",
				slog.String("question_id", q.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.notifier != nil {
		msg := fmt.Sprintf("%q expired at %s without a declared result", q.Title, q.ExpireAt.Format(time.RFC3339))
		if err := s.notifier.Notify(ctx, notify.EventQuestionExpired, "Question expired", msg); err != nil {
			s.logger.WarnContext(ctx, "sweeper: notify failed",
				slog.String("question_id", q.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

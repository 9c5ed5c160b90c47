package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/castmarket/castmarket/internal/domain"
)

// acquireLock takes a distributed lock with bounded retries. A nil lock
// manager yields a no-op unlock: the question row lock still serializes
// writers within a single database. Exhausting the retries yields
// domain.ErrQuestionBusy rather than blocking indefinitely.
func acquireLock(ctx context.Context, locks domain.LockManager, cfg LockConfig, key string) (func(), error) {
	if locks == nil {
		return func() {}, nil
	}

	for attempt := 0; attempt < cfg.Retries; attempt++ {
		unlock, err := locks.Acquire(ctx, key, cfg.TTL)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return nil, fmt.Errorf("acquire lock %q: %w", key, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.RetryDelay):
		}
	}
	return nil, domain.ErrQuestionBusy
}

func questionLockKey(questionID string) string {
	return "question:" + questionID
}

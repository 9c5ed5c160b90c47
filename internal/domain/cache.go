package domain

import (
	"context"
	"time"
)

// LockManager provides distributed locking for per-question serialization.
type LockManager interface {
	// Acquire obtains the lock for key with the given TTL, returning an
	// unlock function, or ErrLockHeld if another holder has it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RateLimiter provides distributed rate limiting keyed by caller identity.
type RateLimiter interface {
	// Allow reports whether a request for key is permitted under a sliding
	// window of limit requests per window, counting the request when it is.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus provides pub/sub fan-out for probability and lifecycle events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

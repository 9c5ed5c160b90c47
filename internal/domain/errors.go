package domain

import "errors"

var (
	// ErrValidation marks malformed input. Callers wrap it with detail,
	// e.g. fmt.Errorf("%w: title is required", ErrValidation).
	ErrValidation = errors.New("validation failed")

	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrAlreadyEnded         = errors.New("question already ended")
	ErrQuestionNotOpen      = errors.New("question not open")
	ErrInsufficientPosition = errors.New("insufficient position")

	// ErrLockHeld is returned by a single failed lock acquisition.
	ErrLockHeld = errors.New("lock already held")

	// ErrQuestionBusy is returned once the bounded lock retries are
	// exhausted. The operation was not applied and may be retried.
	ErrQuestionBusy = errors.New("question busy, retry")
)

package domain

import (
	"context"
	"time"
)

// QuestionFilter narrows list queries. Zero values mean "no filter".
type QuestionFilter struct {
	Status QuestionStatus
	Tag    string
	Opts   ListOpts
}

// ListOpts provides pagination for journal queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// QuestionStore persists questions.
type QuestionStore interface {
	Create(ctx context.Context, q Question) error
	GetByID(ctx context.Context, id string) (Question, error)
	// GetForUpdate reads a question and, inside a transaction, takes the
	// per-row write lock that serializes concurrent stake actions.
	GetForUpdate(ctx context.Context, id string) (Question, error)
	List(ctx context.Context, filter QuestionFilter) ([]Question, error)
	UpdateProbabilities(ctx context.Context, id string, probs []float64) error
	// MarkEnded transitions an open question to ended. It returns
	// ErrNotFound for an unknown id and ErrAlreadyEnded when the question
	// is no longer open; on either error no write is performed.
	MarkEnded(ctx context.Context, id, result, endedBy string, endAt time.Time) error
	// ExpireDue transitions every open question whose expire_at is before
	// now into the expired state and returns the affected questions.
	ExpireDue(ctx context.Context, now time.Time) ([]Question, error)
	Delete(ctx context.Context, id string) error
}

// PositionStore persists per (question, user) stake ledger rows.
type PositionStore interface {
	// Get returns the position row, or ErrNotFound if the user holds
	// nothing on the question.
	Get(ctx context.Context, questionID, userID string) (Position, error)
	Upsert(ctx context.Context, p Position) error
	ListByQuestion(ctx context.Context, questionID string) ([]Position, error)
	// TotalStaked sums all held quantities across users for a question.
	TotalStaked(ctx context.Context, questionID string) (float64, error)
}

// VoteStore persists the append-only vote journal.
type VoteStore interface {
	Append(ctx context.Context, v VoteRecord) error
	ListByQuestion(ctx context.Context, questionID string, opts ListOpts) ([]VoteRecord, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]VoteRecord, error)
	// ListBefore returns records created strictly before the cutoff, for
	// archival snapshots.
	ListBefore(ctx context.Context, before time.Time) ([]VoteRecord, error)
}

// StoreTx exposes the stores bound to one open transaction. All writes
// made through it commit or roll back as a single unit.
type StoreTx interface {
	Questions() QuestionStore
	Positions() PositionStore
	Votes() VoteStore
}

// TxRunner runs fn inside a transaction. If fn returns an error the
// transaction is rolled back and that error is returned; otherwise the
// transaction commits.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx StoreTx) error) error
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/castmarket/castmarket/internal/domain"
)

// VoteStore implements domain.VoteStore using PostgreSQL. The journal is
// append-only: there are no update or single-row delete paths, and rows
// disappear only when their question is deleted (foreign-key cascade).
type VoteStore struct {
	db querier
}

// NewVoteStore creates a VoteStore over the given querier.
func NewVoteStore(db querier) *VoteStore {
	return &VoteStore{db: db}
}

const voteSelectCols = `id, question_id, user_id, outcome, amount, probability, created_at`

func scanVoteRows(rows pgx.Rows) ([]domain.VoteRecord, error) {
	var votes []domain.VoteRecord
	for rows.Next() {
		var v domain.VoteRecord
		if err := rows.Scan(
			&v.ID, &v.QuestionID, &v.UserID, &v.Outcome,
			&v.Amount, &v.Probability, &v.CreatedAt,
		); err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// Append inserts a new journal entry.
func (s *VoteStore) Append(ctx context.Context, v domain.VoteRecord) error {
	const query = `
		INSERT INTO votes (id, question_id, user_id, outcome, amount, probability, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.Exec(ctx, query,
		v.ID, v.QuestionID, v.UserID, v.Outcome, v.Amount, v.Probability, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: append vote %s: %w", v.ID, err)
	}
	return nil
}

// ListByQuestion returns journal entries for a question, newest first.
func (s *VoteStore) ListByQuestion(ctx context.Context, questionID string, opts domain.ListOpts) ([]domain.VoteRecord, error) {
	query := `SELECT ` + voteSelectCols + ` FROM votes WHERE question_id = $1 ORDER BY created_at DESC`
	args := []any{questionID}
	args, query = applyListOpts(query, args, opts)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list votes for question %s: %w", questionID, err)
	}
	defer rows.Close()

	votes, err := scanVoteRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan votes: %w", err)
	}
	return votes, nil
}

// ListByUser returns journal entries for a user, newest first.
func (s *VoteStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.VoteRecord, error) {
	query := `SELECT ` + voteSelectCols + ` FROM votes WHERE user_id = $1 ORDER BY created_at DESC`
	args := []any{userID}
	args, query = applyListOpts(query, args, opts)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list votes for user %s: %w", userID, err)
	}
	defer rows.Close()

	votes, err := scanVoteRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan votes: %w", err)
	}
	return votes, nil
}

// ListBefore returns journal entries created strictly before the cutoff,
// oldest first, for archival snapshots.
func (s *VoteStore) ListBefore(ctx context.Context, before time.Time) ([]domain.VoteRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+voteSelectCols+` FROM votes WHERE created_at < $1 ORDER BY created_at ASC`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list votes before %v: %w", before, err)
	}
	defer rows.Close()

	votes, err := scanVoteRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan votes: %w", err)
	}
	return votes, nil
}

// applyListOpts appends LIMIT/OFFSET clauses for positive opts values.
func applyListOpts(query string, args []any, opts domain.ListOpts) ([]any, string) {
	argIdx := len(args) + 1
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return args, query
}

// Compile-time interface check.
var _ domain.VoteStore = (*VoteStore)(nil)

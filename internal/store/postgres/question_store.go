package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/castmarket/castmarket/internal/domain"
)

// QuestionStore implements domain.QuestionStore using PostgreSQL. Outcomes,
// probabilities, and tags are stored as PostgreSQL arrays so positional
// alignment survives the round trip.
type QuestionStore struct {
	db querier
}

// NewQuestionStore creates a QuestionStore over the given querier (pool or
// open transaction).
func NewQuestionStore(db querier) *QuestionStore {
	return &QuestionStore{db: db}
}

const questionSelectCols = `id, title, type, status, tags, outcomes, probabilities,
	rules, created_by, created_at, expire_at, result, ended_by, end_at`

func scanQuestionRow(row pgx.Row) (domain.Question, error) {
	var q domain.Question
	var qType, status string

	err := row.Scan(
		&q.ID, &q.Title, &qType, &status,
		&q.Tags, &q.Outcomes, &q.Probabilities,
		&q.Rules, &q.CreatedBy, &q.CreatedAt, &q.ExpireAt,
		&q.Result, &q.EndedBy, &q.EndAt,
	)
	if err != nil {
		return domain.Question{}, err
	}
	q.Type = domain.QuestionType(qType)
	q.Status = domain.QuestionStatus(status)
	return q, nil
}

// Create inserts a new question row.
func (s *QuestionStore) Create(ctx context.Context, q domain.Question) error {
	const query = `
		INSERT INTO questions (
			id, title, type, status, tags, outcomes, probabilities,
			rules, created_by, created_at, expire_at, result, ended_by, end_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14
		)`

	_, err := s.db.Exec(ctx, query,
		q.ID, q.Title, string(q.Type), string(q.Status),
		q.Tags, q.Outcomes, q.Probabilities,
		q.Rules, q.CreatedBy, q.CreatedAt, q.ExpireAt,
		q.Result, q.EndedBy, q.EndAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create question %s: %w", q.ID, err)
	}
	return nil
}

// GetByID retrieves a single question.
func (s *QuestionStore) GetByID(ctx context.Context, id string) (domain.Question, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+questionSelectCols+` FROM questions WHERE id = $1`, id)

	q, err := scanQuestionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Question{}, domain.ErrNotFound
		}
		return domain.Question{}, fmt.Errorf("postgres: get question %s: %w", id, err)
	}
	return q, nil
}

// GetForUpdate retrieves a question taking its row write lock. Inside a
// transaction this serializes concurrent stake actions on the same
// question; a second transaction blocks here until the first commits.
func (s *QuestionStore) GetForUpdate(ctx context.Context, id string) (domain.Question, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+questionSelectCols+` FROM questions WHERE id = $1 FOR UPDATE`, id)

	q, err := scanQuestionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Question{}, domain.ErrNotFound
		}
		return domain.Question{}, fmt.Errorf("postgres: get question %s for update: %w", id, err)
	}
	return q, nil
}

// List returns questions matching the filter, newest first.
func (s *QuestionStore) List(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	query := `SELECT ` + questionSelectCols + ` FROM questions WHERE 1=1`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Tag != "" {
		query += fmt.Sprintf(" AND $%d = ANY(tags)", argIdx)
		args = append(args, filter.Tag)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
		args = append(args, filter.Opts.Limit, filter.Opts.Offset)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		q, err := scanQuestionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// UpdateProbabilities replaces the probability vector of an open question.
func (s *QuestionStore) UpdateProbabilities(ctx context.Context, id string, probs []float64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE questions SET probabilities = $2 WHERE id = $1`, id, probs)
	if err != nil {
		return fmt.Errorf("postgres: update probabilities %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkEnded transitions an open question to ended, recording the winning
// outcome, resolver, and end timestamp. The status predicate makes the
// transition one-shot: a second call matches no row and reports
// ErrAlreadyEnded without writing.
func (s *QuestionStore) MarkEnded(ctx context.Context, id, result, endedBy string, endAt time.Time) error {
	const query = `
		UPDATE questions SET
			status   = 'ended',
			result   = $2,
			ended_by = $3,
			end_at   = $4
		WHERE id = $1 AND status = 'open'`

	tag, err := s.db.Exec(ctx, query, id, result, endedBy, endAt)
	if err != nil {
		return fmt.Errorf("postgres: mark question %s ended: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM questions WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: check question %s: %w", id, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrAlreadyEnded
	}
	return nil
}

// ExpireDue transitions every overdue open question to expired and returns
// the affected rows. The status predicate guarantees each question expires
// exactly once; a second sweep matches nothing.
func (s *QuestionStore) ExpireDue(ctx context.Context, now time.Time) ([]domain.Question, error) {
	const query = `
		UPDATE questions SET
			status = 'expired',
			end_at = $1
		WHERE status = 'open' AND expire_at < $1
		RETURNING ` + questionSelectCols

	rows, err := s.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("postgres: expire due questions: %w", err)
	}
	defer rows.Close()

	var expired []domain.Question
	for rows.Next() {
		q, err := scanQuestionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan expired question: %w", err)
		}
		expired = append(expired, q)
	}
	return expired, rows.Err()
}

// ListTerminalBefore returns ended and expired questions whose terminal
// timestamp is strictly before the cutoff. Used by the cold-storage
// archiver.
func (s *QuestionStore) ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.Question, error) {
	const query = `
		SELECT ` + questionSelectCols + `
		FROM questions
		WHERE status IN ('ended', 'expired') AND end_at < $1
		ORDER BY end_at ASC`

	rows, err := s.db.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		q, err := scanQuestionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan terminal question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Delete removes a question. Position and vote rows cascade via foreign
// keys.
func (s *QuestionStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete question %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Compile-time interface check.
var _ domain.QuestionStore = (*QuestionStore)(nil)

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/castmarket/castmarket/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL. The
// per-outcome quantities are stored as a DOUBLE PRECISION array aligned
// with the question's outcome list, which fixes outcome order after
// creation.
type PositionStore struct {
	db querier
}

// NewPositionStore creates a PositionStore over the given querier.
func NewPositionStore(db querier) *PositionStore {
	return &PositionStore{db: db}
}

// Get returns the ledger row for (questionID, userID), or ErrNotFound when
// the user holds nothing on the question.
func (s *PositionStore) Get(ctx context.Context, questionID, userID string) (domain.Position, error) {
	p := domain.Position{QuestionID: questionID, UserID: userID}

	err := s.db.QueryRow(ctx,
		`SELECT quantities FROM positions WHERE question_id = $1 AND user_id = $2`,
		questionID, userID,
	).Scan(&p.Quantities)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s/%s: %w", questionID, userID, err)
	}
	return p, nil
}

// Upsert writes the full quantity vector for (questionID, userID).
func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (question_id, user_id, quantities, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (question_id, user_id) DO UPDATE SET
			quantities = excluded.quantities,
			updated_at = NOW()`

	_, err := s.db.Exec(ctx, query, p.QuestionID, p.UserID, p.Quantities)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s/%s: %w", p.QuestionID, p.UserID, err)
	}
	return nil
}

// ListByQuestion returns every ledger row for a question.
func (s *PositionStore) ListByQuestion(ctx context.Context, questionID string) ([]domain.Position, error) {
	rows, err := s.db.Query(ctx,
		`SELECT user_id, quantities FROM positions WHERE question_id = $1 ORDER BY user_id`,
		questionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions for %s: %w", questionID, err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p := domain.Position{QuestionID: questionID}
		if err := rows.Scan(&p.UserID, &p.Quantities); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// TotalStaked sums all held quantities across users for a question.
func (s *PositionStore) TotalStaked(ctx context.Context, questionID string) (float64, error) {
	var total float64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(q), 0)
		FROM positions, UNNEST(quantities) AS q
		WHERE question_id = $1`,
		questionID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: total staked for %s: %w", questionID, err)
	}
	return total, nil
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)

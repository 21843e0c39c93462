package quizzes

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AttemptRepository persists scored submissions.
type AttemptRepository interface {
	Record(ctx context.Context, a Attempt) (*Attempt, error)
	ListByUser(ctx context.Context, userID int64) ([]Attempt, error)
}

// PGAttempts stores attempts in PostgreSQL.
type PGAttempts struct {
	pool *pgxpool.Pool
}

// NewPGAttempts constructs the repository.
func NewPGAttempts(pool *pgxpool.Pool) *PGAttempts {
	return &PGAttempts{pool: pool}
}

// Record inserts an attempt and returns it with id and timestamp set.
func (r *PGAttempts) Record(ctx context.Context, a Attempt) (*Attempt, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO quiz_attempts (user_id, quiz_id, quiz_title, subject, correct, total, percentage, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
RETURNING id, submitted_at`, a.UserID, a.QuizID, a.QuizTitle, a.Subject, a.Correct, a.Total, a.Percentage).
		Scan(&a.ID, &a.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByUser returns a user's attempts, newest first.
func (r *PGAttempts) ListByUser(ctx context.Context, userID int64) ([]Attempt, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, quiz_id, quiz_title, subject, correct, total, percentage, submitted_at
FROM quiz_attempts WHERE user_id = $1 ORDER BY submitted_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Attempt, 0)
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.UserID, &a.QuizID, &a.QuizTitle, &a.Subject, &a.Correct, &a.Total, &a.Percentage, &a.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

var _ AttemptRepository = (*PGAttempts)(nil)

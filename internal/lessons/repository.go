package lessons

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rurallite/rurallite/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const lessonColumns = `id, title, subject, content, created_by, created_at, updated_at`

func scanLesson(row pgx.Row) (*Lesson, error) {
	var l Lesson
	if err := row.Scan(&l.ID, &l.Title, &l.Subject, &l.Content, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// List returns all lessons, newest first.
func (r *Repository) List(ctx context.Context) ([]Lesson, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+lessonColumns+` FROM lessons ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Lesson, 0)
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// Get fetches one lesson.
func (r *Repository) Get(ctx context.Context, id int64) (*Lesson, error) {
	return scanLesson(r.pool.QueryRow(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id = $1`, id))
}

// Create inserts a lesson.
func (r *Repository) Create(ctx context.Context, in Input, createdBy int64) (*Lesson, error) {
	return scanLesson(r.pool.QueryRow(ctx, `INSERT INTO lessons (title, subject, content, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW())
RETURNING `+lessonColumns, in.Title, in.Subject, in.Content, createdBy))
}

// Update overwrites a lesson's content.
func (r *Repository) Update(ctx context.Context, id int64, in Input) (*Lesson, error) {
	return scanLesson(r.pool.QueryRow(ctx, `UPDATE lessons SET title = $2, subject = $3, content = $4, updated_at = NOW()
WHERE id = $1
RETURNING `+lessonColumns, id, in.Title, in.Subject, in.Content))
}

// Delete removes a lesson.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

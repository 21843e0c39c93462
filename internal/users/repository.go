package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rurallite/rurallite/internal/auth"
	"github.com/rurallite/rurallite/internal/platform/db"
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

// ListUsers returns all users, newest first.
func (r *Repository) ListUsers(ctx context.Context) ([]auth.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, email, role, created_at, updated_at FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := make([]auth.User, 0)
	for rows.Next() {
		var (
			user auth.User
			role string
		)
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &role, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		user.Role, _ = auth.ParseRole(role)
		users = append(users, user)
	}
	return users, rows.Err()
}

// DeleteUser removes a user and their quiz attempts in one transaction.
func (r *Repository) DeleteUser(ctx context.Context, id int64) (*DeletedUser, error) {
	var deleted DeletedUser
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM quiz_attempts WHERE user_id = $1`, id); err != nil {
			return fmt.Errorf("users: delete attempts: %w", err)
		}
		row := tx.QueryRow(ctx, `DELETE FROM users WHERE id = $1 RETURNING id, name, email`, id)
		if err := row.Scan(&deleted.ID, &deleted.Name, &deleted.Email); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

// UpdateRole changes a user's role.
func (r *Repository) UpdateRole(ctx context.Context, id int64, role auth.Role) (*auth.User, error) {
	var (
		user    auth.User
		rawRole string
	)
	err := r.pool.QueryRow(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1
RETURNING id, name, email, role, created_at, updated_at`, id, string(role)).
		Scan(&user.ID, &user.Name, &user.Email, &rawRole, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	user.Role, _ = auth.ParseRole(rawRole)
	return &user, nil
}

// CountTables returns row counts of the relational tables.
func (r *Repository) CountTables(ctx context.Context) (TableCounts, error) {
	var counts TableCounts
	err := r.pool.QueryRow(ctx, `SELECT
	(SELECT COUNT(*) FROM users),
	(SELECT COUNT(*) FROM lessons),
	(SELECT COUNT(*) FROM quiz_attempts)`).Scan(&counts.Users, &counts.Lessons, &counts.QuizAttempts)
	return counts, err
}

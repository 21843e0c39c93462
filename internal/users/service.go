package users

import (
	"context"
	"fmt"

	"github.com/rurallite/rurallite/internal/auth"
	"github.com/rurallite/rurallite/internal/platform/httpx"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]auth.User, error)
	DeleteUser(ctx context.Context, id int64) (*DeletedUser, error)
	UpdateRole(ctx context.Context, id int64, role auth.Role) (*auth.User, error)
	CountTables(ctx context.Context) (TableCounts, error)
}

// Creator registers accounts; implemented by auth.Service.
type Creator interface {
	CreateUser(ctx context.Context, req auth.SignupRequest) (*auth.User, error)
}

// QuizCounter counts stored quiz documents.
type QuizCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Service handles user business logic.
type Service struct {
	repo    RepositoryPort
	creator Creator
	quizzes QuizCounter
	dbHost  string
	env     string
}

// NewService builds Service instance. quizzes may be nil.
func NewService(repo RepositoryPort, creator Creator, quizzes QuizCounter, dbHost, env string) *Service {
	return &Service{repo: repo, creator: creator, quizzes: quizzes, dbHost: dbHost, env: env}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]auth.User, error) {
	return s.repo.ListUsers(ctx)
}

// CreateUser registers an account with any role.
func (s *Service) CreateUser(ctx context.Context, req auth.SignupRequest) (*auth.User, error) {
	return s.creator.CreateUser(ctx, req)
}

// DeleteUser removes a user. Admins cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, actor auth.Identity, id int64) (*DeletedUser, error) {
	if actor.ID == id {
		return nil, httpx.Validation("You cannot delete your own account")
	}
	return s.repo.DeleteUser(ctx, id)
}

// ChangeRole assigns a new role. Admins cannot change their own role.
func (s *Service) ChangeRole(ctx context.Context, actor auth.Identity, id int64, rawRole string) (*auth.User, error) {
	role, ok := auth.ParseRole(rawRole)
	if !ok {
		return nil, httpx.Validation("Invalid role. Allowed roles: ADMIN, TEACHER, STUDENT")
	}
	if actor.ID == id {
		return nil, httpx.Validation("You cannot change your own role")
	}
	return s.repo.UpdateRole(ctx, id, role)
}

// Diagnostics reports table counts and the connected database host.
func (s *Service) Diagnostics(ctx context.Context) (Diagnostics, error) {
	counts, err := s.repo.CountTables(ctx)
	if err != nil {
		return Diagnostics{}, fmt.Errorf("users: count tables: %w", err)
	}
	if s.quizzes != nil {
		if counts.Quizzes, err = s.quizzes.Count(ctx); err != nil {
			return Diagnostics{}, fmt.Errorf("users: count quizzes: %w", err)
		}
	}
	return Diagnostics{TableCounts: counts, DBHost: s.dbHost, Env: s.env}, nil
}

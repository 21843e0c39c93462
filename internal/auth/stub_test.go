package auth_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rurallite/rurallite/internal/auth"
	"github.com/rurallite/rurallite/internal/shared"
)

type stubRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]*auth.User
}

func newStubRepo() *stubRepo {
	return &stubRepo{users: make(map[string]*auth.User)}
}

func (s *stubRepo) CreateUser(ctx context.Context, params auth.CreateUserParams) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(params.Email)
	if _, exists := s.users[email]; exists {
		return nil, shared.ErrConflict
	}
	s.nextID++
	now := time.Now().UTC()
	user := &auth.User{
		ID:           s.nextID,
		Name:         params.Name,
		Email:        email,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[email] = user
	return user, nil
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, shared.ErrNotFound
}

type recordingNotifier struct {
	mu     sync.Mutex
	emails []string
	err    error
}

func (n *recordingNotifier) EnqueueWelcome(ctx context.Context, name, email string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emails = append(n.emails, email)
	return n.err
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/rurallite/rurallite/internal/platform/httpx"
	"github.com/rurallite/rurallite/internal/shared"
)

// WelcomeNotifier schedules the welcome email for a new account.
type WelcomeNotifier interface {
	EnqueueWelcome(ctx context.Context, name, email string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo      Repository
	codec     *Codec
	notifier  WelcomeNotifier
	logger    *slog.Logger
	validator *validator.Validate
}

// NewService constructs a new Service. notifier and logger may be nil.
func NewService(repo Repository, codec *Codec, notifier WelcomeNotifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, codec: codec, notifier: notifier, logger: logger, validator: validator.New()}
}

// SignupRequest is the payload of a self-service registration.
type SignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role"`
}

// LoginRequest carries login credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResult bundles the issued token with the authenticated user.
type LoginResult struct {
	Token string
	User  User
}

// Signup registers a self-service account. Role defaults to STUDENT and
// ADMIN cannot be self-assigned.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*User, error) {
	role, err := s.validateSignup(&req)
	if err != nil {
		return nil, err
	}
	if role == RoleAdmin {
		return nil, httpx.Validation("Invalid role: ADMIN accounts are created by an administrator")
	}
	user, err := s.create(ctx, req, role)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		if err := s.notifier.EnqueueWelcome(ctx, user.Name, user.Email); err != nil {
			s.logger.Warn("enqueue welcome email", slog.String("email", user.Email), slog.Any("error", err))
		}
	}
	return user, nil
}

// CreateUser registers an account on behalf of an administrator; any role
// may be assigned.
func (s *Service) CreateUser(ctx context.Context, req SignupRequest) (*User, error) {
	role, err := s.validateSignup(&req)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, req, role)
}

// Login validates credentials and issues a credential token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return LoginResult{}, httpx.Validation("Missing required fields: email and password are required")
	}
	user, err := s.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return LoginResult{}, err
	}
	token, err := s.codec.Issue(user.Identity())
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: issue token: %w", err)
	}
	return LoginResult{Token: token, User: *user}, nil
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Me loads the account behind an authenticated identity.
func (s *Service) Me(ctx context.Context, id Identity) (*User, error) {
	return s.repo.FindByID(ctx, id.ID)
}

func (s *Service) create(ctx context.Context, req SignupRequest, role Role) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return nil, httpx.Conflict("User with this email already exists")
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) validateSignup(req *SignupRequest) (Role, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return "", err
		}
		return "", httpx.Validation(signupMessage(fieldErrs))
	}
	if strings.TrimSpace(req.Role) == "" {
		return RoleStudent, nil
	}
	role, ok := ParseRole(req.Role)
	if !ok {
		return "", httpx.Validation("Invalid role. Allowed roles: ADMIN, TEACHER, STUDENT")
	}
	return role, nil
}

// signupMessage reports the first failing rule in the order
// missing fields, email format, password length.
func signupMessage(errs validator.ValidationErrors) string {
	byTag := make(map[string]bool, len(errs))
	for _, fe := range errs {
		byTag[fe.Tag()] = true
	}
	switch {
	case byTag["required"]:
		return "Missing required fields: name, email, and password are required"
	case byTag["email"]:
		return "Invalid email format"
	case byTag["min"]:
		return "Password must be at least 6 characters long"
	}
	return "Invalid signup payload"
}

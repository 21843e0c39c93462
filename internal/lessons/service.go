package lessons

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rurallite/rurallite/internal/platform/cache"
	"github.com/rurallite/rurallite/internal/platform/httpx"
)

// RepositoryPort defines lesson persistence.
type RepositoryPort interface {
	List(ctx context.Context) ([]Lesson, error)
	Get(ctx context.Context, id int64) (*Lesson, error)
	Create(ctx context.Context, in Input, createdBy int64) (*Lesson, error)
	Update(ctx context.Context, id int64, in Input) (*Lesson, error)
	Delete(ctx context.Context, id int64) error
}

// Service implements lesson use cases. The list is served from a versioned
// cache that every mutation bumps.
type Service struct {
	repo      RepositoryPort
	cache     *cache.Versioned
	logger    *slog.Logger
	validator *validator.Validate
}

// NewService builds the service. cache may be nil.
func NewService(repo RepositoryPort, c *cache.Versioned, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: c, logger: logger, validator: validator.New()}
}

// List returns all lessons.
func (s *Service) List(ctx context.Context) ([]Lesson, error) {
	key, err := s.cache.BuildKey(ctx, "list")
	if err != nil {
		s.logger.Warn("lesson cache unavailable", slog.Any("error", err))
		return s.repo.List(ctx)
	}
	var out []Lesson
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.repo.List(ctx)
	})
	return out, err
}

// Get returns one lesson.
func (s *Service) Get(ctx context.Context, id int64) (*Lesson, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a new lesson authored by createdBy.
func (s *Service) Create(ctx context.Context, in Input, createdBy int64) (*Lesson, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}
	lesson, err := s.repo.Create(ctx, in, createdBy)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return lesson, nil
}

// Update replaces an existing lesson.
func (s *Service) Update(ctx context.Context, id int64, in Input) (*Lesson, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}
	lesson, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return lesson, nil
}

// Delete removes a lesson.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) validate(in *Input) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Content = strings.TrimSpace(in.Content)
	if in.Subject == "" {
		in.Subject = DefaultSubject
	}
	if err := s.validator.Struct(in); err != nil {
		return httpx.Validation("Title and content are required (title up to 200 characters, subject up to 100)")
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump lesson cache", slog.Any("error", err))
	}
}

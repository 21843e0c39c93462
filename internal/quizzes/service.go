package quizzes

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rurallite/rurallite/internal/auth"
	"github.com/rurallite/rurallite/internal/platform/httpx"
)

// Service implements quiz use cases.
type Service struct {
	store    Store
	attempts AttemptRepository
	now      func() time.Time
}

// NewService builds the service.
func NewService(store Store, attempts AttemptRepository) *Service {
	return &Service{store: store, attempts: attempts, now: time.Now}
}

// canSeeAnswers reports whether viewer may read correct answers.
func canSeeAnswers(viewer *auth.Identity) bool {
	return viewer != nil && viewer.Role.In(auth.RoleAdmin, auth.RoleTeacher)
}

// List returns all quizzes newest first. Correct answers are only included
// for ADMIN and TEACHER viewers.
func (s *Service) List(ctx context.Context, viewer *auth.Identity) ([]Quiz, error) {
	quizzes, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if !canSeeAnswers(viewer) {
		for i := range quizzes {
			quizzes[i] = quizzes[i].WithoutAnswers()
		}
	}
	return quizzes, nil
}

// Get returns one quiz, hiding answers like List.
func (s *Service) Get(ctx context.Context, id string, viewer *auth.Identity) (*Quiz, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	quiz, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSeeAnswers(viewer) {
		stripped := quiz.WithoutAnswers()
		return &stripped, nil
	}
	return quiz, nil
}

// Create stores a new quiz authored by actor.
func (s *Service) Create(ctx context.Context, in Input, actor auth.Identity) (*Quiz, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	quiz := Quiz{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Subject:     in.Subject,
		Description: in.Description,
		Questions:   in.Questions,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, quiz); err != nil {
		return nil, fmt.Errorf("quizzes: create: %w", err)
	}
	return &quiz, nil
}

// Update replaces a quiz's content, keeping author and creation time.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Quiz, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if err := validate(&in); err != nil {
		return nil, err
	}
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	existing.Title = in.Title
	existing.Subject = in.Subject
	existing.Description = in.Description
	existing.Questions = in.Questions
	existing.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, *existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Delete removes a quiz.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// Count returns the number of stored quizzes.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}

// Submit scores a submission and records the attempt for the caller.
func (s *Service) Submit(ctx context.Context, caller auth.Identity, sub Submission) (*Result, error) {
	if strings.TrimSpace(sub.QuizID) == "" {
		return nil, httpx.Validation("Quiz ID is required")
	}
	if err := validateID(sub.QuizID); err != nil {
		return nil, err
	}
	quiz, err := s.store.Get(ctx, sub.QuizID)
	if err != nil {
		return nil, err
	}
	correct, total := Score(*quiz, sub.Answers)
	attempt, err := s.attempts.Record(ctx, Attempt{
		UserID:     caller.ID,
		QuizID:     quiz.ID,
		QuizTitle:  quiz.Title,
		Subject:    quiz.Subject,
		Correct:    correct,
		Total:      total,
		Percentage: Percentage(correct, total),
	})
	if err != nil {
		return nil, fmt.Errorf("quizzes: record attempt: %w", err)
	}
	return &Result{
		AttemptID: attempt.ID,
		QuizID:    quiz.ID,
		Subject:   quiz.Subject,
		Correct:   correct,
		Total:     total,
		Score:     attempt.Percentage,
	}, nil
}

// History returns the caller's attempts, newest first.
func (s *Service) History(ctx context.Context, caller auth.Identity) ([]Attempt, error) {
	return s.attempts.ListByUser(ctx, caller.ID)
}

// Stats derives the learner summary shown on the dashboard.
func (s *Service) Stats(ctx context.Context, userID int64) (StudentStats, error) {
	attempts, err := s.attempts.ListByUser(ctx, userID)
	if err != nil {
		return StudentStats{}, err
	}
	return SummarizeAttempts(attempts), nil
}

// Score counts the answers matching each question's correct option.
// Unknown question indexes are ignored.
func Score(quiz Quiz, answers map[string]int) (correct, total int) {
	total = len(quiz.Questions)
	for key, choice := range answers {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= total {
			continue
		}
		if ca := quiz.Questions[idx].CorrectAnswer; ca != nil && *ca == choice {
			correct++
		}
	}
	return correct, total
}

// Percentage rounds correct/total to a whole percent.
func Percentage(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(correct) * 100 / float64(total)))
}

// SummarizeAttempts counts a subject as completed once any attempt in it
// reaches PassPercentage.
func SummarizeAttempts(attempts []Attempt) StudentStats {
	stats := StudentStats{QuizzesTaken: len(attempts)}
	if len(attempts) == 0 {
		return stats
	}
	passed := make(map[string]struct{})
	sum := 0
	for _, a := range attempts {
		sum += a.Percentage
		if a.Percentage >= PassPercentage {
			passed[a.Subject] = struct{}{}
		}
	}
	stats.LessonsCompleted = len(passed)
	stats.AverageScore = int(math.Round(float64(sum) / float64(len(attempts))))
	return stats
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return httpx.Validation("Invalid quiz ID")
	}
	return nil
}

// validate applies the quiz rules in order and reports the first failure.
func validate(in *Input) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" || in.Subject == "" || in.Questions == nil {
		return httpx.Validation("Title, subject, and questions are required")
	}
	if len(in.Questions) == 0 {
		return httpx.Validation("At least one question is required")
	}
	for i := range in.Questions {
		q := &in.Questions[i]
		q.Question = strings.TrimSpace(q.Question)
		if q.Question == "" || len(q.Options) < 2 {
			return httpx.Validation("Each question must have a question text and at least 2 options")
		}
		if q.CorrectAnswer == nil {
			return httpx.Validation("Each question must have a correct answer")
		}
		if *q.CorrectAnswer < 0 || *q.CorrectAnswer >= len(q.Options) {
			return httpx.Validation("Correct answer must reference one of the options")
		}
	}
	return nil
}

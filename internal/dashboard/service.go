package dashboard

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/rurallite/rurallite/internal/auth"
	"github.com/rurallite/rurallite/internal/lessons"
	"github.com/rurallite/rurallite/internal/quizzes"
	"github.com/rurallite/rurallite/internal/shared"
)

// ErrAccountGone means the token is valid but its account was deleted.
var ErrAccountGone = errors.New("dashboard: account no longer exists")

// ProfileSource loads the signed-in account.
type ProfileSource interface {
	Me(ctx context.Context, id auth.Identity) (*auth.User, error)
}

// LessonSource lists lessons.
type LessonSource interface {
	List(ctx context.Context) ([]lessons.Lesson, error)
}

// QuizSource lists quizzes and learner statistics.
type QuizSource interface {
	List(ctx context.Context, viewer *auth.Identity) ([]quizzes.Quiz, error)
	Stats(ctx context.Context, userID int64) (quizzes.StudentStats, error)
}

// UserSource lists accounts.
type UserSource interface {
	ListUsers(ctx context.Context) ([]auth.User, error)
}

// StaffStats summarises content for teachers and admins. User counts are
// only filled for admins.
type StaffStats struct {
	Subjects int
	Lessons  int
	Quizzes  int
	Users    int
	Students int
	Teachers int
}

// View is the dashboard page model.
type View struct {
	Name      string
	RoleLabel string
	IsAdmin   bool
	Student   *quizzes.StudentStats
	Staff     *StaffStats
	Lessons   []lessons.Lesson
	Quizzes   []quizzes.Quiz
}

const recentLimit = 5

// Service assembles dashboards.
type Service struct {
	profiles ProfileSource
	lessons  LessonSource
	quizzes  QuizSource
	users    UserSource
}

// NewService builds the service.
func NewService(profiles ProfileSource, lessons LessonSource, quizzes QuizSource, users UserSource) *Service {
	return &Service{profiles: profiles, lessons: lessons, quizzes: quizzes, users: users}
}

// Build loads everything the viewer's dashboard shows concurrently.
func (s *Service) Build(ctx context.Context, id auth.Identity) (*View, error) {
	var (
		user     *auth.User
		lessonsL []lessons.Lesson
		quizzesL []quizzes.Quiz
		stats    quizzes.StudentStats
		usersL   []auth.User
	)
	isStaff := id.Role.In(auth.RoleAdmin, auth.RoleTeacher)
	isAdmin := id.Role == auth.RoleAdmin

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		user, err = s.profiles.Me(gctx, id)
		if errors.Is(err, shared.ErrNotFound) {
			return ErrAccountGone
		}
		return err
	})
	g.Go(func() (err error) {
		lessonsL, err = s.lessons.List(gctx)
		return err
	})
	g.Go(func() (err error) {
		quizzesL, err = s.quizzes.List(gctx, &id)
		return err
	})
	if !isStaff {
		g.Go(func() (err error) {
			stats, err = s.quizzes.Stats(gctx, id.ID)
			return err
		})
	}
	if isAdmin {
		g.Go(func() (err error) {
			usersL, err = s.users.ListUsers(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := &View{
		Name:      user.Name,
		RoleLabel: id.Role.Label(),
		IsAdmin:   isAdmin,
		Lessons:   head(lessonsL, recentLimit),
		Quizzes:   head(quizzesL, recentLimit),
	}
	if !isStaff {
		view.Student = &stats
		return view, nil
	}
	staff := &StaffStats{Lessons: len(lessonsL), Quizzes: len(quizzesL)}
	subjects := make(map[string]struct{})
	for _, l := range lessonsL {
		subjects[l.Subject] = struct{}{}
	}
	staff.Subjects = len(subjects)
	if isAdmin {
		staff.Users = len(usersL)
		for _, u := range usersL {
			switch u.Role {
			case auth.RoleStudent:
				staff.Students++
			case auth.RoleTeacher:
				staff.Teachers++
			}
		}
	}
	view.Staff = staff
	return view, nil
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

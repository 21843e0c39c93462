package quizzes_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rurallite/rurallite/internal/auth"
	"github.com/rurallite/rurallite/internal/platform/httpx"
	"github.com/rurallite/rurallite/internal/quizzes"
)

type memAttempts struct {
	mu     sync.Mutex
	nextID int64
	rows   []quizzes.Attempt
}

func (m *memAttempts) Record(ctx context.Context, a quizzes.Attempt) (*quizzes.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	a.SubmittedAt = time.Now().UTC()
	m.rows = append(m.rows, a)
	return &a, nil
}

func (m *memAttempts) ListByUser(ctx context.Context, userID int64) ([]quizzes.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]quizzes.Attempt, 0)
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].UserID == userID {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

var (
	teacher = auth.Identity{ID: 5, Email: "tom@example.com", Role: auth.RoleTeacher}
	student = auth.Identity{ID: 9, Email: "alice@example.com", Role: auth.RoleStudent}
)

func validInput() quizzes.Input {
	return quizzes.Input{
		Title:   "Water",
		Subject: "Science",
		Questions: []quizzes.Question{
			{Question: "Water boils at?", Options: []string{"90C", "100C"}, CorrectAnswer: intPtr(1)},
			{Question: "Ice is?", Options: []string{"solid", "gas", "liquid"}, CorrectAnswer: intPtr(0)},
		},
	}
}

func validationMessage(t *testing.T, err error) string {
	t.Helper()
	var httpErr *httpx.Error
	require.ErrorAs(t, err, &httpErr)
	return httpErr.Message
}

func TestCreateValidation(t *testing.T) {
	svc := quizzes.NewService(newStore(t), &memAttempts{})
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*quizzes.Input)
		want   string
	}{
		{"missing title", func(in *quizzes.Input) { in.Title = "" }, "Title, subject, and questions are required"},
		{"missing questions", func(in *quizzes.Input) { in.Questions = nil }, "Title, subject, and questions are required"},
		{"empty questions", func(in *quizzes.Input) { in.Questions = []quizzes.Question{} }, "At least one question is required"},
		{"one option", func(in *quizzes.Input) { in.Questions[0].Options = []string{"only"} }, "Each question must have a question text and at least 2 options"},
		{"no text", func(in *quizzes.Input) { in.Questions[1].Question = " " }, "Each question must have a question text and at least 2 options"},
		{"no answer", func(in *quizzes.Input) { in.Questions[0].CorrectAnswer = nil }, "Each question must have a correct answer"},
		{"answer out of range", func(in *quizzes.Input) { in.Questions[0].CorrectAnswer = intPtr(2) }, "Correct answer must reference one of the options"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Create(ctx, in, teacher)
			assert.Equal(t, tc.want, validationMessage(t, err))
		})
	}
}

func TestAnswersHiddenFromLearners(t *testing.T) {
	svc := quizzes.NewService(newStore(t), &memAttempts{})
	ctx := context.Background()
	created, err := svc.Create(ctx, validInput(), teacher)
	require.NoError(t, err)
	assert.EqualValues(t, teacher.ID, created.CreatedBy)

	asStudent, err := svc.Get(ctx, created.ID, &student)
	require.NoError(t, err)
	for _, q := range asStudent.Questions {
		assert.Nil(t, q.CorrectAnswer)
	}

	anonymous, err := svc.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, anonymous, 1)
	assert.Nil(t, anonymous[0].Questions[0].CorrectAnswer)

	asTeacher, err := svc.Get(ctx, created.ID, &teacher)
	require.NoError(t, err)
	require.NotNil(t, asTeacher.Questions[0].CorrectAnswer)
	assert.Equal(t, 1, *asTeacher.Questions[0].CorrectAnswer)
}

func TestSubmitScoresAndRecords(t *testing.T) {
	attempts := &memAttempts{}
	svc := quizzes.NewService(newStore(t), attempts)
	ctx := context.Background()
	quiz, err := svc.Create(ctx, validInput(), teacher)
	require.NoError(t, err)

	result, err := svc.Submit(ctx, student, quizzes.Submission{QuizID: quiz.ID, Answers: map[string]int{"0": 1, "1": 2, "7": 0, "x": 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Correct)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 50, result.Score)

	history, err := svc.History(ctx, student)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Science", history[0].Subject)

	_, err = svc.Submit(ctx, student, quizzes.Submission{})
	assert.Equal(t, "Quiz ID is required", validationMessage(t, err))
}

func TestUpdateKeepsAuthor(t *testing.T) {
	svc := quizzes.NewService(newStore(t), &memAttempts{})
	ctx := context.Background()
	quiz, err := svc.Create(ctx, validInput(), teacher)
	require.NoError(t, err)

	in := validInput()
	in.Title = "Water cycle"
	updated, err := svc.Update(ctx, quiz.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Water cycle", updated.Title)
	assert.Equal(t, teacher.ID, updated.CreatedBy)
	assert.True(t, updated.CreatedAt.Equal(quiz.CreatedAt))

	_, err = svc.Update(ctx, "not-a-uuid", in)
	assert.Equal(t, "Invalid quiz ID", validationMessage(t, err))
}

func TestPercentageAndSummary(t *testing.T) {
	assert.Equal(t, 0, quizzes.Percentage(0, 0))
	assert.Equal(t, 67, quizzes.Percentage(2, 3))
	assert.Equal(t, 33, quizzes.Percentage(1, 3))

	stats := quizzes.SummarizeAttempts([]quizzes.Attempt{
		{Subject: "Math", Percentage: 70},
		{Subject: "Math", Percentage: 90},
		{Subject: "Science", Percentage: 69},
		{Subject: "History", Percentage: 100},
	})
	assert.Equal(t, 2, stats.LessonsCompleted)
	assert.Equal(t, 4, stats.QuizzesTaken)
	assert.Equal(t, 82, stats.AverageScore)

	assert.Equal(t, quizzes.StudentStats{}, quizzes.SummarizeAttempts(nil))
}

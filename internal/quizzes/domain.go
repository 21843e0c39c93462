package quizzes

import "time"

// Question is one multiple-choice item. CorrectAnswer indexes Options.
type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer *int     `json:"correctAnswer,omitempty"`
}

// Quiz is a document stored in the quiz store.
type Quiz struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Subject     string     `json:"subject"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
	CreatedBy   int64      `json:"createdBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Input is the writable part of a quiz.
type Input struct {
	Title       string     `json:"title"`
	Subject     string     `json:"subject"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

// WithoutAnswers returns a copy with every correct answer removed.
func (q Quiz) WithoutAnswers() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		question.CorrectAnswer = nil
		out.Questions[i] = question
	}
	return out
}

// Attempt is a scored submission.
type Attempt struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	QuizID      string    `json:"quizId"`
	QuizTitle   string    `json:"quizTitle"`
	Subject     string    `json:"subject"`
	Correct     int       `json:"correct"`
	Total       int       `json:"total"`
	Percentage  int       `json:"percentage"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Submission carries the selected option per question index. Keys are
// question indexes as strings, matching the JSON object sent by clients.
type Submission struct {
	QuizID  string         `json:"quizId"`
	Answers map[string]int `json:"answers"`
}

// Result is returned after scoring a submission.
type Result struct {
	AttemptID int64  `json:"attemptId"`
	QuizID    string `json:"quizId"`
	Subject   string `json:"subject"`
	Correct   int    `json:"correct"`
	Total     int    `json:"total"`
	Score     int    `json:"score"`
}

// StudentStats summarises a learner's progress.
type StudentStats struct {
	LessonsCompleted int `json:"lessonsCompleted"`
	QuizzesTaken     int `json:"quizzesTaken"`
	AverageScore     int `json:"averageScore"`
}

// PassPercentage is the score at which a subject counts as completed.
const PassPercentage = 70

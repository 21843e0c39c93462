package users

// TableCounts reports row counts used by the connectivity check.
type TableCounts struct {
	Users        int64 `json:"users"`
	Lessons      int64 `json:"lessons"`
	QuizAttempts int64 `json:"quizAttempts"`
	Quizzes      int64 `json:"quizzes"`
}

// Diagnostics is the payload of the database connectivity check.
type Diagnostics struct {
	TableCounts
	DBHost string `json:"dbHost"`
	Env    string `json:"env"`
}

// DeletedUser is the summary returned after a deletion.
type DeletedUser struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskWelcomeEmail sends the welcome email to a newly registered user.
	TaskWelcomeEmail = "mail:welcome"
	// TaskQuizReindex rebuilds the quiz creation-time index.
	TaskQuizReindex = "quizzes:reindex"
)

// WelcomePayload names the recipient of a welcome email.
type WelcomePayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewWelcomeTask constructs a welcome-email task.
func NewWelcomeTask(payload WelcomePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWelcomeEmail, data,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}

// NewQuizReindexTask constructs the periodic quiz index rebuild.
func NewQuizReindexTask() *asynq.Task {
	return asynq.NewTask(TaskQuizReindex, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}

package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/rurallite/rurallite/internal/jobs"
)

// QuizIndexer rebuilds the quiz listing index.
type QuizIndexer interface {
	Reindex(ctx context.Context) (int, error)
}

// QuizReindexJob repairs the quiz index on a schedule.
type QuizReindexJob struct {
	Store   QuizIndexer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewQuizReindexJob wires dependencies for the reindex handler.
func NewQuizReindexJob(store QuizIndexer, logger *slog.Logger, metrics *jobmetrics.Metrics) *QuizReindexJob {
	return &QuizReindexJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle processes TaskQuizReindex tasks.
func (j *QuizReindexJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Store == nil {
		return errors.New("quiz reindex: handler not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskQuizReindex)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("job", TaskQuizReindex))
	n, err := j.Store.Reindex(ctx)
	if err != nil {
		logger.Error("reindex quizzes", slog.Any("error", err))
		return err
	}
	logger.Info("quiz index rebuilt", slog.Int("quizzes", n))
	return nil
}

package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/rurallite/rurallite/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const welcomeSubject = "Welcome to RuralLite"

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<div style="font-family: system-ui, -apple-system, 'Segoe UI', Roboto, Arial; color: #111;">
  <h2>Welcome to RuralLite, {{.Name}}!</h2>
  <p>We're thrilled to have you onboard.</p>
  <p>Start exploring your dashboard at <a href="{{.AppURL}}">{{.AppURL}}</a>.</p>
  <hr/>
  <small>This is an automated email. Please do not reply.</small>
</div>
`))

// RenderWelcome renders the welcome email body.
func RenderWelcome(name, appURL string) (string, error) {
	var buf bytes.Buffer
	err := welcomeTemplate.Execute(&buf, struct {
		Name   string
		AppURL string
	}{Name: name, AppURL: appURL})
	return buf.String(), err
}

// WelcomeEmailJob delivers welcome emails queued at signup.
type WelcomeEmailJob struct {
	Mailer  Mailer
	AppURL  string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewWelcomeEmailJob wires dependencies for the welcome handler.
func NewWelcomeEmailJob(mailer Mailer, appURL string, logger *slog.Logger, metrics *jobmetrics.Metrics) *WelcomeEmailJob {
	return &WelcomeEmailJob{Mailer: mailer, AppURL: appURL, Logger: logger, Metrics: metrics}
}

// Handle processes TaskWelcomeEmail tasks.
func (j *WelcomeEmailJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Mailer == nil {
		return errors.New("welcome email: handler not configured")
	}
	var payload WelcomePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.Email == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskWelcomeEmail)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("to", payload.Email))
	body, err := RenderWelcome(payload.Name, j.AppURL)
	if err != nil {
		logger.Error("render welcome email", slog.Any("error", err))
		return err
	}
	if err := j.Mailer.Send(ctx, Message{To: payload.Email, Subject: welcomeSubject, HTML: body}); err != nil {
		logger.Error("send welcome email", slog.Any("error", err))
		if errors.Is(err, ErrInvalidMessage) {
			return errors.Join(err, asynq.SkipRetry)
		}
		return err
	}
	logger.Info("welcome email sent")
	return nil
}

func (j *WelcomeEmailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskWelcomeEmail))
	}
	return slog.Default().With(slog.String("job", TaskWelcomeEmail))
}

func (j *WelcomeEmailJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

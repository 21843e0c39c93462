package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/rurallite/rurallite/internal/jobs"
	"github.com/rurallite/rurallite/internal/platform/httpx"
	_ "github.com/rurallite/rurallite/testing"
)

type fakeMailer struct {
	sent []Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "1", Queue: QueueDefault, Type: task.Type()}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func TestRenderWelcomeEscapesName(t *testing.T) {
	body, err := RenderWelcome("<Alice>", "https://rurallite.example")
	require.NoError(t, err)
	assert.Contains(t, body, "Welcome to RuralLite, &lt;Alice&gt;!")
	assert.Contains(t, body, `href="https://rurallite.example"`)
}

func TestWelcomeEmailJobSends(t *testing.T) {
	mailer := &fakeMailer{}
	job := NewWelcomeEmailJob(mailer, "https://rurallite.example", nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewWelcomeTask(WelcomePayload{Name: "Alice", Email: "alice@example.com"})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "alice@example.com", mailer.sent[0].To)
	assert.Equal(t, "Welcome to RuralLite", mailer.sent[0].Subject)
	assert.Contains(t, mailer.sent[0].HTML, "Alice")
}

func TestWelcomeEmailJobFailures(t *testing.T) {
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())

	bad := asynq.NewTask(TaskWelcomeEmail, []byte("{"))
	job := NewWelcomeEmailJob(&fakeMailer{}, "", nil, metrics)
	assert.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)

	boom := errors.New("relay down")
	job = NewWelcomeEmailJob(&fakeMailer{err: boom}, "", nil, metrics)
	task, err := NewWelcomeTask(WelcomePayload{Name: "Bob", Email: "bob@example.com"})
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	job = NewWelcomeEmailJob(&fakeMailer{err: ErrInvalidMessage}, "", nil, metrics)
	assert.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestClientEnqueueWelcome(t *testing.T) {
	fake := &fakeEnqueuer{}
	client := &Client{client: fake, metrics: jobmetrics.NewMetrics(prometheus.NewRegistry())}
	require.NoError(t, client.EnqueueWelcome(context.Background(), "Alice", "alice@example.com"))
	require.Len(t, fake.tasks, 1)
	assert.Equal(t, TaskWelcomeEmail, fake.tasks[0].Type())

	var payload WelcomePayload
	require.NoError(t, json.Unmarshal(fake.tasks[0].Payload(), &payload))
	assert.Equal(t, WelcomePayload{Name: "Alice", Email: "alice@example.com"}, payload)

	fake.err = errors.New("redis unavailable")
	assert.Error(t, client.EnqueueWelcome(context.Background(), "Bob", "bob@example.com"))
}

type stubIndexer struct {
	n   int
	err error
}

func (s stubIndexer) Reindex(context.Context) (int, error) { return s.n, s.err }

func TestQuizReindexJob(t *testing.T) {
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewQuizReindexJob(stubIndexer{n: 3}, nil, metrics)
	require.NoError(t, job.Handle(context.Background(), NewQuizReindexTask()))

	boom := errors.New("scan failed")
	job = NewQuizReindexJob(stubIndexer{err: boom}, nil, metrics)
	assert.ErrorIs(t, job.Handle(context.Background(), NewQuizReindexTask()), boom)
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	mailer := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 1025, From: "noreply@rurallite.example"})
	mailer.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	mailer.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		assert.Equal(t, "noreply@rurallite.example", from)
		return nil
	}

	err := mailer.Send(context.Background(), Message{To: "alice@example.com", Subject: "Welcome to RuralLite", HTML: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Equal(t, "localhost:1025", gotAddr)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "To: alice@example.com\r\n")
	assert.Contains(t, gotMsg, "Content-Type: text/html; charset=UTF-8\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "\r\n\r\n<p>hi</p>"))

	assert.ErrorIs(t, mailer.Send(context.Background(), Message{To: "alice@example.com"}), ErrInvalidMessage)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestJobsStatsHandler(t *testing.T) {
	cases := []struct {
		name      string
		inspector QueueInspector
		status    int
		pending   float64
	}{
		{name: "no inspector", inspector: nil, status: http.StatusOK},
		{name: "queue not created yet", inspector: stubInspector{err: asynq.ErrQueueNotFound}, status: http.StatusOK},
		{name: "stats", inspector: stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Size: 4, Pending: 3, Active: 1}}, status: http.StatusOK, pending: 3},
		{name: "redis error", inspector: stubInspector{err: errors.New("dial tcp")}, status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(tc.inspector, nil, httpx.Responder{}).MountRoutes(r)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, tc.status, rr.Code)
			if tc.status != http.StatusOK {
				return
			}
			var body struct {
				Data map[string]any `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, QueueDefault, body.Data["queue"])
			assert.Equal(t, tc.pending, body.Data["pending"])
		})
	}
}

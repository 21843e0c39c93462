package jobmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rurallite/rurallite/internal/observability"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	enqueued *prometheus.CounterVec
}

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used. Calling it
// twice against one registerer shares the collectors.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Metrics{
		runs: observability.NewCounterVec(registerer, "jobs_total",
			"Total job executions partitioned by job name and status.", "job", "status"),
		duration: observability.NewHistogramVec(registerer, "job_duration_seconds",
			"Duration in seconds of background job executions.", "job"),
		enqueued: observability.NewCounterVec(registerer, "jobs_enqueued_total",
			"Tasks submitted to the queue partitioned by job name and status.", "job", "status"),
	}
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records duration and outcome and returns err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// Enqueued counts a task handed to the queue, successfully or not.
func (m *Metrics) Enqueued(job string, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.enqueued.WithLabelValues(job, status).Inc()
}

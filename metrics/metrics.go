// Package metrics exposes execution counters for the fleet. The Prometheus
// recorder registers on a caller-supplied registerer so embedding
// applications keep control of their metrics namespace.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives execution events from the engine and clients.
type Recorder interface {
	// TaskCompleted records one finished task with its terminal status.
	TaskCompleted(agent, status string, elapsed time.Duration)
	// RetryAttempted records one retried invocation attempt.
	RetryAttempted(agent string)
	// BatchCompleted records one finished batch run.
	BatchCompleted(mode string, size int, elapsed time.Duration)
}

// NoopRecorder discards all events.
type NoopRecorder struct{}

func (NoopRecorder) TaskCompleted(string, string, time.Duration) {}

func (NoopRecorder) RetryAttempted(string) {}

func (NoopRecorder) BatchCompleted(string, int, time.Duration) {}

// PrometheusRecorder implements Recorder on top of prometheus collectors.
type PrometheusRecorder struct {
	tasksTotal    *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	retriesTotal  *prometheus.CounterVec
	batchesTotal  *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the fleet collectors on reg. Passing nil
// uses the default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		tasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentfleet",
			Name:      "tasks_total",
			Help:      "Completed tasks by agent and terminal status.",
		}, []string{"agent", "status"}),
		taskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentfleet",
			Name:      "task_duration_seconds",
			Help:      "Wall-clock task duration including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"agent"}),
		retriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentfleet",
			Name:      "retries_total",
			Help:      "Retried invocation attempts by agent.",
		}, []string{"agent"}),
		batchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentfleet",
			Name:      "batches_total",
			Help:      "Completed batch runs by execution mode.",
		}, []string{"mode"}),
		batchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentfleet",
			Name:      "batch_duration_seconds",
			Help:      "Wall-clock batch duration.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 12),
		}, []string{"mode"}),
	}
}

func (r *PrometheusRecorder) TaskCompleted(agent, status string, elapsed time.Duration) {
	r.tasksTotal.WithLabelValues(agent, status).Inc()
	r.taskDuration.WithLabelValues(agent).Observe(elapsed.Seconds())
}

func (r *PrometheusRecorder) RetryAttempted(agent string) {
	r.retriesTotal.WithLabelValues(agent).Inc()
}

func (r *PrometheusRecorder) BatchCompleted(mode string, size int, elapsed time.Duration) {
	r.batchesTotal.WithLabelValues(mode).Inc()
	r.batchDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics records drain cycle outcomes for the outbox worker.
type OutboxMetrics struct {
	duration *prometheus.HistogramVec
	done     *prometheus.CounterVec
	failed   *prometheus.CounterVec
}

// NewOutboxMetrics registers the outbox metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_drain_duration_seconds",
		Help:    "Duration of outbox drain cycles in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"worker"})
	done := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_done",
		Help: "Outbox events processed to DONE.",
	}, []string{"worker"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_failed",
		Help: "Outbox events processed to FAILED.",
	}, []string{"worker"})
	reg.MustRegister(duration, done, failed)
	return &OutboxMetrics{
		duration: duration,
		done:     done,
		failed:   failed,
	}
}

// ObserveDrain records the duration for a drain cycle.
func (m *OutboxMetrics) ObserveDrain(worker string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(worker)).Observe(duration.Seconds())
}

// AddDone adds completed events for the worker.
func (m *OutboxMetrics) AddDone(worker string, count int) {
	if m == nil || m.done == nil || count <= 0 {
		return
	}
	m.done.WithLabelValues(normalizeLabel(worker)).Add(float64(count))
}

// AddFailed adds failed events for the worker.
func (m *OutboxMetrics) AddFailed(worker string, count int) {
	if m == nil || m.failed == nil || count <= 0 {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(worker)).Add(float64(count))
}

func normalizeLabel(worker string) string {
	if worker == "" {
		return "unknown"
	}
	return worker
}

// Package metrics exposes the daemon's Prometheus collectors.
//
// All methods are safe on a nil receiver, so components can carry an
// optional *Metrics without guarding every observation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors the producer and workers feed.
type Metrics struct {
	succeeded     prometheus.Counter
	failed        prometheus.Counter
	rejected      prometheus.Counter
	notifications prometheus.Counter
	queueFull     prometheus.Counter
	queueDepth    prometheus.Gauge
	transformTime prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		succeeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parserd_submissions_succeeded_total",
			Help: "Submissions that reached the Succeeded state.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parserd_submissions_failed_total",
			Help: "Submissions that reached the Failed state.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parserd_submissions_rejected_total",
			Help: "Submissions rejected as structurally invalid.",
		}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parserd_notifications_total",
			Help: "Database notifications received on the submission channel.",
		}),
		queueFull: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parserd_queue_full_total",
			Help: "Backpressure episodes where the handoff queue was full.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "parserd_queue_depth",
			Help: "Jobs currently buffered in the handoff queue.",
		}),
		transformTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "parserd_transform_duration_seconds",
			Help:    "Wall time of one XSLT transform.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
	reg.MustRegister(
		m.succeeded,
		m.failed,
		m.rejected,
		m.notifications,
		m.queueFull,
		m.queueDepth,
		m.transformTime,
	)
	return m
}

// JobSucceeded counts a submission reaching Succeeded.
func (m *Metrics) JobSucceeded() {
	if m == nil {
		return
	}
	m.succeeded.Inc()
}

// JobFailed counts a submission reaching Failed.
func (m *Metrics) JobFailed() {
	if m == nil {
		return
	}
	m.failed.Inc()
}

// JobRejected counts a submission reaching Rejected.
func (m *Metrics) JobRejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}

// NotificationReceived counts a wakeup from the submission channel.
func (m *Metrics) NotificationReceived() {
	if m == nil {
		return
	}
	m.notifications.Inc()
}

// QueueFull counts the start of a backpressure episode.
func (m *Metrics) QueueFull() {
	if m == nil {
		return
	}
	m.queueFull.Inc()
}

// SetQueueDepth records the current handoff queue depth.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// ObserveTransform records the duration of one transform.
func (m *Metrics) ObserveTransform(d time.Duration) {
	if m == nil {
		return
	}
	m.transformTime.Observe(d.Seconds())
}

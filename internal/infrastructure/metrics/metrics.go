package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reminder exports counters for reminder evaluation passes.
type Reminder struct {
	passes           *prometheus.CounterVec
	notifications    prometheus.Counter
	deliveryFailures *prometheus.CounterVec
	skipped          *prometheus.CounterVec
	sweepDuration    prometheus.Histogram
}

// NewReminder registers the reminder collectors on reg.
func NewReminder(reg prometheus.Registerer) *Reminder {
	m := &Reminder{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subtracker",
			Subsystem: "reminder",
			Name:      "passes_total",
			Help:      "Reminder evaluation passes by outcome.",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subtracker",
			Subsystem: "reminder",
			Name:      "notifications_created_total",
			Help:      "Notifications appended to user profiles.",
		}),
		deliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subtracker",
			Subsystem: "reminder",
			Name:      "delivery_failures_total",
			Help:      "Out-of-band deliveries that failed, by channel.",
		}, []string{"channel"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subtracker",
			Subsystem: "reminder",
			Name:      "passes_skipped_total",
			Help:      "Passes that did not run, by reason.",
		}, []string{"reason"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "subtracker",
			Subsystem: "reminder",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of a sweep over all users.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	reg.MustRegister(m.passes, m.notifications, m.deliveryFailures, m.skipped, m.sweepDuration)
	return m
}

func (m *Reminder) PassCompleted(created int, err error) {
	if err != nil {
		m.passes.WithLabelValues("error").Inc()
		return
	}
	m.passes.WithLabelValues("ok").Inc()
	m.notifications.Add(float64(created))
}

func (m *Reminder) DeliveryFailed(channel string) {
	m.deliveryFailures.WithLabelValues(channel).Inc()
}

func (m *Reminder) PassSkipped(reason string) {
	m.skipped.WithLabelValues(reason).Inc()
}

func (m *Reminder) SweepFinished(seconds float64) {
	m.sweepDuration.Observe(seconds)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

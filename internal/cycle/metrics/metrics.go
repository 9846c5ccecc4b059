// Package metrics provides observability for the distribution lifecycle.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks lifecycle transitions, guard rejections, and the review
// pause path.
type Metrics struct {
	CyclesStarted      prometheus.Counter
	CyclesFinalized    prometheus.Counter
	GuardRejections    *prometheus.CounterVec
	ReviewsRequired    prometheus.Counter
	GraduatesArchived  prometheus.Counter
	NotificationsSent  prometheus.Counter
	TransitionDuration *prometheus.HistogramVec
}

// New creates a Metrics instance registered on the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a Metrics instance registered on the given registerer.
// Tests pass a fresh registry to avoid duplicate registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CyclesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "educaid_cycles_started_total",
			Help: "Total number of distribution cycles started",
		}),
		CyclesFinalized: factory.NewCounter(prometheus.CounterOpts{
			Name: "educaid_cycles_finalized_total",
			Help: "Total number of distribution cycles finalized",
		}),
		GuardRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "educaid_guard_rejections_total",
			Help: "Start attempts rejected, labeled by guard",
		}, []string{"guard"}),
		ReviewsRequired: factory.NewCounter(prometheus.CounterOpts{
			Name: "educaid_graduate_reviews_required_total",
			Help: "Start attempts paused for graduate review",
		}),
		GraduatesArchived: factory.NewCounter(prometheus.CounterOpts{
			Name: "educaid_graduates_archived_total",
			Help: "Students archived by graduate review decisions",
		}),
		NotificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "educaid_cycle_notifications_sent_total",
			Help: "Cycle announcements successfully sent",
		}),
		TransitionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "educaid_cycle_transition_duration_seconds",
			Help:    "Duration of lifecycle transitions",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"transition"}),
	}
}

// RejectGuard records a start attempt rejected by the named guard.
func (m *Metrics) RejectGuard(guard string) {
	m.GuardRejections.WithLabelValues(guard).Inc()
}

// ObserveTransition records the duration of a lifecycle transition.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveTransition(transition string, start time.Time) {
	m.TransitionDuration.WithLabelValues(transition).Observe(time.Since(start).Seconds())
}

// Package metrics exposes Prometheus counters for the quiz engine. All
// collectors are registered on the default registry and served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreated counts sessions written by the factory.
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_sessions_created_total",
		Help: "Number of quiz sessions created.",
	})

	// ActiveSessions tracks sessions with a live presenter controller.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quiz_sessions_active",
		Help: "Number of sessions currently presented.",
	})

	// AnswersSubmitted counts accepted answer submissions.
	AnswersSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_answers_submitted_total",
		Help: "Number of answers accepted into the current-turn slot.",
	})

	// TurnAdvances counts turn-advance writes issued by controllers.
	TurnAdvances = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_turn_advances_total",
		Help: "Number of turn-advance writes applied.",
	})

	// DuplicateNotifications counts change notifications absorbed by the
	// controller latch instead of being processed again.
	DuplicateNotifications = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_duplicate_notifications_total",
		Help: "Number of redelivered answer notifications discarded.",
	})

	// OvertimePenalties counts penalties applied while a turn runs over
	// its time budget under the overtime policy.
	OvertimePenalties = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_overtime_penalties_total",
		Help: "Number of overtime score penalties applied.",
	})
)

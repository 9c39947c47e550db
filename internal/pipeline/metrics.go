package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Capture outcome label values.
const (
	outcomeComplete  = "complete"
	outcomeExcluded  = "skipped_excluded"
	outcomeDuplicate = "skipped_duplicate"
	outcomeFailed    = "failed"
)

type metrics struct {
	captures         *prometheus.CounterVec
	commitments      prometheus.Counter
	actionsCompleted prometheus.Counter
	followUpsPending prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &metrics{
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glimpsed_captures_total",
			Help: "Screen capture attempts by outcome.",
		}, []string{"outcome"}),
		commitments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "glimpsed_commitments_detected_total",
			Help: "Commitments detected and persisted.",
		}),
		actionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "glimpsed_actions_completed_total",
			Help: "Commitments matched to completing activity.",
		}),
		followUpsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "glimpsed_follow_ups_pending",
			Help: "Pending follow-ups reported by the latest scan.",
		}),
	}
	reg.MustRegister(m.captures, m.commitments, m.actionsCompleted, m.followUpsPending)
	return m
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the workflow and finding engines.
type Metrics struct {
	// Guarded transitions by name and outcome ("ok", "denied", "invalid", "error")
	Transitions *prometheus.CounterVec

	// Management decisions by kind
	Decisions *prometheus.CounterVec
}

// New creates a Metrics instance with all audit engine metrics registered.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "auditflow_workflow_transitions_total",
			Help: "Total guarded workflow and finding transitions by name and outcome",
		}, []string{"transition", "outcome"}),

		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "auditflow_management_decisions_total",
			Help: "Total management decisions by kind",
		}, []string{"kind"}),
	}
}

// IncrementTransition records one attempted transition and its outcome.
func (m *Metrics) IncrementTransition(transition, outcome string) {
	if m != nil {
		m.Transitions.WithLabelValues(transition, outcome).Inc()
	}
}

// IncrementDecision records one committed management decision.
func (m *Metrics) IncrementDecision(kind string) {
	if m != nil {
		m.Decisions.WithLabelValues(kind).Inc()
	}
}

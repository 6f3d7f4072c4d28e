package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// outcome labels what happened to a tracked event.
type outcome string

const (
	outcomeStored     outcome = "stored"
	outcomeSampledOut outcome = "sampled_out"
	outcomeShed       outcome = "shed"
	outcomeFailed     outcome = "failed"
)

// Metrics counts ops audit events by action and outcome and exposes the
// store breaker position. A nil *Metrics records nothing.
type Metrics struct {
	events      *prometheus.CounterVec
	breakerOpen prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eduverify_audit_ops_events_total",
			Help: "Operational audit events by action and outcome (stored, sampled_out, shed, failed)",
		}, []string{"action", "outcome"}),
		breakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "eduverify_audit_ops_store_breaker_open",
			Help: "1 while ops audit writes are being shed, 0 otherwise",
		}),
	}
}

func (m *Metrics) observe(action string, o outcome) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(action, string(o)).Inc()
}

func (m *Metrics) breaker(open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.breakerOpen.Set(v)
}

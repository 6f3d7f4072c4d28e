package compliance

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks compliance writes. A nil *Metrics records nothing.
type Metrics struct {
	writes  *prometheus.CounterVec
	latency prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		writes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eduverify_audit_compliance_writes_total",
			Help: "Compliance audit writes by action and result (ok, error)",
		}, []string{"action", "result"}),
		latency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "eduverify_audit_compliance_write_seconds",
			Help:    "Latency of compliance audit writes",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1},
		}),
	}
}

func (m *Metrics) observe(action string, err error, took time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.writes.WithLabelValues(action, result).Inc()
	m.latency.Observe(took.Seconds())
}

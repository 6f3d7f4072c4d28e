package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for certificate operations.
type Metrics struct {
	RegistryRequests *prometheus.CounterVec
	RegistryDuration *prometheus.HistogramVec
	BreakerOpen      prometheus.Gauge
	Issuances        *prometheus.CounterVec
	Revocations      *prometheus.CounterVec
	Verifications    *prometheus.CounterVec
	LockWait         prometheus.Histogram
}

// NewWithRegisterer registers collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RegistryRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eduverify_registry_requests_total",
			Help: "Registry API calls by operation and outcome kind",
		}, []string{"op", "outcome"}),
		RegistryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eduverify_registry_request_duration_seconds",
			Help:    "Registry API call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		BreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "eduverify_registry_breaker_open",
			Help: "1 while the registry circuit breaker is open",
		}),
		Issuances: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eduverify_issuances_total",
			Help: "Issuance attempts by path (direct, registered) and result",
		}, []string{"path", "result"}),
		Revocations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eduverify_revocations_total",
			Help: "Revocation attempts by result",
		}, []string{"result"}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eduverify_verifications_total",
			Help: "Verification outcomes (valid, invalid, check_failed)",
		}, []string{"outcome"}),
		LockWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "eduverify_student_lock_wait_seconds",
			Help:    "Time spent waiting for the per-student mutation lock",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveRegistryCall(op, outcome string, seconds float64) {
	m.RegistryRequests.WithLabelValues(op, outcome).Inc()
	m.RegistryDuration.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}

func (m *Metrics) IncIssuance(path, result string) {
	m.Issuances.WithLabelValues(path, result).Inc()
}

func (m *Metrics) IncRevocation(result string) {
	m.Revocations.WithLabelValues(result).Inc()
}

func (m *Metrics) IncVerification(outcome string) {
	m.Verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveLockWait(seconds float64) {
	m.LockWait.Observe(seconds)
}

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RenewalMetrics tracks renewal outcomes and charged volume.
type RenewalMetrics struct {
	outcomes     *prometheus.CounterVec
	chargedMinor *prometheus.CounterVec
	runDuration  prometheus.Histogram
	lastRun      prometheus.Gauge
	reconcile    prometheus.Counter
}

// NewRenewalMetrics registers renewal metrics on reg. A nil registerer yields a no-op recorder.
func NewRenewalMetrics(reg prometheus.Registerer) *RenewalMetrics {
	if reg == nil {
		return &RenewalMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "renewal_outcomes_total",
		Help:      "Renewal attempts by outcome.",
	}, []string{"outcome"})
	chargedMinor := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "renewal_charged_minor_units_total",
		Help:      "Successfully charged renewal volume in minor currency units.",
	}, []string{"currency"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "renewal_run_duration_seconds",
		Help:      "Wall time of a renewal run.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "renewal_last_run_timestamp_seconds",
		Help:      "Unix time the last renewal run finished.",
	})
	reconcile := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "renewal_needs_reconciliation_total",
		Help:      "Charges that succeeded but could not be written back to the subscription.",
	})
	reg.MustRegister(outcomes, chargedMinor, runDuration, lastRun, reconcile)
	return &RenewalMetrics{
		outcomes:     outcomes,
		chargedMinor: chargedMinor,
		runDuration:  runDuration,
		lastRun:      lastRun,
		reconcile:    reconcile,
	}
}

func (m *RenewalMetrics) IncOutcome(outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *RenewalMetrics) AddCharged(currency string, amountMinor int64) {
	if m == nil || m.chargedMinor == nil || amountMinor <= 0 {
		return
	}
	m.chargedMinor.WithLabelValues(normalizeLabel(strings.ToUpper(currency))).Add(float64(amountMinor))
}

func (m *RenewalMetrics) IncNeedsReconciliation() {
	if m == nil || m.reconcile == nil {
		return
	}
	m.reconcile.Inc()
}

// ObserveRun records the run duration and stamps the completion time.
func (m *RenewalMetrics) ObserveRun(duration time.Duration, finishedAt time.Time) {
	if m == nil || m.runDuration == nil {
		return
	}
	m.runDuration.Observe(duration.Seconds())
	m.lastRun.Set(float64(finishedAt.Unix()))
}

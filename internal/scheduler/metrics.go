package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tokenWatch/internal/model"
)

// Metrics holds the scheduler's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	CyclesTotal         *prometheus.CounterVec
	CycleDuration       prometheus.Histogram
	PricesStored        prometheus.Counter
	PricesUnresolved    prometheus.Counter
	AlertsDetected      *prometheus.CounterVec
	NotificationsTotal  *prometheus.CounterVec
	AlertLookupFailures prometheus.Counter
	TrackedTokens       prometheus.Gauge
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	const namespace = "tokenwatch"

	return &Metrics{
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cycles_total",
			Help:      "Scheduler cycles by outcome",
		}, []string{"status"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one fetch-detect-notify cycle",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		PricesStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prices",
			Name:      "stored_total",
			Help:      "Price observations written",
		}),
		PricesUnresolved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prices",
			Name:      "unresolved_total",
			Help:      "Fetched prices whose address is not tracked",
		}),
		AlertsDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "detected_total",
			Help:      "Alert events by kind",
		}, []string{"kind"}),
		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "total",
			Help:      "Notification sends by kind and result",
		}, []string{"kind", "result"}),
		AlertLookupFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "lookup_failures_total",
			Help:      "Alert registry lookups that failed",
		}),
		TrackedTokens: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tokens",
			Name:      "tracked",
			Help:      "Tokens currently in the cache",
		}),
	}
}

func (m *Metrics) cycle(status CycleStatus, took time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(string(status)).Inc()
	if status != CycleSkipped {
		m.CycleDuration.Observe(took.Seconds())
	}
}

func (m *Metrics) stored(n, unresolved int) {
	if m == nil {
		return
	}
	m.PricesStored.Add(float64(n))
	m.PricesUnresolved.Add(float64(unresolved))
}

func (m *Metrics) alerts(kind model.AlertKind, n int) {
	if m == nil || n == 0 {
		return
	}
	m.AlertsDetected.WithLabelValues(string(kind)).Add(float64(n))
}

func (m *Metrics) notification(kind model.AlertKind, ok bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.NotificationsTotal.WithLabelValues(string(kind), result).Inc()
}

func (m *Metrics) lookupFailed() {
	if m == nil {
		return
	}
	m.AlertLookupFailures.Inc()
}

func (m *Metrics) tracked(n int) {
	if m == nil {
		return
	}
	m.TrackedTokens.Set(float64(n))
}

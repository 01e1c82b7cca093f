package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for scheduling operations.
type SchedulingMetrics struct {
	operationsTotal  *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	cacheTotal       *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Subsystem: "scheduling",
			Name:      "operations_total",
			Help:      "Scheduling operations by outcome",
		}, []string{"operation", "outcome"}),
		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "frontdesk",
			Subsystem: "scheduling",
			Name:      "operation_duration_seconds",
			Help:      "Latency of scheduling operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Subsystem: "directory",
			Name:      "cache_lookups_total",
			Help:      "Directory cache lookups by result",
		}, []string{"kind", "result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.operationLatency, m.cacheTotal)
	return m
}

func (m *SchedulingMetrics) ObserveOperation(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
	m.operationLatency.WithLabelValues(operation).Observe(seconds)
}

// ObserveCache records a directory cache hit, miss or error.
func (m *SchedulingMetrics) ObserveCache(kind, result string) {
	if m == nil {
		return
	}
	m.cacheTotal.WithLabelValues(kind, result).Inc()
}

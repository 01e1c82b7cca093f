package metrics

import "github.com/prometheus/client_golang/prometheus"

// HTTPMetrics counts API requests by route pattern and status.
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "frontdesk",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration)
	return m
}

func (m *HTTPMetrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, route, status).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(seconds)
}

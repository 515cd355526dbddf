// Package metrics содержит коллекторы Prometheus сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics - набор коллекторов API.
type Metrics struct {
	Requests   *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	AuthEvents *prometheus.CounterVec
}

// New создаёт коллекторы и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tourbooking",
			Name:      "http_requests_total",
			Help:      "Number of HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tourbooking",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		AuthEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tourbooking",
			Name:      "auth_events_total",
			Help:      "Authentication events by kind and result.",
		}, []string{"event", "result"}),
	}
	reg.MustRegister(m.Requests, m.Duration, m.AuthEvents)
	return m
}

// AuthEvent увеличивает счётчик события аутентификации. Безопасен для nil.
func (m *Metrics) AuthEvent(event string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "fail"
	}
	m.AuthEvents.WithLabelValues(event, result).Inc()
}

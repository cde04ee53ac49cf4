package handlers

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts requests and errors per endpoint.
type Metrics struct {
	Requests *prometheus.CounterVec
	Errors   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userauth_requests_total",
			Help: "Total number of requests handled by the service.",
		}, []string{"endpoint"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userauth_errors_total",
			Help: "Total number of request errors returned by the service.",
		}, []string{"endpoint"}),
	}
}

// Register attaches the counters to a registry. Done once in main; tests
// leave their counters unregistered.
func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(m.Requests, m.Errors)
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketplace"

// Outcome labels of a checkout.
const (
	OutcomeSuccess     = "success"
	OutcomeRejected    = "rejected"
	OutcomeRolledBack  = "rolled_back"
	OutcomeError       = "error"
	compensationOK     = "ok"
	compensationFailed = "failed"
)

// Metrics groups the collectors of the marketplace service. A nil *Metrics is a no-op.
type Metrics struct {
	Checkouts        *prometheus.CounterVec
	CheckoutDuration *prometheus.HistogramVec
	Compensations    *prometheus.CounterVec
	Requests         *prometheus.CounterVec
	RequestLatency   *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "total",
			Help:      "Checkouts by flow and outcome.",
		}, []string{"flow", "outcome"}),
		CheckoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "duration_seconds",
			Help:      "Checkout latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"flow"}),
		Compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "compensations_total",
			Help:      "Compensating actions run after a failed write phase.",
		}, []string{"step", "result"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(m.Checkouts, m.CheckoutDuration, m.Compensations, m.Requests, m.RequestLatency)
	return m
}

func (m *Metrics) ObserveCheckout(flow, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(flow, outcome).Inc()
	m.CheckoutDuration.WithLabelValues(flow).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCompensation(step string, err error) {
	if m == nil {
		return
	}
	result := compensationOK
	if err != nil {
		result = compensationFailed
	}
	m.Compensations.WithLabelValues(step, result).Inc()
}

func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

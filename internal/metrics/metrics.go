package metrics

import (
	"strconv"
	"time"

	"medbook/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "medbook"

// Metrics holds Prometheus collectors for booking attempts and API calls.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// BookingAttempts counts finished booking attempts by outcome.
	BookingAttempts *prometheus.CounterVec

	// APIRequests counts requests to the booking service by endpoint and status class.
	APIRequests *prometheus.CounterVec

	// APIRequestDuration is the round-trip time of booking service requests.
	APIRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BookingAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "booking_attempts_total",
				Help:      "Count of booking attempts by outcome.",
			},
			[]string{"outcome"},
		),
		APIRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Count of booking service requests by endpoint and status class.",
			},
			[]string{"endpoint", "code"},
		),
		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Booking service request duration.",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"endpoint"},
		),
	}
}

func (m *Metrics) IncAttempt(outcome models.Outcome) {
	if m == nil {
		return
	}
	m.BookingAttempts.WithLabelValues(string(outcome)).Inc()
}

// ObserveRequest records one request. statusCode 0 means no response was received.
func (m *Metrics) ObserveRequest(endpoint string, statusCode int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(endpoint, StatusClass(statusCode)).Inc()
	m.APIRequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// StatusClass maps an HTTP status to its class label ("2xx", "4xx", ...).
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}

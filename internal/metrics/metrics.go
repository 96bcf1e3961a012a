// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors of the server.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	SignatureVerificationsTotal *prometheus.CounterVec
	ActivationTransitionsTotal  *prometheus.CounterVec

	CallbacksDeliveredTotal prometheus.Counter
	CallbacksFailedTotal    prometheus.Counter
	CallbacksDroppedTotal   prometheus.Counter
	CallbackQueueDepth      prometheus.Gauge
}

// New creates a Metrics instance registered on the default registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance with a custom registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "powerauth_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "powerauth_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		SignatureVerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "powerauth_signature_verifications_total",
				Help: "Signature verification attempts by outcome",
			},
			[]string{"valid"},
		),
		ActivationTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "powerauth_activation_transitions_total",
				Help: "Activation status transitions by target state",
			},
			[]string{"status"},
		),
		CallbacksDeliveredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "powerauth_callbacks_delivered_total",
			Help: "Callback notifications delivered",
		}),
		CallbacksFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "powerauth_callbacks_failed_total",
			Help: "Callback notifications that failed after retries",
		}),
		CallbacksDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "powerauth_callbacks_dropped_total",
			Help: "Callback notifications dropped due to a full queue",
		}),
		CallbackQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "powerauth_callback_queue_depth",
			Help: "Callback notifications currently queued",
		}),
	}

	registerer.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.SignatureVerificationsTotal,
		m.ActivationTransitionsTotal,
		m.CallbacksDeliveredTotal,
		m.CallbacksFailedTotal,
		m.CallbacksDroppedTotal,
		m.CallbackQueueDepth,
	)
	return m
}

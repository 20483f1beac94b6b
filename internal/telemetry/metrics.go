package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CarrierErrors   *prometheus.CounterVec
	Resolutions     *prometheus.CounterVec
	PickupBatches   *prometheus.CounterVec
	States          *prometheus.CounterVec
}

// NewMetrics creates metrics and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_requests_total",
				Help: "Total number of requests by operation, carrier, and status",
			},
			[]string{"operation", "carrier", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fulfillment_request_duration_seconds",
				Help:    "Request duration in seconds by operation and carrier",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "carrier"},
		),
		CarrierErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_carrier_errors_total",
				Help: "Total carrier API errors by carrier and error type",
			},
			[]string{"carrier", "error_type"},
		),
		Resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_carrier_resolutions_total",
				Help: "Carrier resolutions by request type, carrier, and outcome",
			},
			[]string{"request_type", "carrier", "outcome"},
		),
		PickupBatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_pickup_batches_total",
				Help: "Pickup batches submitted by carrier and result",
			},
			[]string{"carrier", "result"},
		),
		States: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_operation_states_total",
				Help: "Operation state transitions by operation and state",
			},
			[]string{"operation", "state"},
		),
	}
}

// RecordRequest records a request metric.
func (m *Metrics) RecordRequest(operation, carrier, status string, duration float64) {
	m.RequestsTotal.WithLabelValues(operation, carrier, status).Inc()
	m.RequestDuration.WithLabelValues(operation, carrier).Observe(duration)
}

// RecordError records a carrier error metric.
func (m *Metrics) RecordError(carrier, errorType string) {
	m.CarrierErrors.WithLabelValues(carrier, errorType).Inc()
}

// RecordResolution records the outcome of a carrier resolution.
func (m *Metrics) RecordResolution(requestType, carrier, outcome string) {
	m.Resolutions.WithLabelValues(requestType, carrier, outcome).Inc()
}

// RecordPickupBatch records one submitted pickup batch.
func (m *Metrics) RecordPickupBatch(carrier, result string) {
	m.PickupBatches.WithLabelValues(carrier, result).Inc()
}

// RecordState records a state transition of an operation.
func (m *Metrics) RecordState(operation, state string) {
	m.States.WithLabelValues(operation, state).Inc()
}

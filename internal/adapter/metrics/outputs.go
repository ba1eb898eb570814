package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SerialMetrics holds Prometheus metrics for the serial output.
type SerialMetrics struct {
	LinesWritten prometheus.Counter
	WriteErrors  prometheus.Counter
	Rejected     prometheus.Counter
	BreakerState prometheus.Gauge
}

// NewSerialMetrics creates and registers serial output metrics on the given registry.
func NewSerialMetrics(reg prometheus.Registerer) *SerialMetrics {
	m := &SerialMetrics{
		LinesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serial",
			Name:      "lines_written_total",
			Help:      "Total number of VIBE lines written to the device.",
		}),
		WriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serial",
			Name:      "write_errors_total",
			Help:      "Total number of failed serial writes.",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serial",
			Name:      "rejected_total",
			Help:      "Total number of lines dropped while the circuit breaker was open.",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "serial",
			Name:      "circuit_breaker_state",
			Help:      "Serial circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
	}

	reg.MustRegister(m.LinesWritten, m.WriteErrors, m.Rejected, m.BreakerState)
	return m
}

// ClimateMetrics holds Prometheus metrics for the slow baseline updates.
type ClimateMetrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration prometheus.Histogram
}

// NewClimateMetrics creates and registers climate metrics on the given registry.
func NewClimateMetrics(reg prometheus.Registerer) *ClimateMetrics {
	m := &ClimateMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "climate",
			Name:      "requests_total",
			Help:      "Total number of climate baseline requests, by result.",
		}, []string{"result"}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "climate",
			Name:      "request_duration_seconds",
			Help:      "Duration of climate baseline requests in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}),
	}

	reg.MustRegister(m.Requests, m.RequestDuration)
	return m
}

// ClimateRequest records one climate request. It satisfies app.ClimateRecorder.
func (m *ClimateMetrics) ClimateRequest(result string, duration time.Duration) {
	m.Requests.WithLabelValues(result).Inc()
	m.RequestDuration.Observe(duration.Seconds())
}

// OutputMetrics holds Prometheus metrics for the queued output sinks.
type OutputMetrics struct {
	Deliveries *prometheus.CounterVec
	Dropped    *prometheus.CounterVec
}

// NewOutputMetrics creates and registers output queue metrics on the given registry.
func NewOutputMetrics(reg prometheus.Registerer) *OutputMetrics {
	m := &OutputMetrics{
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "deliveries_total",
			Help:      "Total number of frames handed to each sink, by result.",
		}, []string{"sink", "result"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "dropped_total",
			Help:      "Total number of frames discarded because a sink fell behind.",
		}, []string{"sink"}),
	}

	reg.MustRegister(m.Deliveries, m.Dropped)
	return m
}

// FrameDelivered satisfies app.OutboxRecorder.
func (m *OutputMetrics) FrameDelivered(sink string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Deliveries.WithLabelValues(sink, result).Inc()
}

func (m *OutputMetrics) FrameDropped(sink string) {
	m.Dropped.WithLabelValues(sink).Inc()
}

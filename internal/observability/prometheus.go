package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"catchcore/internal/core"
)

const metricsNamespace = "catchcore"

var (
	_ core.MetricsRecorder = (*PrometheusRecorder)(nil)
	_ core.ControlObserver = (*PrometheusRecorder)(nil)
)

// PrometheusRecorder exports service operation and control outcome metrics.
type PrometheusRecorder struct {
	operations  *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	controls    *prometheus.CounterVec
	fieldErrors *prometheus.CounterVec
}

// NewPrometheusRecorder creates the collectors and registers them with reg.
// A nil reg uses the default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PrometheusRecorder{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "service",
				Name:      "operations_total",
				Help:      "Service operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "service",
				Name:      "operation_duration_seconds",
				Help:      "Duration of service operations in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation"},
		),
		controls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "control",
				Name:      "passes_total",
				Help:      "Completed control passes by program and final state",
			},
			[]string{"program", "state"},
		),
		fieldErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "control",
				Name:      "field_errors_total",
				Help:      "Field errors reported by control passes, by program",
			},
			[]string{"program"},
		),
	}
	for _, c := range []prometheus.Collector{r.operations, r.durations, r.controls, r.fieldErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe implements core.MetricsRecorder.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	status := "error"
	if success {
		status = "success"
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveControl implements core.ControlObserver.
func (r *PrometheusRecorder) ObserveControl(_ context.Context, program string, state core.ControlState, errorCount int) {
	r.controls.WithLabelValues(program, state.String()).Inc()
	if errorCount > 0 {
		r.fieldErrors.WithLabelValues(program).Add(float64(errorCount))
	}
}

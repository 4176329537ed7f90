package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Registry wraps a prometheus registry holding the substrate metrics for
// one process.
type Registry struct {
	reg     *prometheus.Registry
	metrics *Metrics
}

// NewRegistry creates a registry with the substrate metrics registered.
func NewRegistry() *Registry {
	r := &Registry{
		reg:     prometheus.NewRegistry(),
		metrics: NewMetrics(),
	}
	r.reg.MustRegister(
		r.metrics.RecordsRead,
		r.metrics.RecordsWritten,
		r.metrics.DecodeErrors,
		r.metrics.WriteErrors,
		r.metrics.RecordsDropped,
		r.metrics.RecordsCloned,
		r.metrics.Throughput,
		r.metrics.AvgDelayMs,
	)
	return r
}

// Metrics returns the substrate metrics.
func (r *Registry) Metrics() *Metrics {
	return r.metrics
}

// Gather collects the current metric families.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	return r.reg.Gather()
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

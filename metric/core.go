package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all substrate-level metrics (not module-specific)
type Metrics struct {
	RecordsRead    *prometheus.CounterVec
	RecordsWritten *prometheus.CounterVec
	DecodeErrors   *prometheus.CounterVec
	WriteErrors    *prometheus.CounterVec
	RecordsDropped *prometheus.CounterVec
	RecordsCloned  *prometheus.CounterVec

	Throughput prometheus.Gauge
	AvgDelayMs prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all substrate metrics
func NewMetrics() *Metrics {
	return &Metrics{
		RecordsRead: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pipekit",
				Subsystem: "records",
				Name:      "read_total",
				Help:      "Total number of records decoded per channel",
			},
			[]string{"channel"},
		),

		RecordsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pipekit",
				Subsystem: "records",
				Name:      "written_total",
				Help:      "Total number of records encoded per channel",
			},
			[]string{"channel"},
		),

		DecodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pipekit",
				Subsystem: "records",
				Name:      "decode_errors_total",
				Help:      "Total number of undecodable frames skipped",
			},
			[]string{"channel", "protocol"},
		),

		WriteErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pipekit",
				Subsystem: "records",
				Name:      "write_errors_total",
				Help:      "Total number of write errors per channel",
			},
			[]string{"channel", "kind"},
		),

		RecordsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pipekit",
				Subsystem: "records",
				Name:      "dropped_total",
				Help:      "Total number of records a module chose not to forward",
			},
			[]string{"reason"},
		),

		RecordsCloned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pipekit",
				Subsystem: "records",
				Name:      "cloned_total",
				Help:      "Total number of records synthesized by a module",
			},
			[]string{"reason"},
		),

		Throughput: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "pipekit",
				Subsystem: "stats",
				Name:      "throughput_msgs",
				Help:      "Records per second over the last stats interval",
			},
		),

		AvgDelayMs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "pipekit",
				Subsystem: "stats",
				Name:      "avg_delay_ms",
				Help:      "Average now-minus-timestamp over the last stats interval",
			},
		),
	}
}

// RecordRead increments the per-channel decode counter
func (m *Metrics) RecordRead(channel string) {
	m.RecordsRead.WithLabelValues(channel).Inc()
}

// RecordWritten increments the per-channel encode counter
func (m *Metrics) RecordWritten(channel string) {
	m.RecordsWritten.WithLabelValues(channel).Inc()
}

// RecordDecodeError increments the per-channel decode error counter
func (m *Metrics) RecordDecodeError(channel, protocol string) {
	m.DecodeErrors.WithLabelValues(channel, protocol).Inc()
}

// RecordWriteError increments the per-channel write error counter
func (m *Metrics) RecordWriteError(channel, kind string) {
	m.WriteErrors.WithLabelValues(channel, kind).Inc()
}

// RecordDropped increments the drop counter for a module decision
func (m *Metrics) RecordDropped(reason string) {
	m.RecordsDropped.WithLabelValues(reason).Inc()
}

// RecordCloned increments the synthesis counter for a module decision
func (m *Metrics) RecordCloned(reason string) {
	m.RecordsCloned.WithLabelValues(reason).Inc()
}

// RecordInterval publishes one stats interval: records seen and summed
// delay over the elapsed window.
func (m *Metrics) RecordInterval(records int64, delaySum time.Duration, elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	m.Throughput.Set(float64(records) / elapsed.Seconds())
	if records > 0 {
		m.AvgDelayMs.Set(float64(delaySum.Milliseconds()) / float64(records))
	} else {
		m.AvgDelayMs.Set(0)
	}
}

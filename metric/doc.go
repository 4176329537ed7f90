// Package metric provides the prometheus instrumentation shared by all
// modules: record counters per channel, decode errors, and the
// throughput/delay gauges the verbose stats logger reports.
//
// There is no HTTP exposition endpoint: modules are byte-stream filters
// with no network surface. The registry exists so embedding processes and
// tests can gather the metric families directly.
package metric

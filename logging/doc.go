// Package logging builds the process logger for PipeKit modules.
//
// All diagnostics go to stderr: stdout belongs to the record stream. Every
// line carries the stable prefix "<moduleName>(<configPath|no-conf>)" so
// interleaved pipeline diagnostics remain attributable. The level filter
// (none < error < warn < info) comes from --verbose-log-level; --verbose
// raises the floor to info and additionally enables the per-interval
// throughput statistics.
package logging

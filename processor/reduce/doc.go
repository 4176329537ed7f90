// Package reduce computes derived outputs per record from a declarative
// list of named rules: field copies, aggregates (sum, sub, avg, max, min,
// range, weighted_avg), sandboxed expressions, boolean conditions, and
// passthroughs.
//
// Rules evaluate over a working map seeded from the record's data, the
// internal clock locals, and the retained values of previous records.
// Multiple passes let later rules consume earlier outputs; rules marked
// temp contribute to later rules but are withheld from the output. The
// missing-value policy decides whether an absent input is skipped,
// treated as zero, or drops the whole record.
package reduce

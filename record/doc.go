// Package record defines the canonical {meta, data} record shape exchanged
// between modules, and the normalization rules that keep it canonical.
//
// A record is a pair of maps. Meta carries lifecycle information: the two
// recognized keys are "timestamp" (milliseconds since epoch) and "pipeline"
// (the ordered list of module tags the record has traversed). Data carries
// the payload; keys are duck-typed, and modules recognize only the keys
// they act on.
//
// Normalize is idempotent and never fails: whatever shape arrives on the
// wire leaves as a record with both members present, meta.pipeline as a
// string list (absent when tagging is disabled and none arrived), and
// scalars wrapped as {value: v}. Every module can rely on canonical input.
package record

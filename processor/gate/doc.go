// Package gate blocks every record until an activation condition is met,
// then passes everything forever.
//
// The gate is configured with an ordered list of blocks; a record opens
// the gate only when it satisfies every block simultaneously. Once open
// the gate is latched: it never closes again. No record is ever buffered;
// records arriving before activation are dropped.
//
// An empty configuration opens the gate on the first record, which makes
// the module a cheap "wait for upstream to produce anything" barrier.
package gate

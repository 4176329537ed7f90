// Package merge joins one primary stream with N side streams by time,
// emitting exactly one record per primary record.
//
// Each side channel runs in one of two modes. Bounded interpolation keeps
// a time-ordered window of recent side records and, for a primary record
// at time t, either picks the side record nearest t (within the match
// tolerance) or linearly interpolates every common finite-numeric field
// between the records bracketing t. Unbounded hold-last keeps only the
// latest side record with a valid timestamp and contributes it verbatim
// no matter how old it is, which suits slowly-changing reference values
// like a baseline or a configuration echo.
//
// Selected side fields land in the output with a per-side postfix
// (_1, _2, ... by default), so colliding key names across sides stay
// distinguishable. Side records never re-order or delay the primary
// stream, and a closed side channel never terminates the merge.
package merge

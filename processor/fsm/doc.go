// Package fsm evaluates configuration-defined finite state machines per
// record and annotates the output with each instance's current state.
//
// One module can run many independent instances of the same state graph,
// each bound to its own input fields. Transitions are guarded by
// expressions in the sandboxed expression language; identifiers resolve
// to the record's data (through the instance's input aliases), the
// instance's own state and dwell time, cross-instance state counts, and
// named constants. Missing identifiers resolve to null and null
// comparisons are false, so an incomplete record simply keeps every
// instance where it is.
//
// Within one record an instance may chain up to "passes" transitions;
// each pass re-evaluates the (new) current state's transitions in
// declaration order and fires the first one whose guard holds.
package fsm

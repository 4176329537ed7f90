// Package expr implements the sandboxed expression language used by the
// state-machine annotator and the declarative reducer.
//
// The grammar is a small Pratt-parsed subset: numbers, quoted strings,
// booleans, identifiers (dotted names resolve through the caller's scope),
// logical operators (&& || !), comparisons (== != < <= > >=), arithmetic
// (+ - * /), the conditional ternary, and calls to a whitelisted set of
// Math functions (abs, sign, min, max, floor, ceil, round, sqrt, pow,
// log, exp).
//
// There is no host evaluation of any kind: expressions cannot reach
// files, the network, or the process. Identifiers resolve only through
// the Scope the caller provides; unknown identifiers either resolve to
// null (state-machine mode) or fail compilation-free at evaluation
// (strict mode). Every evaluation carries a short wall-clock budget so a
// pathological expression cannot stall the record loop.
//
// Null propagates conservatively: comparisons against null are false,
// arithmetic over null is null, and truthiness of null is false.
package expr

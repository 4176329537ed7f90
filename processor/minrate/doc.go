// Package minrate guarantees a minimum output rate by cloning the last
// record whenever the stream goes quiet.
//
// Real records are never dropped and never delayed: each one is forwarded
// immediately and cached. A background timer watches the wall clock; when
// no emission has happened for one interval, the cached record is cloned
// and emitted with its logical timestamp advanced by exactly one interval.
// Logical time is forward-only, so downstream replay clocks never step
// backward even when wall time and record time disagree.
package minrate

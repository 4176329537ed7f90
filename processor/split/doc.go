// Package split copies every record to stdout and to any number of side
// targets, isolating the primary chain from side-channel failures.
//
// Side channels are opened non-blocking read-write so a FIFO without a
// reader does not stall the module, and they carry retry semantics: a
// broken or absent consumer on a side path never terminates or delays the
// primary stream. stdout keeps the standard exit-on-close policy.
package split

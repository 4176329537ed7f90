// Package delay defers emission by a fixed logical delay, driven by a
// watermark over input timestamps rather than by the wall clock.
//
// Each input is buffered with an emission time of its own timestamp plus
// the delay. The monotonic watermark (the highest input timestamp seen)
// releases every buffered record whose emission time it has covered.
// Because release is watermark-driven, the module replays recorded
// streams at their logical pace regardless of how fast the bytes arrive.
// EOF flushes the whole buffer so nothing is lost at stream end.
package delay

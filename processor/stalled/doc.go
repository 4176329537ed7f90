// Package stalled annotates records with a staleness flag: whether the
// stream's content has stopped changing for longer than a threshold.
//
// The module compares each record's data against the last content change
// it saw (timestamps excluded via ignore_fields) and measures the gap in
// logical time. Downstream consumers can then distinguish a live reading
// from one that minrate has been cloning for the last ten seconds, which
// is the usual pairing: minrate keeps the pipe warm, stalled says whether
// the warmth is real.
package stalled

// Package errors provides standardized error handling for PipeKit modules.
// It includes error classification, standard error variables, and helper
// functions for consistent error wrapping across the substrate.
//
// The taxonomy follows the runtime's propagation policy: invalid errors
// affect a single record or a startup configuration and stay local or fail
// fast; transient errors (broken pipes, absent FIFO readers) may be
// swallowed on retry channels; fatal errors terminate the process.
package errors

// Package pipekit provides a modular dataflow runtime built on POSIX byte
// streams. Each module is an independent executable that consumes a stream
// of self-describing records on stdin, transforms or routes them, and emits
// records on stdout; named FIFOs carry side inputs and outputs.
//
// # Philosophy: One Substrate, Many Small Modules
//
// PipeKit's value is not any single domain operation but the shared
// substrate that makes composition safe, deterministic, and replayable:
//
//   - Record model: a canonical {meta, data} pair. Normalization guarantees
//     every record observed or emitted by module logic has both members as
//     maps and meta.pipeline as an ordered list of provenance tags.
//   - Transport: line-delimited JSON and MessagePack framing over stdin,
//     stdout, file descriptors, and FIFO/file paths, with per-channel
//     lifecycle policy (exit-on-close, retry) and FIFO reconnect.
//   - Configuration: registered parameters with CLI/ENV/default precedence,
//     positional schemas, and file-scoped config accessors with runtime
//     overrides.
//   - Control primitives: gate, minimum-rate injection, dedup, split,
//     time-aligned merge, and logical delay coordinate asynchronous
//     channels while preserving ordering and failure isolation.
//   - Evaluation engines: a configuration-defined state machine annotator
//     and a declarative multi-pass reducer, both driven by a sandboxed
//     expression language.
//
// PipeKit MUST NOT contain:
//   - Domain semantics inside primitives
//   - Schema validation of record payloads
//   - A global clock or cross-process coordination beyond the records
//     themselves
//
// Hardware adapters, file/CSV sinks, and visualizers attach to the
// transport layer but live in separate modules.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│            cmd/<module>             │  One executable per module
//	└─────────────────────────────────────┘
//	           ↓ bootstraps via
//	┌─────────────────────────────────────┐
//	│             module.Run              │  CLI, logging, signals,
//	│                                     │  read loop wiring
//	└─────────────────────────────────────┘
//	           ↓ moves records through
//	┌─────────────────────────────────────┐
//	│      transport.Reader / Writer      │  Framing, channel policy,
//	│                                     │  FIFO reconnect
//	└─────────────────────────────────────┘
//
// Processes are strung together with the host's stream facilities:
//
//	sensor | minrate --interval-ms 100 | merge baseline.fifo | gate -c gate.json | actuator
//
// Every stage is observable (pipeline tags, per-second throughput stats on
// stderr) and replayable (logical timestamps advance monotonically even for
// injected records).
package pipekit

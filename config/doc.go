// Package config implements the unified configuration layer shared by all
// modules: a declarative parameter registry resolved from CLI flags and
// environment variables, positional schemas, and file-scoped configuration
// accessors with runtime overrides.
//
// # Registration
//
// Parameters and positionals are registered during module startup, before
// Load is called. Registration mistakes (duplicate long or short names, a
// variadic slot that is not last) are programming errors and panic.
//
//	config.RegisterParam(config.ParamSpec{
//	    Name: "interval-ms", HasValue: true,
//	    Description: "minimum emission interval",
//	})
//
// # Resolution
//
// Value precedence is CLI > environment > default. Load parses argv and
// the environment exactly once per process; later calls return the same
// accessor. Paths have the form "param.<longname>" or
// "positionals.<index|name>".
//
// # Config files
//
// RegisterConfigField declares dotted-path fields (case-insensitive) with
// defaults and required flags. LoadFile reads a JSON document, selects a
// subtree via --config-tag or the module's default scope, resolves
// {"$env": "NAME"} indirection eagerly, and returns an accessor with the
// same override surface. Typed module configs decode from subtrees with
// mapstructure.
//
// Runtime overrides let primitives be re-tuned in-process without restart;
// fields and parameters marked immutable reject overrides.
package config

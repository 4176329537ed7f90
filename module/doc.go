// Package module is the shared bootstrap every PipeKit executable runs
// through: it registers the universal parameter surface, resolves the CLI,
// builds the logger, stats, and termination policy, installs signal
// handling, and hands the module body a ready Runtime.
//
// A module's main is three lines:
//
//	func main() {
//	    os.Exit(module.Run(module.Info{Name: "gate", Tag: "gat"}, registerParams, run))
//	}
//
// The universal parameters (tagging, verbosity, protocols, channel policy,
// termination mode, config scope) are owned here so every module exposes
// the identical surface.
package module

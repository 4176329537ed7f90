// Package main implements the minrate module: guarantee at least one
// output per interval by cloning the last record during silence.
package main

import (
	"os"

	"github.com/c360/pipekit/config"
	"github.com/c360/pipekit/module"
	"github.com/c360/pipekit/processor/minrate"
	"github.com/c360/pipekit/record"
)

func main() {
	os.Exit(module.Run(module.Info{Name: "minrate", Tag: minrate.Tag}, registerParams, run))
}

func registerParams() {
	config.RegisterParam(config.ParamSpec{
		Name: "interval-ms", HasValue: true, Mutable: true,
		Description: "maximum silence between outputs, in milliseconds",
	})
	config.RegisterParam(config.ParamSpec{
		Name: "rate", HasValue: true, Mutable: true,
		Description: "minimum outputs per second (alternative to --interval-ms)",
	})
}

func run(rt *module.Runtime) error {
	var cfg minrate.Config
	if v, ok := rt.CLI.Float("interval-ms"); ok {
		cfg.IntervalMs = v
	}
	if v, ok := rt.CLI.Float("rate"); ok {
		cfg.Rate = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	out, err := rt.StdoutWriter()
	if err != nil {
		return err
	}

	proc := minrate.New(cfg, rt.Clock, func(rec record.Record) {
		_ = out.Write(rec)
	})
	defer proc.Stop()

	in, err := rt.StdinReader()
	if err != nil {
		return err
	}
	return in.Run(proc.Process)
}

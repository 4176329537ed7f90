// Package main implements the delay module: defer emission by a fixed
// logical delay, releasing records as the input watermark advances.
package main

import (
	"os"

	"github.com/c360/pipekit/config"
	"github.com/c360/pipekit/module"
	"github.com/c360/pipekit/processor/delay"
	"github.com/c360/pipekit/record"
)

func main() {
	os.Exit(module.Run(module.Info{Name: "delay", Tag: delay.Tag}, registerParams, run))
}

func registerParams() {
	config.RegisterParam(config.ParamSpec{
		Name: "delay-ms", HasValue: true, Required: true,
		Description: "logical delay added to every record's timestamp",
	})
	config.RegisterParam(config.ParamSpec{
		Name: "max-delay-ms", HasValue: true,
		Description: "upper bound on the effective delay",
	})
}

func run(rt *module.Runtime) error {
	var cfg delay.Config
	if v, ok := rt.CLI.Float("delay-ms"); ok {
		cfg.DelayMs = v
	}
	if v, ok := rt.CLI.Float("max-delay-ms"); ok {
		cfg.MaxDelayMs = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	out, err := rt.StdoutWriter()
	if err != nil {
		return err
	}

	proc := delay.New(cfg, rt.Clock, func(rec record.Record) {
		rt.Tag(rec)
		_ = out.Write(rec)
	})

	in, err := rt.StdinReader()
	if err != nil {
		return err
	}
	// EOF flushes the whole buffer before the exit policy fires.
	in.OnEOF = proc.Flush
	return in.Run(proc.Process)
}

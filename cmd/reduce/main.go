// Package main implements the reduce module: compute derived outputs per
// record from a declarative list of rules.
package main

import (
	"os"

	"github.com/c360/pipekit/config"
	"github.com/c360/pipekit/errors"
	"github.com/c360/pipekit/module"
	"github.com/c360/pipekit/processor/reduce"
	"github.com/c360/pipekit/record"
)

func main() {
	os.Exit(module.Run(module.Info{Name: "reduce", Tag: reduce.Tag}, registerFields, run))
}

func registerFields() {
	config.RegisterConfigField(config.FieldSpec{
		Path: "rules", Required: true, Description: "named computations in evaluation order",
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "missing", Default: "ignore", Description: "missing-value policy: ignore, zero, fail",
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "passes", Default: 1.0, Description: "sweeps over the rule list",
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "forward_policy", Default: "all", Description: "emitted keys: all or known",
	})
}

func run(rt *module.Runtime) error {
	fc, err := rt.LoadConfig()
	if err != nil {
		return err
	}
	if fc == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "reduce", "run", "--conf")
	}

	var cfg reduce.Config
	if err := fc.Decode("", &cfg); err != nil {
		return err
	}

	proc, err := reduce.New(cfg, rt.Clock, rt.Logger)
	if err != nil {
		return err
	}

	out, err := rt.StdoutWriter()
	if err != nil {
		return err
	}
	in, err := rt.StdinReader()
	if err != nil {
		return err
	}

	return in.Run(func(rec record.Record) {
		reduced, ok := proc.Process(rec)
		if !ok {
			rt.Metrics.RecordDropped("missing_input")
			return
		}
		rt.Tag(reduced)
		_ = out.Write(reduced)
	})
}

// Package main implements the fsm module: evaluate configuration-defined
// state machines per record and annotate the output with their states.
package main

import (
	"os"

	"github.com/c360/pipekit/config"
	"github.com/c360/pipekit/errors"
	"github.com/c360/pipekit/module"
	"github.com/c360/pipekit/processor/fsm"
	"github.com/c360/pipekit/record"
)

func main() {
	os.Exit(module.Run(module.Info{Name: "fsm", Tag: fsm.Tag}, registerFields, run))
}

func registerFields() {
	config.RegisterConfigField(config.FieldSpec{
		Path: "states", Required: true, Description: "state name to transition list",
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "instances", Required: true, Description: "instance name to bindings",
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "constants", Description: "named values for guard expressions",
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "passes", Default: 1.0, Description: "transitions that may chain per record",
	})
}

func run(rt *module.Runtime) error {
	fc, err := rt.LoadConfig()
	if err != nil {
		return err
	}
	if fc == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "fsm", "run", "--conf")
	}

	var cfg fsm.Config
	if err := fc.Decode("", &cfg); err != nil {
		return err
	}

	proc, err := fsm.New(cfg, rt.Clock, rt.Logger)
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
		annotated := proc.Process(rec)
		rt.Tag(annotated)
		_ = out.Write(annotated)
	})
}

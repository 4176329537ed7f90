// Package main implements the inject module: stamp configured static
// fields onto every record.
package main

import (
	"os"

	"github.com/c360/pipekit/config"
	"github.com/c360/pipekit/errors"
	"github.com/c360/pipekit/module"
	"github.com/c360/pipekit/processor/inject"
	"github.com/c360/pipekit/record"
)

func main() {
	os.Exit(module.Run(module.Info{Name: "inject", Tag: inject.Tag}, registerFields, run))
}

func registerFields() {
	config.RegisterConfigField(config.FieldSpec{
		Path: "fields", Required: true, Description: "key/value pairs stamped onto every record",
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "override", Description: "replace values already present",
	})
}

func run(rt *module.Runtime) error {
	fc, err := rt.LoadConfig()
	if err != nil {
		return err
	}
	if fc == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "inject", "run", "--conf")
	}

	var cfg inject.Config
	if err := fc.Decode("", &cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	proc := inject.New(cfg)

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

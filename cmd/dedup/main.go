// Package main implements the dedup module: forward only records whose
// data meaningfully changed since the last forwarded record.
package main

import (
	"os"

	"github.com/c360/pipekit/config"
	"github.com/c360/pipekit/module"
	"github.com/c360/pipekit/processor/dedup"
	"github.com/c360/pipekit/record"
)

func main() {
	os.Exit(module.Run(module.Info{Name: "dedup", Tag: dedup.Tag}, registerFields, run))
}

func registerFields() {
	config.RegisterConfigField(config.FieldSpec{
		Path: "ignore_fields", Description: "fields excluded from the comparison",
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "check_fields", Description: "restrict the comparison to these fields",
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "numeric_tolerance", Default: 0.0, Description: "treat |a-b| <= tol as equal",
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "debug", Description: "log every dropped record",
	})
}

func run(rt *module.Runtime) error {
	var cfg dedup.Config
	fc, err := rt.LoadConfig()
	if err != nil {
		return err
	}
	if fc != nil {
		if err := fc.Decode("", &cfg); err != nil {
			return err
		}
	}

	d := dedup.New(cfg, rt.Logger)

	out, err := rt.StdoutWriter()
	if err != nil {
		return err
	}
	in, err := rt.StdinReader()
	if err != nil {
		return err
	}

	return in.Run(func(rec record.Record) {
		if !d.Process(rec) {
			rt.Metrics.RecordDropped("unchanged")
			return
		}
		rt.Tag(rec)
		_ = out.Write(rec)
	})
}

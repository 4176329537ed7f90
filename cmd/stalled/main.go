// Package main implements the stalled module: annotate records with
// whether the stream's content stopped changing.
package main

import (
	"os"

	"github.com/c360/pipekit/config"
	"github.com/c360/pipekit/module"
	"github.com/c360/pipekit/processor/stalled"
	"github.com/c360/pipekit/record"
)

func main() {
	os.Exit(module.Run(module.Info{Name: "stalled", Tag: stalled.Tag}, registerFields, run))
}

func registerFields() {
	config.RegisterConfigField(config.FieldSpec{
		Path: "timeout_ms", Default: 5000.0,
		Description: "unchanged content counts as stalled after this long",
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "field", Default: "stalled", Description: "data key for the staleness flag",
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "ignore_fields", Description: "fields excluded from the change comparison",
	})
}

func run(rt *module.Runtime) error {
	cfg := stalled.DefaultConfig()
	fc, err := rt.LoadConfig()
	if err != nil {
		return err
	}
	if fc != nil {
		if err := fc.Decode("", &cfg); err != nil {
			return err
		}
	}

	proc := stalled.New(cfg, rt.Clock)

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

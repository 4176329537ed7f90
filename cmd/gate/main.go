// Package main implements the gate module: block everything until an
// activation condition is met, then pass everything forever.
package main

import (
	"os"

	"github.com/c360/pipekit/config"
	"github.com/c360/pipekit/module"
	"github.com/c360/pipekit/processor/gate"
	"github.com/c360/pipekit/record"
)

func main() {
	os.Exit(module.Run(module.Info{Name: "gate", Tag: gate.Tag}, registerFields, run))
}

func registerFields() {
	config.RegisterConfigField(config.FieldSpec{
		Path: "must_have", Description: "data keys that must be present and non-null",
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "min_values", Description: "key to inclusive numeric lower bound",
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "bool_equal", Description: "key to required boolean",
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "str_equal", Description: "key to required exact string",
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "max_age_ms", Description: "maximum record age",
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "timeout_ms", Description: "diagnostic warning after this long without activation",
	})
}

func run(rt *module.Runtime) error {
	cfg, err := loadConfig(rt)
	if err != nil {
		return err
	}

	g := gate.New(cfg, rt.Clock, rt.Logger)

	out, err := rt.StdoutWriter()
	if err != nil {
		return err
	}
	in, err := rt.StdinReader()
	if err != nil {
		return err
	}

	return in.Run(func(rec record.Record) {
		if !g.Process(rec) {
			rt.Metrics.RecordDropped("gate_closed")
			return
		}
		rt.Tag(rec)
		_ = out.Write(rec)
	})
}

// loadConfig accepts both an explicit block list and the single-block
// shorthand where the criteria sit directly under the gate scope.
func loadConfig(rt *module.Runtime) (gate.Config, error) {
	var cfg gate.Config
	fc, err := rt.LoadConfig()
	if err != nil || fc == nil {
		return cfg, err
	}
	if _, hasList := fc.Get("blocks"); hasList {
		err = fc.Decode("", &cfg)
		return cfg, err
	}
	var block gate.Block
	if err := fc.Decode("", &block); err != nil {
		return cfg, err
	}
	cfg.Blocks = []gate.Block{block}
	return cfg, nil
}

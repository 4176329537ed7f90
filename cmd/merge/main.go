// Package main implements the merge module: join N side streams into the
// primary stream by time, one output record per primary record.
package main

import (
	"fmt"
	"os"

	"github.com/c360/pipekit/config"
	"github.com/c360/pipekit/module"
	"github.com/c360/pipekit/processor/merge"
	"github.com/c360/pipekit/record"
)

func main() {
	os.Exit(module.Run(module.Info{Name: "merge", Tag: merge.Tag}, registerParams, run))
}

func registerParams() {
	config.RegisterPositionals([]config.PositionalSpec{
		{Name: "sides", Required: true, Variadic: true},
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "match_tolerance_ms", Default: 100.0,
		Description: "use the nearest side record as-is within this distance",
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "max_buffer_ms", Default: 10000.0,
		Description: "bounded-mode window size",
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "allow_unbounded_delay", Description: "per-side hold-last mode",
	})
	config.RegisterConfigField(config.FieldSpec{
		Path: "postfix", Description: "per-side field name postfixes",
	})
}

func run(rt *module.Runtime) error {
	cfg := merge.DefaultConfig()
	fc, err := rt.LoadConfig()
	if err != nil {
		return err
	}
	if fc != nil {
		if err := fc.Decode("", &cfg); err != nil {
			return err
		}
	}

	paths := rt.CLI.VariadicTail()
	proc := merge.New(cfg, len(paths), rt.Clock)

	// Side readers start in their own goroutines: opening a FIFO for
	// read blocks until a writer appears, and side EOF must never end
	// the merge.
	for i, path := range paths {
		go func(i int, path string) {
			r, err := rt.SideReader(fmt.Sprintf("side:%d", i+1), path)
			if err != nil {
				rt.Logger.Error("side channel unavailable", "path", path, "error", err)
				return
			}
			_ = r.Run(func(rec record.Record) {
				proc.Side(i, rec)
			})
		}(i, path)
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
		merged := proc.Process(rec)
		rt.Tag(merged)
		_ = out.Write(merged)
	})
}

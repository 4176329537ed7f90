// Package main implements the split module: copy every record to stdout
// and to any number of side targets without letting side failures touch
// the primary chain.
package main

import (
	"fmt"
	"os"

	"github.com/c360/pipekit/config"
	"github.com/c360/pipekit/module"
	"github.com/c360/pipekit/processor/split"
	"github.com/c360/pipekit/record"
	"github.com/c360/pipekit/transport"
)

func main() {
	os.Exit(module.Run(module.Info{Name: "split", Tag: split.Tag}, registerParams, run))
}

func registerParams() {
	config.RegisterPositionals([]config.PositionalSpec{
		{Name: "targets", Variadic: true},
	})
}

func run(rt *module.Runtime) error {
	out, err := rt.StdoutWriter()
	if err != nil {
		return err
	}

	var sides []*transport.Writer
	for i, path := range rt.CLI.VariadicTail() {
		side, err := rt.SideWriter(fmt.Sprintf("side:%d", i+1), path)
		if err != nil {
			return err
		}
		sides = append(sides, side)
	}

	tee := split.New(out, sides)

	in, err := rt.StdinReader()
	if err != nil {
		return err
	}
	return in.Run(func(rec record.Record) {
		rt.Tag(rec)
		_ = tee.Process(rec)
	})
}

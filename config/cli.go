package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/pflag"

	"github.com/c360/pipekit/errors"
)

// CLI is the accessor over resolved parameters and positionals. It is
// returned by Load and shared process-wide.
type CLI struct {
	mu          sync.RWMutex
	values      map[string]any    // param.<name> -> resolved value
	positionals []string          // raw positionals in order
	byName      map[string]string // positional name -> value (non-variadic)
	overrides   map[string]any
}

var (
	loadOnce sync.Once
	loaded   *CLI
	loadErr  error
)

// Load parses argv and the environment exactly once and returns the
// process accessor. On usage errors the returned error is fatal; the
// caller prints usage and exits non-zero. A help request returns
// ErrHelpRequested after the caller is expected to print usage.
func Load() (*CLI, error) {
	loadOnce.Do(func() {
		loaded, loadErr = parse(os.Args[1:], os.Getenv)
	})
	return loaded, loadErr
}

// ErrHelpRequested signals that -h/--help was given.
var ErrHelpRequested = errors.New("help requested")

// parse resolves the registered parameters against argv and env.
func parse(args []string, getenv func(string) string) (*CLI, error) {
	fs := pflag.NewFlagSet(ModuleName(), pflag.ContinueOnError)
	fs.SortFlags = false
	fs.Usage = func() {} // usage printing is owned by the module bootstrap

	for _, spec := range reg.params {
		if spec.HasValue {
			fs.StringP(spec.Name, spec.Short, "", spec.Description)
		} else {
			fs.BoolP(spec.Name, spec.Short, false, spec.Description)
			if spec.Negatable {
				fs.Bool("no-"+spec.Name, false, "disable --"+spec.Name)
			}
		}
	}

	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil, ErrHelpRequested
		}
		return nil, errors.WrapInvalid(err, "config", "Load", "parse arguments")
	}

	// Help wins before required-parameter enforcement: "--help" on a bare
	// command line must print usage, not a missing-argument error.
	if f := fs.Lookup("help"); f != nil && f.Changed {
		return nil, ErrHelpRequested
	}

	cli := &CLI{
		values:    map[string]any{},
		byName:    map[string]string{},
		overrides: map[string]any{},
	}

	for _, spec := range reg.params {
		v, err := resolveParam(fs, spec, getenv)
		if err != nil {
			return nil, err
		}
		cli.values[spec.Name] = v
	}

	if err := cli.bindPositionals(fs.Args()); err != nil {
		return nil, err
	}

	return cli, nil
}

// resolveParam applies CLI > ENV > default precedence for one parameter.
func resolveParam(fs *pflag.FlagSet, spec ParamSpec, getenv func(string) string) (any, error) {
	if spec.HasValue {
		if fs.Changed(spec.Name) {
			v, _ := fs.GetString(spec.Name)
			return v, nil
		}
		if spec.Env != "" {
			if v := getenv(spec.Env); v != "" {
				return v, nil
			}
		}
		if spec.Default != nil {
			return spec.Default, nil
		}
		if spec.Required {
			return nil, errors.WrapInvalid(errors.ErrMissingRequired,
				"config", "Load", "--"+spec.Name)
		}
		return nil, nil
	}

	// Boolean parameter: an explicit --no-<name> wins over --<name>
	// wherever either appears on the line; pflag records both.
	if spec.Negatable && fs.Changed("no-"+spec.Name) {
		return false, nil
	}
	if fs.Changed(spec.Name) {
		return true, nil
	}
	if spec.Env != "" {
		if v := getenv(spec.Env); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, errors.WrapInvalid(err, "config", "Load",
					fmt.Sprintf("parse %s=%q", spec.Env, v))
			}
			return b, nil
		}
	}
	if b, ok := spec.Default.(bool); ok {
		return b, nil
	}
	return false, nil
}

// bindPositionals checks arity against the registered schema and indexes
// named slots.
func (c *CLI) bindPositionals(args []string) error {
	c.positionals = args
	schema := reg.positionals

	variadic := len(schema) > 0 && schema[len(schema)-1].Variadic
	if len(args) > len(schema) && !variadic {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Load",
			fmt.Sprintf("unexpected positional argument %q", args[len(schema)]))
	}

	for i, slot := range schema {
		if i < len(args) {
			if !slot.Variadic {
				c.byName[slot.Name] = args[i]
			}
			continue
		}
		if slot.Required {
			return errors.WrapInvalid(errors.ErrMissingRequired, "config", "Load",
				"positional <"+slot.Name+">")
		}
	}
	return nil
}

// Get resolves a path of the form "param.<name>" or
// "positionals.<index|name>". Runtime overrides are consulted first.
func (c *CLI) Get(path string) (any, error) {
	return c.get(path, false)
}

// GetOriginal resolves a path ignoring runtime overrides.
func (c *CLI) GetOriginal(path string) (any, error) {
	return c.get(path, true)
}

func (c *CLI) get(path string, original bool) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !original {
		if v, ok := c.overrides[path]; ok {
			return v, nil
		}
	}

	kind, rest, found := strings.Cut(path, ".")
	if !found {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Get", path)
	}
	switch kind {
	case "param":
		if _, ok := reg.byName[rest]; !ok {
			return nil, errors.WrapInvalid(errors.ErrUnknownParameter, "config", "Get", rest)
		}
		return c.values[rest], nil
	case "positionals":
		if i, err := strconv.Atoi(rest); err == nil {
			if i < 0 || i >= len(c.positionals) {
				return nil, nil
			}
			return c.positionals[i], nil
		}
		if v, ok := c.byName[rest]; ok {
			return v, nil
		}
		return nil, nil
	default:
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Get", path)
	}
}

// Override installs a runtime override for a path. Parameters not marked
// mutable reject the override.
func (c *CLI) Override(path string, value any) error {
	if name, ok := strings.CutPrefix(path, "param."); ok {
		spec, err := paramSpec(name)
		if err != nil {
			return err
		}
		if !spec.Mutable {
			return errors.WrapFatal(errors.ErrImmutableField, "config", "Override", path)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides[path] = value
	return nil
}

// ClearOverride removes a runtime override, restoring the resolved value.
func (c *CLI) ClearOverride(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.overrides, path)
}

// Spec returns the declaration behind a "param.<name>" path.
func (c *CLI) Spec(path string) (ParamSpec, error) {
	name, ok := strings.CutPrefix(path, "param.")
	if !ok {
		return ParamSpec{}, errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Spec", path)
	}
	return paramSpec(name)
}

// Positionals returns all positionals in order.
func (c *CLI) Positionals() []string {
	return c.positionals
}

// VariadicTail returns the positionals bound to the trailing variadic
// slot, or nil when the schema has none.
func (c *CLI) VariadicTail() []string {
	schema := reg.positionals
	if len(schema) == 0 || !schema[len(schema)-1].Variadic {
		return nil
	}
	fixed := len(schema) - 1
	if len(c.positionals) <= fixed {
		return nil
	}
	return c.positionals[fixed:]
}

// String returns a param path's value coerced to string.
func (c *CLI) String(name string) string {
	v, err := c.Get("param." + name)
	if err != nil || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Bool returns a param path's value coerced to bool.
func (c *CLI) Bool(name string) bool {
	v, err := c.Get("param." + name)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Int returns a param path's value parsed as int64, with ok=false when the
// parameter is unset or malformed.
func (c *CLI) Int(name string) (int64, bool) {
	s := c.String(name)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Float returns a param path's value parsed as float64.
func (c *CLI) Float(name string) (float64, bool) {
	s := c.String(name)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// resetForTest clears the memoized state and registry. Tests only.
func resetForTest() {
	loadOnce = sync.Once{}
	loaded = nil
	loadErr = nil
	reg = newRegistry()
}

package config

import (
	"fmt"

	"github.com/c360/pipekit/errors"
)

// ParamSpec declares one named parameter.
type ParamSpec struct {
	// Name is the long flag name, without leading dashes.
	Name string
	// Short is an optional one-character short form.
	Short string
	// Env is an optional environment variable consulted when the flag is
	// absent from argv.
	Env string
	// Default is the value used when neither CLI nor environment supply
	// one. For HasValue parameters this is a string or nil; for boolean
	// parameters a bool.
	Default any
	// HasValue marks a parameter that expects a value after the flag.
	// Parameters without a value are booleans.
	HasValue bool
	// Negatable enables the --no-<name> form for boolean parameters.
	Negatable bool
	// Required makes resolution fail when no value is found anywhere.
	Required bool
	// Mutable permits runtime override through the accessor.
	Mutable bool
	// Description is shown in the auto-generated usage block.
	Description string
}

// PositionalSpec declares one slot of the positional schema.
type PositionalSpec struct {
	Name     string
	Required bool
	// Variadic collects all remaining positionals. Only the last slot may
	// be variadic.
	Variadic bool
}

// registry holds the per-process declarations. Modules register during
// startup; Load freezes the set.
type registry struct {
	params      []ParamSpec
	byName      map[string]int
	byShort     map[string]int
	positionals []PositionalSpec
	fields      []FieldSpec
	fieldByPath map[string]int
	moduleName  string
}

var reg = newRegistry()

func newRegistry() *registry {
	return &registry{
		byName:      map[string]int{},
		byShort:     map[string]int{},
		fieldByPath: map[string]int{},
	}
}

// SetModuleName records the module's name for usage text and diagnostics.
func SetModuleName(name string) {
	reg.moduleName = name
}

// ModuleName returns the name set by SetModuleName, or "module".
func ModuleName() string {
	if reg.moduleName == "" {
		return "module"
	}
	return reg.moduleName
}

// RegisterParam declares a parameter. Duplicate long names or short names
// panic: they are programming errors that must fail loudly at startup.
func RegisterParam(spec ParamSpec) {
	if spec.Name == "" {
		panic("config: parameter with empty name")
	}
	if _, dup := reg.byName[spec.Name]; dup {
		panic(fmt.Sprintf("config: duplicate parameter %q", spec.Name))
	}
	if spec.Short != "" {
		if len(spec.Short) != 1 {
			panic(fmt.Sprintf("config: short form %q of %q must be one character", spec.Short, spec.Name))
		}
		if _, dup := reg.byShort[spec.Short]; dup {
			panic(fmt.Sprintf("config: duplicate short form %q (parameter %q)", spec.Short, spec.Name))
		}
		reg.byShort[spec.Short] = len(reg.params)
	}
	if spec.Negatable && spec.HasValue {
		panic(fmt.Sprintf("config: parameter %q cannot be both negatable and value-expecting", spec.Name))
	}
	reg.byName[spec.Name] = len(reg.params)
	reg.params = append(reg.params, spec)
}

// RegisterPositionals declares the ordered positional schema. A variadic
// slot anywhere but last panics.
func RegisterPositionals(schema []PositionalSpec) {
	for i, slot := range schema {
		if slot.Variadic && i != len(schema)-1 {
			panic(fmt.Sprintf("config: variadic positional %q must be last", slot.Name))
		}
	}
	reg.positionals = append([]PositionalSpec{}, schema...)
}

// paramSpec looks up a registered parameter by long name.
func paramSpec(name string) (ParamSpec, error) {
	i, ok := reg.byName[name]
	if !ok {
		return ParamSpec{}, errors.WrapInvalid(errors.ErrUnknownParameter, "config", "paramSpec", name)
	}
	return reg.params[i], nil
}

package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Usage renders the auto-generated help block: a one-line signature, the
// parameter list, the positional schema, and a JSON skeleton of the
// registered config fields.
func Usage() string {
	var b strings.Builder

	fmt.Fprintf(&b, "usage: %s [options]", ModuleName())
	for _, slot := range reg.positionals {
		form := "<" + slot.Name + ">"
		if slot.Variadic {
			form += "..."
		}
		if !slot.Required {
			form = "[" + form + "]"
		}
		b.WriteString(" " + form)
	}
	b.WriteString("\n")

	if len(reg.params) > 0 {
		b.WriteString("\noptions:\n")
		for _, spec := range reg.params {
			b.WriteString("  " + paramForms(spec) + "\n")
			if spec.Description != "" {
				b.WriteString("        " + spec.Description + "\n")
			}
			if attrs := paramAttrs(spec); attrs != "" {
				b.WriteString("        (" + attrs + ")\n")
			}
		}
	}

	if len(reg.positionals) > 0 {
		b.WriteString("\npositionals:\n")
		for _, slot := range reg.positionals {
			kind := "optional"
			if slot.Required {
				kind = "required"
			}
			if slot.Variadic {
				kind += ", variadic"
			}
			fmt.Fprintf(&b, "  %-18s %s\n", slot.Name, kind)
		}
	}

	if skeleton := configSkeleton(); skeleton != "" {
		b.WriteString("\nconfig file schema:\n")
		b.WriteString(skeleton)
		b.WriteString("\n")
	}

	return b.String()
}

func paramForms(spec ParamSpec) string {
	forms := "--" + spec.Name
	if spec.Short != "" {
		forms = "-" + spec.Short + ", " + forms
	}
	if spec.HasValue {
		forms += " <value>"
	} else if spec.Negatable {
		forms += " / --no-" + spec.Name
	}
	return forms
}

func paramAttrs(spec ParamSpec) string {
	var attrs []string
	if spec.Env != "" {
		attrs = append(attrs, "env "+spec.Env)
	}
	if spec.Default != nil {
		attrs = append(attrs, fmt.Sprintf("default %v", spec.Default))
	}
	if spec.Required {
		attrs = append(attrs, "required")
	}
	if spec.Mutable {
		attrs = append(attrs, "mutable")
	}
	return strings.Join(attrs, ", ")
}

// configSkeleton renders the registered config fields as an indented JSON
// object with defaults as placeholder values.
func configSkeleton() string {
	if len(reg.fields) == 0 {
		return ""
	}
	root := map[string]any{}
	for _, field := range reg.fields {
		placeholder := field.Default
		if placeholder == nil {
			if field.Required {
				placeholder = "<required>"
			} else {
				placeholder = field.Description
			}
		}
		parts := strings.Split(field.Path, ".")
		node := root
		for _, part := range parts[:len(parts)-1] {
			next, ok := node[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				node[part] = next
			}
			node = next
		}
		node[parts[len(parts)-1]] = placeholder
	}
	out, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return ""
	}
	return string(out)
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/c360/pipekit/errors"
)

// FieldSpec declares a configuration-file field by dotted path.
// Paths are case-insensitive.
type FieldSpec struct {
	Path        string
	Default     any
	Required    bool
	Immutable   bool
	Description string
}

// RegisterConfigField declares a config-file field. Duplicate paths panic.
func RegisterConfigField(spec FieldSpec) {
	key := strings.ToLower(spec.Path)
	if _, dup := reg.fieldByPath[key]; dup {
		panic(fmt.Sprintf("config: duplicate config field %q", spec.Path))
	}
	reg.fieldByPath[key] = len(reg.fields)
	reg.fields = append(reg.fields, spec)
}

// FileConfig is the accessor over one loaded configuration file.
type FileConfig struct {
	mu        sync.RWMutex
	path      string
	tree      map[string]any
	overrides map[string]any
}

// LoadFile reads a JSON configuration file and returns its accessor.
//
// Scope selection: when the global --config-tag parameter carries a value,
// the subtree under that top-level key is selected; otherwise defaultScope
// is tried; otherwise the whole document is the tree. {"$env": "NAME"}
// indirection is resolved eagerly, registered defaults are applied, and
// required fields are enforced.
func LoadFile(cli *CLI, path, defaultScope string) (*FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "config", "LoadFile", "read "+path)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.WrapFatal(err, "config", "LoadFile", "parse "+path)
	}

	scope := ""
	if cli != nil {
		scope = cli.String("config-tag")
	}
	tree := doc
	if scope != "" {
		sub, ok := lookupKey(doc, scope)
		subMap, isMap := sub.(map[string]any)
		if !ok || !isMap {
			return nil, errors.WrapFatal(ErrConfigScope, "config", "LoadFile",
				fmt.Sprintf("scope %q in %s", scope, path))
		}
		tree = subMap
	} else if defaultScope != "" {
		if sub, ok := lookupKey(doc, defaultScope); ok {
			if subMap, isMap := sub.(map[string]any); isMap {
				tree = subMap
			}
		}
	}

	resolveEnvRefs(tree)

	fc := &FileConfig{path: path, tree: tree, overrides: map[string]any{}}

	for _, field := range reg.fields {
		if _, ok := fc.lookup(field.Path); ok {
			continue
		}
		if field.Required {
			return nil, errors.WrapFatal(errors.ErrMissingRequired, "config", "LoadFile",
				"config field "+field.Path)
		}
		if field.Default != nil {
			fc.set(field.Path, field.Default)
		}
	}

	return fc, nil
}

// ErrConfigScope reports a --config-tag naming an absent subtree.
var ErrConfigScope = errors.New("config scope not found")

// resolveEnvRefs replaces every {"$env": "NAME"} object in place with the
// value of the named environment variable.
func resolveEnvRefs(tree map[string]any) {
	for k, v := range tree {
		switch val := v.(type) {
		case map[string]any:
			if name, ok := envRef(val); ok {
				tree[k] = os.Getenv(name)
				continue
			}
			resolveEnvRefs(val)
		case []any:
			for i, e := range val {
				if sub, ok := e.(map[string]any); ok {
					if name, ok := envRef(sub); ok {
						val[i] = os.Getenv(name)
					} else {
						resolveEnvRefs(sub)
					}
				}
			}
		}
	}
}

func envRef(m map[string]any) (string, bool) {
	if len(m) != 1 {
		return "", false
	}
	name, ok := m["$env"].(string)
	return name, ok
}

// lookupKey finds a map key case-insensitively.
func lookupKey(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	lower := strings.ToLower(key)
	for k, v := range m {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	return nil, false
}

// lookup walks a dotted path case-insensitively.
func (fc *FileConfig) lookup(path string) (any, bool) {
	node := any(fc.tree)
	for _, part := range strings.Split(path, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = lookupKey(m, part)
		if !ok {
			return nil, false
		}
	}
	return node, true
}

// set writes a dotted path into the tree, creating intermediate maps.
func (fc *FileConfig) set(path string, value any) {
	parts := strings.Split(path, ".")
	node := fc.tree
	for _, part := range parts[:len(parts)-1] {
		next, ok := lookupKey(node, part)
		nextMap, isMap := next.(map[string]any)
		if !ok || !isMap {
			nextMap = map[string]any{}
			node[part] = nextMap
		}
		node = nextMap
	}
	node[parts[len(parts)-1]] = value
}

// Get resolves a dotted path; runtime overrides win.
func (fc *FileConfig) Get(path string) (any, bool) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	if v, ok := fc.overrides[strings.ToLower(path)]; ok {
		return v, true
	}
	return fc.lookup(path)
}

// GetOriginal resolves a dotted path ignoring runtime overrides.
func (fc *FileConfig) GetOriginal(path string) (any, bool) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return fc.lookup(path)
}

// Override installs a runtime override. Fields registered immutable are
// rejected.
func (fc *FileConfig) Override(path string, value any) error {
	key := strings.ToLower(path)
	if i, ok := reg.fieldByPath[key]; ok && reg.fields[i].Immutable {
		return errors.WrapFatal(errors.ErrImmutableField, "config", "Override", path)
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.overrides[key] = value
	return nil
}

// ClearOverride removes a runtime override.
func (fc *FileConfig) ClearOverride(path string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	delete(fc.overrides, strings.ToLower(path))
}

// Path returns the file the accessor was loaded from.
func (fc *FileConfig) Path() string {
	return fc.path
}

// Decode maps the subtree at path (or the whole tree when path is empty)
// onto a typed config struct. Key matching is case-insensitive; numeric
// and string types coerce weakly, matching the permissive shape of
// hand-written JSON configs.
func (fc *FileConfig) Decode(path string, out any) error {
	node := any(fc.tree)
	if path != "" {
		sub, ok := fc.Get(path)
		if !ok {
			return nil
		}
		node = sub
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.WrapFatal(err, "FileConfig", "Decode", "build decoder")
	}
	if err := dec.Decode(node); err != nil {
		return errors.WrapInvalid(err, "FileConfig", "Decode", path)
	}
	return nil
}

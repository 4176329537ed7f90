package reduce

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/zoobzio/clockz"

	"github.com/c360/pipekit/errors"
	"github.com/c360/pipekit/expr"
	"github.com/c360/pipekit/pkg/timestamp"
	"github.com/c360/pipekit/record"
)

// Tag is the pipeline tag appended by the reduce module.
const Tag = "red"

// Missing-value policies.
const (
	MissingIgnore = "ignore"
	MissingZero   = "zero"
	MissingFail   = "fail"
)

// Forwarding policies.
const (
	ForwardAll   = "all"
	ForwardKnown = "known"
)

// Rule is one named computation.
type Rule struct {
	Name string `json:"name"`
	// Op selects the computation: copy, sum, sub, avg, max, min, range,
	// weighted_avg, expr, condition, passthrough.
	Op string `json:"op"`
	// Inputs is op-shaped: a field list for aggregates, a field->weight
	// map for weighted_avg, an alias->field map for expr and condition,
	// and {"src": field} for copy.
	Inputs any `json:"inputs"`
	// Expr is the expression source for expr and condition rules.
	Expr string `json:"expr"`
	// Temp computes the value for later rules but withholds it from the
	// output.
	Temp bool `json:"temp"`
	// Retain stores the value as <name>__prev for the next record.
	Retain bool `json:"retain"`
}

// Config is the reduce module configuration.
type Config struct {
	Rules []Rule `json:"rules"`
	// Missing is the missing-value policy: ignore, zero, or fail.
	Missing string `json:"missing"`
	// Passes is the number of sweeps over the rule list; minimum 1.
	Passes int `json:"passes"`
	// ForwardPolicy selects the emitted keys: all or known.
	ForwardPolicy string `json:"forward_policy"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if len(c.Rules) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "no rules")
	}
	switch c.Missing {
	case "", MissingIgnore, MissingZero, MissingFail:
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"missing must be ignore, zero, or fail")
	}
	switch c.ForwardPolicy {
	case "", ForwardAll, ForwardKnown:
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"forward_policy must be all or known")
	}
	seen := map[string]bool{}
	for _, rule := range c.Rules {
		if rule.Name == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "unnamed rule")
		}
		if seen[rule.Name] {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				"duplicate rule "+rule.Name)
		}
		seen[rule.Name] = true
	}
	return nil
}

func (c *Config) missing() string {
	if c.Missing == "" {
		return MissingIgnore
	}
	return c.Missing
}

func (c *Config) passes() int {
	if c.Passes < 1 {
		return 1
	}
	return c.Passes
}

func (c *Config) forward() string {
	if c.ForwardPolicy == "" {
		return ForwardAll
	}
	return c.ForwardPolicy
}

// errDropRecord aborts the evaluation of one record under missing:"fail".
var errDropRecord = errors.New("record dropped by missing-value policy")

// compiledRule caches the parsed inputs and expression of one rule.
type compiledRule struct {
	Rule
	fields  []string           // aggregate field list
	weights map[string]float64 // weighted_avg
	aliases map[string]string  // expr/condition locals
	expr    *expr.Expr
}

// Reducer evaluates the rule list per record.
type Reducer struct {
	cfg    Config
	rules  []compiledRule
	clock  clockz.Clock
	logger *slog.Logger

	retention map[string]any
	start     int64
}

// New compiles the rule list.
func New(cfg Config, clock clockz.Clock, logger *slog.Logger) (*Reducer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rules := make([]compiledRule, 0, len(cfg.Rules))
	for _, rule := range cfg.Rules {
		compiled, err := compileRule(rule)
		if err != nil {
			return nil, err
		}
		rules = append(rules, compiled)
	}
	return &Reducer{
		cfg:       cfg,
		rules:     rules,
		clock:     clock,
		logger:    logger,
		retention: map[string]any{},
	}, nil
}

func compileRule(rule Rule) (compiledRule, error) {
	out := compiledRule{Rule: rule}
	switch rule.Op {
	case "copy":
		aliases, err := stringMap(rule.Inputs)
		if err != nil || aliases["src"] == "" {
			return out, errors.WrapInvalid(errors.ErrInvalidConfig, "Reducer", "compileRule",
				rule.Name+": copy needs inputs.src")
		}
		out.aliases = aliases
	case "sum", "sub", "avg", "max", "min", "range":
		fields, err := stringList(rule.Inputs)
		if err != nil || len(fields) == 0 {
			return out, errors.WrapInvalid(errors.ErrInvalidConfig, "Reducer", "compileRule",
				rule.Name+": aggregate needs an input field list")
		}
		out.fields = fields
	case "weighted_avg":
		weights, err := floatMap(rule.Inputs)
		if err != nil || len(weights) == 0 {
			return out, errors.WrapInvalid(errors.ErrInvalidConfig, "Reducer", "compileRule",
				rule.Name+": weighted_avg needs field weights")
		}
		out.weights = weights
	case "expr", "condition":
		aliases, err := stringMap(rule.Inputs)
		if err != nil {
			return out, errors.WrapInvalid(errors.ErrInvalidConfig, "Reducer", "compileRule",
				rule.Name+": inputs must map aliases to fields")
		}
		out.aliases = aliases
		compiled, err := expr.Compile(rule.Expr, expr.Options{
			Grammar: expr.GrammarFull,
			Strict:  true,
		})
		if err != nil {
			return out, errors.WrapInvalid(err, "Reducer", "compileRule", rule.Name)
		}
		out.expr = compiled
	case "passthrough":
		aliases, err := stringMap(rule.Inputs)
		if err != nil {
			fields, listErr := stringList(rule.Inputs)
			if listErr != nil || len(fields) == 0 {
				return out, errors.WrapInvalid(errors.ErrInvalidConfig, "Reducer", "compileRule",
					rule.Name+": passthrough needs an input")
			}
			out.fields = fields
			break
		}
		out.aliases = aliases
	default:
		return out, errors.WrapInvalid(errors.ErrInvalidConfig, "Reducer", "compileRule",
			rule.Name+": unknown op "+rule.Op)
	}
	return out, nil
}

// Process evaluates all rules over one record. The boolean is false when
// the record is dropped by missing:"fail".
func (r *Reducer) Process(rec record.Record) (record.Record, bool) {
	working := record.DeepCopyData(rec.Data)

	// Internal locals, never emitted.
	if ts, ok := rec.Timestamp(); ok {
		working["__timestamp"] = float64(ts)
	} else {
		working["__timestamp"] = nil
	}
	now := timestamp.ToUnixMs(r.clock.Now())
	if r.start == 0 {
		r.start = now
	}
	working["__now"] = float64(now)
	working["__start"] = float64(r.start)

	r.seedRetention(working)

	for pass := 0; pass < r.cfg.passes(); pass++ {
		for i := range r.rules {
			if err := r.apply(&r.rules[i], working); err != nil {
				if errors.Is(err, errDropRecord) {
					if r.logger != nil {
						r.logger.Warn("record dropped", "rule", r.rules[i].Name)
					}
					return record.Record{}, false
				}
				if r.logger != nil {
					r.logger.Error("rule failed", "rule", r.rules[i].Name, "error", err)
				}
			}
		}
	}

	for i := range r.rules {
		rule := &r.rules[i]
		if rule.Retain {
			if v, ok := working[rule.Name]; ok {
				r.retention[rule.Name+"__prev"] = v
			}
		}
	}

	out := record.Record{Meta: rec.Meta, Data: r.forwardData(working)}
	return out, true
}

// seedRetention loads <name>__prev values into the working map. A retain
// rule with no stored value yet seeds from the current value of the same
// name when present, else from the rule's first input field when present,
// else 0 under missing:"zero".
func (r *Reducer) seedRetention(working map[string]any) {
	for k, v := range r.retention {
		working[k] = v
	}
	for i := range r.rules {
		rule := &r.rules[i]
		if !rule.Retain {
			continue
		}
		key := rule.Name + "__prev"
		if _, ok := working[key]; ok {
			continue
		}
		// First record: seed from the current input so deltas start at
		// zero instead of the full value.
		if v, ok := working[rule.Name]; ok {
			working[key] = v
		} else if v, ok := working[rule.firstInput()]; ok {
			working[key] = v
		} else if r.cfg.missing() == MissingZero {
			working[key] = 0.0
		}
	}
}

func (r *Reducer) apply(rule *compiledRule, working map[string]any) error {
	switch rule.Op {
	case "copy":
		src := rule.aliases["src"]
		v, ok := working[src]
		if !ok {
			return r.missingInput(rule, src, working)
		}
		working[rule.Name] = v
	case "sum", "sub", "avg", "max", "min", "range":
		return r.aggregate(rule, working)
	case "weighted_avg":
		return r.weightedAvg(rule, working)
	case "expr", "condition":
		return r.evalExpr(rule, working)
	case "passthrough":
		src := rule.firstInput()
		v, ok := working[src]
		if !ok {
			return r.missingInput(rule, src, working)
		}
		working[rule.Name] = v
	}
	return nil
}

// missingInput applies the missing-value policy for an absent field.
func (r *Reducer) missingInput(rule *compiledRule, field string, working map[string]any) error {
	switch r.cfg.missing() {
	case MissingFail:
		return errDropRecord
	case MissingZero:
		working[rule.Name] = 0.0
		return nil
	default:
		return nil
	}
}

func (r *Reducer) aggregate(rule *compiledRule, working map[string]any) error {
	values := make([]float64, 0, len(rule.fields))
	for _, field := range rule.fields {
		raw, ok := working[field]
		f, numeric := record.ToFloat64(raw)
		if !ok || !numeric {
			switch r.cfg.missing() {
			case MissingFail:
				return errDropRecord
			case MissingZero:
				values = append(values, 0)
			}
			continue
		}
		values = append(values, f)
	}
	if len(values) == 0 {
		return nil
	}

	var out float64
	switch rule.Op {
	case "sum":
		for _, v := range values {
			out += v
		}
	case "sub":
		out = values[0]
		for _, v := range values[1:] {
			out -= v
		}
	case "avg":
		for _, v := range values {
			out += v
		}
		out /= float64(len(values))
	case "max":
		out = values[0]
		for _, v := range values[1:] {
			if v > out {
				out = v
			}
		}
	case "min":
		out = values[0]
		for _, v := range values[1:] {
			if v < out {
				out = v
			}
		}
	case "range":
		lo, hi := values[0], values[0]
		for _, v := range values[1:] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		out = hi - lo
	}
	working[rule.Name] = out
	return nil
}

func (r *Reducer) weightedAvg(rule *compiledRule, working map[string]any) error {
	var sum, weightSum float64
	for field, weight := range rule.weights {
		raw, ok := working[field]
		f, numeric := record.ToFloat64(raw)
		if !ok || !numeric {
			switch r.cfg.missing() {
			case MissingFail:
				return errDropRecord
			case MissingZero:
				weightSum += weight
			}
			continue
		}
		sum += f * weight
		weightSum += weight
	}
	if weightSum == 0 {
		return nil
	}
	working[rule.Name] = sum / weightSum
	return nil
}

func (r *Reducer) evalExpr(rule *compiledRule, working map[string]any) error {
	locals := expr.MapScope{}
	for alias, field := range rule.aliases {
		v, ok := working[field]
		if !ok {
			switch r.cfg.missing() {
			case MissingFail:
				return errDropRecord
			case MissingZero:
				v = 0.0
			default:
				v = nil
			}
		}
		locals[alias] = v
	}

	result, err := rule.expr.Eval(locals)
	if err != nil {
		return err
	}
	if result == nil {
		// ignore: a null expression result is skipped; fail drops.
		if r.cfg.missing() == MissingFail {
			return errDropRecord
		}
		return nil
	}
	if rule.Op == "condition" {
		working[rule.Name] = coerceBool(result)
		return nil
	}
	working[rule.Name] = result
	return nil
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != ""
	default:
		if f, ok := record.ToFloat64(val); ok {
			return f != 0
		}
		return v != nil
	}
}

// forwardData applies the forwarding policy to the working map.
func (r *Reducer) forwardData(working map[string]any) map[string]any {
	temp := map[string]bool{}
	declared := map[string]bool{}
	for i := range r.rules {
		declared[r.rules[i].Name] = true
		if r.rules[i].Temp {
			temp[r.rules[i].Name] = true
		}
	}

	out := map[string]any{}
	if r.cfg.forward() == ForwardKnown {
		for name := range declared {
			if temp[name] {
				continue
			}
			if v, ok := working[name]; ok {
				out[name] = v
			}
		}
		return out
	}

	for k, v := range working {
		if strings.HasPrefix(k, "__") || temp[k] {
			continue
		}
		out[k] = v
	}
	return out
}

func (rule *compiledRule) firstInput() string {
	if len(rule.fields) > 0 {
		return rule.fields[0]
	}
	for _, field := range rule.aliases {
		return field
	}
	return ""
}

// stringList coerces a decoded inputs value to a []string.
func stringList(v any) ([]string, error) {
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("non-string input %v", e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("inputs is %T, not a list", v)
	}
}

// stringMap coerces a decoded inputs value to a map[string]string.
func stringMap(v any) (map[string]string, error) {
	switch m := v.(type) {
	case map[string]string:
		return m, nil
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, e := range m {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("non-string input %v", e)
			}
			out[k] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("inputs is %T, not a map", v)
	}
}

// floatMap coerces a decoded inputs value to field weights.
func floatMap(v any) (map[string]float64, error) {
	switch m := v.(type) {
	case map[string]float64:
		return m, nil
	case map[string]any:
		out := make(map[string]float64, len(m))
		for k, e := range m {
			f, ok := record.ToFloat64(e)
			if !ok {
				return nil, fmt.Errorf("non-numeric weight %v", e)
			}
			out[k] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("inputs is %T, not a map", v)
	}
}

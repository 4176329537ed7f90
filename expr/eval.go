package expr

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/c360/pipekit/record"
)

// DefaultBudget bounds one evaluation's wall-clock time.
const DefaultBudget = 25 * time.Millisecond

// Scope resolves identifiers for one evaluation. The second return is
// false for unknown identifiers.
type Scope interface {
	Resolve(name string) (any, bool)
}

// MapScope is a Scope over a plain map.
type MapScope map[string]any

// Resolve implements Scope.
func (m MapScope) Resolve(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Options tune compilation and evaluation.
type Options struct {
	Grammar Grammar
	// Strict rejects unknown identifiers with an error instead of
	// resolving them to null.
	Strict bool
	// Budget is the per-evaluation wall-clock limit; zero means
	// DefaultBudget.
	Budget time.Duration
}

// Expr is a compiled expression, safe for reuse across records.
type Expr struct {
	src  string
	root node
	opts Options
}

// Compile parses an expression once. The result is immutable and
// goroutine-safe.
func Compile(src string, opts Options) (*Expr, error) {
	root, err := parse(src, opts.Grammar)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	if opts.Budget == 0 {
		opts.Budget = DefaultBudget
	}
	return &Expr{src: src, root: root, opts: opts}, nil
}

// Source returns the original expression text.
func (e *Expr) Source() string {
	return e.src
}

// Eval evaluates against a scope. Unknown identifiers resolve to null
// (or error in strict mode); null propagates per package rules.
func (e *Expr) Eval(scope Scope) (any, error) {
	ev := &evalState{
		scope:    scope,
		strict:   e.opts.Strict,
		deadline: time.Now().Add(e.opts.Budget),
	}
	return ev.eval(e.root)
}

// EvalBool evaluates and coerces the result to a boolean; null is false.
func (e *Expr) EvalBool(scope Scope) (bool, error) {
	v, err := e.Eval(scope)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

type evalState struct {
	scope    Scope
	strict   bool
	deadline time.Time
	steps    int
}

// checkBudget bounds pathological expressions. The clock is sampled every
// few steps to keep the common path cheap.
func (ev *evalState) checkBudget() error {
	ev.steps++
	if ev.steps%32 == 0 && time.Now().After(ev.deadline) {
		return fmt.Errorf("evaluation budget exceeded")
	}
	return nil
}

func (ev *evalState) eval(n node) (any, error) {
	if err := ev.checkBudget(); err != nil {
		return nil, err
	}
	switch node := n.(type) {
	case numberNode:
		return float64(node), nil
	case stringNode:
		return string(node), nil
	case boolNode:
		return bool(node), nil
	case identNode:
		v, ok := ev.scope.Resolve(string(node))
		if !ok {
			if ev.strict {
				return nil, fmt.Errorf("unknown identifier %q", string(node))
			}
			return nil, nil
		}
		return v, nil
	case unaryNode:
		return ev.evalUnary(node)
	case binaryNode:
		return ev.evalBinary(node)
	case ternaryNode:
		cond, err := ev.eval(node.cond)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return ev.eval(node.then)
		}
		return ev.eval(node.els)
	case callNode:
		return ev.evalCall(node)
	default:
		return nil, fmt.Errorf("unknown node %T", n)
	}
}

func (ev *evalState) evalUnary(n unaryNode) (any, error) {
	x, err := ev.eval(n.x)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "!":
		return !truthy(x), nil
	case "-":
		if x == nil {
			return nil, nil
		}
		f, ok := record.ToFloat64(x)
		if !ok {
			return nil, fmt.Errorf("cannot negate %T", x)
		}
		return -f, nil
	}
	return nil, fmt.Errorf("unknown operator %q", n.op)
}

func (ev *evalState) evalBinary(n binaryNode) (any, error) {
	// Short-circuit logic first.
	switch n.op {
	case "&&":
		l, err := ev.eval(n.l)
		if err != nil {
			return nil, err
		}
		if !truthy(l) {
			return false, nil
		}
		r, err := ev.eval(n.r)
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	case "||":
		l, err := ev.eval(n.l)
		if err != nil {
			return nil, err
		}
		if truthy(l) {
			return true, nil
		}
		r, err := ev.eval(n.r)
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	}

	l, err := ev.eval(n.l)
	if err != nil {
		return nil, err
	}
	r, err := ev.eval(n.r)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==", "!=", "<", "<=", ">", ">=":
		return compare(n.op, l, r), nil
	case "+", "-", "*", "/":
		return arith(n.op, l, r)
	}
	return nil, fmt.Errorf("unknown operator %q", n.op)
}

// mathFuncs is the whitelisted call set. Nothing else is callable.
var mathFuncs = map[string]func(args []float64) (float64, error){
	"abs":   func(a []float64) (float64, error) { return math.Abs(a[0]), nil },
	"sign":  func(a []float64) (float64, error) { return sign(a[0]), nil },
	"floor": func(a []float64) (float64, error) { return math.Floor(a[0]), nil },
	"ceil":  func(a []float64) (float64, error) { return math.Ceil(a[0]), nil },
	"round": func(a []float64) (float64, error) { return math.Round(a[0]), nil },
	"sqrt":  func(a []float64) (float64, error) { return math.Sqrt(a[0]), nil },
	"log":   func(a []float64) (float64, error) { return math.Log(a[0]), nil },
	"exp":   func(a []float64) (float64, error) { return math.Exp(a[0]), nil },
	"pow":   func(a []float64) (float64, error) { return math.Pow(a[0], a[1]), nil },
	"min": func(a []float64) (float64, error) {
		out := a[0]
		for _, v := range a[1:] {
			out = math.Min(out, v)
		}
		return out, nil
	},
	"max": func(a []float64) (float64, error) {
		out := a[0]
		for _, v := range a[1:] {
			out = math.Max(out, v)
		}
		return out, nil
	},
}

// arity of each whitelisted function; -1 means one or more.
var mathArity = map[string]int{
	"abs": 1, "sign": 1, "floor": 1, "ceil": 1, "round": 1,
	"sqrt": 1, "log": 1, "exp": 1, "pow": 2, "min": -1, "max": -1,
}

func (ev *evalState) evalCall(n callNode) (any, error) {
	name := strings.TrimPrefix(n.fn, "Math.")
	fn, ok := mathFuncs[name]
	if !ok || strings.Contains(name, ".") {
		return nil, fmt.Errorf("function %q is not callable", n.fn)
	}
	arity := mathArity[name]
	if arity >= 0 && len(n.args) != arity || arity < 0 && len(n.args) == 0 {
		return nil, fmt.Errorf("%s: wrong argument count %d", name, len(n.args))
	}

	args := make([]float64, len(n.args))
	for i, argNode := range n.args {
		v, err := ev.eval(argNode)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		f, ok := record.ToFloat64(v)
		if !ok {
			return nil, fmt.Errorf("%s: argument %d is not numeric", name, i)
		}
		args[i] = f
	}
	return fn(args)
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// truthy coerces a value for logical contexts: null is false, numbers are
// true when non-zero, strings when non-empty.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	default:
		if f, ok := record.ToFloat64(val); ok {
			return f != 0
		}
		return true
	}
}

// compare applies a comparison operator. Any comparison involving null is
// false; numbers compare numerically, everything else as strings.
func compare(op string, l, r any) bool {
	if l == nil || r == nil {
		return false
	}

	lf, lNum := record.ToFloat64(l)
	rf, rNum := record.ToFloat64(r)

	var cmp int
	switch {
	case lNum && rNum:
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	default:
		lb, lBool := l.(bool)
		rb, rBool := r.(bool)
		if lBool && rBool {
			switch op {
			case "==":
				return lb == rb
			case "!=":
				return lb != rb
			default:
				return false
			}
		}
		ls := fmt.Sprintf("%v", l)
		rs := fmt.Sprintf("%v", r)
		switch {
		case ls < rs:
			cmp = -1
		case ls > rs:
			cmp = 1
		}
	}

	switch op {
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

// arith applies an arithmetic operator. Null propagates as null; a
// non-numeric operand is an error.
func arith(op string, l, r any) (any, error) {
	if l == nil || r == nil {
		return nil, nil
	}
	lf, ok := record.ToFloat64(l)
	if !ok {
		if op == "+" {
			// String concatenation keeps template-style expressions
			// working.
			if ls, isStr := l.(string); isStr {
				return ls + fmt.Sprintf("%v", r), nil
			}
		}
		return nil, fmt.Errorf("operand %T is not numeric", l)
	}
	rf, ok := record.ToFloat64(r)
	if !ok {
		return nil, fmt.Errorf("operand %T is not numeric", r)
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, nil
		}
		return lf / rf, nil
	}
	return nil, fmt.Errorf("unknown operator %q", op)
}

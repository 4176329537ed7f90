package fsm

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/zoobzio/clockz"

	"github.com/c360/pipekit/errors"
	"github.com/c360/pipekit/expr"
	"github.com/c360/pipekit/pkg/timestamp"
	"github.com/c360/pipekit/record"
)

// Tag is the pipeline tag appended by the fsm module.
const Tag = "fsm"

// Action is a transition's effect. The only action is a state change.
type Action struct {
	Goto string `json:"goto"`
}

// Transition guards one state change.
type Transition struct {
	When   string `json:"when"`
	Action Action `json:"action"`
}

// State is one node of the state graph.
type State struct {
	Transitions []Transition `json:"transitions"`
}

// Instance binds one independent machine to the record's data.
type Instance struct {
	// InitialState defaults to the only state when the graph has exactly
	// one.
	InitialState string `json:"initial_state"`
	// Inputs maps local aliases to data field names; expressions address
	// them as data.<alias>.
	Inputs map[string]string `json:"inputs"`
	// Outputs maps output kinds to data keys. The "state" kind writes
	// the instance's current state name.
	Outputs map[string]string `json:"outputs"`
}

// Config is the fsm module configuration.
type Config struct {
	States    map[string]State    `json:"states"`
	Instances map[string]Instance `json:"instances"`
	Constants map[string]any      `json:"constants"`
	// Passes bounds transition chaining within one record; minimum 1.
	Passes int `json:"passes"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if len(c.States) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "no states")
	}
	if len(c.Instances) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "no instances")
	}
	for name, state := range c.States {
		for _, tr := range state.Transitions {
			if _, ok := c.States[tr.Action.Goto]; !ok {
				return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
					fmt.Sprintf("state %q transitions to unknown state %q", name, tr.Action.Goto))
			}
		}
	}
	for name, inst := range c.Instances {
		if inst.InitialState == "" {
			if len(c.States) != 1 {
				return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
					fmt.Sprintf("instance %q needs initial_state", name))
			}
			continue
		}
		if _, ok := c.States[inst.InitialState]; !ok {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				fmt.Sprintf("instance %q starts in unknown state %q", name, inst.InitialState))
		}
	}
	return nil
}

func (c *Config) passes() int {
	if c.Passes < 1 {
		return 1
	}
	return c.Passes
}

// compiledTransition pairs a compiled guard with its target state.
type compiledTransition struct {
	when *expr.Expr
	target string
}

// instanceState is one running machine.
type instanceState struct {
	name      string
	cfg       Instance
	state     string
	enteredAt int64
}

// FSM runs every configured instance against the record stream.
type FSM struct {
	cfg    Config
	clock  clockz.Clock
	logger *slog.Logger

	transitions map[string][]compiledTransition
	instances   []*instanceState
}

// New compiles the state graph. Compilation errors in any guard fail
// construction: a misconfigured machine must not run half-blind.
func New(cfg Config, clock clockz.Clock, logger *slog.Logger) (*FSM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transitions := make(map[string][]compiledTransition, len(cfg.States))
	for name, state := range cfg.States {
		compiled := make([]compiledTransition, 0, len(state.Transitions))
		for _, tr := range state.Transitions {
			e, err := expr.Compile(tr.When, expr.Options{Grammar: expr.GrammarLogic})
			if err != nil {
				return nil, errors.WrapInvalid(err, "FSM", "New",
					fmt.Sprintf("state %q guard", name))
			}
			compiled = append(compiled, compiledTransition{when: e, target: tr.Action.Goto})
		}
		transitions[name] = compiled
	}

	onlyState := ""
	for name := range cfg.States {
		onlyState = name
	}

	// Instances run in name order so multi-instance evaluation is
	// deterministic.
	names := make([]string, 0, len(cfg.Instances))
	for name := range cfg.Instances {
		names = append(names, name)
	}
	sort.Strings(names)

	now := timestamp.ToUnixMs(clock.Now())
	instances := make([]*instanceState, 0, len(names))
	for _, name := range names {
		inst := cfg.Instances[name]
		initial := inst.InitialState
		if initial == "" {
			initial = onlyState
		}
		instances = append(instances, &instanceState{
			name:      name,
			cfg:       inst,
			state:     initial,
			enteredAt: now,
		})
	}

	return &FSM{
		cfg:         cfg,
		clock:       clock,
		logger:      logger,
		transitions: transitions,
		instances:   instances,
	}, nil
}

// Process evaluates every instance against one record and annotates the
// configured output keys with the resulting states.
func (f *FSM) Process(rec record.Record) record.Record {
	// Cross-instance counts are computed once per record, before any
	// transition fires.
	counts := make(map[string]int, len(f.cfg.States))
	for _, inst := range f.instances {
		counts[inst.state]++
	}

	recTs, ok := rec.Timestamp()
	if !ok {
		recTs = timestamp.ToUnixMs(f.clock.Now())
	}

	for _, inst := range f.instances {
		f.evaluate(inst, rec, counts, recTs)
	}

	for _, inst := range f.instances {
		if key, ok := inst.cfg.Outputs["state"]; ok && key != "" {
			rec.Data[key] = inst.state
		}
	}
	return rec
}

// evaluate chains up to passes transitions for one instance.
func (f *FSM) evaluate(inst *instanceState, rec record.Record, counts map[string]int, recTs int64) {
	scope := &recordScope{
		fsm:    f,
		inst:   inst,
		rec:    rec,
		counts: counts,
	}
	for pass := 0; pass < f.cfg.passes(); pass++ {
		fired := false
		for _, tr := range f.transitions[inst.state] {
			hold, err := tr.when.EvalBool(scope)
			if err != nil {
				if f.logger != nil {
					f.logger.Error("guard evaluation failed",
						"instance", inst.name, "state", inst.state,
						"when", tr.when.Source(), "error", err)
				}
				continue
			}
			if hold {
				inst.state = tr.target
				inst.enteredAt = recTs
				fired = true
				break
			}
		}
		if !fired {
			return
		}
	}
}

// recordScope resolves guard identifiers for one instance and record.
type recordScope struct {
	fsm    *FSM
	inst   *instanceState
	rec    record.Record
	counts map[string]int
}

// Resolve implements expr.Scope over the fsm identifier namespaces.
func (s *recordScope) Resolve(name string) (any, bool) {
	ns, rest, found := strings.Cut(name, ".")
	if !found {
		return nil, false
	}
	switch ns {
	case "data":
		field, ok := s.inst.cfg.Inputs[rest]
		if !ok {
			return nil, false
		}
		v, ok := s.rec.Data[field]
		return v, ok
	case "instance":
		switch rest {
		case "state":
			return s.inst.state, true
		case "timeInStateMs":
			now := timestamp.ToUnixMs(s.fsm.clock.Now())
			return float64(now - s.inst.enteredAt), true
		}
		return nil, false
	case "instancesInState":
		return float64(s.counts[rest]), true
	case "constant":
		v, ok := s.fsm.cfg.Constants[rest]
		return v, ok
	default:
		return nil, false
	}
}

// States returns each instance's current state, keyed by instance name.
func (f *FSM) States() map[string]string {
	out := make(map[string]string, len(f.instances))
	for _, inst := range f.instances {
		out[inst.name] = inst.state
	}
	return out
}

package stalled

import (
	"reflect"

	"github.com/zoobzio/clockz"

	"github.com/c360/pipekit/pkg/timestamp"
	"github.com/c360/pipekit/record"
)

// Tag is the pipeline tag appended by the stalled module.
const Tag = "stl"

// Config is the stalled module configuration.
type Config struct {
	// TimeoutMs is how long content may stay unchanged before the stream
	// counts as stalled.
	TimeoutMs float64 `json:"timeout_ms"`
	// Field is the data key written with the staleness flag.
	Field string `json:"field"`
	// IgnoreFields are excluded from the change comparison, typically
	// counters and timestamps that keep moving while the payload does not.
	IgnoreFields []string `json:"ignore_fields"`
}

// DefaultConfig returns a 5 s timeout writing to "stalled".
func DefaultConfig() Config {
	return Config{TimeoutMs: 5000, Field: "stalled"}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	return nil
}

func (c *Config) field() string {
	if c.Field == "" {
		return "stalled"
	}
	return c.Field
}

// Stalled tracks the last content change and annotates records.
type Stalled struct {
	cfg    Config
	ignore map[string]bool
	clock  clockz.Clock

	last         map[string]any
	lastChangeTs int64
}

// New creates a stalled processor.
func New(cfg Config, clock clockz.Clock) *Stalled {
	ignore := make(map[string]bool, len(cfg.IgnoreFields))
	for _, f := range cfg.IgnoreFields {
		ignore[f] = true
	}
	ignore[cfg.field()] = true
	return &Stalled{cfg: cfg, ignore: ignore, clock: clock}
}

// Process annotates one record with the staleness flag. Change is
// measured in the record's logical time when it carries a timestamp,
// falling back to the wall clock.
func (s *Stalled) Process(rec record.Record) record.Record {
	ts, ok := rec.Timestamp()
	if !ok {
		ts = timestamp.ToUnixMs(s.clock.Now())
	}

	if s.last == nil || s.changed(rec.Data) {
		s.last = s.snapshot(rec.Data)
		s.lastChangeTs = ts
	}

	rec.Data[s.cfg.field()] = float64(ts-s.lastChangeTs) > s.cfg.TimeoutMs
	return rec
}

func (s *Stalled) snapshot(data map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range data {
		if s.ignore[k] {
			continue
		}
		out[k] = record.CopyValue(v)
	}
	return out
}

func (s *Stalled) changed(data map[string]any) bool {
	seen := 0
	for k, v := range data {
		if s.ignore[k] {
			continue
		}
		seen++
		prev, ok := s.last[k]
		if !ok || !shallowEqual(prev, v) {
			return true
		}
	}
	return seen != len(s.last)
}

func shallowEqual(a, b any) bool {
	if am, ok := a.(map[string]any); ok {
		bm, ok := b.(map[string]any)
		if !ok || len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, ok := bm[k]
			if !ok || !scalarEqual(av, bv) {
				return false
			}
		}
		return true
	}
	return scalarEqual(a, b)
}

func scalarEqual(a, b any) bool {
	af, aNum := record.ToFloat64(a)
	bf, bNum := record.ToFloat64(b)
	if aNum && bNum {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

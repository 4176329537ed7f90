package dedup

import (
	"log/slog"
	"math"
	"reflect"

	"github.com/c360/pipekit/record"
)

// Tag is the pipeline tag appended by the dedup module.
const Tag = "ddp"

// Config is the dedup module configuration.
type Config struct {
	// IgnoreFields are excluded from the comparison.
	IgnoreFields []string `json:"ignore_fields"`
	// CheckFields, when given, restricts the comparison to these keys.
	CheckFields []string `json:"check_fields"`
	// NumericTolerance treats |a-b| <= tol as equal.
	NumericTolerance float64 `json:"numeric_tolerance"`
	// Debug logs every dropped record.
	Debug bool `json:"debug"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	return nil
}

// Dedup remembers the last forwarded data and drops unchanged records.
type Dedup struct {
	cfg    Config
	ignore map[string]bool
	logger *slog.Logger

	last map[string]any
}

// New creates a dedup processor.
func New(cfg Config, logger *slog.Logger) *Dedup {
	ignore := make(map[string]bool, len(cfg.IgnoreFields))
	for _, f := range cfg.IgnoreFields {
		ignore[f] = true
	}
	return &Dedup{cfg: cfg, ignore: ignore, logger: logger}
}

// Process decides one record: true forwards it, false drops it. The
// first record always passes.
func (d *Dedup) Process(rec record.Record) bool {
	if d.last == nil {
		d.remember(rec.Data)
		return true
	}
	if d.changed(rec.Data) {
		d.remember(rec.Data)
		return true
	}
	if d.cfg.Debug && d.logger != nil {
		d.logger.Info("dropped unchanged record")
	}
	return false
}

func (d *Dedup) remember(data map[string]any) {
	d.last = record.DeepCopyData(data)
}

// changed applies the comparison algorithm: pick the key set, then look
// for any key that is new or whose value moved beyond tolerance.
func (d *Dedup) changed(data map[string]any) bool {
	keys := d.cfg.CheckFields
	if len(keys) == 0 {
		keys = make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		if d.ignore[k] {
			continue
		}
		cur, inCur := data[k]
		if !inCur {
			continue
		}
		prev, inPrev := d.last[k]
		if !inPrev {
			return true
		}
		if !d.equal(cur, prev) {
			return true
		}
	}
	return false
}

// equal is tolerance-aware for primitives and one level deep for maps.
func (d *Dedup) equal(a, b any) bool {
	if am, aIsMap := a.(map[string]any); aIsMap {
		bm, bIsMap := b.(map[string]any)
		if !bIsMap || len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, ok := bm[k]
			if !ok || !d.scalarEqual(av, bv) {
				return false
			}
		}
		return true
	}
	return d.scalarEqual(a, b)
}

func (d *Dedup) scalarEqual(a, b any) bool {
	af, aNum := record.ToFloat64(a)
	bf, bNum := record.ToFloat64(b)
	if aNum && bNum {
		return math.Abs(af-bf) <= d.cfg.NumericTolerance
	}
	return reflect.DeepEqual(a, b)
}

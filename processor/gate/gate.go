package gate

import (
	"log/slog"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/c360/pipekit/pkg/timestamp"
	"github.com/c360/pipekit/record"
)

// Tag is the pipeline tag appended by the gate module.
const Tag = "gat"

// Block is one activation condition. All criteria inside a block must
// hold on the same record.
type Block struct {
	// MustHave lists data keys that must be present and non-null.
	MustHave []string `json:"must_have"`
	// MinValues maps data keys to inclusive numeric lower bounds.
	MinValues map[string]float64 `json:"min_values"`
	// BoolEqual maps data keys to required booleans. A required true
	// demands presence with value true; a required false tolerates
	// absence but forbids true.
	BoolEqual map[string]bool `json:"bool_equal"`
	// StrEqual maps data keys to required exact strings.
	StrEqual map[string]string `json:"str_equal"`
	// MaxAgeMs bounds now - meta.timestamp. A record without a numeric
	// timestamp fails the block.
	MaxAgeMs *float64 `json:"max_age_ms"`
	// TimeoutMs is diagnostic only: after the largest timeout across
	// blocks the gate logs a one-shot warning. It does not open the gate.
	TimeoutMs float64 `json:"timeout_ms"`
}

// Config is the gate module configuration.
type Config struct {
	Blocks []Block `json:"blocks"`
}

// DefaultConfig returns an empty gate that opens on the first record.
func DefaultConfig() Config {
	return Config{}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	return nil
}

// Gate evaluates activation blocks until one record satisfies them all.
type Gate struct {
	cfg    Config
	clock  clockz.Clock
	logger *slog.Logger

	open bool
}

// New creates a gate. When any block carries a timeout the diagnostic
// warning timer is armed immediately.
func New(cfg Config, clock clockz.Clock, logger *slog.Logger) *Gate {
	g := &Gate{cfg: cfg, clock: clock, logger: logger}
	if timeout := maxTimeout(cfg.Blocks); timeout > 0 {
		clock.AfterFunc(time.Duration(timeout)*time.Millisecond, func() {
			if !g.open && g.logger != nil {
				g.logger.Warn("gate not activated within timeout", "timeout_ms", timeout)
			}
		})
	}
	return g
}

func maxTimeout(blocks []Block) float64 {
	out := 0.0
	for _, b := range blocks {
		if b.TimeoutMs > out {
			out = b.TimeoutMs
		}
	}
	return out
}

// Open reports whether the gate has latched.
func (g *Gate) Open() bool {
	return g.open
}

// Process decides one record. The boolean is true when the record should
// be forwarded; before activation it is always false.
func (g *Gate) Process(rec record.Record) bool {
	if g.open {
		return true
	}
	if g.satisfiesAll(rec) {
		g.open = true
		if g.logger != nil {
			g.logger.Info("gate activated")
		}
		return true
	}
	return false
}

func (g *Gate) satisfiesAll(rec record.Record) bool {
	for i := range g.cfg.Blocks {
		if !g.satisfies(rec, &g.cfg.Blocks[i]) {
			return false
		}
	}
	return true
}

func (g *Gate) satisfies(rec record.Record, b *Block) bool {
	for _, key := range b.MustHave {
		if v, ok := rec.Data[key]; !ok || v == nil {
			return false
		}
	}
	for key, min := range b.MinValues {
		f, ok := record.ToFloat64(rec.Data[key])
		if !ok || f < min {
			return false
		}
	}
	for key, want := range b.BoolEqual {
		got, present := rec.Data[key].(bool)
		if want {
			if !present || !got {
				return false
			}
		} else if present && got {
			return false
		}
	}
	for key, want := range b.StrEqual {
		got, ok := rec.Data[key].(string)
		if !ok || got != want {
			return false
		}
	}
	if b.MaxAgeMs != nil {
		ts, ok := rec.Timestamp()
		if !ok {
			return false
		}
		age := g.clock.Now().Sub(timestamp.FromUnixMs(ts))
		if age > time.Duration(*b.MaxAgeMs)*time.Millisecond {
			return false
		}
	}
	return true
}

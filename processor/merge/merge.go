package merge

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/c360/pipekit/record"
)

// Tag is the pipeline tag appended by the merge module.
const Tag = "mrg"

// Config is the merge module configuration. Slice entries apply to side
// channels by position; missing entries take the defaults.
type Config struct {
	// MatchToleranceMs accepts the nearest side record as-is when its
	// timestamp is within this distance of the primary's.
	MatchToleranceMs float64 `json:"match_tolerance_ms"`
	// MaxBufferMs bounds the bounded-mode window.
	MaxBufferMs float64 `json:"max_buffer_ms"`
	// AllowUnboundedDelay switches a side channel to hold-last mode.
	AllowUnboundedDelay []bool `json:"allow_unbounded_delay"`
	// Postfix renames side fields; default _1, _2, ...
	Postfix []string `json:"postfix"`
}

// DefaultConfig returns merge defaults: 100 ms tolerance, 10 s window.
func DefaultConfig() Config {
	return Config{MatchToleranceMs: 100, MaxBufferMs: 10_000}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	return nil
}

func (c *Config) postfix(i int) string {
	if i < len(c.Postfix) && c.Postfix[i] != "" {
		return c.Postfix[i]
	}
	return fmt.Sprintf("_%d", i+1)
}

func (c *Config) unbounded(i int) bool {
	return i < len(c.AllowUnboundedDelay) && c.AllowUnboundedDelay[i]
}

// sideEntry is one buffered side record.
type sideEntry struct {
	ts   int64
	data map[string]any
}

// sideState holds one side channel's buffer or held record.
type sideState struct {
	unbounded bool
	window    []sideEntry // bounded mode, ascending ts
	last      *sideEntry  // unbounded mode
}

// Merge joins side channels into the primary stream.
type Merge struct {
	cfg   Config
	clock clockz.Clock

	mu    sync.Mutex
	sides []*sideState
}

// New creates a merge over n side channels.
func New(cfg Config, n int, clock clockz.Clock) *Merge {
	sides := make([]*sideState, n)
	for i := range sides {
		sides[i] = &sideState{unbounded: cfg.unbounded(i)}
	}
	return &Merge{cfg: cfg, clock: clock, sides: sides}
}

// Side accepts one record from side channel i. Records without a numeric
// timestamp are unusable for time alignment and are discarded.
func (m *Merge) Side(i int, rec record.Record) {
	if i < 0 || i >= len(m.sides) {
		return
	}
	ts, ok := rec.Timestamp()
	if !ok {
		return
	}
	entry := sideEntry{ts: ts, data: record.DeepCopyData(rec.Data)}

	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sides[i]
	if s.unbounded {
		s.last = &entry
		return
	}

	// Insert preserving ascending timestamp order; arrivals are usually
	// already ordered so the common case is an append.
	pos := sort.Search(len(s.window), func(j int) bool { return s.window[j].ts > ts })
	s.window = append(s.window, sideEntry{})
	copy(s.window[pos+1:], s.window[pos:])
	s.window[pos] = entry

	m.trimLocked(s)
}

// trimLocked drops window entries older than now - maxBufferMs.
func (m *Merge) trimLocked(s *sideState) {
	if m.cfg.MaxBufferMs <= 0 {
		return
	}
	cutoff := m.clock.Now().Add(-time.Duration(m.cfg.MaxBufferMs) * time.Millisecond).UnixMilli()
	drop := 0
	for drop < len(s.window) && s.window[drop].ts < cutoff {
		drop++
	}
	if drop > 0 {
		s.window = append(s.window[:0], s.window[drop:]...)
	}
}

// Process merges one primary record. A primary without a numeric
// timestamp passes through unchanged with no side contribution.
func (m *Merge) Process(rec record.Record) record.Record {
	t, ok := rec.Timestamp()
	if !ok {
		return rec
	}

	merged := record.Record{
		Meta: rec.Meta,
		Data: record.DeepCopyData(rec.Data),
	}
	merged.Meta[record.KeyTimestamp] = t

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.sides {
		selected := m.selectLocked(s, t)
		if selected == nil {
			continue
		}
		postfix := m.cfg.postfix(i)
		for k, v := range selected.data {
			merged.Data[k+postfix] = v
		}
	}
	return merged
}

// selectLocked picks or synthesizes the side contribution for primary
// time t.
func (m *Merge) selectLocked(s *sideState, t int64) *sideEntry {
	if s.unbounded {
		return s.last
	}
	if len(s.window) == 0 {
		return nil
	}

	// Nearest match within tolerance wins as-is.
	nearest := &s.window[0]
	for j := 1; j < len(s.window); j++ {
		if absDelta(s.window[j].ts, t) < absDelta(nearest.ts, t) {
			nearest = &s.window[j]
		}
	}
	if float64(absDelta(nearest.ts, t)) <= m.cfg.MatchToleranceMs {
		return nearest
	}

	// Bracket t and interpolate common numeric fields.
	var before, after *sideEntry
	for j := range s.window {
		if s.window[j].ts <= t {
			before = &s.window[j]
		} else {
			after = &s.window[j]
			break
		}
	}
	if before != nil && after != nil && after.ts > before.ts {
		return interpolate(before, after, t)
	}
	if before != nil {
		return before
	}
	return after
}

// interpolate builds a synthesized entry at time t: before's data with
// every field that is finite-numeric on both sides replaced by the linear
// blend.
func interpolate(before, after *sideEntry, t int64) *sideEntry {
	r := float64(t-before.ts) / float64(after.ts-before.ts)
	data := record.DeepCopyData(before.data)
	for k, bv := range before.data {
		bf, bOK := record.IsFiniteNumber(bv)
		af, aOK := record.IsFiniteNumber(after.data[k])
		if bOK && aOK {
			data[k] = bf + (af-bf)*r
		}
	}
	return &sideEntry{ts: t, data: data}
}

func absDelta(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}

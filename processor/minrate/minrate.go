package minrate

import (
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/c360/pipekit/errors"
	"github.com/c360/pipekit/pkg/timestamp"
	"github.com/c360/pipekit/record"
)

// Tag is the pipeline tag appended by the minrate module.
const Tag = "minr"

// Config is the minrate module configuration. Exactly one of IntervalMs
// and Rate must be set.
type Config struct {
	// IntervalMs is the maximum silence between outputs.
	IntervalMs float64 `json:"interval_ms"`
	// Rate is outputs per second, an alternative spelling of IntervalMs.
	Rate float64 `json:"rate"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if (c.IntervalMs > 0) == (c.Rate > 0) {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"exactly one of interval-ms and rate must be given")
	}
	return nil
}

// Interval returns the effective emission interval.
func (c *Config) Interval() time.Duration {
	if c.IntervalMs > 0 {
		return time.Duration(c.IntervalMs * float64(time.Millisecond))
	}
	return time.Duration(float64(time.Second) / c.Rate)
}

// Emit receives forwarded and cloned records.
type Emit func(rec record.Record)

// MinRate forwards every real record and injects clones during silence.
type MinRate struct {
	interval time.Duration
	clock    clockz.Clock
	emit     Emit

	mu           sync.Mutex
	cached       *record.Record
	lastLogical  int64
	lastEmitWall time.Time

	ticker clockz.Ticker
	stop   chan struct{}
	once   sync.Once
}

// New creates a minrate processor and starts its clone timer. The timer
// period is max(5ms, interval/4) so injection lag stays well under one
// interval.
func New(cfg Config, clock clockz.Clock, emit Emit) *MinRate {
	m := &MinRate{
		interval: cfg.Interval(),
		clock:    clock,
		emit:     emit,
		stop:     make(chan struct{}),
	}
	period := m.interval / 4
	if period < 5*time.Millisecond {
		period = 5 * time.Millisecond
	}
	m.ticker = clock.NewTicker(period)
	go m.run()
	return m
}

// Process forwards one real record. A missing timestamp is stamped with
// the current wall clock so clones always have a logical base.
func (m *MinRate) Process(rec record.Record) {
	ts, ok := rec.Timestamp()
	if !ok {
		ts = timestamp.ToUnixMs(m.clock.Now())
		rec.Meta[record.KeyTimestamp] = ts
	}
	record.AppendTag(rec.Meta, Tag)

	m.mu.Lock()
	cached := rec.Copy()
	m.cached = &cached
	m.lastLogical = ts
	m.lastEmitWall = m.clock.Now()
	m.mu.Unlock()

	m.emit(rec)
}

// Stop ends the clone timer.
func (m *MinRate) Stop() {
	m.once.Do(func() {
		m.ticker.Stop()
		close(m.stop)
	})
}

func (m *MinRate) run() {
	for {
		select {
		case <-m.stop:
			return
		case <-m.ticker.C():
			m.tick()
		}
	}
}

// tick injects one clone when the stream has been silent for an interval.
// The clone deep-copies the cached data and pipeline (the minrate tag is
// already in it) and advances the logical timestamp by exactly one
// interval.
func (m *MinRate) tick() {
	m.mu.Lock()
	if m.cached == nil || m.clock.Now().Sub(m.lastEmitWall) < m.interval {
		m.mu.Unlock()
		return
	}
	clone := m.cached.Copy()
	m.lastLogical += m.interval.Milliseconds()
	clone.Meta[record.KeyTimestamp] = m.lastLogical
	m.lastEmitWall = m.clock.Now()
	m.mu.Unlock()

	m.emit(clone)
}

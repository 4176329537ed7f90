package minrate

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"

	"github.com/c360/pipekit/record"
)

// collector gathers emissions across goroutines.
type collector struct {
	mu   sync.Mutex
	recs []record.Record
}

func (c *collector) emit(rec record.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
}

func (c *collector) snapshot() []record.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]record.Record{}, c.recs...)
}

func (c *collector) waitLen(t *testing.T, n int) []record.Record {
	t.Helper()
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.recs) >= n
	}, time.Second, time.Millisecond)
	return c.snapshot()
}

func TestConfigValidation(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
	assert.Error(t, (&Config{IntervalMs: 100, Rate: 10}).Validate())
	assert.NoError(t, (&Config{IntervalMs: 100}).Validate())
	assert.NoError(t, (&Config{Rate: 10}).Validate())

	assert.Equal(t, 100*time.Millisecond, (&Config{IntervalMs: 100}).Interval())
	assert.Equal(t, 100*time.Millisecond, (&Config{Rate: 10}).Interval())
}

func TestCloneCadence(t *testing.T) {
	clock := clockz.NewFakeClock()
	var out collector
	m := New(Config{IntervalMs: 100}, clock, out.emit)
	defer m.Stop()

	in := record.Normalize(map[string]any{
		"meta": map[string]any{"timestamp": float64(1000), "pipeline": []any{}},
		"data": map[string]any{"x": float64(7)},
	})
	m.Process(in)

	// 350 ms of silence at a 100 ms interval injects three clones.
	for i := 2; i <= 4; i++ {
		clock.Advance(100 * time.Millisecond)
		clock.BlockUntilReady()
		out.waitLen(t, i)
	}
	clock.Advance(50 * time.Millisecond)
	clock.BlockUntilReady()

	recs := out.waitLen(t, 4)[:4]
	var stamps []int64
	for _, rec := range recs {
		ts, ok := rec.Timestamp()
		require.True(t, ok)
		stamps = append(stamps, ts)
		assert.Equal(t, float64(7), rec.Data["x"])
		assert.Equal(t, []string{"minr"}, rec.Pipeline())
	}
	assert.Equal(t, []int64{1000, 1100, 1200, 1300}, stamps)
}

func TestRealRecordsNeverDropped(t *testing.T) {
	clock := clockz.NewFakeClock()
	var out collector
	m := New(Config{IntervalMs: 100}, clock, out.emit)
	defer m.Stop()

	for i := 0; i < 5; i++ {
		m.Process(record.Normalize(map[string]any{
			"meta": map[string]any{"timestamp": float64(1000 + i)},
			"data": map[string]any{"n": float64(i)},
		}))
	}

	recs := out.snapshot()
	require.Len(t, recs, 5)
	for i, rec := range recs {
		assert.Equal(t, float64(i), rec.Data["n"])
	}
}

func TestMissingTimestampStampedWithNow(t *testing.T) {
	clock := clockz.NewFakeClock()
	var out collector
	m := New(Config{IntervalMs: 100}, clock, out.emit)
	defer m.Stop()

	m.Process(record.Normalize(map[string]any{"data": map[string]any{"a": 1.0}}))

	recs := out.snapshot()
	require.Len(t, recs, 1)
	ts, ok := recs[0].Timestamp()
	require.True(t, ok)
	assert.Equal(t, clock.Now().UnixMilli(), ts)
}

func TestCloneIsDeepCopy(t *testing.T) {
	clock := clockz.NewFakeClock()
	var out collector
	m := New(Config{IntervalMs: 100}, clock, out.emit)
	defer m.Stop()

	m.Process(record.Normalize(map[string]any{
		"meta": map[string]any{"timestamp": float64(1000)},
		"data": map[string]any{"nested": map[string]any{"v": 1.0}},
	}))
	clock.Advance(150 * time.Millisecond)
	clock.BlockUntilReady()

	recs := out.waitLen(t, 2)
	recs[0].Data["nested"].(map[string]any)["v"] = 99.0
	assert.Equal(t, 1.0, recs[1].Data["nested"].(map[string]any)["v"])
}

func TestNoCloneWhileStreamActive(t *testing.T) {
	clock := clockz.NewFakeClock()
	var out collector
	m := New(Config{IntervalMs: 100}, clock, out.emit)
	defer m.Stop()

	for i := 0; i < 4; i++ {
		m.Process(record.Normalize(map[string]any{
			"meta": map[string]any{"timestamp": float64(1000 + i*50)},
			"data": map[string]any{},
		}))
		clock.Advance(50 * time.Millisecond)
		clock.BlockUntilReady()
	}

	assert.Len(t, out.snapshot(), 4, "an active stream needs no clones")
}

package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360/pipekit/record"
)

func rec(data map[string]any) record.Record {
	return record.Normalize(map[string]any{"data": data})
}

func TestIgnoreFields(t *testing.T) {
	// Only the ignored counter changes: one record of each content.
	d := New(Config{IgnoreFields: []string{"t"}}, nil)

	assert.True(t, d.Process(rec(map[string]any{"t": 1.0, "a": 1.0})))
	assert.False(t, d.Process(rec(map[string]any{"t": 2.0, "a": 1.0})))
	assert.True(t, d.Process(rec(map[string]any{"t": 3.0, "a": 2.0})))
}

func TestFirstRecordAlwaysPasses(t *testing.T) {
	d := New(Config{}, nil)
	assert.True(t, d.Process(rec(map[string]any{})))
}

func TestMetaNeverConsulted(t *testing.T) {
	d := New(Config{}, nil)
	first := record.Normalize(map[string]any{
		"meta": map[string]any{"timestamp": float64(1)},
		"data": map[string]any{"a": 1.0},
	})
	second := record.Normalize(map[string]any{
		"meta": map[string]any{"timestamp": float64(99999)},
		"data": map[string]any{"a": 1.0},
	})
	assert.True(t, d.Process(first))
	assert.False(t, d.Process(second))
}

func TestCheckFieldsWhitelist(t *testing.T) {
	d := New(Config{CheckFields: []string{"a"}}, nil)
	assert.True(t, d.Process(rec(map[string]any{"a": 1.0, "b": 1.0})))
	// b changes but is outside the whitelist.
	assert.False(t, d.Process(rec(map[string]any{"a": 1.0, "b": 2.0})))
	assert.True(t, d.Process(rec(map[string]any{"a": 2.0, "b": 2.0})))
}

func TestNumericTolerance(t *testing.T) {
	d := New(Config{NumericTolerance: 0.5}, nil)
	assert.True(t, d.Process(rec(map[string]any{"v": 1.0})))
	assert.False(t, d.Process(rec(map[string]any{"v": 1.4})))
	assert.True(t, d.Process(rec(map[string]any{"v": 1.6})))
}

func TestNewKeyIsAChange(t *testing.T) {
	d := New(Config{}, nil)
	assert.True(t, d.Process(rec(map[string]any{"a": 1.0})))
	assert.True(t, d.Process(rec(map[string]any{"a": 1.0, "b": 1.0})))
}

func TestNestedMapsCompareShallow(t *testing.T) {
	d := New(Config{}, nil)
	assert.True(t, d.Process(rec(map[string]any{
		"pos": map[string]any{"x": 1.0, "y": 2.0},
	})))
	assert.False(t, d.Process(rec(map[string]any{
		"pos": map[string]any{"x": 1.0, "y": 2.0},
	})))
	assert.True(t, d.Process(rec(map[string]any{
		"pos": map[string]any{"x": 1.0, "y": 3.0},
	})))
	// A differing key set is a change.
	assert.True(t, d.Process(rec(map[string]any{
		"pos": map[string]any{"x": 1.0},
	})))
}

func TestStringChange(t *testing.T) {
	d := New(Config{}, nil)
	assert.True(t, d.Process(rec(map[string]any{"mode": "auto"})))
	assert.False(t, d.Process(rec(map[string]any{"mode": "auto"})))
	assert.True(t, d.Process(rec(map[string]any{"mode": "manual"})))
}

func TestRememberedStateIsACopy(t *testing.T) {
	d := New(Config{}, nil)
	data := map[string]any{"a": 1.0}
	assert.True(t, d.Process(rec(data)))
	// Mutating the caller's map must not confuse the comparison.
	data["a"] = 2.0
	assert.True(t, d.Process(rec(map[string]any{"a": 2.0})))
}

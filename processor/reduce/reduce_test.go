package reduce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"

	"github.com/c360/pipekit/record"
)

func rec(data map[string]any) record.Record {
	return record.Normalize(map[string]any{
		"meta": map[string]any{"timestamp": float64(1000)},
		"data": data,
	})
}

func newReducer(t *testing.T, cfg Config) *Reducer {
	t.Helper()
	r, err := New(cfg, clockz.NewFakeClock(), nil)
	require.NoError(t, err)
	return r
}

func TestAggregates(t *testing.T) {
	cfg := Config{
		ForwardPolicy: ForwardKnown,
		Rules: []Rule{
			{Name: "total", Op: "sum", Inputs: []string{"a", "b", "c"}},
			{Name: "diff", Op: "sub", Inputs: []string{"a", "b"}},
			{Name: "mean", Op: "avg", Inputs: []string{"a", "b", "c"}},
			{Name: "hi", Op: "max", Inputs: []string{"a", "b", "c"}},
			{Name: "lo", Op: "min", Inputs: []string{"a", "b", "c"}},
			{Name: "spread", Op: "range", Inputs: []string{"a", "b", "c"}},
		},
	}
	r := newReducer(t, cfg)

	out, ok := r.Process(rec(map[string]any{"a": 10.0, "b": 4.0, "c": 1.0}))
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"total":  15.0,
		"diff":   6.0,
		"mean":   5.0,
		"hi":     10.0,
		"lo":     1.0,
		"spread": 9.0,
	}, out.Data)
}

func TestCopyAndPassthrough(t *testing.T) {
	cfg := Config{
		ForwardPolicy: ForwardKnown,
		Rules: []Rule{
			{Name: "speed", Op: "copy", Inputs: map[string]any{"src": "raw_speed"}},
			{Name: "label", Op: "passthrough", Inputs: []string{"mode"}},
		},
	}
	r := newReducer(t, cfg)

	out, ok := r.Process(rec(map[string]any{"raw_speed": 3.5, "mode": "auto"}))
	require.True(t, ok)
	assert.Equal(t, 3.5, out.Data["speed"])
	assert.Equal(t, "auto", out.Data["label"])
}

func TestWeightedAvg(t *testing.T) {
	cfg := Config{
		ForwardPolicy: ForwardKnown,
		Rules: []Rule{
			{Name: "score", Op: "weighted_avg", Inputs: map[string]any{"a": 3.0, "b": 1.0}},
		},
	}
	r := newReducer(t, cfg)

	out, ok := r.Process(rec(map[string]any{"a": 10.0, "b": 2.0}))
	require.True(t, ok)
	assert.InDelta(t, 8.0, out.Data["score"].(float64), 1e-9)
}

func TestExprAndCondition(t *testing.T) {
	cfg := Config{
		ForwardPolicy: ForwardKnown,
		Rules: []Rule{
			{Name: "power", Op: "expr", Expr: "v * i",
				Inputs: map[string]any{"v": "volts", "i": "amps"}},
			{Name: "overload", Op: "condition", Expr: "v * i > 100",
				Inputs: map[string]any{"v": "volts", "i": "amps"}},
		},
	}
	r := newReducer(t, cfg)

	out, ok := r.Process(rec(map[string]any{"volts": 12.0, "amps": 10.0}))
	require.True(t, ok)
	assert.Equal(t, 120.0, out.Data["power"])
	assert.Equal(t, true, out.Data["overload"])
}

func TestMissingFailDropsRecord(t *testing.T) {
	cfg := Config{
		Missing: MissingFail,
		Rules: []Rule{
			{Name: "total", Op: "sum", Inputs: []string{"present", "absent"}},
		},
	}
	r := newReducer(t, cfg)

	_, ok := r.Process(rec(map[string]any{"present": 1.0}))
	assert.False(t, ok)

	out, ok := r.Process(rec(map[string]any{"present": 1.0, "absent": 2.0}))
	require.True(t, ok)
	assert.Equal(t, 3.0, out.Data["total"])
}

func TestMissingZeroTreatsAbsentAsZero(t *testing.T) {
	cfg := Config{
		Missing:       MissingZero,
		ForwardPolicy: ForwardKnown,
		Rules: []Rule{
			{Name: "total", Op: "sum", Inputs: []string{"present", "absent"}},
			{Name: "mean", Op: "avg", Inputs: []string{"present", "absent"}},
		},
	}
	r := newReducer(t, cfg)

	out, ok := r.Process(rec(map[string]any{"present": 4.0}))
	require.True(t, ok)
	assert.Equal(t, 4.0, out.Data["total"])
	assert.Equal(t, 2.0, out.Data["mean"], "absent value participates as zero")
}

func TestMissingIgnoreSkipsNullExpr(t *testing.T) {
	cfg := Config{
		ForwardPolicy: ForwardKnown,
		Rules: []Rule{
			{Name: "derived", Op: "expr", Expr: "a + 1", Inputs: map[string]any{"a": "absent"}},
		},
	}
	r := newReducer(t, cfg)

	out, ok := r.Process(rec(map[string]any{"x": 1.0}))
	require.True(t, ok)
	_, present := out.Data["derived"]
	assert.False(t, present, "null expression results are skipped")
}

func TestMultiPass(t *testing.T) {
	cfg := Config{
		Passes:        2,
		ForwardPolicy: ForwardKnown,
		Rules: []Rule{
			// "doubled" consumes "base", declared after it: only the
			// second pass sees it.
			{Name: "doubled", Op: "expr", Expr: "b * 2", Inputs: map[string]any{"b": "base"}},
			{Name: "base", Op: "copy", Inputs: map[string]any{"src": "raw"}},
		},
	}
	r := newReducer(t, cfg)

	out, ok := r.Process(rec(map[string]any{"raw": 5.0}))
	require.True(t, ok)
	assert.Equal(t, 10.0, out.Data["doubled"])
}

func TestTempWithheldButUsable(t *testing.T) {
	cfg := Config{
		ForwardPolicy: ForwardAll,
		Rules: []Rule{
			{Name: "half", Op: "expr", Expr: "v / 2", Inputs: map[string]any{"v": "raw"}, Temp: true},
			{Name: "quarter", Op: "expr", Expr: "h / 2", Inputs: map[string]any{"h": "half"}},
		},
		Passes: 2,
	}
	r := newReducer(t, cfg)

	out, ok := r.Process(rec(map[string]any{"raw": 8.0}))
	require.True(t, ok)
	assert.Equal(t, 2.0, out.Data["quarter"])
	_, present := out.Data["half"]
	assert.False(t, present)
}

func TestForwardAllKeepsUnknownKeys(t *testing.T) {
	cfg := Config{
		Rules: []Rule{
			{Name: "total", Op: "sum", Inputs: []string{"a"}},
		},
	}
	r := newReducer(t, cfg)

	out, ok := r.Process(rec(map[string]any{"a": 1.0, "unrelated": "kept"}))
	require.True(t, ok)
	assert.Equal(t, "kept", out.Data["unrelated"])
	assert.Equal(t, 1.0, out.Data["total"])
}

func TestForwardKnownExactKeySet(t *testing.T) {
	cfg := Config{
		ForwardPolicy: ForwardKnown,
		Rules: []Rule{
			{Name: "kept", Op: "copy", Inputs: map[string]any{"src": "a"}},
			{Name: "hidden", Op: "copy", Inputs: map[string]any{"src": "a"}, Temp: true},
		},
	}
	r := newReducer(t, cfg)

	out, ok := r.Process(rec(map[string]any{"a": 1.0, "noise": 2.0}))
	require.True(t, ok)
	assert.Equal(t, map[string]any{"kept": 1.0}, out.Data)
}

func TestRetention(t *testing.T) {
	cfg := Config{
		ForwardPolicy: ForwardKnown,
		Rules: []Rule{
			{Name: "level", Op: "copy", Inputs: map[string]any{"src": "raw"}, Retain: true},
			{Name: "drift", Op: "expr", Expr: "cur - prev",
				Inputs: map[string]any{"cur": "raw", "prev": "level__prev"}},
		},
	}
	r := newReducer(t, cfg)

	// First record: level__prev seeds from the current input.
	out, ok := r.Process(rec(map[string]any{"raw": 10.0}))
	require.True(t, ok)
	assert.Equal(t, 0.0, out.Data["drift"])

	out, ok = r.Process(rec(map[string]any{"raw": 13.0}))
	require.True(t, ok)
	assert.Equal(t, 3.0, out.Data["drift"])

	out, ok = r.Process(rec(map[string]any{"raw": 12.0}))
	require.True(t, ok)
	assert.Equal(t, -1.0, out.Data["drift"])
}

func TestInternalLocals(t *testing.T) {
	cfg := Config{
		ForwardPolicy: ForwardKnown,
		Rules: []Rule{
			{Name: "age", Op: "expr", Expr: "now - ts",
				Inputs: map[string]any{"now": "__now", "ts": "__timestamp"}},
		},
	}
	r := newReducer(t, cfg)

	out, ok := r.Process(rec(map[string]any{}))
	require.True(t, ok)
	_, present := out.Data["age"]
	assert.True(t, present)
	_, leak := out.Data["__now"]
	assert.False(t, leak, "internal locals never emitted")
}

func TestExprErrorSkipsRule(t *testing.T) {
	cfg := Config{
		ForwardPolicy: ForwardAll,
		Rules: []Rule{
			{Name: "bad", Op: "expr", Expr: "s * 2", Inputs: map[string]any{"s": "label"}},
			{Name: "good", Op: "copy", Inputs: map[string]any{"src": "label"}},
		},
	}
	r := newReducer(t, cfg)

	out, ok := r.Process(rec(map[string]any{"label": "text"}))
	require.True(t, ok, "a failing rule never crashes the record")
	_, present := out.Data["bad"]
	assert.False(t, present)
	assert.Equal(t, "text", out.Data["good"])
}

func TestValidate(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
	assert.Error(t, (&Config{Rules: []Rule{{Op: "sum"}}}).Validate())
	assert.Error(t, (&Config{
		Rules:   []Rule{{Name: "a", Op: "sum", Inputs: []string{"x"}}},
		Missing: "sometimes",
	}).Validate())
	assert.Error(t, (&Config{
		Rules: []Rule{
			{Name: "a", Op: "sum", Inputs: []string{"x"}},
			{Name: "a", Op: "sum", Inputs: []string{"y"}},
		},
	}).Validate())

	_, err := New(Config{Rules: []Rule{{Name: "a", Op: "teleport"}}},
		clockz.NewFakeClock(), nil)
	assert.Error(t, err)
}

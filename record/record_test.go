package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeScalar(t *testing.T) {
	// A bare scalar wraps as {value: v} with empty meta.
	var decoded any
	require.NoError(t, json.Unmarshal([]byte("5"), &decoded))

	rec := Normalize(decoded)

	assert.Equal(t, map[string]any{"value": float64(5)}, rec.Data)
	assert.Equal(t, []string{}, rec.Meta[KeyPipeline])
}

func TestNormalizeCanonicalInput(t *testing.T) {
	in := map[string]any{
		"meta": map[string]any{
			"timestamp": float64(1000),
			"pipeline":  []any{"src", "minr"},
			"custom":    "kept",
		},
		"data": map[string]any{"x": float64(7), "extra": "kept"},
	}

	rec := Normalize(in)

	ts, ok := rec.Timestamp()
	require.True(t, ok)
	assert.Equal(t, int64(1000), ts)
	assert.Equal(t, []string{"src", "minr"}, rec.Pipeline())
	assert.Equal(t, "kept", rec.Meta["custom"])
	assert.Equal(t, "kept", rec.Data["extra"])
}

func TestNormalizeIdempotent(t *testing.T) {
	cases := []any{
		5.0,
		"text",
		nil,
		map[string]any{"a": 1.0},
		map[string]any{"meta": map[string]any{}, "data": map[string]any{"a": 1.0}},
		map[string]any{"meta": "bogus", "data": []any{1.0}},
	}
	for _, in := range cases {
		once := Normalize(in)
		twice := Normalize(any(map[string]any{
			"meta": once.Meta, "data": once.Data,
		}))
		assert.Equal(t, once, twice, "input %v", in)
	}
}

func TestNormalizeMapWithoutEnvelope(t *testing.T) {
	// A plain map becomes the data payload.
	rec := Normalize(map[string]any{"speed": 1.5})
	assert.Equal(t, map[string]any{"speed": 1.5}, rec.Data)
	assert.NotNil(t, rec.Meta)
}

func TestNormalizeNonMapMembers(t *testing.T) {
	rec := Normalize(map[string]any{"meta": 42.0, "data": "nope"})
	assert.Equal(t, map[string]any{}, rec.Data)
	assert.Equal(t, []string{}, rec.Meta[KeyPipeline])
}

func TestTaggingLifecycle(t *testing.T) {
	defer SetTagging(true)

	meta := NewMeta("src")
	assert.Equal(t, []string{"src"}, meta[KeyPipeline])
	_, hasTs := meta[KeyTimestamp]
	assert.True(t, hasTs)

	AppendTag(meta, "gat")
	assert.Equal(t, []string{"src", "gat"}, meta[KeyPipeline])

	SetTagging(false)
	meta2 := NewMeta("src")
	_, hasPipeline := meta2[KeyPipeline]
	assert.False(t, hasPipeline)

	AppendTag(meta2, "gat")
	_, hasPipeline = meta2[KeyPipeline]
	assert.False(t, hasPipeline)
}

func TestNormalizeTaggingDisabledLeavesPipelineAbsent(t *testing.T) {
	defer SetTagging(true)
	SetTagging(false)

	rec := Normalize(map[string]any{"data": map[string]any{"a": 1.0}})
	_, hasPipeline := rec.Meta[KeyPipeline]
	assert.False(t, hasPipeline)
}

func TestDeepCopyData(t *testing.T) {
	src := map[string]any{
		"nested": map[string]any{"a": 1.0},
		"list":   []any{1.0, 2.0},
	}
	dup := DeepCopyData(src)

	dup["nested"].(map[string]any)["a"] = 9.0
	dup["list"].([]any)[0] = 9.0

	assert.Equal(t, 1.0, src["nested"].(map[string]any)["a"])
	assert.Equal(t, 1.0, src["list"].([]any)[0])
}

func TestNumericTimestamp(t *testing.T) {
	cases := []struct {
		in   any
		want int64
		ok   bool
	}{
		{float64(1000), 1000, true},
		{int64(1000), 1000, true},
		{int(7), 7, true},
		{"1000", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tc := range cases {
		got, ok := NumericTimestamp(tc.in)
		assert.Equal(t, tc.ok, ok, "input %v", tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got)
		}
	}
}

package inject

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360/pipekit/record"
)

func rec(data map[string]any) record.Record {
	return record.Normalize(map[string]any{"data": data})
}

func TestInjectAbsentFields(t *testing.T) {
	in := New(Config{Fields: map[string]any{"unit": "celsius", "site": "lab"}})
	out := in.Process(rec(map[string]any{"temp": 21.5}))

	assert.Equal(t, "celsius", out.Data["unit"])
	assert.Equal(t, "lab", out.Data["site"])
	assert.Equal(t, 21.5, out.Data["temp"])
}

func TestPresentKeysWinWithoutOverride(t *testing.T) {
	in := New(Config{Fields: map[string]any{"unit": "celsius"}})
	out := in.Process(rec(map[string]any{"unit": "kelvin"}))
	assert.Equal(t, "kelvin", out.Data["unit"])
}

func TestOverrideReplaces(t *testing.T) {
	in := New(Config{Fields: map[string]any{"unit": "celsius"}, Override: true})
	out := in.Process(rec(map[string]any{"unit": "kelvin"}))
	assert.Equal(t, "celsius", out.Data["unit"])
}

func TestInjectedValueIsACopy(t *testing.T) {
	nested := map[string]any{"x": 1.0}
	in := New(Config{Fields: map[string]any{"cal": nested}})

	out := in.Process(rec(map[string]any{}))
	out.Data["cal"].(map[string]any)["x"] = 99.0

	assert.Equal(t, 1.0, nested["x"], "records must not alias the config")
}

func TestValidate(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
	assert.NoError(t, (&Config{Fields: map[string]any{"a": 1.0}}).Validate())
}

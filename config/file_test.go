package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/pipekit/errors"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileDefaultScope(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	path := writeConfigFile(t, `{
		"gate": {"must_have": ["ready"], "bool_equal": {"ready": true}},
		"dedup": {"ignore_fields": ["t"]}
	}`)

	fc, err := LoadFile(nil, path, "gate")
	require.NoError(t, err)

	v, ok := fc.Get("must_have")
	require.True(t, ok)
	assert.Equal(t, []any{"ready"}, v)

	_, ok = fc.Get("ignore_fields")
	assert.False(t, ok, "other scopes are invisible")
}

func TestLoadFileConfigTagScope(t *testing.T) {
	registerTestParams(t)

	path := writeConfigFile(t, `{
		"lab": {"gate": {"timeout_ms": 5}},
		"prod": {"gate": {"timeout_ms": 50}}
	}`)

	cli, err := parse([]string{"--needed", "x", "--config-tag", "prod"}, noEnv)
	require.NoError(t, err)

	fc, err := LoadFile(cli, path, "lab")
	require.NoError(t, err)

	v, ok := fc.Get("gate.timeout_ms")
	require.True(t, ok)
	assert.Equal(t, float64(50), v)
}

func TestLoadFileUnknownConfigTag(t *testing.T) {
	registerTestParams(t)

	path := writeConfigFile(t, `{"lab": {}}`)
	cli, err := parse([]string{"--needed", "x", "--config-tag", "absent"}, noEnv)
	require.NoError(t, err)

	_, err = LoadFile(cli, path, "")
	require.Error(t, err)
}

func TestLoadFileCaseInsensitive(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	path := writeConfigFile(t, `{"Gate": {"Blocks": [{"TimeoutMs": 7}]}}`)
	fc, err := LoadFile(nil, path, "gate")
	require.NoError(t, err)

	_, ok := fc.Get("blocks")
	assert.True(t, ok)
}

func TestLoadFileEnvIndirection(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)
	t.Setenv("PIPETEST_SECRET", "hunter2")

	path := writeConfigFile(t, `{"auth": {"token": {"$env": "PIPETEST_SECRET"}}}`)
	fc, err := LoadFile(nil, path, "")
	require.NoError(t, err)

	v, ok := fc.Get("auth.token")
	require.True(t, ok)
	assert.Equal(t, "hunter2", v)
}

func TestLoadFileDefaultsAndRequired(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)
	RegisterConfigField(FieldSpec{Path: "merge.match_tolerance_ms", Default: 100.0})
	RegisterConfigField(FieldSpec{Path: "merge.postfix", Required: true})

	path := writeConfigFile(t, `{"merge": {"postfix": ["_a"]}}`)
	fc, err := LoadFile(nil, path, "")
	require.NoError(t, err)

	v, ok := fc.Get("merge.match_tolerance_ms")
	require.True(t, ok)
	assert.Equal(t, 100.0, v)
}

func TestLoadFileMissingRequiredField(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)
	RegisterConfigField(FieldSpec{Path: "merge.postfix", Required: true})

	path := writeConfigFile(t, `{"merge": {}}`)
	_, err := LoadFile(nil, path, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingRequired))
}

func TestLoadFileMalformed(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	path := writeConfigFile(t, `{"broken": `)
	_, err := LoadFile(nil, path, "")
	require.Error(t, err)
}

func TestFileOverrides(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)
	RegisterConfigField(FieldSpec{Path: "gate.locked", Immutable: true})

	path := writeConfigFile(t, `{"gate": {"locked": 1, "open": 2}}`)
	fc, err := LoadFile(nil, path, "")
	require.NoError(t, err)

	require.NoError(t, fc.Override("gate.open", 9.0))
	v, _ := fc.Get("gate.open")
	assert.Equal(t, 9.0, v)

	orig, _ := fc.GetOriginal("gate.open")
	assert.Equal(t, float64(2), orig)

	fc.ClearOverride("gate.open")
	v, _ = fc.Get("gate.open")
	assert.Equal(t, float64(2), v)

	err = fc.Override("gate.locked", 5.0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrImmutableField))
}

func TestDecodeTypedConfig(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	type blockCfg struct {
		MustHave  []string           `json:"must_have"`
		MinValues map[string]float64 `json:"min_values"`
	}

	path := writeConfigFile(t, `{
		"gate": {"MUST_HAVE": ["ready"], "min_values": {"level": 3}}
	}`)
	fc, err := LoadFile(nil, path, "gate")
	require.NoError(t, err)

	var cfg blockCfg
	require.NoError(t, fc.Decode("", &cfg))
	assert.Equal(t, []string{"ready"}, cfg.MustHave)
	assert.Equal(t, 3.0, cfg.MinValues["level"])
}

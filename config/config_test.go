package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/delaneyj/observatory/observation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "batched", cfg.Flush.Default)
	assert.False(t, cfg.Binding.Strict)
	assert.False(t, cfg.DirtyCheck.Disabled)
	assert.False(t, cfg.DirtyCheck.Throw)
	assert.Equal(t, 120*time.Millisecond, cfg.DirtyCheck.Interval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "observatory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
flush:
  default: sync
binding:
  strict: true
dirty_check:
  throw: true
  interval: 1s
log:
  level: debug
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sync", cfg.Flush.Default)
	assert.True(t, cfg.Binding.Strict)
	assert.True(t, cfg.DirtyCheck.Throw)
	assert.Equal(t, time.Second, cfg.DirtyCheck.Interval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "observatory.yaml")
	require.NoError(t, os.WriteFile(path, []byte("flush:\n  default: sync\n"), 0o644))
	t.Setenv("OBSERVATORY_FLUSH_DEFAULT", "batched")
	t.Setenv("OBSERVATORY_DIRTY_CHECK_DISABLED", "true")
	t.Setenv("OBSERVATORY_DIRTY_CHECK_INTERVAL", "250ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "batched", cfg.Flush.Default)
	assert.True(t, cfg.DirtyCheck.Disabled)
	assert.Equal(t, 250*time.Millisecond, cfg.DirtyCheck.Interval)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		path string
	}{
		{name: "missing file", path: filepath.Join(t.TempDir(), "nope.yaml")},
		{name: "bad flush mode", env: map[string]string{"OBSERVATORY_FLUSH_DEFAULT": "eventually"}},
		{name: "bad log level", env: map[string]string{"OBSERVATORY_LOG_LEVEL": "loud"}},
		{name: "bad log format", env: map[string]string{"OBSERVATORY_LOG_FORMAT": "xml"}},
		{name: "negative interval", env: map[string]string{"OBSERVATORY_DIRTY_CHECK_INTERVAL": "-1s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.path)
			assert.Error(t, err)
		})
	}
}

func TestOptions(t *testing.T) {
	cfg := &Config{
		Flush:      FlushConfig{Default: "sync"},
		Binding:    BindingConfig{Strict: true},
		DirtyCheck: DirtyCheckConfig{Throw: true, Interval: time.Second},
		Log:        LogConfig{Level: "warn", Format: "json"},
	}
	require.NoError(t, cfg.Validate())

	var buf bytes.Buffer
	sys := observation.NewSystem(cfg.Options(cfg.Logger(&buf))...)
	assert.True(t, sys.StrictBinding())
	assert.Equal(t, observation.DirtyCheckSettings{Throw: true, Interval: time.Second}, sys.DirtyCheckSettings())

	o := observation.NewObject("x", 0)
	obs, err := sys.Locator().Observer(o, "x")
	require.NoError(t, err)
	var got []any
	obs.Subscribe(&changes{values: &got})
	require.NoError(t, o.Set("x", 1))
	assert.Equal(t, []any{1}, got, "sync default notifies without a flush")

	sys.Logger().Info("dropped")
	sys.Logger().Warn("kept", "n", 1)
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"msg":"kept"`)
}

type changes struct {
	values *[]any
}

func (c *changes) HandleChange(newValue, _ any) error {
	*c.values = append(*c.values, newValue)
	return nil
}

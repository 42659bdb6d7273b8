package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "fs", cfg.Store.Backend)
	assert.Equal(t, ".frexp", cfg.Store.Root)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 5*time.Minute, cfg.Trial.Timeout)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Store, cfg.Store)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: sqlite
  root: /tmp/artifacts.db
workers: 8
trial:
  timeout: 30s
  stddev_window: 0.05
  max_repeats: 10
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "/tmp/artifacts.db", cfg.Store.Root)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.Trial.Timeout)
	assert.Equal(t, 0.05, cfg.Trial.StddevWindow)
}

func TestLoad_RejectsBadBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: redis\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsRepeatInversion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trial:\n  min_repeats: 5\n  max_repeats: 2\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("store backend and root", func(t *testing.T) {
		t.Setenv("FREXP_STORE_BACKEND", "sqlite")
		t.Setenv("FREXP_STORE_ROOT", "/data/frexp.db")

		cfg := DefaultConfig()
		cfg.applyEnv()

		assert.Equal(t, "sqlite", cfg.Store.Backend)
		assert.Equal(t, "/data/frexp.db", cfg.Store.Root)
	})

	t.Run("workers and timeout", func(t *testing.T) {
		t.Setenv("FREXP_WORKERS", "12")
		t.Setenv("FREXP_TRIAL_TIMEOUT", "90s")

		cfg := DefaultConfig()
		cfg.applyEnv()

		assert.Equal(t, 12, cfg.Workers)
		assert.Equal(t, 90*time.Second, cfg.Trial.Timeout)
	})

	t.Run("malformed values are ignored", func(t *testing.T) {
		t.Setenv("FREXP_WORKERS", "many")

		cfg := DefaultConfig()
		cfg.applyEnv()

		assert.Equal(t, 4, cfg.Workers)
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	orig := DefaultConfig()
	orig.Workers = 2
	orig.Store.Backend = "sqlite"
	require.NoError(t, orig.Save(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, orig.Workers, cfg.Workers)
	assert.Equal(t, orig.Store, cfg.Store)
}

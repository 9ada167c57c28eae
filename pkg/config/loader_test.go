package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskqueue/pkg/config"
)

type pollerConfig struct {
	Interval time.Duration `env:"CFGTEST_POLL_INTERVAL" envDefault:"1s"`
	Tries    int           `env:"CFGTEST_MAX_TRIES" envDefault:"3"`
	Verbose  bool          `env:"CFGTEST_VERBOSE" envDefault:"false"`
}

type requiredConfig struct {
	URL string `env:"CFGTEST_REQUIRED_URL,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var cfg pollerConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, time.Second, cfg.Interval)
		assert.Equal(t, 3, cfg.Tries)
		assert.False(t, cfg.Verbose)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("CFGTEST_POLL_INTERVAL", "250ms")
		t.Setenv("CFGTEST_MAX_TRIES", "7")
		t.Setenv("CFGTEST_VERBOSE", "true")

		var cfg pollerConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, 250*time.Millisecond, cfg.Interval)
		assert.Equal(t, 7, cfg.Tries)
		assert.True(t, cfg.Verbose)
	})

	t.Run("prefix", func(t *testing.T) {
		t.Setenv("CFGTEST_MAX_TRIES", "7")
		t.Setenv("WORKER_CFGTEST_MAX_TRIES", "9")

		var cfg pollerConfig
		require.NoError(t, config.Load(&cfg, config.WithPrefix("WORKER_")))
		assert.Equal(t, 9, cfg.Tries)
	})

	t.Run("invalid value", func(t *testing.T) {
		t.Setenv("CFGTEST_MAX_TRIES", "many")

		var cfg pollerConfig
		assert.ErrorIs(t, config.Load(&cfg), config.ErrParsingConfig)
	})

	t.Run("required variable missing", func(t *testing.T) {
		var cfg requiredConfig
		assert.ErrorIs(t, config.Load(&cfg), config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		assert.ErrorIs(t, config.Load[pollerConfig](nil), config.ErrNilPointer)
	})
}

func TestLoad_EnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.env")
	require.NoError(t, os.WriteFile(path, []byte("CFGTEST_REQUIRED_URL=redis://localhost:6379/1\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CFGTEST_REQUIRED_URL") })

	var cfg requiredConfig
	require.NoError(t, config.Load(&cfg, config.WithEnvFiles(path)))
	assert.Equal(t, "redis://localhost:6379/1", cfg.URL)

	err := config.Load(&cfg, config.WithEnvFiles(filepath.Join(dir, "missing.env")))
	assert.ErrorIs(t, err, config.ErrEnvFile)
}

func TestMustLoad(t *testing.T) {
	var cfg requiredConfig
	assert.Panics(t, func() { config.MustLoad(&cfg) })

	t.Setenv("CFGTEST_REQUIRED_URL", "x")
	assert.NotPanics(t, func() { config.MustLoad(&cfg) })
	assert.Equal(t, "x", cfg.URL)
}

package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Niklasbrock/leoshare-notify/pkg/config"
)

type testConfig struct {
	Dir         string        `env:"LOADER_TEST_DIR" envDefault:"./data"`
	Limit       int           `env:"LOADER_TEST_LIMIT" envDefault:"3"`
	SendTimeout time.Duration `env:"LOADER_TEST_TIMEOUT" envDefault:"60s"`
	Required    string        `env:"LOADER_TEST_REQUIRED,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults apply when env is unset", func(t *testing.T) {
		t.Setenv("LOADER_TEST_REQUIRED", "yes")

		var cfg testConfig
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, "./data", cfg.Dir)
		assert.Equal(t, 3, cfg.Limit)
		assert.Equal(t, 60*time.Second, cfg.SendTimeout)
		assert.Equal(t, "yes", cfg.Required)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv("LOADER_TEST_REQUIRED", "yes")
		t.Setenv("LOADER_TEST_DIR", "/var/queue")
		t.Setenv("LOADER_TEST_LIMIT", "10")
		t.Setenv("LOADER_TEST_TIMEOUT", "5s")

		var cfg testConfig
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, "/var/queue", cfg.Dir)
		assert.Equal(t, 10, cfg.Limit)
		assert.Equal(t, 5*time.Second, cfg.SendTimeout)
	})

	t.Run("missing required variable fails", func(t *testing.T) {
		var cfg testConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("unparsable value fails", func(t *testing.T) {
		t.Setenv("LOADER_TEST_REQUIRED", "yes")
		t.Setenv("LOADER_TEST_LIMIT", "not-a-number")

		var cfg testConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer fails", func(t *testing.T) {
		var cfg *testConfig
		err := config.Load(cfg)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})
}

func TestMustLoad(t *testing.T) {
	t.Run("panics on failure", func(t *testing.T) {
		assert.Panics(t, func() {
			var cfg testConfig
			config.MustLoad(&cfg)
		})
	})

	t.Run("returns loaded config", func(t *testing.T) {
		t.Setenv("LOADER_TEST_REQUIRED", "yes")

		var cfg testConfig
		assert.NotPanics(t, func() { config.MustLoad(&cfg) })
		assert.Equal(t, "yes", cfg.Required)
	})
}

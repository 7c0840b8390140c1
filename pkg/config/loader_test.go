package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/signin/pkg/config"
)

type listenerConfig struct {
	Addr    string `env:"LOADER_TEST_ADDR" envDefault:"localhost:8080"`
	Retries int    `env:"LOADER_TEST_RETRIES" envDefault:"3"`
}

type cachedConfig struct {
	Value string `env:"LOADER_TEST_CACHED" envDefault:"default"`
}

type prefixedConfig struct {
	ClientID string `env:"CLIENT_ID"`
}

type requiredConfig struct {
	Required string `env:"LOADER_TEST_REQUIRED,required"`
}

func TestLoad(t *testing.T) {
	t.Setenv("LOADER_TEST_ADDR", "127.0.0.1:9000")

	var cfg listenerConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, 3, cfg.Retries)
}

func TestLoad_Cached(t *testing.T) {
	t.Setenv("LOADER_TEST_CACHED", "first")

	var first cachedConfig
	require.NoError(t, config.Load(&first))

	t.Setenv("LOADER_TEST_CACHED", "second")
	var second cachedConfig
	require.NoError(t, config.Load(&second))

	assert.Equal(t, "first", second.Value)
}

func TestLoadPrefixed(t *testing.T) {
	t.Setenv("ONE_CLIENT_ID", "one")
	t.Setenv("TWO_CLIENT_ID", "two")

	var one, two prefixedConfig
	require.NoError(t, config.LoadPrefixed("ONE_", &one))
	require.NoError(t, config.LoadPrefixed("TWO_", &two))

	assert.Equal(t, "one", one.ClientID)
	assert.Equal(t, "two", two.ClientID)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("nil pointer", func(t *testing.T) {
		assert.ErrorIs(t, config.Load[listenerConfig](nil), config.ErrNilPointer)
	})

	t.Run("missing required value", func(t *testing.T) {
		os.Unsetenv("LOADER_TEST_REQUIRED")
		var cfg requiredConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})
}

func TestParse(t *testing.T) {
	t.Setenv("FRESH_CLIENT_ID", "a")
	cfg, err := config.Parse[prefixedConfig]("FRESH_")
	require.NoError(t, err)
	assert.Equal(t, "a", cfg.ClientID)

	t.Setenv("FRESH_CLIENT_ID", "b")
	cfg, err = config.Parse[prefixedConfig]("FRESH_")
	require.NoError(t, err)
	assert.Equal(t, "b", cfg.ClientID)
}

package auth_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/signin/pkg/auth"
)

func TestRegistry_Initialize(t *testing.T) {
	t.Parallel()

	t.Run("merges fields for the same provider id", func(t *testing.T) {
		t.Parallel()
		reg := auth.NewRegistry()
		require.NoError(t, reg.Initialize(auth.Config{ProviderID: "default", WebClientID: "A"}))
		require.NoError(t, reg.Initialize(auth.Config{ProviderID: "default", ClientSecret: "B"}))

		cfg, ok := reg.Lookup("default")
		require.True(t, ok)
		assert.Equal(t, "A", cfg.WebClientID)
		assert.Equal(t, "B", cfg.ClientSecret)
	})

	t.Run("empty provider id maps to default", func(t *testing.T) {
		t.Parallel()
		reg := auth.NewRegistry()
		require.NoError(t, reg.Initialize(auth.Config{WebClientID: "A"}))

		cfg, ok := reg.Lookup("")
		require.True(t, ok)
		assert.Equal(t, auth.DefaultProviderID, cfg.ProviderID)
	})

	t.Run("keeps providers apart", func(t *testing.T) {
		t.Parallel()
		reg := auth.NewRegistry()
		require.NoError(t, reg.Initialize(auth.Config{ProviderID: "default", WebClientID: "google"}))
		require.NoError(t, reg.Initialize(auth.Config{ProviderID: "apple", WebClientID: "apple"}))

		assert.Equal(t, []string{"apple", "default"}, reg.IDs())
		cfg, _ := reg.Lookup("apple")
		assert.Equal(t, "apple", cfg.WebClientID)
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		t.Parallel()
		reg := auth.NewRegistry()
		err := reg.Initialize(auth.Config{SupabaseURL: "https://xyz.supabase.co"})
		assert.ErrorIs(t, err, auth.ErrConfiguration)
		_, ok := reg.Lookup(auth.DefaultProviderID)
		assert.False(t, ok)
	})

	t.Run("require reports missing providers", func(t *testing.T) {
		t.Parallel()
		reg := auth.NewRegistry()
		_, err := reg.Require("apple")
		assert.ErrorIs(t, err, auth.ErrConfiguration)
		assert.Panics(t, func() { reg.MustLookup("apple") })
	})

	t.Run("concurrent initialize and lookup", func(t *testing.T) {
		t.Parallel()
		reg := auth.NewRegistry()

		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(2)
			go func(n int) {
				defer wg.Done()
				_ = reg.Initialize(auth.Config{DeepLinkHost: fmt.Sprintf("host-%d", n)})
			}(i)
			go func() {
				defer wg.Done()
				_, _ = reg.Lookup(auth.DefaultProviderID)
			}()
		}
		wg.Wait()

		cfg, ok := reg.Lookup(auth.DefaultProviderID)
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(cfg.DeepLinkHost, "host-"))
	})

	t.Run("reset clears entries", func(t *testing.T) {
		t.Parallel()
		reg := auth.NewRegistry()
		require.NoError(t, reg.Initialize(auth.Config{WebClientID: "A"}))
		reg.Reset()
		assert.Empty(t, reg.IDs())
	})
}

func TestRegistry_InitializeFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	doc := `providers:
  - provider_id: default
    web_client_id: web-id
    client_secret: web-secret
  - provider_id: supabase
    supabase_url: https://xyz.supabase.co
    supabase_key: anon
    flow_type: pkce
    auto_refresh_token: false
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	reg := auth.NewRegistry()
	require.NoError(t, reg.InitializeFromFile(path))

	google, ok := reg.Lookup("default")
	require.True(t, ok)
	assert.Equal(t, "web-id", google.WebClientID)
	assert.Equal(t, "web-secret", google.ClientSecret)

	sb, ok := reg.Lookup("supabase")
	require.True(t, ok)
	assert.Equal(t, auth.FlowPKCE, sb.Flow())
	assert.False(t, sb.ShouldAutoRefresh())
	assert.True(t, sb.ShouldAutoLoad())

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		err := auth.NewRegistry().InitializeFromFile(filepath.Join(dir, "missing.yaml"))
		assert.ErrorIs(t, err, auth.ErrConfiguration)
	})

	t.Run("invalid entry", func(t *testing.T) {
		t.Parallel()
		configs, err := auth.LoadConfigs(strings.NewReader("providers:\n  - supabase_key: anon\n"))
		require.NoError(t, err)
		require.Len(t, configs, 1)
		assert.ErrorIs(t, auth.NewRegistry().Initialize(configs[0]), auth.ErrConfiguration)
	})
}

func TestRegistry_InitializeFromEnv(t *testing.T) {
	t.Setenv("REGTEST_PROVIDER_ID", "supabase")
	t.Setenv("REGTEST_SUPABASE_URL", "https://xyz.supabase.co")
	t.Setenv("REGTEST_SUPABASE_KEY", "anon")
	t.Setenv("REGTEST_AUTO_LOAD_FROM_STORAGE", "false")

	reg := auth.NewRegistry()
	require.NoError(t, reg.InitializeFromEnv("REGTEST_"))

	cfg, ok := reg.Lookup("supabase")
	require.True(t, ok)
	assert.Equal(t, "anon", cfg.SupabaseKey)
	assert.False(t, cfg.ShouldAutoLoad())
	assert.True(t, cfg.ShouldAutoRefresh())
}

func TestRegistry_InitializeFromEnvKeepsFileToggles(t *testing.T) {
	t.Setenv("MERGETEST_PROVIDER_ID", "supabase")
	t.Setenv("MERGETEST_SUPABASE_URL", "https://xyz.supabase.co")
	t.Setenv("MERGETEST_SUPABASE_KEY", "rotated")

	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`providers:
  - provider_id: supabase
    supabase_url: https://xyz.supabase.co
    supabase_key: anon
    auto_refresh_token: false
`), 0o600))

	reg := auth.NewRegistry()
	require.NoError(t, reg.InitializeFromFile(path))
	require.NoError(t, reg.InitializeFromEnv("MERGETEST_"))

	cfg, ok := reg.Lookup("supabase")
	require.True(t, ok)
	assert.Equal(t, "rotated", cfg.SupabaseKey)
	assert.False(t, cfg.ShouldAutoRefresh(), "an unset env toggle leaves the file value")
	assert.True(t, cfg.ShouldAutoLoad())
	assert.Nil(t, cfg.AutoLoadFromStorage)
}

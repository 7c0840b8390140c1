package signin_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/signin"
	"github.com/dmitrymomot/signin/pkg/apple"
	"github.com/dmitrymomot/signin/pkg/auth"
	"github.com/dmitrymomot/signin/pkg/credstore"
	"github.com/dmitrymomot/signin/pkg/google"
	"github.com/dmitrymomot/signin/pkg/supabase"
)

// The tests share the process-wide registry and must not run in parallel.

func reset(t *testing.T) {
	t.Helper()
	signin.Reset()
	t.Cleanup(signin.Reset)
}

func TestInitialize_Merges(t *testing.T) {
	reset(t)

	require.NoError(t, signin.Initialize(auth.Config{ProviderID: auth.DefaultProviderID, WebClientID: "A"}))
	require.NoError(t, signin.Initialize(auth.Config{ProviderID: auth.DefaultProviderID, ClientSecret: "B"}))

	cfg, ok := signin.Lookup(auth.DefaultProviderID)
	require.True(t, ok)
	assert.Equal(t, "A", cfg.WebClientID)
	assert.Equal(t, "B", cfg.ClientSecret)

	cfg, ok = signin.Lookup("")
	require.True(t, ok)
	assert.Equal(t, "A", cfg.WebClientID)
	assert.Same(t, signin.Registry(), signin.Registry())
}

func TestInitialize_Invalid(t *testing.T) {
	reset(t)

	err := signin.Initialize(auth.Config{ProviderID: auth.SupabaseProviderID, SupabaseURL: "https://x.supabase.co"})
	assert.ErrorIs(t, err, auth.ErrConfiguration)

	_, ok := signin.Lookup(auth.SupabaseProviderID)
	assert.False(t, ok)
}

func TestInitializeFromFile(t *testing.T) {
	reset(t)

	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`providers:
  - provider_id: default
    web_client_id: web-client
    client_secret: shh
  - provider_id: supabase
    supabase_url: https://project.supabase.co
    supabase_key: anon
`), 0o600))
	require.NoError(t, signin.InitializeFromFile(path))

	cfg, ok := signin.Lookup(auth.SupabaseProviderID)
	require.True(t, ok)
	assert.Equal(t, "anon", cfg.SupabaseKey)
	assert.Equal(t, []string{"default", "supabase"}, signin.Registry().IDs())
}

func TestGoogleHelpers(t *testing.T) {
	reset(t)

	_, err := signin.GoogleDesktop()
	assert.ErrorIs(t, err, auth.ErrConfiguration)

	require.NoError(t, signin.Initialize(auth.Config{
		WebClientID:  "web-client",
		ClientSecret: "shh",
		Context:      auth.NewPlatformContext("activity"),
	}))

	d, err := signin.GoogleDesktop(google.WithStore(credstore.NewMemory(0)))
	require.NoError(t, err)
	assert.Equal(t, auth.DefaultProviderID, d.ProviderID())

	_, err = signin.GoogleAndroid(nil)
	assert.ErrorIs(t, err, auth.ErrConfiguration)

	_, err = signin.GoogleIOS(nil, nil)
	assert.ErrorIs(t, err, auth.ErrConfiguration)
}

type nopController struct{}

func (nopController) PerformRequests(apple.AppleIDRequest, apple.AuthorizationDelegate) error { return nil }

func TestAppleIOS(t *testing.T) {
	reset(t)

	anchor := apple.AnchorFunc(func() (any, error) { return "window", nil })
	i, err := signin.AppleIOS(nopController{}, anchor)
	require.NoError(t, err)
	assert.Equal(t, auth.AppleProviderID, i.ProviderID())

	_, err = signin.AppleIOS(nil, anchor)
	assert.ErrorIs(t, err, auth.ErrConfiguration)
}

func TestSupabase(t *testing.T) {
	reset(t)

	_, err := signin.Supabase()
	assert.ErrorIs(t, err, auth.ErrConfiguration)

	cfg, err := auth.NewSupabaseConfig("https://project.supabase.co", "anon")
	require.NoError(t, err)
	require.NoError(t, signin.Initialize(cfg))

	m, err := signin.Supabase(supabase.WithStore(credstore.NewMemory(0)))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.Close()
		_ = m.Client().Close()
	})
	assert.Equal(t, "https://project.supabase.co", m.Client().Config().SupabaseURL)

	a, err := signin.AppleSupabase(m)
	require.NoError(t, err)
	assert.Equal(t, auth.AppleProviderID, a.ProviderID())

	_, err = signin.AppleSupabase(nil)
	assert.ErrorIs(t, err, auth.ErrConfiguration)
}

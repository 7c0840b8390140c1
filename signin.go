package signin

import (
	"github.com/dmitrymomot/signin/pkg/apple"
	"github.com/dmitrymomot/signin/pkg/auth"
	"github.com/dmitrymomot/signin/pkg/google"
	"github.com/dmitrymomot/signin/pkg/supabase"
)

var registry = auth.NewRegistry()

// Registry returns the process-wide registry used by the constructor helpers.
func Registry() *auth.Registry {
	return registry
}

// Initialize merges cfg into the default registry. Calling it again for the same
// provider id keeps the values set earlier unless cfg overrides them.
func Initialize(cfg auth.Config) error {
	return registry.Initialize(cfg)
}

// InitializeFromFile loads every provider config of a YAML file into the default registry.
func InitializeFromFile(path string) error {
	return registry.InitializeFromFile(path)
}

// InitializeFromEnv loads one provider config from prefixed environment variables.
func InitializeFromEnv(prefix string) error {
	return registry.InitializeFromEnv(prefix)
}

// Lookup returns the config stored for id. An empty id means auth.DefaultProviderID.
func Lookup(id string) (auth.Config, bool) {
	return registry.Lookup(id)
}

// Reset drops every config of the default registry.
func Reset() {
	registry.Reset()
}

// GoogleDesktop builds the loopback OAuth adapter from the "default" config.
func GoogleDesktop(opts ...google.Option) (*google.Desktop, error) {
	cfg, err := registry.Require(auth.DefaultProviderID)
	if err != nil {
		return nil, err
	}
	return google.NewDesktop(cfg, opts...)
}

// GoogleAndroid builds the Credential Manager adapter from the "default" config.
func GoogleAndroid(cm google.CredentialManager, opts ...google.Option) (*google.Android, error) {
	cfg, err := registry.Require(auth.DefaultProviderID)
	if err != nil {
		return nil, err
	}
	return google.NewAndroid(cfg, cm, opts...)
}

// GoogleIOS builds the GIDSignIn adapter from the "default" config.
func GoogleIOS(sdk google.GIDSignIn, presenter google.PresenterResolver, opts ...google.Option) (*google.IOS, error) {
	cfg, err := registry.Require(auth.DefaultProviderID)
	if err != nil {
		return nil, err
	}
	return google.NewIOS(cfg, sdk, presenter, opts...)
}

// GoogleWeb builds the Identity Services adapter from the "default" config.
func GoogleWeb(ids google.IdentityServices, doc google.Document, opts ...google.Option) (*google.Web, error) {
	cfg, err := registry.Require(auth.DefaultProviderID)
	if err != nil {
		return nil, err
	}
	return google.NewWeb(cfg, ids, doc, opts...)
}

// AppleIOS builds the AuthenticationServices adapter. Apple needs no client
// configuration, so a missing "apple" entry is not an error.
func AppleIOS(ctrl apple.AuthorizationController, anchor apple.AnchorResolver, opts ...apple.Option) (*apple.IOS, error) {
	cfg, ok := registry.Lookup(auth.AppleProviderID)
	if !ok {
		cfg = auth.Config{ProviderID: auth.AppleProviderID}
	}
	return apple.NewIOS(cfg, ctrl, anchor, opts...)
}

// Supabase builds a session client and its manager from the "supabase" config.
// Call Start on m.Client() to restore the persisted session.
func Supabase(opts ...supabase.Option) (*supabase.Manager, error) {
	cfg, err := registry.Require(auth.SupabaseProviderID)
	if err != nil {
		return nil, err
	}
	client, err := supabase.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	m, err := supabase.NewManager(client, opts...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return m, nil
}

// AppleSupabase signs in with Apple through m using the default auth config.
func AppleSupabase(m *supabase.Manager, opts ...apple.Option) (*apple.Supabase, error) {
	if m == nil {
		// keep a nil *Manager from becoming a non-nil SessionManager
		return apple.NewSupabase(nil, supabase.DefaultAuthConfig(), opts...)
	}
	return apple.NewSupabase(m, supabase.DefaultAuthConfig(), opts...)
}

package auth

import (
	"fmt"
	"strings"
)

// Well-known provider ids.
const (
	DefaultProviderID  = "default"
	AppleProviderID    = "apple"
	SupabaseProviderID = "supabase"
)

// FlowType selects how Supabase returns a session after an OAuth redirect.
type FlowType string

const (
	FlowImplicit FlowType = "implicit"
	FlowPKCE     FlowType = "pkce"
)

// Config holds the settings of a single provider.
// Empty strings and nil pointers mean "not set" and are skipped by Merge.
type Config struct {
	ProviderID          string          `yaml:"provider_id"`
	Context             PlatformContext `yaml:"-"`
	WebClientID         string          `yaml:"web_client_id"`
	ClientSecret        string          `yaml:"client_secret"`
	SupabaseURL         string          `yaml:"supabase_url"`
	SupabaseKey         string          `yaml:"supabase_key"`
	AutoLoadFromStorage *bool           `yaml:"auto_load_from_storage"`
	AutoRefreshToken    *bool           `yaml:"auto_refresh_token"`
	DeepLinkHost        string          `yaml:"deep_link_host"`
	DeepLinkScheme      string          `yaml:"deep_link_scheme"`
	FlowType            FlowType        `yaml:"flow_type"`
}

// ConfigOption customizes a Config built by one of the constructors.
type ConfigOption func(*Config)

// WithProviderID sets the registry key of the config.
func WithProviderID(id string) ConfigOption {
	return func(c *Config) { c.ProviderID = id }
}

// WithPlatformContext injects the host UI handle.
func WithPlatformContext(pc PlatformContext) ConfigOption {
	return func(c *Config) { c.Context = pc }
}

// WithClientSecret sets the OAuth client secret used by the desktop flow.
func WithClientSecret(secret string) ConfigOption {
	return func(c *Config) { c.ClientSecret = secret }
}

// WithWebClientID sets the OAuth web client id.
func WithWebClientID(id string) ConfigOption {
	return func(c *Config) { c.WebClientID = id }
}

// WithDeepLink sets the scheme and host the app receives auth redirects on.
func WithDeepLink(scheme, host string) ConfigOption {
	return func(c *Config) {
		c.DeepLinkScheme = scheme
		c.DeepLinkHost = host
	}
}

// WithAutoLoadFromStorage toggles restoring a persisted session on start.
func WithAutoLoadFromStorage(v bool) ConfigOption {
	return func(c *Config) { c.AutoLoadFromStorage = &v }
}

// WithAutoRefreshToken toggles background session refresh.
func WithAutoRefreshToken(v bool) ConfigOption {
	return func(c *Config) { c.AutoRefreshToken = &v }
}

// WithFlowType selects the Supabase OAuth flow.
func WithFlowType(ft FlowType) ConfigOption {
	return func(c *Config) { c.FlowType = ft }
}

// NewSupabaseConfig builds a Supabase config. Both url and key are required.
func NewSupabaseConfig(url, key string, opts ...ConfigOption) (Config, error) {
	cfg := Config{ProviderID: SupabaseProviderID, SupabaseURL: url, SupabaseKey: key}
	for _, opt := range opts {
		opt(&cfg)
	}
	if strings.TrimSpace(url) == "" {
		return Config{}, fmt.Errorf("%w: supabase url is required", ErrConfiguration)
	}
	if strings.TrimSpace(key) == "" {
		return Config{}, fmt.Errorf("%w: supabase key is required", ErrConfiguration)
	}
	return cfg, nil
}

// NewGoogleConfig builds a Google config for the default provider id.
func NewGoogleConfig(webClientID string, opts ...ConfigOption) (Config, error) {
	cfg := Config{ProviderID: DefaultProviderID, WebClientID: webClientID}
	for _, opt := range opts {
		opt(&cfg)
	}
	if strings.TrimSpace(webClientID) == "" {
		return Config{}, fmt.Errorf("%w: web client id is required", ErrConfiguration)
	}
	return cfg, nil
}

// Validate checks the cross-field invariants of the config.
// Supabase settings are all-or-nothing.
func (c Config) Validate() error {
	hasURL := strings.TrimSpace(c.SupabaseURL) != ""
	hasKey := strings.TrimSpace(c.SupabaseKey) != ""
	switch {
	case hasURL && !hasKey:
		return fmt.Errorf("%w: supabase key is required when supabase url is set", ErrConfiguration)
	case hasKey && !hasURL:
		return fmt.Errorf("%w: supabase url is required when supabase key is set", ErrConfiguration)
	}
	switch c.FlowType {
	case "", FlowImplicit, FlowPKCE:
	default:
		return fmt.Errorf("%w: unknown flow type %q", ErrConfiguration, c.FlowType)
	}
	return nil
}

// Merge returns c overlaid with every field set in other.
func (c Config) Merge(other Config) Config {
	mergeString(&c.ProviderID, other.ProviderID)
	mergeString(&c.WebClientID, other.WebClientID)
	mergeString(&c.ClientSecret, other.ClientSecret)
	mergeString(&c.SupabaseURL, other.SupabaseURL)
	mergeString(&c.SupabaseKey, other.SupabaseKey)
	mergeString(&c.DeepLinkHost, other.DeepLinkHost)
	mergeString(&c.DeepLinkScheme, other.DeepLinkScheme)
	if other.FlowType != "" {
		c.FlowType = other.FlowType
	}
	if !other.Context.IsZero() {
		c.Context = other.Context
	}
	if other.AutoLoadFromStorage != nil {
		v := *other.AutoLoadFromStorage
		c.AutoLoadFromStorage = &v
	}
	if other.AutoRefreshToken != nil {
		v := *other.AutoRefreshToken
		c.AutoRefreshToken = &v
	}
	return c
}

// ShouldAutoLoad reports whether a persisted session is restored on start. Defaults to true.
func (c Config) ShouldAutoLoad() bool {
	return c.AutoLoadFromStorage == nil || *c.AutoLoadFromStorage
}

// ShouldAutoRefresh reports whether sessions are refreshed in the background. Defaults to true.
func (c Config) ShouldAutoRefresh() bool {
	return c.AutoRefreshToken == nil || *c.AutoRefreshToken
}

// Flow returns the configured flow type, implicit when unset.
func (c Config) Flow() FlowType {
	if c.FlowType == "" {
		return FlowImplicit
	}
	return c.FlowType
}

// HasSupabase reports whether Supabase credentials are present.
func (c Config) HasSupabase() bool {
	return c.SupabaseURL != "" && c.SupabaseKey != ""
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

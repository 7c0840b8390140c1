package auth

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/signin/pkg/config"
)

// Registry is a concurrency-safe store of provider configs keyed by provider id.
// Initializing an id that already exists merges the new values into the stored config.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]Config
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{configs: make(map[string]Config)}
}

// Initialize validates cfg and merges it into the entry for cfg.ProviderID.
// An empty provider id is stored under DefaultProviderID.
func (r *Registry) Initialize(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.ProviderID == "" {
		cfg.ProviderID = DefaultProviderID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	merged := cfg
	if existing, ok := r.configs[cfg.ProviderID]; ok {
		merged = existing.Merge(cfg)
	}
	if err := merged.Validate(); err != nil {
		return err
	}
	r.configs[cfg.ProviderID] = merged
	return nil
}

// Lookup returns the config stored for id.
func (r *Registry) Lookup(id string) (Config, bool) {
	if id == "" {
		id = DefaultProviderID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[id]
	return cfg, ok
}

// Require returns the config stored for id or an ErrConfiguration error.
func (r *Registry) Require(id string) (Config, error) {
	cfg, ok := r.Lookup(id)
	if !ok {
		return Config{}, fmt.Errorf("%w: provider %q is not initialized", ErrConfiguration, id)
	}
	return cfg, nil
}

// MustLookup is like Require but panics when id is not initialized.
func (r *Registry) MustLookup(id string) Config {
	cfg, err := r.Require(id)
	if err != nil {
		panic(err)
	}
	return cfg
}

// IDs returns the registered provider ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Reset drops every stored config.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.configs = make(map[string]Config)
	r.mu.Unlock()
}

// configFile is the YAML layout accepted by InitializeFromFile.
type configFile struct {
	Providers []Config `yaml:"providers"`
}

// LoadConfigs decodes a YAML provider list:
//
//	providers:
//	  - provider_id: default
//	    web_client_id: 123.apps.googleusercontent.com
//	  - provider_id: supabase
//	    supabase_url: https://xyz.supabase.co
//	    supabase_key: anon-key
//	    flow_type: pkce
func LoadConfigs(r io.Reader) ([]Config, error) {
	var f configFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: decode provider file: %w", ErrConfiguration, err)
	}
	return f.Providers, nil
}

// InitializeFromFile loads a YAML provider list from path and initializes every entry.
func (r *Registry) InitializeFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open provider file: %w", ErrConfiguration, err)
	}
	defer f.Close()

	configs, err := LoadConfigs(f)
	if err != nil {
		return err
	}
	for _, cfg := range configs {
		if err := r.Initialize(cfg); err != nil {
			return fmt.Errorf("provider %q: %w", cfg.ProviderID, err)
		}
	}
	return nil
}

// EnvConfig is the environment form of Config, read with a per-provider prefix.
// Unset toggles stay nil so they do not override an earlier merge.
type EnvConfig struct {
	ProviderID          string `env:"PROVIDER_ID"`
	WebClientID         string `env:"WEB_CLIENT_ID"`
	ClientSecret        string `env:"CLIENT_SECRET"`
	SupabaseURL         string `env:"SUPABASE_URL"`
	SupabaseKey         string `env:"SUPABASE_KEY"`
	AutoLoadFromStorage *bool  `env:"AUTO_LOAD_FROM_STORAGE"`
	AutoRefreshToken    *bool  `env:"AUTO_REFRESH_TOKEN"`
	DeepLinkHost        string `env:"DEEP_LINK_HOST"`
	DeepLinkScheme      string `env:"DEEP_LINK_SCHEME"`
	FlowType            string `env:"FLOW_TYPE"`
}

// Config converts the environment form into a Config.
func (e EnvConfig) Config() Config {
	return Config{
		ProviderID:          e.ProviderID,
		WebClientID:         e.WebClientID,
		ClientSecret:        e.ClientSecret,
		SupabaseURL:         e.SupabaseURL,
		SupabaseKey:         e.SupabaseKey,
		AutoLoadFromStorage: e.AutoLoadFromStorage,
		AutoRefreshToken:    e.AutoRefreshToken,
		DeepLinkHost:        e.DeepLinkHost,
		DeepLinkScheme:      e.DeepLinkScheme,
		FlowType:            FlowType(e.FlowType),
	}
}

// InitializeFromEnv reads a provider config from environment variables named
// prefix+KEY (for example SIGNIN_GOOGLE_WEB_CLIENT_ID) and initializes it.
func (r *Registry) InitializeFromEnv(prefix string) error {
	env, err := config.Parse[EnvConfig](prefix)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return r.Initialize(env.Config())
}

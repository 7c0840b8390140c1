package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// configCache stores parsed configs keyed by type and prefix.
type configCache struct {
	mu     sync.RWMutex
	values map[string]any
	onces  map[string]*sync.Once
}

var (
	globalCache = &configCache{
		values: make(map[string]any),
		onces:  make(map[string]*sync.Once),
	}

	defaultEnvLoaded sync.Once
)

func loadDotEnv() {
	defaultEnvLoaded.Do(func() {
		// the .env file might not exist and that's ok
		_ = godotenv.Load()
	})
}

// Load parses environment variables into v. Each config type is parsed once;
// later calls return the cached copy.
//
// Example:
//
//	type ListenerConfig struct {
//		Addr string `env:"SIGNIN_REDIRECT_ADDR" envDefault:"localhost:8080"`
//	}
//
//	var cfg ListenerConfig
//	if err := config.Load(&cfg); err != nil {
//		// Handle error
//	}
func Load[T any](v *T) error {
	return LoadPrefixed("", v)
}

// LoadPrefixed works like Load with every env key prefixed by prefix.
// The same type loaded under different prefixes is cached separately.
func LoadPrefixed[T any](prefix string, v *T) error {
	loadDotEnv()
	if v == nil {
		return ErrNilPointer
	}

	key := prefix + "|" + getTypeName[T]()

	if cached, ok := globalCache.get(key); ok {
		*v = cached.(T)
		return nil
	}

	globalCache.mu.Lock()
	once, exists := globalCache.onces[key]
	if !exists {
		once = new(sync.Once)
		globalCache.onces[key] = once
	}
	globalCache.mu.Unlock()

	var err error
	once.Do(func() {
		if parseErr := env.ParseWithOptions(v, env.Options{Prefix: prefix}); parseErr != nil {
			err = errors.Join(ErrParsingConfig, parseErr)
			// allow a retry once the environment is fixed
			globalCache.mu.Lock()
			delete(globalCache.onces, key)
			globalCache.mu.Unlock()
			return
		}

		globalCache.mu.Lock()
		globalCache.values[key] = *v
		globalCache.mu.Unlock()
	})
	if err != nil {
		return err
	}

	if cached, ok := globalCache.get(key); ok {
		*v = cached.(T)
		return nil
	}
	return ErrConfigNotLoaded
}

// Parse reads a config without touching the cache.
func Parse[T any](prefix string) (T, error) {
	loadDotEnv()

	var v T
	if err := env.ParseWithOptions(&v, env.Options{Prefix: prefix}); err != nil {
		return v, errors.Join(ErrParsingConfig, err)
	}
	return v, nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("Failed to load required configuration: %v", err))
	}
}

func (c *configCache) get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// getTypeName returns a string identifier for the generic type T
func getTypeName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return t.PkgPath() + "." + t.String()
}

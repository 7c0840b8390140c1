package main

import (
	"github.com/dmitrymomot/signin/pkg/config"
	"github.com/dmitrymomot/signin/pkg/redis"
)

const envPrefix = "SIGNIN_"

// cliConfig is read from SIGNIN_* environment variables and a .env file.
// Flags override every value.
type cliConfig struct {
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"text"`
	ProvidersFile string `env:"PROVIDERS_FILE"`

	GoogleClientID     string `env:"GOOGLE_WEB_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectAddr string `env:"GOOGLE_REDIRECT_ADDR" envDefault:"localhost:8080"`

	SupabaseURL          string `env:"SUPABASE_URL"`
	SupabaseKey          string `env:"SUPABASE_KEY"`
	SupabaseRedirectAddr string `env:"SUPABASE_REDIRECT_ADDR" envDefault:"localhost:8090"`

	Store    string `env:"STORE" envDefault:"file"` // file, redis or memory
	TokenDir string `env:"TOKEN_DIR" envDefault:"tokens"`
	SealKey  string `env:"SEAL_KEY"`
	Redis    redis.Config

	MetricsFile string `env:"METRICS_FILE"`
}

func loadConfig() (cliConfig, error) {
	var cfg cliConfig
	err := config.LoadPrefixed(envPrefix, &cfg)
	return cfg, err
}

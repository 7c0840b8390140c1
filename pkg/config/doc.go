// Package config loads environment variables into typed structs.
//
// A .env file in the working directory is read once on first use (missing files are ignored),
// then caarlos0/env parses the process environment into the target struct. Results are cached
// per type and prefix, so repeated loads are cheap and consistent.
//
// Provider settings are usually namespaced with a prefix:
//
//	type google struct {
//	    ClientID string `env:"WEB_CLIENT_ID,required"`
//	}
//
//	var cfg google
//	if err := config.LoadPrefixed("SIGNIN_GOOGLE_", &cfg); err != nil {
//	    return err
//	}
//
// Parse skips the cache and is meant for values read once, such as a registry bootstrap.
package config

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/signin"
	"github.com/dmitrymomot/signin/pkg/auth"
	"github.com/dmitrymomot/signin/pkg/credstore"
	"github.com/dmitrymomot/signin/pkg/logger"
	"github.com/dmitrymomot/signin/pkg/metrics"
	"github.com/dmitrymomot/signin/pkg/redis"
	"github.com/dmitrymomot/signin/pkg/secrets"
)

// app holds what every command shares. setup runs before a command and close after it.
type app struct {
	cfg cliConfig
	out io.Writer

	log     *slog.Logger
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	store   credstore.Store
	closers []func() error
}

func (a *app) setup(ctx context.Context) error {
	switch logger.Format(a.cfg.LogFormat) {
	case logger.FormatJSON, logger.FormatText:
	default:
		return fmt.Errorf("unknown log format %q: must be json or text", a.cfg.LogFormat)
	}
	a.log = logger.New(
		logger.WithLevelName(a.cfg.LogLevel),
		logger.WithFormat(logger.Format(a.cfg.LogFormat)),
		logger.WithAttr(slog.String("service", "signin-cli")),
	)
	a.reg, a.metrics = metrics.NewRegistry()

	if err := a.initProviders(); err != nil {
		return err
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	a.store = store
	return nil
}

func (a *app) initProviders() error {
	if a.cfg.ProvidersFile != "" {
		if err := signin.InitializeFromFile(a.cfg.ProvidersFile); err != nil {
			return err
		}
	}
	if a.cfg.GoogleClientID != "" || a.cfg.GoogleClientSecret != "" {
		err := signin.Initialize(auth.Config{
			ProviderID:   auth.DefaultProviderID,
			WebClientID:  a.cfg.GoogleClientID,
			ClientSecret: a.cfg.GoogleClientSecret,
		})
		if err != nil {
			return err
		}
	}
	if a.cfg.SupabaseURL != "" || a.cfg.SupabaseKey != "" {
		cfg, err := auth.NewSupabaseConfig(a.cfg.SupabaseURL, a.cfg.SupabaseKey)
		if err != nil {
			return err
		}
		if err := signin.Initialize(cfg); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) openStore(ctx context.Context) (credstore.Store, error) {
	var store credstore.Store
	switch a.cfg.Store {
	case "file":
		fs, err := credstore.NewFile(a.cfg.TokenDir)
		if err != nil {
			return nil, err
		}
		store = fs
	case "redis":
		client, err := redis.Connect(ctx, a.cfg.Redis)
		if err != nil {
			return nil, err
		}
		rs := redis.NewStoreWithConfig(client, a.cfg.Redis)
		a.closers = append(a.closers, rs.Close)
		store = rs
	case "memory":
		store = credstore.NewMemory(0)
	default:
		return nil, fmt.Errorf("unknown store %q: must be file, redis or memory", a.cfg.Store)
	}

	if a.cfg.SealKey == "" {
		return store, nil
	}
	sealer, err := secrets.NewSealer([]byte(a.cfg.SealKey), "signin-cli credentials")
	if err != nil {
		return nil, err
	}
	return credstore.NewSealed(store, sealer), nil
}

func (a *app) close() error {
	var errs []error
	if a.cfg.MetricsFile != "" && a.reg != nil {
		if err := prometheus.WriteToTextfile(a.cfg.MetricsFile, a.reg); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

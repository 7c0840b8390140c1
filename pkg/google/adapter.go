package google

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/signin/pkg/auth"
	"github.com/dmitrymomot/signin/pkg/flow"
	"github.com/dmitrymomot/signin/pkg/logger"
)

// Adapter names, also used as machine names and metric labels.
const (
	AndroidName = "google/android"
	IOSName     = "google/ios"
	WebName     = "google/web"
	DesktopName = "google/desktop"
)

// base holds what every adapter shares.
type base struct {
	name string
	cfg  auth.Config
	opts *options
	log  *slog.Logger
}

func newBase(name string, cfg auth.Config, opts []Option) base {
	o := newOptions(opts)
	id := cfg.ProviderID
	if id == "" {
		id = auth.DefaultProviderID
		cfg.ProviderID = id
	}
	return base{
		name: name,
		cfg:  cfg,
		opts: o,
		log:  o.logger.With(logger.Provider(id), logger.Component(name)),
	}
}

// ProviderID returns the config entry the adapter was built from.
func (b *base) ProviderID() string {
	return b.cfg.ProviderID
}

func (b *base) machineOptions() []flow.Option {
	opts := []flow.Option{flow.WithLogger(b.log)}
	for _, obs := range b.opts.observers {
		opts = append(opts, flow.WithObserver(obs))
	}
	return opts
}

func (b *base) configError(msg string) error {
	return auth.NewError(b.name, "init", auth.ErrConfiguration, errors.New(msg))
}

func (b *base) inProgress(err error) error {
	return auth.NewError(b.name, "sign in", auth.ErrSignInInProgress, err)
}

func (b *base) signedOut(ctx context.Context) {
	b.log.InfoContext(ctx, "signed out")
	for _, obs := range b.opts.observers {
		if so, ok := obs.(auth.SignOutObserver); ok {
			so.SignedOut(b.name)
		}
	}
}

package apple

import (
	"log/slog"

	"github.com/dmitrymomot/signin/pkg/flow"
	"github.com/dmitrymomot/signin/pkg/logger"
)

// Option configures an adapter.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	observers []flow.Observer
	exchanger IDTokenExchanger
	nonce     func() (string, error)
}

func newOptions(opts []Option) *options {
	o := &options{logger: logger.Discard(), nonce: randomNonce}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the adapter logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = logger.OrDiscard(l) }
}

// WithObserver adds an attempt observer, e.g. *metrics.Metrics.
func WithObserver(obs flow.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithIDTokenExchanger exchanges every Apple identity token for a Supabase session.
// *supabase.Manager satisfies IDTokenExchanger.
func WithIDTokenExchanger(x IDTokenExchanger) Option {
	return func(o *options) { o.exchanger = x }
}

// WithNonceSource replaces the generator of raw request nonces.
func WithNonceSource(fn func() (string, error)) Option {
	return func(o *options) {
		if fn != nil {
			o.nonce = fn
		}
	}
}

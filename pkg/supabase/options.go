package supabase

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/skratchdot/open-golang/open"

	"github.com/dmitrymomot/signin/pkg/credstore"
	"github.com/dmitrymomot/signin/pkg/flow"
	"github.com/dmitrymomot/signin/pkg/logger"
)

const (
	// DefaultRefreshMargin is how long before expiry the session is refreshed.
	DefaultRefreshMargin = time.Minute
	// DefaultRetryInterval spaces refresh attempts after a failure.
	DefaultRetryInterval = 10 * time.Second
)

// RefreshObserver is implemented by observers that count token refreshes, such as pkg/metrics.
type RefreshObserver interface {
	Refreshed(err error)
}

// Option configures a Client or a Manager. Options that do not apply are ignored.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	httpClient    *http.Client
	store         credstore.Store
	redirectURL   string
	openBrowser   func(string) error
	onAuthURL     func(string)
	refreshMargin time.Duration
	retryInterval time.Duration
	observers     []flow.Observer
}

func newOptions(opts []Option) *options {
	o := &options{
		logger:        logger.Discard(),
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		openBrowser:   open.Run,
		refreshMargin: DefaultRefreshMargin,
		retryInterval: DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.store == nil {
		o.store = credstore.NewMemory(0)
	}
	return o
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = logger.OrDiscard(l) }
}

// WithHTTPClient sets the client used for auth server calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithStore sets where the session is persisted. Defaults to an in-memory store.
func WithStore(s credstore.Store) Option {
	return func(o *options) { o.store = s }
}

// WithRedirectURL sets the default redirect_to of OAuth, OTP and recovery flows.
func WithRedirectURL(u string) Option {
	return func(o *options) { o.redirectURL = u }
}

// WithBrowserOpener replaces the function that opens authorize URLs.
func WithBrowserOpener(fn func(url string) error) Option {
	return func(o *options) {
		if fn != nil {
			o.openBrowser = fn
		}
	}
}

// WithOnAuthURL registers a hook receiving every authorize URL before it is opened.
func WithOnAuthURL(fn func(url string)) Option {
	return func(o *options) { o.onAuthURL = fn }
}

// WithRefreshMargin sets how long before expiry the session is refreshed.
func WithRefreshMargin(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.refreshMargin = d
		}
	}
}

// WithRetryInterval sets the delay between refresh attempts after a failure.
func WithRetryInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retryInterval = d
		}
	}
}

// WithObserver adds an attempt observer. Observers that also implement RefreshObserver
// or auth.SignOutObserver are told about refreshes and sign-outs.
func WithObserver(obs flow.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

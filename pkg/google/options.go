package google

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/skratchdot/open-golang/open"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/dmitrymomot/signin/pkg/credstore"
	"github.com/dmitrymomot/signin/pkg/flow"
	"github.com/dmitrymomot/signin/pkg/logger"
)

// Option configures an adapter. Options that do not apply to an adapter are ignored.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	observers   []flow.Observer
	httpClient  *http.Client
	userInfoURL string

	// desktop
	endpoint     oauth2.Endpoint
	revokeURL    string
	redirectAddr string
	timeout      time.Duration
	store        credstore.Store
	openBrowser  func(string) error
	onAuthURL    func(string)

	// web
	hiddenButton HiddenButtonStrategy
}

func defaultOptions() *options {
	return &options{
		logger:       logger.Discard(),
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		userInfoURL:  UserInfoURL,
		endpoint:     googleoauth.Endpoint,
		revokeURL:    RevokeURL,
		redirectAddr: DefaultRedirectAddr,
		timeout:      DefaultTimeout,
		openBrowser:  open.Run,
		hiddenButton: DefaultHiddenButton,
	}
}

func newOptions(opts []Option) *options {
	o := defaultOptions()
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

// WithHTTPClient sets the client used for token, userinfo and revoke calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithUserInfoURL overrides the userinfo endpoint.
func WithUserInfoURL(u string) Option {
	return func(o *options) { o.userInfoURL = u }
}

// WithEndpoint overrides the OAuth endpoint used by the desktop flow.
func WithEndpoint(e oauth2.Endpoint) Option {
	return func(o *options) { o.endpoint = e }
}

// WithRevokeURL overrides the token revocation endpoint.
func WithRevokeURL(u string) Option {
	return func(o *options) { o.revokeURL = u }
}

// WithRedirectAddr sets the loopback host:port the desktop flow listens on.
// Port 0 picks a free port.
func WithRedirectAddr(addr string) Option {
	return func(o *options) {
		if addr != "" {
			o.redirectAddr = addr
		}
	}
}

// WithTimeout bounds how long the desktop flow waits for the browser redirect.
// Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithStore sets where desktop tokens are kept. Defaults to a file store in "tokens".
func WithStore(s credstore.Store) Option {
	return func(o *options) { o.store = s }
}

// WithBrowserOpener replaces the function that opens the consent page.
func WithBrowserOpener(fn func(url string) error) Option {
	return func(o *options) {
		if fn != nil {
			o.openBrowser = fn
		}
	}
}

// WithOnAuthURL registers a hook receiving the consent URL, e.g. to print it.
func WithOnAuthURL(fn func(url string)) Option {
	return func(o *options) { o.onAuthURL = fn }
}

// WithHiddenButtonStrategy replaces the fallback used when the one-tap prompt is skipped.
func WithHiddenButtonStrategy(s HiddenButtonStrategy) Option {
	return func(o *options) { o.hiddenButton = s }
}

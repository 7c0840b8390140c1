package supabase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/signin/pkg/auth"
	"github.com/dmitrymomot/signin/pkg/broadcast"
	"github.com/dmitrymomot/signin/pkg/flow"
	"github.com/dmitrymomot/signin/pkg/logger"
)

// Result is the last known outcome of a Supabase sign-in.
// The zero Result means nothing happened yet.
type Result struct {
	User *auth.User
	Err  error
}

const (
	stNotSubscribed flow.State = "not_subscribed"
	stSubscribed    flow.State = "subscribed"
	stInitializing  flow.State = "initializing"
	stAuthenticated flow.State = "authenticated"

	evSubscribe     flow.Event = "subscribe"
	evInitializing  flow.Event = "initializing"
	evAuthenticated flow.Event = "authenticated"
)

var managerTransitions = []flow.Transition{
	{From: stNotSubscribed, Event: evSubscribe, To: stSubscribed},
	{From: stSubscribed, Event: evInitializing, To: stInitializing},
	{From: stSubscribed, Event: evAuthenticated, To: stAuthenticated},
	{From: stInitializing, Event: evAuthenticated, To: stAuthenticated},
}

// Manager turns the Client's session stream into sign-in results. It allows one
// sign-in at a time and keeps a process-wide last-known result.
type Manager struct {
	client  *Client
	opts    *options
	log     *slog.Logger
	machine *flow.Machine[*auth.User]
	results *broadcast.Latest[Result]
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.Mutex
	redirect *flow.Attempt[*auth.User] // sign-in waiting for a deep link
}

// NewManager wraps client. It inherits the client's logger unless WithLogger is given.
func NewManager(client *Client, opts ...Option) (*Manager, error) {
	if client == nil {
		return nil, auth.NewError(Name, "init", auth.ErrConfiguration, errors.New("client is required"))
	}
	o := newOptions(append([]Option{WithLogger(client.opts.logger)}, opts...))

	mopts := []flow.Option{flow.WithLogger(o.logger)}
	for _, obs := range o.observers {
		mopts = append(mopts, flow.WithObserver(obs))
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		client:  client,
		opts:    o,
		log:     o.logger.With(logger.Component(Name)),
		machine: flow.New[*auth.User](Name, stNotSubscribed, managerTransitions, mopts...),
		results: broadcast.NewLatestWith(Result{}),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go m.watch(client.Statuses(ctx))
	return m, nil
}

// watch feeds every authenticated session into the results, including sessions that
// arrive only through a deep link.
func (m *Manager) watch(sub broadcast.Subscriber[SessionStatus]) {
	defer close(m.done)
	for msg := range sub.Receive(context.Background()) {
		if msg.Data.Kind != StatusAuthenticated || msg.Data.Session == nil {
			continue
		}
		if u := msg.Data.Session.AuthUser(); u != nil {
			m.results.Publish(Result{User: u})
		}
	}
}

// Client returns the wrapped client.
func (m *Manager) Client() *Client {
	return m.client
}

// Close stops feeding results and ends every Results subscription.
// It does not close the client.
func (m *Manager) Close() error {
	m.cancel()
	<-m.done
	return m.results.Close()
}

// Results subscribes to the last-known result. The current value is delivered first.
func (m *Manager) Results(ctx context.Context) broadcast.Subscriber[Result] {
	return m.results.Subscribe(ctx)
}

// LastResult returns the last-known result.
func (m *Manager) LastResult() Result {
	r, _ := m.results.Value()
	return r
}

// SignInWith starts an OAuth sign-in with provider and waits for the session that the
// redirect back into the app produces (see HandleDeepLinks).
func (m *Manager) SignInWith(ctx context.Context, provider OAuthProvider, cfg AuthConfig) (*auth.User, error) {
	if !provider.Valid() {
		return nil, m.failed("sign in", fmt.Errorf("%w: %q", ErrUnknownProvider, provider))
	}
	return m.signIn(ctx, "sign in with "+provider.String(), true, func(ctx context.Context) error {
		_, err := m.client.OpenOAuth(ctx, provider, cfg)
		return err
	})
}

// SignInWithDefault signs in with one of the built-in methods. Email and phone use the
// password grant when cfg.Password is set and a one-time code otherwise.
func (m *Manager) SignInWithDefault(ctx context.Context, method DefaultProvider, cfg AuthConfig) (*auth.User, error) {
	op := "sign in with " + string(method)
	var trigger func(context.Context) error
	redirect := false

	switch method {
	case DefaultEmail, DefaultPhone:
		if method == DefaultEmail {
			cfg.Phone = ""
		} else {
			cfg.Email = ""
		}
		if cfg.Email == "" && cfg.Phone == "" {
			return nil, m.failed(op, fmt.Errorf("%w: %s", ErrMissingCredentials, method))
		}
		// an email one-time code may come back as a magic link
		redirect = method == DefaultEmail && cfg.Password == ""
		trigger = func(ctx context.Context) error {
			if cfg.Password != "" {
				_, err := m.client.SignInWithPassword(ctx, cfg)
				return err
			}
			return m.client.SignInWithOTP(ctx, cfg)
		}
	case DefaultIDToken:
		if !cfg.Provider.SupportsIDToken() {
			return nil, m.failed(op, fmt.Errorf("%w: %q", ErrIDTokenNotSupported, cfg.Provider))
		}
		if cfg.IDToken == "" {
			return nil, m.failed(op, fmt.Errorf("%w: id token", ErrMissingCredentials))
		}
		trigger = func(ctx context.Context) error {
			_, err := m.client.SignInWithIDToken(ctx, cfg.Provider, cfg.IDToken, cfg.Nonce, cfg.AccessToken)
			return err
		}
	default:
		return nil, m.failed(op, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method))
	}
	return m.signIn(ctx, op, redirect, trigger)
}

// SignInWithIDToken exchanges an identity token for a session.
func (m *Manager) SignInWithIDToken(ctx context.Context, provider OAuthProvider, idToken, nonce string) (*auth.User, error) {
	return m.SignInWithDefault(ctx, DefaultIDToken, AuthConfig{Provider: provider, IDToken: idToken, Nonce: nonce})
}

func (m *Manager) signIn(ctx context.Context, op string, redirect bool, trigger func(context.Context) error) (*auth.User, error) {
	att, err := m.machine.Begin(ctx)
	if err != nil {
		return nil, auth.NewError(Name, op, auth.ErrSignInInProgress, err)
	}
	if redirect {
		m.mu.Lock()
		m.redirect = att
		m.mu.Unlock()
		att.Defer(func() {
			m.mu.Lock()
			if m.redirect == att {
				m.redirect = nil
			}
			m.mu.Unlock()
		})
	}

	prev := m.client.Session()
	sub := m.client.Statuses(att.Context())
	att.Defer(func() {
		_ = sub.Close()
		m.log.DebugContext(att.Context(), "session status unsubscribed")
	})
	if err := att.Fire(evSubscribe); err != nil {
		att.Reject(err)
		return att.Wait()
	}
	go m.follow(att, sub, prev)

	if err := trigger(att.Context()); err != nil {
		m.log.ErrorContext(att.Context(), "supabase sign in failed", logger.Error(err))
		att.Reject(auth.NewError(Name, op, kindOf(err), err))
	}

	user, err := att.Wait()
	if err != nil {
		m.results.Publish(Result{Err: err})
	}
	return user, err
}

// follow resolves att with the first signed-in session that differs from prev.
// Refreshed and restored sessions belong to whoever was signed in before.
func (m *Manager) follow(att *flow.Attempt[*auth.User], sub broadcast.Subscriber[SessionStatus], prev *Session) {
	for msg := range sub.Receive(att.Context()) {
		st := msg.Data
		switch st.Kind {
		case StatusInitializing:
			if m.machine.CanFire(evInitializing) {
				_ = att.Fire(evInitializing)
			}
		case StatusAuthenticated:
			if st.Cause != CauseSignIn || st.Session == nil || st.Session == prev || st.Session.User == nil {
				m.log.DebugContext(att.Context(), "session status skipped", logger.State(string(st.Cause)))
				continue
			}
			_ = att.Fire(evAuthenticated)
			att.Resolve(st.Session.AuthUser())
			return
		default:
			m.log.DebugContext(att.Context(), "session status changed", logger.State(string(st.Kind)))
		}
	}
	att.Reject(auth.NewError(Name, "sign in", auth.ErrVendorSDK, broadcast.ErrClosed))
}

// SignUpWith creates an account by email or phone. The user must confirm it before a
// session exists when the project requires confirmation.
func (m *Manager) SignUpWith(ctx context.Context, method DefaultProvider, cfg AuthConfig) (*User, error) {
	const op = "sign up"
	switch method {
	case DefaultEmail:
		cfg.Phone = ""
	case DefaultPhone:
		cfg.Email = ""
	default:
		return nil, auth.NewError(Name, op, auth.ErrConfiguration, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method))
	}
	u, _, err := m.client.SignUp(ctx, cfg)
	if err != nil {
		return nil, auth.NewError(Name, op, kindOf(err), err)
	}
	return u, nil
}

// ResetPasswordForEmail sends a password recovery email.
func (m *Manager) ResetPasswordForEmail(ctx context.Context, email string) error {
	if err := m.client.ResetPasswordForEmail(ctx, email, ""); err != nil {
		return auth.NewError(Name, "reset password", kindOf(err), err)
	}
	return nil
}

// LinkIdentity links provider to the signed-in user and returns the consent URL.
func (m *Manager) LinkIdentity(ctx context.Context, provider OAuthProvider, cfg AuthConfig) (string, error) {
	u, err := m.client.LinkIdentity(ctx, provider, cfg)
	if err != nil {
		return "", auth.NewError(Name, "link identity", kindOf(err), err)
	}
	return u, nil
}

// SignOut ends the session. Failures are logged.
func (m *Manager) SignOut(ctx context.Context, userID string) {
	log := m.log
	if userID != "" {
		log = log.With(logger.UserID(userID))
	}
	if err := m.client.SignOut(ctx); err != nil {
		log.ErrorContext(ctx, "supabase sign out failed", logger.Error(err))
	} else {
		log.InfoContext(ctx, "signed out")
	}
	for _, obs := range m.opts.observers {
		if so, ok := obs.(auth.SignOutObserver); ok {
			so.SignedOut(Name)
		}
	}
}

// CurrentUser returns the signed-in user or nil.
func (m *Manager) CurrentUser() *auth.User {
	s := m.client.Session()
	if s == nil {
		return nil
	}
	return s.AuthUser()
}

// HandleDeepLinks completes a redirect into the app. A failed redirect also fails the
// pending SignInWith call, and is published as the last-known result.
func (m *Manager) HandleDeepLinks(ctx context.Context, rawURL string) error {
	if _, err := m.client.HandleDeepLink(ctx, rawURL); err != nil {
		err = auth.NewError(Name, "handle deep link", kindOf(err), err)
		m.log.WarnContext(ctx, "deep link rejected", logger.Error(err))

		m.mu.Lock()
		att := m.redirect
		m.mu.Unlock()
		if att != nil && att.Reject(err) {
			// signIn publishes the failure
			return err
		}
		m.results.Publish(Result{Err: err})
		return err
	}
	return nil
}

func (m *Manager) failed(op string, err error) error {
	err = auth.NewError(Name, op, kindOf(err), err)
	m.results.Publish(Result{Err: err})
	return err
}

func kindOf(err error) error {
	var apiErr *APIError
	switch {
	case errors.Is(err, ErrMissingCredentials),
		errors.Is(err, ErrUnknownProvider),
		errors.Is(err, ErrIDTokenNotSupported),
		errors.Is(err, ErrUnsupportedMethod),
		errors.Is(err, ErrDeepLinkMismatch):
		return auth.ErrConfiguration
	case errors.Is(err, ErrNotAuthenticated):
		return auth.ErrNoUser
	case errors.Is(err, ErrDeepLinkRejected):
		return auth.ErrUserCancelled
	case errors.As(err, &apiErr), errors.Is(err, ErrInvalidSession), errors.Is(err, ErrMissingCodeVerifier):
		return auth.ErrVendorSDK
	default:
		return auth.ErrNetwork
	}
}

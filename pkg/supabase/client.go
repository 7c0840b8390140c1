package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gotrue "github.com/supabase-community/auth-go"
	"github.com/supabase-community/auth-go/types"

	"github.com/dmitrymomot/signin/pkg/auth"
	"github.com/dmitrymomot/signin/pkg/broadcast"
	"github.com/dmitrymomot/signin/pkg/credstore"
	"github.com/dmitrymomot/signin/pkg/logger"
)

// Name identifies the Supabase bridge in logs, errors and metrics.
const Name = "supabase/session"

const maxResponseSize = 1 << 20

// Client talks to the GoTrue API of a Supabase project through auth-go and owns the
// current session. Every session change is published on a latest-value status stream.
type Client struct {
	cfg     auth.Config
	baseURL string
	api     gotrue.Client
	opts    *options
	log     *slog.Logger
	status  *broadcast.Latest[SessionStatus]
	kick    chan struct{}

	mu      sync.Mutex
	session *Session
	retryAt time.Time
	started bool
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// New validates cfg and returns a client in the Initializing status.
func New(cfg auth.Config, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(cfg.SupabaseURL)
	switch {
	case raw == "":
		return nil, auth.NewError(Name, "init", auth.ErrConfiguration, ErrMissingURL)
	case strings.TrimSpace(cfg.SupabaseKey) == "":
		return nil, auth.NewError(Name, "init", auth.ErrConfiguration, ErrMissingKey)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, auth.NewError(Name, "init", auth.ErrConfiguration, fmt.Errorf("invalid supabase url %q", raw))
	}
	if cfg.ProviderID == "" {
		cfg.ProviderID = auth.SupabaseProviderID
	}

	o := newOptions(opts)
	base := strings.TrimRight(raw, "/") + "/auth/v1"
	return &Client{
		cfg:     cfg,
		baseURL: base,
		api:     gotrue.New("", cfg.SupabaseKey).WithCustomAuthURL(base),
		opts:    o,
		log:     o.logger.With(logger.Provider(cfg.ProviderID), logger.Component(Name)),
		status:  broadcast.NewLatestWith(initializing()),
		kick:    make(chan struct{}, 1),
	}, nil
}

// Config returns the provider config the client was built from.
func (c *Client) Config() auth.Config {
	return c.cfg
}

// Start restores the persisted session when AutoLoadFromStorage is on and starts the
// refresh loop when AutoRefreshToken is on. The loop runs until ctx is done or Close.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrClientAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	if c.cfg.ShouldAutoLoad() {
		c.restore(ctx)
	}

	refresh := c.cfg.ShouldAutoRefresh()
	if refresh {
		lctx, cancel := context.WithCancel(ctx)
		c.mu.Lock()
		c.stop = cancel
		c.mu.Unlock()
		c.wg.Add(1)
		go c.refreshLoop(lctx)
	}

	s := c.Session()
	switch {
	case s == nil:
		c.status.Publish(notAuthenticated())
	case s.Expired(time.Now()):
		if refresh && s.RefreshToken != "" {
			// the refresh loop publishes the outcome
			c.log.DebugContext(ctx, "persisted session expired, refreshing")
			return nil
		}
		c.clearSession(ctx)
	default:
		c.status.Publish(authenticated(s, CauseRestore))
	}
	return nil
}

func (c *Client) restore(ctx context.Context) {
	s, err := credstore.GetJSON[*Session](ctx, c.opts.store, SessionKey)
	switch {
	case errors.Is(err, credstore.ErrNotFound):
		return
	case err != nil:
		c.log.WarnContext(ctx, "failed to load persisted session", logger.Error(err))
		return
	case s == nil || s.AccessToken == "":
		return
	}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	c.log.DebugContext(ctx, "persisted session loaded")
}

// Close stops the refresh loop and ends every status subscription.
func (c *Client) Close() error {
	c.mu.Lock()
	stop := c.stop
	c.stop = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
	c.wg.Wait()
	return c.status.Close()
}

// Session returns the current session or nil. The returned value must not be modified.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// CurrentUser returns the user of the current session or nil.
func (c *Client) CurrentUser() *User {
	if s := c.Session(); s != nil {
		return s.User
	}
	return nil
}

// Status returns the latest published status.
func (c *Client) Status() SessionStatus {
	st, _ := c.status.Value()
	return st
}

// Statuses subscribes to session changes. The current status is delivered first.
func (c *Client) Statuses(ctx context.Context) broadcast.Subscriber[SessionStatus] {
	return c.status.Subscribe(ctx)
}

// SignInWithPassword signs in with Email or Phone and Password.
func (c *Client) SignInWithPassword(ctx context.Context, cfg AuthConfig) (*Session, error) {
	if cfg.Password == "" || (cfg.Email == "" && cfg.Phone == "") {
		return nil, fmt.Errorf("%w: email or phone and a password", ErrMissingCredentials)
	}
	req := types.TokenRequest{GrantType: "password", Password: cfg.Password}
	if cfg.Email != "" {
		req.Email = cfg.Email
	} else {
		req.Phone = cfg.Phone
	}
	return c.token(ctx, req, CauseSignIn)
}

// SignInWithOTP sends a one-time code or magic link to Email or Phone.
// The session arrives later through VerifyOTP or HandleDeepLink.
func (c *Client) SignInWithOTP(ctx context.Context, cfg AuthConfig) error {
	req := types.OTPRequest{CreateUser: true, Data: cfg.Data, RedirectTo: cfg.redirectTo(c.opts.redirectURL)}
	switch {
	case cfg.Email != "":
		req.Email = cfg.Email
	case cfg.Phone != "":
		req.Phone = cfg.Phone
	default:
		return fmt.Errorf("%w: email or phone", ErrMissingCredentials)
	}
	api, t := c.request(ctx, "", nil)
	return c.check(t, api.OTP(req))
}

// OTPType selects what a one-time code confirms.
type OTPType string

const (
	OTPEmail    OTPType = "email"
	OTPSMS      OTPType = types.VerificationTypeSMS
	OTPRecovery OTPType = types.VerificationTypeRecovery
	OTPSignup   OTPType = types.VerificationTypeSignup
)

// VerifyOTP exchanges a one-time code for a session.
func (c *Client) VerifyOTP(ctx context.Context, typ OTPType, cfg AuthConfig, token string) (*Session, error) {
	if token == "" || (cfg.Email == "" && cfg.Phone == "") {
		return nil, fmt.Errorf("%w: email or phone and a code", ErrMissingCredentials)
	}
	redirect := cfg.redirectTo(c.opts.redirectURL)
	if redirect == "" {
		// the JSON verify answers with the session, the redirect is never followed
		redirect = c.cfg.SupabaseURL
	}
	api, t := c.request(ctx, "", nil)
	resp, err := api.VerifyForUser(types.VerifyForUserRequest{
		Type:       types.VerificationType(typ),
		Token:      token,
		RedirectTo: redirect,
		Email:      cfg.Email,
		Phone:      cfg.Phone,
	})
	if err := c.check(t, err); err != nil {
		return nil, err
	}
	return c.accept(ctx, sessionFrom(resp.Session), CauseSignIn)
}

// SignInWithIDToken exchanges an identity token issued by provider for a session.
func (c *Client) SignInWithIDToken(ctx context.Context, provider OAuthProvider, idToken, nonce, accessToken string) (*Session, error) {
	if !provider.SupportsIDToken() {
		return nil, fmt.Errorf("%w: %q", ErrIDTokenNotSupported, provider)
	}
	if idToken == "" {
		return nil, fmt.Errorf("%w: id token", ErrMissingCredentials)
	}
	return c.token(ctx, types.TokenRequest{
		GrantType:   "id_token",
		Provider:    provider.String(),
		IdToken:     idToken,
		AccessToken: accessToken,
		Nonce:       nonce,
	}, CauseSignIn)
}

// SignUp creates an account with Email or Phone and Password. The session is nil
// when the project requires confirmation first.
func (c *Client) SignUp(ctx context.Context, cfg AuthConfig) (*User, *Session, error) {
	if cfg.Password == "" || (cfg.Email == "" && cfg.Phone == "") {
		return nil, nil, fmt.Errorf("%w: email or phone and a password", ErrMissingCredentials)
	}
	req := types.SignupRequest{Password: cfg.Password, Data: cfg.Data}
	if cfg.Email != "" {
		req.Email = cfg.Email
	} else {
		req.Phone = cfg.Phone
	}

	api, t := c.request(ctx, "", c.redirectQuery(cfg))
	resp, err := api.Signup(req)
	if err := c.check(t, err); err != nil {
		return nil, nil, err
	}
	if resp.Session.AccessToken != "" {
		sess, err := c.accept(ctx, sessionFrom(resp.Session), CauseSignIn)
		if err != nil {
			return nil, nil, err
		}
		return sess.User, sess, nil
	}
	if resp.User.ID == uuid.Nil {
		return nil, nil, errors.New("auth server returned a user without id")
	}
	return userFrom(resp.User), nil, nil
}

// ResetPasswordForEmail sends a password recovery email.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	if email == "" {
		return fmt.Errorf("%w: email", ErrMissingCredentials)
	}
	api, t := c.request(ctx, "", nil)
	return c.check(t, api.Recover(types.RecoverRequest{
		Email:      email,
		RedirectTo: AuthConfig{RedirectTo: redirectTo}.redirectTo(c.opts.redirectURL),
	}))
}

// AuthorizeURL asks the auth server where an OAuth sign-in with provider starts and
// returns that provider URL. In the PKCE flow the verifier is stored for the code
// exchange in HandleDeepLink.
func (c *Client) AuthorizeURL(ctx context.Context, provider OAuthProvider, cfg AuthConfig) (string, error) {
	if !provider.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	extra := url.Values{}
	for k, v := range cfg.QueryParams {
		extra.Set(k, v)
	}
	if extra.Get("audience") == "" {
		extra.Set("audience", c.cfg.SupabaseURL)
	}

	req := types.AuthorizeRequest{
		Provider:   types.Provider(provider),
		RedirectTo: cfg.redirectTo(c.opts.redirectURL),
		FlowType:   types.FlowImplicit,
		Scopes:     strings.Join(cfg.Scopes, " "),
	}
	pkce := c.cfg.Flow() == auth.FlowPKCE
	if pkce {
		req.FlowType = types.FlowPKCE
	}

	api, t := c.request(ctx, "", extra)
	resp, err := api.Authorize(req)
	if err := c.check(t, err); err != nil {
		return "", err
	}
	if pkce {
		if err := c.opts.store.Set(ctx, codeVerifierKey, []byte(resp.Verifier)); err != nil {
			return "", fmt.Errorf("failed to store code verifier: %w", err)
		}
	}
	return resp.AuthorizationURL, nil
}

// OpenOAuth resolves the authorize URL, passes it to the OnAuthURL hook and opens it
// when cfg.AutomaticallyOpenURL is set. A browser failure is logged, not returned.
func (c *Client) OpenOAuth(ctx context.Context, provider OAuthProvider, cfg AuthConfig) (string, error) {
	u, err := c.AuthorizeURL(ctx, provider, cfg)
	if err != nil {
		return "", err
	}
	c.present(ctx, u, cfg.AutomaticallyOpenURL)
	return u, nil
}

// LinkIdentityURL returns the URL that links provider to the signed-in user.
func (c *Client) LinkIdentityURL(ctx context.Context, provider OAuthProvider, cfg AuthConfig) (string, error) {
	s := c.Session()
	if s == nil {
		return "", ErrNotAuthenticated
	}
	if !provider.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	q := url.Values{}
	q.Set("provider", provider.String())
	if r := cfg.redirectTo(c.opts.redirectURL); r != "" {
		q.Set("redirect_to", r)
	}
	if len(cfg.Scopes) > 0 {
		q.Set("scopes", strings.Join(cfg.Scopes, " "))
	}
	for k, v := range cfg.QueryParams {
		q.Set(k, v)
	}
	q.Set("skip_http_redirect", "true")

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/user/identities/authorize", q, s.AccessToken, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", errors.New("auth server returned no link url")
	}
	return resp.URL, nil
}

// LinkIdentity fetches the link URL and opens it when cfg.AutomaticallyOpenURL is set.
func (c *Client) LinkIdentity(ctx context.Context, provider OAuthProvider, cfg AuthConfig) (string, error) {
	u, err := c.LinkIdentityURL(ctx, provider, cfg)
	if err != nil {
		return "", err
	}
	c.present(ctx, u, cfg.AutomaticallyOpenURL)
	return u, nil
}

// FetchUser loads the signed-in user from the server.
func (c *Client) FetchUser(ctx context.Context) (*User, error) {
	s := c.Session()
	if s == nil {
		return nil, ErrNotAuthenticated
	}
	return c.fetchUser(ctx, s.AccessToken)
}

// SignOut revokes the session on the server and clears it locally. The local session
// is cleared even when the server call fails.
func (c *Client) SignOut(ctx context.Context) error {
	s := c.Session()
	if s == nil {
		return nil
	}
	api, t := c.request(ctx, s.AccessToken, url.Values{"scope": {"global"}})
	err := c.check(t, api.Logout())
	c.clearSession(ctx)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Rejected() {
		// the session is already gone on the server
		return nil
	}
	return err
}

// Refresh exchanges the refresh token for a new session.
func (c *Client) Refresh(ctx context.Context) (*Session, error) {
	s := c.Session()
	if s == nil || s.RefreshToken == "" {
		return nil, ErrNotAuthenticated
	}
	return c.token(ctx, types.TokenRequest{GrantType: "refresh_token", RefreshToken: s.RefreshToken}, CauseRefresh)
}

func (c *Client) present(ctx context.Context, u string, openBrowser bool) {
	if c.opts.onAuthURL != nil {
		c.opts.onAuthURL(u)
	}
	if !openBrowser {
		return
	}
	if err := c.opts.openBrowser(u); err != nil {
		c.log.WarnContext(ctx, "failed to open browser", logger.URL(u), logger.Error(err))
	}
}

func (c *Client) redirectQuery(cfg AuthConfig) url.Values {
	r := cfg.redirectTo(c.opts.redirectURL)
	if r == "" {
		return nil
	}
	return url.Values{"redirect_to": {r}}
}

func (c *Client) token(ctx context.Context, req types.TokenRequest, cause Cause) (*Session, error) {
	api, t := c.request(ctx, "", nil)
	resp, err := api.Token(req)
	if err := c.check(t, err); err != nil {
		return nil, err
	}
	return c.accept(ctx, sessionFrom(resp.Session), cause)
}

// accept completes a session returned by the server and makes it current.
func (c *Client) accept(ctx context.Context, s *Session, cause Cause) (*Session, error) {
	if s.AccessToken == "" {
		return nil, ErrInvalidSession
	}
	s.normalize(time.Now())
	if s.User == nil {
		u, err := c.fetchUser(ctx, s.AccessToken)
		if err != nil {
			return nil, err
		}
		s.User = u
	}
	c.setSession(ctx, s, cause)
	return s, nil
}

func (c *Client) fetchUser(ctx context.Context, accessToken string) (*User, error) {
	api, t := c.request(ctx, accessToken, nil)
	resp, err := api.GetUser()
	if err := c.check(t, err); err != nil {
		return nil, err
	}
	if resp.User.ID == uuid.Nil {
		return nil, errors.New("auth server returned a user without id")
	}
	return userFrom(resp.User), nil
}

func (c *Client) setSession(ctx context.Context, s *Session, cause Cause) {
	c.mu.Lock()
	c.session = s
	c.retryAt = time.Time{}
	c.mu.Unlock()

	if err := credstore.SetJSON(ctx, c.opts.store, SessionKey, s); err != nil {
		c.log.WarnContext(ctx, "failed to persist session", logger.Error(err))
	}
	select {
	case c.kick <- struct{}{}:
	default:
	}
	if s.User != nil {
		c.log.InfoContext(ctx, "session authenticated", logger.UserID(s.User.ID))
	}
	c.status.Publish(authenticated(s, cause))
}

func (c *Client) clearSession(ctx context.Context) {
	c.mu.Lock()
	c.session = nil
	c.retryAt = time.Time{}
	c.mu.Unlock()

	if err := c.opts.store.Delete(ctx, SessionKey); err != nil && !errors.Is(err, credstore.ErrNotFound) {
		c.log.WarnContext(ctx, "failed to delete persisted session", logger.Error(err))
	}
	select {
	case c.kick <- struct{}{}:
	default:
	}
	c.status.Publish(notAuthenticated())
}

// do calls an endpoint the auth-go client does not cover.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer string, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.cfg.SupabaseKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")

	t := &call{ctx: ctx, base: c.opts.httpClient.Transport}
	if t.base == nil {
		t.base = http.DefaultTransport
	}
	hc := http.Client{Transport: t, Jar: c.opts.httpClient.Jar, Timeout: c.opts.httpClient.Timeout}
	resp, err := hc.Do(req)
	if err != nil {
		return c.check(t, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= http.StatusBadRequest {
		return c.check(t, fmt.Errorf("response status code %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

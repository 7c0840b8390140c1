package google

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/dmitrymomot/signin/pkg/auth"
	"github.com/dmitrymomot/signin/pkg/credstore"
	"github.com/dmitrymomot/signin/pkg/flow"
	"github.com/dmitrymomot/signin/pkg/httpserver"
	"github.com/dmitrymomot/signin/pkg/logger"
)

// Desktop flow defaults.
const (
	DefaultRedirectAddr = "localhost:8080"
	CallbackPath        = "/callback"
	DefaultTimeout      = 5 * time.Minute
	DefaultTokenDir     = "tokens"
	RevokeURL           = "https://oauth2.googleapis.com/revoke"
)

// DesktopScopes are requested by the desktop flow.
var DesktopScopes = []string{
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/userinfo.email",
}

// Callback page texts.
const (
	msgMissingCode   = "Missing code parameter. Please try again from app"
	msgStateMismatch = "Invalid state parameter. Please try again from app"
	msgSuccess       = "Authentication successful. You can close this window and return to the app"
	msgExchangeError = "Some error in receiving code parameter: %v, Please try again from app"
)

const (
	desktopIdle                 flow.State = "idle"
	desktopLaunchBrowser        flow.State = "launch_browser"
	desktopServerListening      flow.State = "server_listening"
	desktopCallbackReceived     flow.State = "callback_received"
	desktopTokenExchangeSuccess flow.State = "token_exchange_success"
	desktopTokenExchangeError   flow.State = "token_exchange_error"
	desktopServerStopped        flow.State = "server_stopped"

	evLaunch         flow.Event = "launch"
	evListen         flow.Event = "listen"
	evCallback       flow.Event = "callback"
	evExchangeOK     flow.Event = "exchange_ok"
	evExchangeFailed flow.Event = "exchange_failed"
	evStop           flow.Event = "stop"
)

var desktopTransitions = []flow.Transition{
	{From: desktopIdle, Event: evLaunch, To: desktopLaunchBrowser},
	{From: desktopLaunchBrowser, Event: evListen, To: desktopServerListening},
	{From: desktopServerListening, Event: evCallback, To: desktopCallbackReceived},
	{From: desktopCallbackReceived, Event: evExchangeOK, To: desktopTokenExchangeSuccess},
	{From: desktopCallbackReceived, Event: evExchangeFailed, To: desktopTokenExchangeError},
	{From: desktopLaunchBrowser, Event: evStop, To: desktopServerStopped},
	{From: desktopServerListening, Event: evStop, To: desktopServerStopped},
	{From: desktopCallbackReceived, Event: evStop, To: desktopServerStopped},
	{From: desktopTokenExchangeSuccess, Event: evStop, To: desktopServerStopped},
	{From: desktopTokenExchangeError, Event: evStop, To: desktopServerStopped},
}

// Desktop runs the installed-app OAuth flow through a loopback redirect.
type Desktop struct {
	base
	oauth   oauth2.Config
	store   credstore.Store
	machine *flow.Machine[*auth.User]
}

// NewDesktop requires a web client id and client secret.
func NewDesktop(cfg auth.Config, opts ...Option) (*Desktop, error) {
	d := &Desktop{base: newBase(DesktopName, cfg, opts)}
	switch {
	case strings.TrimSpace(cfg.WebClientID) == "":
		return nil, d.configError("web client id is required")
	case strings.TrimSpace(cfg.ClientSecret) == "":
		return nil, d.configError("client secret is required")
	}

	d.store = d.opts.store
	if d.store == nil {
		fs, err := credstore.NewFile(DefaultTokenDir)
		if err != nil {
			return nil, auth.NewError(d.name, "init", auth.ErrConfiguration, err)
		}
		d.store = fs
	}

	d.oauth = oauth2.Config{
		ClientID:     cfg.WebClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     d.opts.endpoint,
		Scopes:       DesktopScopes,
	}
	d.machine = flow.New[*auth.User](DesktopName, desktopIdle, desktopTransitions, d.machineOptions()...)
	return d, nil
}

type callbackResult struct {
	user *auth.User
	err  error
}

// SignIn opens the consent page in the browser and waits for the redirect.
func (d *Desktop) SignIn(ctx context.Context) (*auth.User, error) {
	att, err := d.machine.Begin(ctx)
	if err != nil {
		return nil, d.inProgress(err)
	}
	actx := att.Context()

	state, err := randomState()
	if err != nil {
		att.Reject(auth.NewError(d.name, "sign in", auth.ErrVendorSDK, err))
		return att.Wait()
	}
	verifier := oauth2.GenerateVerifier()

	if err := att.Fire(evLaunch); err != nil {
		att.Reject(err)
		return att.Wait()
	}

	srv := httpserver.New(httpserver.WithAddr(d.opts.redirectAddr), httpserver.WithLogger(d.log))
	if err := srv.Listen(); err != nil {
		att.Reject(auth.NewError(d.name, "listen", auth.ErrNetwork, err))
		return att.Wait()
	}
	att.Defer(func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			d.log.Warn("callback server shutdown failed", logger.Error(err))
		}
		_ = att.Fire(evStop)
	})

	conf := d.oauth
	conf.RedirectURL = redirectURL(d.opts.redirectAddr, srv.Addr())

	results := make(chan callbackResult, 1)
	router := chi.NewRouter()
	router.Get(CallbackPath, d.callbackHandler(att, srv, &conf, state, verifier, results))

	go func() {
		if err := srv.Run(actx, router); err != nil {
			att.Reject(auth.NewError(d.name, "serve", auth.ErrNetwork, err))
		}
	}()
	go func() {
		select {
		case r := <-results:
			if r.err != nil {
				att.Reject(r.err)
				return
			}
			att.Resolve(r.user)
		case <-actx.Done():
		}
	}()

	if d.opts.timeout > 0 {
		timer := time.AfterFunc(d.opts.timeout, func() {
			att.Reject(auth.NewError(d.name, "sign in", auth.ErrNetwork, ErrCallbackTimeout))
		})
		att.Defer(func() { timer.Stop() })
	}

	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	if err := att.Fire(evListen); err != nil {
		att.Reject(err)
		return att.Wait()
	}
	if d.opts.onAuthURL != nil {
		d.opts.onAuthURL(authURL)
	}
	if err := d.opts.openBrowser(authURL); err != nil {
		d.log.WarnContext(actx, "could not open browser, waiting for manual navigation", logger.URL(authURL), logger.Error(err))
	}

	return att.Wait()
}

func (d *Desktop) callbackHandler(att *flow.Attempt[*auth.User], srv *httpserver.Server, conf *oauth2.Config, state, verifier string, results chan<- callbackResult) http.HandlerFunc {
	// every callback outcome is final: reply, stop the listener, then report
	finish := func(w http.ResponseWriter, status int, msg string, r callbackResult) {
		writeText(w, status, msg)
		srv.ShutdownAsync()
		select {
		case results <- r:
		default:
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		_ = att.Fire(evCallback)
		q := r.URL.Query()

		code := q.Get("code")
		if code == "" {
			kind := auth.ErrNetwork
			if q.Get("error") == "access_denied" {
				kind = auth.ErrUserCancelled
			}
			d.log.WarnContext(ctx, "callback without code", logger.Status(http.StatusBadRequest))
			finish(w, http.StatusBadRequest, msgMissingCode, callbackResult{err: auth.NewError(d.name, "callback", kind, ErrMissingCode)})
			return
		}
		if subtle.ConstantTimeCompare([]byte(q.Get("state")), []byte(state)) != 1 {
			finish(w, http.StatusBadRequest, msgStateMismatch, callbackResult{err: auth.NewError(d.name, "callback", auth.ErrNetwork, ErrStateMismatch)})
			return
		}

		xctx := context.WithValue(ctx, oauth2.HTTPClient, d.opts.httpClient)
		token, err := conf.Exchange(xctx, code, oauth2.VerifierOption(verifier))
		if err != nil {
			_ = att.Fire(evExchangeFailed)
			d.log.ErrorContext(ctx, "token exchange failed", logger.Error(err))
			finish(w, http.StatusBadRequest, fmt.Sprintf(msgExchangeError, err), callbackResult{err: auth.NewError(d.name, "exchange code", auth.ErrNetwork, err)})
			return
		}

		user, err := d.completeSignIn(ctx, token)
		if err != nil {
			_ = att.Fire(evExchangeFailed)
			d.log.ErrorContext(ctx, "complete sign in failed", logger.Error(err))
			finish(w, http.StatusBadRequest, fmt.Sprintf(msgExchangeError, err), callbackResult{err: err})
			return
		}
		_ = att.Fire(evExchangeOK)
		finish(w, http.StatusOK, msgSuccess, callbackResult{user: user})
	}
}

// completeSignIn stores the token and builds the user from userinfo. A failed
// fetch removes the stored record again.
func (d *Desktop) completeSignIn(ctx context.Context, token *oauth2.Token) (*auth.User, error) {
	userID := uuid.NewString()
	if err := credstore.SetJSON(ctx, d.store, userID, token); err != nil {
		return nil, auth.NewError(d.name, "store credential", auth.ErrVendorSDK, err)
	}

	info, err := fetchUserInfo(ctx, d.opts.httpClient, d.opts.userInfoURL, token.AccessToken)
	if err != nil {
		if derr := d.store.Delete(ctx, userID); derr != nil {
			d.log.WarnContext(ctx, "delete stored credential failed", logger.UserID(userID), logger.Error(derr))
		}
		return nil, auth.NewError(d.name, "fetch user info", auth.ErrNetwork, err)
	}

	idToken, _ := token.Extra("id_token").(string)
	d.log.InfoContext(ctx, "signed in", logger.UserID(userID))
	return &auth.User{
		ID:            userID,
		IDToken:       idToken,
		AccessToken:   token.AccessToken,
		Name:          info.Name,
		Email:         info.Email,
		ProfilePicURL: info.Picture,
	}, nil
}

// SignInWithCallback runs SignIn and passes its result to fn.
func (d *Desktop) SignInWithCallback(ctx context.Context, fn auth.ResultFunc) {
	auth.Deliver(ctx, d.SignIn, fn)
}

// SignOut revokes the token stored for userID and deletes it once Google confirms.
// An empty userID is logged and ignored.
func (d *Desktop) SignOut(ctx context.Context, userID string) {
	if userID == "" {
		d.log.WarnContext(ctx, "sign out skipped: user id is empty")
		return
	}
	log := d.log.With(logger.UserID(userID))

	token, err := credstore.GetJSON[oauth2.Token](ctx, d.store, userID)
	if err != nil {
		log.ErrorContext(ctx, "no stored credential to revoke", logger.Error(err))
		return
	}

	form := url.Values{"token": {token.AccessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.opts.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		log.ErrorContext(ctx, "build revoke request failed", logger.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.opts.httpClient.Do(req)
	if err != nil {
		log.ErrorContext(ctx, "revoke request failed", logger.Error(err))
		return
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.ErrorContext(ctx, "revoke rejected", logger.Status(resp.StatusCode))
		return
	}
	if err := d.store.Delete(ctx, userID); err != nil {
		log.ErrorContext(ctx, "delete stored credential failed", logger.Error(err))
		return
	}
	d.signedOut(ctx)
}

// redirectURL keeps the configured host, which must match the registered redirect URI,
// and takes the port from the bound listener.
func redirectURL(configured, bound string) string {
	host, _, err := net.SplitHostPort(configured)
	if err != nil || host == "" {
		host = "localhost"
	}
	_, port, err := net.SplitHostPort(bound)
	if err != nil {
		return "http://" + bound + CallbackPath
	}
	return "http://" + net.JoinHostPort(host, port) + CallbackPath
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}

var _ auth.Provider = (*Desktop)(nil)

package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrymomot/signin/pkg/auth"
	"github.com/dmitrymomot/signin/pkg/flow"
	"github.com/dmitrymomot/signin/pkg/idtoken"
	"github.com/dmitrymomot/signin/pkg/logger"
)

// IdentityServices is the google.accounts namespace of Google Identity Services.
type IdentityServices interface {
	Initialize(cfg IDConfiguration) error
	Prompt(listener func(PromptMoment)) error
	RenderButton(elementID string, cfg ButtonConfiguration) error
	DisableAutoSelect()
	InitTokenClient(cfg TokenClientConfig) (TokenClient, error)
}

// TokenClient is a google.accounts.oauth2 token client.
type TokenClient interface {
	RequestAccessToken(override OverridableTokenClientConfig)
}

// Document is the part of the DOM the adapter touches.
type Document interface {
	// HasScript reports whether the library at src is already loaded.
	HasScript(src string) bool
	// AppendScript injects src once and reports the outcome through onLoad or onError.
	AppendScript(src string, onLoad func(), onError func(error))
	// ClickButton dispatches a click on the element matching selector inside elementID.
	ClickButton(elementID, selector string) error
}

const (
	libraryNotLoaded flow.State = "library_not_loaded"
	loadingScript    flow.State = "loading_script"
	libraryLoaded    flow.State = "library_loaded"
	libraryFailed    flow.State = "library_failed"
	clientReady      flow.State = "initialized"

	evInject      flow.Event = "inject"
	evLoaded      flow.Event = "loaded"
	evLoadFailed  flow.Event = "load_failed"
	evInitialized flow.Event = "initialized"
)

var loaderTransitions = []flow.Transition{
	{From: libraryNotLoaded, Event: evInject, To: loadingScript},
	{From: libraryNotLoaded, Event: evLoaded, To: libraryLoaded},
	{From: loadingScript, Event: evLoaded, To: libraryLoaded},
	{From: loadingScript, Event: evLoadFailed, To: libraryFailed},
	{From: libraryLoaded, Event: evInitialized, To: clientReady},
}

// scriptLoader injects the GSI script at most once and lets callers wait for it.
type scriptLoader struct {
	doc     Document
	machine *flow.Machine[struct{}]
	once    sync.Once
	ready   chan struct{}
	err     error
}

func newScriptLoader(doc Document, opts ...flow.Option) *scriptLoader {
	return &scriptLoader{
		doc:     doc,
		machine: flow.New[struct{}](WebName+"/script", libraryNotLoaded, loaderTransitions, opts...),
		ready:   make(chan struct{}),
	}
}

func (l *scriptLoader) load() {
	l.once.Do(func() {
		if l.doc.HasScript(GSIClientURL) {
			_ = l.machine.Fire(evLoaded)
			close(l.ready)
			return
		}
		_ = l.machine.Fire(evInject)
		var done sync.Once
		l.doc.AppendScript(GSIClientURL,
			func() {
				done.Do(func() {
					_ = l.machine.Fire(evLoaded)
					close(l.ready)
				})
			},
			func(err error) {
				done.Do(func() {
					_ = l.machine.Fire(evLoadFailed)
					l.err = fmt.Errorf("%w: %w", ErrScriptLoad, err)
					close(l.ready)
				})
			},
		)
	})
}

func (l *scriptLoader) wait(ctx context.Context) error {
	l.load()
	select {
	case <-l.ready:
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *scriptLoader) loaded() bool {
	select {
	case <-l.ready:
		return l.err == nil
	default:
		return false
	}
}

const (
	webIdle         flow.State = "idle"
	webOneTapPrompt flow.State = "one_tap_prompt"
	webButtonClick  flow.State = "button_click"
	webTokenFlow    flow.State = "token_flow"

	evPrompt       flow.Event = "prompt"
	evClick        flow.Event = "click"
	evRequestToken flow.Event = "request_token"
)

var webTransitions = []flow.Transition{
	{From: webIdle, Event: evPrompt, To: webOneTapPrompt},
	{From: webOneTapPrompt, Event: evClick, To: webButtonClick},
	{From: webIdle, Event: evRequestToken, To: webTokenFlow},
}

// Web signs in through Google Identity Services in the browser.
type Web struct {
	base
	ids     IdentityServices
	doc     Document
	hidden  HiddenButtonStrategy
	loader  *scriptLoader
	machine *flow.Machine[*auth.User]

	initOnce sync.Once
	initErr  error

	mu      sync.Mutex
	pending *flow.Attempt[*auth.User]
}

// NewWeb requires a web client id and both bridges. The GSI script starts loading immediately.
func NewWeb(cfg auth.Config, ids IdentityServices, doc Document, opts ...Option) (*Web, error) {
	w := &Web{base: newBase(WebName, cfg, opts), ids: ids, doc: doc}
	switch {
	case strings.TrimSpace(cfg.WebClientID) == "":
		return nil, w.configError("web client id is required")
	case ids == nil || doc == nil:
		return nil, w.configError("identity services and document bridges are required")
	}
	w.hidden = w.opts.hiddenButton
	w.loader = newScriptLoader(doc, flow.WithLogger(w.log))
	w.machine = flow.New[*auth.User](WebName, webIdle, webTransitions, w.machineOptions()...)
	w.loader.load()
	return w, nil
}

// ready waits for the script and initializes the identity client once.
func (w *Web) ready(ctx context.Context) error {
	if err := w.loader.wait(ctx); err != nil {
		return err
	}
	w.initOnce.Do(func() {
		err := w.ids.Initialize(IDConfiguration{
			ClientID:          w.cfg.WebClientID,
			UXMode:            UXModePopup,
			UseFedCMForPrompt: true,
			Callback:          w.onCredential,
		})
		if err != nil {
			w.initErr = auth.NewError(w.name, "initialize", auth.ErrVendorSDK, err)
			return
		}
		_ = w.loader.machine.Fire(evInitialized)
		if err := w.hidden.Render(w.ids); err != nil {
			w.log.WarnContext(ctx, "render hidden button failed", logger.Error(err))
		}
	})
	return w.initErr
}

func (w *Web) readyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ae *auth.Error
	if errors.As(err, &ae) {
		return err
	}
	return auth.NewError(w.name, "load library", auth.ErrVendorSDK, err)
}

// SignIn runs the access-token flow: the account chooser, then a userinfo lookup.
func (w *Web) SignIn(ctx context.Context) (*auth.User, error) {
	att, err := w.machine.Begin(ctx)
	if err != nil {
		return nil, w.inProgress(err)
	}
	go w.runTokenFlow(att)
	return att.Wait()
}

func (w *Web) runTokenFlow(att *flow.Attempt[*auth.User]) {
	ctx := att.Context()
	if err := w.ready(ctx); err != nil {
		att.Reject(w.readyError(err))
		return
	}
	if err := att.Fire(evRequestToken); err != nil {
		att.Reject(err)
		return
	}

	scope := strings.Join(WebScopes, " ")
	client, err := w.ids.InitTokenClient(TokenClientConfig{
		ClientID: w.cfg.WebClientID,
		Scope:    scope,
		Callback: func(resp TokenResponse) { go w.onToken(att, resp) },
	})
	if err != nil {
		att.Reject(auth.NewError(w.name, "init token client", auth.ErrVendorSDK, err))
		return
	}
	client.RequestAccessToken(OverridableTokenClientConfig{
		Scope:                scope,
		IncludeGrantedScopes: true,
		Prompt:               PromptSelectAccount,
	})
}

func (w *Web) onToken(att *flow.Attempt[*auth.User], resp TokenResponse) {
	ctx := att.Context()
	if resp.Error != "" {
		att.Reject(auth.NewError(w.name, "sign in", auth.ErrVendorSDK, fmt.Errorf("failed to get access token: %s", resp.Error)))
		return
	}
	if resp.AccessToken == "" {
		att.Reject(auth.NewError(w.name, "sign in", auth.ErrNetwork, ErrEmptyAccessToken))
		return
	}

	info, err := fetchUserInfo(ctx, w.opts.httpClient, w.opts.userInfoURL, resp.AccessToken)
	if err != nil {
		w.log.ErrorContext(ctx, "fetch user info failed", logger.Error(err))
		att.Reject(auth.NewError(w.name, "sign in", auth.ErrNetwork, err))
		return
	}
	att.Resolve(&auth.User{
		ID:            info.ID,
		AccessToken:   resp.AccessToken,
		Name:          info.Name,
		Email:         info.Email,
		ProfilePicURL: info.Picture,
	})
}

// SignInOneTap runs the identity-token flow: the one-tap prompt, falling back to the
// hidden button when the prompt is skipped or not displayed.
func (w *Web) SignInOneTap(ctx context.Context) (*auth.User, error) {
	att, err := w.machine.Begin(ctx)
	if err != nil {
		return nil, w.inProgress(err)
	}
	go w.runOneTap(att)
	return att.Wait()
}

func (w *Web) runOneTap(att *flow.Attempt[*auth.User]) {
	ctx := att.Context()
	if err := w.ready(ctx); err != nil {
		att.Reject(w.readyError(err))
		return
	}

	w.mu.Lock()
	w.pending = att
	w.mu.Unlock()
	att.Defer(func() {
		w.mu.Lock()
		if w.pending == att {
			w.pending = nil
		}
		w.mu.Unlock()
	})

	if err := att.Fire(evPrompt); err != nil {
		att.Reject(err)
		return
	}
	err := w.ids.Prompt(func(m PromptMoment) {
		if m.Dismissed {
			w.log.DebugContext(ctx, "one tap dismissed", logger.Event(m.DismissedReason))
			if m.DismissedReason != DismissedCredentialReturned {
				att.Reject(auth.NewError(w.name, "prompt", auth.ErrUserCancelled,
					fmt.Errorf("%w: %s", ErrPromptDismissed, m.DismissedReason)))
				return
			}
		}
		handled, err := w.hidden.Handle(w.doc, m)
		if !handled {
			return
		}
		w.log.DebugContext(ctx, "one tap unavailable, clicking hidden button")
		_ = att.Fire(evClick)
		if err != nil {
			att.Reject(auth.NewError(w.name, "click hidden button", auth.ErrVendorSDK, err))
		}
	})
	if err != nil {
		att.Reject(auth.NewError(w.name, "prompt", auth.ErrVendorSDK, err))
	}
}

// onCredential receives the identity-token callback registered with Initialize.
func (w *Web) onCredential(resp CredentialResponse) {
	w.mu.Lock()
	att := w.pending
	w.mu.Unlock()
	if att == nil {
		w.log.Warn("credential received without a pending sign in")
		return
	}

	if resp.Credential == "" {
		att.Reject(auth.NewError(w.name, "sign in", auth.ErrVendorSDK, errors.New("google sign in failed")))
		return
	}
	claims, err := idtoken.Decode(resp.Credential)
	if err != nil {
		att.Reject(auth.NewError(w.name, "decode credential", auth.ErrVendorSDK, err))
		return
	}
	user := claims.User()
	att.Resolve(&user)
}

// SignInWithCallback runs SignIn and passes its result to fn.
func (w *Web) SignInWithCallback(ctx context.Context, fn auth.ResultFunc) {
	auth.Deliver(ctx, w.SignIn, fn)
}

// SignOut disables one-tap auto select. userID is ignored.
func (w *Web) SignOut(ctx context.Context, _ string) {
	if !w.loader.loaded() {
		w.log.WarnContext(ctx, "sign out skipped: identity library not loaded")
		return
	}
	w.ids.DisableAutoSelect()
	w.signedOut(ctx)
}

var _ auth.Provider = (*Web)(nil)

package apple

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dmitrymomot/signin/pkg/auth"
	"github.com/dmitrymomot/signin/pkg/flow"
	"github.com/dmitrymomot/signin/pkg/idtoken"
	"github.com/dmitrymomot/signin/pkg/logger"
	"github.com/dmitrymomot/signin/pkg/supabase"
)

// Adapter names, also used as machine names and metric labels.
const (
	IOSName      = "apple/ios"
	SupabaseName = "apple/supabase"
)

// AuthenticationServices error identification.
const (
	AuthorizationErrorDomain   = "com.apple.AuthenticationServices.AuthorizationError"
	AuthorizationErrorCanceled = 1001
)

// Scope is an ASAuthorization scope.
type Scope string

const (
	ScopeEmail    Scope = "email"
	ScopeFullName Scope = "full_name"
)

// DefaultScopes are requested by every sign-in.
var DefaultScopes = []Scope{ScopeEmail, ScopeFullName}

// AppleIDRequest describes the ASAuthorizationAppleIDRequest the host creates.
// Nonce is the SHA-256 hex digest of the raw nonce.
type AppleIDRequest struct {
	Scopes []Scope
	Nonce  string
}

// Credential is the credential an authorization produced.
// It is either *AppleIDCredential or *PasswordCredential.
type Credential interface {
	credential()
}

// AppleIDCredential mirrors ASAuthorizationAppleIDCredential. Email and names are
// only present on the first authorization of the app.
type AppleIDCredential struct {
	User              string
	IdentityToken     []byte
	AuthorizationCode []byte
	Email             string
	GivenName         string
	FamilyName        string
}

// PasswordCredential mirrors ASPasswordCredential.
type PasswordCredential struct {
	User     string
	Password string
}

func (*AppleIDCredential) credential()  {}
func (*PasswordCredential) credential() {}

// AuthorizationDelegate receives the outcome of one request. The host keeps it as the
// ASAuthorizationController delegate and presentation context provider.
type AuthorizationDelegate interface {
	DidComplete(cred Credential)
	// DidFail receives the NSError as *auth.NativeError.
	DidFail(err error)
	PresentationAnchor() (any, error)
}

// AuthorizationController is implemented by the iOS host around ASAuthorizationController.
type AuthorizationController interface {
	PerformRequests(req AppleIDRequest, d AuthorizationDelegate) error
}

// AnchorResolver returns the window authorization UI is presented in.
type AnchorResolver interface {
	Anchor() (any, error)
}

// AnchorFunc adapts a function to AnchorResolver.
type AnchorFunc func() (any, error)

func (f AnchorFunc) Anchor() (any, error) { return f() }

// IDTokenExchanger turns an Apple identity token into a session user.
type IDTokenExchanger interface {
	SignInWithIDToken(ctx context.Context, provider supabase.OAuthProvider, idToken, nonce string) (*auth.User, error)
}

const (
	stIdle            flow.State = "idle"
	stPerformRequest  flow.State = "perform_request"
	stDelegateSuccess flow.State = "delegate_success"
	stDelegateError   flow.State = "delegate_error"

	evPerform flow.Event = "perform"
	evSuccess flow.Event = "success"
	evError   flow.Event = "error"
)

// IOS signs in with AuthenticationServices.
type IOS struct {
	cfg        auth.Config
	opts       *options
	log        *slog.Logger
	controller AuthorizationController
	anchor     AnchorResolver
	machine    *flow.Machine[*auth.User]

	mu       sync.Mutex
	retained *delegate
}

// NewIOS requires the controller bridge and an anchor resolver.
func NewIOS(cfg auth.Config, controller AuthorizationController, anchor AnchorResolver, opts ...Option) (*IOS, error) {
	if cfg.ProviderID == "" {
		cfg.ProviderID = auth.AppleProviderID
	}
	o := newOptions(opts)
	i := &IOS{
		cfg:        cfg,
		opts:       o,
		log:        o.logger.With(logger.Provider(cfg.ProviderID), logger.Component(IOSName)),
		controller: controller,
		anchor:     anchor,
	}
	switch {
	case controller == nil:
		return nil, auth.NewError(IOSName, "init", auth.ErrConfiguration, errors.New("authorization controller is required"))
	case anchor == nil:
		return nil, auth.NewError(IOSName, "init", auth.ErrConfiguration, errors.New("anchor resolver is required"))
	}

	mopts := []flow.Option{flow.WithLogger(i.log)}
	for _, obs := range o.observers {
		mopts = append(mopts, flow.WithObserver(obs))
	}
	i.machine = flow.New[*auth.User](IOSName, stIdle, []flow.Transition{
		{From: stIdle, Event: evPerform, To: stPerformRequest},
		{From: stPerformRequest, Event: evSuccess, To: stDelegateSuccess},
		{From: stPerformRequest, Event: evError, To: stDelegateError},
	}, mopts...)
	return i, nil
}

// ProviderID returns the config entry the adapter was built from.
func (i *IOS) ProviderID() string {
	return i.cfg.ProviderID
}

// Pending reports whether a request delegate is retained.
func (i *IOS) Pending() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.retained != nil
}

// SignIn performs an Apple ID authorization request and waits for its delegate.
func (i *IOS) SignIn(ctx context.Context) (*auth.User, error) {
	att, err := i.machine.Begin(ctx)
	if err != nil {
		return nil, auth.NewError(IOSName, "sign in", auth.ErrSignInInProgress, err)
	}

	raw, err := i.opts.nonce()
	if err != nil {
		att.Reject(auth.NewError(IOSName, "sign in", auth.ErrVendorSDK, fmt.Errorf("failed to generate nonce: %w", err)))
		return att.Wait()
	}

	d := &delegate{ios: i, att: att, nonce: raw}
	i.retain(d)
	att.Defer(func() {
		d.release()
		i.drop(d)
	})

	if err := att.Fire(evPerform); err != nil {
		att.Reject(err)
		return att.Wait()
	}
	req := AppleIDRequest{Scopes: append([]Scope(nil), DefaultScopes...), Nonce: HashNonce(raw)}
	if err := i.controller.PerformRequests(req, d); err != nil {
		i.log.ErrorContext(att.Context(), "failed to perform authorization request", logger.Error(err))
		att.Reject(auth.NewError(IOSName, "sign in", auth.ErrVendorSDK, err))
	}
	return att.Wait()
}

// SignInWithCallback runs SignIn and passes its result to fn.
func (i *IOS) SignInWithCallback(ctx context.Context, fn auth.ResultFunc) {
	auth.Deliver(ctx, i.SignIn, fn)
}

// SignOut only logs: Sign in with Apple keeps no session on the device.
func (i *IOS) SignOut(ctx context.Context, userID string) {
	i.log.InfoContext(ctx, "signed out", logger.UserID(userID))
	for _, obs := range i.opts.observers {
		if so, ok := obs.(auth.SignOutObserver); ok {
			so.SignedOut(IOSName)
		}
	}
}

func (i *IOS) retain(d *delegate) {
	i.mu.Lock()
	i.retained = d
	i.mu.Unlock()
}

func (i *IOS) drop(d *delegate) {
	i.mu.Lock()
	if i.retained == d {
		i.retained = nil
	}
	i.mu.Unlock()
}

func (i *IOS) complete(att *flow.Attempt[*auth.User], cred Credential, rawNonce string) {
	ctx := att.Context()
	switch c := cred.(type) {
	case *AppleIDCredential:
		if c == nil {
			break
		}
		token, ok := identityToken(c.IdentityToken)
		if !ok {
			_ = att.Fire(evError)
			i.log.ErrorContext(ctx, "missing identity token")
			att.Reject(auth.NewError(IOSName, "sign in", auth.ErrNoIdentityToken, nil))
			return
		}
		_ = att.Fire(evSuccess)
		if i.opts.exchanger != nil {
			go i.exchange(att, c, token, rawNonce)
			return
		}
		i.resolveLocal(att, c, token)
		return
	case *PasswordCredential:
		_ = att.Fire(evError)
		att.Reject(auth.NewError(IOSName, "sign in", auth.ErrUnexpectedCredentialType, errors.New("password credential")))
		return
	}
	_ = att.Fire(evError)
	att.Reject(auth.NewError(IOSName, "sign in", auth.ErrUnexpectedCredentialType, fmt.Errorf("%T", cred)))
}

func (i *IOS) resolveLocal(att *flow.Attempt[*auth.User], c *AppleIDCredential, token string) {
	claims, err := idtoken.Decode(token)
	if err != nil {
		att.Reject(auth.NewError(IOSName, "sign in", auth.ErrVendorSDK, err))
		return
	}
	u := claims.User()
	if u.ID == "" {
		u.ID = c.User
	}
	if u.Email == "" {
		u.Email = c.Email
	}
	if name := fullName(c); name != "" {
		u.Name = name
	}
	att.Resolve(&u)
}

func (i *IOS) exchange(att *flow.Attempt[*auth.User], c *AppleIDCredential, token, rawNonce string) {
	ctx := att.Context()
	u, err := i.opts.exchanger.SignInWithIDToken(ctx, supabase.ProviderApple, token, rawNonce)
	if err != nil {
		i.log.ErrorContext(ctx, "id token exchange failed", logger.Error(err))
		att.Reject(auth.NewError(IOSName, "exchange id token", auth.ErrVendorSDK, err))
		return
	}
	if u == nil {
		att.Reject(auth.NewError(IOSName, "exchange id token", auth.ErrNoUser, nil))
		return
	}
	out := u.WithIDToken(token)
	if out.Name == "" {
		out.Name = fullName(c)
	}
	att.Resolve(&out)
}

func (i *IOS) fail(att *flow.Attempt[*auth.User], err error) {
	_ = att.Fire(evError)
	kind := auth.ErrVendorSDK
	var native *auth.NativeError
	if errors.As(err, &native) && native.Matches(AuthorizationErrorDomain, AuthorizationErrorCanceled) {
		kind = auth.ErrUserCancelled
		i.log.InfoContext(att.Context(), "user cancelled the authorization")
	} else {
		i.log.ErrorContext(att.Context(), "authorization failed", logger.Error(err))
	}
	att.Reject(auth.NewError(IOSName, "sign in", kind, err))
}

// delegate is the per-request AuthorizationDelegate. It forwards to its attempt until
// the attempt finishes and ignores every callback after that.
type delegate struct {
	ios   *IOS
	nonce string

	mu  sync.Mutex
	att *flow.Attempt[*auth.User]
}

func (d *delegate) attempt() *flow.Attempt[*auth.User] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.att
}

func (d *delegate) release() {
	d.mu.Lock()
	d.att = nil
	d.mu.Unlock()
}

func (d *delegate) DidComplete(cred Credential) {
	if att := d.attempt(); att != nil {
		d.ios.complete(att, cred, d.nonce)
		return
	}
	d.ios.log.Debug("authorization completed after release")
}

func (d *delegate) DidFail(err error) {
	if att := d.attempt(); att != nil {
		d.ios.fail(att, err)
		return
	}
	d.ios.log.Debug("authorization failed after release", logger.Error(err))
}

func (d *delegate) PresentationAnchor() (any, error) {
	if d.attempt() == nil {
		return nil, ErrDelegateReleased
	}
	anchor, err := d.ios.anchor.Anchor()
	if err == nil && anchor == nil {
		err = ErrNoAnchor
	}
	return anchor, err
}

// identityToken decodes the UTF-8 token bytes.
func identityToken(b []byte) (string, bool) {
	if len(b) == 0 || !utf8.Valid(b) {
		return "", false
	}
	s := strings.TrimSpace(string(b))
	return s, s != ""
}

func fullName(c *AppleIDCredential) string {
	return strings.TrimSpace(c.GivenName + " " + c.FamilyName)
}

// HashNonce returns the SHA-256 hex digest sent in AppleIDRequest.Nonce.
func HashNonce(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomNonce() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

var (
	_ auth.Provider         = (*IOS)(nil)
	_ AuthorizationDelegate = (*delegate)(nil)
)

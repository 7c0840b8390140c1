package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrymomot/signin/pkg/auth"
	"github.com/dmitrymomot/signin/pkg/flow"
	"github.com/dmitrymomot/signin/pkg/idtoken"
	"github.com/dmitrymomot/signin/pkg/logger"
)

// GoogleIDTokenCredentialType is the custom credential type carrying a Google ID token.
const GoogleIDTokenCredentialType = "com.google.android.libraries.identity.googleid.TYPE_GOOGLE_ID_TOKEN_CREDENTIAL"

// CredentialOption is one option of a Credential Manager request.
// It is implemented by GoogleIDOption and SignInWithGoogleOption.
type CredentialOption interface {
	credentialOption()
}

// GoogleIDOption mirrors GetGoogleIdOption: the bottom sheet listing Google accounts.
type GoogleIDOption struct {
	ServerClientID             string
	FilterByAuthorizedAccounts bool
	AutoSelectEnabled          bool
	Nonce                      string
}

// SignInWithGoogleOption mirrors GetSignInWithGoogleOption: the explicit sign-in sheet.
type SignInWithGoogleOption struct {
	ServerClientID string
	Nonce          string
}

func (GoogleIDOption) credentialOption()         {}
func (SignInWithGoogleOption) credentialOption() {}

// CredentialRequest is a GetCredentialRequest.
type CredentialRequest struct {
	Options []CredentialOption
}

// Credential is the credential returned by Credential Manager. For custom credentials of
// GoogleIDTokenCredentialType the host copies the parsed GoogleIdTokenCredential fields.
type Credential struct {
	Type              string
	ID                string
	IDToken           string
	DisplayName       string
	PhoneNumber       string
	ProfilePictureURI string
}

// CredentialManager is implemented by the Android host around androidx.credentials.
// GetCredential returns ErrNoCredential or ErrCredentialCancelled for the matching exceptions.
type CredentialManager interface {
	GetCredential(ctx context.Context, activity any, req CredentialRequest) (*Credential, error)
	ClearCredentialState(ctx context.Context) error
}

const (
	androidIdle            flow.State = "idle"
	androidRequestOneTap   flow.State = "request_one_tap_credential"
	androidRequestExplicit flow.State = "request_explicit_sign_in_credential"

	evRequestCredential flow.Event = "request_credential"
	evNoCredential      flow.Event = "no_credential"
)

var androidTransitions = []flow.Transition{
	{From: androidIdle, Event: evRequestCredential, To: androidRequestOneTap},
	{From: androidRequestOneTap, Event: evNoCredential, To: androidRequestExplicit},
}

// Android signs in through Credential Manager.
type Android struct {
	base
	cm      CredentialManager
	machine *flow.Machine[*auth.User]
}

// NewAndroid requires a web client id and the activity in cfg.Context.
func NewAndroid(cfg auth.Config, cm CredentialManager, opts ...Option) (*Android, error) {
	a := &Android{base: newBase(AndroidName, cfg, opts), cm: cm}
	switch {
	case strings.TrimSpace(cfg.WebClientID) == "":
		return nil, a.configError("web client id is required")
	case cfg.Context.IsZero():
		return nil, a.configError("android context is required")
	case cm == nil:
		return nil, a.configError("credential manager is required")
	}
	a.machine = flow.New[*auth.User](AndroidName, androidIdle, androidTransitions, a.machineOptions()...)
	return a, nil
}

// SignIn shows the account bottom sheet, falling back to the explicit sign-in sheet
// when the device has no usable credential.
func (a *Android) SignIn(ctx context.Context) (*auth.User, error) {
	att, err := a.machine.Begin(ctx)
	if err != nil {
		return nil, a.inProgress(err)
	}
	go a.run(att)
	return att.Wait()
}

// SignInWithCallback runs SignIn and passes its result to fn.
func (a *Android) SignInWithCallback(ctx context.Context, fn auth.ResultFunc) {
	auth.Deliver(ctx, a.SignIn, fn)
}

func (a *Android) run(att *flow.Attempt[*auth.User]) {
	ctx := att.Context()
	if err := att.Fire(evRequestCredential); err != nil {
		att.Reject(err)
		return
	}

	cred, err := a.requestCredential(ctx, GoogleIDOption{ServerClientID: a.cfg.WebClientID})
	if errors.Is(err, ErrNoCredential) {
		a.log.InfoContext(ctx, "no authorized credential, requesting explicit sign in")
		if ferr := att.Fire(evNoCredential); ferr != nil {
			att.Reject(ferr)
			return
		}
		cred, err = a.requestCredential(ctx, SignInWithGoogleOption{ServerClientID: a.cfg.WebClientID})
		if errors.Is(err, ErrNoCredential) {
			a.log.ErrorContext(ctx, "no credential after explicit sign in, make sure google play services is up to date", logger.Error(err))
		}
	}
	if err != nil {
		att.Reject(a.credentialError(err))
		return
	}

	user, err := a.userFromCredential(cred)
	if err != nil {
		att.Reject(err)
		return
	}
	att.Resolve(user)
}

func (a *Android) requestCredential(ctx context.Context, opt CredentialOption) (*Credential, error) {
	return a.cm.GetCredential(ctx, a.cfg.Context.Handle, CredentialRequest{Options: []CredentialOption{opt}})
}

func (a *Android) credentialError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, ErrCredentialCancelled):
		return auth.NewError(a.name, "get credential", auth.ErrUserCancelled, err)
	default:
		return auth.NewError(a.name, "get credential", auth.ErrVendorSDK, err)
	}
}

func (a *Android) userFromCredential(cred *Credential) (*auth.User, error) {
	if cred == nil {
		return nil, auth.NewError(a.name, "sign in", auth.ErrNoUser, nil)
	}
	if cred.Type != GoogleIDTokenCredentialType {
		return nil, auth.NewError(a.name, "sign in", auth.ErrUnexpectedCredentialType, fmt.Errorf("credential type %q", cred.Type))
	}
	if cred.IDToken == "" {
		return nil, auth.NewError(a.name, "sign in", auth.ErrNoIdentityToken, nil)
	}

	user := &auth.User{
		ID:            cred.ID,
		IDToken:       cred.IDToken,
		Name:          cred.DisplayName,
		Email:         cred.ID,
		PhoneNumber:   cred.PhoneNumber,
		ProfilePicURL: cred.ProfilePictureURI,
	}
	if claims, err := idtoken.Decode(cred.IDToken); err == nil && claims.Subject != "" {
		user.ID = claims.Subject
	} else if err != nil {
		a.log.Warn("could not decode id token, using credential id", logger.Error(err))
	}
	return user, nil
}

// SignOut clears the Credential Manager state. userID is ignored.
func (a *Android) SignOut(ctx context.Context, _ string) {
	if err := a.cm.ClearCredentialState(ctx); err != nil {
		a.log.ErrorContext(ctx, "clear credential state failed", logger.Error(err))
		return
	}
	a.signedOut(ctx)
}

var _ auth.Provider = (*Android)(nil)

package google

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrymomot/signin/pkg/auth"
	"github.com/dmitrymomot/signin/pkg/flow"
	"github.com/dmitrymomot/signin/pkg/logger"
)

// GoogleSignIn error identification.
const (
	GIDSignInErrorDomain       = "com.google.GIDSignIn"
	GIDSignInErrorCodeCanceled = -5
)

// ProfileImageDimension is the requested profile picture size in points.
const ProfileImageDimension = 350

// GIDSignInRequest is passed to GIDSignIn.SignIn.
type GIDSignInRequest struct {
	Presenter             any
	ClientID              string
	ProfileImageDimension int
}

// GIDUser is the signed-in GIDGoogleUser flattened by the host.
// ImageURL is resolved with GIDSignInRequest.ProfileImageDimension.
type GIDUser struct {
	UserID      string
	IDToken     string
	AccessToken string
	Name        string
	Email       string
	ImageURL    string
}

// GIDSignIn is implemented by the iOS host around GIDSignIn.sharedInstance.
// Errors are passed as *auth.NativeError built from the NSError.
type GIDSignIn interface {
	SignIn(req GIDSignInRequest, completion func(user *GIDUser, err error))
	SignOut()
}

// PresenterResolver returns the view controller sign-in UI is presented from.
type PresenterResolver interface {
	Presenter() (any, error)
}

// PresenterFunc adapts a function to PresenterResolver.
type PresenterFunc func() (any, error)

func (f PresenterFunc) Presenter() (any, error) { return f() }

const (
	iosIdle       flow.State = "idle"
	iosPresenting flow.State = "presenting"

	evPresent flow.Event = "present"
)

// IOS signs in through the GoogleSignIn SDK.
type IOS struct {
	base
	sdk       GIDSignIn
	presenter PresenterResolver
	machine   *flow.Machine[*auth.User]
}

// NewIOS requires a web client id, the SDK bridge and a presenter resolver.
func NewIOS(cfg auth.Config, sdk GIDSignIn, presenter PresenterResolver, opts ...Option) (*IOS, error) {
	i := &IOS{base: newBase(IOSName, cfg, opts), sdk: sdk, presenter: presenter}
	switch {
	case strings.TrimSpace(cfg.WebClientID) == "":
		return nil, i.configError("web client id is required")
	case sdk == nil:
		return nil, i.configError("google sign in sdk is required")
	case presenter == nil:
		return nil, i.configError("presenter resolver is required")
	}
	i.machine = flow.New[*auth.User](IOSName, iosIdle,
		[]flow.Transition{{From: iosIdle, Event: evPresent, To: iosPresenting}},
		i.machineOptions()...)
	return i, nil
}

// SignIn presents the Google sign-in sheet over the root view controller.
func (i *IOS) SignIn(ctx context.Context) (*auth.User, error) {
	att, err := i.machine.Begin(ctx)
	if err != nil {
		return nil, i.inProgress(err)
	}

	presenter, err := i.presenter.Presenter()
	if err == nil && presenter == nil {
		err = ErrNoPresenter
	}
	if err != nil {
		att.Reject(auth.NewError(i.name, "sign in", auth.ErrVendorSDK, err))
		return att.Wait()
	}
	if err := att.Fire(evPresent); err != nil {
		att.Reject(err)
		return att.Wait()
	}

	i.sdk.SignIn(GIDSignInRequest{
		Presenter:             presenter,
		ClientID:              i.cfg.WebClientID,
		ProfileImageDimension: ProfileImageDimension,
	}, func(user *GIDUser, err error) {
		if !i.complete(att, user, err) {
			i.log.DebugContext(att.Context(), "late sign in completion ignored")
		}
	})
	return att.Wait()
}

func (i *IOS) complete(att *flow.Attempt[*auth.User], user *GIDUser, err error) bool {
	if err != nil {
		kind := auth.ErrVendorSDK
		var native *auth.NativeError
		if errors.As(err, &native) && native.Matches(GIDSignInErrorDomain, GIDSignInErrorCodeCanceled) {
			kind = auth.ErrUserCancelled
		}
		i.log.ErrorContext(att.Context(), "google sign in failed", logger.Error(err))
		return att.Reject(auth.NewError(i.name, "sign in", kind, err))
	}
	if user == nil || user.UserID == "" {
		return att.Reject(auth.NewError(i.name, "sign in", auth.ErrNoUser, nil))
	}
	return att.Resolve(&auth.User{
		ID:            user.UserID,
		IDToken:       user.IDToken,
		AccessToken:   user.AccessToken,
		Name:          user.Name,
		Email:         user.Email,
		ProfilePicURL: user.ImageURL,
	})
}

// SignInWithCallback runs SignIn and passes its result to fn.
func (i *IOS) SignInWithCallback(ctx context.Context, fn auth.ResultFunc) {
	auth.Deliver(ctx, i.SignIn, fn)
}

// SignOut signs the current user out of the SDK. userID is ignored.
func (i *IOS) SignOut(ctx context.Context, _ string) {
	i.sdk.SignOut()
	i.signedOut(ctx)
}

var _ auth.Provider = (*IOS)(nil)

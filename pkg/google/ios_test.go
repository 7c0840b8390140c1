package google_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/signin/pkg/auth"
	"github.com/dmitrymomot/signin/pkg/google"
)

type fakeGIDSignIn struct {
	mu         sync.Mutex
	requests   []google.GIDSignInRequest
	completion func(*google.GIDUser, error)
	user       *google.GIDUser
	err        error
	hold       bool
	signOuts   int
}

func (f *fakeGIDSignIn) SignIn(req google.GIDSignInRequest, completion func(*google.GIDUser, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	f.completion = completion
	if !f.hold {
		user, err := f.user, f.err
		go completion(user, err)
	}
}

func (f *fakeGIDSignIn) SignOut() {
	f.mu.Lock()
	f.signOuts++
	f.mu.Unlock()
}

var rootViewController = google.PresenterFunc(func() (any, error) { return "root-vc", nil })

func TestNewIOS_Validation(t *testing.T) {
	t.Parallel()

	_, err := google.NewIOS(auth.Config{}, &fakeGIDSignIn{}, rootViewController)
	assert.ErrorIs(t, err, auth.ErrConfiguration)

	_, err = google.NewIOS(auth.Config{WebClientID: "id"}, nil, rootViewController)
	assert.ErrorIs(t, err, auth.ErrConfiguration)

	_, err = google.NewIOS(auth.Config{WebClientID: "id"}, &fakeGIDSignIn{}, nil)
	assert.ErrorIs(t, err, auth.ErrConfiguration)
}

func TestIOS_SignIn(t *testing.T) {
	t.Parallel()

	t.Run("maps the google user", func(t *testing.T) {
		t.Parallel()
		sdk := &fakeGIDSignIn{user: &google.GIDUser{
			UserID:      "1122334455",
			IDToken:     "id-token",
			AccessToken: "access-token",
			Name:        "Jane Doe",
			Email:       "jane@example.com",
			ImageURL:    "https://lh3.googleusercontent.com/a/photo=s350",
		}}
		i, err := google.NewIOS(auth.Config{WebClientID: "web-client-id"}, sdk, rootViewController)
		require.NoError(t, err)

		user, err := i.SignIn(context.Background())
		require.NoError(t, err)
		assert.Equal(t, auth.User{
			ID:            "1122334455",
			IDToken:       "id-token",
			AccessToken:   "access-token",
			Name:          "Jane Doe",
			Email:         "jane@example.com",
			ProfilePicURL: "https://lh3.googleusercontent.com/a/photo=s350",
		}, *user)

		require.Len(t, sdk.requests, 1)
		assert.Equal(t, google.GIDSignInRequest{
			Presenter:             "root-vc",
			ClientID:              "web-client-id",
			ProfileImageDimension: 350,
		}, sdk.requests[0])
	})

	t.Run("cancel code maps to user cancelled", func(t *testing.T) {
		t.Parallel()
		sdk := &fakeGIDSignIn{err: &auth.NativeError{Domain: google.GIDSignInErrorDomain, Code: google.GIDSignInErrorCodeCanceled, Message: "The user canceled the sign-in flow."}}
		i, err := google.NewIOS(auth.Config{WebClientID: "id"}, sdk, rootViewController)
		require.NoError(t, err)

		_, err = i.SignIn(context.Background())
		assert.ErrorIs(t, err, auth.ErrUserCancelled)

		var native *auth.NativeError
		require.ErrorAs(t, err, &native)
		assert.Equal(t, -5, native.Code)
	})

	t.Run("other sdk errors", func(t *testing.T) {
		t.Parallel()
		sdk := &fakeGIDSignIn{err: &auth.NativeError{Domain: google.GIDSignInErrorDomain, Code: -4, Message: "no auth in keychain"}}
		i, err := google.NewIOS(auth.Config{WebClientID: "id"}, sdk, rootViewController)
		require.NoError(t, err)

		_, err = i.SignIn(context.Background())
		assert.ErrorIs(t, err, auth.ErrVendorSDK)
		assert.NotErrorIs(t, err, auth.ErrUserCancelled)
	})

	t.Run("nil user resolves with no user", func(t *testing.T) {
		t.Parallel()
		i, err := google.NewIOS(auth.Config{WebClientID: "id"}, &fakeGIDSignIn{}, rootViewController)
		require.NoError(t, err)

		_, err = i.SignIn(context.Background())
		assert.ErrorIs(t, err, auth.ErrNoUser)
	})

	t.Run("missing presenter", func(t *testing.T) {
		t.Parallel()
		sdk := &fakeGIDSignIn{}
		noWindow := google.PresenterFunc(func() (any, error) { return nil, nil })
		i, err := google.NewIOS(auth.Config{WebClientID: "id"}, sdk, noWindow)
		require.NoError(t, err)

		_, err = i.SignIn(context.Background())
		assert.ErrorIs(t, err, google.ErrNoPresenter)
		assert.Empty(t, sdk.requests)
	})
}

func TestIOS_CancelledContextFreesSlot(t *testing.T) {
	t.Parallel()

	sdk := &fakeGIDSignIn{hold: true}
	i, err := google.NewIOS(auth.Config{WebClientID: "id"}, sdk, rootViewController)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = i.SignIn(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// a late completion is ignored
	sdk.mu.Lock()
	late := sdk.completion
	sdk.hold = false
	sdk.user = &google.GIDUser{UserID: "second"}
	sdk.mu.Unlock()
	late(&google.GIDUser{UserID: "late"}, nil)

	user, err := i.SignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", user.ID)
}

func TestIOS_SignOut(t *testing.T) {
	t.Parallel()

	sdk := &fakeGIDSignIn{}
	i, err := google.NewIOS(auth.Config{WebClientID: "id"}, sdk, rootViewController)
	require.NoError(t, err)

	i.SignOut(context.Background(), "")
	assert.Equal(t, 1, sdk.signOuts)
}

func TestPresenterFunc(t *testing.T) {
	t.Parallel()

	want := errors.New("no key window")
	_, err := google.PresenterFunc(func() (any, error) { return nil, want }).Presenter()
	assert.ErrorIs(t, err, want)
}

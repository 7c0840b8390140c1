package google_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/signin/pkg/auth"
	"github.com/dmitrymomot/signin/pkg/google"
)

type fakeIdentity struct {
	mu        sync.Mutex
	initCfg   *google.IDConfiguration
	inits     int
	rendered  []string
	disabled  int
	moment    *google.PromptMoment
	credOnTap string
	tokenCfg  google.TokenClientConfig
	override  google.OverridableTokenClientConfig
	tokenResp google.TokenResponse
}

func (f *fakeIdentity) Initialize(cfg google.IDConfiguration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	f.initCfg = &cfg
	return nil
}

// Prompt either reports the configured moment or returns a credential straight away.
func (f *fakeIdentity) Prompt(listener func(google.PromptMoment)) error {
	f.mu.Lock()
	moment, cred, cb := f.moment, f.credOnTap, f.initCfg.Callback
	f.mu.Unlock()
	go func() {
		if moment != nil {
			listener(*moment)
			return
		}
		cb(google.CredentialResponse{Credential: cred})
	}()
	return nil
}

func (f *fakeIdentity) RenderButton(id string, _ google.ButtonConfiguration) error {
	f.mu.Lock()
	f.rendered = append(f.rendered, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeIdentity) DisableAutoSelect() {
	f.mu.Lock()
	f.disabled++
	f.mu.Unlock()
}

func (f *fakeIdentity) InitTokenClient(cfg google.TokenClientConfig) (google.TokenClient, error) {
	f.mu.Lock()
	f.tokenCfg = cfg
	f.mu.Unlock()
	return tokenClientFunc(func(o google.OverridableTokenClientConfig) {
		f.mu.Lock()
		f.override = o
		resp := f.tokenResp
		f.mu.Unlock()
		cfg.Callback(resp)
	}), nil
}

type tokenClientFunc func(google.OverridableTokenClientConfig)

func (fn tokenClientFunc) RequestAccessToken(o google.OverridableTokenClientConfig) { fn(o) }

type fakeDocument struct {
	mu      sync.Mutex
	loaded  bool
	appends int
	hold    bool
	onLoad  func()
	loadErr error
	clicks  []string
	onClick func()
}

func (d *fakeDocument) HasScript(src string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded && src == google.GSIClientURL
}

func (d *fakeDocument) AppendScript(src string, onLoad func(), onError func(error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.appends++
	switch {
	case d.hold:
		d.onLoad = onLoad
	case d.loadErr != nil:
		go onError(d.loadErr)
	default:
		go onLoad()
	}
}

func (d *fakeDocument) ClickButton(id, selector string) error {
	d.mu.Lock()
	d.clicks = append(d.clicks, id+" "+selector)
	fn := d.onClick
	d.mu.Unlock()
	if fn != nil {
		go fn()
	}
	return nil
}

var webConfig = auth.Config{WebClientID: "web-client-id"}

func TestNewWeb_Validation(t *testing.T) {
	t.Parallel()

	_, err := google.NewWeb(auth.Config{}, &fakeIdentity{}, &fakeDocument{})
	assert.ErrorIs(t, err, auth.ErrConfiguration)

	_, err = google.NewWeb(webConfig, nil, &fakeDocument{})
	assert.ErrorIs(t, err, auth.ErrConfiguration)
}

func TestWeb_SignInOneTap(t *testing.T) {
	t.Parallel()

	token := makeJWT(t, map[string]any{
		"sub":     "1122334455",
		"name":    "Jane Doe",
		"email":   "jane@example.com",
		"picture": "https://lh3.googleusercontent.com/a/photo",
	})

	t.Run("prompt returns credential", func(t *testing.T) {
		t.Parallel()
		ids := &fakeIdentity{credOnTap: token}
		doc := &fakeDocument{}
		w, err := google.NewWeb(webConfig, ids, doc)
		require.NoError(t, err)

		user, err := w.SignInOneTap(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "1122334455", user.ID)
		assert.Equal(t, token, user.IDToken)
		assert.Equal(t, "Jane Doe", user.Name)
		assert.Equal(t, "https://lh3.googleusercontent.com/a/photo", user.ProfilePicURL)

		assert.Equal(t, google.UXModePopup, ids.initCfg.UXMode)
		assert.True(t, ids.initCfg.UseFedCMForPrompt)
		assert.Equal(t, []string{"gid"}, ids.rendered)
		assert.Empty(t, doc.clicks)
	})

	t.Run("skipped moment clicks the hidden button", func(t *testing.T) {
		t.Parallel()
		ids := &fakeIdentity{moment: &google.PromptMoment{Skipped: true}}
		doc := &fakeDocument{}
		doc.onClick = func() {
			ids.mu.Lock()
			cb := ids.initCfg.Callback
			ids.mu.Unlock()
			cb(google.CredentialResponse{Credential: token})
		}
		w, err := google.NewWeb(webConfig, ids, doc)
		require.NoError(t, err)

		user, err := w.SignInOneTap(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "1122334455", user.ID)
		assert.Equal(t, []string{"gid div[role='button']"}, doc.clicks)
	})

	t.Run("dismissed moment cancels without clicking", func(t *testing.T) {
		t.Parallel()
		for _, reason := range []string{"cancel_called", "flow_restarted"} {
			ids := &fakeIdentity{moment: &google.PromptMoment{Dismissed: true, DismissedReason: reason}}
			doc := &fakeDocument{}
			w, err := google.NewWeb(webConfig, ids, doc)
			require.NoError(t, err)

			user, err := w.SignInOneTap(context.Background())
			assert.ErrorIs(t, err, auth.ErrUserCancelled, reason)
			assert.ErrorIs(t, err, google.ErrPromptDismissed, reason)
			assert.Nil(t, user)

			doc.mu.Lock()
			assert.Empty(t, doc.clicks)
			doc.mu.Unlock()
		}
	})

	t.Run("credential returned dismissal keeps waiting", func(t *testing.T) {
		t.Parallel()
		ids := &fakeIdentity{moment: &google.PromptMoment{Dismissed: true, DismissedReason: google.DismissedCredentialReturned}}
		w, err := google.NewWeb(webConfig, ids, &fakeDocument{})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, err = w.SignInOneTap(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("empty credential", func(t *testing.T) {
		t.Parallel()
		w, err := google.NewWeb(webConfig, &fakeIdentity{}, &fakeDocument{})
		require.NoError(t, err)

		_, err = w.SignInOneTap(context.Background())
		assert.ErrorIs(t, err, auth.ErrVendorSDK)
	})
}

func newUserInfoServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ya29.web", r.Header.Get("Authorization"))
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(google.UserInfo{ID: "1122334455", Email: "jane@example.com", Name: "Jane Doe", Picture: "pic"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWeb_SignIn(t *testing.T) {
	t.Parallel()

	t.Run("access token flow", func(t *testing.T) {
		t.Parallel()
		info := newUserInfoServer(t, http.StatusOK)
		ids := &fakeIdentity{tokenResp: google.TokenResponse{AccessToken: "ya29.web"}}
		w, err := google.NewWeb(webConfig, ids, &fakeDocument{}, google.WithUserInfoURL(info.URL))
		require.NoError(t, err)

		user, err := w.SignIn(context.Background())
		require.NoError(t, err)
		assert.Equal(t, &auth.User{
			ID:            "1122334455",
			AccessToken:   "ya29.web",
			Name:          "Jane Doe",
			Email:         "jane@example.com",
			ProfilePicURL: "pic",
		}, user)

		assert.Equal(t, "web-client-id", ids.tokenCfg.ClientID)
		assert.Equal(t, "openid email profile", ids.tokenCfg.Scope)
		assert.Equal(t, google.OverridableTokenClientConfig{
			Scope:                "openid email profile",
			IncludeGrantedScopes: true,
			Prompt:               google.PromptSelectAccount,
		}, ids.override)
	})

	t.Run("token error", func(t *testing.T) {
		t.Parallel()
		ids := &fakeIdentity{tokenResp: google.TokenResponse{Error: "access_denied"}}
		w, err := google.NewWeb(webConfig, ids, &fakeDocument{})
		require.NoError(t, err)

		_, err = w.SignIn(context.Background())
		assert.ErrorIs(t, err, auth.ErrVendorSDK)
		assert.ErrorContains(t, err, "failed to get access token: access_denied")
	})

	t.Run("empty access token", func(t *testing.T) {
		t.Parallel()
		w, err := google.NewWeb(webConfig, &fakeIdentity{}, &fakeDocument{})
		require.NoError(t, err)

		_, err = w.SignIn(context.Background())
		assert.ErrorIs(t, err, auth.ErrNetwork)
		assert.ErrorIs(t, err, google.ErrEmptyAccessToken)
	})

	t.Run("userinfo failure", func(t *testing.T) {
		t.Parallel()
		info := newUserInfoServer(t, http.StatusInternalServerError)
		ids := &fakeIdentity{tokenResp: google.TokenResponse{AccessToken: "ya29.web"}}
		w, err := google.NewWeb(webConfig, ids, &fakeDocument{}, google.WithUserInfoURL(info.URL))
		require.NoError(t, err)

		_, err = w.SignIn(context.Background())
		assert.ErrorIs(t, err, auth.ErrNetwork)
		assert.ErrorIs(t, err, google.ErrUserInfo)
	})
}

func TestWeb_ScriptLoading(t *testing.T) {
	t.Parallel()

	t.Run("injected once", func(t *testing.T) {
		t.Parallel()
		ids := &fakeIdentity{}
		doc := &fakeDocument{}
		w, err := google.NewWeb(webConfig, ids, doc)
		require.NoError(t, err)

		for range 3 {
			_, _ = w.SignIn(context.Background())
		}
		assert.Equal(t, 1, doc.appends)
		assert.Equal(t, 1, ids.inits)
	})

	t.Run("existing script is reused", func(t *testing.T) {
		t.Parallel()
		doc := &fakeDocument{loaded: true}
		w, err := google.NewWeb(webConfig, &fakeIdentity{}, doc)
		require.NoError(t, err)

		_, _ = w.SignIn(context.Background())
		assert.Zero(t, doc.appends)
	})

	t.Run("sign in waits for the library", func(t *testing.T) {
		t.Parallel()
		ids := &fakeIdentity{}
		doc := &fakeDocument{hold: true}
		w, err := google.NewWeb(webConfig, ids, doc)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = w.SignIn(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Zero(t, ids.inits)

		doc.mu.Lock()
		load := doc.onLoad
		doc.mu.Unlock()
		load()

		_, err = w.SignIn(context.Background())
		assert.ErrorIs(t, err, google.ErrEmptyAccessToken)
		assert.Equal(t, 1, ids.inits)
	})

	t.Run("load failure", func(t *testing.T) {
		t.Parallel()
		doc := &fakeDocument{loadErr: errors.New("blocked by extension")}
		w, err := google.NewWeb(webConfig, &fakeIdentity{}, doc)
		require.NoError(t, err)

		_, err = w.SignIn(context.Background())
		assert.ErrorIs(t, err, google.ErrScriptLoad)
		assert.ErrorIs(t, err, auth.ErrVendorSDK)
	})
}

func TestWeb_SignOut(t *testing.T) {
	t.Parallel()

	ids := &fakeIdentity{}
	doc := &fakeDocument{hold: true}
	w, err := google.NewWeb(webConfig, ids, doc)
	require.NoError(t, err)

	w.SignOut(context.Background(), "")
	assert.Zero(t, ids.disabled, "library not loaded yet")

	doc.mu.Lock()
	load := doc.onLoad
	doc.mu.Unlock()
	load()

	w.SignOut(context.Background(), "")
	assert.Equal(t, 1, ids.disabled)
}

func TestHiddenButtonStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		moment google.PromptMoment
		click  bool
	}{
		{"skipped", google.PromptMoment{Skipped: true}, true},
		{"not displayed", google.PromptMoment{NotDisplayed: true}, true},
		{"dismissed", google.PromptMoment{Dismissed: true, DismissedReason: "credential_returned"}, false},
		{"displayed", google.PromptMoment{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc := &fakeDocument{}
			handled, err := google.DefaultHiddenButton.Handle(doc, tt.moment)
			require.NoError(t, err)
			assert.Equal(t, tt.click, handled)
			if tt.click {
				assert.Equal(t, []string{"gid div[role='button']"}, doc.clicks)
			} else {
				assert.Empty(t, doc.clicks)
			}
		})
	}
}

func TestWireConfigs(t *testing.T) {
	t.Parallel()

	id := google.IDConfiguration{ClientID: "cid", UXMode: google.UXModePopup, UseFedCMForPrompt: true}
	assert.Equal(t, map[string]any{
		"client_id":            "cid",
		"ux_mode":              "popup",
		"use_fedcm_for_prompt": true,
	}, id.Wire())

	override := google.OverridableTokenClientConfig{Scope: "openid", IncludeGrantedScopes: true, Prompt: google.PromptSelectAccount}
	assert.Equal(t, map[string]any{
		"scope":                  "openid",
		"include_granted_scopes": true,
		"prompt":                 "select_account",
	}, override.Wire())

	assert.Equal(t, map[string]any{"client_id": "cid", "scope": "openid"}, google.TokenClientConfig{ClientID: "cid", Scope: "openid"}.Wire())
	assert.Equal(t, map[string]any{"theme": "outline"}, google.ButtonConfiguration{Theme: "outline"}.Wire())
}

package supabase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/signin/pkg/auth"
	"github.com/dmitrymomot/signin/pkg/supabase"
)

// browser records authorize URLs and signals every open.
type browser struct {
	opened chan string
}

func newBrowser() *browser {
	return &browser{opened: make(chan string, 4)}
}

func (b *browser) open(u string) error {
	b.opened <- u
	return nil
}

func (b *browser) wait(t *testing.T) string {
	t.Helper()
	select {
	case u := <-b.opened:
		return u
	case <-time.After(3 * time.Second):
		t.Fatal("browser was never opened")
		return ""
	}
}

type signOutRecorder struct {
	mu    sync.Mutex
	names []string
}

func (r *signOutRecorder) AttemptFinished(string, time.Duration, error) {}

func (r *signOutRecorder) SignedOut(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
}

func newManager(t *testing.T, c *supabase.Client, opts ...supabase.Option) *supabase.Manager {
	t.Helper()
	m, err := supabase.NewManager(c, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

type outcome struct {
	user *auth.User
	err  error
}

func signInAsync(ctx context.Context, fn func(context.Context) (*auth.User, error)) <-chan outcome {
	ch := make(chan outcome, 1)
	go func() {
		u, err := fn(ctx)
		ch <- outcome{u, err}
	}()
	return ch
}

func await(t *testing.T, ch <-chan outcome) outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(3 * time.Second):
		t.Fatal("sign in did not finish")
		return outcome{}
	}
}

const implicitLink = "myapp://login#access_token=access-link&refresh_token=r1&expires_in=3600"

func TestNewManager_RequiresClient(t *testing.T) {
	t.Parallel()
	_, err := supabase.NewManager(nil)
	assert.ErrorIs(t, err, auth.ErrConfiguration)
}

func TestManager_SignInWith(t *testing.T) {
	t.Parallel()

	f := newFakeGoTrue(t)
	b := newBrowser()
	c := newClient(t, f.config(), supabase.WithBrowserOpener(b.open))
	m := newManager(t, c)
	ctx := context.Background()

	done := signInAsync(ctx, func(ctx context.Context) (*auth.User, error) {
		return m.SignInWith(ctx, supabase.ProviderGithub, supabase.DefaultAuthConfig())
	})
	assert.Contains(t, b.wait(t), "provider=github")

	_, err := m.SignInWith(ctx, supabase.ProviderGitlab, supabase.DefaultAuthConfig())
	require.ErrorIs(t, err, auth.ErrSignInInProgress, "second caller is rejected")

	require.NoError(t, m.HandleDeepLinks(ctx, implicitLink))

	o := await(t, done)
	require.NoError(t, o.err)
	assertAda(t, o.user)
	assert.Equal(t, "access-link", o.user.AccessToken)

	require.Eventually(t, func() bool {
		r := m.LastResult()
		return r.User != nil && r.User.AccessToken == "access-link"
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, o.user.ID, m.CurrentUser().ID)
}

func TestManager_SignInWith_IgnoresExistingSession(t *testing.T) {
	t.Parallel()

	f := newFakeGoTrue(t)
	b := newBrowser()
	c := newClient(t, f.config(), supabase.WithBrowserOpener(b.open))
	m := newManager(t, c)
	ctx := context.Background()

	first, err := c.SignInWithPassword(ctx, supabase.AuthConfig{Email: "ada@example.com", Password: testPassword})
	require.NoError(t, err)

	done := signInAsync(ctx, func(ctx context.Context) (*auth.User, error) {
		return m.SignInWith(ctx, supabase.ProviderGithub, supabase.DefaultAuthConfig())
	})
	b.wait(t)

	select {
	case o := <-done:
		t.Fatalf("resolved with the existing session: %+v", o)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, m.HandleDeepLinks(ctx, implicitLink))
	o := await(t, done)
	require.NoError(t, o.err)
	assert.NotEqual(t, first.AccessToken, o.user.AccessToken)
}

func TestManager_SignInWith_IgnoresRefresh(t *testing.T) {
	t.Parallel()

	f := newFakeGoTrue(t)
	b := newBrowser()
	c := newClient(t, f.config(), supabase.WithBrowserOpener(b.open))
	m := newManager(t, c)
	ctx := context.Background()

	_, err := c.SignInWithPassword(ctx, supabase.AuthConfig{Email: "ada@example.com", Password: testPassword})
	require.NoError(t, err)

	done := signInAsync(ctx, func(ctx context.Context) (*auth.User, error) {
		return m.SignInWith(ctx, supabase.ProviderGithub, supabase.DefaultAuthConfig())
	})
	b.wait(t)

	refreshed, err := c.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, supabase.CauseRefresh, c.Status().Cause)

	select {
	case o := <-done:
		t.Fatalf("resolved with the refreshed session: %+v", o)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, m.HandleDeepLinks(ctx, implicitLink))
	o := await(t, done)
	require.NoError(t, o.err)
	assert.Equal(t, "access-link", o.user.AccessToken)
	assert.NotEqual(t, refreshed.AccessToken, o.user.AccessToken)
}

func TestManager_SignInWith_Cancelled(t *testing.T) {
	t.Parallel()

	f := newFakeGoTrue(t)
	b := newBrowser()
	c := newClient(t, f.config(), supabase.WithBrowserOpener(b.open))
	m := newManager(t, c)

	ctx, cancel := context.WithCancel(context.Background())
	done := signInAsync(ctx, func(ctx context.Context) (*auth.User, error) {
		return m.SignInWith(ctx, supabase.ProviderGithub, supabase.DefaultAuthConfig())
	})
	b.wait(t)
	cancel()

	o := await(t, done)
	require.ErrorIs(t, o.err, context.Canceled)
	assert.ErrorIs(t, m.LastResult().Err, context.Canceled)

	// the slot is free again
	done = signInAsync(context.Background(), func(ctx context.Context) (*auth.User, error) {
		return m.SignInWith(ctx, supabase.ProviderGithub, supabase.DefaultAuthConfig())
	})
	b.wait(t)
	require.NoError(t, m.HandleDeepLinks(context.Background(), implicitLink))
	require.NoError(t, await(t, done).err)
}

func TestManager_SignInWith_RejectedDeepLink(t *testing.T) {
	t.Parallel()

	f := newFakeGoTrue(t)
	b := newBrowser()
	c := newClient(t, f.config(), supabase.WithBrowserOpener(b.open))
	m := newManager(t, c)
	ctx := context.Background()

	done := signInAsync(ctx, func(ctx context.Context) (*auth.User, error) {
		return m.SignInWith(ctx, supabase.ProviderGithub, supabase.DefaultAuthConfig())
	})
	b.wait(t)

	err := m.HandleDeepLinks(ctx, "myapp://login?error=access_denied&error_description=User+denied+access")
	require.ErrorIs(t, err, auth.ErrUserCancelled)

	o := await(t, done)
	require.ErrorIs(t, o.err, auth.ErrUserCancelled)
	assert.ErrorIs(t, o.err, supabase.ErrDeepLinkRejected)
	assert.Nil(t, o.user)
	assert.Nil(t, c.Session())
}

func TestManager_SignInWith_UnknownProvider(t *testing.T) {
	t.Parallel()

	f := newFakeGoTrue(t)
	m := newManager(t, newClient(t, f.config()))

	_, err := m.SignInWith(context.Background(), supabase.OAuthProvider("myspace"), supabase.AuthConfig{})
	require.ErrorIs(t, err, auth.ErrConfiguration)
	assert.ErrorIs(t, err, supabase.ErrUnknownProvider)
	assert.ErrorIs(t, m.LastResult().Err, supabase.ErrUnknownProvider)
}

func TestManager_SignInWithDefault(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("email password", func(t *testing.T) {
		t.Parallel()
		f := newFakeGoTrue(t)
		m := newManager(t, newClient(t, f.config()))

		u, err := m.SignInWithDefault(ctx, supabase.DefaultEmail, supabase.AuthConfig{
			Email: "ada@example.com", Phone: "ignored", Password: testPassword,
		})
		require.NoError(t, err)
		assertAda(t, u)
		body := f.last(t, "/token").Body
		assert.Equal(t, "ada@example.com", body["email"])
		assert.NotContains(t, body, "phone")
	})

	t.Run("phone otp resolves on verify", func(t *testing.T) {
		t.Parallel()
		f := newFakeGoTrue(t)
		c := newClient(t, f.config())
		m := newManager(t, c)

		done := signInAsync(ctx, func(ctx context.Context) (*auth.User, error) {
			return m.SignInWithDefault(ctx, supabase.DefaultPhone, supabase.AuthConfig{Phone: "15550001"})
		})
		require.Eventually(t, func() bool { return len(f.recorded("/otp")) == 1 }, 3*time.Second, 10*time.Millisecond)

		_, err := c.VerifyOTP(ctx, supabase.OTPSMS, supabase.AuthConfig{Phone: "15550001"}, "123456")
		require.NoError(t, err)

		o := await(t, done)
		require.NoError(t, o.err)
		assertAda(t, o.user)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		t.Parallel()
		f := newFakeGoTrue(t)
		m := newManager(t, newClient(t, f.config()))

		_, err := m.SignInWithDefault(ctx, supabase.DefaultEmail, supabase.AuthConfig{Email: "ada@example.com", Password: "wrong"})
		require.ErrorIs(t, err, auth.ErrVendorSDK)
		var apiErr *supabase.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "invalid_credentials", apiErr.Code)
		assert.ErrorIs(t, m.LastResult().Err, auth.ErrVendorSDK)
	})

	t.Run("configuration errors", func(t *testing.T) {
		t.Parallel()
		f := newFakeGoTrue(t)
		m := newManager(t, newClient(t, f.config()))

		tests := []struct {
			name   string
			method supabase.DefaultProvider
			cfg    supabase.AuthConfig
		}{
			{"email without address", supabase.DefaultEmail, supabase.AuthConfig{Phone: "15550001", Password: testPassword}},
			{"id token from github", supabase.DefaultIDToken, supabase.AuthConfig{Provider: supabase.ProviderGithub, IDToken: "jwt"}},
			{"id token missing", supabase.DefaultIDToken, supabase.AuthConfig{Provider: supabase.ProviderApple}},
			{"unknown method", supabase.DefaultProvider("MAGIC"), supabase.AuthConfig{}},
		}
		for _, tt := range tests {
			_, err := m.SignInWithDefault(ctx, tt.method, tt.cfg)
			assert.ErrorIs(t, err, auth.ErrConfiguration, tt.name)
		}
		assert.Empty(t, f.recorded("/token"))
	})
}

func TestManager_SignInWithIDToken(t *testing.T) {
	t.Parallel()

	f := newFakeGoTrue(t)
	m := newManager(t, newClient(t, f.config()))

	u, err := m.SignInWithIDToken(context.Background(), supabase.ProviderApple, "apple-jwt", "raw-nonce")
	require.NoError(t, err)
	assertAda(t, u)

	body := f.last(t, "/token").Body
	assert.Equal(t, "apple", body["provider"])
	assert.Equal(t, "raw-nonce", body["nonce"])
}

func TestManager_HandleDeepLinks_FeedsResults(t *testing.T) {
	t.Parallel()

	f := newFakeGoTrue(t)
	cfg := f.config()
	cfg.DeepLinkScheme = "myapp"
	m := newManager(t, newClient(t, cfg))
	ctx := context.Background()

	sub := m.Results(ctx)
	defer func() { _ = sub.Close() }()
	first := <-sub.Receive(ctx)
	assert.Nil(t, first.Data.User)
	assert.NoError(t, first.Data.Err)

	err := m.HandleDeepLinks(ctx, "otherapp://login#access_token=access-x")
	require.ErrorIs(t, err, auth.ErrConfiguration)
	msg := <-sub.Receive(ctx)
	assert.ErrorIs(t, msg.Data.Err, supabase.ErrDeepLinkMismatch)

	// a session delivered only by deep link still reaches the results
	require.NoError(t, m.HandleDeepLinks(ctx, implicitLink))
	msg = <-sub.Receive(ctx)
	require.NotNil(t, msg.Data.User)
	assert.Equal(t, "access-link", msg.Data.User.AccessToken)
}

func TestManager_SignUpAndRecovery(t *testing.T) {
	t.Parallel()

	f := newFakeGoTrue(t)
	m := newManager(t, newClient(t, f.config()))
	ctx := context.Background()

	u, err := m.SignUpWith(ctx, supabase.DefaultEmail, supabase.AuthConfig{Email: "confirm@example.com", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, testUserID, u.ID)

	_, err = m.SignUpWith(ctx, supabase.DefaultIDToken, supabase.AuthConfig{})
	assert.ErrorIs(t, err, auth.ErrConfiguration)

	require.NoError(t, m.ResetPasswordForEmail(ctx, "ada@example.com"))
	assert.ErrorIs(t, m.ResetPasswordForEmail(ctx, ""), auth.ErrConfiguration)
}

func TestManager_LinkIdentity(t *testing.T) {
	t.Parallel()

	f := newFakeGoTrue(t)
	b := newBrowser()
	c := newClient(t, f.config(), supabase.WithBrowserOpener(b.open))
	m := newManager(t, c)
	ctx := context.Background()

	_, err := m.LinkIdentity(ctx, supabase.ProviderGithub, supabase.DefaultAuthConfig())
	require.ErrorIs(t, err, auth.ErrNoUser)

	_, err = c.SignInWithPassword(ctx, supabase.AuthConfig{Email: "ada@example.com", Password: testPassword})
	require.NoError(t, err)

	u, err := m.LinkIdentity(ctx, supabase.ProviderGithub, supabase.DefaultAuthConfig())
	require.NoError(t, err)
	assert.Equal(t, u, b.wait(t))
}

func TestManager_SignOut(t *testing.T) {
	t.Parallel()

	f := newFakeGoTrue(t)
	f.set(func(f *fakeGoTrue) { f.logoutStatus = 500 })
	obs := &signOutRecorder{}
	c := newClient(t, f.config())
	m := newManager(t, c, supabase.WithObserver(obs))
	ctx := context.Background()

	_, err := c.SignInWithPassword(ctx, supabase.AuthConfig{Email: "ada@example.com", Password: testPassword})
	require.NoError(t, err)

	m.SignOut(ctx, testUserID)
	assert.Nil(t, m.CurrentUser(), "cleared locally even when the server fails")
	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, []string{supabase.Name}, obs.names)
}

func TestProvider(t *testing.T) {
	t.Parallel()

	f := newFakeGoTrue(t)
	b := newBrowser()
	c := newClient(t, f.config(), supabase.WithBrowserOpener(b.open))
	m := newManager(t, c)

	_, err := supabase.NewProvider(nil, supabase.ProviderGithub, supabase.AuthConfig{})
	require.ErrorIs(t, err, auth.ErrConfiguration)
	_, err = supabase.NewProvider(m, "myspace", supabase.AuthConfig{})
	require.ErrorIs(t, err, auth.ErrConfiguration)

	p, err := supabase.NewProvider(m, supabase.ProviderSlack, supabase.DefaultAuthConfig())
	require.NoError(t, err)
	assert.Equal(t, auth.SupabaseProviderID, p.ProviderID())
	assert.Equal(t, supabase.ProviderSlack, p.OAuthProvider())

	results := make(chan outcome, 1)
	p.SignInWithCallback(context.Background(), func(u *auth.User, err error) {
		results <- outcome{u, err}
	})
	assert.Contains(t, b.wait(t), "provider=slack")
	require.NoError(t, m.HandleDeepLinks(context.Background(), implicitLink))

	o := await(t, results)
	require.NoError(t, o.err)
	assertAda(t, o.user)

	p.SignOut(context.Background(), o.user.ID)
	assert.Nil(t, c.Session())
}

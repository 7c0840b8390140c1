package supabase_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/signin/pkg/auth"
	"github.com/dmitrymomot/signin/pkg/supabase"
)

const (
	testKey      = "anon-key"
	testPassword = "secret"
	testUserID   = "3f1c2b9e-8f43-4f59-9c1e-6b7d1f0a2c11"
)

type request struct {
	Method string
	Path   string
	Query  url.Values
	Bearer string
	Body   map[string]any
}

// fakeGoTrue serves the subset of the GoTrue API the client uses. Anonymous calls carry
// no bearer; user calls carry the access token.
type fakeGoTrue struct {
	srv *httptest.Server
	seq atomic.Int64

	mu               sync.Mutex
	requests         []request
	expiresIn        int64
	refreshExpiresIn int64
	refreshStatus    int
	logoutStatus     int
}

func newFakeGoTrue(t *testing.T) *fakeGoTrue {
	t.Helper()
	f := &fakeGoTrue{expiresIn: 3600, refreshExpiresIn: 3600}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGoTrue) URL() string { return f.srv.URL }

func (f *fakeGoTrue) config() auth.Config {
	off := false
	return auth.Config{
		SupabaseURL:         f.srv.URL,
		SupabaseKey:         testKey,
		AutoLoadFromStorage: &off,
		AutoRefreshToken:    &off,
	}
}

func (f *fakeGoTrue) set(fn func(f *fakeGoTrue)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeGoTrue) recorded(path string) []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []request
	for _, r := range f.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeGoTrue) last(t *testing.T, path string) request {
	t.Helper()
	reqs := f.recorded(path)
	require.NotEmpty(t, reqs, "no request to %s", path)
	return reqs[len(reqs)-1]
}

func (f *fakeGoTrue) serve(w http.ResponseWriter, r *http.Request) {
	rec := request{
		Method: r.Method,
		Path:   strings.TrimPrefix(r.URL.Path, "/auth/v1"),
		Query:  r.URL.Query(),
		Bearer: strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&rec.Body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	expiresIn, refreshExpiresIn := f.expiresIn, f.refreshExpiresIn
	refreshStatus, logoutStatus := f.refreshStatus, f.logoutStatus
	f.mu.Unlock()

	if r.Header.Get("apikey") != testKey {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid API key"})
		return
	}

	switch rec.Path {
	case "/token":
		switch rec.Query.Get("grant_type") {
		case "password":
			if rec.Body["password"] != testPassword {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"code": 400, "error_code": "invalid_credentials", "msg": "Invalid login credentials",
				})
				return
			}
			writeJSON(w, http.StatusOK, f.session(expiresIn, true))
		case "refresh_token":
			if refreshStatus != 0 {
				writeJSON(w, refreshStatus, map[string]any{"error": "invalid_grant", "error_description": "Invalid Refresh Token"})
				return
			}
			writeJSON(w, http.StatusOK, f.session(refreshExpiresIn, true))
		case "id_token":
			writeJSON(w, http.StatusOK, f.session(expiresIn, true))
		case "pkce":
			// no user in the response: the client fetches it
			writeJSON(w, http.StatusOK, f.session(expiresIn, false))
		default:
			writeJSON(w, http.StatusBadRequest, map[string]any{"msg": "unsupported grant type"})
		}
	case "/user":
		if !strings.HasPrefix(rec.Bearer, "access-") {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "invalid JWT"})
			return
		}
		writeJSON(w, http.StatusOK, testUser())
	case "/logout":
		if logoutStatus != 0 {
			writeJSON(w, logoutStatus, map[string]any{"msg": "session not found"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "/recover", "/otp":
		writeJSON(w, http.StatusOK, map[string]any{})
	case "/verify":
		if rec.Body["token"] != "123456" {
			writeJSON(w, http.StatusForbidden, map[string]any{"error_code": "otp_expired", "msg": "Token has expired or is invalid"})
			return
		}
		writeJSON(w, http.StatusOK, f.session(expiresIn, true))
	case "/signup":
		if rec.Body["email"] == "confirm@example.com" {
			writeJSON(w, http.StatusOK, testUser())
			return
		}
		writeJSON(w, http.StatusOK, f.session(expiresIn, true))
	case "/authorize":
		// the provider consent page, carrying what the client sent
		w.Header().Set("Location", "https://provider.example.com/oauth/authorize?"+r.URL.RawQuery)
		w.WriteHeader(http.StatusFound)
	case "/user/identities/authorize":
		writeJSON(w, http.StatusOK, map[string]any{"url": "https://github.com/login/oauth/authorize?client_id=gh"})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeGoTrue) session(expiresIn int64, withUser bool) map[string]any {
	n := f.seq.Add(1)
	s := map[string]any{
		"access_token":  fmt.Sprintf("access-%d", n),
		"refresh_token": fmt.Sprintf("refresh-%d", n),
		"token_type":    "bearer",
		"expires_in":    expiresIn,
	}
	if withUser {
		s["user"] = testUser()
	}
	return s
}

func testUser() map[string]any {
	return map[string]any{
		"id":    testUserID,
		"email": "ada@example.com",
		"phone": "15550001",
		"user_metadata": map[string]any{
			"full_name":  "Ada Lovelace",
			"first_name": "Ada",
			"last_name":  "Lovelace",
			"avatar_url": "https://example.com/ada.png",
		},
		"app_metadata": map[string]any{"provider": "github"},
		"identities": []map[string]any{{
			"id":            "gh-1",
			"user_id":       testUserID,
			"provider":      "github",
			"identity_data": map[string]any{"email": "ada@example.com"},
		}},
		"created_at": "2024-01-02T03:04:05Z",
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newClient(t *testing.T, cfg auth.Config, opts ...supabase.Option) *supabase.Client {
	t.Helper()
	c, err := supabase.New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitStatus(t *testing.T, c *supabase.Client, kind supabase.StatusKind) supabase.SessionStatus {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Status().Kind == kind
	}, 3*time.Second, 10*time.Millisecond, "status never became %s", kind)
	return c.Status()
}

func assertAda(t *testing.T, u *auth.User) {
	t.Helper()
	require.NotNil(t, u)
	assert.Equal(t, testUserID, u.ID)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, "Ada Lovelace", u.Name)
	assert.Equal(t, "15550001", u.PhoneNumber)
	assert.Equal(t, "https://example.com/ada.png", u.ProfilePicURL)
	assert.True(t, strings.HasPrefix(u.AccessToken, "access-"), u.AccessToken)
}

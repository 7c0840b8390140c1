package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	gotrue "github.com/supabase-community/auth-go"
	"github.com/supabase-community/auth-go/types"

	"github.com/dmitrymomot/signin/pkg/logger"
)

// call binds one auth-go request to a context. The library builds requests without
// one and reports server failures as formatted strings, so the transport attaches ctx,
// merges extra query values and keeps the error body of a failed response.
type call struct {
	ctx   context.Context
	base  http.RoundTripper
	query url.Values

	mu   sync.Mutex
	path string
	err  *APIError
}

// request returns an API client for one request. token authenticates as the user;
// query is merged into the request URL without overriding what the library set.
func (c *Client) request(ctx context.Context, token string, query url.Values) (gotrue.Client, *call) {
	hc := c.opts.httpClient
	t := &call{ctx: ctx, base: hc.Transport, query: query}
	if t.base == nil {
		t.base = http.DefaultTransport
	}
	api := c.api.WithClient(http.Client{Transport: t, Jar: hc.Jar, Timeout: hc.Timeout})
	if token != "" {
		api = api.WithToken(token)
	}
	return api, t
}

func (t *call) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.WithContext(t.ctx)
	if len(t.query) > 0 {
		u := *req.URL
		q := u.Query()
		for k, vs := range t.query {
			if q.Get(k) == "" {
				q[k] = vs
			}
		}
		u.RawQuery = q.Encode()
		out.URL = &u
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil || resp.StatusCode < http.StatusBadRequest {
		return resp, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))

	var eb apiErrorBody
	_ = json.Unmarshal(data, &eb)
	apiErr := eb.toError(resp.StatusCode)
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	t.mu.Lock()
	t.path = req.URL.Path
	t.err = apiErr
	t.mu.Unlock()
	return resp, nil
}

// check turns a library error into the *APIError of the failed response, when the
// server answered at all.
func (c *Client) check(t *call, err error) error {
	if err == nil {
		return nil
	}
	t.mu.Lock()
	apiErr, path := t.err, t.path
	t.mu.Unlock()

	if apiErr == nil {
		return fmt.Errorf("supabase auth request failed: %w", err)
	}
	c.log.DebugContext(t.ctx, "auth server error", logger.URL(path), logger.Status(apiErr.Status), logger.Error(apiErr))
	return apiErr
}

func sessionFrom(s types.Session) *Session {
	out := &Session{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		ExpiresIn:    int64(s.ExpiresIn),
		ExpiresAt:    s.ExpiresAt,
		RefreshToken: s.RefreshToken,
	}
	if s.User.ID != uuid.Nil {
		out.User = userFrom(s.User)
	}
	return out
}

func userFrom(u types.User) *User {
	out := &User{
		ID:               u.ID.String(),
		Email:            u.Email,
		Phone:            u.Phone,
		Role:             u.Role,
		EmailConfirmedAt: u.EmailConfirmedAt,
		PhoneConfirmedAt: u.PhoneConfirmedAt,
		LastSignInAt:     u.LastSignInAt,
		CreatedAt:        timePtr(u.CreatedAt),
		UpdatedAt:        timePtr(u.UpdatedAt),
		UserMetadata:     u.UserMetadata,
		AppMetadata:      u.AppMetadata,
	}
	for _, id := range u.Identities {
		email, _ := id.IdentityData["email"].(string)
		out.Identities = append(out.Identities, Identity{
			ID:       id.ID,
			UserID:   id.UserID.String(),
			Provider: id.Provider,
			Email:    email,
		})
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

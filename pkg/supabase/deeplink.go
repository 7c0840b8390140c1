package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/supabase-community/auth-go/types"

	"github.com/dmitrymomot/signin/pkg/credstore"
	"github.com/dmitrymomot/signin/pkg/logger"
)

// HandleDeepLink completes a redirect back into the app. Implicit-flow links carry the
// session tokens in the fragment; PKCE links carry a code that is exchanged with the
// stored verifier. Links outside the configured DeepLinkScheme and DeepLinkHost are
// rejected with ErrDeepLinkMismatch.
func (c *Client) HandleDeepLink(ctx context.Context, rawURL string) (*Session, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid deep link: %w", err)
	}
	if s := c.cfg.DeepLinkScheme; s != "" && !strings.EqualFold(u.Scheme, s) {
		return nil, fmt.Errorf("%w: scheme %q", ErrDeepLinkMismatch, u.Scheme)
	}
	if h := c.cfg.DeepLinkHost; h != "" && !strings.EqualFold(u.Host, h) {
		return nil, fmt.Errorf("%w: host %q", ErrDeepLinkMismatch, u.Host)
	}

	params := deepLinkParams(u)
	if desc, code := params.Get("error_description"), params.Get("error"); desc != "" || code != "" {
		if desc == "" {
			desc = code
		}
		return nil, fmt.Errorf("%w: %s", ErrDeepLinkRejected, desc)
	}

	if token := params.Get("access_token"); token != "" {
		s := &Session{
			AccessToken:          token,
			TokenType:            params.Get("token_type"),
			RefreshToken:         params.Get("refresh_token"),
			ProviderToken:        params.Get("provider_token"),
			ProviderRefreshToken: params.Get("provider_refresh_token"),
			ExpiresIn:            parseInt(params.Get("expires_in")),
			ExpiresAt:            parseInt(params.Get("expires_at")),
		}
		return c.accept(ctx, s, CauseSignIn)
	}
	if code := params.Get("code"); code != "" {
		return c.exchangeCode(ctx, code)
	}
	return nil, ErrDeepLinkNoSession
}

func (c *Client) exchangeCode(ctx context.Context, code string) (*Session, error) {
	verifier, err := c.opts.store.Get(ctx, codeVerifierKey)
	if errors.Is(err, credstore.ErrNotFound) {
		return nil, ErrMissingCodeVerifier
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load code verifier: %w", err)
	}

	s, err := c.token(ctx, types.TokenRequest{
		GrantType:    "pkce",
		Code:         code,
		CodeVerifier: string(verifier),
	}, CauseSignIn)
	if err != nil {
		return nil, err
	}
	if err := c.opts.store.Delete(ctx, codeVerifierKey); err != nil && !errors.Is(err, credstore.ErrNotFound) {
		c.log.WarnContext(ctx, "failed to delete code verifier", logger.Error(err))
	}
	return s, nil
}

// deepLinkParams merges the query and the fragment. Query values win.
func deepLinkParams(u *url.URL) url.Values {
	params := u.Query()
	frag, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return params
	}
	for k, vs := range frag {
		if _, ok := params[k]; !ok {
			params[k] = vs
		}
	}
	return params
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

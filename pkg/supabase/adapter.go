package supabase

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/signin/pkg/auth"
)

// Provider signs in through one fixed OAuth provider. It satisfies auth.Provider.
type Provider struct {
	manager  *Manager
	provider OAuthProvider
	cfg      AuthConfig
}

// NewProvider binds provider and cfg to m.
func NewProvider(m *Manager, provider OAuthProvider, cfg AuthConfig) (*Provider, error) {
	switch {
	case m == nil:
		return nil, auth.NewError(Name, "init", auth.ErrConfiguration, errors.New("manager is required"))
	case !provider.Valid():
		return nil, auth.NewError(Name, "init", auth.ErrConfiguration, fmt.Errorf("%w: %q", ErrUnknownProvider, provider))
	}
	return &Provider{manager: m, provider: provider, cfg: cfg}, nil
}

// ProviderID returns the config entry the client was built from.
func (p *Provider) ProviderID() string {
	return p.manager.client.cfg.ProviderID
}

// OAuthProvider returns the provider signed in with.
func (p *Provider) OAuthProvider() OAuthProvider {
	return p.provider
}

// SignIn starts the OAuth flow and waits for the redirect back into the app.
func (p *Provider) SignIn(ctx context.Context) (*auth.User, error) {
	return p.manager.SignInWith(ctx, p.provider, p.cfg)
}

// SignInWithCallback runs SignIn and passes its result to fn.
func (p *Provider) SignInWithCallback(ctx context.Context, fn auth.ResultFunc) {
	auth.Deliver(ctx, p.SignIn, fn)
}

// SignOut ends the Supabase session.
func (p *Provider) SignOut(ctx context.Context, userID string) {
	p.manager.SignOut(ctx, userID)
}

var _ auth.Provider = (*Provider)(nil)

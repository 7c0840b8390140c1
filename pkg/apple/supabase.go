package apple

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/signin/pkg/auth"
	"github.com/dmitrymomot/signin/pkg/logger"
	"github.com/dmitrymomot/signin/pkg/supabase"
)

// SessionManager is the part of *supabase.Manager the Supabase adapter drives.
type SessionManager interface {
	SignInWith(ctx context.Context, provider supabase.OAuthProvider, cfg supabase.AuthConfig) (*auth.User, error)
	SignOut(ctx context.Context, userID string)
}

// Supabase signs in with Apple through the Supabase OAuth flow. It serves every
// platform without AuthenticationServices.
type Supabase struct {
	manager SessionManager
	cfg     supabase.AuthConfig
	log     *slog.Logger
}

// NewSupabase binds m to the apple provider. cfg is passed to every sign-in.
func NewSupabase(m SessionManager, cfg supabase.AuthConfig, opts ...Option) (*Supabase, error) {
	if m == nil {
		return nil, auth.NewError(SupabaseName, "init", auth.ErrConfiguration, errors.New("supabase manager is required"))
	}
	o := newOptions(opts)
	return &Supabase{
		manager: m,
		cfg:     cfg,
		log:     o.logger.With(logger.Provider(auth.AppleProviderID), logger.Component(SupabaseName)),
	}, nil
}

// ProviderID returns auth.AppleProviderID.
func (s *Supabase) ProviderID() string {
	return auth.AppleProviderID
}

// SignIn opens the Apple consent page and waits for the Supabase session.
func (s *Supabase) SignIn(ctx context.Context) (*auth.User, error) {
	u, err := s.manager.SignInWith(ctx, supabase.ProviderApple, s.cfg)
	if err != nil {
		s.log.ErrorContext(ctx, "apple sign in failed", logger.Error(err))
		return nil, err
	}
	return u, nil
}

// SignInWithCallback runs SignIn and passes its result to fn.
func (s *Supabase) SignInWithCallback(ctx context.Context, fn auth.ResultFunc) {
	auth.Deliver(ctx, s.SignIn, fn)
}

// SignOut ends the Supabase session.
func (s *Supabase) SignOut(ctx context.Context, userID string) {
	s.manager.SignOut(ctx, userID)
}

var (
	_ auth.Provider    = (*Supabase)(nil)
	_ SessionManager   = (*supabase.Manager)(nil)
	_ IDTokenExchanger = (*supabase.Manager)(nil)
)

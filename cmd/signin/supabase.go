package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/signin"
	"github.com/dmitrymomot/signin/pkg/auth"
	"github.com/dmitrymomot/signin/pkg/httpserver"
	"github.com/dmitrymomot/signin/pkg/supabase"
)

func newSupabaseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "supabase",
		Short: "Supabase sessions: OAuth, password and one-time codes",
	}
	cmd.PersistentFlags().StringVar(&a.cfg.SupabaseURL, "url", a.cfg.SupabaseURL, "project url (env SIGNIN_SUPABASE_URL)")
	cmd.PersistentFlags().StringVar(&a.cfg.SupabaseKey, "key", a.cfg.SupabaseKey, "anon key (env SIGNIN_SUPABASE_KEY)")

	cmd.AddCommand(
		newSupabaseLoginCmd(a),
		newSupabasePasswordCmd(a),
		&cobra.Command{
			Use:   "whoami",
			Short: "Print the user of the stored session",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, err := a.supabaseManager(cmd.Context())
				if err != nil {
					return err
				}
				user := m.CurrentUser()
				if user == nil {
					return errors.New("not signed in")
				}
				return a.printJSON(user)
			},
		},
		&cobra.Command{
			Use:   "logout",
			Short: "End the stored session",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, err := a.supabaseManager(cmd.Context())
				if err != nil {
					return err
				}
				var userID string
				if u := m.CurrentUser(); u != nil {
					userID = u.ID
				}
				m.SignOut(cmd.Context(), userID)
				return nil
			},
		},
	)
	return cmd
}

func newSupabaseLoginCmd(a *app) *cobra.Command {
	var scopes []string
	cmd := &cobra.Command{
		Use:   "login <provider>",
		Short: "Sign in with an OAuth provider through a loopback redirect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := supabase.ParseOAuthProvider(args[0])
			if err != nil {
				return err
			}
			cfg := supabase.DefaultAuthConfig()
			cfg.Scopes = scopes
			user, err := a.supabaseOAuth(cmd.Context(), provider, cfg)
			if err != nil {
				return err
			}
			return a.printJSON(user)
		},
	}
	cmd.Flags().StringVar(&a.cfg.SupabaseRedirectAddr, "redirect-addr", a.cfg.SupabaseRedirectAddr, "loopback address of the redirect listener (env SIGNIN_SUPABASE_REDIRECT_ADDR)")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "extra provider scopes")
	return cmd
}

func newSupabasePasswordCmd(a *app) *cobra.Command {
	var cfg supabase.AuthConfig
	var signUp bool
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Sign in, or sign up, with an email or phone and a password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			method := supabase.DefaultEmail
			if cfg.Email == "" {
				method = supabase.DefaultPhone
			}
			if cfg.Password == "" {
				return errors.New("--password is required")
			}
			m, err := a.supabaseManager(cmd.Context())
			if err != nil {
				return err
			}
			if signUp {
				u, err := m.SignUpWith(cmd.Context(), method, cfg)
				if err != nil {
					return err
				}
				if m.CurrentUser() == nil {
					fmt.Fprintln(a.out, "Account created. Confirm it before signing in.")
					return nil
				}
				return a.printJSON(u.AuthUser(m.Client().Session().AccessToken))
			}
			user, err := m.SignInWithDefault(cmd.Context(), method, cfg)
			if err != nil {
				return err
			}
			return a.printJSON(user)
		},
	}
	cmd.Flags().StringVar(&cfg.Email, "email", "", "account email")
	cmd.Flags().StringVar(&cfg.Phone, "phone", "", "account phone number, used when --email is empty")
	cmd.Flags().StringVar(&cfg.Password, "password", "", "account password")
	cmd.Flags().BoolVar(&signUp, "sign-up", false, "create the account first")
	return cmd
}

// supabaseManager builds the manager from the "supabase" config and restores the
// stored session.
func (a *app) supabaseManager(ctx context.Context, opts ...supabase.Option) (*supabase.Manager, error) {
	opts = append([]supabase.Option{
		supabase.WithLogger(a.log),
		supabase.WithStore(a.store),
		supabase.WithObserver(a.metrics),
	}, opts...)
	m, err := signin.Supabase(opts...)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, m.Client().Close, m.Close)
	if err := m.Client().Start(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (a *app) supabaseOAuth(ctx context.Context, provider supabase.OAuthProvider, cfg supabase.AuthConfig) (*auth.User, error) {
	// the code exchange is the only redirect a loopback server can read
	if err := signin.Initialize(auth.Config{ProviderID: auth.SupabaseProviderID, FlowType: auth.FlowPKCE}); err != nil {
		return nil, err
	}

	srv := httpserver.New(httpserver.WithAddr(a.cfg.SupabaseRedirectAddr), httpserver.WithLogger(a.log))
	if err := srv.Listen(); err != nil {
		return nil, err
	}
	redirectURL := "http://" + srv.Addr() + callbackPath

	m, err := a.supabaseManager(ctx,
		supabase.WithRedirectURL(redirectURL),
		supabase.WithOnAuthURL(func(u string) {
			fmt.Fprintf(a.out, "If the browser does not open, visit:\n%s\n", u)
		}),
	)
	if err != nil {
		_ = srv.Shutdown(context.Background())
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServing := context.WithCancel(gctx)
	defer stopServing()

	g.Go(func() error {
		return srv.Run(serveCtx, newReceiver(m, redirectURL, a.log))
	})

	var user *auth.User
	g.Go(func() error {
		defer stopServing()
		u, err := m.SignInWith(gctx, provider, cfg)
		user = u
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return user, nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/signin"
	"github.com/dmitrymomot/signin/pkg/google"
)

func newGoogleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "google",
		Short: "Google desktop sign-in over a loopback redirect",
	}
	cmd.PersistentFlags().StringVar(&a.cfg.GoogleClientID, "client-id", a.cfg.GoogleClientID, "OAuth client id (env SIGNIN_GOOGLE_WEB_CLIENT_ID)")
	cmd.PersistentFlags().StringVar(&a.cfg.GoogleClientSecret, "client-secret", a.cfg.GoogleClientSecret, "OAuth client secret (env SIGNIN_GOOGLE_CLIENT_SECRET)")
	cmd.PersistentFlags().StringVar(&a.cfg.GoogleRedirectAddr, "redirect-addr", a.cfg.GoogleRedirectAddr, "loopback address of the redirect listener (env SIGNIN_GOOGLE_REDIRECT_ADDR)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "login",
			Short: "Open the consent page and print the signed-in user",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				d, err := a.googleDesktop()
				if err != nil {
					return err
				}
				user, err := d.SignIn(cmd.Context())
				if err != nil {
					return err
				}
				return a.printJSON(user)
			},
		},
		&cobra.Command{
			Use:   "logout <user-id>",
			Short: "Revoke the stored token of a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := a.googleDesktop()
				if err != nil {
					return err
				}
				d.SignOut(cmd.Context(), args[0])
				return nil
			},
		},
	)
	return cmd
}

func (a *app) googleDesktop() (*google.Desktop, error) {
	return signin.GoogleDesktop(
		google.WithLogger(a.log),
		google.WithObserver(a.metrics),
		google.WithStore(a.store),
		google.WithRedirectAddr(a.cfg.GoogleRedirectAddr),
		google.WithOnAuthURL(func(u string) {
			fmt.Fprintf(a.out, "If the browser does not open, visit:\n%s\n", u)
		}),
	)
}

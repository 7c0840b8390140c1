// Package apple implements Sign in with Apple.
//
// IOS drives AuthenticationServices through the AuthorizationController bridge. Every
// sign-in creates its own AuthorizationDelegate, which the adapter retains until the
// attempt finishes and which ignores callbacks after that. The identity token is decoded
// locally, or exchanged for a Supabase session when an IDTokenExchanger is configured.
//
// Supabase covers the remaining platforms with the Supabase OAuth flow for the apple
// provider.
//
//	ios, err := apple.NewIOS(cfg, controller, apple.AnchorFunc(keyWindow),
//	    apple.WithIDTokenExchanger(manager))
//	if err != nil {
//	    return err
//	}
//	user, err := ios.SignIn(ctx)
package apple

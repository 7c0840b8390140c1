// Package signin is a uniform sign-in layer for Google, Apple and Supabase.
//
// Every platform adapter implements auth.Provider and has a blocking and a callback
// calling convention:
//
//	user, err := p.SignIn(ctx)
//	p.SignInWithCallback(ctx, func(user *auth.User, err error) { ... })
//
// Adapters take their auth.Config explicitly. The helpers in this package read it from a
// process-wide registry instead, filled once at startup:
//
//	if err := signin.Initialize(auth.Config{WebClientID: id, ClientSecret: secret}); err != nil {
//		return err
//	}
//	desktop, err := signin.GoogleDesktop(google.WithLogger(log))
//
// Initializing the same provider id twice merges the two configs.
//
// The adapters live in sub-packages:
//
//   - pkg/google: Android Credential Manager, iOS GIDSignIn, desktop loopback OAuth and
//     Google Identity Services in the browser (js/wasm)
//   - pkg/apple: AuthenticationServices on iOS and the Supabase OAuth flow elsewhere
//   - pkg/supabase: GoTrue session client, session manager and OAuth provider adapter
package signin

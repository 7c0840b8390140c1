// Package google implements Google sign-in for every supported platform.
//
// Each adapter satisfies auth.Provider and is built from an auth.Config plus the
// platform bridge it drives:
//
//   - Android: Credential Manager through the CredentialManager bridge, with a one-tap
//     request that falls back to the explicit "Sign in with Google" sheet.
//   - IOS: the GoogleSignIn SDK through the GIDSignIn bridge.
//   - Web: Google Identity Services through the IdentityServices and Document bridges.
//     NewBrowser wires the real syscall/js bindings when built for js/wasm.
//   - Desktop: the OAuth 2.0 loopback flow with PKCE, a one-shot callback server and
//     token storage in a credstore.Store.
//
// Host bridges report vendor failures as *auth.NativeError values or as the sentinels
// in this package; adapters translate them into auth error kinds.
//
//	desktop, err := google.NewDesktop(cfg, google.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	user, err := desktop.SignIn(ctx)
package google

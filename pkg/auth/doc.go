// Package auth defines the contract shared by every sign-in adapter in this module.
//
// It holds the User value produced by a completed sign-in, the Provider interface each
// platform adapter implements, the error taxonomy adapters report through, and the
// provider configuration together with a concurrency-safe registry keyed by provider id.
//
// # Provider Contract
//
// Every adapter exposes two calling conventions. SignIn blocks until the native flow
// produces exactly one outcome. SignInWithCallback runs the same flow in its own goroutine
// and invokes the callback exactly once. SignOut is best-effort: failures are logged by the
// adapter and never returned.
//
// # Errors
//
// Failures are reported as *Error values that unwrap to one of the sentinel kinds:
//
//	user, err := provider.SignIn(ctx)
//	switch {
//	case errors.Is(err, auth.ErrUserCancelled):
//	    // the user closed the sheet, not a failure worth reporting
//	case errors.Is(err, auth.ErrSignInInProgress):
//	    // a previous call is still pending
//	case err != nil:
//	    log.Printf("sign in failed: %v", err)
//	}
//
// # Configuration
//
// Adapters receive a Config in their constructor. Applications that prefer a process-wide
// store initialize a Registry once at startup. Calling Initialize twice for the same provider
// id merges the two configs field by field, the last non-empty value winning:
//
//	reg := auth.NewRegistry()
//	_ = reg.Initialize(auth.Config{WebClientID: "A"})
//	_ = reg.Initialize(auth.Config{ClientSecret: "B"})
//	cfg, _ := reg.Lookup(auth.DefaultProviderID) // WebClientID "A", ClientSecret "B"
package auth

// Package supabase bridges Supabase Auth (GoTrue) sessions into auth.User results.
//
// Client is a REST client for the GoTrue API that owns the current session. It persists
// the session in a credstore.Store, refreshes it before expiry and publishes every change
// as a SessionStatus on a latest-value stream.
//
// Manager turns that stream into sign-in results. A sign-in subscribes to the stream,
// triggers the chosen method and resolves on the first new authenticated session; the
// subscription is closed on every exit path. Only one sign-in runs at a time and later
// callers get auth.ErrSignInInProgress. OAuth sign-ins complete when the host passes the
// redirect to HandleDeepLinks.
//
//	client, err := supabase.New(cfg, supabase.WithStore(store))
//	if err != nil {
//	    return err
//	}
//	if err := client.Start(ctx); err != nil {
//	    return err
//	}
//	manager, err := supabase.NewManager(client)
//	if err != nil {
//	    return err
//	}
//	user, err := manager.SignInWith(ctx, supabase.ProviderGithub, supabase.DefaultAuthConfig())
package supabase

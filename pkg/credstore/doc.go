// Package credstore persists small credential records such as OAuth tokens and sessions.
//
// Store is a byte-oriented key/value contract with three implementations: Memory (in-process,
// optional TTL), File (one file per key, written atomically) and the Redis store in
// pkg/redis. Sealed wraps any of them with authenticated encryption from pkg/secrets.
// GetJSON and SetJSON add typed encoding on top:
//
//	store, err := credstore.NewFile("tokens")
//	if err != nil {
//	    return err
//	}
//	sealed := credstore.NewSealed(store, sealer)
//	if err := credstore.SetJSON(ctx, sealed, userID, token); err != nil {
//	    return err
//	}
package credstore

// Package redis connects to a Redis server and exposes it as a credstore.Store,
// so desktop tokens and Supabase sessions can be shared between processes.
//
// Config fields are read from the environment via github.com/caarlos0/env:
//
//	cfg, err := config.Parse[redis.Config]("SIGNIN_")
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	store := redis.NewStoreWithConfig(client, cfg)
//	defer store.Close()
//
// Connect retries the initial ping and wraps failures in ErrRedisNotReady.
package redis

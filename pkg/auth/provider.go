package auth

import (
	"context"

	"github.com/dmitrymomot/signin/pkg/async"
)

// ResultFunc receives the outcome of a callback-style sign-in.
// Exactly one of user and err is non-nil.
type ResultFunc func(user *User, err error)

// Provider is implemented by every platform sign-in adapter.
type Provider interface {
	// ProviderID identifies the config entry the adapter was built from.
	ProviderID() string
	// SignIn blocks until the flow produces exactly one outcome or ctx is done.
	SignIn(ctx context.Context) (*User, error)
	// SignInWithCallback runs SignIn in its own goroutine and calls fn exactly once.
	SignInWithCallback(ctx context.Context, fn ResultFunc)
	// SignOut is best-effort. userID is needed only by adapters that revoke
	// server-held tokens; others ignore it.
	SignOut(ctx context.Context, userID string)
}

// SignOutObserver is implemented by observers that count sign-outs, such as pkg/metrics.
// Adapters call SignedOut with their name after every SignOut.
type SignOutObserver interface {
	SignedOut(name string)
}

// Deliver runs signIn in a new goroutine and hands its outcome to fn.
// Adapters implement SignInWithCallback with it so both conventions share one code path.
// A ctx that is already done skips signIn and delivers ctx.Err().
func Deliver(ctx context.Context, signIn func(context.Context) (*User, error), fn ResultFunc) {
	f := async.Async(ctx, signIn, runSignIn)
	if fn == nil {
		return
	}
	go func() { fn(f.Await()) }()
}

func runSignIn(ctx context.Context, signIn func(context.Context) (*User, error)) (*User, error) {
	return signIn(ctx)
}

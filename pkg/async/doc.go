// Package async provides generic single-resolution primitives.
//
// A Future represents the eventual result of an operation. It completes exactly once: the
// first completion wins and every later attempt is reported with ErrAlreadyCompleted instead
// of silently overwriting the stored result.
//
// Futures are produced either by Async, which runs a function in its own goroutine, or by a
// Promise, which is completed from the outside. Promises are the bridge between callback
// style native SDKs and blocking Go callers:
//
//	p := async.NewPromise[*auth.User]()
//	sdk.SignIn(func(u *auth.User, err error) {
//	    if err != nil {
//	        _ = p.Reject(err)
//	        return
//	    }
//	    _ = p.Resolve(u)
//	})
//	user, err := p.Future().AwaitContext(ctx)
//
// AwaitContext returns ctx.Err() when the caller gives up first. The promise stays pending in
// that case; whoever owns it decides whether to reject it.
package async

package flow

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/signin/pkg/async"
)

// Attempt is a single pending flow. It resolves exactly once.
type Attempt[T any] struct {
	id      string
	machine *Machine[T]
	promise *async.Promise[T]
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time
	settled atomic.Bool

	mu       sync.Mutex
	cleanups []func()
	finished bool
	once     sync.Once
}

// ID returns the attempt id, also stored in Context for logging.
func (a *Attempt[T]) ID() string {
	return a.id
}

// Context is cancelled when the attempt finishes or the caller's context is done.
func (a *Attempt[T]) Context() context.Context {
	return a.ctx
}

// Fire moves the owning machine. It fails with ErrStaleAttempt once the attempt finished.
func (a *Attempt[T]) Fire(ev Event) error {
	return a.machine.fire(a, ev)
}

// Resolve completes the attempt with v. It reports false if the attempt was already done.
// Deferred cleanups run and the machine is free again before waiters see v.
func (a *Attempt[T]) Resolve(v T) bool {
	if !a.settled.CompareAndSwap(false, true) {
		return false
	}
	a.release(nil)
	_ = a.promise.Resolve(v)
	return true
}

// Reject completes the attempt with err. It reports false if the attempt was already done.
func (a *Attempt[T]) Reject(err error) bool {
	if !a.settled.CompareAndSwap(false, true) {
		return false
	}
	a.release(err)
	_ = a.promise.Reject(err)
	return true
}

// Done reports whether the attempt has completed.
func (a *Attempt[T]) Done() bool {
	return a.settled.Load()
}

// Defer registers fn to run once when the attempt finishes, in reverse order of
// registration. On an already finished attempt fn runs immediately.
func (a *Attempt[T]) Defer(fn func()) {
	if fn == nil {
		return
	}
	a.mu.Lock()
	if a.finished {
		a.mu.Unlock()
		fn()
		return
	}
	a.cleanups = append(a.cleanups, fn)
	a.mu.Unlock()
}

// Wait blocks until the attempt completes. If the caller's context is done first the
// attempt is rejected with the context error, which releases every deferred resource.
func (a *Attempt[T]) Wait() (T, error) {
	f := a.promise.Future()
	if _, err := f.AwaitContext(a.ctx); err != nil && !f.IsComplete() {
		// a no-op when a resolution is already under way
		a.Reject(err)
	}
	return f.Await()
}

func (a *Attempt[T]) release(err error) {
	a.once.Do(func() {
		a.mu.Lock()
		cleanups := a.cleanups
		a.cleanups = nil
		a.finished = true
		a.mu.Unlock()

		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		a.machine.finish(a, err)
		a.cancel()
	})
}

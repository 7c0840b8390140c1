package async

import (
	"context"
	"sync"
)

// Future represents the result of an asynchronous computation.
type Future[U any] struct {
	result U
	err    error
	once   sync.Once
	done   chan struct{}
}

func newFuture[U any]() *Future[U] {
	return &Future[U]{done: make(chan struct{})}
}

// complete stores the result if the future is still pending.
// It reports whether this call was the one that completed the future.
func (f *Future[U]) complete(res U, err error) bool {
	completed := false
	f.once.Do(func() {
		f.result = res
		f.err = err
		close(f.done)
		completed = true
	})
	return completed
}

// Await waits for the future to complete and returns its result and error.
func (f *Future[U]) Await() (U, error) {
	<-f.done
	return f.result, f.err
}

// AwaitContext waits for completion or for ctx to be done, whichever comes first.
func (f *Future[U]) AwaitContext(ctx context.Context) (U, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero U
		return zero, ctx.Err()
	}
}

// Done returns a channel closed once the future has completed.
func (f *Future[U]) Done() <-chan struct{} {
	return f.done
}

// IsComplete checks if the future is complete without blocking.
func (f *Future[U]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Promise is the write side of a Future. It can be completed exactly once.
type Promise[U any] struct {
	future *Future[U]
}

// NewPromise returns a pending promise.
func NewPromise[U any]() *Promise[U] {
	return &Promise[U]{future: newFuture[U]()}
}

// Future returns the read side of the promise.
func (p *Promise[U]) Future() *Future[U] {
	return p.future
}

// Resolve completes the promise with a value.
// Returns ErrAlreadyCompleted if the promise was completed before.
func (p *Promise[U]) Resolve(v U) error {
	if !p.future.complete(v, nil) {
		return ErrAlreadyCompleted
	}
	return nil
}

// Reject completes the promise with an error.
// Returns ErrAlreadyCompleted if the promise was completed before.
func (p *Promise[U]) Reject(err error) error {
	var zero U
	if !p.future.complete(zero, err) {
		return ErrAlreadyCompleted
	}
	return nil
}

// Async executes fn in its own goroutine and returns a Future for its result.
// A context cancelled before fn starts completes the future with ctx.Err().
func Async[T any, U any](ctx context.Context, param T, fn func(context.Context, T) (U, error)) *Future[U] {
	f := newFuture[U]()

	go func() {
		select {
		case <-ctx.Done():
			var zero U
			f.complete(zero, ctx.Err())
			return
		default:
		}

		res, err := fn(ctx, param)
		f.complete(res, err)
	}()

	return f
}

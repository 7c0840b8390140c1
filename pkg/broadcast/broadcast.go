package broadcast

import (
	"context"
	"sync"
)

// Message wraps data of type T for type-safe broadcasting.
type Message[T any] struct {
	Data T
}

// Subscriber receives messages from a Broadcaster.
type Subscriber[T any] interface {
	// Receive returns the channel messages are delivered on.
	// It is closed when the subscriber or the broadcaster is closed.
	Receive(ctx context.Context) <-chan Message[T]

	// Close closes the subscriber. It is idempotent.
	Close() error
}

// Broadcaster sends messages to multiple subscribers.
type Broadcaster[T any] interface {
	Subscribe(ctx context.Context) Subscriber[T]
	Broadcast(ctx context.Context, msg Message[T]) error
	Close() error
}

// subscriber holds at most one undelivered message; newer messages replace it.
type subscriber[T any] struct {
	ch      chan Message[T]
	closed  bool
	mu      sync.Mutex
	onClose func()
	once    sync.Once
	done    chan struct{}
}

func newSubscriber[T any]() *subscriber[T] {
	return &subscriber[T]{ch: make(chan Message[T], 1), done: make(chan struct{})}
}

func (s *subscriber[T]) Receive(context.Context) <-chan Message[T] {
	return s.ch
}

func (s *subscriber[T]) Close() error {
	s.shutdown()
	s.once.Do(func() {
		close(s.done)
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}

func (s *subscriber[T]) closedSignal() <-chan struct{} {
	return s.done
}

func (s *subscriber[T]) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
}

// offer delivers msg, replacing an unread older message.
func (s *subscriber[T]) offer(msg Message[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- msg:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	// only offer sends and it holds the lock, so the buffer has room now
	s.ch <- msg
}

package broadcast

import (
	"context"
	"sync"
)

// Latest is a Broadcaster that remembers the last published value.
// All methods are safe for concurrent use.
type Latest[T any] struct {
	mu     sync.RWMutex
	value  T
	has    bool
	subs   map[*subscriber[T]]struct{}
	closed bool
}

// NewLatest returns a broadcaster without a current value.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{subs: make(map[*subscriber[T]]struct{})}
}

// NewLatestWith returns a broadcaster whose current value is initial.
func NewLatestWith[T any](initial T) *Latest[T] {
	b := NewLatest[T]()
	b.value = initial
	b.has = true
	return b
}

// Value returns the current value and whether one was published.
func (b *Latest[T]) Value() (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.value, b.has
}

// Publish stores v as the current value and delivers it to every subscriber.
func (b *Latest[T]) Publish(v T) {
	_ = b.Broadcast(context.Background(), Message[T]{Data: v})
}

// Broadcast implements Broadcaster. Delivery happens under the lock so every
// subscriber ends up holding the value Value reports.
func (b *Latest[T]) Broadcast(_ context.Context, msg Message[T]) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.value = msg.Data
	b.has = true
	for s := range b.subs {
		s.offer(msg)
	}
	return nil
}

// Subscribe registers a subscriber. It receives the current value first, if any.
// The subscription ends when ctx is cancelled or the subscriber is closed.
func (b *Latest[T]) Subscribe(ctx context.Context) Subscriber[T] {
	sub := newSubscriber[T]()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.shutdown()
		return sub
	}
	b.subs[sub] = struct{}{}
	if b.has {
		sub.offer(Message[T]{Data: b.value})
	}
	b.mu.Unlock()

	sub.onClose = func() { b.remove(sub) }

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = sub.Close()
			case <-sub.closedSignal():
			}
		}()
	}
	return sub
}

// Len returns the number of active subscribers.
func (b *Latest[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber. Later publishes return ErrClosed.
func (b *Latest[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[*subscriber[T]]struct{})
	b.mu.Unlock()

	for s := range subs {
		s.shutdown()
	}
	return nil
}

func (b *Latest[T]) remove(s *subscriber[T]) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

var _ Broadcaster[int] = (*Latest[int])(nil)

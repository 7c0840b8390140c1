// Package broadcast provides type-safe one-to-many notification of state changes.
//
// Latest keeps the most recent value and behaves like an observable state holder: a new
// subscriber immediately receives the current value, and a subscriber that falls behind
// skips intermediate values instead of blocking the publisher. Only the newest value is ever
// buffered per subscriber.
//
//	status := broadcast.NewLatest[Status]()
//	defer status.Close()
//
//	sub := status.Subscribe(ctx)
//	defer sub.Close()
//
//	status.Publish(Authenticated)
//	for msg := range sub.Receive(ctx) {
//	    handle(msg.Data)
//	}
//
// Subscriptions are removed when the subscriber is closed or its context is cancelled.
package broadcast

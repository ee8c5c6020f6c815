// Package broadcast fans a single stream of items out to many subscriber queues.
package broadcast

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rohanthewiz/logger"
)

// Broadcaster forwards every item read from one source channel to all subscribed queues.
//
// Membership is copy-on-write: Subscribe and Unsubscribe publish a fresh slice,
// and each delivery iterates the snapshot that was current when the item was dequeued.
// A queue subscribed after that point misses the item; an unsubscribed queue should
// also be closed by its owner so that an in-flight delivery to it is discarded.
type Broadcaster[T any] struct {
	src <-chan T

	mu   sync.Mutex // serializes writers of subs
	subs atomic.Pointer[[]*Queue[T]]
}

func New[T any](src <-chan T) *Broadcaster[T] {
	b := &Broadcaster[T]{src: src}
	b.subs.Store(&[]*Queue[T]{})
	return b
}

// Subscribe adds q. Subscribing the same queue twice has no effect.
func (b *Broadcaster[T]) Subscribe(q *Queue[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur := *b.subs.Load()
	if slices.Contains(cur, q) {
		return
	}
	next := make([]*Queue[T], len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, q)
	b.subs.Store(&next)
}

// Unsubscribe removes q; a no-op if q is not subscribed.
func (b *Broadcaster[T]) Unsubscribe(q *Queue[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur := *b.subs.Load()
	i := slices.Index(cur, q)
	if i < 0 {
		return
	}
	next := make([]*Queue[T], 0, len(cur)-1)
	next = append(next, cur[:i]...)
	next = append(next, cur[i+1:]...)
	b.subs.Store(&next)
}

// Len returns the current number of subscribers.
func (b *Broadcaster[T]) Len() int {
	return len(*b.subs.Load())
}

// Publish delivers v to every queue subscribed right now.
func (b *Broadcaster[T]) Publish(v T) {
	subs := *b.subs.Load()
	for _, q := range subs {
		q.Put(v)
	}
	logger.F("Broadcast item to %d subscribers", len(subs))
}

// Run consumes the source until it is closed or ctx is done.
func (b *Broadcaster[T]) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v, ok := <-b.src:
			if !ok {
				return nil
			}
			b.Publish(v)
		}
	}
}

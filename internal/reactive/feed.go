// Package reactive provides the cancellable push sequence shared by the
// measurement store and the live sensor adapters.
package reactive

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Feed is a conflated, multi-value sequence of T. Consumers read Updates();
// when they fall behind, only the most recent value is kept.
//
// Close detaches the consumer, runs the teardown hook exactly once and then
// closes the Updates channel, all before returning.
type Feed[T any] struct {
	id       uuid.UUID
	updates  chan T
	teardown func()

	mu      sync.Mutex
	closed  bool
	latest  T
	hasData bool
	err     error

	once sync.Once
	stop func() bool
}

// New creates an open feed. teardown may be nil.
func New[T any](teardown func()) *Feed[T] {
	return &Feed[T]{
		id:       uuid.New(),
		updates:  make(chan T, 1),
		teardown: teardown,
	}
}

// ID identifies the feed for registries and logs.
func (f *Feed[T]) ID() uuid.UUID {
	return f.id
}

// Updates returns the channel of values. It is closed when the feed closes.
func (f *Feed[T]) Updates() <-chan T {
	return f.updates
}

// Publish offers v to the consumer, replacing any value it has not read yet.
// It reports false once the feed is closed.
func (f *Feed[T]) Publish(v T) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}

	select {
	case <-f.updates:
	default:
	}
	f.updates <- v
	f.latest = v
	f.hasData = true
	return true
}

// Latest returns the most recently published value, if any.
func (f *Feed[T]) Latest() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, f.hasData
}

// Err reports why the feed failed, or nil.
func (f *Feed[T]) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Closed reports whether the consumer has detached.
func (f *Feed[T]) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Fail records err and closes the feed.
func (f *Feed[T]) Fail(err error) {
	f.mu.Lock()
	if f.err == nil && !f.closed {
		f.err = err
	}
	f.mu.Unlock()
	f.Close()
}

// Close ends the feed. It is safe to call more than once and from any goroutine.
func (f *Feed[T]) Close() {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		stop := f.stop
		f.mu.Unlock()

		if stop != nil {
			stop()
		}
		if f.teardown != nil {
			f.teardown()
		}

		f.mu.Lock()
		close(f.updates)
		f.mu.Unlock()
	})
}

// Bind closes the feed when ctx is done.
func (f *Feed[T]) Bind(ctx context.Context) *Feed[T] {
	if ctx == nil || ctx.Done() == nil {
		return f
	}
	stop := context.AfterFunc(ctx, f.Close)

	f.mu.Lock()
	f.stop = stop
	f.mu.Unlock()
	return f
}

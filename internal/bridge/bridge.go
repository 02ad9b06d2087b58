// Package bridge provides the one-shot completion signal between a transfer
// worker and the caller that scheduled it.
package bridge

import (
	"context"
	"sync"
)

// Bridge is a single-producer, single-consumer completion cell. The signal is
// buffered: completing before anyone waits still wakes the eventual waiter,
// so there is no lost-wakeup window regardless of which side runs first.
type Bridge struct {
	once sync.Once
	done chan struct{}
	err  error
}

// New creates an uncompleted bridge.
func New() *Bridge {
	return &Bridge{done: make(chan struct{})}
}

// Complete records the outcome of the work and wakes any waiter. Only the
// first call has any effect.
func (b *Bridge) Complete(err error) {
	b.once.Do(func() {
		b.err = err
		close(b.done)
	})
}

// Done returns a channel that is closed once the work has completed.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the work completes and returns its outcome, or returns
// the context error if ctx is cancelled first.
func (b *Bridge) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return b.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the recorded outcome, or nil if the work has not completed yet.
func (b *Bridge) Err() error {
	select {
	case <-b.done:
		return b.err
	default:
		return nil
	}
}

// Package queue provides an unbounded FIFO whose head is pumped into a channel.
//
// Pushes never block; a single goroutine moves items to Out() in order. This
// is the mailbox used wherever a boundary has no native flow control.
package queue

import (
	"sync"

	"github.com/gezibash/arc-kernel/pkg/errors"
)

// Queue is an unbounded FIFO delivering to a channel.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	ended  bool
	out    chan T
	wake   chan struct{}
	stop   chan struct{}
	closed sync.Once

	// onDequeue runs after an item has been handed to the consumer, with the
	// number of items still queued.
	onDequeue func(remaining int)
}

// Option configures a Queue.
type Option[T any] func(*Queue[T])

// WithDequeueHook registers a callback run after each delivery.
func WithDequeueHook[T any](fn func(remaining int)) Option[T] {
	return func(q *Queue[T]) { q.onDequeue = fn }
}

// New creates a queue and starts its pump goroutine.
func New[T any](opts ...Option[T]) *Queue[T] {
	q := &Queue[T]{
		out:  make(chan T),
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	go q.pump()
	return q
}

// Push appends v and returns the queue length after the append.
func (q *Queue[T]) Push(v T) (int, error) {
	q.mu.Lock()
	if q.ended {
		q.mu.Unlock()
		return 0, errors.ErrClosed
	}
	q.items = append(q.items, v)
	n := len(q.items)
	q.mu.Unlock()

	q.signal()
	return n, nil
}

// Len returns the number of undelivered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Out returns the delivery channel. It is closed after End once the backlog
// is delivered, or immediately after Abort.
func (q *Queue[T]) Out() <-chan T {
	return q.out
}

// End stops accepting pushes; queued items are still delivered.
func (q *Queue[T]) End() {
	q.mu.Lock()
	q.ended = true
	q.mu.Unlock()
	q.signal()
}

// Abort drops the backlog and closes Out without delivering it.
func (q *Queue[T]) Abort() {
	q.mu.Lock()
	q.ended = true
	q.items = nil
	q.mu.Unlock()
	q.closed.Do(func() { close(q.stop) })
}

func (q *Queue[T]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue[T]) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			ended := q.ended
			q.mu.Unlock()
			if ended {
				return
			}
			select {
			case <-q.wake:
				continue
			case <-q.stop:
				return
			}
		}
		head := q.items[0]
		q.mu.Unlock()

		select {
		case q.out <- head:
		case <-q.stop:
			return
		}

		q.mu.Lock()
		var zero T
		if len(q.items) > 0 {
			q.items[0] = zero
			q.items = q.items[1:]
		}
		remaining := len(q.items)
		q.mu.Unlock()

		if q.onDequeue != nil {
			q.onDequeue(remaining)
		}
	}
}

package transport

import (
	"sync"

	"github.com/gezibash/arc-kernel/internal/queue"
)

// Inbox buffers inbound chunks for a consumer and reports saturation.
//
// When the backlog reaches the high-water mark, onSaturate runs; once the
// consumer has drained it to half of that, onRelieve runs. Both callbacks
// run with the inbox lock held, so they must not block and always alternate.
type Inbox struct {
	mu         sync.Mutex
	q          *queue.Queue[Chunk]
	high, low  int
	saturated  bool
	onSaturate func()
	onRelieve  func()
}

// NewInbox creates an inbox with the given high-water mark.
func NewInbox(high int, onSaturate, onRelieve func()) *Inbox {
	if high <= 0 {
		high = DefaultReadBuffer
	}
	in := &Inbox{
		high:       high,
		low:        high / 2,
		onSaturate: onSaturate,
		onRelieve:  onRelieve,
	}
	in.q = queue.New(queue.WithDequeueHook[Chunk](in.dequeued))
	return in
}

// Push queues a chunk. It reports false when the inbox is saturated after
// the push.
func (in *Inbox) Push(c Chunk) (bool, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	n, err := in.q.Push(c)
	if err != nil {
		return false, ErrClosed
	}
	if !in.saturated && n >= in.high {
		in.saturated = true
		if in.onSaturate != nil {
			in.onSaturate()
		}
	}
	return !in.saturated, nil
}

func (in *Inbox) dequeued(remaining int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.saturated && remaining <= in.low {
		in.saturated = false
		if in.onRelieve != nil {
			in.onRelieve()
		}
	}
}

// Saturated reports whether the consumer is behind.
func (in *Inbox) Saturated() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.saturated
}

// Len returns the number of undelivered chunks.
func (in *Inbox) Len() int { return in.q.Len() }

// Out is the consumer channel.
func (in *Inbox) Out() <-chan Chunk { return in.q.Out() }

// End marks end of input; the backlog is still delivered.
func (in *Inbox) End() { in.q.End() }

// Abort drops the backlog and closes Out.
func (in *Inbox) Abort() { in.q.Abort() }

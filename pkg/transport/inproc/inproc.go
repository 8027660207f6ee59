// Package inproc implements the transport contracts inside one process.
//
// Nothing is serialized: chunks and event payloads are handed over in
// memory. Backpressure is the queue bound itself.
package inproc

import (
	"context"
	"sync"

	"github.com/gezibash/arc-kernel/pkg/transport"
)

const kind = "inproc"

func init() {
	transport.Register(kind, transport.Kind{
		Stream: func(_ context.Context, _ map[string]string, opts transport.Options) (transport.Stream, error) {
			return NewStream(opts), nil
		},
		Bus: func(_ context.Context, _ map[string]string, opts transport.Options) (transport.Bus, error) {
			return NewBus(opts), nil
		},
	})
}

// Stream is an in-memory pipe endpoint. Writes land in the peer's queue;
// for a loopback stream the peer is the stream itself.
type Stream struct {
	opts   transport.Options
	inbox  *transport.Inbox
	relief *transport.Signal
	peer   *Stream

	mu          sync.Mutex
	writeClosed bool
	readEnded   bool
	closed      bool
	done        chan struct{}
	doneOnce    sync.Once
}

func newStream(opts transport.Options) *Stream {
	opts = opts.WithDefaults()
	s := &Stream{
		opts:   opts,
		relief: transport.NewSignal(true),
		done:   make(chan struct{}),
	}
	s.inbox = transport.NewInbox(opts.ReadBuffer, func() {
		s.relief.Reset()
		opts.Metrics.Paused(kind)
	}, s.relief.Fire)
	return s
}

// NewStream returns a loopback stream backed by a single queue: what is
// written is read back from Data in order.
func NewStream(opts transport.Options) *Stream {
	s := newStream(opts)
	s.peer = s
	return s
}

// NewPipe returns two connected streams; each one's writes arrive on the
// other's Data.
func NewPipe(opts transport.Options) (*Stream, *Stream) {
	a, b := newStream(opts), newStream(opts)
	a.peer, b.peer = b, a
	return a, b
}

// Write queues p for the peer. It reports false once the peer's queue
// holds ReadBuffer undelivered chunks.
func (s *Stream) Write(p []byte) (bool, error) {
	s.mu.Lock()
	if s.closed || s.writeClosed {
		s.mu.Unlock()
		return false, transport.ErrClosed
	}
	s.mu.Unlock()

	ok, err := s.peer.inbox.Push(transport.Chunk{Data: append([]byte(nil), p...)})
	if err != nil {
		return false, err
	}
	s.opts.Metrics.Sent(kind, len(p))
	return ok, nil
}

func (s *Stream) Drain() <-chan struct{} { return s.peer.relief.Wait() }

func (s *Stream) Data() <-chan transport.Chunk { return s.inbox.Out() }

// CloseWrite ends the peer's input. The stream is done once the peer has
// ended this side's input as well.
func (s *Stream) CloseWrite() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return transport.ErrClosed
	}
	if s.writeClosed {
		s.mu.Unlock()
		return nil
	}
	s.writeClosed = true
	s.mu.Unlock()

	s.peer.endInput()
	s.finishIfEnded()
	return nil
}

// Close drops undelivered input and ends the peer's input.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.inbox.Abort()
	s.peer.endInput()
	s.relief.Fire()
	s.finish()
	return nil
}

// endInput marks that no more chunks will arrive.
func (s *Stream) endInput() {
	s.inbox.End()
	s.mu.Lock()
	s.readEnded = true
	s.mu.Unlock()
	s.finishIfEnded()
}

func (s *Stream) finishIfEnded() {
	s.mu.Lock()
	both := s.writeClosed && s.readEnded
	s.mu.Unlock()
	if both {
		s.finish()
	}
}

func (s *Stream) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Stream) Done() <-chan struct{} { return s.done }

// Err is always nil: an in-memory pipe cannot fail.
func (s *Stream) Err() error { return nil }

// Bus delivers published events to subscribers in the same process.
type Bus struct {
	hub     *transport.Hub
	metrics *transport.Metrics

	mu     sync.Mutex
	closed bool
}

// NewBus creates an in-process control bus.
func NewBus(opts transport.Options) *Bus {
	return &Bus{hub: transport.NewHub(), metrics: opts.Metrics}
}

func (b *Bus) Topic(name string) transport.Topic {
	return transport.NewTopic(name, b.hub, func(data any) error {
		return b.publish(name, data)
	}, nil)
}

func (b *Bus) publish(name string, data any) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}
	if b.hub.Deliver(name, data) {
		b.metrics.BusMessage(kind, "out")
	}
	return nil
}

func (b *Bus) Subscribe(topic string, h transport.Handler) (func(), error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, transport.ErrClosed
	}
	return b.hub.Subscribe(topic, h), nil
}

// Close stops every topic after delivering what was already published.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	b.hub.Close()
	return nil
}

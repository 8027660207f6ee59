package transport

import (
	stderrors "errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Link is a framed, blocking, full-duplex connection. Socket boundaries
// implement Link and get the Stream contract from LinkStream.
type Link interface {
	// ReadChunk blocks for the next inbound chunk. It returns io.EOF once
	// the peer has half-closed.
	ReadChunk() (Chunk, error)
	// WriteChunk blocks until the chunk has been handed to the socket.
	WriteChunk(c Chunk) error
	CloseWrite() error
	Close() error
}

// LinkStream adapts a Link into a non-blocking Stream.
//
// Writes are queued and a writer goroutine feeds them to the link; Write
// returns false while more than WriteBuffer bytes are queued. A reader
// goroutine moves inbound chunks into an Inbox and stops reading the link
// while the consumer is saturated, so the peer is slowed by the socket's
// own flow control.
type LinkStream struct {
	id        string
	kind      string
	link      Link
	sequenced bool
	opts      Options
	log       *slog.Logger

	mu          sync.Mutex
	out         []Chunk
	outBytes    int
	nextSeq     uint64
	writeClosed bool
	closed      bool
	readEOF     bool
	writeDone   bool
	err         error

	wake  chan struct{}
	drain *Signal
	gate  *Signal
	inbox *Inbox

	done      chan struct{}
	closeOnce sync.Once
}

// NewLinkStream starts the reader and writer goroutines for link. When
// sequenced is set, outbound chunks are numbered from 1.
func NewLinkStream(link Link, kind string, sequenced bool, opts Options) *LinkStream {
	opts = opts.WithDefaults()
	s := &LinkStream{
		id:        uuid.NewString(),
		kind:      kind,
		link:      link,
		sequenced: sequenced,
		opts:      opts,
		wake:      make(chan struct{}, 1),
		drain:     NewSignal(true),
		gate:      NewSignal(true),
		done:      make(chan struct{}),
	}
	s.log = opts.Logger.WithComponent(kind).WithIdentity(s.id).Slog()
	s.inbox = NewInbox(opts.ReadBuffer, func() {
		s.gate.Reset()
		opts.Metrics.Paused(kind)
	}, s.gate.Fire)

	opts.Metrics.Opened(kind)
	go s.readLoop()
	go s.writeLoop()
	return s
}

// ID is a unique identifier for this stream, used in logs.
func (s *LinkStream) ID() string { return s.id }

func (s *LinkStream) Write(p []byte) (bool, error) {
	s.mu.Lock()
	if s.closed || s.writeClosed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	c := Chunk{Data: append([]byte(nil), p...)}
	if s.sequenced {
		s.nextSeq++
		c.Seq = s.nextSeq
	}
	s.out = append(s.out, c)
	s.outBytes += len(c.Data)
	below := s.outBytes < s.opts.WriteBuffer
	if !below {
		s.drain.Reset()
	}
	s.mu.Unlock()

	s.kick()
	return below, nil
}

func (s *LinkStream) Drain() <-chan struct{} { return s.drain.Wait() }

func (s *LinkStream) Data() <-chan Chunk { return s.inbox.Out() }

func (s *LinkStream) CloseWrite() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.writeClosed = true
	s.mu.Unlock()
	s.kick()
	return nil
}

// Close tears down the link and drops undelivered input.
func (s *LinkStream) Close() error {
	s.finish(nil, true)
	return nil
}

func (s *LinkStream) Done() <-chan struct{} { return s.done }

func (s *LinkStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *LinkStream) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *LinkStream) writeLoop() {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if len(s.out) == 0 {
			if s.writeClosed {
				s.mu.Unlock()
				if err := s.link.CloseWrite(); err != nil {
					s.log.Debug("half-close failed", "error", err)
				}
				s.mu.Lock()
				s.writeDone = true
				both := s.readEOF
				s.mu.Unlock()
				if both {
					s.finish(nil, false)
				}
				return
			}
			s.mu.Unlock()
			select {
			case <-s.wake:
			case <-s.done:
				return
			}
			continue
		}
		head := s.out[0]
		s.mu.Unlock()

		if err := s.link.WriteChunk(head); err != nil {
			s.fail("write", err)
			return
		}
		s.opts.Metrics.Sent(s.kind, len(head.Data))

		s.mu.Lock()
		if len(s.out) > 0 {
			s.out[0] = Chunk{}
			s.out = s.out[1:]
		}
		s.outBytes -= len(head.Data)
		if s.outBytes < s.opts.WriteBuffer {
			s.drain.Fire()
		}
		s.mu.Unlock()
	}
}

func (s *LinkStream) readLoop() {
	for {
		select {
		case <-s.gate.Wait():
		case <-s.done:
			return
		}

		c, err := s.link.ReadChunk()
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				s.inbox.End()
				s.mu.Lock()
				s.readEOF = true
				both := s.writeDone
				s.mu.Unlock()
				if both {
					s.finish(nil, false)
				}
				return
			}
			s.fail("read", err)
			return
		}
		s.opts.Metrics.Received(s.kind, len(c.Data))
		if _, err := s.inbox.Push(c); err != nil {
			return
		}
	}
}

func (s *LinkStream) fail(op string, err error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	if stderrors.Is(err, ErrProtocol) {
		s.opts.Metrics.ProtocolError(s.kind)
	} else {
		var ce *ConnError
		if !stderrors.As(err, &ce) {
			err = &ConnError{Op: op, Kind: s.kind, Err: err}
		}
	}
	s.log.Debug("stream failed", "op", op, "error", err)
	s.finish(err, false)
}

// finish closes the stream once. abort drops undelivered input; otherwise
// the consumer still receives the backlog before Data closes.
func (s *LinkStream) finish(err error, abort bool) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.err = err
		s.out = nil
		s.outBytes = 0
		s.mu.Unlock()

		if cerr := s.link.Close(); cerr != nil {
			s.log.Debug("close link", "error", cerr)
		}
		if abort {
			s.inbox.Abort()
		} else {
			s.inbox.End()
		}
		s.drain.Fire()
		s.gate.Fire()
		close(s.done)
		s.opts.Metrics.Closed(s.kind)
	})
}

package thread

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gezibash/arc-kernel/pkg/transport"
)

const kind = "thread"

// Stream is a pipe endpoint over a Port.
//
// When the local consumer falls behind (or Pause is called), the stream
// sends pause to its peer and the peer buffers its writes locally; resume
// makes the peer flush that buffer in order.
type Stream struct {
	port *Port
	opts transport.Options
	log  *slog.Logger

	inbox *transport.Inbox
	drain *transport.Signal

	// outbound state
	mu           sync.Mutex
	peerPaused   bool
	pending      [][]byte
	pendingBytes int
	writeClosed  bool
	endSent      bool
	readEnded    bool
	closed       bool
	err          error

	// inbound flow state
	flowMu    sync.Mutex
	manual    bool
	saturated bool

	done      chan struct{}
	closeOnce sync.Once
}

// NewStream starts a stream on port. The port must not be shared.
func NewStream(port *Port, opts transport.Options) *Stream {
	opts = opts.WithDefaults()
	s := &Stream{
		port:  port,
		opts:  opts,
		log:   opts.Logger.WithComponent("thread-stream").Slog(),
		drain: transport.NewSignal(true),
		done:  make(chan struct{}),
	}
	s.inbox = transport.NewInbox(opts.ReadBuffer,
		func() { s.setFlow(func() { s.saturated = true }) },
		func() { s.setFlow(func() { s.saturated = false }) })
	go s.recvLoop()
	return s
}

// Write sends p, or buffers it while the peer has paused this stream. It
// reports false once the local buffer reaches WriteBuffer bytes.
func (s *Stream) Write(p []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.writeClosed {
		return false, transport.ErrClosed
	}
	if s.peerPaused {
		s.pending = append(s.pending, append([]byte(nil), p...))
		s.pendingBytes += len(p)
		if s.pendingBytes >= s.opts.WriteBuffer {
			s.drain.Reset()
			return false, nil
		}
		return true, nil
	}
	if err := s.port.Send(Message{Type: TypeData, Payload: p}); err != nil {
		return false, err
	}
	s.opts.Metrics.Sent(kind, len(p))
	return true, nil
}

func (s *Stream) Drain() <-chan struct{} { return s.drain.Wait() }

func (s *Stream) Data() <-chan transport.Chunk { return s.inbox.Out() }

// CloseWrite sends end once any buffered writes have been flushed.
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
	if !s.peerPaused {
		s.sendEndLocked()
	}
	both := s.endSent && s.readEnded
	s.mu.Unlock()

	if both {
		s.finish(false)
	}
	return nil
}

// Pause asks the peer to stop sending until Resume.
func (s *Stream) Pause() { s.setFlow(func() { s.manual = true }) }

// Resume lifts a Pause. The peer stays paused while the consumer is still
// saturated.
func (s *Stream) Resume() { s.setFlow(func() { s.manual = false }) }

// Close releases the port and drops undelivered input.
func (s *Stream) Close() error {
	s.finish(true)
	return nil
}

func (s *Stream) Done() <-chan struct{} { return s.done }

// Err reports a peer that closed its port without sending end. It is nil
// after a clean end or a local Close.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) setFlow(change func()) {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()
	before := s.manual || s.saturated
	change()
	after := s.manual || s.saturated
	switch {
	case !before && after:
		s.opts.Metrics.Paused(kind)
		_ = s.port.Send(Message{Type: TypePause})
	case before && !after:
		_ = s.port.Send(Message{Type: TypeResume})
	}
}

func (s *Stream) sendEndLocked() {
	if s.endSent {
		return
	}
	s.endSent = true
	_ = s.port.Send(Message{Type: TypeEnd})
}

// flushLocked sends buffered writes in order.
func (s *Stream) flushLocked() {
	for i, p := range s.pending {
		if err := s.port.Send(Message{Type: TypeData, Payload: p}); err != nil {
			s.log.Debug("flush failed", "error", err)
			break
		}
		s.opts.Metrics.Sent(kind, len(p))
		s.pending[i] = nil
	}
	s.pending = nil
	s.pendingBytes = 0
	s.drain.Fire()
	if s.writeClosed {
		s.sendEndLocked()
	}
}

func (s *Stream) recvLoop() {
	for msg := range s.port.Recv() {
		switch msg.Type {
		case TypeData:
			s.opts.Metrics.Received(kind, len(msg.Payload))
			if _, err := s.inbox.Push(transport.Chunk{Data: msg.Payload}); err != nil {
				return
			}
		case TypePause:
			s.mu.Lock()
			s.peerPaused = true
			s.mu.Unlock()
		case TypeResume:
			s.mu.Lock()
			s.peerPaused = false
			s.flushLocked()
			both := s.endSent && s.readEnded
			s.mu.Unlock()
			if both {
				s.finish(false)
				return
			}
		case TypeEnd:
			s.inbox.End()
			s.mu.Lock()
			s.readEnded = true
			both := s.endSent
			s.mu.Unlock()
			if both {
				s.finish(false)
				return
			}
		default:
			s.opts.Metrics.ProtocolError(kind)
			s.log.Debug("dropping unexpected message", "type", msg.Type)
		}
	}
	// The peer closed its port.
	s.mu.Lock()
	if !s.closed && !s.readEnded {
		s.err = fmt.Errorf("%w: peer closed before end", transport.ErrClosed)
	}
	s.mu.Unlock()
	s.finish(false)
}

func (s *Stream) finish(abort bool) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.pending = nil
		s.mu.Unlock()

		_ = s.port.Close()
		if abort {
			s.inbox.Abort()
		} else {
			s.inbox.End()
		}
		s.drain.Fire()
		close(s.done)
	})
}

package netsock

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/gezibash/arc-kernel/pkg/transport"
)

const (
	headerSize = 12
	// MaxFrameSize bounds a single TCP frame payload.
	MaxFrameSize = 16 << 20
)

// tcpLink frames chunks as [seq u64][len u32][payload], big-endian.
type tcpLink struct {
	conn *net.TCPConn
	r    *bufio.Reader
	hdr  [headerSize]byte
	whdr [headerSize]byte
}

func newTCPLink(conn *net.TCPConn) *tcpLink {
	return &tcpLink{conn: conn, r: bufio.NewReader(conn)}
}

func (l *tcpLink) ReadChunk() (transport.Chunk, error) {
	if _, err := io.ReadFull(l.r, l.hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return transport.Chunk{}, &transport.ProtocolError{Kind: KindTCP, Err: err}
		}
		return transport.Chunk{}, err
	}
	seq := binary.BigEndian.Uint64(l.hdr[0:8])
	n := binary.BigEndian.Uint32(l.hdr[8:12])
	if n > MaxFrameSize {
		return transport.Chunk{}, &transport.ProtocolError{
			Kind: KindTCP,
			Err:  fmt.Errorf("frame of %d bytes exceeds limit %d", n, MaxFrameSize),
		}
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(l.r, data); err != nil {
		return transport.Chunk{}, &transport.ProtocolError{Kind: KindTCP, Err: err}
	}
	return transport.Chunk{Seq: seq, Data: data}, nil
}

func (l *tcpLink) WriteChunk(c transport.Chunk) error {
	binary.BigEndian.PutUint64(l.whdr[0:8], c.Seq)
	binary.BigEndian.PutUint32(l.whdr[8:12], uint32(len(c.Data)))
	bufs := net.Buffers{l.whdr[:], c.Data}
	_, err := bufs.WriteTo(l.conn)
	return err
}

func (l *tcpLink) CloseWrite() error { return l.conn.CloseWrite() }
func (l *tcpLink) Close() error      { return l.conn.Close() }

// NewTCPStream wraps an established TCP connection.
func NewTCPStream(conn *net.TCPConn, opts transport.Options) *transport.LinkStream {
	return transport.NewLinkStream(newTCPLink(conn), KindTCP, true, opts)
}

// DialTCP connects to cfg within cfg.Timeout. Failures are
// *transport.ConnError; a timeout also matches errors.ErrTimeout.
func DialTCP(ctx context.Context, cfg ClientConfig, opts transport.Options) (*transport.LinkStream, error) {
	d := net.Dialer{Timeout: cfg.timeout()}
	conn, err := d.DialContext(ctx, "tcp", cfg.addr())
	if err != nil {
		opts.Metrics.DialFailed(KindTCP)
		return nil, dialError(KindTCP, cfg.addr(), err)
	}
	return NewTCPStream(conn.(*net.TCPConn), opts), nil
}

// ListenTCP serves streams on addr, calling handler on its own goroutine
// for each accepted connection.
func ListenTCP(ctx context.Context, addr string, handler func(transport.Stream), opts transport.Options) (*Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, &transport.ConnError{Op: "listen", Kind: KindTCP, Addr: addr, Err: err}
	}
	l := &Listener{ln: ln, stop: ln.Close, done: make(chan struct{})}
	log := opts.WithDefaults().Logger.WithComponent("tcp-listener")

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					log.Warn("accept failed", "addr", addr, "error", err)
				}
				return
			}
			go handler(NewTCPStream(conn.(*net.TCPConn), opts))
		}
	}()
	l.closeOn(ctx)
	return l, nil
}

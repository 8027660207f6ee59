package unixsock

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"

	kerrors "github.com/gezibash/arc-kernel/pkg/errors"
	"github.com/gezibash/arc-kernel/pkg/transport"
)

const readSize = 32 * 1024

// connLink moves raw bytes. Chunk boundaries are not preserved across the
// socket; the reader sees whatever each read returns.
type connLink struct {
	conn *net.UnixConn
	buf  []byte
}

func (l *connLink) ReadChunk() (transport.Chunk, error) {
	n, err := l.conn.Read(l.buf)
	if n > 0 {
		return transport.Chunk{Data: append([]byte(nil), l.buf[:n]...)}, nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return transport.Chunk{}, err
}

func (l *connLink) WriteChunk(c transport.Chunk) error {
	_, err := l.conn.Write(c.Data)
	return err
}

func (l *connLink) CloseWrite() error { return l.conn.CloseWrite() }
func (l *connLink) Close() error      { return l.conn.Close() }

// NewStream wraps an already connected socket.
func NewStream(conn *net.UnixConn, opts transport.Options) *transport.LinkStream {
	return transport.NewLinkStream(&connLink{conn: conn, buf: make([]byte, readSize)}, kind, false, opts)
}

// Dial connects to the socket at path.
func Dial(ctx context.Context, path string, opts transport.Options) (*transport.LinkStream, error) {
	conn, err := dialUnix(ctx, path)
	if err != nil {
		opts.Metrics.DialFailed(kind)
		return nil, err
	}
	return NewStream(conn, opts), nil
}

func dialUnix(ctx context.Context, path string) (*net.UnixConn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, dialError(path, err)
	}
	return c.(*net.UnixConn), nil
}

func dialError(addr string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		err = errors.Join(kerrors.ErrTimeout, err)
	}
	return &transport.ConnError{Op: "dial", Kind: kind, Addr: addr, Err: err}
}

// Listener accepts stream connections on a socket path.
type Listener struct {
	ln        *net.UnixListener
	path      string
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Listen serves streams on path, calling handler on its own goroutine for
// each accepted connection. A stale socket file at path is replaced. The
// listener stops when ctx is canceled or Close is called.
func Listen(ctx context.Context, path string, handler func(transport.Stream), opts transport.Options) (*Listener, error) {
	ln, err := listenUnix(path)
	if err != nil {
		return nil, err
	}
	l := &Listener{ln: ln, path: path, done: make(chan struct{})}
	log := opts.WithDefaults().Logger.WithComponent("unix-listener")

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for {
			conn, err := ln.AcceptUnix()
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					log.Warn("accept failed", "path", path, "error", err)
				}
				return
			}
			s := NewStream(conn, opts)
			go handler(s)
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-l.done:
		}
	}()
	return l, nil
}

func listenUnix(path string) (*net.UnixListener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, &transport.ConnError{Op: "listen", Kind: kind, Addr: path, Err: err}
	}
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, &transport.ConnError{Op: "listen", Kind: kind, Addr: path, Err: err}
	}
	ln.SetUnlinkOnClose(true)
	return ln, nil
}

// Path returns the socket path.
func (l *Listener) Path() string { return l.path }

// Close stops accepting. Streams already handed out stay open.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.ln.Close()
		l.wg.Wait()
	})
	return err
}

// Package netsock implements the Stream contract over network sockets.
//
// Both variants number every outbound chunk with a per-stream sequence
// starting at 1 so consumers can detect loss or duplication with
// transport.SeqTracker. TCP uses a binary frame; WebSocket uses one JSON
// message per chunk.
package netsock

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gezibash/arc-kernel/internal/confmap"
	kerrors "github.com/gezibash/arc-kernel/pkg/errors"
	"github.com/gezibash/arc-kernel/pkg/transport"
)

const (
	KindTCP = "tcp"
	KindWS  = "ws"

	KeyHost    = "host"
	KeyPort    = "port"
	KeyPath    = "path"
	KeyTimeout = "timeout"

	DefaultTimeout = 5 * time.Second
)

func init() {
	transport.Register(KindTCP, transport.Kind{
		Stream: func(ctx context.Context, config map[string]string, opts transport.Options) (transport.Stream, error) {
			cfg, err := parseClientConfig(KindTCP, config)
			if err != nil {
				return nil, err
			}
			return DialTCP(ctx, cfg, opts)
		},
		Defaults: Defaults,
	})
	transport.Register(KindWS, transport.Kind{
		Stream: func(ctx context.Context, config map[string]string, opts transport.Options) (transport.Stream, error) {
			cfg, err := parseClientConfig(KindWS, config)
			if err != nil {
				return nil, err
			}
			return DialWS(ctx, cfg, opts)
		},
		Defaults: Defaults,
	})
}

// Defaults returns the default client configuration.
func Defaults() map[string]string {
	return map[string]string{
		KeyHost:    "127.0.0.1",
		KeyPort:    "",
		KeyPath:    "/",
		KeyTimeout: "5s",
	}
}

// ClientConfig addresses a server.
type ClientConfig struct {
	Host    string
	Port    int
	Path    string // WebSocket only
	Timeout time.Duration
}

func (c ClientConfig) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c ClientConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func parseClientConfig(kind string, config map[string]string) (ClientConfig, error) {
	cfg := ClientConfig{
		Host: confmap.GetString(config, KeyHost, "127.0.0.1"),
		Path: confmap.GetString(config, KeyPath, "/"),
	}
	port, err := confmap.GetInt(config, KeyPort, 0)
	if err != nil {
		return cfg, confmap.NewConfigErrorWithValue(kind, KeyPort, config[KeyPort], err.Error())
	}
	if port <= 0 || port > 65535 {
		return cfg, confmap.NewConfigErrorWithValue(kind, KeyPort, config[KeyPort], "must be between 1 and 65535")
	}
	cfg.Port = port
	cfg.Timeout, err = confmap.GetDuration(config, KeyTimeout, DefaultTimeout)
	if err != nil {
		return cfg, confmap.NewConfigErrorWithValue(kind, KeyTimeout, config[KeyTimeout], err.Error())
	}
	return cfg, nil
}

func dialError(kind, addr string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		err = errors.Join(kerrors.ErrTimeout, err)
	}
	return &transport.ConnError{Op: "dial", Kind: kind, Addr: addr, Err: err}
}

// Listener is a running TCP or WebSocket server.
type Listener struct {
	ln        net.Listener
	stop      func() error
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Addr returns the bound address, useful when listening on port 0.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Port returns the bound TCP port.
func (l *Listener) Port() int {
	if a, ok := l.ln.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}

// Close stops accepting. Streams already handed out stay open.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.stop()
		l.wg.Wait()
	})
	return err
}

func (l *Listener) closeOn(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-l.done:
		}
	}()
}

package unixsock

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gezibash/arc-kernel/pkg/transport"
)

const (
	frameType = "control"

	DefaultHeartbeatInterval = time.Second
	DefaultShutdownGrace     = 100 * time.Millisecond
)

// frame is one line on the control socket.
type frame struct {
	Type  string          `json:"type"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// stamp is the payload of heartbeat and shutdown messages.
type stamp struct {
	TS int64 `json:"ts"`
}

// failure is the payload of control.error.
type failure struct {
	TS    int64  `json:"ts"`
	Error string `json:"error"`
}

// BusConfig tunes a control bus.
type BusConfig struct {
	Clock clockwork.Clock
	// HeartbeatInterval is the period of control.heartbeat messages.
	// Negative disables the heartbeat.
	HeartbeatInterval time.Duration
	// ShutdownGrace is how long Shutdown waits for control.shutdown to
	// reach peers before closing sockets.
	ShutdownGrace time.Duration
	// DialTimeout bounds DialBus's connect. Zero leaves it to ctx.
	DialTimeout time.Duration
}

func (c BusConfig) withDefaults() BusConfig {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}
	return c
}

// Bus is a line-framed control bus. A listening bus fans every publish out
// to all connected clients; a dialed bus talks to one server. Either side
// delivers what it receives to local subscribers.
type Bus struct {
	cfg     BusConfig
	hub     *transport.Hub
	log     *slog.Logger
	metrics *transport.Metrics
	ln      *net.UnixListener

	mu           sync.Mutex
	conns        map[*lineConn]struct{}
	shuttingDown bool
	closed       bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// ListenBus serves a control bus on path.
func ListenBus(ctx context.Context, path string, cfg BusConfig, opts transport.Options) (*Bus, error) {
	ln, err := listenUnix(path)
	if err != nil {
		return nil, err
	}
	b := newBus(cfg, opts, "unix-bus-server")
	b.ln = ln

	b.wg.Add(1)
	go b.acceptLoop()
	b.watch(ctx)
	b.log.Info("control bus listening", "path", path)
	return b, nil
}

// DialBus connects to a control bus served on path. The bus shuts down
// when ctx ends; cfg.DialTimeout limits only the connect.
func DialBus(ctx context.Context, path string, cfg BusConfig, opts transport.Options) (*Bus, error) {
	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	conn, err := dialUnix(dialCtx, path)
	if err != nil {
		opts.Metrics.DialFailed(kind)
		return nil, err
	}
	b := newBus(cfg, opts, "unix-bus-client")
	b.add(conn)
	b.watch(ctx)
	return b, nil
}

func newBus(cfg BusConfig, opts transport.Options, component string) *Bus {
	opts = opts.WithDefaults()
	b := &Bus{
		cfg:     cfg.withDefaults(),
		hub:     transport.NewHub(),
		log:     opts.Logger.WithComponent(component).Slog(),
		metrics: opts.Metrics,
		conns:   make(map[*lineConn]struct{}),
		stop:    make(chan struct{}),
	}
	if b.cfg.HeartbeatInterval > 0 {
		b.wg.Add(1)
		go b.heartbeatLoop()
	}
	return b
}

// watch shuts the bus down when ctx ends.
func (b *Bus) watch(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			_ = b.Shutdown(context.Background())
		case <-b.stop:
		}
	}()
}

func (b *Bus) Topic(name string) transport.Topic {
	return transport.NewTopic(name, b.hub, func(data any) error {
		return b.Publish(name, data)
	}, nil)
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

// Publish writes one line to every connected peer. After Shutdown it is a
// silent no-op.
func (b *Bus) Publish(topic string, data any) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	conns := make([]*lineConn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	line, err := encodeFrame(topic, data)
	if err != nil {
		return err
	}
	for _, c := range conns {
		if err := c.send(line); err != nil {
			b.drop(c, err)
			continue
		}
		b.metrics.BusMessage(kind, "out")
	}
	return nil
}

// Clients returns the number of connected peers.
func (b *Bus) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Shutdown announces control.shutdown, waits the grace period (or until
// ctx ends), then closes every socket and stops the heartbeat. Errors from
// sockets torn down along the way are not reported.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.shuttingDown {
		b.mu.Unlock()
		return nil
	}
	b.shuttingDown = true
	b.mu.Unlock()

	_ = b.Publish(transport.TopicShutdown, stamp{TS: b.cfg.Clock.Now().UnixMilli()})

	select {
	case <-b.cfg.Clock.After(b.cfg.ShutdownGrace):
	case <-ctx.Done():
	}

	b.mu.Lock()
	b.closed = true
	conns := b.conns
	b.conns = make(map[*lineConn]struct{})
	b.mu.Unlock()

	close(b.stop)
	if b.ln != nil {
		_ = b.ln.Close()
	}
	for c := range conns {
		_ = c.conn.Close()
		b.metrics.Closed(kind)
	}
	b.wg.Wait()
	b.hub.Close()
	return nil
}

// Close is Shutdown without a deadline.
func (b *Bus) Close() error {
	return b.Shutdown(context.Background())
}

func (b *Bus) acceptLoop() {
	defer b.wg.Done()
	for {
		conn, err := b.ln.AcceptUnix()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && !b.isShuttingDown() {
				b.log.Warn("accept failed", "error", err)
			}
			return
		}
		b.add(conn)
	}
}

func (b *Bus) add(conn *net.UnixConn) {
	c := &lineConn{conn: conn}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = conn.Close()
		return
	}
	b.conns[c] = struct{}{}
	b.mu.Unlock()

	b.metrics.Opened(kind)
	b.wg.Add(1)
	go b.readLoop(c)
}

// drop forgets a connection after a failed write or read.
func (b *Bus) drop(c *lineConn, err error) {
	b.mu.Lock()
	_, ok := b.conns[c]
	delete(b.conns, c)
	shutting := b.shuttingDown
	b.mu.Unlock()
	if !ok {
		return
	}
	_ = c.conn.Close()
	b.metrics.Closed(kind)
	if err != nil && !shutting && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		b.log.Warn("control connection lost", "error", err)
		b.hub.Deliver(transport.TopicError, failure{TS: b.cfg.Clock.Now().UnixMilli(), Error: err.Error()})
	}
	if !shutting {
		b.hub.Deliver(transport.TopicClose, stamp{TS: b.cfg.Clock.Now().UnixMilli()})
	}
}

func (b *Bus) readLoop(c *lineConn) {
	defer b.wg.Done()
	r := bufio.NewReader(c.conn)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			b.handleLine(line)
		}
		if err != nil {
			b.drop(c, err)
			return
		}
	}
}

func (b *Bus) handleLine(line []byte) {
	var f frame
	if err := json.Unmarshal(line, &f); err != nil || f.Type != frameType || f.Topic == "" {
		if err == nil {
			err = fmt.Errorf("unexpected frame type %q", f.Type)
		}
		b.metrics.ProtocolError(kind)
		b.log.Debug("dropping malformed control line", "error", &transport.ProtocolError{Kind: kind, Err: err})
		return
	}
	b.metrics.BusMessage(kind, "in")
	b.hub.Deliver(f.Topic, f.Data)
}

func (b *Bus) heartbeatLoop() {
	defer b.wg.Done()
	ticker := b.cfg.Clock.NewTicker(b.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			_ = b.Publish(transport.TopicHeartbeat, stamp{TS: b.cfg.Clock.Now().UnixMilli()})
		case <-b.stop:
			return
		}
	}
}

func (b *Bus) isShuttingDown() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shuttingDown
}

func encodeFrame(topic string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", topic, err)
	}
	line, err := json.Marshal(frame{Type: frameType, Topic: topic, Data: raw})
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}

// lineConn serializes writes of whole lines.
type lineConn struct {
	conn *net.UnixConn
	mu   sync.Mutex
}

func (c *lineConn) send(line []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.conn.Write(line)
	return err
}

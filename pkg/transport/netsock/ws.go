package netsock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gezibash/arc-kernel/pkg/transport"
)

// wsFrame is one WebSocket message. End marks the sender's half-close.
type wsFrame struct {
	Seq  uint64 `json:"seq"`
	Data []byte `json:"data,omitempty"`
	End  bool   `json:"end,omitempty"`
}

type wsLink struct {
	conn  *websocket.Conn
	ended bool
}

func (l *wsLink) ReadChunk() (transport.Chunk, error) {
	if l.ended {
		return transport.Chunk{}, io.EOF
	}
	var f wsFrame
	if err := l.conn.ReadJSON(&f); err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return transport.Chunk{}, io.EOF
		}
		var se *json.SyntaxError
		if errors.As(err, &se) {
			return transport.Chunk{}, &transport.ProtocolError{Kind: KindWS, Err: err}
		}
		return transport.Chunk{}, err
	}
	if f.End {
		l.ended = true
		return transport.Chunk{}, io.EOF
	}
	return transport.Chunk{Seq: f.Seq, Data: f.Data}, nil
}

func (l *wsLink) WriteChunk(c transport.Chunk) error {
	return l.conn.WriteJSON(wsFrame{Seq: c.Seq, Data: c.Data})
}

func (l *wsLink) CloseWrite() error {
	return l.conn.WriteJSON(wsFrame{End: true})
}

func (l *wsLink) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = l.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return l.conn.Close()
}

// NewWSStream wraps an established WebSocket connection.
func NewWSStream(conn *websocket.Conn, opts transport.Options) *transport.LinkStream {
	return transport.NewLinkStream(&wsLink{conn: conn}, KindWS, true, opts)
}

// DialWS opens a WebSocket stream to ws://host:port/path.
func DialWS(ctx context.Context, cfg ClientConfig, opts transport.Options) (*transport.LinkStream, error) {
	path := cfg.Path
	if path == "" {
		path = "/"
	}
	u := url.URL{Scheme: "ws", Host: cfg.addr(), Path: path}
	dialer := websocket.Dialer{HandshakeTimeout: cfg.timeout()}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout())
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		opts.Metrics.DialFailed(KindWS)
		if resp != nil {
			err = fmt.Errorf("%w (status %s)", err, resp.Status)
		}
		return nil, dialError(KindWS, u.String(), err)
	}
	return NewWSStream(conn, opts), nil
}

// NewWSHandler upgrades each request and passes the stream to handler.
func NewWSHandler(handler func(transport.Stream), opts transport.Options) http.Handler {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	log := opts.WithDefaults().Logger.WithComponent("ws-handler")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug("upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		handler(NewWSStream(conn, opts))
	})
}

// ListenWS serves WebSocket streams on addr at path.
func ListenWS(ctx context.Context, addr, path string, handler func(transport.Stream), opts transport.Options) (*Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, &transport.ConnError{Op: "listen", Kind: KindWS, Addr: addr, Err: err}
	}
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.Handle(path, NewWSHandler(handler, opts))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	l := &Listener{ln: ln, stop: srv.Close, done: make(chan struct{})}
	log := opts.WithDefaults().Logger.WithComponent("ws-listener")

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("serve failed", "addr", addr, "error", err)
		}
	}()
	l.closeOn(ctx)
	return l, nil
}

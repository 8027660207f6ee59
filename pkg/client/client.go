// Package client talks to a remote Hostess over gRPC.
package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpcmd "google.golang.org/grpc/metadata"

	hostessv1 "github.com/gezibash/arc-kernel/api/hostess/v1"
	"github.com/gezibash/arc-kernel/internal/middleware"
	"github.com/gezibash/arc-kernel/pkg/hostess"
)

type Client struct {
	conn *grpc.ClientConn
	stub hostessv1.HostessClient
}

type clientConfig struct {
	caller   string
	dialOpts []grpc.DialOption
}

// Option configures client behavior.
type Option func(*clientConfig)

// WithCaller names this client in every request, for server-side logs.
func WithCaller(name string) Option {
	return func(c *clientConfig) { c.caller = name }
}

// WithDialOptions appends raw gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *clientConfig) { c.dialOpts = append(c.dialOpts, opts...) }
}

// Dial creates a client for the Hostess at addr. The connection is lazy.
func Dial(addr string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if cfg.caller != "" {
		dialOpts = append(dialOpts,
			grpc.WithUnaryInterceptor(callerUnaryInterceptor(cfg.caller)),
			grpc.WithStreamInterceptor(callerStreamInterceptor(cfg.caller)),
		)
	}
	dialOpts = append(dialOpts, cfg.dialOpts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn, stub: hostessv1.NewHostessClient(conn)}, nil
}

func callerUnaryInterceptor(name string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		ctx = grpcmd.AppendToOutgoingContext(ctx, middleware.CallerKey, name)
		return invoker(ctx, method, req, reply, cc, callOpts...)
	}
}

func callerStreamInterceptor(name string) grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, callOpts ...grpc.CallOption) (grpc.ClientStream, error) {
		ctx = grpcmd.AppendToOutgoingContext(ctx, middleware.CallerKey, name)
		return streamer(ctx, desc, cc, method, callOpts...)
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// call runs fn with a trailer capture and maps failures back to registry
// errors.
func call[Resp any](fn func(...grpc.CallOption) (*Resp, error)) (*Resp, error) {
	var trailer grpcmd.MD
	resp, err := fn(grpc.Trailer(&trailer))
	if err != nil {
		return nil, hostessv1.ClientError(err, trailer)
	}
	return resp, nil
}

// Info returns the registry's heartbeat interval and eviction threshold.
func (c *Client) Info(ctx context.Context) (*hostessv1.InfoResponse, error) {
	return call(func(o ...grpc.CallOption) (*hostessv1.InfoResponse, error) {
		return c.stub.Info(ctx, &hostessv1.Empty{}, o...)
	})
}

func (c *Client) Register(ctx context.Context, m hostess.Manifest) (string, error) {
	resp, err := call(func(o ...grpc.CallOption) (*hostessv1.RegisterResponse, error) {
		return c.stub.Register(ctx, &hostessv1.RegisterRequest{Manifest: m}, o...)
	})
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) Heartbeat(ctx context.Context, id string) error {
	_, err := call(func(o ...grpc.CallOption) (*hostessv1.Empty, error) {
		return c.stub.Heartbeat(ctx, &hostessv1.IDRequest{ID: id}, o...)
	})
	return err
}

func (c *Client) Deregister(ctx context.Context, id string) error {
	_, err := call(func(o ...grpc.CallOption) (*hostessv1.Empty, error) {
		return c.stub.Deregister(ctx, &hostessv1.IDRequest{ID: id}, o...)
	})
	return err
}

func (c *Client) Get(ctx context.Context, id string) (hostess.Entry, error) {
	resp, err := call(func(o ...grpc.CallOption) (*hostessv1.EntryResponse, error) {
		return c.stub.Get(ctx, &hostessv1.IDRequest{ID: id}, o...)
	})
	if err != nil {
		return hostess.Entry{}, err
	}
	return resp.Entry, nil
}

// MarkInUse reserves a terminal without a direction check.
func (c *Client) MarkInUse(ctx context.Context, id, terminal, reservation string) error {
	return c.MarkInUseAs(ctx, id, terminal, reservation, "")
}

// MarkInUseAs reserves a terminal for a peer playing role.
func (c *Client) MarkInUseAs(ctx context.Context, id, terminal, reservation string, role hostess.ReserveRole) error {
	_, err := call(func(o ...grpc.CallOption) (*hostessv1.Empty, error) {
		return c.stub.MarkInUse(ctx, &hostessv1.ReserveRequest{
			ID: id, Terminal: terminal, Reservation: reservation, Role: role,
		}, o...)
	})
	return err
}

func (c *Client) MarkAvailable(ctx context.Context, id, terminal string) error {
	_, err := call(func(o ...grpc.CallOption) (*hostessv1.Empty, error) {
		return c.stub.MarkAvailable(ctx, &hostessv1.ReleaseRequest{ID: id, Terminal: terminal}, o...)
	})
	return err
}

func (c *Client) Query(ctx context.Context, f *hostess.Filter) ([]hostess.Entry, error) {
	resp, err := call(func(o ...grpc.CallOption) (*hostessv1.EntriesResponse, error) {
		return c.stub.Query(ctx, &hostessv1.QueryRequest{Filter: f}, o...)
	})
	if err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *Client) QueryExpr(ctx context.Context, expr string) ([]hostess.Entry, error) {
	resp, err := call(func(o ...grpc.CallOption) (*hostessv1.EntriesResponse, error) {
		return c.stub.QueryExpr(ctx, &hostessv1.QueryExprRequest{Expr: expr}, o...)
	})
	if err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *Client) List(ctx context.Context) ([]hostess.Entry, error) {
	resp, err := call(func(o ...grpc.CallOption) (*hostessv1.EntriesResponse, error) {
		return c.stub.List(ctx, &hostessv1.Empty{}, o...)
	})
	if err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *Client) RegisterEndpoint(ctx context.Context, id string, ep hostess.Endpoint) error {
	_, err := call(func(o ...grpc.CallOption) (*hostessv1.Empty, error) {
		return c.stub.RegisterEndpoint(ctx, &hostessv1.EndpointRequest{ID: id, Endpoint: ep}, o...)
	})
	return err
}

func (c *Client) RemoveEndpoint(ctx context.Context, id string) (bool, error) {
	resp, err := call(func(o ...grpc.CallOption) (*hostessv1.RemoveEndpointResponse, error) {
		return c.stub.RemoveEndpoint(ctx, &hostessv1.IDRequest{ID: id}, o...)
	})
	if err != nil {
		return false, err
	}
	return resp.Removed, nil
}

func (c *Client) ListEndpoints(ctx context.Context) (map[string]hostess.Endpoint, error) {
	resp, err := call(func(o ...grpc.CallOption) (*hostessv1.EndpointsResponse, error) {
		return c.stub.ListEndpoints(ctx, &hostessv1.Empty{}, o...)
	})
	if err != nil {
		return nil, err
	}
	return resp.Endpoints, nil
}

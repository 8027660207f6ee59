package middleware

import (
	"context"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// CallerKey is the metadata key a client uses to name itself.
const CallerKey = "hostess-caller"

type callerKey struct{}

// Caller identifies who made a call: the self-declared name, if any, and
// the transport peer address.
type Caller struct {
	Name string
	Addr string
}

// WithCaller stores c in ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller recorded by CallerHook.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

// CallerHook records the caller from incoming metadata and the peer.
func CallerHook(ctx context.Context, _ *CallInfo) (context.Context, error) {
	var c Caller
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vs := md.Get(CallerKey); len(vs) > 0 {
			c.Name = vs[0]
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		c.Addr = p.Addr.String()
	}
	return WithCaller(ctx, c), nil
}

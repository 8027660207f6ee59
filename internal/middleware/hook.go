// Package middleware runs hooks around registry RPCs.
package middleware

import (
	"context"
	"log/slog"
	"strings"

	hostessv1 "github.com/gezibash/arc-kernel/api/hostess/v1"
)

// CallInfo describes the registry call being served.
type CallInfo struct {
	FullMethod string
	// Method is the bare RPC name, e.g. "Register".
	Method   string
	IsStream bool
}

// NewCallInfo builds a CallInfo from a gRPC full method name.
func NewCallInfo(fullMethod string, stream bool) *CallInfo {
	method := fullMethod
	if i := strings.LastIndexByte(fullMethod, '/'); i >= 0 {
		method = fullMethod[i+1:]
	}
	return &CallInfo{FullMethod: fullMethod, Method: method, IsStream: stream}
}

var readOnly = map[string]bool{
	hostessv1.Hostess_Info_FullMethodName:          true,
	hostessv1.Hostess_Get_FullMethodName:           true,
	hostessv1.Hostess_Query_FullMethodName:         true,
	hostessv1.Hostess_QueryExpr_FullMethodName:     true,
	hostessv1.Hostess_List_FullMethodName:          true,
	hostessv1.Hostess_ListEndpoints_FullMethodName: true,
	hostessv1.Hostess_Watch_FullMethodName:         true,
}

// Mutating reports whether the call changes registry state. Calls outside
// the hostess service are never mutating.
func (c *CallInfo) Mutating() bool {
	if !strings.HasPrefix(c.FullMethod, "/"+hostessv1.ServiceName+"/") {
		return false
	}
	return !readOnly[c.FullMethod]
}

// Hook runs for one call. A non-nil error, normally a gRPC status, rejects
// the call.
type Hook func(ctx context.Context, info *CallInfo) (context.Context, error)

// Chain holds hooks run before a call and after it succeeds.
type Chain struct {
	Pre  []Hook
	Post []Hook
}

// RunPre runs the pre hooks in order, stopping at the first error.
func (c *Chain) RunPre(ctx context.Context, info *CallInfo) (context.Context, error) {
	return run(ctx, c.Pre, info)
}

// RunPost runs the post hooks in order, stopping at the first error.
func (c *Chain) RunPost(ctx context.Context, info *CallInfo) (context.Context, error) {
	return run(ctx, c.Post, info)
}

func run(ctx context.Context, hooks []Hook, info *CallInfo) (context.Context, error) {
	for _, h := range hooks {
		var err error
		if ctx, err = h(ctx, info); err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

// AuditHook logs every successful mutating call with its caller. Heartbeats
// are left out.
func AuditHook(log *slog.Logger) Hook {
	return func(ctx context.Context, info *CallInfo) (context.Context, error) {
		if !info.Mutating() || info.FullMethod == hostessv1.Hostess_Heartbeat_FullMethodName {
			return ctx, nil
		}
		attrs := []any{slog.String("method", info.Method)}
		if c, ok := CallerFrom(ctx); ok {
			if c.Name != "" {
				attrs = append(attrs, slog.String("caller", c.Name))
			}
			if c.Addr != "" {
				attrs = append(attrs, slog.String("peer", c.Addr))
			}
		}
		log.DebugContext(ctx, "registry changed", attrs...)
		return ctx, nil
	}
}

package server

import (
	"context"

	"google.golang.org/grpc"

	"github.com/gezibash/arc-kernel/internal/middleware"
)

// UnaryServerInterceptor runs the hook chain around every unary call.
func UnaryServerInterceptor(chain *middleware.Chain) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		callInfo := middleware.NewCallInfo(info.FullMethod, false)
		ctx, err := chain.RunPre(ctx, callInfo)
		if err != nil {
			return nil, err
		}
		resp, err := handler(ctx, req)
		if err != nil {
			return resp, err
		}
		if _, err := chain.RunPost(ctx, callInfo); err != nil {
			return nil, err
		}
		return resp, nil
	}
}

// StreamServerInterceptor runs the pre hooks when a stream opens.
func StreamServerInterceptor(chain *middleware.Chain) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		callInfo := middleware.NewCallInfo(info.FullMethod, true)
		ctx, err := chain.RunPre(ss.Context(), callInfo)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})
	}
}

type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context { return w.ctx }

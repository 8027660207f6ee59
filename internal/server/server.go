// Package server exposes a Hostess registry over gRPC.
package server

import (
	"context"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	hostessv1 "github.com/gezibash/arc-kernel/api/hostess/v1"
	"github.com/gezibash/arc-kernel/internal/middleware"
	"github.com/gezibash/arc-kernel/internal/observability"
	"github.com/gezibash/arc-kernel/pkg/hostess"
	"github.com/gezibash/arc-kernel/pkg/logging"
)

// Options configures a Server. Zero values are fine.
type Options struct {
	MaxRecvMsgSize int
	MaxSendMsgSize int
	Metrics        *observability.Metrics
	Logger         *logging.Logger
	// Hooks run before every call; CallerHook is always first. Successful
	// mutating calls are logged at debug level.
	Hooks []middleware.Hook
}

type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	health     *health.Server
	service    *hostessService
	stopOnce   sync.Once
}

func New(addr string, h *hostess.Hostess, opts Options, grpcOpts ...grpc.ServerOption) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logging.New(nil)
	}
	log = log.WithComponent("grpc")

	chain := &middleware.Chain{
		Pre:  append([]middleware.Hook{middleware.CallerHook}, opts.Hooks...),
		Post: []middleware.Hook{middleware.AuditHook(log.Slog())},
	}

	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			observability.UnaryServerInterceptor(opts.Metrics),
			UnaryServerInterceptor(chain),
		),
		grpc.ChainStreamInterceptor(
			observability.StreamServerInterceptor(opts.Metrics),
			StreamServerInterceptor(chain),
		),
	}
	if opts.MaxRecvMsgSize > 0 {
		serverOpts = append(serverOpts, grpc.MaxRecvMsgSize(opts.MaxRecvMsgSize))
	}
	if opts.MaxSendMsgSize > 0 {
		serverOpts = append(serverOpts, grpc.MaxSendMsgSize(opts.MaxSendMsgSize))
	}
	serverOpts = append(serverOpts, grpcOpts...)

	grpcServer := grpc.NewServer(serverOpts...)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	svc := &hostessService{h: h, log: log, stop: make(chan struct{})}
	hostessv1.RegisterHostessServer(grpcServer, svc)

	return &Server{
		grpcServer: grpcServer,
		listener:   lis,
		health:     hs,
		service:    svc,
	}, nil
}

func (s *Server) SetServingStatus(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	if s.health != nil {
		s.health.SetServingStatus("", status)
	}
}

// Serve marks the server healthy and blocks serving until Stop.
func (s *Server) Serve() error {
	s.SetServingStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	return s.grpcServer.Serve(s.listener)
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Stop ends watch streams and stops gracefully, forcing when ctx expires.
func (s *Server) Stop(ctx context.Context) {
	s.stopOnce.Do(func() {
		s.SetServingStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		close(s.service.stop)

		done := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			s.service.log.Warn("graceful stop timed out, forcing")
			s.grpcServer.Stop()
			<-done
		}
	})
}

func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

package server

import (
	"context"
	"log/slog"
	"slices"

	"google.golang.org/grpc/metadata"

	hostessv1 "github.com/gezibash/arc-kernel/api/hostess/v1"
	"github.com/gezibash/arc-kernel/internal/middleware"
	"github.com/gezibash/arc-kernel/internal/queue"
	"github.com/gezibash/arc-kernel/pkg/hostess"
	"github.com/gezibash/arc-kernel/pkg/logging"
)

type hostessService struct {
	h    *hostess.Hostess
	log  *logging.Logger
	stop chan struct{}
}

var _ hostessv1.HostessServer = (*hostessService)(nil)

func (s *hostessService) logger(ctx context.Context) *logging.Logger {
	l := s.log
	if c, ok := middleware.CallerFrom(ctx); ok {
		if c.Name != "" {
			l = l.With(slog.String("caller", c.Name))
		}
		if c.Addr != "" {
			l = l.With(slog.String("peer", c.Addr))
		}
	}
	return l
}

func (s *hostessService) Info(ctx context.Context, _ *hostessv1.Empty) (*hostessv1.InfoResponse, error) {
	return &hostessv1.InfoResponse{
		HeartbeatInterval: s.h.HeartbeatInterval(),
		EvictionThreshold: s.h.EvictionThreshold(),
	}, nil
}

func (s *hostessService) Register(ctx context.Context, req *hostessv1.RegisterRequest) (*hostessv1.RegisterResponse, error) {
	id, err := s.h.Register(req.Manifest)
	if err != nil {
		s.logger(ctx).Debug("register rejected", "servername", req.Manifest.ServerName, "error", err)
		return nil, hostessv1.ServerError(ctx, err)
	}
	s.logger(ctx).WithIdentity(id).Debug("register accepted", "servername", req.Manifest.ServerName)
	return &hostessv1.RegisterResponse{ID: id}, nil
}

func (s *hostessService) Heartbeat(ctx context.Context, req *hostessv1.IDRequest) (*hostessv1.Empty, error) {
	if err := s.h.Heartbeat(req.ID); err != nil {
		return nil, hostessv1.ServerError(ctx, err)
	}
	return &hostessv1.Empty{}, nil
}

func (s *hostessService) Deregister(ctx context.Context, req *hostessv1.IDRequest) (*hostessv1.Empty, error) {
	if err := s.h.Deregister(req.ID); err != nil {
		return nil, hostessv1.ServerError(ctx, err)
	}
	return &hostessv1.Empty{}, nil
}

func (s *hostessService) Get(ctx context.Context, req *hostessv1.IDRequest) (*hostessv1.EntryResponse, error) {
	e, err := s.h.Get(req.ID)
	if err != nil {
		return nil, hostessv1.ServerError(ctx, err)
	}
	return &hostessv1.EntryResponse{Entry: e}, nil
}

func (s *hostessService) MarkInUse(ctx context.Context, req *hostessv1.ReserveRequest) (*hostessv1.Empty, error) {
	var err error
	if req.Role == "" {
		err = s.h.MarkInUse(req.ID, req.Terminal, req.Reservation)
	} else {
		err = s.h.MarkInUseAs(req.ID, req.Terminal, req.Reservation, req.Role)
	}
	if err != nil {
		s.logger(ctx).WithIdentity(req.ID).WithTerminal(req.Terminal).Debug("reservation refused", "error", err)
		return nil, hostessv1.ServerError(ctx, err)
	}
	return &hostessv1.Empty{}, nil
}

func (s *hostessService) MarkAvailable(ctx context.Context, req *hostessv1.ReleaseRequest) (*hostessv1.Empty, error) {
	if err := s.h.MarkAvailable(req.ID, req.Terminal); err != nil {
		return nil, hostessv1.ServerError(ctx, err)
	}
	return &hostessv1.Empty{}, nil
}

func (s *hostessService) Query(ctx context.Context, req *hostessv1.QueryRequest) (*hostessv1.EntriesResponse, error) {
	return &hostessv1.EntriesResponse{Entries: s.h.Query(req.Filter)}, nil
}

func (s *hostessService) QueryExpr(ctx context.Context, req *hostessv1.QueryExprRequest) (*hostessv1.EntriesResponse, error) {
	entries, err := s.h.QueryExpr(req.Expr)
	if err != nil {
		return nil, hostessv1.ServerError(ctx, err)
	}
	return &hostessv1.EntriesResponse{Entries: entries}, nil
}

func (s *hostessService) List(ctx context.Context, _ *hostessv1.Empty) (*hostessv1.EntriesResponse, error) {
	return &hostessv1.EntriesResponse{Entries: s.h.List()}, nil
}

func (s *hostessService) RegisterEndpoint(ctx context.Context, req *hostessv1.EndpointRequest) (*hostessv1.Empty, error) {
	if err := s.h.RegisterEndpoint(req.ID, req.Endpoint); err != nil {
		return nil, hostessv1.ServerError(ctx, err)
	}
	return &hostessv1.Empty{}, nil
}

func (s *hostessService) RemoveEndpoint(ctx context.Context, req *hostessv1.IDRequest) (*hostessv1.RemoveEndpointResponse, error) {
	return &hostessv1.RemoveEndpointResponse{Removed: s.h.RemoveEndpoint(req.ID)}, nil
}

func (s *hostessService) ListEndpoints(ctx context.Context, _ *hostessv1.Empty) (*hostessv1.EndpointsResponse, error) {
	return &hostessv1.EndpointsResponse{Endpoints: s.h.ListEndpoints()}, nil
}

// Watch streams registry events until the client goes away or the server
// stops. Headers are sent once the watch is installed, so a client that has
// read them will see every later change.
func (s *hostessService) Watch(req *hostessv1.WatchRequest, stream hostessv1.Hostess_WatchServer) error {
	q := queue.New[hostess.Event]()
	defer q.Abort()

	cancel := s.h.Watch(func(ev hostess.Event) {
		if len(req.Types) == 0 || slices.Contains(req.Types, ev.Type) {
			_, _ = q.Push(ev)
		}
	})
	defer cancel()

	if err := stream.SendHeader(metadata.Pairs("hostess-watch", "ready")); err != nil {
		return err
	}

	ctx := stream.Context()
	s.logger(ctx).Debug("watch opened")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stop:
			return nil
		case ev, ok := <-q.Out():
			if !ok {
				return nil
			}
			if err := stream.Send(&ev); err != nil {
				return err
			}
		}
	}
}

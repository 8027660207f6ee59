package hostessv1

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	kerrors "github.com/gezibash/arc-kernel/pkg/errors"
	"github.com/gezibash/arc-kernel/pkg/hostess"
)

// Trailer keys carrying registry error detail back to the caller.
const (
	TrailerReason   = "hostess-reason"
	TrailerOp       = "hostess-op"
	TrailerService  = "hostess-service"
	TrailerTerminal = "hostess-terminal"
	TrailerHeldBy   = "hostess-held-by"
)

// Ordered most specific first: the registry sentinels wrap the shared ones.
var reasons = []struct {
	reason string
	err    error
	code   codes.Code
}{
	{"unknown_service", hostess.ErrUnknownService, codes.NotFound},
	{"unknown_terminal", hostess.ErrUnknownTerminal, codes.NotFound},
	{"reservation_conflict", hostess.ErrReservationConflict, codes.Aborted},
	{"terminal_direction", hostess.ErrTerminalDirection, codes.FailedPrecondition},
	{"invalid_manifest", hostess.ErrInvalidManifest, codes.InvalidArgument},
	{"duplicate_identity", hostess.ErrDuplicateIdentity, codes.AlreadyExists},
	{"invalid_input", kerrors.ErrInvalidInput, codes.InvalidArgument},
	{"not_found", kerrors.ErrNotFound, codes.NotFound},
	{"closed", kerrors.ErrClosed, codes.Unavailable},
}

// Trailer builds the metadata describing err. It is empty for errors the
// registry does not define.
func Trailer(err error) metadata.MD {
	md := metadata.MD{}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			md.Set(TrailerReason, r.reason)
			break
		}
	}
	var he *hostess.Error
	if errors.As(err, &he) {
		md.Set(TrailerOp, he.Op)
		if he.Service != "" {
			md.Set(TrailerService, he.Service)
		}
		if he.Terminal != "" {
			md.Set(TrailerTerminal, he.Terminal)
		}
		if he.ReservedBy != "" {
			md.Set(TrailerHeldBy, he.ReservedBy)
		}
	}
	return md
}

// Status converts a registry error into a gRPC status error.
func Status(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return status.Error(r.code, err.Error())
		}
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// ServerError sets the detail trailer on ctx and returns the status error.
func ServerError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if md := Trailer(err); len(md) > 0 {
		_ = grpc.SetTrailer(ctx, md)
	}
	return Status(err)
}

// ClientError rebuilds a registry error from a failed call and its trailer.
// Errors without registry detail map to the shared sentinels by code.
func ClientError(err error, trailer metadata.MD) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	if reason := first(trailer, TrailerReason); reason != "" {
		for _, r := range reasons {
			if r.reason != reason {
				continue
			}
			op := first(trailer, TrailerOp)
			if op == "" {
				return fmt.Errorf("%s: %w", st.Message(), r.err)
			}
			return &hostess.Error{
				Op:         op,
				Service:    first(trailer, TrailerService),
				Terminal:   first(trailer, TrailerTerminal),
				ReservedBy: first(trailer, TrailerHeldBy),
				Err:        r.err,
			}
		}
	}

	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", st.Message(), kerrors.ErrNotFound)
	case codes.InvalidArgument:
		return fmt.Errorf("%s: %w", st.Message(), kerrors.ErrInvalidInput)
	case codes.AlreadyExists:
		return fmt.Errorf("%s: %w", st.Message(), kerrors.ErrAlreadyExists)
	case codes.Aborted, codes.FailedPrecondition:
		return fmt.Errorf("%s: %w", st.Message(), kerrors.ErrConflict)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w", st.Message(), kerrors.ErrTimeout)
	case codes.Unavailable:
		return fmt.Errorf("%s: %w", st.Message(), kerrors.ErrNotConnected)
	case codes.Canceled:
		return context.Canceled
	}
	return err
}

func first(md metadata.MD, key string) string {
	if vs := md.Get(key); len(vs) > 0 {
		return vs[0]
	}
	return ""
}

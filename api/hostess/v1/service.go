package hostessv1

import (
	"context"

	"google.golang.org/grpc"

	"github.com/gezibash/arc-kernel/pkg/hostess"
)

const ServiceName = "hostess.v1.Hostess"

const (
	Hostess_Info_FullMethodName             = "/" + ServiceName + "/Info"
	Hostess_Register_FullMethodName         = "/" + ServiceName + "/Register"
	Hostess_Heartbeat_FullMethodName        = "/" + ServiceName + "/Heartbeat"
	Hostess_Deregister_FullMethodName       = "/" + ServiceName + "/Deregister"
	Hostess_Get_FullMethodName              = "/" + ServiceName + "/Get"
	Hostess_MarkInUse_FullMethodName        = "/" + ServiceName + "/MarkInUse"
	Hostess_MarkAvailable_FullMethodName    = "/" + ServiceName + "/MarkAvailable"
	Hostess_Query_FullMethodName            = "/" + ServiceName + "/Query"
	Hostess_QueryExpr_FullMethodName        = "/" + ServiceName + "/QueryExpr"
	Hostess_List_FullMethodName             = "/" + ServiceName + "/List"
	Hostess_RegisterEndpoint_FullMethodName = "/" + ServiceName + "/RegisterEndpoint"
	Hostess_RemoveEndpoint_FullMethodName   = "/" + ServiceName + "/RemoveEndpoint"
	Hostess_ListEndpoints_FullMethodName    = "/" + ServiceName + "/ListEndpoints"
	Hostess_Watch_FullMethodName            = "/" + ServiceName + "/Watch"
)

// HostessServer is the server API for the Hostess service.
type HostessServer interface {
	Info(context.Context, *Empty) (*InfoResponse, error)
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Heartbeat(context.Context, *IDRequest) (*Empty, error)
	Deregister(context.Context, *IDRequest) (*Empty, error)
	Get(context.Context, *IDRequest) (*EntryResponse, error)
	MarkInUse(context.Context, *ReserveRequest) (*Empty, error)
	MarkAvailable(context.Context, *ReleaseRequest) (*Empty, error)
	Query(context.Context, *QueryRequest) (*EntriesResponse, error)
	QueryExpr(context.Context, *QueryExprRequest) (*EntriesResponse, error)
	List(context.Context, *Empty) (*EntriesResponse, error)
	RegisterEndpoint(context.Context, *EndpointRequest) (*Empty, error)
	RemoveEndpoint(context.Context, *IDRequest) (*RemoveEndpointResponse, error)
	ListEndpoints(context.Context, *Empty) (*EndpointsResponse, error)
	Watch(*WatchRequest, Hostess_WatchServer) error
}

// Hostess_WatchServer is the server side of the event stream.
type Hostess_WatchServer interface {
	Send(*hostess.Event) error
	grpc.ServerStream
}

// RegisterHostessServer registers srv on s.
func RegisterHostessServer(s grpc.ServiceRegistrar, srv HostessServer) {
	s.RegisterService(&Hostess_ServiceDesc, srv)
}

// Hostess_ServiceDesc describes the Hostess service for grpc.RegisterService.
var Hostess_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HostessServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Info", HostessServer.Info),
		unary("Register", HostessServer.Register),
		unary("Heartbeat", HostessServer.Heartbeat),
		unary("Deregister", HostessServer.Deregister),
		unary("Get", HostessServer.Get),
		unary("MarkInUse", HostessServer.MarkInUse),
		unary("MarkAvailable", HostessServer.MarkAvailable),
		unary("Query", HostessServer.Query),
		unary("QueryExpr", HostessServer.QueryExpr),
		unary("List", HostessServer.List),
		unary("RegisterEndpoint", HostessServer.RegisterEndpoint),
		unary("RemoveEndpoint", HostessServer.RemoveEndpoint),
		unary("ListEndpoints", HostessServer.ListEndpoints),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "hostess/v1/hostess.json",
}

func unary[Req, Resp any](name string, call func(HostessServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(HostessServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(HostessServer), ctx, req.(*Req))
			})
		},
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(HostessServer).Watch(in, &watchServer{stream})
}

type watchServer struct {
	grpc.ServerStream
}

func (x *watchServer) Send(e *hostess.Event) error {
	return x.ServerStream.SendMsg(e)
}

// HostessClient is the client API for the Hostess service. Every call uses
// the JSON codec.
type HostessClient interface {
	Info(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*InfoResponse, error)
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error)
	Heartbeat(ctx context.Context, in *IDRequest, opts ...grpc.CallOption) (*Empty, error)
	Deregister(ctx context.Context, in *IDRequest, opts ...grpc.CallOption) (*Empty, error)
	Get(ctx context.Context, in *IDRequest, opts ...grpc.CallOption) (*EntryResponse, error)
	MarkInUse(ctx context.Context, in *ReserveRequest, opts ...grpc.CallOption) (*Empty, error)
	MarkAvailable(ctx context.Context, in *ReleaseRequest, opts ...grpc.CallOption) (*Empty, error)
	Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (*EntriesResponse, error)
	QueryExpr(ctx context.Context, in *QueryExprRequest, opts ...grpc.CallOption) (*EntriesResponse, error)
	List(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*EntriesResponse, error)
	RegisterEndpoint(ctx context.Context, in *EndpointRequest, opts ...grpc.CallOption) (*Empty, error)
	RemoveEndpoint(ctx context.Context, in *IDRequest, opts ...grpc.CallOption) (*RemoveEndpointResponse, error)
	ListEndpoints(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*EndpointsResponse, error)
	Watch(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (Hostess_WatchClient, error)
}

// Hostess_WatchClient is the client side of the event stream.
type Hostess_WatchClient interface {
	Recv() (*hostess.Event, error)
	grpc.ClientStream
}

type hostessClient struct {
	cc grpc.ClientConnInterface
}

func NewHostessClient(cc grpc.ClientConnInterface) HostessClient {
	return &hostessClient{cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *hostessClient) Info(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*InfoResponse, error) {
	return invoke[InfoResponse](ctx, c.cc, Hostess_Info_FullMethodName, in, opts)
}

func (c *hostessClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return invoke[RegisterResponse](ctx, c.cc, Hostess_Register_FullMethodName, in, opts)
}

func (c *hostessClient) Heartbeat(ctx context.Context, in *IDRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, Hostess_Heartbeat_FullMethodName, in, opts)
}

func (c *hostessClient) Deregister(ctx context.Context, in *IDRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, Hostess_Deregister_FullMethodName, in, opts)
}

func (c *hostessClient) Get(ctx context.Context, in *IDRequest, opts ...grpc.CallOption) (*EntryResponse, error) {
	return invoke[EntryResponse](ctx, c.cc, Hostess_Get_FullMethodName, in, opts)
}

func (c *hostessClient) MarkInUse(ctx context.Context, in *ReserveRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, Hostess_MarkInUse_FullMethodName, in, opts)
}

func (c *hostessClient) MarkAvailable(ctx context.Context, in *ReleaseRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, Hostess_MarkAvailable_FullMethodName, in, opts)
}

func (c *hostessClient) Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (*EntriesResponse, error) {
	return invoke[EntriesResponse](ctx, c.cc, Hostess_Query_FullMethodName, in, opts)
}

func (c *hostessClient) QueryExpr(ctx context.Context, in *QueryExprRequest, opts ...grpc.CallOption) (*EntriesResponse, error) {
	return invoke[EntriesResponse](ctx, c.cc, Hostess_QueryExpr_FullMethodName, in, opts)
}

func (c *hostessClient) List(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*EntriesResponse, error) {
	return invoke[EntriesResponse](ctx, c.cc, Hostess_List_FullMethodName, in, opts)
}

func (c *hostessClient) RegisterEndpoint(ctx context.Context, in *EndpointRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, Hostess_RegisterEndpoint_FullMethodName, in, opts)
}

func (c *hostessClient) RemoveEndpoint(ctx context.Context, in *IDRequest, opts ...grpc.CallOption) (*RemoveEndpointResponse, error) {
	return invoke[RemoveEndpointResponse](ctx, c.cc, Hostess_RemoveEndpoint_FullMethodName, in, opts)
}

func (c *hostessClient) ListEndpoints(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*EndpointsResponse, error) {
	return invoke[EndpointsResponse](ctx, c.cc, Hostess_ListEndpoints_FullMethodName, in, opts)
}

func (c *hostessClient) Watch(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (Hostess_WatchClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &Hostess_ServiceDesc.Streams[0], Hostess_Watch_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &watchClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type watchClient struct {
	grpc.ClientStream
}

func (x *watchClient) Recv() (*hostess.Event, error) {
	m := new(hostess.Event)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

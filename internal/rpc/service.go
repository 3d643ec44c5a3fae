package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cuesync.CueService"

// Method names of CueService.
const (
	MethodPing     = "Ping"
	MethodRegister = "Register"
	MethodGetSalt  = "GetSalt"
	MethodLogin    = "Login"
	MethodGet      = "Get"
	MethodList     = "List"
	MethodCreate   = "Create"
	MethodUpdate   = "Update"
	MethodDelete   = "Delete"
)

// FullMethod returns the path gRPC uses for method, e.g.
// "/cuesync.CueService/Update".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// CueServiceServer is implemented by the server handler.
type CueServiceServer interface {
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	GetSalt(context.Context, *GetSaltRequest) (*GetSaltResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Get(context.Context, *GetRequest) (*GetResponse, error)
	List(context.Context, *ListRequest) (*ListResponse, error)
	Create(context.Context, *CreateRequest) (*CreateResponse, error)
	Update(context.Context, *UpdateRequest) (*UpdateResponse, error)
	Delete(context.Context, *DeleteRequest) (*DeleteResponse, error)
}

// unaryMethod adapts a typed server method to grpc.MethodDesc.
func unaryMethod[Req, Resp any](name string, call func(CueServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CueServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CueServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CueServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodPing, CueServiceServer.Ping),
		unaryMethod(MethodRegister, CueServiceServer.Register),
		unaryMethod(MethodGetSalt, CueServiceServer.GetSalt),
		unaryMethod(MethodLogin, CueServiceServer.Login),
		unaryMethod(MethodGet, CueServiceServer.Get),
		unaryMethod(MethodList, CueServiceServer.List),
		unaryMethod(MethodCreate, CueServiceServer.Create),
		unaryMethod(MethodUpdate, CueServiceServer.Update),
		unaryMethod(MethodDelete, CueServiceServer.Delete),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cuesync/cue_service",
}

// RegisterCueServiceServer attaches srv to s.
func RegisterCueServiceServer(s grpc.ServiceRegistrar, srv CueServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// CueServiceClient calls CueService over a client connection, always with
// the JSON codec.
type CueServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewCueServiceClient(cc grpc.ClientConnInterface) *CueServiceClient {
	return &CueServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CueServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, MethodPing, in, opts)
}

func (c *CueServiceClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return invoke[RegisterResponse](ctx, c.cc, MethodRegister, in, opts)
}

func (c *CueServiceClient) GetSalt(ctx context.Context, in *GetSaltRequest, opts ...grpc.CallOption) (*GetSaltResponse, error) {
	return invoke[GetSaltResponse](ctx, c.cc, MethodGetSalt, in, opts)
}

func (c *CueServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, MethodLogin, in, opts)
}

func (c *CueServiceClient) Get(ctx context.Context, in *GetRequest, opts ...grpc.CallOption) (*GetResponse, error) {
	return invoke[GetResponse](ctx, c.cc, MethodGet, in, opts)
}

func (c *CueServiceClient) List(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListResponse, error) {
	return invoke[ListResponse](ctx, c.cc, MethodList, in, opts)
}

func (c *CueServiceClient) Create(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*CreateResponse, error) {
	return invoke[CreateResponse](ctx, c.cc, MethodCreate, in, opts)
}

func (c *CueServiceClient) Update(ctx context.Context, in *UpdateRequest, opts ...grpc.CallOption) (*UpdateResponse, error) {
	return invoke[UpdateResponse](ctx, c.cc, MethodUpdate, in, opts)
}

func (c *CueServiceClient) Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error) {
	return invoke[DeleteResponse](ctx, c.cc, MethodDelete, in, opts)
}

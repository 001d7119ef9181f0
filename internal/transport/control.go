package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ControlServiceName = "bftledger.control.v1.ControlService"

const (
	executeMethod  = "/" + ControlServiceName + "/Execute"
	balancesMethod = "/" + ControlServiceName + "/Balances"
)

// ControlServer is the server side of the control service. Requests and
// replies are protobuf Structs so the service needs no generated code.
//
// Execute takes {"command": "<line>"} and answers {"ok": bool, "output": string, "exit": bool}.
// Balances ignores its request and answers {"balances": {...}, "state_hash": string}.
type ControlServer interface {
	Execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Balances(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var ControlServiceDesc = grpc.ServiceDesc{
	ServiceName: ControlServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Execute", Handler: executeHandler},
		{MethodName: "Balances", Handler: balancesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bftledger/control/v1/control.proto",
}

func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&ControlServiceDesc, srv)
}

func executeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: executeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServer).Execute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func balancesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).Balances(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: balancesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServer).Balances(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ControlClient calls the control service over any client connection.
type ControlClient struct {
	cc grpc.ClientConnInterface
}

func NewControlClient(cc grpc.ClientConnInterface) *ControlClient {
	return &ControlClient{cc: cc}
}

// Execute runs one command line remotely and returns its output.
func (c *ControlClient) Execute(ctx context.Context, line string, opts ...grpc.CallOption) (string, error) {
	in, err := structpb.NewStruct(map[string]any{"command": line})
	if err != nil {
		return "", err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, executeMethod, in, out, opts...); err != nil {
		return "", err
	}
	return out.GetFields()["output"].GetStringValue(), nil
}

// Balances returns the shared ledger and its state hash.
func (c *ControlClient) Balances(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, string, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, balancesMethod, &structpb.Struct{}, out, opts...); err != nil {
		return nil, "", err
	}
	fields := out.GetFields()
	return fields["balances"].GetStructValue(), fields["state_hash"].GetStringValue(), nil
}

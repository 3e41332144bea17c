package controller

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the gRPC service exposed by the relay server. Messages are
// google.protobuf.Struct values; their fields are described in messages.go.
const ServiceName = "relay.Relay"

const (
	invokeMethod  = "/" + ServiceName + "/Invoke"
	statusMethod  = "/" + ServiceName + "/Status"
	metricsMethod = "/" + ServiceName + "/Metrics"
)

// RelayServer is the server API of the relay service.
type RelayServer interface {
	Invoke(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Status(*structpb.Struct, grpc.ServerStream) error
	Metrics(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var RelayServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RelayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Invoke", Handler: invokeHandler},
		{MethodName: "Metrics", Handler: metricsHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Status", Handler: statusHandler, ServerStreams: true},
	},
	Metadata: "relay",
}

func RegisterRelayServer(s grpc.ServiceRegistrar, srv RelayServer) {
	s.RegisterService(&RelayServiceDesc, srv)
}

func invokeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RelayServer).Invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: invokeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RelayServer).Invoke(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func metricsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RelayServer).Metrics(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: metricsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RelayServer).Metrics(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func statusHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(RelayServer).Status(in, stream)
}

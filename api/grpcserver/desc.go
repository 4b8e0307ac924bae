package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "tickbook.v1.OrderService"

// OrderServiceServer is the server API of tickbook.v1.OrderService.
// Requests and responses are google.protobuf.Struct documents.
type OrderServiceServer interface {
	PlaceOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReplaceOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TopOfBook(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type call func(OrderServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, fn call) grpc.MethodHandler {
	full := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(OrderServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
		handler := func(ctx context.Context, req any) (any, error) {
			return fn(srv.(OrderServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes tickbook.v1.OrderService for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlaceOrder", Handler: unary("PlaceOrder", OrderServiceServer.PlaceOrder)},
		{MethodName: "CancelOrder", Handler: unary("CancelOrder", OrderServiceServer.CancelOrder)},
		{MethodName: "ReplaceOrder", Handler: unary("ReplaceOrder", OrderServiceServer.ReplaceOrder)},
		{MethodName: "TopOfBook", Handler: unary("TopOfBook", OrderServiceServer.TopOfBook)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tickbook/v1/order_service.proto",
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

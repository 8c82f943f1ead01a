package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const InvoiceServiceName = "invoices.v1.InvoiceService"

// InvoiceServiceServer is the server API of invoices.v1.InvoiceService.
// Requests and responses are JSON-shaped structpb.Struct messages.
type InvoiceServiceServer interface {
	ExtractText(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Summarize(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(InvoiceServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InvoiceServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + InvoiceServiceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(InvoiceServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var InvoiceServiceDesc = grpc.ServiceDesc{
	ServiceName: InvoiceServiceName,
	HandlerType: (*InvoiceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ExtractText", Handler: unaryHandler("ExtractText", InvoiceServiceServer.ExtractText)},
		{MethodName: "Summarize", Handler: unaryHandler("Summarize", InvoiceServiceServer.Summarize)},
		{MethodName: "GetSession", Handler: unaryHandler("GetSession", InvoiceServiceServer.GetSession)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "invoices/v1/invoices.proto",
}

func RegisterInvoiceServiceServer(s grpc.ServiceRegistrar, srv InvoiceServiceServer) {
	s.RegisterService(&InvoiceServiceDesc, srv)
}

// InvoiceClient calls invoices.v1.InvoiceService.
type InvoiceClient struct {
	cc grpc.ClientConnInterface
}

func NewInvoiceClient(cc grpc.ClientConnInterface) *InvoiceClient {
	return &InvoiceClient{cc: cc}
}

func (c *InvoiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+InvoiceServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InvoiceClient) ExtractText(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ExtractText", in, opts...)
}

func (c *InvoiceClient) Summarize(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Summarize", in, opts...)
}

func (c *InvoiceClient) GetSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetSession", in, opts...)
}

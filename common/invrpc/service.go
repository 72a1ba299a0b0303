package invrpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/kyungseok/reservation-core/common/grpcjson"
)

// InventoryServiceName is the fully-qualified gRPC service name, chosen to
// match the path a protoc-generated stub for this contract would use.
const InventoryServiceName = "inventory.InventoryService"

// InventoryServiceServer is implemented by the Inventory Custodian's gRPC
// handler.
type InventoryServiceServer interface {
	ReserveStock(context.Context, *ReserveStockRequest) (*ReserveStockResponse, error)
	ReleaseStock(context.Context, *ReleaseStockRequest) (*ReleaseStockResponse, error)
	CheckStock(context.Context, *CheckStockRequest) (*CheckStockResponse, error)
	HealthCheck(context.Context, *HealthCheckRequest) (*HealthCheckResponse, error)
}

func handleReserveStock(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(ReserveStockRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServiceServer).ReserveStock(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InventoryServiceName + "/ReserveStock"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InventoryServiceServer).ReserveStock(ctx, req.(*ReserveStockRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func handleReleaseStock(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(ReleaseStockRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServiceServer).ReleaseStock(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InventoryServiceName + "/ReleaseStock"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InventoryServiceServer).ReleaseStock(ctx, req.(*ReleaseStockRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func handleCheckStock(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(CheckStockRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServiceServer).CheckStock(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InventoryServiceName + "/CheckStock"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InventoryServiceServer).CheckStock(ctx, req.(*CheckStockRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func handleHealthCheck(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(HealthCheckRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServiceServer).HealthCheck(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InventoryServiceName + "/HealthCheck"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InventoryServiceServer).HealthCheck(ctx, req.(*HealthCheckRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// InventoryServiceDesc registers InventoryServiceServer onto a
// grpc.Server in place of a protoc-generated RegisterInventoryServiceServer
// function.
var InventoryServiceDesc = grpc.ServiceDesc{
	ServiceName: InventoryServiceName,
	HandlerType: (*InventoryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ReserveStock", Handler: handleReserveStock},
		{MethodName: "ReleaseStock", Handler: handleReleaseStock},
		{MethodName: "CheckStock", Handler: handleCheckStock},
		{MethodName: "HealthCheck", Handler: handleHealthCheck},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "inventory.proto",
}

// RegisterInventoryServiceServer registers srv with s, mirroring the
// naming convention of a protoc-generated registration function.
func RegisterInventoryServiceServer(s grpc.ServiceRegistrar, srv InventoryServiceServer) {
	s.RegisterService(&InventoryServiceDesc, srv)
}

// InventoryServiceClient is the Order Coordinator's view of the
// InventoryService contract.
type InventoryServiceClient interface {
	ReserveStock(ctx context.Context, req *ReserveStockRequest, opts ...grpc.CallOption) (*ReserveStockResponse, error)
	ReleaseStock(ctx context.Context, req *ReleaseStockRequest, opts ...grpc.CallOption) (*ReleaseStockResponse, error)
	CheckStock(ctx context.Context, req *CheckStockRequest, opts ...grpc.CallOption) (*CheckStockResponse, error)
	HealthCheck(ctx context.Context, req *HealthCheckRequest, opts ...grpc.CallOption) (*HealthCheckResponse, error)
}

type inventoryServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewInventoryServiceClient wraps cc as an InventoryServiceClient, mirroring
// the naming convention of a protoc-generated constructor.
func NewInventoryServiceClient(cc grpc.ClientConnInterface) InventoryServiceClient {
	return &inventoryServiceClient{cc: cc}
}

// withJSONCodec forces every call to negotiate the grpcjson codec, since
// none of these messages implement proto.Message.
func withJSONCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append(opts, grpc.CallContentSubtype(grpcjson.Name))
}

func (c *inventoryServiceClient) ReserveStock(ctx context.Context, req *ReserveStockRequest, opts ...grpc.CallOption) (*ReserveStockResponse, error) {
	out := new(ReserveStockResponse)
	if err := c.cc.Invoke(ctx, InventoryServiceName+"/ReserveStock", req, out, withJSONCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inventoryServiceClient) ReleaseStock(ctx context.Context, req *ReleaseStockRequest, opts ...grpc.CallOption) (*ReleaseStockResponse, error) {
	out := new(ReleaseStockResponse)
	if err := c.cc.Invoke(ctx, InventoryServiceName+"/ReleaseStock", req, out, withJSONCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inventoryServiceClient) CheckStock(ctx context.Context, req *CheckStockRequest, opts ...grpc.CallOption) (*CheckStockResponse, error) {
	out := new(CheckStockResponse)
	if err := c.cc.Invoke(ctx, InventoryServiceName+"/CheckStock", req, out, withJSONCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inventoryServiceClient) HealthCheck(ctx context.Context, req *HealthCheckRequest, opts ...grpc.CallOption) (*HealthCheckResponse, error) {
	out := new(HealthCheckResponse)
	if err := c.cc.Invoke(ctx, InventoryServiceName+"/HealthCheck", req, out, withJSONCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "overseer.governance.v1.Governance"

// Method names, usable with Client.Call.
const (
	MethodEvaluateAction       = "EvaluateAction"
	MethodApplyBusinessRules   = "ApplyBusinessRules"
	MethodRegisterRule         = "RegisterRule"
	MethodUnregisterRule       = "UnregisterRule"
	MethodListRules            = "ListRules"
	MethodAnalyzeDependencies  = "AnalyzeDependencies"
	MethodValidateDependencies = "ValidateDependencies"
	MethodExecutionOrder       = "ExecutionOrder"
	MethodOptimizeRule         = "OptimizeRule"
)

// GovernanceServer is the server API. Every method exchanges
// google.protobuf.Struct messages whose shape is documented on Service.
type GovernanceServer interface {
	EvaluateAction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApplyBusinessRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RegisterRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UnregisterRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AnalyzeDependencies(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ValidateDependencies(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExecutionOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	OptimizeRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(GovernanceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unary builds the method descriptor for one Struct-in, Struct-out call.
func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(GovernanceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(GovernanceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the Governance service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GovernanceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodEvaluateAction, GovernanceServer.EvaluateAction),
		unary(MethodApplyBusinessRules, GovernanceServer.ApplyBusinessRules),
		unary(MethodRegisterRule, GovernanceServer.RegisterRule),
		unary(MethodUnregisterRule, GovernanceServer.UnregisterRule),
		unary(MethodListRules, GovernanceServer.ListRules),
		unary(MethodAnalyzeDependencies, GovernanceServer.AnalyzeDependencies),
		unary(MethodValidateDependencies, GovernanceServer.ValidateDependencies),
		unary(MethodExecutionOrder, GovernanceServer.ExecutionOrder),
		unary(MethodOptimizeRule, GovernanceServer.OptimizeRule),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "overseer/governance/v1/governance.proto",
}

// RegisterGovernanceServer registers srv with s.
func RegisterGovernanceServer(s grpc.ServiceRegistrar, srv GovernanceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls the Governance service over cc.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a client.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with req.
func (c *Client) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

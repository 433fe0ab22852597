package simgrpc

import (
	"context"
	"fmt"

	"github.com/blockberries/blocksim/types"

	"google.golang.org/grpc"
)

const serviceName = "github.com/blockberries/blocksim.v1.Simulator"

// SimulatorServer is the server-side interface for the simulator gRPC
// service.
type SimulatorServer interface {
	SendTx(context.Context, *types.SignedTransaction) (*TxHashResponse, error)
	ResolveTx(context.Context, *types.SignedTransaction) (*types.ExecutionOutcomeWithID, error)
	ProcessAll(context.Context, *Empty) (*Empty, error)
	ProduceBlocks(context.Context, *ProduceBlocksRequest) (*Empty, error)
	Outcome(context.Context, *OutcomeRequest) (*OutcomeResponse, error)
	ViewAccount(context.Context, *ViewAccountRequest) (*ViewAccountResponse, error)
	ViewAccessKey(context.Context, *ViewAccessKeyRequest) (*ViewAccessKeyResponse, error)
	ViewMethodCall(context.Context, *ViewMethodCallRequest) (*types.ViewCallResult, error)
	CurrentBlock(context.Context, *Empty) (*types.BlockHeader, error)
	WatchBlocks(*ProduceBlocksRequest, grpc.ServerStream) error
}

// RegisterSimulatorServer registers the SimulatorServer on a gRPC server.
func RegisterSimulatorServer(s *grpc.Server, srv SimulatorServer) {
	s.RegisterService(&serviceDesc, srv)
}

// --- Handler functions ---

func handlerSendTx(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(types.SignedTransaction)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(SimulatorServer).SendTx(ctx, req)
}

func handlerResolveTx(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(types.SignedTransaction)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(SimulatorServer).ResolveTx(ctx, req)
}

func handlerProcessAll(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(Empty)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(SimulatorServer).ProcessAll(ctx, req)
}

func handlerProduceBlocks(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(ProduceBlocksRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(SimulatorServer).ProduceBlocks(ctx, req)
}

func handlerOutcome(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(OutcomeRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(SimulatorServer).Outcome(ctx, req)
}

func handlerViewAccount(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(ViewAccountRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(SimulatorServer).ViewAccount(ctx, req)
}

func handlerViewAccessKey(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(ViewAccessKeyRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(SimulatorServer).ViewAccessKey(ctx, req)
}

func handlerViewMethodCall(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(ViewMethodCallRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(SimulatorServer).ViewMethodCall(ctx, req)
}

func handlerCurrentBlock(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(Empty)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(SimulatorServer).CurrentBlock(ctx, req)
}

func handlerWatchBlocks(srv any, stream grpc.ServerStream) error {
	req := new(ProduceBlocksRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(SimulatorServer).WatchBlocks(req, stream)
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

// serviceDesc is the manual gRPC service descriptor for the simulator.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SimulatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendTx", Handler: handlerSendTx},
		{MethodName: "ResolveTx", Handler: handlerResolveTx},
		{MethodName: "ProcessAll", Handler: handlerProcessAll},
		{MethodName: "ProduceBlocks", Handler: handlerProduceBlocks},
		{MethodName: "Outcome", Handler: handlerOutcome},
		{MethodName: "ViewAccount", Handler: handlerViewAccount},
		{MethodName: "ViewAccessKey", Handler: handlerViewAccessKey},
		{MethodName: "ViewMethodCall", Handler: handlerViewMethodCall},
		{MethodName: "CurrentBlock", Handler: handlerCurrentBlock},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchBlocks",
			Handler:       handlerWatchBlocks,
			ServerStreams: true,
			ClientStreams: false,
		},
	},
	Metadata: "github.com/blockberries/blocksim/v1/simulator.cram",
}

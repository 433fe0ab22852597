package simgrpc

import (
	"context"
	"errors"
	"net"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/engine"
	"github.com/blockberries/blocksim/runtime"
	"github.com/blockberries/blocksim/types"

	"github.com/inconshreveable/log15"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Compile-time interface check.
var _ SimulatorServer = (*GRPCServer)(nil)

// GRPCServer exposes a simulator driver as a gRPC service. No type
// conversion is needed; domain types are serialized directly via
// cramberry.
type GRPCServer struct {
	drv blocksim.Driver
	log log15.Logger
}

// NewGRPCServer creates a gRPC server serving drv. The driver must be
// safe for concurrent use, as local.Connection is.
func NewGRPCServer(drv blocksim.Driver, logger log15.Logger) *GRPCServer {
	if logger == nil {
		logger = log15.New("module", "grpc")
	}
	return &GRPCServer{drv: drv, log: logger}
}

// Register adds the simulator service to a gRPC server.
func (s *GRPCServer) Register(gs *grpc.Server) {
	RegisterSimulatorServer(gs, s)
}

// Serve starts a gRPC server on the given listener. opts are added to
// ServerOptions.
func (s *GRPCServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(append(ServerOptions(), opts...)...)
	s.Register(gs)
	return gs.Serve(lis)
}

// Driver returns the served driver for advanced use.
func (s *GRPCServer) Driver() blocksim.Driver {
	return s.drv
}

// toStatus maps simulator errors to gRPC status codes.
func (s *GRPCServer) toStatus(method string, err error) error {
	if err == nil {
		return nil
	}
	if st := status.FromContextError(err); st.Code() == codes.Canceled || st.Code() == codes.DeadlineExceeded {
		return st.Err()
	}
	var code codes.Code
	switch {
	case errors.Is(err, blocksim.ErrHalted):
		code = codes.Unavailable
	case isInvariant(err):
		s.log.Error("invariant violated", "method", method, "err", err)
		code = codes.Internal
	case isInvalidTx(err):
		code = codes.InvalidArgument
	case errors.Is(err, runtime.ErrDuplicateTx):
		code = codes.AlreadyExists
	case errors.Is(err, runtime.ErrClosed):
		code = codes.FailedPrecondition
	case errors.Is(err, blocksim.ErrBlockLimit):
		code = codes.ResourceExhausted
	default:
		code = codes.Unknown
	}
	return status.Error(code, err.Error())
}

func isInvariant(err error) bool {
	_, ok := blocksim.IsInvariant(err)
	return ok
}

func isInvalidTx(err error) bool {
	_, ok := engine.IsInvalidTx(err)
	return ok
}

func (s *GRPCServer) SendTx(ctx context.Context, tx *types.SignedTransaction) (*TxHashResponse, error) {
	h, err := s.drv.SendTx(ctx, *tx)
	if err != nil {
		return nil, s.toStatus("SendTx", err)
	}
	return &TxHashResponse{Hash: h}, nil
}

func (s *GRPCServer) ResolveTx(ctx context.Context, tx *types.SignedTransaction) (*types.ExecutionOutcomeWithID, error) {
	res, err := s.drv.ResolveTx(ctx, *tx)
	if err != nil {
		return nil, s.toStatus("ResolveTx", err)
	}
	return &res, nil
}

func (s *GRPCServer) ProcessAll(ctx context.Context, _ *Empty) (*Empty, error) {
	if err := s.drv.ProcessAll(ctx); err != nil {
		return nil, s.toStatus("ProcessAll", err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) ProduceBlocks(ctx context.Context, req *ProduceBlocksRequest) (*Empty, error) {
	if err := s.drv.ProduceBlocks(ctx, req.N); err != nil {
		return nil, s.toStatus("ProduceBlocks", err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) Outcome(ctx context.Context, req *OutcomeRequest) (*OutcomeResponse, error) {
	o, err := s.drv.Outcome(ctx, req.ID)
	if err != nil {
		return nil, s.toStatus("Outcome", err)
	}
	return &OutcomeResponse{Outcome: o}, nil
}

func (s *GRPCServer) ViewAccount(ctx context.Context, req *ViewAccountRequest) (*ViewAccountResponse, error) {
	acc, err := s.drv.ViewAccount(ctx, req.AccountID)
	if err != nil {
		return nil, s.toStatus("ViewAccount", err)
	}
	return &ViewAccountResponse{Account: acc}, nil
}

func (s *GRPCServer) ViewAccessKey(ctx context.Context, req *ViewAccessKeyRequest) (*ViewAccessKeyResponse, error) {
	key, err := s.drv.ViewAccessKey(ctx, req.AccountID, req.PublicKey)
	if err != nil {
		return nil, s.toStatus("ViewAccessKey", err)
	}
	return &ViewAccessKeyResponse{AccessKey: key}, nil
}

func (s *GRPCServer) ViewMethodCall(ctx context.Context, req *ViewMethodCallRequest) (*types.ViewCallResult, error) {
	res, err := s.drv.ViewMethodCall(ctx, req.AccountID, req.Method, req.Args)
	if err != nil {
		return nil, s.toStatus("ViewMethodCall", err)
	}
	return &res, nil
}

func (s *GRPCServer) CurrentBlock(ctx context.Context, _ *Empty) (*types.BlockHeader, error) {
	h, err := s.drv.CurrentBlock(ctx)
	if err != nil {
		return nil, s.toStatus("CurrentBlock", err)
	}
	return &h, nil
}

// WatchBlocks produces req.N blocks and streams the header of each.
func (s *GRPCServer) WatchBlocks(req *ProduceBlocksRequest, stream grpc.ServerStream) error {
	ctx := stream.Context()
	for i := uint64(0); i < req.N; i++ {
		if err := s.drv.ProduceBlocks(ctx, 1); err != nil {
			return s.toStatus("WatchBlocks", err)
		}
		h, err := s.drv.CurrentBlock(ctx)
		if err != nil {
			return s.toStatus("WatchBlocks", err)
		}
		if err := stream.SendMsg(&h); err != nil {
			return err
		}
	}
	return nil
}

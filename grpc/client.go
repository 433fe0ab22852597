package simgrpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/runtime"
	"github.com/blockberries/blocksim/types"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrInvalidTx is matched by errors for transactions the remote
// engine rejected.
var ErrInvalidTx = errors.New("invalid transaction")

// Compile-time interface check.
var _ blocksim.Driver = (*Client)(nil)

// Client implements blocksim.Driver for a remote simulator over gRPC
// using cramberry serialization. No protobuf types or conversion
// layer required.
type Client struct {
	cc *grpc.ClientConn
}

// Dial connects to a remote simulator.
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(CramberryCodec{}),
		grpc.MaxCallRecvMsgSize(MaxMessageSize),
		grpc.MaxCallSendMsgSize(MaxMessageSize),
	))
	cc, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("simulator client: dial %s: %w", addr, err)
	}
	return &Client{cc: cc}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

// fromStatus restores the error classes the server mapped to codes.
// Invariant errors lose their height.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unavailable:
		return blocksim.NewInvariantError(0, st.Message(), blocksim.ErrHalted)
	case codes.Internal:
		return blocksim.NewInvariantError(0, st.Message(), nil)
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidTx, st.Message())
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", runtime.ErrDuplicateTx, st.Message())
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", runtime.ErrClosed, st.Message())
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", blocksim.ErrBlockLimit, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%w: %s", context.Canceled, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
	default:
		return err
	}
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	if err := c.cc.Invoke(ctx, fullMethod(method), req, resp); err != nil {
		return fromStatus(err)
	}
	return nil
}

func (c *Client) SendTx(ctx context.Context, tx types.SignedTransaction) (types.CryptoHash, error) {
	resp := new(TxHashResponse)
	if err := c.invoke(ctx, "SendTx", &tx, resp); err != nil {
		return types.CryptoHash{}, err
	}
	return resp.Hash, nil
}

func (c *Client) ResolveTx(ctx context.Context, tx types.SignedTransaction) (types.ExecutionOutcomeWithID, error) {
	resp := new(types.ExecutionOutcomeWithID)
	if err := c.invoke(ctx, "ResolveTx", &tx, resp); err != nil {
		return types.ExecutionOutcomeWithID{}, err
	}
	return *resp, nil
}

func (c *Client) ProcessAll(ctx context.Context) error {
	return c.invoke(ctx, "ProcessAll", &Empty{}, new(Empty))
}

func (c *Client) ProduceBlocks(ctx context.Context, n uint64) error {
	return c.invoke(ctx, "ProduceBlocks", &ProduceBlocksRequest{N: n}, new(Empty))
}

func (c *Client) Outcome(ctx context.Context, id types.CryptoHash) (*types.ExecutionOutcome, error) {
	resp := new(OutcomeResponse)
	if err := c.invoke(ctx, "Outcome", &OutcomeRequest{ID: id}, resp); err != nil {
		return nil, err
	}
	return resp.Outcome, nil
}

func (c *Client) ViewAccount(ctx context.Context, account types.AccountID) (*types.Account, error) {
	resp := new(ViewAccountResponse)
	if err := c.invoke(ctx, "ViewAccount", &ViewAccountRequest{AccountID: account}, resp); err != nil {
		return nil, err
	}
	return resp.Account, nil
}

func (c *Client) ViewAccessKey(ctx context.Context, account types.AccountID, pk types.PublicKey) (*types.AccessKey, error) {
	resp := new(ViewAccessKeyResponse)
	req := &ViewAccessKeyRequest{AccountID: account, PublicKey: pk}
	if err := c.invoke(ctx, "ViewAccessKey", req, resp); err != nil {
		return nil, err
	}
	return resp.AccessKey, nil
}

func (c *Client) ViewMethodCall(ctx context.Context, account types.AccountID, method string, args []byte) (types.ViewCallResult, error) {
	resp := new(types.ViewCallResult)
	req := &ViewMethodCallRequest{AccountID: account, Method: method, Args: args}
	if err := c.invoke(ctx, "ViewMethodCall", req, resp); err != nil {
		return types.ViewCallResult{}, err
	}
	return *resp, nil
}

func (c *Client) CurrentBlock(ctx context.Context) (types.BlockHeader, error) {
	resp := new(types.BlockHeader)
	if err := c.invoke(ctx, "CurrentBlock", &Empty{}, resp); err != nil {
		return types.BlockHeader{}, err
	}
	return *resp, nil
}

// WatchBlocks asks the server to produce n blocks and calls fn with
// the header of each as it arrives.
func (c *Client) WatchBlocks(ctx context.Context, n uint64, fn func(types.BlockHeader) error) error {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], fullMethod("WatchBlocks"))
	if err != nil {
		return fromStatus(err)
	}
	if err := stream.SendMsg(&ProduceBlocksRequest{N: n}); err != nil {
		return fromStatus(err)
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		h := new(types.BlockHeader)
		if err := stream.RecvMsg(h); err != nil {
			if err == io.EOF {
				return nil
			}
			return fromStatus(err)
		}
		if err := fn(*h); err != nil {
			return err
		}
	}
}

package simgrpc

import "github.com/blockberries/blocksim/types"

// Transport-specific wrapper types for RPC methods whose Driver
// signatures don't map to a single request/response struct.
// These are used only for gRPC serialization boundaries.

// Empty is the request or response of RPCs without parameters.
type Empty struct{}

// TxHashResponse wraps the hash returned by SendTx.
type TxHashResponse struct {
	Hash types.CryptoHash `cramberry:"1"`
}

// ProduceBlocksRequest wraps the block count of ProduceBlocks.
type ProduceBlocksRequest struct {
	N uint64 `cramberry:"1"`
}

// OutcomeRequest wraps the id of Outcome.
type OutcomeRequest struct {
	ID types.CryptoHash `cramberry:"1"`
}

// OutcomeResponse carries the outcome, or nil when none was recorded.
type OutcomeResponse struct {
	Outcome *types.ExecutionOutcome `cramberry:"1"`
}

// ViewAccountRequest wraps the parameter of ViewAccount.
type ViewAccountRequest struct {
	AccountID types.AccountID `cramberry:"1"`
}

// ViewAccountResponse carries the account, or nil when it is missing.
type ViewAccountResponse struct {
	Account *types.Account `cramberry:"1"`
}

// ViewAccessKeyRequest wraps the parameters of ViewAccessKey.
type ViewAccessKeyRequest struct {
	AccountID types.AccountID `cramberry:"1"`
	PublicKey types.PublicKey `cramberry:"2"`
}

// ViewAccessKeyResponse carries the key, or nil when it is missing.
type ViewAccessKeyResponse struct {
	AccessKey *types.AccessKey `cramberry:"1"`
}

// ViewMethodCallRequest wraps the parameters of ViewMethodCall.
type ViewMethodCallRequest struct {
	AccountID types.AccountID `cramberry:"1"`
	Method    string          `cramberry:"2"`
	Args      []byte          `cramberry:"3"`
}

// Package blocksim defines the boundaries of a local, deterministic
// blockchain simulator: the collaborators its block-production loop
// drives (state-transition engine, trie store, transaction pool,
// compiled-artifact cache, read-only viewer) and the Driver handle
// through which tests and tools talk to a running simulation.
//
// The orchestrator itself lives in package runtime. Reference
// implementations of every collaborator live in packages engine,
// store, pool and cache; any of them can be replaced through the
// interfaces declared here.
package blocksim

import (
	"context"

	"github.com/blockberries/blocksim/types"
)

// ProtocolVersion is passed to the engine with every block.
const ProtocolVersion uint32 = 1

// Engine is the deterministic state-transition function.
//
// The orchestrator guarantees the following call order:
//  1. ApplyGenesisState is called exactly once, before any Apply.
//  2. Apply is called once per produced block, never concurrently.
//
// Receipts returned from Apply for block N are passed back as the
// incoming receipts of block N+1 and never earlier.
type Engine interface {
	// ApplyGenesisState writes the genesis records into a fresh trie
	// and returns its root.
	ApplyGenesisState(ctx context.Context, tries Tries, shard types.ShardUID, genesis *types.Genesis) (types.CryptoHash, error)

	// Apply executes one block worth of work on top of root.
	//
	// Apply MUST NOT persist anything. The returned TrieChanges are
	// committed by the orchestrator. A returned error means the block
	// was rejected as a whole and no state changed.
	Apply(ctx context.Context, trie Trie, root types.CryptoHash, state *ApplyState,
		receipts []types.Receipt, txs []types.SignedTransaction, epoch EpochInfoProvider) (*ApplyResult, error)
}

// Viewer executes read-only contract calls.
type Viewer interface {
	// CallFunction runs method on account at the state of update.
	// Logs emitted by the call are appended to logs even when the call
	// fails. The call never mutates committed state.
	CallFunction(ctx context.Context, update TrieUpdate, state *ViewApplyState, account types.AccountID,
		method string, args []byte, logs *[]string, epoch EpochInfoProvider) ([]byte, error)
}

// ApplyState is the per-block context handed to the engine.
type ApplyState struct {
	BlockHeight     types.BlockHeight
	PrevBlockHash   types.CryptoHash
	BlockHash       types.CryptoHash
	EpochID         types.CryptoHash
	EpochHeight     types.EpochHeight
	GasPrice        types.Balance
	BlockTimestamp  uint64
	GasLimit        *types.Gas
	RandomSeed      types.CryptoHash
	ProtocolVersion uint32
	Config          *types.RuntimeConfig
	// Cache is nil when artifact caching is disabled.
	Cache      ArtifactCache
	IsNewChunk bool
}

// ApplyResult is everything one Apply produced.
type ApplyResult struct {
	StateRoot        types.CryptoHash
	TrieChanges      *types.TrieChanges
	OutgoingReceipts []types.Receipt
	Outcomes         []types.ExecutionOutcomeWithID
	Stats            ApplyStats
}

// ApplyStats summarizes the gas of one Apply.
type ApplyStats struct {
	TxBurntGas      types.Gas
	ReceiptBurntGas types.Gas
	TokensBurnt     types.Balance
}

// ViewApplyState is the context of a read-only call.
type ViewApplyState struct {
	BlockHeight     types.BlockHeight
	PrevBlockHash   types.CryptoHash
	BlockHash       types.CryptoHash
	EpochID         types.CryptoHash
	EpochHeight     types.EpochHeight
	BlockTimestamp  uint64
	ProtocolVersion uint32
	Config          *types.RuntimeConfig
	Cache           ArtifactCache
}

// EpochInfoProvider answers validator questions for the engine.
type EpochInfoProvider interface {
	ValidatorStake(account types.AccountID) (types.Balance, bool)
	ValidatorTotalStake() types.Balance
	MinimumStake() types.Balance
}

// ArtifactCache stores compiled contract artifacts by content key.
//
// Get returns nil, nil when the key is unknown. Implementations MUST
// be safe for concurrent use.
type ArtifactCache interface {
	Put(key types.CryptoHash, value types.CompiledContract) error
	Get(key types.CryptoHash) (*types.CompiledContract, error)
}

// StateReader reads one key of trie state.
type StateReader interface {
	// Get returns nil, false, nil when the key is absent.
	Get(key []byte) ([]byte, bool, error)
}

// Trie is a read-only view of a shard's state at any known root.
type Trie interface {
	Get(root types.CryptoHash, key []byte) ([]byte, bool, error)
	// Update opens a write overlay on top of root.
	Update(root types.CryptoHash) TrieUpdate
}

// TrieUpdate buffers writes on top of a trie root.
//
// Writes are prospective until Commit, which folds them into the
// committed set under a cause. Rollback discards prospective writes.
// Finalize turns the committed set into TrieChanges and must be the
// last call on the update.
type TrieUpdate interface {
	StateReader
	Root() types.CryptoHash
	Set(key, value []byte)
	Remove(key []byte)
	// Iterate calls fn for every live key with prefix in key order.
	Iterate(prefix []byte, fn func(key, value []byte) error) error
	Commit(cause types.StateChangeCause)
	Rollback()
	Finalize() (*types.TrieChanges, error)
}

// StoreUpdate is a pending durable write.
type StoreUpdate interface {
	Commit() error
}

// Tries hands out per-shard tries and turns trie changes into store
// writes.
type Tries interface {
	GetTrieForShard(shard types.ShardUID) Trie
	NewTrieUpdate(shard types.ShardUID, root types.CryptoHash) TrieUpdate
	// ApplyAll validates changes and returns the store write that makes
	// NewRoot readable once committed.
	ApplyAll(changes *types.TrieChanges, shard types.ShardUID) (StoreUpdate, types.CryptoHash, error)
}

// TransactionPool orders transactions into per-signer lanes.
type TransactionPool interface {
	// InsertTransaction adds tx. It returns false for a duplicate.
	InsertTransaction(tx types.SignedTransaction) bool
	// ReintroduceTransactions returns drained transactions to the pool
	// after the block that drained them was rejected.
	ReintroduceTransactions(txs []types.SignedTransaction)
	Iterator() PoolIterator
	Len() int
}

// PoolIterator walks the lanes of a pool once.
type PoolIterator interface {
	// Next returns the next non-empty lane, or nil when done.
	Next() TransactionGroup
}

// TransactionGroup is one lane of a pool.
type TransactionGroup interface {
	// Next removes and returns the lowest-nonce transaction of the lane.
	Next() (types.SignedTransaction, bool)
}

// Driver is a transport-agnostic handle on a running simulation. It is
// implemented in-process by package local and remotely by package grpc.
type Driver interface {
	SendTx(ctx context.Context, tx types.SignedTransaction) (types.CryptoHash, error)
	ResolveTx(ctx context.Context, tx types.SignedTransaction) (types.ExecutionOutcomeWithID, error)
	ProcessAll(ctx context.Context) error
	ProduceBlocks(ctx context.Context, n uint64) error
	Outcome(ctx context.Context, id types.CryptoHash) (*types.ExecutionOutcome, error)
	ViewAccount(ctx context.Context, account types.AccountID) (*types.Account, error)
	ViewAccessKey(ctx context.Context, account types.AccountID, pk types.PublicKey) (*types.AccessKey, error)
	ViewMethodCall(ctx context.Context, account types.AccountID, method string, args []byte) (types.ViewCallResult, error)
	CurrentBlock(ctx context.Context) (types.BlockHeader, error)
	Close() error
}

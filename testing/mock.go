// Package simtest provides test utilities for code built on the
// simulator: a harness with signing user accounts, a configurable mock
// engine, and a conformance suite for engine implementations.
package simtest

import (
	"context"
	"sync/atomic"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/types"
)

// Compile-time check that MockEngine satisfies both collaborators.
var (
	_ blocksim.Engine = (*MockEngine)(nil)
	_ blocksim.Viewer = (*MockEngine)(nil)
)

// MockEngine is a configurable engine for runtime testing. All methods
// are configurable via function fields. Unconfigured methods leave the
// state untouched and produce no outcomes.
type MockEngine struct {
	ApplyGenesisStateFn func(context.Context, blocksim.Tries, types.ShardUID, *types.Genesis) (types.CryptoHash, error)
	ApplyFn             func(context.Context, blocksim.Trie, types.CryptoHash, *blocksim.ApplyState, []types.Receipt, []types.SignedTransaction, blocksim.EpochInfoProvider) (*blocksim.ApplyResult, error)
	CallFunctionFn      func(context.Context, blocksim.TrieUpdate, *blocksim.ViewApplyState, types.AccountID, string, []byte, *[]string, blocksim.EpochInfoProvider) ([]byte, error)

	// Call counters (atomic for concurrent access).
	ApplyGenesisStateCalls atomic.Int64
	ApplyCalls             atomic.Int64
	CallFunctionCalls      atomic.Int64
}

func (m *MockEngine) ApplyGenesisState(ctx context.Context, tries blocksim.Tries, shard types.ShardUID, genesis *types.Genesis) (types.CryptoHash, error) {
	m.ApplyGenesisStateCalls.Add(1)
	if m.ApplyGenesisStateFn != nil {
		return m.ApplyGenesisStateFn(ctx, tries, shard, genesis)
	}
	return types.CryptoHash{}, nil
}

func (m *MockEngine) Apply(ctx context.Context, trie blocksim.Trie, root types.CryptoHash, state *blocksim.ApplyState,
	receipts []types.Receipt, txs []types.SignedTransaction, epoch blocksim.EpochInfoProvider) (*blocksim.ApplyResult, error) {
	m.ApplyCalls.Add(1)
	if m.ApplyFn != nil {
		return m.ApplyFn(ctx, trie, root, state, receipts, txs, epoch)
	}
	return EmptyApplyResult(root), nil
}

func (m *MockEngine) CallFunction(ctx context.Context, update blocksim.TrieUpdate, state *blocksim.ViewApplyState, account types.AccountID,
	method string, args []byte, logs *[]string, epoch blocksim.EpochInfoProvider) ([]byte, error) {
	m.CallFunctionCalls.Add(1)
	if m.CallFunctionFn != nil {
		return m.CallFunctionFn(ctx, update, state, account, method, args, logs, epoch)
	}
	return nil, nil
}

// EmptyApplyResult is an Apply result that changes nothing at root.
func EmptyApplyResult(root types.CryptoHash) *blocksim.ApplyResult {
	return &blocksim.ApplyResult{
		StateRoot:   root,
		TrieChanges: &types.TrieChanges{OldRoot: root, NewRoot: root},
	}
}

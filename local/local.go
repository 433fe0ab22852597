// Package local provides an in-process simulator connection.
//
// For tests and tools compiled into the same binary as the simulator,
// this adapter exposes a runtime through the transport-agnostic
// blocksim.Driver interface with no serialization overhead. Calls from
// concurrent goroutines are serialized.
package local

import (
	"context"
	"errors"
	"sync"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/runtime"
	"github.com/blockberries/blocksim/types"
)

// Compile-time interface check.
var _ blocksim.Driver = (*Connection)(nil)

// Connection serializes access to a runtime.
type Connection struct {
	mu sync.Mutex
	rt *runtime.Runtime
}

// NewConnection creates an in-process connection wrapping rt. The
// connection takes ownership of rt.
func NewConnection(rt *runtime.Runtime) *Connection {
	return &Connection{rt: rt}
}

// Open builds a runtime with a funded root account and connects to
// it. A nil genesis means runtime.DefaultGenesisConfig.
func Open(genesis *runtime.GenesisConfig, opts ...runtime.Option) (*Connection, *types.InMemorySigner, types.AccountID, error) {
	rt, signer, root, err := runtime.InitRuntime(genesis, opts...)
	if err != nil {
		return nil, nil, "", err
	}
	return NewConnection(rt), signer, root, nil
}

func (c *Connection) SendTx(_ context.Context, tx types.SignedTransaction) (types.CryptoHash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rt.SendTx(tx)
}

func (c *Connection) ResolveTx(ctx context.Context, tx types.SignedTransaction) (types.ExecutionOutcomeWithID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, outcome, err := c.rt.ResolveTx(ctx, tx)
	if err != nil {
		return types.ExecutionOutcomeWithID{}, err
	}
	return types.ExecutionOutcomeWithID{ID: id, Outcome: outcome}, nil
}

func (c *Connection) ProcessAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rt.ProcessAll(ctx)
}

func (c *Connection) ProduceBlocks(ctx context.Context, n uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rt.ProduceBlocks(ctx, n)
}

// Outcome returns nil when no outcome was recorded for id.
func (c *Connection) Outcome(_ context.Context, id types.CryptoHash) (*types.ExecutionOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.rt.Outcome(id)
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (c *Connection) ViewAccount(_ context.Context, account types.AccountID) (*types.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rt.ViewAccount(account)
}

func (c *Connection) ViewAccessKey(_ context.Context, account types.AccountID, pk types.PublicKey) (*types.AccessKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rt.ViewAccessKey(account, pk)
}

// ViewMethodCall reports contract errors in the result; the returned
// error is reserved for the connection itself.
func (c *Connection) ViewMethodCall(ctx context.Context, account types.AccountID, method string, args []byte) (types.ViewCallResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.rt.ViewMethodCall(ctx, account, method, args)
	if errors.Is(v.Err, runtime.ErrClosed) {
		return types.ViewCallResult{}, v.Err
	}
	return v.Wire(), nil
}

func (c *Connection) CurrentBlock(context.Context) (types.BlockHeader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.rt.CurrentBlock()
	if b == nil {
		return types.BlockHeader{}, runtime.ErrClosed
	}
	return b.Header(), nil
}

// Close closes the runtime.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rt.Close()
}

// Runtime returns the underlying runtime for advanced use cases. The
// caller must not use it concurrently with the connection.
func (c *Connection) Runtime() *runtime.Runtime {
	return c.rt
}

package vm

import (
	"github.com/blockberries/blocksim/types"
)

// ViewConfig marks a read-only call and bounds its gas.
type ViewConfig struct {
	MaxGasBurnt types.Gas
}

// PromiseResult is the outcome of a promise a callback depends on.
// Successful is false when the producing receipt failed.
type PromiseResult struct {
	Successful bool
	Data       []byte
}

// Context is what a contract sees about the call it runs in.
type Context struct {
	CurrentAccountID     types.AccountID
	SignerAccountID      types.AccountID
	SignerAccountPK      types.PublicKey
	PredecessorAccountID types.AccountID
	Input                []byte
	BlockHeight          types.BlockHeight
	BlockTimestamp       uint64
	EpochHeight          types.EpochHeight
	AccountBalance       types.Balance
	AccountLockedBalance types.Balance
	StorageUsage         types.StorageUsage
	AttachedDeposit      types.Balance
	PrepaidGas           types.Gas
	RandomSeed           types.CryptoHash
	// View is non-nil for read-only calls.
	View           *ViewConfig
	PromiseResults []PromiseResult
}

// IsView reports whether the call is read-only.
func (c *Context) IsView() bool {
	return c.View != nil
}

var testAccounts = [...]types.AccountID{"alice", "bob", "charlie", "danny", "eugene", "fargo"}

// Accounts returns one of six predefined account ids for tests.
func Accounts(i int) types.AccountID {
	return testAccounts[i]
}

// ContextBuilder builds a Context for unit-testing contracts.
type ContextBuilder struct {
	ctx Context
}

// NewContextBuilder starts from alice's contract being called by bob.
func NewContextBuilder() *ContextBuilder {
	return &ContextBuilder{ctx: Context{
		CurrentAccountID:     Accounts(0),
		SignerAccountID:      Accounts(1),
		SignerAccountPK:      types.PublicKey{Type: types.KeyTypeED25519, Data: make([]byte, 32)},
		PredecessorAccountID: Accounts(1),
		AccountBalance:       types.Tokens(100),
		StorageUsage:         1024 * 300,
		PrepaidGas:           types.DefaultMaxTotalPrepaidGas,
	}}
}

func (b *ContextBuilder) CurrentAccountID(id types.AccountID) *ContextBuilder {
	b.ctx.CurrentAccountID = id
	return b
}

func (b *ContextBuilder) SignerAccountID(id types.AccountID) *ContextBuilder {
	b.ctx.SignerAccountID = id
	return b
}

func (b *ContextBuilder) SignerAccountPK(pk types.PublicKey) *ContextBuilder {
	b.ctx.SignerAccountPK = pk
	return b
}

func (b *ContextBuilder) PredecessorAccountID(id types.AccountID) *ContextBuilder {
	b.ctx.PredecessorAccountID = id
	return b
}

func (b *ContextBuilder) Input(input []byte) *ContextBuilder {
	b.ctx.Input = input
	return b
}

func (b *ContextBuilder) BlockHeight(h types.BlockHeight) *ContextBuilder {
	b.ctx.BlockHeight = h
	return b
}

func (b *ContextBuilder) BlockTimestamp(ts uint64) *ContextBuilder {
	b.ctx.BlockTimestamp = ts
	return b
}

func (b *ContextBuilder) EpochHeight(h types.EpochHeight) *ContextBuilder {
	b.ctx.EpochHeight = h
	return b
}

func (b *ContextBuilder) AccountBalance(amount types.Balance) *ContextBuilder {
	b.ctx.AccountBalance = amount
	return b
}

func (b *ContextBuilder) AccountLockedBalance(amount types.Balance) *ContextBuilder {
	b.ctx.AccountLockedBalance = amount
	return b
}

func (b *ContextBuilder) StorageUsage(usage types.StorageUsage) *ContextBuilder {
	b.ctx.StorageUsage = usage
	return b
}

func (b *ContextBuilder) AttachedDeposit(amount types.Balance) *ContextBuilder {
	b.ctx.AttachedDeposit = amount
	return b
}

func (b *ContextBuilder) PrepaidGas(gas types.Gas) *ContextBuilder {
	b.ctx.PrepaidGas = gas
	return b
}

func (b *ContextBuilder) RandomSeed(seed types.CryptoHash) *ContextBuilder {
	b.ctx.RandomSeed = seed
	return b
}

func (b *ContextBuilder) PromiseResults(results ...PromiseResult) *ContextBuilder {
	b.ctx.PromiseResults = results
	return b
}

// IsView switches the context to a read-only call capped at
// types.MaxViewGas.
func (b *ContextBuilder) IsView(view bool) *ContextBuilder {
	if view {
		b.ctx.View = &ViewConfig{MaxGasBurnt: types.MaxViewGas}
	} else {
		b.ctx.View = nil
	}
	return b
}

// Build returns a copy of the context.
func (b *ContextBuilder) Build() Context {
	c := b.ctx
	c.Input = append([]byte(nil), b.ctx.Input...)
	c.PromiseResults = append([]PromiseResult(nil), b.ctx.PromiseResults...)
	return c
}

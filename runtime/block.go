package runtime

import (
	"sync/atomic"
	"time"

	"github.com/blockberries/blocksim/types"
)

// Block is a produced block. Blocks form a singly linked history in
// which every block holds one reference on its predecessor.
//
// A Block is owned by whoever created or retained it and must be
// released exactly once per owner. Releasing the last owner of the
// newest block frees the whole unshared part of the history without
// recursion.
type Block struct {
	prev *Block
	refs atomic.Int64

	stateRoot   types.CryptoHash
	gasBurnt    types.Gas
	epochHeight types.EpochHeight
	height      types.BlockHeight
	timestamp   uint64
	gasPrice    types.Balance
	gasLimit    types.Gas
}

// GenesisBlock returns the first block of a chain. Its state root is
// zero until the genesis state has been applied. Its epoch follows
// from GenesisHeight like every other block's.
func GenesisBlock(cfg *GenesisConfig) *Block {
	b := &Block{
		height:      cfg.GenesisHeight,
		epochHeight: epochOf(cfg.GenesisHeight, cfg.EpochLength),
		timestamp:   cfg.GenesisTime,
		gasPrice:    cfg.GasPrice,
		gasLimit:    cfg.GasLimit,
	}
	b.refs.Store(1)
	return b
}

// produce returns the successor of b with state root newRoot. The
// successor holds a reference on b.
func (b *Block) produce(newRoot types.CryptoHash, epochLength uint64, blockProdTime time.Duration) *Block {
	b.Retain()
	next := &Block{
		prev:        b,
		stateRoot:   newRoot,
		height:      b.height + 1,
		epochHeight: epochOf(b.height+1, epochLength),
		timestamp:   b.timestamp + uint64(blockProdTime),
		gasPrice:    b.gasPrice,
		gasLimit:    b.gasLimit,
	}
	next.refs.Store(1)
	return next
}

func epochOf(height types.BlockHeight, epochLength uint64) types.EpochHeight {
	if epochLength == 0 {
		return 0
	}
	return height / epochLength
}

// Retain adds an owner to b and returns it.
func (b *Block) Retain() *Block {
	b.refs.Add(1)
	return b
}

// Release drops one owner of b. Ancestors left without owners are
// detached one by one; the walk stops at the first ancestor still
// shared with another holder.
func (b *Block) Release() {
	for cur := b; cur != nil; {
		if cur.refs.Add(-1) > 0 {
			return
		}
		next := cur.prev
		cur.prev = nil
		cur = next
	}
}

// Refs returns the current number of owners.
func (b *Block) Refs() int64 { return b.refs.Load() }

func (b *Block) StateRoot() types.CryptoHash    { return b.stateRoot }
func (b *Block) GasBurnt() types.Gas            { return b.gasBurnt }
func (b *Block) EpochHeight() types.EpochHeight { return b.epochHeight }
func (b *Block) Height() types.BlockHeight      { return b.height }
func (b *Block) Timestamp() uint64              { return b.timestamp }
func (b *Block) GasPrice() types.Balance        { return b.gasPrice }
func (b *Block) GasLimit() types.Gas            { return b.gasLimit }

// Prev returns the predecessor, or nil for the genesis block and for
// blocks whose history was released.
func (b *Block) Prev() *Block { return b.prev }

// Header returns a copyable snapshot of b.
func (b *Block) Header() types.BlockHeader {
	h := types.BlockHeader{
		Height:      b.height,
		EpochHeight: b.epochHeight,
		Timestamp:   b.timestamp,
		GasPrice:    b.gasPrice,
		GasLimit:    b.gasLimit,
		GasBurnt:    b.gasBurnt,
		StateRoot:   b.stateRoot,
	}
	if b.prev != nil {
		h.PrevStateRoot = b.prev.stateRoot
	}
	return h
}

// Package cache provides the compiled-artifact caches handed to the
// engine: a process-local MemoryCache and a HybridCache that writes
// every artifact through to one file per key on disk, so compiled
// contracts survive across simulator runs.
package cache

import (
	"sync"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/types"
	"github.com/btcsuite/btcd/btcutil/base58"
)

// Compile-time interface checks.
var (
	_ blocksim.ArtifactCache = (*MemoryCache)(nil)
	_ blocksim.ArtifactCache = (*HybridCache)(nil)
)

// KeyToB58 returns the base58 name of a cache key. It is also the
// artifact's file name on disk.
func KeyToB58(key []byte) string {
	return base58.Encode(key)
}

// MemoryCache is a mutex-guarded map from raw key bytes to artifacts.
// Values are copied on the way in and out.
type MemoryCache struct {
	mu   sync.Mutex
	data map[string]types.CompiledContract
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]types.CompiledContract)}
}

// Insert stores value under key and returns the value it replaced.
func (c *MemoryCache) Insert(key []byte, value types.CompiledContract) (types.CompiledContract, bool) {
	value = clone(value)
	c.mu.Lock()
	prev, ok := c.data[string(key)]
	c.data[string(key)] = value
	c.mu.Unlock()
	return prev, ok
}

// Load returns the value stored under key.
func (c *MemoryCache) Load(key []byte) (types.CompiledContract, bool) {
	c.mu.Lock()
	v, ok := c.data[string(key)]
	c.mu.Unlock()
	if !ok {
		return types.CompiledContract{}, false
	}
	return clone(v), true
}

// Len returns the number of cached artifacts.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Put stores value in memory only.
func (c *MemoryCache) Put(key types.CryptoHash, value types.CompiledContract) error {
	c.Insert(key[:], value)
	return nil
}

// Get looks key up in memory only.
func (c *MemoryCache) Get(key types.CryptoHash) (*types.CompiledContract, error) {
	v, ok := c.Load(key[:])
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func clone(v types.CompiledContract) types.CompiledContract {
	out := types.CompiledContract{Error: v.Error}
	if v.Code != nil {
		out.Code = append([]byte(nil), v.Code...)
	}
	if v.Methods != nil {
		out.Methods = append([]string(nil), v.Methods...)
	}
	return out
}

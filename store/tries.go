package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/types"

	"github.com/blockberries/cramberry/pkg/cramberry"
	lru "github.com/hashicorp/golang-lru"
	"github.com/inconshreveable/log15"
)

// Compile-time interface checks.
var (
	_ blocksim.Tries       = (*ShardTries)(nil)
	_ blocksim.Trie        = (*Trie)(nil)
	_ blocksim.StoreUpdate = (*storeUpdate)(nil)
)

const (
	// DefaultSnapshotInterval is the node depth between full snapshots.
	DefaultSnapshotInterval = 64
	// DefaultNodeCacheSize is the number of decoded nodes kept in memory.
	DefaultNodeCacheSize = 1024

	nodePrefix byte = 'n'
)

// node is the persisted form of one root.
type node struct {
	Parent types.CryptoHash `cramberry:"1"`
	Depth  uint64           `cramberry:"2"`
	// Full nodes hold every live entry and ignore Parent.
	Full    bool               `cramberry:"3"`
	Changes []types.TrieChange `cramberry:"4"`
}

// lookup binary-searches the sorted changes for key.
func (n *node) lookup(key []byte) (value []byte, deleted, found bool) {
	i := sort.Search(len(n.Changes), func(i int) bool {
		return bytes.Compare(n.Changes[i].Key, key) >= 0
	})
	if i < len(n.Changes) && bytes.Equal(n.Changes[i].Key, key) {
		c := n.Changes[i]
		return c.Value, c.Deleted, true
	}
	return nil, false, false
}

// Option configures ShardTries.
type Option func(*ShardTries)

// WithSnapshotInterval sets how often a full snapshot node is written.
func WithSnapshotInterval(n uint64) Option {
	return func(t *ShardTries) {
		if n > 0 {
			t.snapshotInterval = n
		}
	}
}

// WithNodeCacheSize sets the decoded node cache size.
func WithNodeCacheSize(n int) Option {
	return func(t *ShardTries) {
		if n > 0 {
			t.cacheSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log15.Logger) Option {
	return func(t *ShardTries) { t.log = l }
}

// ShardTries serves the tries of every shard from one Store.
type ShardTries struct {
	store            *Store
	nodes            *lru.Cache
	snapshotInterval uint64
	cacheSize        int
	log              log15.Logger
}

// NewShardTries creates tries backed by store.
func NewShardTries(store *Store, opts ...Option) (*ShardTries, error) {
	t := &ShardTries{
		store:            store,
		snapshotInterval: DefaultSnapshotInterval,
		cacheSize:        DefaultNodeCacheSize,
		log:              log15.New("module", "store"),
	}
	for _, opt := range opts {
		opt(t)
	}
	nodes, err := lru.New(t.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("store: node cache: %w", err)
	}
	t.nodes = nodes
	return t, nil
}

// NewInMemoryTries opens an in-memory store and wraps it in tries.
func NewInMemoryTries(opts ...Option) (*ShardTries, error) {
	st, err := OpenInMemory(nil)
	if err != nil {
		return nil, err
	}
	t, err := NewShardTries(st, opts...)
	if err != nil {
		st.Close()
		return nil, err
	}
	return t, nil
}

// Close closes the underlying store.
func (t *ShardTries) Close() error {
	return t.store.Close()
}

// GetTrieForShard returns the trie of shard.
func (t *ShardTries) GetTrieForShard(shard types.ShardUID) blocksim.Trie {
	return &Trie{tries: t, shard: shard}
}

// NewTrieUpdate opens a write overlay on shard at root.
func (t *ShardTries) NewTrieUpdate(shard types.ShardUID, root types.CryptoHash) blocksim.TrieUpdate {
	return newTrieUpdate(&Trie{tries: t, shard: shard}, root)
}

// ApplyAll checks that changes lead from a known root to NewRoot and
// returns the store write that persists NewRoot.
func (t *ShardTries) ApplyAll(changes *types.TrieChanges, shard types.ShardUID) (blocksim.StoreUpdate, types.CryptoHash, error) {
	if changes == nil {
		return nil, types.CryptoHash{}, fmt.Errorf("store: nil trie changes")
	}
	parent, err := t.node(shard, changes.OldRoot)
	if err != nil {
		return nil, types.CryptoHash{}, err
	}
	if parent == nil && !changes.OldRoot.IsZero() {
		return nil, types.CryptoHash{}, fmt.Errorf("store: unknown old root %s", changes.OldRoot)
	}
	if err := checkSorted(changes.Changes); err != nil {
		return nil, types.CryptoHash{}, err
	}
	root := ComputeRoot(shard, changes.OldRoot, changes.Changes)
	if root != changes.NewRoot {
		return nil, types.CryptoHash{}, fmt.Errorf("store: changes hash to %s, not %s", root, changes.NewRoot)
	}
	if len(changes.Changes) == 0 {
		return &storeUpdate{store: t.store}, root, nil
	}

	n := &node{Parent: changes.OldRoot, Changes: changes.Changes}
	if parent != nil {
		n.Depth = parent.Depth + 1
	}
	if n.Depth%t.snapshotInterval == 0 {
		full, err := t.snapshot(shard, changes.OldRoot, changes.Changes)
		if err != nil {
			return nil, types.CryptoHash{}, err
		}
		n.Full, n.Parent, n.Changes = true, types.CryptoHash{}, full
	}
	data, err := cramberry.Marshal(n)
	if err != nil {
		return nil, types.CryptoHash{}, fmt.Errorf("store: encode node: %w", err)
	}
	key := nodeKey(shard, root)
	return &storeUpdate{
		store: t.store,
		sets:  []kv{{key: key, value: data}},
		after: func() { t.nodes.Add(string(key), n) },
	}, root, nil
}

// snapshot merges changes into the full state at root.
func (t *ShardTries) snapshot(shard types.ShardUID, root types.CryptoHash, changes []types.TrieChange) ([]types.TrieChange, error) {
	entries, err := t.collect(shard, root, nil)
	if err != nil {
		return nil, err
	}
	for _, c := range changes {
		entries[string(c.Key)] = c
	}
	return sortedLive(entries), nil
}

// collect walks from root to the nearest full node and returns the
// newest change for every key with prefix.
func (t *ShardTries) collect(shard types.ShardUID, root types.CryptoHash, prefix []byte) (map[string]types.TrieChange, error) {
	entries := make(map[string]types.TrieChange)
	for cur := root; !cur.IsZero(); {
		n, err := t.node(shard, cur)
		if err != nil {
			return nil, err
		}
		if n == nil {
			return nil, fmt.Errorf("store: missing node %s", cur)
		}
		for _, c := range n.Changes {
			if !bytes.HasPrefix(c.Key, prefix) {
				continue
			}
			if _, seen := entries[string(c.Key)]; !seen {
				entries[string(c.Key)] = c
			}
		}
		if n.Full {
			break
		}
		cur = n.Parent
	}
	return entries, nil
}

// node loads the node of root. The zero root has no node.
func (t *ShardTries) node(shard types.ShardUID, root types.CryptoHash) (*node, error) {
	if root.IsZero() {
		return nil, nil
	}
	key := nodeKey(shard, root)
	if v, ok := t.nodes.Get(string(key)); ok {
		return v.(*node), nil
	}
	data, ok, err := t.store.get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	n := new(node)
	if err := cramberry.Unmarshal(data, n); err != nil {
		return nil, fmt.Errorf("store: decode node %s: %w", root, err)
	}
	t.nodes.Add(string(key), n)
	return n, nil
}

// Trie reads one shard at any persisted root.
type Trie struct {
	tries *ShardTries
	shard types.ShardUID
}

// Get returns the value of key at root.
func (t *Trie) Get(root types.CryptoHash, key []byte) ([]byte, bool, error) {
	for cur := root; !cur.IsZero(); {
		n, err := t.tries.node(t.shard, cur)
		if err != nil {
			return nil, false, err
		}
		if n == nil {
			return nil, false, fmt.Errorf("store: missing node %s", cur)
		}
		if v, deleted, found := n.lookup(key); found {
			if deleted {
				return nil, false, nil
			}
			return v, true, nil
		}
		if n.Full {
			break
		}
		cur = n.Parent
	}
	return nil, false, nil
}

// Update opens a write overlay on root.
func (t *Trie) Update(root types.CryptoHash) blocksim.TrieUpdate {
	return newTrieUpdate(t, root)
}

// ComputeRoot hashes parent together with the sorted changes. No
// changes leave the root unchanged.
func ComputeRoot(shard types.ShardUID, parent types.CryptoHash, changes []types.TrieChange) types.CryptoHash {
	if len(changes) == 0 {
		return parent
	}
	var buf bytes.Buffer
	buf.WriteString("blocksim/root")
	_ = binary.Write(&buf, binary.BigEndian, shard.Version)
	_ = binary.Write(&buf, binary.BigEndian, shard.ShardID)
	buf.Write(parent[:])
	for _, c := range changes {
		buf.Write(binary.AppendUvarint(nil, uint64(len(c.Key))))
		buf.Write(c.Key)
		if c.Deleted {
			buf.WriteByte(0)
			continue
		}
		buf.WriteByte(1)
		buf.Write(binary.AppendUvarint(nil, uint64(len(c.Value))))
		buf.Write(c.Value)
	}
	return types.HashBytes(buf.Bytes())
}

func nodeKey(shard types.ShardUID, root types.CryptoHash) []byte {
	key := make([]byte, 0, 1+8+len(root))
	key = append(key, nodePrefix)
	key = binary.BigEndian.AppendUint32(key, shard.Version)
	key = binary.BigEndian.AppendUint32(key, shard.ShardID)
	return append(key, root[:]...)
}

func checkSorted(changes []types.TrieChange) error {
	for i := 1; i < len(changes); i++ {
		if bytes.Compare(changes[i-1].Key, changes[i].Key) >= 0 {
			return fmt.Errorf("store: changes not strictly sorted at %d", i)
		}
	}
	return nil
}

// sortedLive drops deletions and sorts by key.
func sortedLive(entries map[string]types.TrieChange) []types.TrieChange {
	out := make([]types.TrieChange, 0, len(entries))
	for _, c := range entries {
		if !c.Deleted {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Key, out[j].Key) < 0 })
	return out
}

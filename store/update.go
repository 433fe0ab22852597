package store

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/types"
)

var _ blocksim.TrieUpdate = (*TrieUpdate)(nil)

type write struct {
	value   []byte
	deleted bool
	cause   types.StateChangeCause
}

// TrieUpdate buffers prospective and committed writes over a root.
// It is not safe for concurrent use.
type TrieUpdate struct {
	trie        *Trie
	root        types.CryptoHash
	committed   map[string]write
	prospective map[string]write
	finalized   bool
}

func newTrieUpdate(trie *Trie, root types.CryptoHash) *TrieUpdate {
	return &TrieUpdate{
		trie:        trie,
		root:        root,
		committed:   make(map[string]write),
		prospective: make(map[string]write),
	}
}

// Root returns the root the update reads from.
func (u *TrieUpdate) Root() types.CryptoHash { return u.root }

// Get reads through prospective writes, then committed writes, then
// the trie.
func (u *TrieUpdate) Get(key []byte) ([]byte, bool, error) {
	if w, ok := u.prospective[string(key)]; ok {
		return w.value, !w.deleted, nil
	}
	if w, ok := u.committed[string(key)]; ok {
		return w.value, !w.deleted, nil
	}
	return u.trie.Get(u.root, key)
}

// Set buffers a prospective write.
func (u *TrieUpdate) Set(key, value []byte) {
	u.prospective[string(key)] = write{value: append([]byte{}, value...)}
}

// Remove buffers a prospective deletion.
func (u *TrieUpdate) Remove(key []byte) {
	u.prospective[string(key)] = write{deleted: true}
}

// Commit folds prospective writes into the committed set.
func (u *TrieUpdate) Commit(cause types.StateChangeCause) {
	for k, w := range u.prospective {
		w.cause = cause
		u.committed[k] = w
	}
	u.prospective = make(map[string]write)
}

// Rollback discards prospective writes.
func (u *TrieUpdate) Rollback() {
	u.prospective = make(map[string]write)
}

// Iterate visits every live key with prefix, in key order, as seen
// through the buffered writes.
func (u *TrieUpdate) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	entries, err := u.trie.tries.collect(u.trie.shard, u.root, prefix)
	if err != nil {
		return err
	}
	overlay := func(writes map[string]write) {
		for k, w := range writes {
			if !bytes.HasPrefix([]byte(k), prefix) {
				continue
			}
			entries[k] = types.TrieChange{Key: []byte(k), Value: w.value, Deleted: w.deleted}
		}
	}
	overlay(u.committed)
	overlay(u.prospective)
	for _, c := range sortedLive(entries) {
		if err := fn(c.Key, c.Value); err != nil {
			return err
		}
	}
	return nil
}

// Finalize returns the effective committed changes. Writes that leave
// a value as it was are dropped, so an unchanged state keeps its root.
func (u *TrieUpdate) Finalize() (*types.TrieChanges, error) {
	if u.finalized {
		return nil, errors.New("store: trie update finalized twice")
	}
	if len(u.prospective) != 0 {
		return nil, fmt.Errorf("store: finalize with %d uncommitted writes", len(u.prospective))
	}
	u.finalized = true

	changes := make([]types.TrieChange, 0, len(u.committed))
	for k, w := range u.committed {
		old, exists, err := u.trie.Get(u.root, []byte(k))
		if err != nil {
			return nil, err
		}
		if w.deleted {
			if exists {
				changes = append(changes, types.TrieChange{Key: []byte(k), Deleted: true, Cause: w.cause})
			}
			continue
		}
		if exists && bytes.Equal(old, w.value) {
			continue
		}
		changes = append(changes, types.TrieChange{Key: []byte(k), Value: w.value, Cause: w.cause})
	}
	sort.Slice(changes, func(i, j int) bool { return bytes.Compare(changes[i].Key, changes[j].Key) < 0 })

	return &types.TrieChanges{
		OldRoot: u.root,
		NewRoot: ComputeRoot(u.trie.shard, u.root, changes),
		Changes: changes,
	}, nil
}

package store

import (
	"fmt"
	"testing"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTries(t *testing.T, opts ...Option) *ShardTries {
	t.Helper()
	tries, err := NewInMemoryTries(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { tries.Close() })
	return tries
}

// commit finalizes u and persists it, returning the new root.
func commit(t *testing.T, tries *ShardTries, u blocksim.TrieUpdate) types.CryptoHash {
	t.Helper()
	u.Commit(types.CauseTransactionProcessing)
	changes, err := u.Finalize()
	require.NoError(t, err)
	su, root, err := tries.ApplyAll(changes, types.SingleShard)
	require.NoError(t, err)
	require.NoError(t, su.Commit())
	require.Equal(t, changes.NewRoot, root)
	return root
}

func TestTrie_EmptyRoot(t *testing.T) {
	tries := newTries(t)
	v, ok, err := tries.GetTrieForShard(types.SingleShard).Get(types.CryptoHash{}, []byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestTrieUpdate_CommitAndHistory(t *testing.T) {
	tries := newTries(t)

	u := tries.NewTrieUpdate(types.SingleShard, types.CryptoHash{})
	u.Set([]byte("a"), []byte("1"))
	u.Set([]byte("b"), []byte("2"))
	root1 := commit(t, tries, u)
	require.False(t, root1.IsZero())

	u = tries.NewTrieUpdate(types.SingleShard, root1)
	u.Set([]byte("a"), []byte("3"))
	u.Remove([]byte("b"))
	root2 := commit(t, tries, u)
	require.NotEqual(t, root1, root2)

	trie := tries.GetTrieForShard(types.SingleShard)

	v, ok, err := trie.Get(root2, []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3", string(v))
	_, ok, err = trie.Get(root2, []byte("b"))
	require.NoError(t, err)
	assert.False(t, ok)

	// The older root is still readable.
	v, ok, err = trie.Get(root1, []byte("b"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", string(v))
}

func TestTrieUpdate_NoopKeepsRoot(t *testing.T) {
	tries := newTries(t)
	u := tries.NewTrieUpdate(types.SingleShard, types.CryptoHash{})
	u.Set([]byte("a"), []byte("1"))
	root := commit(t, tries, u)

	u = tries.NewTrieUpdate(types.SingleShard, root)
	u.Set([]byte("a"), []byte("1"))
	u.Remove([]byte("missing"))
	u.Commit(types.CauseForcedUpdate)
	changes, err := u.Finalize()
	require.NoError(t, err)
	assert.True(t, changes.Empty())
	assert.Equal(t, root, changes.NewRoot)
}

func TestTrieUpdate_RootIsDeterministic(t *testing.T) {
	build := func() types.CryptoHash {
		tries := newTries(t)
		u := tries.NewTrieUpdate(types.SingleShard, types.CryptoHash{})
		for i := 0; i < 10; i++ {
			u.Set([]byte(fmt.Sprintf("key-%d", i)), []byte{byte(i)})
		}
		return commit(t, tries, u)
	}
	assert.Equal(t, build(), build())
}

func TestTrieUpdate_RollbackAndUncommitted(t *testing.T) {
	tries := newTries(t)
	u := tries.NewTrieUpdate(types.SingleShard, types.CryptoHash{})

	u.Set([]byte("a"), []byte("1"))
	v, ok, err := u.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", string(v))

	u.Rollback()
	_, ok, err = u.Get([]byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)

	u.Set([]byte("b"), []byte("2"))
	_, err = u.Finalize()
	assert.Error(t, err, "finalize must refuse uncommitted writes")
}

func TestTrieUpdate_Iterate(t *testing.T) {
	tries := newTries(t)
	u := tries.NewTrieUpdate(types.SingleShard, types.CryptoHash{})
	u.Set([]byte("p/1"), []byte("a"))
	u.Set([]byte("p/2"), []byte("b"))
	u.Set([]byte("q/1"), []byte("c"))
	root := commit(t, tries, u)

	u = tries.NewTrieUpdate(types.SingleShard, root)
	u.Remove([]byte("p/1"))
	u.Commit(types.CauseTransactionProcessing)
	u.Set([]byte("p/3"), []byte("d"))

	var got []string
	err := u.Iterate([]byte("p/"), func(key, value []byte) error {
		got = append(got, string(key)+"="+string(value))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p/2=b", "p/3=d"}, got)
}

func TestShardTries_Snapshots(t *testing.T) {
	tries := newTries(t, WithSnapshotInterval(3), WithNodeCacheSize(2))

	root := types.CryptoHash{}
	roots := make([]types.CryptoHash, 0, 10)
	for i := 0; i < 10; i++ {
		u := tries.NewTrieUpdate(types.SingleShard, root)
		u.Set([]byte(fmt.Sprintf("k%02d", i)), []byte(fmt.Sprintf("v%d", i)))
		if i > 0 {
			u.Set([]byte("k00"), []byte(fmt.Sprintf("rewritten-%d", i)))
		}
		root = commit(t, tries, u)
		roots = append(roots, root)
	}

	trie := tries.GetTrieForShard(types.SingleShard)
	for i := 0; i < 10; i++ {
		v, ok, err := trie.Get(root, []byte(fmt.Sprintf("k%02d", i)))
		require.NoError(t, err)
		require.True(t, ok, "key %d", i)
		if i == 0 {
			assert.Equal(t, "rewritten-9", string(v))
		} else {
			assert.Equal(t, fmt.Sprintf("v%d", i), string(v))
		}
	}

	// Historical roots see only what existed at the time.
	_, ok, err := trie.Get(roots[4], []byte("k07"))
	require.NoError(t, err)
	assert.False(t, ok)
	v, ok, err := trie.Get(roots[4], []byte("k00"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "rewritten-4", string(v))
}

func TestShardTries_ApplyAllRejectsBadChanges(t *testing.T) {
	tries := newTries(t)

	_, _, err := tries.ApplyAll(nil, types.SingleShard)
	assert.Error(t, err)

	unknown := &types.TrieChanges{OldRoot: types.HashBytes([]byte("nope"))}
	unknown.NewRoot = unknown.OldRoot
	_, _, err = tries.ApplyAll(unknown, types.SingleShard)
	assert.Error(t, err)

	forged := &types.TrieChanges{
		Changes: []types.TrieChange{{Key: []byte("a"), Value: []byte("1")}},
		NewRoot: types.HashBytes([]byte("forged")),
	}
	_, _, err = tries.ApplyAll(forged, types.SingleShard)
	assert.Error(t, err)

	unsorted := []types.TrieChange{{Key: []byte("b")}, {Key: []byte("a")}}
	_, _, err = tries.ApplyAll(&types.TrieChanges{
		Changes: unsorted,
		NewRoot: ComputeRoot(types.SingleShard, types.CryptoHash{}, unsorted),
	}, types.SingleShard)
	assert.Error(t, err)
}

func TestStore_OnDiskReopen(t *testing.T) {
	dir := t.TempDir()

	st, err := Open(dir, nil)
	require.NoError(t, err)
	tries, err := NewShardTries(st)
	require.NoError(t, err)
	u := tries.NewTrieUpdate(types.SingleShard, types.CryptoHash{})
	u.Set([]byte("persisted"), []byte("yes"))
	root := commit(t, tries, u)
	require.NoError(t, tries.Close())

	st, err = Open(dir, nil)
	require.NoError(t, err)
	tries, err = NewShardTries(st)
	require.NoError(t, err)
	defer tries.Close()

	v, ok, err := tries.GetTrieForShard(types.SingleShard).Get(root, []byte("persisted"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "yes", string(v))
}

func TestAccessors(t *testing.T) {
	tries := newTries(t)
	u := tries.NewTrieUpdate(types.SingleShard, types.CryptoHash{})

	signer := types.NewSignerFromSeed("alice", "test")
	pk := signer.PublicKey()

	acc, err := GetAccount(u, "alice")
	require.NoError(t, err)
	assert.Nil(t, acc)

	SetAccount(u, "alice", types.NewAccount(100, 5, types.CryptoHash{}, 182))
	SetAccount(u, "alice.bob", types.NewAccount(1, 0, types.CryptoHash{}, 100))
	SetAccessKey(u, "alice", pk, types.FullAccessKey())
	SetAccessKey(u, "alice.bob", pk, types.FullAccessKey())
	SetCode(u, "alice", []byte("code"))
	SetData(u, "alice", []byte("k1"), []byte("v1"))
	SetData(u, "alice", []byte("k2"), []byte("v2"))
	SetData(u, "alice.bob", []byte("k1"), []byte("other"))
	root := commit(t, tries, u)

	u = tries.NewTrieUpdate(types.SingleShard, root)
	acc, err = GetAccount(u, "alice")
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, types.NewAccount(100, 5, types.CryptoHash{}, 182), *acc)

	key, err := GetAccessKey(u, "alice", pk)
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, types.PermissionFullAccess, key.Permission)

	items, err := ViewState(u, "alice", nil)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "k1", string(items[0].Key))
	assert.Equal(t, "v2", string(items[1].Value))

	require.NoError(t, RemoveAccount(u, "alice"))
	u.Commit(types.CauseActionReceiptProcessing)

	acc, err = GetAccount(u, "alice")
	require.NoError(t, err)
	assert.Nil(t, acc)
	key, err = GetAccessKey(u, "alice", pk)
	require.NoError(t, err)
	assert.Nil(t, key)
	_, ok, err := GetCode(u, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
	items, err = ViewState(u, "alice", nil)
	require.NoError(t, err)
	assert.Empty(t, items)

	// The sibling sub-account is untouched.
	v, ok, err := GetData(u, "alice.bob", []byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "other", string(v))
	key, err = GetAccessKey(u, "alice.bob", pk)
	require.NoError(t, err)
	assert.NotNil(t, key)
}

func TestPostponedReceiptAccessors(t *testing.T) {
	tries := newTries(t)
	u := tries.NewTrieUpdate(types.SingleShard, types.CryptoHash{})

	receipt := types.Receipt{
		PredecessorID: "a",
		ReceiverID:    "b",
		ReceiptID:     types.HashBytes([]byte("r")),
		Action:        &types.ActionReceipt{SignerID: "a", Actions: []types.Action{types.Transfer(1)}},
	}
	dataID := types.HashBytes([]byte("d"))

	SetPostponedReceipt(u, &receipt)
	SetPostponedReceiptID(u, "b", dataID, receipt.ReceiptID)
	SetPendingDataCount(u, "b", receipt.ReceiptID, 2)
	SetReceivedData(u, "b", dataID, ReceivedData{Data: []byte("x"), HasData: true})
	u.Commit(types.CausePostponedReceipt)

	got, err := GetPostponedReceipt(u, "b", receipt.ReceiptID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, receipt.ReceiptID, got.ReceiptID)
	assert.Equal(t, types.AccountID("a"), got.PredecessorID)

	id, err := GetPostponedReceiptID(u, "b", dataID)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, receipt.ReceiptID, *id)

	n, ok, err := GetPendingDataCount(u, "b", receipt.ReceiptID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(2), n)

	data, err := GetReceivedData(u, "b", dataID)
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.True(t, data.HasData)
	assert.Equal(t, "x", string(data.Data))
}

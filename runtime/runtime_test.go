package runtime_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/engine"
	"github.com/blockberries/blocksim/example/crosscontract"
	"github.com/blockberries/blocksim/example/statusmessage"
	"github.com/blockberries/blocksim/runtime"
	simtest "github.com/blockberries/blocksim/testing"
	"github.com/blockberries/blocksim/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRuntime(t *testing.T, opts ...runtime.Option) (*runtime.Runtime, *types.InMemorySigner) {
	t.Helper()
	rt, signer, root, err := runtime.InitRuntime(nil, opts...)
	require.NoError(t, err)
	require.Equal(t, runtime.RootAccount, root)
	t.Cleanup(func() { _ = rt.Close() })
	return rt, signer
}

func TestInitRuntime_FundsRoot(t *testing.T) {
	rt, signer := newRuntime(t)

	acc, err := rt.ViewAccount(runtime.RootAccount)
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, types.RootBalance, acc.Amount)

	key, err := rt.ViewAccessKey(runtime.RootAccount, signer.PublicKey())
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, types.Nonce(0), key.Nonce)

	assert.Equal(t, types.BlockHeight(1), rt.CurrentBlock().Height())
	assert.False(t, rt.CurrentBlock().StateRoot().IsZero())
	assert.Equal(t, rt.Genesis().GasLimit, rt.Genesis().RuntimeConfig.MaxTotalPrepaidGas)
}

func TestNew_RejectsInvalidGenesis(t *testing.T) {
	_, err := runtime.New(nil)
	assert.Error(t, err)

	g := runtime.DefaultGenesisConfig()
	g.EpochLength = 0
	_, err = runtime.New(g)
	assert.Error(t, err)
}

func TestProduceBlocks_AdvancesHeight(t *testing.T) {
	rt, _ := newRuntime(t)
	root := rt.CurrentBlock().StateRoot()

	require.NoError(t, rt.ProduceBlocks(context.Background(), 5))
	b := rt.CurrentBlock()
	assert.Equal(t, types.BlockHeight(6), b.Height())
	assert.Equal(t, types.EpochHeight(2), b.EpochHeight())
	assert.Equal(t, root, b.StateRoot(), "empty blocks keep the root")
	assert.Equal(t, root, b.Header().PrevStateRoot)
}

func TestSendTx_RejectsDuplicates(t *testing.T) {
	rt, signer := newRuntime(t)
	tx := types.SendMoneyTx(1, runtime.RootAccount, runtime.RootAccount, signer, 1, types.CryptoHash{})

	h, err := rt.SendTx(tx)
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), h)
	assert.Equal(t, runtime.TxPooled, rt.TxState(h))

	_, err = rt.SendTx(tx)
	assert.ErrorIs(t, err, runtime.ErrDuplicateTx)
}

func TestResolveTx_FollowsReceipts(t *testing.T) {
	rt, signer := newRuntime(t)
	tx := types.CreateAccountTx(1, runtime.RootAccount, "alice.root", types.Tokens(10), signer.PublicKey(), signer, types.CryptoHash{})

	id, outcome, err := rt.ResolveTx(context.Background(), tx)
	require.NoError(t, err)
	assert.NotEqual(t, tx.Hash(), id, "terminal outcome belongs to the receipt")
	assert.Equal(t, types.StatusSuccessValue, outcome.Status.Kind)
	assert.Equal(t, types.AccountID("alice.root"), outcome.ExecutorID)
	assert.Equal(t, runtime.TxSucceeded, rt.TxState(tx.Hash()))
	assert.Contains(t, rt.LastOutcomes(), tx.Hash())
	assert.Contains(t, rt.LastOutcomes(), id)

	acc, err := rt.ViewAccount("alice.root")
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, types.Tokens(10), acc.Amount)

	_, ok := rt.ProfileOfOutcome(id)
	assert.True(t, ok, "receipt outcomes carry a profile")
	_, ok = rt.ProfileOfOutcome(tx.Hash())
	assert.False(t, ok)
}

func TestResolveTxWithin_BlockLimit(t *testing.T) {
	rt, signer := newRuntime(t)
	tx := types.SendMoneyTx(1, runtime.RootAccount, runtime.RootAccount, signer, 1, types.CryptoHash{})

	_, _, err := rt.ResolveTxWithin(context.Background(), tx, 1)
	require.ErrorIs(t, err, blocksim.ErrBlockLimit)
	assert.Equal(t, runtime.TxIncluded, rt.TxState(tx.Hash()))
	assert.Len(t, rt.PendingReceipts(), 1)
	assert.NoError(t, rt.Halted(), "a block limit is not an invariant violation")

	require.NoError(t, rt.ProcessAll(context.Background()))
	assert.Equal(t, runtime.TxSucceeded, rt.TxState(tx.Hash()))
	assert.Empty(t, rt.PendingReceipts())
}

func TestProcessAll_DrainsPoolAndReceipts(t *testing.T) {
	rt, signer := newRuntime(t)
	var hashes []types.CryptoHash
	for i := 1; i <= 3; i++ {
		tx := types.SendMoneyTx(types.Nonce(i), runtime.RootAccount, runtime.RootAccount, signer, 1, types.CryptoHash{})
		h, err := rt.SendTx(tx)
		require.NoError(t, err)
		hashes = append(hashes, h)
	}

	require.NoError(t, rt.ProcessAll(context.Background()))
	assert.Empty(t, rt.PendingReceipts())
	for _, h := range hashes {
		assert.Equal(t, runtime.TxSucceeded, rt.TxState(h))
		_, ok := rt.Transaction(h)
		assert.True(t, ok)
	}
}

func TestProduceBlock_InvalidTxRejectsBlock(t *testing.T) {
	rt, signer := newRuntime(t)
	before := rt.CurrentBlock().Height()

	_, err := rt.SendTx(types.SendMoneyTx(5, runtime.RootAccount, runtime.RootAccount, signer, types.RootBalance*2, types.CryptoHash{}))
	require.NoError(t, err)
	err = rt.ProduceBlock(context.Background())
	require.Error(t, err)
	_, isInv := blocksim.IsInvariant(err)
	assert.False(t, isInv)
	assert.Equal(t, before, rt.CurrentBlock().Height())

	require.NoError(t, rt.ProduceBlock(context.Background()), "runtime keeps going")
}

func TestProduceBlock_InvalidTxKeepsOtherLanes(t *testing.T) {
	rt, signer := newRuntime(t)
	ctx := context.Background()

	create := types.CreateAccountTx(1, runtime.RootAccount, "alice.root", types.Tokens(10), signer.PublicKey(), signer, types.CryptoHash{})
	_, _, err := rt.ResolveTx(ctx, create)
	require.NoError(t, err)
	key, err := rt.ViewAccessKey("alice.root", signer.PublicKey())
	require.NoError(t, err)
	require.NotNil(t, key)

	good := types.SendMoneyTx(key.Nonce+1, "alice.root", runtime.RootAccount, signer, types.Tokens(1), types.CryptoHash{})
	bad := types.SendMoneyTx(2, runtime.RootAccount, runtime.RootAccount, signer, types.RootBalance*2, types.CryptoHash{})
	for _, tx := range []types.SignedTransaction{good, bad} {
		_, err := rt.SendTx(tx)
		require.NoError(t, err)
	}

	height := rt.CurrentBlock().Height()
	err = rt.ProduceBlock(ctx)
	inv, ok := engine.IsInvalidTx(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, bad.Hash(), inv.TxHash)
	assert.Equal(t, height, rt.CurrentBlock().Height())
	assert.NoError(t, rt.Halted())

	assert.Equal(t, runtime.TxPooled, rt.TxState(good.Hash()))
	assert.Equal(t, runtime.TxRejected, rt.TxState(bad.Hash()))
	assert.True(t, runtime.TxRejected.IsTerminal())
	rejected, ok := rt.Rejected(bad.Hash())
	require.True(t, ok)
	assert.Equal(t, inv.Kind, rejected.Kind)
	_, ok = rt.Rejected(good.Hash())
	assert.False(t, ok)

	_, err = rt.SendTx(bad)
	assert.ErrorIs(t, err, runtime.ErrDuplicateTx)
	_, err = rt.SendTx(good)
	assert.ErrorIs(t, err, runtime.ErrDuplicateTx, "still pooled")

	require.NoError(t, rt.ProcessAll(ctx))
	assert.Equal(t, runtime.TxSucceeded, rt.TxState(good.Hash()))
	assert.Equal(t, runtime.TxRejected, rt.TxState(bad.Hash()))
	assert.Greater(t, rt.CurrentBlock().Height(), height)
}

func TestProduceBlock_EngineErrorReintroducesTransactions(t *testing.T) {
	boom := errors.New("boom")
	fail := true
	var seen [][]types.SignedTransaction
	mock := &simtest.MockEngine{}
	mock.ApplyFn = func(_ context.Context, _ blocksim.Trie, root types.CryptoHash, _ *blocksim.ApplyState,
		_ []types.Receipt, txs []types.SignedTransaction, _ blocksim.EpochInfoProvider) (*blocksim.ApplyResult, error) {
		seen = append(seen, txs)
		if fail {
			fail = false
			return nil, boom
		}
		return simtest.EmptyApplyResult(root), nil
	}
	rt, signer := newRuntime(t, runtime.WithEngine(mock))

	tx := types.SendMoneyTx(1, runtime.RootAccount, runtime.RootAccount, signer, 1, types.CryptoHash{})
	_, err := rt.SendTx(tx)
	require.NoError(t, err)

	require.ErrorIs(t, rt.ProduceBlock(context.Background()), boom)
	assert.Equal(t, runtime.TxPooled, rt.TxState(tx.Hash()))
	_, rejected := rt.Rejected(tx.Hash())
	assert.False(t, rejected, "only an invalid transaction error drops a transaction")

	require.NoError(t, rt.ProduceBlock(context.Background()))
	require.Len(t, seen, 2)
	require.Len(t, seen[1], 1)
	assert.Equal(t, tx.Hash(), seen[1][0].Hash())
}

func TestClose_LatchesClosedState(t *testing.T) {
	rt, signer, _, err := runtime.InitRuntime(nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close(), "closing twice is a no-op")

	assert.Nil(t, rt.CurrentBlock())
	assert.ErrorIs(t, rt.ProduceBlock(ctx), runtime.ErrClosed)
	assert.ErrorIs(t, rt.ProcessAll(ctx), runtime.ErrClosed)
	_, err = rt.ViewAccount(runtime.RootAccount)
	assert.ErrorIs(t, err, runtime.ErrClosed)
	_, err = rt.ViewAccessKey(runtime.RootAccount, signer.PublicKey())
	assert.ErrorIs(t, err, runtime.ErrClosed)
	_, err = rt.ViewState(runtime.RootAccount, nil)
	assert.ErrorIs(t, err, runtime.ErrClosed)
	assert.ErrorIs(t, rt.ViewMethodCall(ctx, runtime.RootAccount, "get", nil).Err, runtime.ErrClosed)
	assert.ErrorIs(t, rt.ForceAccountUpdate(runtime.RootAccount, types.Account{}), runtime.ErrClosed)

	tx := types.SendMoneyTx(1, runtime.RootAccount, runtime.RootAccount, signer, 1, types.CryptoHash{})
	_, err = rt.SendTx(tx)
	assert.ErrorIs(t, err, runtime.ErrClosed)
	_, _, err = rt.ResolveTx(ctx, tx)
	assert.ErrorIs(t, err, runtime.ErrClosed)
	assert.NoError(t, rt.Halted(), "closing is not a halt")
}

func TestForceAccountUpdate(t *testing.T) {
	rt, _ := newRuntime(t)
	height := rt.CurrentBlock().Height()
	root := rt.CurrentBlock().StateRoot()

	acc, err := rt.ViewAccount(runtime.RootAccount)
	require.NoError(t, err)
	updated := *acc
	updated.Amount = types.Tokens(7)

	require.NoError(t, rt.ForceAccountUpdate(runtime.RootAccount, updated))
	got, err := rt.ViewAccount(runtime.RootAccount)
	require.NoError(t, err)
	assert.Equal(t, types.Tokens(7), got.Amount)
	assert.Equal(t, height, rt.CurrentBlock().Height())
	changed := rt.CurrentBlock().StateRoot()
	assert.NotEqual(t, root, changed)

	require.NoError(t, rt.ForceAccountUpdate(runtime.RootAccount, updated))
	assert.Equal(t, changed, rt.CurrentBlock().StateRoot(), "same record keeps the root")

	require.NoError(t, rt.ProduceBlock(context.Background()))
	got, err = rt.ViewAccount(runtime.RootAccount)
	require.NoError(t, err)
	assert.Equal(t, types.Tokens(7), got.Amount, "update survives block production")
}

func TestViewMethodCall_IsReadOnly(t *testing.T) {
	h := simtest.NewHarness(t)
	status := h.Root().Deploy(statusmessage.Code, "status.root", simtest.DefaultDeposit)
	h.Root().MustCall(status.ID(), "set_status", statusmessage.SetStatusArgs("hello"))

	rt := h.Runtime()
	root, height := rt.CurrentBlock().StateRoot(), rt.CurrentBlock().Height()
	args := statusmessage.GetStatusArgs(h.Root().ID())

	first := rt.ViewMethodCall(context.Background(), status.ID(), "get_status", args)
	second := rt.ViewMethodCall(context.Background(), status.ID(), "get_status", args)
	require.True(t, first.IsOK(), "%v", first.Err)
	assert.Equal(t, first, second)

	var got string
	require.NoError(t, first.UnmarshalValue(&got))
	assert.Equal(t, "hello", got)
	assert.Equal(t, root, rt.CurrentBlock().StateRoot())
	assert.Equal(t, height, rt.CurrentBlock().Height())

	res := rt.ViewMethodCall(context.Background(), status.ID(), "set_status", statusmessage.SetStatusArgs("nope"))
	assert.False(t, res.IsOK(), "storage writes are not allowed in views")
	assert.Equal(t, root, rt.CurrentBlock().StateRoot())

	missing := rt.ViewMethodCall(context.Background(), "nobody.root", "get_status", args)
	require.Error(t, missing.Err)
	wire := missing.Wire()
	assert.Equal(t, missing.Err.Error(), wire.Error)
	assert.Equal(t, missing.Err.Error(), runtime.ViewResultFromWire(wire).Err.Error())
}

func TestExecutionResult_PromiseResults(t *testing.T) {
	h := simtest.NewHarness(t)
	status := h.Root().Deploy(statusmessage.Code, "status.root", simtest.DefaultDeposit)
	caller := h.Root().Deploy(crosscontract.Code, "caller.root", simtest.DefaultDeposit)

	res := h.Root().Call(caller.ID(), "simple_call", crosscontract.CallArgs(status.ID(), "via caller"), crosscontract.Gas, 0)
	require.True(t, res.IsSuccess(), res.Status().String())
	h.ProcessAll()

	rt := h.Runtime()
	call, ok := rt.ExecutionResult(res.ID())
	require.True(t, ok)
	promises := call.PromiseResults()
	require.NotEmpty(t, promises)

	var setStatus *runtime.ExecutionResult
	for _, p := range promises {
		require.NotNil(t, p)
		if p.ExecutorID() == status.ID() {
			setStatus = p
		}
	}
	require.NotNil(t, setStatus)
	assert.Equal(t, []string{"A status was set by root"}, setStatus.Logs())
	assert.Greater(t, call.TotalGasBurnt(), call.GasBurnt())

	profile, ok := setStatus.Profile()
	require.True(t, ok)
	assert.Positive(t, profile.Get(types.CostStorageWrite))

	got, found, err := statusmessage.DecodeStatus(h.MustView(status.ID(), "get_status", statusmessage.GetStatusArgs("root")))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "via caller", got)
}

func TestExecutionResult_FailureValue(t *testing.T) {
	h := simtest.NewHarness(t)
	status := h.Root().Deploy(statusmessage.Code, "status.root", simtest.DefaultDeposit)

	res := h.Root().Call(status.ID(), "delete_status", nil, simtest.DefaultGas, 0)
	require.False(t, res.IsSuccess())
	_, err := res.Value()
	require.Error(t, err)
	var execErr *types.TxExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, types.ErrExecution, execErr.Kind)

	var states []runtime.TxState
	for _, id := range h.Runtime().LastOutcomes() {
		states = append(states, h.Runtime().TxState(id))
	}
	assert.Contains(t, states, runtime.TxFailed)
}

func TestArtifactCacheDir_PersistsArtifacts(t *testing.T) {
	dir := t.TempDir()
	h := simtest.NewHarness(t, runtime.WithArtifactCacheDir(dir))
	status := h.Root().Deploy(statusmessage.Code, "status.root", simtest.DefaultDeposit)
	h.Root().MustCall(status.ID(), "set_status", statusmessage.SetStatusArgs("cached"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestWithoutArtifactCache(t *testing.T) {
	h := simtest.NewHarness(t, runtime.WithoutArtifactCache())
	assert.Nil(t, h.Runtime().ArtifactCache())

	status := h.Root().Deploy(statusmessage.Code, "status.root", simtest.DefaultDeposit)
	h.Root().MustCall(status.ID(), "set_status", statusmessage.SetStatusArgs("uncached"))
	assert.NotEmpty(t, h.MustView(status.ID(), "get_status", statusmessage.GetStatusArgs("root")))
}

func TestProduceBlock_EngineErrorDoesNotHalt(t *testing.T) {
	boom := errors.New("boom")
	fail := true
	mock := &simtest.MockEngine{}
	mock.ApplyFn = func(_ context.Context, _ blocksim.Trie, root types.CryptoHash, _ *blocksim.ApplyState,
		_ []types.Receipt, _ []types.SignedTransaction, _ blocksim.EpochInfoProvider) (*blocksim.ApplyResult, error) {
		if fail {
			fail = false
			return nil, boom
		}
		return simtest.EmptyApplyResult(root), nil
	}
	rt, _ := newRuntime(t, runtime.WithEngine(mock))

	require.ErrorIs(t, rt.ProduceBlock(context.Background()), boom)
	assert.Equal(t, types.BlockHeight(1), rt.CurrentBlock().Height())
	require.NoError(t, rt.ProduceBlock(context.Background()))
	assert.Equal(t, types.BlockHeight(2), rt.CurrentBlock().Height())
	assert.Equal(t, int64(2), mock.ApplyCalls.Load())
	assert.Equal(t, int64(1), mock.ApplyGenesisStateCalls.Load())
}

func TestProduceBlock_InvariantsHalt(t *testing.T) {
	tests := []struct {
		name  string
		apply func(root types.CryptoHash) *blocksim.ApplyResult
		err   error
	}{
		{
			name: "unknown status",
			apply: func(root types.CryptoHash) *blocksim.ApplyResult {
				res := simtest.EmptyApplyResult(root)
				res.Outcomes = []types.ExecutionOutcomeWithID{{ID: types.HashBytes([]byte("x"))}}
				return res
			},
			err: blocksim.ErrUnknownStatus,
		},
		{
			name: "root mismatch",
			apply: func(root types.CryptoHash) *blocksim.ApplyResult {
				res := simtest.EmptyApplyResult(root)
				res.StateRoot = types.HashBytes([]byte("elsewhere"))
				return res
			},
			err: blocksim.ErrStateRootMismatch,
		},
		{
			name: "missing trie changes",
			apply: func(root types.CryptoHash) *blocksim.ApplyResult {
				return &blocksim.ApplyResult{StateRoot: root}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &simtest.MockEngine{}
			mock.ApplyFn = func(_ context.Context, _ blocksim.Trie, root types.CryptoHash, _ *blocksim.ApplyState,
				_ []types.Receipt, _ []types.SignedTransaction, _ blocksim.EpochInfoProvider) (*blocksim.ApplyResult, error) {
				return tt.apply(root), nil
			}
			rt, _ := newRuntime(t, runtime.WithEngine(mock))

			err := rt.ProduceBlock(context.Background())
			_, ok := blocksim.IsInvariant(err)
			require.True(t, ok, "got %v", err)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}

			err = rt.ProduceBlock(context.Background())
			assert.ErrorIs(t, err, blocksim.ErrHalted)
			assert.ErrorIs(t, rt.Halted(), blocksim.ErrHalted)
			assert.Equal(t, int64(1), mock.ApplyCalls.Load(), "halted runtime never calls the engine")
			assert.ErrorIs(t, rt.ForceAccountUpdate(runtime.RootAccount, types.Account{}), blocksim.ErrHalted)
		})
	}
}

func TestResolveTx_LostOutcomeHalts(t *testing.T) {
	rt, signer := newRuntime(t, runtime.WithEngine(&simtest.MockEngine{}))
	tx := types.SendMoneyTx(1, runtime.RootAccount, runtime.RootAccount, signer, 1, types.CryptoHash{})

	_, _, err := rt.ResolveTx(context.Background(), tx)
	require.ErrorIs(t, err, blocksim.ErrLostOutcome)
	assert.ErrorIs(t, rt.ProduceBlock(context.Background()), blocksim.ErrHalted)
}

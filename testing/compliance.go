package simtest

import (
	"testing"
	"time"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/example/crosscontract"
	"github.com/blockberries/blocksim/example/statusmessage"
	"github.com/blockberries/blocksim/runtime"
	"github.com/blockberries/blocksim/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// FixedGenesis returns the default genesis with a fixed genesis time,
// so that two runtimes built from it produce identical blocks.
func FixedGenesis() *runtime.GenesisConfig {
	g := runtime.DefaultGenesisConfig()
	g.GenesisTime = types.TimestampNanos(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return g
}

// RunEngineSuite runs the receipt-flow conformance suite against an
// engine that executes the JavaScript contract host API.
//
// The factory function should return a fresh engine for each test.
func RunEngineSuite(t *testing.T, factory func() blocksim.Engine) {
	t.Helper()

	newHarness := func(t *testing.T) *Harness {
		return NewHarnessWithGenesis(t, FixedGenesis(), runtime.WithEngine(factory()))
	}

	t.Run("genesis_deterministic", func(t *testing.T) {
		h1, h2 := newHarness(t), newHarness(t)
		assert.Equal(t, h1.Runtime().CurrentBlock().StateRoot(), h2.Runtime().CurrentBlock().StateRoot())
		assert.False(t, h1.Runtime().CurrentBlock().StateRoot().IsZero())
	})

	t.Run("create_and_transfer", func(t *testing.T) {
		h := newHarness(t)
		alice := h.Root().CreateUser("alice.root", types.Tokens(10))
		res := h.Root().Transfer(alice.ID(), types.Tokens(5))
		require.True(t, res.IsSuccess(), res.Status().String())
		assert.Equal(t, types.Tokens(15), alice.Account().Amount)
	})

	t.Run("failed_transfer_refunds_deposit", func(t *testing.T) {
		h := newHarness(t)
		before := h.Root().Account().Amount
		res := h.Root().Transfer("ghost.root", types.Tokens(50))
		require.False(t, res.IsSuccess())
		require.NotNil(t, res.Failure())
		assert.Equal(t, types.ErrAccountDoesNotExist, res.Failure().Kind)

		h.ProcessAll()
		after := h.Root().Account().Amount
		assert.Greater(t, after, before-types.Tokens(1), "deposit came back")
		assert.Less(t, after, before, "fees were paid")
	})

	t.Run("every_receipt_has_an_outcome", func(t *testing.T) {
		h := newHarness(t)
		status := h.Root().Deploy(statusmessage.Code, "status.root", DefaultDeposit)
		caller := h.Root().Deploy(crosscontract.Code, "caller.root", DefaultDeposit)

		res := h.Root().Call(caller.ID(), "complex_call", crosscontract.CallArgs(status.ID(), "hi"), crosscontract.Gas, 0)
		require.True(t, res.IsSuccess(), res.Status().String())
		h.ProcessAll()

		tx, ok := h.Runtime().ExecutionResult(res.ID())
		require.True(t, ok)
		for _, r := range tx.PromiseResults() {
			assert.NotNil(t, r)
		}
		assert.Empty(t, h.Runtime().PendingReceipts())
	})

	t.Run("promise_chain_returns_value", func(t *testing.T) {
		h := newHarness(t)
		status := h.Root().Deploy(statusmessage.Code, "status.root", DefaultDeposit)
		caller := h.Root().Deploy(crosscontract.Code, "caller.root", DefaultDeposit)

		res := h.Root().Call(caller.ID(), "complex_call", crosscontract.CallArgs(status.ID(), "chained"), crosscontract.Gas, 0)
		require.True(t, res.IsSuccess(), res.Status().String())
		v, err := res.Value()
		require.NoError(t, err)
		got, ok, err := statusmessage.DecodeStatus(v)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "chained", got)
	})

	t.Run("callback_sees_failed_promise", func(t *testing.T) {
		h := newHarness(t)
		caller := h.Root().Deploy(crosscontract.Code, "caller.root", DefaultDeposit)
		plain := h.Root().CreateUser("plain.root", types.Tokens(1))

		res := h.Root().Call(caller.ID(), "call_and_report", crosscontract.ReportArgs(plain.ID(), "root"), crosscontract.Gas, 0)
		require.True(t, res.IsSuccess(), res.Status().String())
		assert.Equal(t, []string{"status call failed"}, res.Logs())
	})

	t.Run("gas_is_refunded", func(t *testing.T) {
		h := newHarness(t)
		status := h.Root().Deploy(statusmessage.Code, "status.root", DefaultDeposit)

		before := h.Root().Account().Amount
		res := h.Root().Call(status.ID(), "set_status", statusmessage.SetStatusArgs("cheap"), DefaultGas, 0)
		require.True(t, res.IsSuccess(), res.Status().String())
		h.ProcessAll()
		spent := before - h.Root().Account().Amount
		assert.Less(t, spent, types.Balance(DefaultGas)*types.DefaultGasPrice, "unused prepaid gas came back")
	})

	t.Run("view_does_not_change_state", func(t *testing.T) {
		h := newHarness(t)
		status := h.Root().Deploy(statusmessage.Code, "status.root", DefaultDeposit)
		h.Root().MustCall(status.ID(), "set_status", statusmessage.SetStatusArgs("seen"))

		root := h.Runtime().CurrentBlock().StateRoot()
		height := h.Runtime().CurrentBlock().Height()
		first := h.MustView(status.ID(), "get_status", statusmessage.GetStatusArgs(h.Root().ID()))
		second := h.MustView(status.ID(), "get_status", statusmessage.GetStatusArgs(h.Root().ID()))
		assert.Equal(t, first, second)
		assert.Equal(t, root, h.Runtime().CurrentBlock().StateRoot())
		assert.Equal(t, height, h.Runtime().CurrentBlock().Height())
	})

	t.Run("same_transactions_same_roots", func(t *testing.T) {
		run := func() types.CryptoHash {
			h := newHarness(t)
			status := h.Root().Deploy(statusmessage.Code, "status.root", DefaultDeposit)
			h.Root().MustCall(status.ID(), "set_status", statusmessage.SetStatusArgs("same"))
			h.ProcessAll()
			return h.Runtime().CurrentBlock().StateRoot()
		}
		assert.Equal(t, run(), run())
	})
}

package statusmessage_test

import (
	"testing"

	"github.com/blockberries/blocksim/example/statusmessage"
	simtest "github.com/blockberries/blocksim/testing"
	"github.com/blockberries/blocksim/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMessage_SetAndGet(t *testing.T) {
	h := simtest.NewHarness(t)
	contract := h.Root().Deploy(statusmessage.Code, "status.root", simtest.DefaultDeposit)
	alice := h.Root().CreateUser("alice.root", types.Tokens(10))

	res := alice.Call(contract.ID(), "set_status", statusmessage.SetStatusArgs("hello world"), statusmessage.Gas, 0)
	require.True(t, res.IsSuccess(), res.Status().String())
	assert.Equal(t, []string{"A status was set by alice.root"}, res.Logs())

	got, ok, err := statusmessage.DecodeStatus(h.MustView(contract.ID(), "get_status", statusmessage.GetStatusArgs(alice.ID())))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello world", got)

	_, ok, err = statusmessage.DecodeStatus(h.MustView(contract.ID(), "get_status", statusmessage.GetStatusArgs("bob.root")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatusMessage_Delete(t *testing.T) {
	h := simtest.NewHarness(t)
	contract := h.Root().Deploy(statusmessage.Code, "status.root", simtest.DefaultDeposit)

	res := h.Root().Call(contract.ID(), "delete_status", nil, statusmessage.Gas, 0)
	require.False(t, res.IsSuccess())
	assert.Equal(t, types.ErrExecution, res.Failure().Kind)

	h.Root().MustCall(contract.ID(), "set_status", statusmessage.SetStatusArgs("temporary"))
	usage := h.Account(contract.ID()).StorageUsage
	h.Root().MustCall(contract.ID(), "delete_status", nil)
	assert.Less(t, h.Account(contract.ID()).StorageUsage, usage)
}

func TestStatusMessage_ViewCannotWrite(t *testing.T) {
	h := simtest.NewHarness(t)
	contract := h.Root().Deploy(statusmessage.Code, "status.root", simtest.DefaultDeposit)

	res := h.View(contract.ID(), "set_status", statusmessage.SetStatusArgs("sneaky"))
	require.Error(t, res.Err)
	var execErr *types.TxExecutionError
	require.ErrorAs(t, res.Err, &execErr)
	assert.Equal(t, types.ErrProhibitedInView, execErr.Kind)
}

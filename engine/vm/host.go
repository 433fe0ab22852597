package vm

import (
	"fmt"
	"strconv"

	"github.com/blockberries/blocksim/types"

	"github.com/dop251/goja"
)

// host implements the "env" object for one call.
type host struct {
	rt      *goja.Runtime
	ctx     *Context
	cfg     *types.RuntimeConfig
	storage Storage
	gas     *gasCounter
	balance types.Balance
	out     *Outcome

	abortErr error
}

func (h *host) install() error {
	env := h.rt.NewObject()
	funcs := map[string]func(goja.FunctionCall) goja.Value{
		"input":                  h.input,
		"value_return":           h.valueReturn,
		"log":                    h.logUtf8,
		"panic":                  h.panicUtf8,
		"storage_read":           h.storageRead,
		"storage_write":          h.storageWrite,
		"storage_remove":         h.storageRemove,
		"storage_has_key":        h.storageHasKey,
		"current_account_id":     h.currentAccountID,
		"signer_account_id":      h.signerAccountID,
		"signer_account_pk":      h.signerAccountPK,
		"predecessor_account_id": h.predecessorAccountID,
		"block_height":           h.blockHeight,
		"block_timestamp":        h.blockTimestamp,
		"epoch_height":           h.epochHeight,
		"account_balance":        h.accountBalance,
		"account_locked_balance": h.accountLockedBalance,
		"attached_deposit":       h.attachedDeposit,
		"prepaid_gas":            h.prepaidGas,
		"used_gas":               h.usedGas,
		"storage_usage":          h.storageUsage,
		"random_seed":            h.randomSeed,
		"promise_create":         h.promiseCreate,
		"promise_then":           h.promiseThen,
		"promise_return":         h.promiseReturn,
		"promise_results_count":  h.promiseResultsCount,
		"promise_result":         h.promiseResult,
	}
	for name, fn := range funcs {
		if err := env.Set(name, fn); err != nil {
			return err
		}
	}
	return h.rt.Set("env", env)
}

func (h *host) finish() *Outcome {
	h.out.BurntGas = h.gas.burnt
	h.out.UsedGas = h.gas.used
	h.out.Profile = h.gas.profile
	return h.out
}

// abort stops the contract. The interrupt cannot be caught by the
// contract's own try/catch.
func (h *host) abort(err error) goja.Value {
	if h.abortErr == nil {
		h.abortErr = err
	}
	h.rt.Interrupt(err)
	panic(h.rt.NewGoError(err))
}

func (h *host) fail(kind types.ErrorKind, format string, args ...any) goja.Value {
	return h.abort(&types.TxExecutionError{
		Kind:      kind,
		AccountID: h.ctx.CurrentAccountID,
		Message:   fmt.Sprintf(format, args...),
	})
}

// charge burns the base cost of a host call plus extra.
func (h *host) charge(cost string, extra types.Gas) {
	if err := h.gas.burn(types.CostHostBase, h.cfg.VM.Costs.Base); err != nil {
		h.abort(err)
	}
	if extra == 0 {
		return
	}
	if err := h.gas.burn(cost, extra); err != nil {
		h.abort(err)
	}
}

func (h *host) viewForbidden(name string) {
	if h.ctx.IsView() {
		h.fail(types.ErrProhibitedInView, "%s is not allowed in view calls", name)
	}
}

func (h *host) internal(err error) goja.Value {
	return h.abort(&internalError{err})
}

func (h *host) bytesArg(call goja.FunctionCall, i int) []byte {
	v := call.Argument(i)
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return []byte(v.String())
}

func (h *host) u64Arg(call goja.FunctionCall, i int, what string) uint64 {
	v := call.Argument(i)
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return 0
	}
	n, err := strconv.ParseUint(v.String(), 10, 64)
	if err != nil {
		h.fail(types.ErrExecution, "invalid %s %q", what, v.String())
	}
	return n
}

func (h *host) u64String(v uint64) goja.Value {
	return h.rt.ToValue(strconv.FormatUint(v, 10))
}

func (h *host) input(goja.FunctionCall) goja.Value {
	h.charge("", 0)
	return h.rt.ToValue(string(h.ctx.Input))
}

func (h *host) valueReturn(call goja.FunctionCall) goja.Value {
	h.charge("", 0)
	h.out.ReturnData = h.bytesArg(call, 0)
	h.out.ReturnPromise = -1
	return goja.Undefined()
}

func (h *host) logUtf8(call goja.FunctionCall) goja.Value {
	msg := call.Argument(0).String()
	costs := h.cfg.VM.Costs
	h.charge(types.CostLog, costs.LogBase+costs.LogPerByte*types.Gas(len(msg)))
	if max := h.cfg.VM.MaxLogs; max > 0 && uint32(len(h.out.Logs)) >= max {
		h.fail(types.ErrExecution, "number of logs exceeds %d", max)
	}
	h.out.Logs = append(h.out.Logs, msg)
	return goja.Undefined()
}

func (h *host) panicUtf8(call goja.FunctionCall) goja.Value {
	h.charge("", 0)
	msg := "explicit guest panic"
	if v := call.Argument(0); !goja.IsUndefined(v) {
		msg = v.String()
	}
	return h.fail(types.ErrExecution, "Smart contract panicked: %s", msg)
}

func (h *host) storageRead(call goja.FunctionCall) goja.Value {
	key := h.bytesArg(call, 0)
	costs := h.cfg.VM.Costs
	h.charge(types.CostStorageRead, costs.StorageReadBase+costs.StorageReadPerByte*types.Gas(len(key)))
	v, ok, err := h.storage.Read(key)
	if err != nil {
		return h.internal(err)
	}
	if !ok {
		return goja.Null()
	}
	h.charge(types.CostStorageRead, costs.StorageReadPerByte*types.Gas(len(v)))
	return h.rt.ToValue(string(v))
}

func (h *host) storageWrite(call goja.FunctionCall) goja.Value {
	h.viewForbidden("storage_write")
	key, value := h.bytesArg(call, 0), h.bytesArg(call, 1)
	costs := h.cfg.VM.Costs
	h.charge(types.CostStorageWrite, costs.StorageWriteBase+costs.StorageWritePerByte*types.Gas(len(key)+len(value)))
	existed, err := h.storage.Write(key, value)
	if err != nil {
		return h.internal(err)
	}
	return h.rt.ToValue(existed)
}

func (h *host) storageRemove(call goja.FunctionCall) goja.Value {
	h.viewForbidden("storage_remove")
	key := h.bytesArg(call, 0)
	h.charge(types.CostStorageRemove, h.cfg.VM.Costs.StorageRemoveBase)
	existed, err := h.storage.Remove(key)
	if err != nil {
		return h.internal(err)
	}
	return h.rt.ToValue(existed)
}

func (h *host) storageHasKey(call goja.FunctionCall) goja.Value {
	key := h.bytesArg(call, 0)
	h.charge(types.CostStorageHasKey, h.cfg.VM.Costs.StorageHasKeyBase)
	ok, err := h.storage.HasKey(key)
	if err != nil {
		return h.internal(err)
	}
	return h.rt.ToValue(ok)
}

func (h *host) currentAccountID(goja.FunctionCall) goja.Value {
	h.charge("", 0)
	return h.rt.ToValue(string(h.ctx.CurrentAccountID))
}

func (h *host) signerAccountID(goja.FunctionCall) goja.Value {
	h.viewForbidden("signer_account_id")
	h.charge("", 0)
	return h.rt.ToValue(string(h.ctx.SignerAccountID))
}

func (h *host) signerAccountPK(goja.FunctionCall) goja.Value {
	h.viewForbidden("signer_account_pk")
	h.charge("", 0)
	return h.rt.ToValue(h.ctx.SignerAccountPK.String())
}

func (h *host) predecessorAccountID(goja.FunctionCall) goja.Value {
	h.viewForbidden("predecessor_account_id")
	h.charge("", 0)
	return h.rt.ToValue(string(h.ctx.PredecessorAccountID))
}

func (h *host) blockHeight(goja.FunctionCall) goja.Value {
	h.charge("", 0)
	return h.u64String(h.ctx.BlockHeight)
}

func (h *host) blockTimestamp(goja.FunctionCall) goja.Value {
	h.charge("", 0)
	return h.u64String(h.ctx.BlockTimestamp)
}

func (h *host) epochHeight(goja.FunctionCall) goja.Value {
	h.charge("", 0)
	return h.u64String(h.ctx.EpochHeight)
}

func (h *host) accountBalance(goja.FunctionCall) goja.Value {
	h.charge("", 0)
	return h.u64String(h.balance)
}

func (h *host) accountLockedBalance(goja.FunctionCall) goja.Value {
	h.charge("", 0)
	return h.u64String(h.ctx.AccountLockedBalance)
}

func (h *host) attachedDeposit(goja.FunctionCall) goja.Value {
	h.viewForbidden("attached_deposit")
	h.charge("", 0)
	return h.u64String(h.ctx.AttachedDeposit)
}

func (h *host) prepaidGas(goja.FunctionCall) goja.Value {
	h.viewForbidden("prepaid_gas")
	h.charge("", 0)
	return h.u64String(h.ctx.PrepaidGas)
}

func (h *host) usedGas(goja.FunctionCall) goja.Value {
	h.viewForbidden("used_gas")
	h.charge("", 0)
	return h.u64String(h.gas.used)
}

func (h *host) storageUsage(goja.FunctionCall) goja.Value {
	h.charge("", 0)
	return h.u64String(h.ctx.StorageUsage)
}

func (h *host) randomSeed(goja.FunctionCall) goja.Value {
	h.charge("", 0)
	return h.rt.ToValue(h.ctx.RandomSeed.String())
}

// newPromise appends a function call promise after charging for it.
func (h *host) newPromise(call goja.FunctionCall, off int, dependsOn []int) goja.Value {
	receiver := types.AccountID(call.Argument(off).String())
	if err := receiver.Validate(); err != nil {
		return h.fail(types.ErrExecution, "promise receiver: %v", err)
	}
	method := call.Argument(off + 1).String()
	args := h.bytesArg(call, off+2)
	amount := h.u64Arg(call, off+3, "amount")
	gas := h.u64Arg(call, off+4, "gas")

	fees := h.cfg.Fees
	size := types.Gas(len(method) + len(args))
	send := fees.ActionReceiptCreation.Send + fees.FunctionCall.Send + fees.FunctionCallPerByte.Send*size
	exec := fees.ActionReceiptCreation.Execution + fees.FunctionCall.Execution + fees.FunctionCallPerByte.Execution*size
	for range dependsOn {
		send += fees.DataReceiptCreationBase.Send
		exec += fees.DataReceiptCreationBase.Execution
	}
	h.charge(types.CostPromise, h.cfg.VM.Costs.PromiseBase)
	if err := h.gas.pay(types.CostActionReceiptCreation, send, send+exec); err != nil {
		return h.abort(err)
	}
	if err := h.gas.pay(types.CostFunctionCall, 0, gas); err != nil {
		return h.abort(err)
	}
	if amount > h.balance {
		return h.fail(types.ErrExecution, "balance exceeded: attaching %d with %d available", amount, h.balance)
	}
	h.balance -= amount

	h.out.Promises = append(h.out.Promises, Promise{
		ReceiverID: receiver,
		Actions:    []types.Action{types.FunctionCall(method, args, gas, amount)},
		DependsOn:  dependsOn,
	})
	return h.rt.ToValue(len(h.out.Promises) - 1)
}

func (h *host) promiseIndex(v goja.Value) int {
	i := v.ToInteger()
	if i < 0 || i >= int64(len(h.out.Promises)) {
		h.fail(types.ErrExecution, "invalid promise index %d", i)
	}
	return int(i)
}

// promise_create(account_id, method, args, amount, gas)
func (h *host) promiseCreate(call goja.FunctionCall) goja.Value {
	h.viewForbidden("promise_create")
	return h.newPromise(call, 0, nil)
}

// promise_then(promise_index, account_id, method, args, amount, gas)
func (h *host) promiseThen(call goja.FunctionCall) goja.Value {
	h.viewForbidden("promise_then")
	dep := h.promiseIndex(call.Argument(0))
	return h.newPromise(call, 1, []int{dep})
}

func (h *host) promiseReturn(call goja.FunctionCall) goja.Value {
	h.viewForbidden("promise_return")
	h.charge("", 0)
	h.out.ReturnPromise = h.promiseIndex(call.Argument(0))
	h.out.ReturnData = nil
	return goja.Undefined()
}

func (h *host) promiseResultsCount(goja.FunctionCall) goja.Value {
	h.charge("", 0)
	return h.rt.ToValue(len(h.ctx.PromiseResults))
}

// promise_result(i) returns the data of the i-th result, or null when
// the promise failed.
func (h *host) promiseResult(call goja.FunctionCall) goja.Value {
	i := call.Argument(0).ToInteger()
	if i < 0 || i >= int64(len(h.ctx.PromiseResults)) {
		return h.fail(types.ErrExecution, "promise result index %d out of range", i)
	}
	res := h.ctx.PromiseResults[i]
	h.charge(types.CostPromise, h.cfg.VM.Costs.PromiseResultPerByte*types.Gas(len(res.Data)))
	if !res.Successful {
		return goja.Null()
	}
	return h.rt.ToValue(string(res.Data))
}

// Package vm runs contract code for the reference engine.
//
// Contracts are JavaScript programs interpreted by goja. Every
// top-level function declaration is a callable method; the host API
// is exposed as the global object "env". Each call gets a fresh
// interpreter, while compiled programs are shared through an LRU keyed
// by artifact key.
package vm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blockberries/blocksim/types"

	"github.com/dop251/goja"
	lru "github.com/hashicorp/golang-lru"
	"github.com/inconshreveable/log15"
)

// DefaultProgramCacheSize is the number of compiled programs kept.
const DefaultProgramCacheSize = 128

// Storage is the contract storage of the current account.
type Storage interface {
	Read(key []byte) ([]byte, bool, error)
	// Write reports whether the key held a value before.
	Write(key, value []byte) (bool, error)
	// Remove reports whether the key held a value.
	Remove(key []byte) (bool, error)
	HasKey(key []byte) (bool, error)
}

// Promise is a receipt requested by a contract. DependsOn lists the
// indices of earlier promises whose results the receipt receives.
type Promise struct {
	ReceiverID types.AccountID
	Actions    []types.Action
	DependsOn  []int
}

// Deposit sums the tokens attached to the promise.
func (p *Promise) Deposit() types.Balance {
	var total types.Balance
	for _, a := range p.Actions {
		total += a.Deposit()
	}
	return total
}

// Outcome is what one call produced. It is returned together with a
// *types.TxExecutionError for calls that failed, so gas and logs are
// never lost.
type Outcome struct {
	ReturnData []byte
	// ReturnPromise is the index of the promise the call returned, or
	// -1 when it returned ReturnData.
	ReturnPromise int
	Logs          []string
	BurntGas      types.Gas
	UsedGas       types.Gas
	Profile       types.ProfileData
	Promises      []Promise
}

// Deposits sums the tokens attached to all promises.
func (o *Outcome) Deposits() types.Balance {
	var total types.Balance
	for i := range o.Promises {
		total += o.Promises[i].Deposit()
	}
	return total
}

var errTimeout = errors.New("execution timeout")

// internalError carries host failures that are not the contract's fault.
type internalError struct{ err error }

func (e *internalError) Error() string { return e.err.Error() }
func (e *internalError) Unwrap() error { return e.err }

// Runner executes contract methods.
type Runner struct {
	programs *lru.Cache
	log      log15.Logger
}

// NewRunner creates a runner caching up to size compiled programs.
func NewRunner(size int, logger log15.Logger) (*Runner, error) {
	if size <= 0 {
		size = DefaultProgramCacheSize
	}
	if logger == nil {
		logger = log15.New("module", "vm")
	}
	programs, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("vm: program cache: %w", err)
	}
	return &Runner{programs: programs, log: logger}, nil
}

func (r *Runner) program(key types.CryptoHash, contract *types.CompiledContract) (*goja.Program, error) {
	if v, ok := r.programs.Get(key); ok {
		return v.(*goja.Program), nil
	}
	prg, err := goja.Compile("contract.js", string(contract.Code), true)
	if err != nil {
		return nil, err
	}
	r.programs.Add(key, prg)
	return prg, nil
}

// Run calls method of a prepared contract. key is the contract's
// artifact key. A non-nil error is either a *types.TxExecutionError,
// returned with a valid Outcome, or a failure of the host itself.
func (r *Runner) Run(ctx context.Context, key types.CryptoHash, contract *types.CompiledContract, method string,
	vctx *Context, cfg *types.RuntimeConfig, storage Storage) (*Outcome, error) {

	prepaid, maxBurnt := vctx.PrepaidGas, cfg.VM.MaxGasBurnt
	if vctx.IsView() {
		prepaid, maxBurnt = vctx.View.MaxGasBurnt, vctx.View.MaxGasBurnt
	}
	h := &host{
		ctx:     vctx,
		cfg:     cfg,
		storage: storage,
		gas:     newGasCounter(prepaid, maxBurnt),
		balance: vctx.AccountBalance,
		out:     &Outcome{ReturnPromise: -1},
	}

	fail := func(err *types.TxExecutionError) (*Outcome, error) {
		if err.AccountID == "" {
			err.AccountID = vctx.CurrentAccountID
		}
		// A failed call returns nothing and creates no receipts.
		h.out.ReturnData, h.out.ReturnPromise, h.out.Promises = nil, -1, nil
		return h.finish(), err
	}

	if contract.Error != "" {
		return fail(&types.TxExecutionError{Kind: types.ErrCompilation, Message: contract.Error})
	}
	if !contract.HasMethod(method) {
		return fail(&types.TxExecutionError{Kind: types.ErrMethodNotFound, Message: method})
	}
	costs := cfg.VM.Costs
	if err := h.gas.burn(types.CostContractLoad, costs.ContractLoadBase+costs.ContractLoadPerByte*types.Gas(len(contract.Code))); err != nil {
		return fail(err.(*types.TxExecutionError))
	}
	prg, err := r.program(key, contract)
	if err != nil {
		return fail(&types.TxExecutionError{Kind: types.ErrCompilation, Message: err.Error()})
	}

	rt := goja.New()
	h.rt = rt
	if cfg.VM.MaxCallStackSize > 0 {
		rt.SetMaxCallStackSize(int(cfg.VM.MaxCallStackSize))
	}
	if err := h.install(); err != nil {
		return nil, fmt.Errorf("vm: install host: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { rt.Interrupt(&internalError{ctx.Err()}) })
	defer stop()
	if timeout := cfg.VM.ExecutionTimeout.ToGo(); timeout > 0 {
		timer := time.AfterFunc(timeout, func() { rt.Interrupt(errTimeout) })
		defer timer.Stop()
	}

	err = h.call(prg, method)
	if err == nil {
		return h.finish(), nil
	}

	var execErr *types.TxExecutionError
	var internal *internalError
	switch {
	case errors.As(err, &internal):
		return nil, internal.err
	case errors.Is(err, errTimeout):
		r.log.Warn("contract call timed out", "account", vctx.CurrentAccountID, "method", method)
		h.gas.exhaust()
		return fail(&types.TxExecutionError{Kind: types.ErrGasExceeded, Message: errTimeout.Error()})
	case errors.As(err, &execErr):
		return fail(execErr)
	default:
		return fail(&types.TxExecutionError{Kind: types.ErrExecution, Message: err.Error()})
	}
}

// call defines the contract's functions and invokes method.
func (h *host) call(prg *goja.Program, method string) error {
	if _, err := h.rt.RunProgram(prg); err != nil {
		return h.result(err)
	}
	fn, ok := goja.AssertFunction(h.rt.Get(method))
	if !ok {
		return &types.TxExecutionError{Kind: types.ErrMethodNotFound, Message: method}
	}
	_, err := fn(goja.Undefined())
	return h.result(err)
}

// result prefers the error recorded by the host over what goja
// reported, since an abort surfaces as a generic interruption.
func (h *host) result(err error) error {
	if h.abortErr != nil {
		return h.abortErr
	}
	if err == nil {
		return nil
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if v, ok := interrupted.Value().(error); ok {
			return v
		}
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return &types.TxExecutionError{Kind: types.ErrExecution, Message: ex.Value().String()}
	}
	return &types.TxExecutionError{Kind: types.ErrExecution, Message: err.Error()}
}

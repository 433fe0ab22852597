package runtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/blockberries/blocksim/types"
)

// ViewResult is the result of a view call: the returned bytes or the
// error, plus the logs the call emitted before it ended.
type ViewResult struct {
	Result []byte
	Err    error
	Logs   []string
}

// IsOK reports whether the call succeeded.
func (v ViewResult) IsOK() bool { return v.Err == nil }

// Unwrap returns the result, or the call error.
func (v ViewResult) Unwrap() ([]byte, error) {
	return v.Result, v.Err
}

// UnmarshalValue decodes the JSON result into out.
func (v ViewResult) UnmarshalValue(out any) error {
	if v.Err != nil {
		return v.Err
	}
	return json.Unmarshal(v.Result, out)
}

// Wire converts v to its serializable form.
func (v ViewResult) Wire() types.ViewCallResult {
	w := types.ViewCallResult{Result: v.Result, Logs: v.Logs}
	if v.Err != nil {
		w.Error = v.Err.Error()
	}
	return w
}

// ViewResultFromWire is the inverse of Wire. The error loses its type.
func ViewResultFromWire(w types.ViewCallResult) ViewResult {
	v := ViewResult{Result: w.Result, Logs: w.Logs}
	if w.Error != "" {
		v.Err = errors.New(w.Error)
	}
	return v
}

// ExecutionResult is an outcome together with the runtime it was
// produced by, so the receipts it spawned can be inspected.
type ExecutionResult struct {
	rt      *Runtime
	id      types.CryptoHash
	outcome types.ExecutionOutcome
}

// ExecutionResult returns the recorded outcome with id.
func (r *Runtime) ExecutionResult(id types.CryptoHash) (*ExecutionResult, bool) {
	o, ok := r.outcomes[id]
	if !ok {
		return nil, false
	}
	return &ExecutionResult{rt: r, id: id, outcome: o}, true
}

// ResolveResult wraps the outcome of ResolveTx.
func (r *Runtime) ResolveResult(id types.CryptoHash, outcome types.ExecutionOutcome) *ExecutionResult {
	return &ExecutionResult{rt: r, id: id, outcome: outcome}
}

func (e *ExecutionResult) ID() types.CryptoHash             { return e.id }
func (e *ExecutionResult) Outcome() types.ExecutionOutcome  { return e.outcome }
func (e *ExecutionResult) Status() types.ExecutionStatus    { return e.outcome.Status }
func (e *ExecutionResult) Logs() []string                   { return e.outcome.Logs }
func (e *ExecutionResult) GasBurnt() types.Gas              { return e.outcome.GasBurnt }
func (e *ExecutionResult) TokensBurnt() types.Balance       { return e.outcome.TokensBurnt }
func (e *ExecutionResult) ReceiptIDs() []types.CryptoHash   { return e.outcome.ReceiptIDs }
func (e *ExecutionResult) ExecutorID() types.AccountID      { return e.outcome.ExecutorID }
func (e *ExecutionResult) IsSuccess() bool                  { return e.outcome.Status.Kind == types.StatusSuccessValue }
func (e *ExecutionResult) Failure() *types.TxExecutionError { return e.outcome.Status.Failure }

// Profile returns the gas profile, which only receipt outcomes have.
func (e *ExecutionResult) Profile() (types.ProfileData, bool) {
	return e.rt.ProfileOfOutcome(e.id)
}

// Value returns the returned bytes of a SuccessValue outcome.
func (e *ExecutionResult) Value() ([]byte, error) {
	switch e.outcome.Status.Kind {
	case types.StatusSuccessValue:
		return e.outcome.Status.Value, nil
	case types.StatusFailure:
		if f := e.outcome.Status.Failure; f != nil {
			return nil, f
		}
		return nil, fmt.Errorf("runtime: outcome %s failed", e.id)
	default:
		return nil, fmt.Errorf("runtime: outcome %s is %s", e.id, e.outcome.Status)
	}
}

// UnmarshalValue decodes the JSON value of a SuccessValue outcome.
func (e *ExecutionResult) UnmarshalValue(out any) error {
	v, err := e.Value()
	if err != nil {
		return err
	}
	return json.Unmarshal(v, out)
}

// PromiseResults returns the outcomes of every receipt descending from
// e, depth first in creation order. Receipts that have not run yet are
// reported as nil.
func (e *ExecutionResult) PromiseResults() []*ExecutionResult {
	var out []*ExecutionResult
	stack := reversed(e.outcome.ReceiptIDs)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		res, ok := e.rt.ExecutionResult(id)
		if !ok {
			out = append(out, nil)
			continue
		}
		out = append(out, res)
		stack = append(stack, reversed(res.outcome.ReceiptIDs)...)
	}
	return out
}

// TotalGasBurnt sums the gas burnt by e and every descendant that ran.
func (e *ExecutionResult) TotalGasBurnt() types.Gas {
	total := e.outcome.GasBurnt
	for _, res := range e.PromiseResults() {
		if res != nil {
			total += res.outcome.GasBurnt
		}
	}
	return total
}

func reversed(ids []types.CryptoHash) []types.CryptoHash {
	out := make([]types.CryptoHash, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}

package runtime

import (
	"fmt"

	"github.com/blockberries/blocksim/types"
)

// TxState is the progress of a sent transaction.
type TxState uint8

const (
	// TxUnknown: the hash was never sent to this runtime.
	TxUnknown TxState = iota
	// TxPooled: waiting in the pool.
	TxPooled
	// TxIncluded: converted into its first receipt, which has not run.
	TxIncluded
	// TxPendingReceipt: a later receipt of the chain has not run.
	TxPendingReceipt
	// TxSucceeded: the chain ended in SuccessValue.
	TxSucceeded
	// TxFailed: the chain ended in Failure.
	TxFailed
	// TxRejected: the engine refused the transaction and it was dropped
	// from the pool. No outcome exists.
	TxRejected
)

func (s TxState) String() string {
	switch s {
	case TxUnknown:
		return "Unknown"
	case TxPooled:
		return "Pooled"
	case TxIncluded:
		return "Included"
	case TxPendingReceipt:
		return "PendingReceipt"
	case TxSucceeded:
		return "Succeeded"
	case TxFailed:
		return "Failed"
	case TxRejected:
		return "Rejected"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// IsTerminal reports whether the state can no longer change.
func (s TxState) IsTerminal() bool {
	return s == TxSucceeded || s == TxFailed || s == TxRejected
}

// TxState follows the outcome chain of the transaction with hash h.
func (r *Runtime) TxState(h types.CryptoHash) TxState {
	if _, ok := r.transactions[h]; !ok {
		return TxUnknown
	}
	if _, ok := r.rejected[h]; ok {
		return TxRejected
	}
	id, hops := h, 0
	for {
		o, ok := r.outcomes[id]
		switch {
		case !ok && hops == 0:
			return TxPooled
		case !ok && hops == 1:
			return TxIncluded
		case !ok:
			return TxPendingReceipt
		}
		switch o.Status.Kind {
		case types.StatusSuccessValue:
			return TxSucceeded
		case types.StatusFailure:
			return TxFailed
		case types.StatusSuccessReceiptID:
			id = o.Status.ReceiptID
			hops++
		default:
			return TxUnknown
		}
	}
}

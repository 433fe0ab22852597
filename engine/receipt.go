package engine

import (
	"context"
	"fmt"

	"github.com/blockberries/blocksim/engine/vm"
	"github.com/blockberries/blocksim/store"
	"github.com/blockberries/blocksim/types"
)

func (a *applier) processReceipt(ctx context.Context, r *types.Receipt) error {
	switch {
	case r.Action != nil:
		return a.processActionReceipt(ctx, r)
	case r.Data != nil:
		return a.processDataReceipt(ctx, r)
	default:
		return fmt.Errorf("engine: receipt %s carries neither actions nor data", r.ReceiptID)
	}
}

// processActionReceipt executes r, or postpones it until every input
// it depends on was delivered.
func (a *applier) processActionReceipt(ctx context.Context, r *types.Receipt) error {
	var missing uint32
	for _, id := range r.Action.InputDataIDs {
		d, err := store.GetReceivedData(a.u, r.ReceiverID, id)
		if err != nil {
			return err
		}
		if d == nil {
			missing++
			store.SetPostponedReceiptID(a.u, r.ReceiverID, id, r.ReceiptID)
		}
	}
	if missing > 0 {
		store.SetPostponedReceipt(a.u, r)
		store.SetPendingDataCount(a.u, r.ReceiverID, r.ReceiptID, missing)
		a.u.Commit(types.CausePostponedReceipt)
		a.log.Debug("receipt postponed", "receipt", r.ReceiptID, "receiver", r.ReceiverID, "missing", missing)
		return nil
	}
	return a.executeReady(ctx, r)
}

// processDataReceipt stores delivered data and runs the receipt that
// waited for it once nothing else is missing.
func (a *applier) processDataReceipt(ctx context.Context, r *types.Receipt) error {
	d := r.Data
	store.SetReceivedData(a.u, r.ReceiverID, d.DataID, store.ReceivedData{Data: d.Data, HasData: d.HasData})

	waiting, err := store.GetPostponedReceiptID(a.u, r.ReceiverID, d.DataID)
	if err != nil || waiting == nil {
		a.u.Commit(types.CausePostponedReceipt)
		return err
	}
	store.RemovePostponedReceiptID(a.u, r.ReceiverID, d.DataID)

	count, ok, err := store.GetPendingDataCount(a.u, r.ReceiverID, *waiting)
	if err != nil {
		return err
	}
	if !ok || count == 0 {
		return fmt.Errorf("engine: receipt %s waits for data without a pending count", *waiting)
	}
	if count > 1 {
		store.SetPendingDataCount(a.u, r.ReceiverID, *waiting, count-1)
		a.u.Commit(types.CausePostponedReceipt)
		return nil
	}

	postponed, err := store.GetPostponedReceipt(a.u, r.ReceiverID, *waiting)
	if err != nil {
		return err
	}
	if postponed == nil {
		return fmt.Errorf("engine: postponed receipt %s is missing", *waiting)
	}
	store.RemovePendingDataCount(a.u, r.ReceiverID, *waiting)
	store.RemovePostponedReceipt(a.u, r.ReceiverID, *waiting)
	return a.executeReady(ctx, postponed)
}

// executeReady consumes the inputs of r and executes it.
func (a *applier) executeReady(ctx context.Context, r *types.Receipt) error {
	results := make([]vm.PromiseResult, 0, len(r.Action.InputDataIDs))
	for _, id := range r.Action.InputDataIDs {
		d, err := store.GetReceivedData(a.u, r.ReceiverID, id)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("engine: input %s of receipt %s vanished", id, r.ReceiptID)
		}
		results = append(results, vm.PromiseResult{Successful: d.HasData, Data: d.Data})
		store.RemoveReceivedData(a.u, r.ReceiverID, id)
	}
	a.u.Commit(types.CausePostponedReceipt)
	return a.executeActionReceipt(ctx, r, results)
}

// receiptResult accumulates what executing one action receipt produced.
type receiptResult struct {
	burnt   types.Gas
	used    types.Gas
	vmBurnt types.Gas
	profile types.ProfileData
	logs    []string

	returnData    []byte
	returnPromise int
	receipts      []types.Receipt

	err *types.TxExecutionError
}

func (a *applier) executeActionReceipt(ctx context.Context, r *types.Receipt, results []vm.PromiseResult) error {
	ar := r.Action
	refund := r.IsRefund()
	res := &receiptResult{returnPromise: -1}

	if !refund {
		fees := &a.cfg.Fees
		res.burnt = fees.ActionReceiptCreation.Execution
		res.profile.Add(types.CostActionReceiptCreation, fees.ActionReceiptCreation.Execution)
		for i := range ar.Actions {
			f, cost := actionFee(fees, &ar.Actions[i])
			res.burnt += f.Execution
			res.profile.Add(cost, f.Execution)
		}
	}

	acc, err := store.GetAccount(a.u, r.ReceiverID)
	if err != nil {
		return err
	}
	x := &actionContext{applier: a, receipt: r, results: results, res: res, acc: acc}
	for i := range ar.Actions {
		res.returnData, res.returnPromise = nil, -1
		execErr, err := x.apply(ctx, &ar.Actions[i])
		if err != nil {
			return err
		}
		if execErr != nil {
			execErr.ActionIndex = uint32(i)
			if execErr.AccountID == "" {
				execErr.AccountID = r.ReceiverID
			}
			res.err = execErr
			break
		}
	}
	if res.err == nil && x.acc != nil {
		if required, ok := checkStorageStake(a.cfg, x.acc); !ok {
			res.err = execError(types.ErrLackBalanceForState, r.ReceiverID,
				"needs %d to cover %d bytes of state", required, x.acc.StorageUsage)
			res.err.ActionIndex = uint32(len(ar.Actions))
		}
	}

	if res.err != nil {
		a.u.Rollback()
		res.receipts, res.returnData, res.returnPromise = nil, nil, -1
		// Gas handed on to dropped promises comes back.
		res.used = res.vmBurnt
	} else {
		if x.acc != nil {
			store.SetAccount(a.u, r.ReceiverID, *x.acc)
		}
		cause := types.CauseActionReceiptProcessing
		if refund {
			cause = types.CauseReceiptRefund
		}
		a.u.Commit(cause)
	}

	a.finishReceipt(r, res)
	return nil
}

// finishReceipt emits refunds, data receipts and the outcome of r.
func (a *applier) finishReceipt(r *types.Receipt, res *receiptResult) {
	ar := r.Action
	refund := r.IsRefund()
	height := a.state.BlockHeight
	next := func() types.CryptoHash {
		return types.DeriveReceiptID(r.ReceiptID, height, uint64(len(res.receipts)))
	}

	if !refund {
		if res.err != nil {
			if deposit := ar.Deposit(); deposit > 0 {
				res.receipts = append(res.receipts, types.NewRefundReceipt(r.PredecessorID, next(), deposit))
			}
		}
		if prepaid := ar.PrepaidGas(); prepaid > res.used {
			if amount := (prepaid - res.used) * ar.GasPrice; amount > 0 {
				res.receipts = append(res.receipts, types.NewRefundReceipt(ar.SignerID, next(), amount))
			}
		}
	}

	ids := make([]types.CryptoHash, 0, len(res.receipts))
	for i := range res.receipts {
		ids = append(ids, res.receipts[i].ReceiptID)
	}

	var status types.ExecutionStatus
	switch {
	case res.err != nil:
		status = types.Failure(res.err)
	case res.returnPromise >= 0:
		returned := res.receipts[res.returnPromise].Action
		returned.OutputDataReceivers = append(returned.OutputDataReceivers, ar.OutputDataReceivers...)
		status = types.SuccessReceiptID(res.receipts[res.returnPromise].ReceiptID)
	default:
		status = types.SuccessValue(res.returnData)
	}

	// Results go to waiting receipts unless a returned promise took
	// them over.
	var data []types.Receipt
	if res.err != nil || res.returnPromise < 0 {
		for i, dr := range ar.OutputDataReceivers {
			d := &types.DataReceipt{DataID: dr.DataID, HasData: res.err == nil}
			if res.err == nil {
				d.Data = res.returnData
			}
			data = append(data, types.Receipt{
				PredecessorID: r.ReceiverID,
				ReceiverID:    dr.ReceiverID,
				ReceiptID:     types.DeriveReceiptID(r.ReceiptID, height, uint64(len(res.receipts)+i)),
				Data:          d,
			})
		}
	}
	a.outgoing = append(a.outgoing, res.receipts...)
	a.outgoing = append(a.outgoing, data...)

	meta := types.ExecutionMetadata{Version: types.MetadataV1}
	if !refund {
		profile := res.profile
		meta = types.ExecutionMetadata{Version: types.MetadataV2, Profile: &profile}
	}
	tokens := res.burnt * ar.GasPrice
	a.stats.ReceiptBurntGas += res.burnt
	a.stats.TokensBurnt += tokens
	a.outcomes = append(a.outcomes, types.ExecutionOutcomeWithID{
		ID: r.ReceiptID,
		Outcome: types.ExecutionOutcome{
			Logs:        res.logs,
			ReceiptIDs:  ids,
			GasBurnt:    res.burnt,
			TokensBurnt: tokens,
			ExecutorID:  r.ReceiverID,
			Status:      status,
			Metadata:    meta,
		},
	})
	if res.err != nil {
		a.log.Debug("receipt failed", "receipt", r.ReceiptID, "receiver", r.ReceiverID, "err", res.err)
	}
}

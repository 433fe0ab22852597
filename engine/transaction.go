package engine

import (
	"fmt"

	"github.com/blockberries/blocksim/store"
	"github.com/blockberries/blocksim/types"
)

// processTransaction verifies stx, charges the signer and emits its
// action receipt. Any problem rejects the block.
func (a *applier) processTransaction(stx *types.SignedTransaction) error {
	tx := &stx.Transaction
	h := stx.Hash()
	invalid := func(kind InvalidTxKind, format string, args ...any) error {
		err := &InvalidTxError{Kind: kind, TxHash: h, SignerID: tx.SignerID, Message: fmt.Sprintf(format, args...)}
		a.log.Warn("invalid transaction", "hash", h, "signer", tx.SignerID, "kind", kind, "msg", err.Message)
		return err
	}

	if err := tx.SignerID.Validate(); err != nil {
		return invalid(InvalidSignerID, "%v", err)
	}
	if err := tx.ReceiverID.Validate(); err != nil {
		return invalid(InvalidReceiverID, "%v", err)
	}
	if !stx.Verify() {
		return invalid(InvalidSignature, "signature does not match %s", tx.PublicKey)
	}
	if len(tx.Actions) == 0 {
		return invalid(InvalidActions, "no actions")
	}
	var prepaid types.Gas
	for i := range tx.Actions {
		if err := tx.Actions[i].Validate(); err != nil {
			return invalid(InvalidActions, "action %d: %v", i, err)
		}
		var ok bool
		if prepaid, ok = safeAdd(prepaid, tx.Actions[i].PrepaidGas()); !ok {
			return invalid(CostOverflow, "prepaid gas overflows")
		}
	}
	if prepaid > a.cfg.MaxTotalPrepaidGas {
		return invalid(TotalPrepaidGasExceeded, "prepaid gas %d exceeds %d", prepaid, a.cfg.MaxTotalPrepaidGas)
	}

	acc, err := store.GetAccount(a.u, tx.SignerID)
	if err != nil {
		return err
	}
	if acc == nil {
		return invalid(SignerDoesNotExist, "account %s does not exist", tx.SignerID)
	}
	key, err := store.GetAccessKey(a.u, tx.SignerID, tx.PublicKey)
	if err != nil {
		return err
	}
	if key == nil {
		return invalid(AccessKeyNotFound, "no access key %s", tx.PublicKey)
	}
	if tx.Nonce <= key.Nonce {
		return invalid(InvalidNonce, "nonce %d must exceed %d", tx.Nonce, key.Nonce)
	}

	burnt, cost, ok := txCost(a.cfg, tx, a.state.GasPrice)
	if !ok {
		return invalid(CostOverflow, "transaction cost overflows")
	}
	if key.Permission == types.PermissionFunctionCall {
		perm := key.FunctionCall
		if perm == nil || len(tx.Actions) != 1 || tx.Actions[0].Kind != types.ActionFunctionCall {
			return invalid(InvalidAccessKey, "function call key can only sign a single function call")
		}
		call := tx.Actions[0].FunctionCall
		switch {
		case call.Deposit != 0:
			return invalid(InvalidAccessKey, "function call key cannot attach a deposit")
		case tx.ReceiverID != perm.ReceiverID:
			return invalid(InvalidAccessKey, "key is restricted to receiver %s", perm.ReceiverID)
		case !perm.AllowsMethod(call.MethodName):
			return invalid(InvalidAccessKey, "key does not allow method %s", call.MethodName)
		}
		if perm.Allowance != nil {
			if *perm.Allowance < cost {
				return invalid(NotEnoughAllowance, "allowance %d below cost %d", *perm.Allowance, cost)
			}
			left := *perm.Allowance - cost
			perm.Allowance = &left
		}
	}
	if acc.Amount < cost {
		return invalid(NotEnoughBalance, "balance %d below cost %d", acc.Amount, cost)
	}
	acc.Amount -= cost
	if required, ok := checkStorageStake(a.cfg, acc); !ok {
		return invalid(LackBalanceForState, "needs %d to cover storage", required)
	}
	key.Nonce = tx.Nonce

	store.SetAccount(a.u, tx.SignerID, *acc)
	store.SetAccessKey(a.u, tx.SignerID, tx.PublicKey, *key)
	a.u.Commit(types.CauseTransactionProcessing)

	receiptID := types.DeriveReceiptID(h, a.state.BlockHeight, 0)
	a.outgoing = append(a.outgoing, types.Receipt{
		PredecessorID: tx.SignerID,
		ReceiverID:    tx.ReceiverID,
		ReceiptID:     receiptID,
		Action: &types.ActionReceipt{
			SignerID:        tx.SignerID,
			SignerPublicKey: tx.PublicKey,
			GasPrice:        a.state.GasPrice,
			Actions:         tx.Actions,
		},
	})

	tokens := burnt * a.state.GasPrice
	a.stats.TxBurntGas += burnt
	a.stats.TokensBurnt += tokens
	a.outcomes = append(a.outcomes, types.ExecutionOutcomeWithID{
		ID: h,
		Outcome: types.ExecutionOutcome{
			ReceiptIDs:  []types.CryptoHash{receiptID},
			GasBurnt:    burnt,
			TokensBurnt: tokens,
			ExecutorID:  tx.SignerID,
			Status:      types.SuccessReceiptID(receiptID),
			Metadata:    types.ExecutionMetadata{Version: types.MetadataV1},
		},
	})
	return nil
}

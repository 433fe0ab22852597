package engine

import (
	"context"
	"errors"

	"github.com/blockberries/blocksim/engine/vm"
	"github.com/blockberries/blocksim/store"
	"github.com/blockberries/blocksim/types"
)

// actionContext applies the actions of one receipt in order.
type actionContext struct {
	*applier
	receipt *types.Receipt
	results []vm.PromiseResult
	res     *receiptResult
	// acc is the receiver's account, nil while it does not exist.
	acc     *types.Account
	created bool
}

// apply runs one action. A non-nil *TxExecutionError fails the
// receipt; a non-nil error aborts the block.
func (x *actionContext) apply(ctx context.Context, a *types.Action) (*types.TxExecutionError, error) {
	r := x.receipt
	if a.Kind != types.ActionCreateAccount && x.acc == nil {
		if a.Kind == types.ActionTransfer && r.IsRefund() {
			// Refunds to deleted accounts are burnt.
			x.log.Debug("refund to missing account dropped", "receiver", r.ReceiverID, "amount", a.Transfer.Deposit)
			return nil, nil
		}
		return execError(types.ErrAccountDoesNotExist, r.ReceiverID, "account %s does not exist", r.ReceiverID), nil
	}
	switch a.Kind {
	case types.ActionDeployContract, types.ActionStake, types.ActionAddKey, types.ActionDeleteKey, types.ActionDeleteAccount:
		if r.PredecessorID != r.ReceiverID && !x.created {
			return execError(types.ErrActorNoPermission, r.ReceiverID,
				"%s cannot act on behalf of %s", r.PredecessorID, r.ReceiverID), nil
		}
	}

	switch a.Kind {
	case types.ActionCreateAccount:
		return x.createAccount(), nil
	case types.ActionDeployContract:
		return nil, x.deployContract(a.DeployContract)
	case types.ActionFunctionCall:
		return x.functionCall(ctx, a.FunctionCall)
	case types.ActionTransfer:
		return x.credit(a.Transfer.Deposit), nil
	case types.ActionStake:
		return x.stake(a.Stake), nil
	case types.ActionAddKey:
		return x.addKey(a.AddKey)
	case types.ActionDeleteKey:
		return x.deleteKey(a.DeleteKey)
	case types.ActionDeleteAccount:
		return x.deleteAccount(a.DeleteAccount)
	default:
		return nil, errors.New("engine: unknown action kind " + a.Kind.String())
	}
}

func (x *actionContext) createAccount() *types.TxExecutionError {
	r := x.receipt
	id, pred := r.ReceiverID, r.PredecessorID
	if x.acc != nil {
		return execError(types.ErrAccountAlreadyExists, id, "account %s already exists", id)
	}
	if err := id.Validate(); err != nil {
		return execError(types.ErrCreateAccountNotAllowed, id, "%v", err)
	}
	switch {
	case id.IsTopLevel():
		if !id.IsImplicit() && pred != types.RegistrarAccount {
			return execError(types.ErrCreateAccountOnlyByRegistrar, id,
				"top-level account %s can only be created by %s", id, types.RegistrarAccount)
		}
	case !id.IsSubAccountOf(pred):
		return execError(types.ErrCreateAccountNotAllowed, id, "%s cannot create %s", pred, id)
	}
	acc := types.NewAccount(0, 0, types.CryptoHash{}, x.cfg.NumBytesAccount)
	x.acc = &acc
	x.created = true
	return nil
}

func (x *actionContext) deployContract(a *types.DeployContractAction) error {
	id := x.receipt.ReceiverID
	old, ok, err := store.GetCode(x.u, id)
	if err != nil {
		return err
	}
	if ok {
		x.acc.StorageUsage -= types.StorageUsage(len(old))
	}
	store.SetCode(x.u, id, a.Code)
	x.acc.StorageUsage += types.StorageUsage(len(a.Code))
	x.acc.CodeHash = types.HashBytes(a.Code)

	// Precompile so the first call finds the artifact cached.
	if x.state.Cache != nil {
		if _, _, err := x.engine.compiledContract(x.state.Cache, x.acc.CodeHash, a.Code, &x.cfg.VM); err != nil {
			return err
		}
	}
	return nil
}

func (x *actionContext) credit(amount types.Balance) *types.TxExecutionError {
	sum, ok := safeAdd(x.acc.Amount, amount)
	if !ok {
		return execError(types.ErrBalanceOverflow, x.receipt.ReceiverID, "balance overflows")
	}
	x.acc.Amount = sum
	return nil
}

func (x *actionContext) functionCall(ctx context.Context, call *types.FunctionCallAction) (*types.TxExecutionError, error) {
	r, ar := x.receipt, x.receipt.Action
	if execErr := x.credit(call.Deposit); execErr != nil {
		return execErr, nil
	}
	code, ok, err := store.GetCode(x.u, r.ReceiverID)
	if err != nil {
		return nil, err
	}
	if !ok || !x.acc.HasContract() {
		return execError(types.ErrCodeDoesNotExist, r.ReceiverID, "no contract deployed on %s", r.ReceiverID), nil
	}
	key, contract, err := x.engine.compiledContract(x.state.Cache, x.acc.CodeHash, code, &x.cfg.VM)
	if err != nil {
		return nil, err
	}

	vctx := &vm.Context{
		CurrentAccountID:     r.ReceiverID,
		SignerAccountID:      ar.SignerID,
		SignerAccountPK:      ar.SignerPublicKey,
		PredecessorAccountID: r.PredecessorID,
		Input:                call.Args,
		BlockHeight:          x.state.BlockHeight,
		BlockTimestamp:       x.state.BlockTimestamp,
		EpochHeight:          x.state.EpochHeight,
		AccountBalance:       x.acc.Amount,
		AccountLockedBalance: x.acc.Locked,
		StorageUsage:         x.acc.StorageUsage,
		AttachedDeposit:      call.Deposit,
		PrepaidGas:           call.Gas,
		RandomSeed:           x.state.RandomSeed,
		PromiseResults:       x.results,
	}
	storage := &contractStorage{u: x.u, account: r.ReceiverID, acc: x.acc, cfg: x.cfg}
	out, err := x.engine.runner.Run(ctx, key, contract, call.MethodName, vctx, x.cfg, storage)

	var execErr *types.TxExecutionError
	if err != nil && !errors.As(err, &execErr) {
		return nil, err
	}
	res := x.res
	res.burnt += out.BurntGas
	res.vmBurnt += out.BurntGas
	res.used += out.UsedGas
	res.profile.Merge(out.Profile)
	res.logs = append(res.logs, out.Logs...)
	if execErr != nil {
		return execErr, nil
	}

	x.acc.Amount -= out.Deposits()
	base := len(res.receipts)
	for i := range out.Promises {
		p := &out.Promises[i]
		id := types.DeriveReceiptID(r.ReceiptID, x.state.BlockHeight, uint64(base+i))
		receipt := types.Receipt{
			PredecessorID: r.ReceiverID,
			ReceiverID:    p.ReceiverID,
			ReceiptID:     id,
			Action: &types.ActionReceipt{
				SignerID:        ar.SignerID,
				SignerPublicKey: ar.SignerPublicKey,
				GasPrice:        ar.GasPrice,
				Actions:         p.Actions,
			},
		}
		for k, dep := range p.DependsOn {
			dataID := types.DeriveDataID(id, x.state.BlockHeight, uint64(k))
			producer := res.receipts[base+dep].Action
			producer.OutputDataReceivers = append(producer.OutputDataReceivers, types.DataReceiver{
				DataID:     dataID,
				ReceiverID: p.ReceiverID,
			})
			receipt.Action.InputDataIDs = append(receipt.Action.InputDataIDs, dataID)
		}
		res.receipts = append(res.receipts, receipt)
	}
	if out.ReturnPromise >= 0 {
		res.returnPromise = base + out.ReturnPromise
	} else {
		res.returnData = out.ReturnData
	}
	return nil, nil
}

func (x *actionContext) stake(a *types.StakeAction) *types.TxExecutionError {
	id := x.receipt.ReceiverID
	acc := x.acc
	if a.Stake > acc.Locked {
		increase := a.Stake - acc.Locked
		if increase > acc.Amount {
			return execError(types.ErrTriesToStake, id, "stake %d exceeds available balance %d", a.Stake, acc.Amount+acc.Locked)
		}
		if minStake := x.epoch.MinimumStake(); a.Stake < minStake {
			return execError(types.ErrInsufficientStake, id, "stake %d below minimum %d", a.Stake, minStake)
		}
		acc.Amount -= increase
		acc.Locked = a.Stake
		return nil
	}
	// Lowering a stake takes effect at an epoch boundary, which only
	// validators have.
	if _, ok := x.epoch.ValidatorStake(id); ok {
		return nil
	}
	return execError(types.ErrTriesToUnstake, id, "%s is not a validator", id)
}

func (x *actionContext) addKey(a *types.AddKeyAction) (*types.TxExecutionError, error) {
	id := x.receipt.ReceiverID
	existing, err := store.GetAccessKey(x.u, id, a.PublicKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return execError(types.ErrAddKeyAlreadyExists, id, "key %s already exists", a.PublicKey), nil
	}
	key := a.AccessKey
	key.Nonce = 0
	store.SetAccessKey(x.u, id, a.PublicKey, key)
	x.acc.StorageUsage += storageAccessKey(x.cfg, a.PublicKey, &key)
	return nil, nil
}

func (x *actionContext) deleteKey(a *types.DeleteKeyAction) (*types.TxExecutionError, error) {
	id := x.receipt.ReceiverID
	existing, err := store.GetAccessKey(x.u, id, a.PublicKey)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return execError(types.ErrDeleteKeyDoesNotExist, id, "key %s does not exist", a.PublicKey), nil
	}
	store.RemoveAccessKey(x.u, id, a.PublicKey)
	x.acc.StorageUsage -= storageAccessKey(x.cfg, a.PublicKey, existing)
	return nil, nil
}

func (x *actionContext) deleteAccount(a *types.DeleteAccountAction) (*types.TxExecutionError, error) {
	id := x.receipt.ReceiverID
	if x.acc.Locked > 0 {
		return execError(types.ErrDeleteAccountStaking, id, "account %s still has %d staked", id, x.acc.Locked), nil
	}
	if err := store.RemoveAccount(x.u, id); err != nil {
		return nil, err
	}
	if x.acc.Amount > 0 {
		refundID := types.DeriveReceiptID(x.receipt.ReceiptID, x.state.BlockHeight, uint64(len(x.res.receipts)))
		x.res.receipts = append(x.res.receipts, types.NewRefundReceipt(a.BeneficiaryID, refundID, x.acc.Amount))
	}
	x.acc = nil
	return nil, nil
}

package engine

import (
	"math/bits"

	"github.com/blockberries/blocksim/types"
)

// actionFee returns the fee of one action and the profile name it is
// charged under.
func actionFee(fees *types.ActionFees, a *types.Action) (types.Fee, string) {
	switch a.Kind {
	case types.ActionCreateAccount:
		return fees.CreateAccount, types.CostCreateAccount
	case types.ActionDeployContract:
		n := types.Gas(len(a.DeployContract.Code))
		return types.Fee{
			Send:      fees.DeployContract.Send + fees.DeployContractPerByte.Send*n,
			Execution: fees.DeployContract.Execution + fees.DeployContractPerByte.Execution*n,
		}, types.CostDeployContract
	case types.ActionFunctionCall:
		n := types.Gas(len(a.FunctionCall.MethodName) + len(a.FunctionCall.Args))
		return types.Fee{
			Send:      fees.FunctionCall.Send + fees.FunctionCallPerByte.Send*n,
			Execution: fees.FunctionCall.Execution + fees.FunctionCallPerByte.Execution*n,
		}, types.CostFunctionCall
	case types.ActionTransfer:
		return fees.Transfer, types.CostTransfer
	case types.ActionStake:
		return fees.Stake, types.CostStake
	case types.ActionAddKey:
		if a.AddKey.AccessKey.Permission == types.PermissionFunctionCall {
			return fees.AddKeyFunctionCall, types.CostAddKey
		}
		return fees.AddKeyFullAccess, types.CostAddKey
	case types.ActionDeleteKey:
		return fees.DeleteKey, types.CostDeleteKey
	case types.ActionDeleteAccount:
		return fees.DeleteAccount, types.CostDeleteAccount
	default:
		return types.Fee{}, ""
	}
}

// receiptFees sums the receipt creation fee and every action fee.
func receiptFees(fees *types.ActionFees, actions []types.Action) types.Fee {
	total := fees.ActionReceiptCreation
	for i := range actions {
		f, _ := actionFee(fees, &actions[i])
		total.Send += f.Send
		total.Execution += f.Execution
	}
	return total
}

func safeAdd(a, b uint64) (uint64, bool) {
	s, carry := bits.Add64(a, b, 0)
	return s, carry == 0
}

func safeMul(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

// txCost returns the gas burnt when converting a transaction and the
// total balance it costs the signer.
func txCost(cfg *types.RuntimeConfig, tx *types.Transaction, gasPrice types.Balance) (burnt types.Gas, total types.Balance, ok bool) {
	fee := receiptFees(&cfg.Fees, tx.Actions)
	gas, ok := safeAdd(fee.Send, fee.Execution)
	if !ok {
		return 0, 0, false
	}
	var deposit types.Balance
	for i := range tx.Actions {
		if gas, ok = safeAdd(gas, tx.Actions[i].PrepaidGas()); !ok {
			return 0, 0, false
		}
		if deposit, ok = safeAdd(deposit, tx.Actions[i].Deposit()); !ok {
			return 0, 0, false
		}
	}
	total, ok = safeMul(gas, gasPrice)
	if !ok {
		return 0, 0, false
	}
	if total, ok = safeAdd(total, deposit); !ok {
		return 0, 0, false
	}
	return fee.Send, total, true
}

// storageAccessKey is the state a stored access key occupies.
func storageAccessKey(cfg *types.RuntimeConfig, pk types.PublicKey, key *types.AccessKey) types.StorageUsage {
	return types.StorageUsage(1+len(pk.Data)+len(types.MustMarshal(key))) + cfg.NumExtraBytesRecord
}

// storageData is the state one contract storage entry occupies.
func storageData(cfg *types.RuntimeConfig, key, value []byte) types.StorageUsage {
	return types.StorageUsage(len(key)+len(value)) + cfg.NumExtraBytesRecord
}

// checkStorageStake reports whether the account can pay for its state.
func checkStorageStake(cfg *types.RuntimeConfig, acc *types.Account) (required types.Balance, ok bool) {
	required, ok = safeMul(acc.StorageUsage, cfg.StorageAmountPerByte)
	if !ok {
		return required, false
	}
	have, ok := safeAdd(acc.Amount, acc.Locked)
	if !ok {
		return required, true
	}
	return required, have >= required
}

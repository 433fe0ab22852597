package engine

import (
	"context"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/engine/vm"
	"github.com/blockberries/blocksim/store"
	"github.com/blockberries/blocksim/types"
)

// CallFunction runs a view method. Writes and promise creation fail
// with ProhibitedInView; the update is never committed.
func (e *Engine) CallFunction(ctx context.Context, update blocksim.TrieUpdate, state *blocksim.ViewApplyState, account types.AccountID,
	method string, args []byte, logs *[]string, epoch blocksim.EpochInfoProvider) ([]byte, error) {

	acc, err := store.GetAccount(update, account)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, execError(types.ErrAccountDoesNotExist, account, "account %s does not exist", account)
	}
	code, ok, err := store.GetCode(update, account)
	if err != nil {
		return nil, err
	}
	if !ok || !acc.HasContract() {
		return nil, execError(types.ErrCodeDoesNotExist, account, "no contract deployed on %s", account)
	}

	cfg := state.Config
	if cfg == nil {
		def := types.DefaultRuntimeConfig()
		cfg = &def
	}
	key, contract, err := e.compiledContract(state.Cache, acc.CodeHash, code, &cfg.VM)
	if err != nil {
		return nil, err
	}

	vctx := &vm.Context{
		CurrentAccountID:     account,
		Input:                args,
		BlockHeight:          state.BlockHeight,
		BlockTimestamp:       state.BlockTimestamp,
		EpochHeight:          state.EpochHeight,
		AccountBalance:       acc.Amount,
		AccountLockedBalance: acc.Locked,
		StorageUsage:         acc.StorageUsage,
		View:                 &vm.ViewConfig{MaxGasBurnt: types.MaxViewGas},
	}
	storage := &contractStorage{u: update, account: account, cfg: cfg}
	out, err := e.runner.Run(ctx, key, contract, method, vctx, cfg, storage)
	if out != nil && logs != nil {
		*logs = append(*logs, out.Logs...)
	}
	if err != nil {
		return nil, err
	}
	e.log.Debug("view call", "account", account, "method", method, "burnt", out.BurntGas)
	return out.ReturnData, nil
}

package cli

import (
	"context"
	"fmt"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/runtime"
	"github.com/blockberries/blocksim/types"

	"github.com/inconshreveable/log15"
)

// Operator signs and submits transactions through any driver. It
// knows the signer of every account it created and of the root
// account; nonces are read from the access key on each submission.
type Operator struct {
	drv     blocksim.Driver
	signers map[types.AccountID]*types.InMemorySigner
	log     log15.Logger
}

// NewOperator creates an operator able to sign for the root account.
func NewOperator(drv blocksim.Driver, logger log15.Logger) *Operator {
	if logger == nil {
		logger = log15.New("module", "cli")
	}
	o := &Operator{drv: drv, signers: make(map[types.AccountID]*types.InMemorySigner), log: logger}
	o.AddSigner(runtime.RootAccount, runtime.RootSignerSeed)
	return o
}

// AddSigner registers the key of id derived from seed.
func (o *Operator) AddSigner(id types.AccountID, seed string) *types.InMemorySigner {
	s := types.NewSignerFromSeed(id, seed)
	o.signers[id] = s
	return s
}

func (o *Operator) signer(id types.AccountID) (*types.InMemorySigner, error) {
	s, ok := o.signers[id]
	if !ok {
		return nil, fmt.Errorf("no key known for %s", id)
	}
	return s, nil
}

// Submit signs actions from signerID to receiver and resolves the
// transaction.
func (o *Operator) Submit(ctx context.Context, signerID, receiver types.AccountID, actions ...types.Action) (types.ExecutionOutcomeWithID, error) {
	s, err := o.signer(signerID)
	if err != nil {
		return types.ExecutionOutcomeWithID{}, err
	}
	key, err := o.drv.ViewAccessKey(ctx, signerID, s.PublicKey())
	if err != nil {
		return types.ExecutionOutcomeWithID{}, err
	}
	if key == nil {
		return types.ExecutionOutcomeWithID{}, fmt.Errorf("%s has no access key %s", signerID, s.PublicKey())
	}
	tx := types.NewSignedTransaction(key.Nonce+1, signerID, receiver, s, actions, types.CryptoHash{})
	o.log.Debug("submitting transaction", "hash", tx.Hash(), "signer", signerID, "receiver", receiver, "actions", len(actions))
	return o.drv.ResolveTx(ctx, tx)
}

// CreateAccount creates id funded with amount. Its key is derived from
// the account id.
func (o *Operator) CreateAccount(ctx context.Context, signerID, id types.AccountID, amount types.Balance) (types.ExecutionOutcomeWithID, error) {
	s := types.NewSignerFromSeed(id, string(id))
	res, err := o.Submit(ctx, signerID, id,
		types.CreateAccount(), types.Transfer(amount), types.AddKey(s.PublicKey(), types.FullAccessKey()))
	if err == nil && res.Outcome.Status.Kind == types.StatusSuccessValue {
		o.signers[id] = s
	}
	return res, err
}

// Deploy creates id with code deployed and amount attached.
func (o *Operator) Deploy(ctx context.Context, signerID, id types.AccountID, code []byte, amount types.Balance) (types.ExecutionOutcomeWithID, error) {
	s := types.NewSignerFromSeed(id, string(id))
	res, err := o.Submit(ctx, signerID, id,
		types.CreateAccount(), types.Transfer(amount), types.AddKey(s.PublicKey(), types.FullAccessKey()), types.DeployContract(code))
	if err == nil && res.Outcome.Status.Kind == types.StatusSuccessValue {
		o.signers[id] = s
	}
	return res, err
}

// Call runs method on contract.
func (o *Operator) Call(ctx context.Context, signerID, contract types.AccountID, method string, args []byte, gas types.Gas, deposit types.Balance) (types.ExecutionOutcomeWithID, error) {
	return o.Submit(ctx, signerID, contract, types.FunctionCall(method, args, gas, deposit))
}

// Transfer sends amount from signerID to receiver.
func (o *Operator) Transfer(ctx context.Context, signerID, receiver types.AccountID, amount types.Balance) (types.ExecutionOutcomeWithID, error) {
	return o.Submit(ctx, signerID, receiver, types.Transfer(amount))
}

// View runs a view call.
func (o *Operator) View(ctx context.Context, contract types.AccountID, method string, args []byte) (types.ViewCallResult, error) {
	return o.drv.ViewMethodCall(ctx, contract, method, args)
}

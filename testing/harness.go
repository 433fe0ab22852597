package simtest

import (
	"context"
	"testing"

	"github.com/blockberries/blocksim/runtime"
	"github.com/blockberries/blocksim/types"

	"github.com/stretchr/testify/require"
)

// DefaultDeposit funds accounts created through the harness.
var DefaultDeposit = types.Tokens(100)

// DefaultGas is attached to calls that do not name their gas.
const DefaultGas = 300 * types.TeraGas

// Harness wraps a runtime with a funded root account and fails the
// test on any simulator error. Contract failures are not simulator
// errors: they come back as failed execution results.
type Harness struct {
	t      testing.TB
	rt     *runtime.Runtime
	root   *UserAccount
	nonces map[types.AccountID]types.Nonce
}

// NewHarness creates a harness over the default genesis.
func NewHarness(t testing.TB, opts ...runtime.Option) *Harness {
	t.Helper()
	return NewHarnessWithGenesis(t, runtime.DefaultGenesisConfig(), opts...)
}

// NewHarnessWithGenesis creates a harness over genesis. The runtime is
// closed when the test ends.
func NewHarnessWithGenesis(t testing.TB, genesis *runtime.GenesisConfig, opts ...runtime.Option) *Harness {
	t.Helper()
	rt, signer, rootID, err := runtime.InitRuntime(genesis, opts...)
	require.NoError(t, err, "init runtime")
	t.Cleanup(func() { _ = rt.Close() })

	h := &Harness{t: t, rt: rt, nonces: make(map[types.AccountID]types.Nonce)}
	h.root = &UserAccount{h: h, id: rootID, signer: signer}
	return h
}

// Runtime returns the underlying runtime for direct access.
func (h *Harness) Runtime() *runtime.Runtime { return h.rt }

// Root returns the account funded at genesis.
func (h *Harness) Root() *UserAccount { return h.root }

// User returns a handle on an existing account whose key was derived
// from seed.
func (h *Harness) User(id types.AccountID, seed string) *UserAccount {
	return &UserAccount{h: h, id: id, signer: types.NewSignerFromSeed(id, seed)}
}

// nextNonce returns the next nonce for the access key of u. The first
// call for an account reads the nonce committed in state.
func (h *Harness) nextNonce(u *UserAccount) types.Nonce {
	h.t.Helper()
	n, ok := h.nonces[u.id]
	if !ok {
		key, err := h.rt.ViewAccessKey(u.id, u.signer.PublicKey())
		require.NoError(h.t, err)
		if key != nil {
			n = key.Nonce
		}
	}
	n++
	h.nonces[u.id] = n
	return n
}

// Submit resolves tx and returns its terminal result.
func (h *Harness) Submit(tx types.SignedTransaction) *runtime.ExecutionResult {
	h.t.Helper()
	id, outcome, err := h.rt.ResolveTx(context.Background(), tx)
	require.NoError(h.t, err, "resolve %s", tx.Hash())
	return h.rt.ResolveResult(id, outcome)
}

// ProcessAll produces blocks until nothing is pending.
func (h *Harness) ProcessAll() {
	h.t.Helper()
	require.NoError(h.t, h.rt.ProcessAll(context.Background()))
}

// ProduceBlocks produces n blocks.
func (h *Harness) ProduceBlocks(n uint64) {
	h.t.Helper()
	require.NoError(h.t, h.rt.ProduceBlocks(context.Background(), n))
}

// Account reads an account, or nil when it does not exist.
func (h *Harness) Account(id types.AccountID) *types.Account {
	h.t.Helper()
	acc, err := h.rt.ViewAccount(id)
	require.NoError(h.t, err)
	return acc
}

// View runs a view call at the current block.
func (h *Harness) View(contract types.AccountID, method string, args []byte) runtime.ViewResult {
	return h.rt.ViewMethodCall(context.Background(), contract, method, args)
}

// MustView runs a view call and fails the test when it errors.
func (h *Harness) MustView(contract types.AccountID, method string, args []byte) []byte {
	h.t.Helper()
	res := h.View(contract, method, args)
	require.NoError(h.t, res.Err, "view %s.%s", contract, method)
	return res.Result
}

// UserAccount signs transactions for one account.
type UserAccount struct {
	h      *Harness
	id     types.AccountID
	signer *types.InMemorySigner
}

func (u *UserAccount) ID() types.AccountID            { return u.id }
func (u *UserAccount) Signer() *types.InMemorySigner { return u.signer }

// Account reads the current state of u.
func (u *UserAccount) Account() *types.Account { return u.h.Account(u.id) }

// Transaction signs actions from u to receiver with the next nonce.
func (u *UserAccount) Transaction(receiver types.AccountID, actions ...types.Action) types.SignedTransaction {
	u.h.t.Helper()
	return types.NewSignedTransaction(u.h.nextNonce(u), u.id, receiver, u.signer, actions, types.CryptoHash{})
}

// CreateUser creates the sub-account id funded with amount. Its key is
// derived from the account id.
func (u *UserAccount) CreateUser(id types.AccountID, amount types.Balance) *UserAccount {
	u.h.t.Helper()
	user := u.h.User(id, string(id))
	tx := types.CreateAccountTx(u.h.nextNonce(u), u.id, id, amount, user.signer.PublicKey(), u.signer, types.CryptoHash{})
	res := u.h.Submit(tx)
	require.True(u.h.t, res.IsSuccess(), "create %s: %s", id, res.Status())
	return user
}

// Deploy creates the sub-account id with code deployed and amount
// attached.
func (u *UserAccount) Deploy(code []byte, id types.AccountID, amount types.Balance) *UserAccount {
	u.h.t.Helper()
	user := u.h.User(id, string(id))
	tx := types.CreateContractTx(u.h.nextNonce(u), u.id, id, code, amount, user.signer.PublicKey(), u.signer, types.CryptoHash{})
	res := u.h.Submit(tx)
	require.True(u.h.t, res.IsSuccess(), "deploy %s: %s", id, res.Status())
	return user
}

// Call runs method on contract and returns the terminal result, which
// may be a failure.
func (u *UserAccount) Call(contract types.AccountID, method string, args []byte, gas types.Gas, deposit types.Balance) *runtime.ExecutionResult {
	u.h.t.Helper()
	return u.h.Submit(u.Transaction(contract, types.FunctionCall(method, args, gas, deposit)))
}

// MustCall is Call failing the test unless the chain succeeded.
func (u *UserAccount) MustCall(contract types.AccountID, method string, args []byte) *runtime.ExecutionResult {
	u.h.t.Helper()
	res := u.Call(contract, method, args, DefaultGas, 0)
	require.True(u.h.t, res.IsSuccess(), "%s.%s: %s", contract, method, res.Status())
	return res
}

// Transfer sends amount to receiver.
func (u *UserAccount) Transfer(receiver types.AccountID, amount types.Balance) *runtime.ExecutionResult {
	u.h.t.Helper()
	return u.h.Submit(u.Transaction(receiver, types.Transfer(amount)))
}

// View runs a view call. Views are not signed, so any user may view.
func (u *UserAccount) View(contract types.AccountID, method string, args []byte) runtime.ViewResult {
	return u.h.View(contract, method, args)
}

package engine

import (
	"context"
	"testing"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/cache"
	"github.com/blockberries/blocksim/store"
	"github.com/blockberries/blocksim/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statusContract = `
function set_status() {
	env.storage_write("status:" + env.signer_account_id(), env.input());
	env.log("set " + env.input());
}

function get_status() {
	var v = env.storage_read("status:" + env.input());
	env.value_return(v === null ? "" : v);
}

function write_then_fail() {
	env.storage_write("x", "1");
	env.panic("nope");
}

function call_other() {
	var args = JSON.parse(env.input());
	var p = env.promise_create(args.target, args.method, args.args, "0", 20000000000000);
	var cb = env.promise_then(p, env.current_account_id(), "callback", "", "0", 20000000000000);
	env.promise_return(cb);
}

function callback() {
	var r = env.promise_result(0);
	env.value_return("cb:" + (r === null ? "failed" : r));
}
`

type testChain struct {
	t        *testing.T
	engine   *Engine
	tries    *store.ShardTries
	cache    *cache.MemoryCache
	epoch    *MockEpochInfoProvider
	cfg      types.RuntimeConfig
	root     types.CryptoHash
	height   types.BlockHeight
	pending  []types.Receipt
	outcomes map[types.CryptoHash]types.ExecutionOutcome
	signer   *types.InMemorySigner
	nonce    types.Nonce
}

func newTestChain(t *testing.T) *testChain {
	t.Helper()
	e, err := New()
	require.NoError(t, err)
	tries, err := store.NewInMemoryTries()
	require.NoError(t, err)
	t.Cleanup(func() { tries.Close() })

	signer := types.NewSignerFromSeed("root", "test")
	genesis := &types.Genesis{
		Config: types.ChainConfig{RuntimeConfig: types.DefaultRuntimeConfig()},
		Records: []types.StateRecord{
			types.AccountRecord("root", types.NewAccount(types.RootBalance, 0, types.CryptoHash{}, 0)),
			types.AccessKeyRecord("root", signer.PublicKey(), types.FullAccessKey()),
		},
	}
	root, err := e.ApplyGenesisState(context.Background(), tries, types.SingleShard, genesis)
	require.NoError(t, err)

	return &testChain{
		t:        t,
		engine:   e,
		tries:    tries,
		cache:    cache.NewMemoryCache(),
		epoch:    NewMockEpochInfoProvider(nil).WithMinimumStake(types.Tokens(1)),
		cfg:      genesis.Config.RuntimeConfig,
		root:     root,
		outcomes: make(map[types.CryptoHash]types.ExecutionOutcome),
		signer:   signer,
	}
}

func (c *testChain) nextNonce() types.Nonce {
	c.nonce++
	return c.nonce
}

// apply executes one block with the pending receipts and txs.
func (c *testChain) apply(txs ...types.SignedTransaction) (*blocksim.ApplyResult, error) {
	state := &blocksim.ApplyState{
		BlockHeight: c.height + 1,
		EpochHeight: 1,
		GasPrice:    types.DefaultGasPrice,
		Config:      &c.cfg,
		Cache:       c.cache,
	}
	res, err := c.engine.Apply(context.Background(), c.tries.GetTrieForShard(types.SingleShard), c.root, state, c.pending, txs, c.epoch)
	if err != nil {
		return nil, err
	}
	su, root, err := c.tries.ApplyAll(res.TrieChanges, types.SingleShard)
	require.NoError(c.t, err)
	require.NoError(c.t, su.Commit())
	c.root = root
	c.height++
	c.pending = res.OutgoingReceipts
	for _, o := range res.Outcomes {
		c.outcomes[o.ID] = o.Outcome
	}
	return res, nil
}

// run applies txs and then empty blocks until no receipt is pending.
func (c *testChain) run(txs ...types.SignedTransaction) {
	c.t.Helper()
	_, err := c.apply(txs...)
	require.NoError(c.t, err)
	for i := 0; len(c.pending) > 0; i++ {
		require.Less(c.t, i, 32, "receipts never settled")
		_, err := c.apply()
		require.NoError(c.t, err)
	}
}

// final follows an outcome through its receipts to the terminal status.
func (c *testChain) final(id types.CryptoHash) types.ExecutionStatus {
	c.t.Helper()
	for {
		o, ok := c.outcomes[id]
		require.True(c.t, ok, "no outcome for %s", id)
		if o.Status.IsTerminal() {
			return o.Status
		}
		id = o.Status.ReceiptID
	}
}

func (c *testChain) account(id types.AccountID) *types.Account {
	c.t.Helper()
	acc, err := store.GetAccount(c.tries.NewTrieUpdate(types.SingleShard, c.root), id)
	require.NoError(c.t, err)
	return acc
}

func (c *testChain) view(account types.AccountID, method string, args []byte) ([]byte, []string, error) {
	var logs []string
	state := &blocksim.ViewApplyState{BlockHeight: c.height, Config: &c.cfg, Cache: c.cache}
	u := c.tries.NewTrieUpdate(types.SingleShard, c.root)
	out, err := c.engine.CallFunction(context.Background(), u, state, account, method, args, &logs, c.epoch)
	return out, logs, err
}

func (c *testChain) deployStatus(id types.AccountID) {
	c.t.Helper()
	tx := types.CreateContractTx(c.nextNonce(), "root", id, []byte(statusContract), types.Tokens(100), c.signer.PublicKey(), c.signer, types.CryptoHash{})
	c.run(tx)
	require.Equal(c.t, types.StatusSuccessValue, c.final(tx.Hash()).Kind)
}

func TestApplyGenesisState_StorageUsage(t *testing.T) {
	c := newTestChain(t)
	acc := c.account("root")
	require.NotNil(t, acc)
	key := types.FullAccessKey()
	expected := c.cfg.NumBytesAccount + storageAccessKey(&c.cfg, c.signer.PublicKey(), &key)
	assert.Equal(t, expected, acc.StorageUsage)
	assert.Equal(t, types.RootBalance, acc.Amount)
}

func TestApplyGenesisState_RejectsOrphanRecords(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	tries, err := store.NewInMemoryTries()
	require.NoError(t, err)
	defer tries.Close()

	genesis := &types.Genesis{
		Config:  types.ChainConfig{RuntimeConfig: types.DefaultRuntimeConfig()},
		Records: []types.StateRecord{types.ContractRecord("ghost", []byte("function f() {}"))},
	}
	_, err = e.ApplyGenesisState(context.Background(), tries, types.SingleShard, genesis)
	require.Error(t, err)
}

func TestApply_SendMoney(t *testing.T) {
	c := newTestChain(t)
	c.run(types.CreateAccountTx(c.nextNonce(), "root", "alice.root", types.Tokens(10), c.signer.PublicKey(), c.signer, types.CryptoHash{}))
	before := c.account("root").Amount

	tx := types.SendMoneyTx(c.nextNonce(), "root", "alice.root", c.signer, types.Tokens(1), types.CryptoHash{})
	res, err := c.apply(tx)
	require.NoError(t, err)

	// The receipt runs one block after the transaction.
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, types.MetadataV1, res.Outcomes[0].Outcome.Metadata.Version)
	require.Len(t, res.OutgoingReceipts, 1)
	assert.Equal(t, types.Tokens(10), c.account("alice.root").Amount)

	c.run()
	assert.Equal(t, types.StatusSuccessValue, c.final(tx.Hash()).Kind)
	assert.Equal(t, types.Tokens(11), c.account("alice.root").Amount)

	fees := c.cfg.Fees.ActionReceiptCreation.Total() + c.cfg.Fees.Transfer.Total()
	assert.Equal(t, before-types.Tokens(1)-fees*types.DefaultGasPrice, c.account("root").Amount)

	receipt := c.outcomes[res.OutgoingReceipts[0].ReceiptID]
	assert.Equal(t, types.MetadataV2, receipt.Metadata.Version)
	require.NotNil(t, receipt.Metadata.Profile)
	assert.Equal(t, c.cfg.Fees.Transfer.Execution, receipt.Metadata.Profile.Get(types.CostTransfer))
}

func TestApply_InvalidTransactionRejectsBlock(t *testing.T) {
	c := newTestChain(t)
	root := c.root

	tests := []struct {
		name string
		tx   types.SignedTransaction
		kind InvalidTxKind
	}{
		{
			name: "unknown signer",
			tx:   types.SendMoneyTx(1, "nobody", "root", types.NewSignerFromSeed("nobody", "x"), 1, types.CryptoHash{}),
			kind: SignerDoesNotExist,
		},
		{
			name: "wrong key",
			tx:   types.SendMoneyTx(1, "root", "root", types.NewSignerFromSeed("root", "other"), 1, types.CryptoHash{}),
			kind: AccessKeyNotFound,
		},
		{
			name: "nonce reuse",
			tx:   types.SendMoneyTx(0, "root", "root", c.signer, 1, types.CryptoHash{}),
			kind: InvalidNonce,
		},
		{
			name: "too much money",
			tx:   types.SendMoneyTx(1, "root", "root", c.signer, types.RootBalance, types.CryptoHash{}),
			kind: NotEnoughBalance,
		},
		{
			name: "too much gas",
			tx:   types.FunctionCallTx(1, "root", "root", c.signer, 0, "m", nil, c.cfg.MaxTotalPrepaidGas+1, types.CryptoHash{}),
			kind: TotalPrepaidGasExceeded,
		},
		{
			name: "bad receiver",
			tx:   types.SendMoneyTx(1, "root", "Bad!", c.signer, 1, types.CryptoHash{}),
			kind: InvalidReceiverID,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.apply(tt.tx)
			inv, ok := IsInvalidTx(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.kind, inv.Kind)
			assert.Equal(t, root, c.root)
		})
	}

	t.Run("tampered signature", func(t *testing.T) {
		tx := types.SendMoneyTx(1, "root", "root", c.signer, 1, types.CryptoHash{})
		tx.Transaction.Nonce = 2
		_, err := c.apply(tx)
		inv, ok := IsInvalidTx(err)
		require.True(t, ok)
		assert.Equal(t, InvalidSignature, inv.Kind)
	})
}

func TestApply_FunctionCallAndView(t *testing.T) {
	c := newTestChain(t)
	c.deployStatus("status.root")

	tx := types.FunctionCallTx(c.nextNonce(), "root", "status.root", c.signer, 0, "set_status", []byte("hello"), 10*types.TeraGas, types.CryptoHash{})
	c.run(tx)
	assert.Equal(t, types.StatusSuccessValue, c.final(tx.Hash()).Kind)

	receiptID := c.outcomes[tx.Hash()].Status.ReceiptID
	o := c.outcomes[receiptID]
	assert.Equal(t, []string{"set hello"}, o.Logs)
	require.Len(t, o.ReceiptIDs, 1, "gas refund")
	assert.Positive(t, o.Metadata.Profile.Get(types.CostStorageWrite))

	out, _, err := c.view("status.root", "get_status", []byte("root"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestApply_FailedReceiptRollsBack(t *testing.T) {
	c := newTestChain(t)
	c.deployStatus("status.root")
	before := c.account("status.root")

	tx := types.FunctionCallTx(c.nextNonce(), "root", "status.root", c.signer, types.Tokens(2), "write_then_fail", nil, 10*types.TeraGas, types.CryptoHash{})
	c.run(tx)

	status := c.final(tx.Hash())
	require.Equal(t, types.StatusFailure, status.Kind)
	assert.Equal(t, types.ErrExecution, status.Failure.Kind)

	after := c.account("status.root")
	assert.Equal(t, before.Amount, after.Amount, "deposit refunded")
	assert.Equal(t, before.StorageUsage, after.StorageUsage)
	_, ok, err := store.GetData(c.tries.NewTrieUpdate(types.SingleShard, c.root), "status.root", []byte("x"))
	require.NoError(t, err)
	assert.False(t, ok)

	// Deposit and gas both come back as refund receipts.
	receiptID := c.outcomes[tx.Hash()].Status.ReceiptID
	assert.Len(t, c.outcomes[receiptID].ReceiptIDs, 2)
}

func TestApply_CrossContractCallback(t *testing.T) {
	c := newTestChain(t)
	c.deployStatus("a.root")
	c.deployStatus("b.root")
	c.run(types.FunctionCallTx(c.nextNonce(), "root", "b.root", c.signer, 0, "set_status", []byte("from b"), 10*types.TeraGas, types.CryptoHash{}))

	args := []byte(`{"target":"b.root","method":"get_status","args":"root"}`)
	tx := types.FunctionCallTx(c.nextNonce(), "root", "a.root", c.signer, 0, "call_other", args, 100*types.TeraGas, types.CryptoHash{})
	c.run(tx)

	status := c.final(tx.Hash())
	require.Equal(t, types.StatusSuccessValue, status.Kind, status.String())
	assert.Equal(t, "cb:from b", string(status.Value))
}

func TestApply_CallbackSeesFailedPromise(t *testing.T) {
	c := newTestChain(t)
	c.deployStatus("a.root")
	c.deployStatus("b.root")

	args := []byte(`{"target":"b.root","method":"write_then_fail","args":""}`)
	tx := types.FunctionCallTx(c.nextNonce(), "root", "a.root", c.signer, 0, "call_other", args, 100*types.TeraGas, types.CryptoHash{})
	c.run(tx)

	status := c.final(tx.Hash())
	require.Equal(t, types.StatusSuccessValue, status.Kind, status.String())
	assert.Equal(t, "cb:failed", string(status.Value))
}

func TestApply_AccountRules(t *testing.T) {
	c := newTestChain(t)
	c.run(types.CreateAccountTx(c.nextNonce(), "root", "alice.root", types.Tokens(10), c.signer.PublicKey(), c.signer, types.CryptoHash{}))

	tests := []struct {
		name     string
		receiver types.AccountID
		actions  []types.Action
		kind     types.ErrorKind
	}{
		{"exists", "alice.root", []types.Action{types.CreateAccount()}, types.ErrAccountAlreadyExists},
		{"not a sub-account", "bob.alice.root", []types.Action{types.CreateAccount()}, types.ErrCreateAccountNotAllowed},
		{"short top-level", "bob", []types.Action{types.CreateAccount()}, types.ErrCreateAccountOnlyByRegistrar},
		{"foreign deploy", "alice.root", []types.Action{types.DeployContract([]byte("function f() {}"))}, types.ErrActorNoPermission},
		{"missing receiver", "carol.root", []types.Action{types.Transfer(1)}, types.ErrAccountDoesNotExist},
		{"missing code", "alice.root", []types.Action{types.FunctionCall("f", nil, types.TeraGas, 0)}, types.ErrCodeDoesNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := types.NewSignedTransaction(c.nextNonce(), "root", tt.receiver, c.signer, tt.actions, types.CryptoHash{})
			c.run(tx)
			status := c.final(tx.Hash())
			require.Equal(t, types.StatusFailure, status.Kind)
			assert.Equal(t, tt.kind, status.Failure.Kind)
		})
	}
}

func TestApply_KeysAndDeleteAccount(t *testing.T) {
	c := newTestChain(t)
	alice := types.NewSignerFromSeed("alice.root", "alice")
	c.run(types.CreateAccountTx(c.nextNonce(), "root", "alice.root", types.Tokens(10), alice.PublicKey(), c.signer, types.CryptoHash{}))

	extra := types.NewSignerFromSeed("alice.root", "extra").PublicKey()
	usage := c.account("alice.root").StorageUsage
	tx := types.NewSignedTransaction(1, "alice.root", "alice.root", alice, []types.Action{types.AddKey(extra, types.FullAccessKey())}, types.CryptoHash{})
	c.run(tx)
	require.Equal(t, types.StatusSuccessValue, c.final(tx.Hash()).Kind)
	assert.Greater(t, c.account("alice.root").StorageUsage, usage)

	tx = types.NewSignedTransaction(2, "alice.root", "alice.root", alice, []types.Action{types.AddKey(extra, types.FullAccessKey())}, types.CryptoHash{})
	c.run(tx)
	assert.Equal(t, types.ErrAddKeyAlreadyExists, c.final(tx.Hash()).Failure.Kind)

	tx = types.NewSignedTransaction(3, "alice.root", "alice.root", alice, []types.Action{types.DeleteKey(extra)}, types.CryptoHash{})
	c.run(tx)
	require.Equal(t, types.StatusSuccessValue, c.final(tx.Hash()).Kind)
	assert.Equal(t, usage, c.account("alice.root").StorageUsage)

	rootBefore := c.account("root").Amount
	tx = types.NewSignedTransaction(4, "alice.root", "alice.root", alice, []types.Action{types.DeleteAccount("root")}, types.CryptoHash{})
	c.run(tx)
	require.Equal(t, types.StatusSuccessValue, c.final(tx.Hash()).Kind)
	assert.Nil(t, c.account("alice.root"))
	assert.Greater(t, c.account("root").Amount, rootBefore)
}

func TestApply_Stake(t *testing.T) {
	c := newTestChain(t)
	alice := types.NewSignerFromSeed("alice.root", "alice")
	c.run(types.CreateAccountTx(c.nextNonce(), "root", "alice.root", types.Tokens(10), alice.PublicKey(), c.signer, types.CryptoHash{}))

	tests := []struct {
		name  string
		stake types.Balance
		kind  types.ErrorKind
	}{
		{"below minimum", types.OneToken / 2, types.ErrInsufficientStake},
		{"above balance", types.Tokens(1_000_000), types.ErrTriesToStake},
		{"ok", types.Tokens(5), 0},
		{"unstake without validator seat", types.Tokens(1), types.ErrTriesToUnstake},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := types.StakeTx(types.Nonce(i+1), "alice.root", alice, tt.stake, alice.PublicKey(), types.CryptoHash{})
			c.run(tx)
			status := c.final(tx.Hash())
			if tt.kind == 0 {
				require.Equal(t, types.StatusSuccessValue, status.Kind, status.String())
				assert.Equal(t, tt.stake, c.account("alice.root").Locked)
				return
			}
			require.Equal(t, types.StatusFailure, status.Kind)
			assert.Equal(t, tt.kind, status.Failure.Kind)
		})
	}
	assert.Equal(t, types.Tokens(5), c.account("alice.root").Locked)
}

// Package runtime is the standalone block-production loop of the
// simulator.
//
// A Runtime owns the transaction pool, the current block, the receipts
// waiting for the next block and an index of every execution outcome.
// Each produced block hands the pending receipts and one transaction
// per pool lane to the engine, commits the resulting trie changes and
// appends a new block to the history. Everything runs on the caller's
// goroutine; package local serializes concurrent callers.
package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/cache"
	"github.com/blockberries/blocksim/engine"
	"github.com/blockberries/blocksim/pool"
	"github.com/blockberries/blocksim/store"
	"github.com/blockberries/blocksim/types"

	"github.com/inconshreveable/log15"
)

var (
	// ErrDuplicateTx is returned by SendTx for a transaction that is
	// already pooled, was already included or was rejected.
	ErrDuplicateTx = errors.New("runtime: duplicate transaction")

	// ErrClosed is returned by every call on a closed runtime.
	ErrClosed = errors.New("runtime: closed")
)

// Runtime drives the engine one block at a time.
type Runtime struct {
	genesis *GenesisConfig

	engine        blocksim.Engine
	viewer        blocksim.Viewer
	tries         blocksim.Tries
	pool          blocksim.TransactionPool
	cache         blocksim.ArtifactCache
	cacheDir      string
	cacheDisabled bool
	epoch         blocksim.EpochInfoProvider
	log           log15.Logger
	guard         *Guard
	closers       []func() error

	current      *Block
	transactions map[types.CryptoHash]types.SignedTransaction
	rejected     map[types.CryptoHash]*engine.InvalidTxError
	outcomes     map[types.CryptoHash]types.ExecutionOutcome
	profiles     map[types.CryptoHash]types.ProfileData
	pending      []types.Receipt
	lastOutcomes []types.CryptoHash
}

// New builds a runtime from genesis and applies the genesis state.
func New(genesis *GenesisConfig, opts ...Option) (*Runtime, error) {
	if genesis == nil {
		return nil, errors.New("runtime: nil genesis config")
	}
	if err := genesis.Validate(); err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}
	r := &Runtime{
		genesis:      genesis,
		log:          log15.New("module", "runtime"),
		guard:        NewGuard(),
		transactions: make(map[types.CryptoHash]types.SignedTransaction),
		rejected:     make(map[types.CryptoHash]*engine.InvalidTxError),
		outcomes:     make(map[types.CryptoHash]types.ExecutionOutcome),
		profiles:     make(map[types.CryptoHash]types.ProfileData),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.initCollaborators(); err != nil {
		r.closeAll()
		return nil, err
	}

	block := GenesisBlock(genesis)
	root, err := r.engine.ApplyGenesisState(context.Background(), r.tries, types.SingleShard, genesis.Genesis())
	if err != nil {
		r.closeAll()
		return nil, fmt.Errorf("runtime: apply genesis: %w", err)
	}
	block.stateRoot = root
	r.current = block
	r.log.Debug("genesis applied", "height", block.height, "root", root, "records", len(genesis.StateRecords))
	return r, nil
}

// InitRuntime builds a runtime with a funded root account. A nil
// genesis means DefaultGenesisConfig. The gas limit of the genesis
// also bounds the gas a transaction may attach.
func InitRuntime(genesis *GenesisConfig, opts ...Option) (*Runtime, *types.InMemorySigner, types.AccountID, error) {
	if genesis == nil {
		genesis = DefaultGenesisConfig()
	}
	g := *genesis
	g.StateRecords = append([]types.StateRecord(nil), genesis.StateRecords...)
	g.RuntimeConfig.MaxTotalPrepaidGas = g.GasLimit
	signer := g.InitRootSigner(RootAccount)

	r, err := New(&g, opts...)
	if err != nil {
		return nil, nil, "", err
	}
	return r, signer, RootAccount, nil
}

func (r *Runtime) initCollaborators() error {
	if r.engine == nil {
		e, err := engine.New(engine.WithLogger(r.log.New("component", "engine")))
		if err != nil {
			return fmt.Errorf("runtime: engine: %w", err)
		}
		r.engine = e
	}
	if r.viewer == nil {
		if v, ok := r.engine.(blocksim.Viewer); ok {
			r.viewer = v
		} else {
			e, err := engine.New(engine.WithLogger(r.log.New("component", "viewer")))
			if err != nil {
				return fmt.Errorf("runtime: viewer: %w", err)
			}
			r.viewer = e
		}
	}
	if r.tries == nil {
		t, err := store.NewInMemoryTries(store.WithLogger(r.log.New("component", "store")))
		if err != nil {
			return fmt.Errorf("runtime: store: %w", err)
		}
		r.tries = t
		r.closers = append(r.closers, t.Close)
	}
	if r.pool == nil {
		r.pool = pool.New(r.log.New("component", "pool"))
	}
	if r.cache == nil && !r.cacheDisabled {
		if r.cacheDir != "" {
			c, err := cache.NewHybridCache(r.cacheDir, r.log.New("component", "cache"))
			if err != nil {
				return fmt.Errorf("runtime: artifact cache: %w", err)
			}
			r.cache = c
		} else {
			r.cache = cache.NewMemoryCache()
		}
	}
	if r.epoch == nil {
		r.epoch = engine.NewMockEpochInfoProvider(r.genesis.Validators)
	}
	return nil
}

// SendTx records tx and puts it into the pool. No block is produced.
func (r *Runtime) SendTx(tx types.SignedTransaction) (types.CryptoHash, error) {
	if err := r.guard.Open(); err != nil {
		return types.CryptoHash{}, err
	}
	h := tx.Hash()
	if _, ok := r.rejected[h]; ok {
		return h, fmt.Errorf("%w: %s was rejected", ErrDuplicateTx, h)
	}
	if !r.pool.InsertTransaction(tx) {
		return h, fmt.Errorf("%w: %s", ErrDuplicateTx, h)
	}
	r.transactions[h] = tx
	return h, nil
}

// ResolveTx sends tx and produces blocks until its receipt chain
// reaches a terminal outcome. It returns the id of that outcome.
func (r *Runtime) ResolveTx(ctx context.Context, tx types.SignedTransaction) (types.CryptoHash, types.ExecutionOutcome, error) {
	return r.ResolveTxWithin(ctx, tx, 0)
}

// ResolveTxWithin is ResolveTx producing at most maxBlocks blocks.
// Zero means no limit.
func (r *Runtime) ResolveTxWithin(ctx context.Context, tx types.SignedTransaction, maxBlocks uint64) (types.CryptoHash, types.ExecutionOutcome, error) {
	id, err := r.SendTx(tx)
	if err != nil {
		return id, types.ExecutionOutcome{}, err
	}
	r.lastOutcomes = nil
	for produced := uint64(0); ; produced++ {
		if maxBlocks > 0 && produced >= maxBlocks {
			return id, types.ExecutionOutcome{}, fmt.Errorf("runtime: resolve %s after %d blocks: %w", tx.Hash(), produced, blocksim.ErrBlockLimit)
		}
		if err := r.ProduceBlock(ctx); err != nil {
			return id, types.ExecutionOutcome{}, err
		}
		o, ok := r.outcomes[id]
		if !ok {
			if len(r.pending) == 0 {
				inv := blocksim.NewInvariantError(r.current.height, "no outcome for "+id.String(), blocksim.ErrLostOutcome)
				r.halt(inv)
				return id, types.ExecutionOutcome{}, inv
			}
			continue
		}
		switch o.Status.Kind {
		case types.StatusSuccessReceiptID:
			id = o.Status.ReceiptID
		case types.StatusSuccessValue, types.StatusFailure:
			return id, o, nil
		default:
			inv := blocksim.NewInvariantError(r.current.height, "outcome "+id.String(), blocksim.ErrUnknownStatus)
			r.halt(inv)
			return id, types.ExecutionOutcome{}, inv
		}
	}
}

// ProcessAll produces blocks until no receipt is pending and the pool
// is empty.
func (r *Runtime) ProcessAll(ctx context.Context) error {
	for {
		if err := r.ProduceBlock(ctx); err != nil {
			return err
		}
		if len(r.pending) == 0 && r.pool.Len() == 0 {
			return nil
		}
	}
}

// ProduceBlocks produces n blocks.
func (r *Runtime) ProduceBlocks(ctx context.Context, n uint64) error {
	for i := uint64(0); i < n; i++ {
		if err := r.ProduceBlock(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ProduceBlock applies one block. Engine errors are returned as is and
// leave the runtime unchanged: the drained transactions go back to the
// pool, except the one an *engine.InvalidTxError names, which becomes
// TxRejected. An *blocksim.InvariantError halts the runtime.
func (r *Runtime) ProduceBlock(ctx context.Context) error {
	if err := r.guard.AcquireProduce(); err != nil {
		return err
	}
	err := r.produceBlock(ctx)
	if inv, ok := blocksim.IsInvariant(err); ok {
		r.halt(inv)
		return err
	}
	r.guard.CompleteProduce()
	return err
}

func (r *Runtime) produceBlock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cur := r.current
	state := &blocksim.ApplyState{
		BlockHeight:     cur.height,
		EpochHeight:     cur.epochHeight,
		GasPrice:        cur.gasPrice,
		BlockTimestamp:  cur.timestamp,
		ProtocolVersion: blocksim.ProtocolVersion,
		Config:          &r.genesis.RuntimeConfig,
		Cache:           r.cache,
		IsNewChunk:      true,
	}
	if cur.prev != nil {
		state.PrevBlockHash = cur.prev.stateRoot
	}
	txs := pool.Drain(r.pool)

	res, err := r.engine.Apply(ctx, r.tries.GetTrieForShard(types.SingleShard), cur.stateRoot, state, r.pending, txs, r.epoch)
	if err != nil {
		if errors.Is(err, blocksim.ErrCorruptArtifact) {
			return blocksim.NewInvariantError(cur.height, "engine read a corrupt artifact", err)
		}
		r.rejectBlock(txs, err)
		return err
	}
	if res.TrieChanges == nil {
		return blocksim.NewInvariantError(cur.height, "engine returned no trie changes", nil)
	}
	for _, o := range res.Outcomes {
		if o.Outcome.Status.Kind == types.StatusUnknown {
			return blocksim.NewInvariantError(cur.height, "outcome "+o.ID.String(), blocksim.ErrUnknownStatus)
		}
	}

	r.pending = res.OutgoingReceipts
	for _, o := range res.Outcomes {
		r.lastOutcomes = append(r.lastOutcomes, o.ID)
		r.outcomes[o.ID] = o.Outcome
		if md := o.Outcome.Metadata; md.Version == types.MetadataV2 && md.Profile != nil {
			r.profiles[o.ID] = *md.Profile
		}
	}

	su, root, err := r.tries.ApplyAll(res.TrieChanges, types.SingleShard)
	if err != nil {
		return blocksim.NewInvariantError(cur.height, "apply trie changes", err)
	}
	if root != res.StateRoot {
		return blocksim.NewInvariantError(cur.height,
			fmt.Sprintf("store root %s, engine root %s", root, res.StateRoot), blocksim.ErrStateRootMismatch)
	}
	if err := su.Commit(); err != nil {
		return blocksim.NewInvariantError(cur.height, "commit trie changes", err)
	}

	r.current = cur.produce(root, r.genesis.EpochLength, r.genesis.BlockProdTime)
	cur.Release()
	r.log.Debug("block produced", "height", r.current.height, "txs", len(txs), "outcomes", len(res.Outcomes),
		"receipts", len(r.pending), "burnt", res.Stats.TxBurntGas+res.Stats.ReceiptBurntGas, "root", root)
	return nil
}

// rejectBlock returns the transactions of a block the engine refused
// to the pool. The transaction named by an InvalidTxError is dropped.
func (r *Runtime) rejectBlock(txs []types.SignedTransaction, err error) {
	inv, invalid := engine.IsInvalidTx(err)
	keep := txs[:0:0]
	for _, tx := range txs {
		h := tx.Hash()
		if invalid && h == inv.TxHash {
			r.rejected[h] = inv
			r.log.Warn("transaction rejected", "hash", h, "signer", inv.SignerID, "kind", inv.Kind, "msg", inv.Message)
			continue
		}
		keep = append(keep, tx)
	}
	if len(keep) > 0 {
		r.pool.ReintroduceTransactions(keep)
	}
}

// Rejected returns the error that dropped transaction h from the pool.
func (r *Runtime) Rejected(h types.CryptoHash) (*engine.InvalidTxError, bool) {
	inv, ok := r.rejected[h]
	return inv, ok
}

func (r *Runtime) halt(inv *blocksim.InvariantError) {
	r.log.Crit("runtime halted", "height", inv.Height, "reason", inv.Reason, "err", inv.Err)
	r.guard.Halt(inv)
}

// ForceAccountUpdate overwrites an account record at the current
// state root. No outcome or receipt is produced and the height stays
// the same.
func (r *Runtime) ForceAccountUpdate(accountID types.AccountID, account types.Account) error {
	if err := r.guard.AcquireProduce(); err != nil {
		return err
	}
	cur := r.current
	u := r.tries.NewTrieUpdate(types.SingleShard, cur.stateRoot)
	store.SetAccount(u, accountID, account)
	u.Commit(types.CauseValidatorAccountsUpdate)

	err := func() error {
		changes, err := u.Finalize()
		if err != nil {
			return blocksim.NewInvariantError(cur.height, "finalize account update", err)
		}
		su, root, err := r.tries.ApplyAll(changes, types.SingleShard)
		if err != nil {
			return blocksim.NewInvariantError(cur.height, "apply account update", err)
		}
		if err := su.Commit(); err != nil {
			return blocksim.NewInvariantError(cur.height, "commit account update", err)
		}
		cur.stateRoot = root
		return nil
	}()
	if inv, ok := blocksim.IsInvariant(err); ok {
		r.halt(inv)
		return err
	}
	r.guard.CompleteProduce()
	return nil
}

// update opens a throwaway overlay on the current state.
func (r *Runtime) update() blocksim.TrieUpdate {
	return r.tries.NewTrieUpdate(types.SingleShard, r.current.stateRoot)
}

// ViewAccount returns the account, or nil when it does not exist.
func (r *Runtime) ViewAccount(accountID types.AccountID) (*types.Account, error) {
	if err := r.guard.Open(); err != nil {
		return nil, err
	}
	acc, err := store.GetAccount(r.update(), accountID)
	if err != nil {
		return nil, blocksim.NewInvariantError(r.current.height, "read account "+accountID.String(), err)
	}
	return acc, nil
}

// ViewAccessKey returns the access key, or nil when it does not exist.
func (r *Runtime) ViewAccessKey(accountID types.AccountID, pk types.PublicKey) (*types.AccessKey, error) {
	if err := r.guard.Open(); err != nil {
		return nil, err
	}
	key, err := store.GetAccessKey(r.update(), accountID, pk)
	if err != nil {
		return nil, blocksim.NewInvariantError(r.current.height, "read access key of "+accountID.String(), err)
	}
	return key, nil
}

// ViewState lists the contract storage of accountID under prefix.
func (r *Runtime) ViewState(accountID types.AccountID, prefix []byte) ([]types.StateItem, error) {
	if err := r.guard.Open(); err != nil {
		return nil, err
	}
	items, err := store.ViewState(r.update(), accountID, prefix)
	if err != nil {
		return nil, blocksim.NewInvariantError(r.current.height, "read state of "+accountID.String(), err)
	}
	return items, nil
}

// ViewMethodCall runs a read-only method at the current block. It
// never changes state or produces a block.
func (r *Runtime) ViewMethodCall(ctx context.Context, accountID types.AccountID, method string, args []byte) ViewResult {
	if err := r.guard.Open(); err != nil {
		return ViewResult{Err: err}
	}
	cur := r.current
	state := &blocksim.ViewApplyState{
		BlockHeight:     cur.height,
		BlockHash:       cur.stateRoot,
		EpochHeight:     cur.epochHeight,
		BlockTimestamp:  cur.timestamp,
		ProtocolVersion: blocksim.ProtocolVersion,
		Config:          &r.genesis.RuntimeConfig,
		Cache:           r.cache,
	}
	if cur.prev != nil {
		state.PrevBlockHash = cur.prev.stateRoot
	}
	var logs []string
	out, err := r.viewer.CallFunction(ctx, r.update(), state, accountID, method, args, &logs, r.epoch)
	return ViewResult{Result: out, Err: err, Logs: logs}
}

// Outcome returns the outcome recorded for a transaction hash or
// receipt id.
func (r *Runtime) Outcome(id types.CryptoHash) (types.ExecutionOutcome, bool) {
	o, ok := r.outcomes[id]
	return o, ok
}

// ProfileOfOutcome returns the gas profile of a receipt outcome.
func (r *Runtime) ProfileOfOutcome(id types.CryptoHash) (types.ProfileData, bool) {
	p, ok := r.profiles[id]
	return p, ok
}

// Transaction returns a transaction sent to this runtime.
func (r *Runtime) Transaction(h types.CryptoHash) (types.SignedTransaction, bool) {
	tx, ok := r.transactions[h]
	return tx, ok
}

// CurrentBlock returns the newest block, or nil once the runtime is
// closed. The runtime keeps ownership; callers that hold it across
// block production must Retain it.
func (r *Runtime) CurrentBlock() *Block { return r.current }

// PendingReceipts returns the receipts the next block will execute.
func (r *Runtime) PendingReceipts() []types.Receipt {
	return append([]types.Receipt(nil), r.pending...)
}

// LastOutcomes returns the ids of the outcomes produced since the last
// ResolveTx started.
func (r *Runtime) LastOutcomes() []types.CryptoHash {
	return append([]types.CryptoHash(nil), r.lastOutcomes...)
}

// Genesis returns the configuration the runtime was built from.
func (r *Runtime) Genesis() *GenesisConfig { return r.genesis }

// ArtifactCache returns the cache handed to the engine, or nil.
func (r *Runtime) ArtifactCache() blocksim.ArtifactCache { return r.cache }

// Halted returns the error that halted the runtime, or nil.
func (r *Runtime) Halted() error { return r.guard.Err() }

// Close releases the block history and closes the storage the runtime
// created itself. Later calls fail with ErrClosed; closing twice is a
// no-op.
func (r *Runtime) Close() error {
	if !r.guard.Close() {
		return nil
	}
	if r.current != nil {
		r.current.Release()
		r.current = nil
	}
	return r.closeAll()
}

func (r *Runtime) closeAll() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c())
	}
	r.closers = nil
	return errors.Join(errs...)
}

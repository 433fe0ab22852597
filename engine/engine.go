// Package engine is the reference state-transition function of the
// simulator.
//
// It implements a single-shard account model: transactions are
// verified and converted into action receipts, receipts execute one
// block after they are produced, and contracts run on the goja based
// interpreter in package vm. Cross-contract calls use data receipts;
// a receipt waiting for data is postponed in state until all of its
// inputs arrived.
package engine

import (
	"context"
	"fmt"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/engine/vm"
	"github.com/blockberries/blocksim/store"
	"github.com/blockberries/blocksim/types"

	"github.com/inconshreveable/log15"
)

var (
	_ blocksim.Engine = (*Engine)(nil)
	_ blocksim.Viewer = (*Engine)(nil)
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l log15.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithProgramCacheSize sets how many compiled programs the VM keeps.
func WithProgramCacheSize(n int) Option {
	return func(e *Engine) { e.programCacheSize = n }
}

// Engine applies blocks and serves view calls.
type Engine struct {
	runner           *vm.Runner
	programCacheSize int
	log              log15.Logger
}

// New creates an engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		programCacheSize: vm.DefaultProgramCacheSize,
		log:              log15.New("module", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	runner, err := vm.NewRunner(e.programCacheSize, e.log.New("module", "vm"))
	if err != nil {
		return nil, err
	}
	e.runner = runner
	return e, nil
}

// ApplyGenesisState writes the genesis records and returns the root.
// Storage usage of every account is computed from its records.
func (e *Engine) ApplyGenesisState(ctx context.Context, tries blocksim.Tries, shard types.ShardUID, genesis *types.Genesis) (types.CryptoHash, error) {
	cfg := &genesis.Config.RuntimeConfig
	u := tries.NewTrieUpdate(shard, types.CryptoHash{})

	accounts := make(map[types.AccountID]*types.Account)
	var order []types.AccountID
	usage := make(map[types.AccountID]types.StorageUsage)
	codes := make(map[types.AccountID]types.CryptoHash)

	for i := range genesis.Records {
		if err := ctx.Err(); err != nil {
			return types.CryptoHash{}, err
		}
		rec := &genesis.Records[i]
		if err := rec.AccountID.Validate(); err != nil {
			return types.CryptoHash{}, fmt.Errorf("engine: genesis record %d: %w", i, err)
		}
		switch rec.Kind {
		case types.RecordAccount:
			if rec.Account == nil {
				return types.CryptoHash{}, fmt.Errorf("engine: genesis record %d: account missing", i)
			}
			if _, dup := accounts[rec.AccountID]; dup {
				return types.CryptoHash{}, fmt.Errorf("engine: genesis account %s listed twice", rec.AccountID)
			}
			acc := *rec.Account
			accounts[rec.AccountID] = &acc
			order = append(order, rec.AccountID)
		case types.RecordAccessKey:
			if rec.AccessKey == nil {
				return types.CryptoHash{}, fmt.Errorf("engine: genesis record %d: access key missing", i)
			}
			store.SetAccessKey(u, rec.AccountID, rec.PublicKey, *rec.AccessKey)
			usage[rec.AccountID] += storageAccessKey(cfg, rec.PublicKey, rec.AccessKey)
		case types.RecordContract:
			store.SetCode(u, rec.AccountID, rec.Code)
			usage[rec.AccountID] += types.StorageUsage(len(rec.Code))
			codes[rec.AccountID] = types.HashBytes(rec.Code)
		case types.RecordData:
			store.SetData(u, rec.AccountID, rec.DataKey, rec.Value)
			usage[rec.AccountID] += storageData(cfg, rec.DataKey, rec.Value)
		default:
			return types.CryptoHash{}, fmt.Errorf("engine: genesis record %d: unknown kind %s", i, rec.Kind)
		}
	}
	for id := range usage {
		if _, ok := accounts[id]; !ok {
			return types.CryptoHash{}, fmt.Errorf("engine: genesis records reference missing account %s", id)
		}
	}
	for _, id := range order {
		acc := accounts[id]
		acc.StorageUsage = cfg.NumBytesAccount + usage[id]
		if h, ok := codes[id]; ok {
			acc.CodeHash = h
		}
		store.SetAccount(u, id, *acc)
	}

	u.Commit(types.CauseInitialState)
	changes, err := u.Finalize()
	if err != nil {
		return types.CryptoHash{}, fmt.Errorf("engine: finalize genesis: %w", err)
	}
	su, root, err := tries.ApplyAll(changes, shard)
	if err != nil {
		return types.CryptoHash{}, fmt.Errorf("engine: apply genesis: %w", err)
	}
	if err := su.Commit(); err != nil {
		return types.CryptoHash{}, fmt.Errorf("engine: commit genesis: %w", err)
	}
	e.log.Debug("genesis applied", "accounts", len(order), "records", len(genesis.Records), "root", root)
	return root, nil
}

// Apply executes incoming receipts, then transactions, on top of root.
func (e *Engine) Apply(ctx context.Context, trie blocksim.Trie, root types.CryptoHash, state *blocksim.ApplyState,
	receipts []types.Receipt, txs []types.SignedTransaction, epoch blocksim.EpochInfoProvider) (*blocksim.ApplyResult, error) {

	if state.Config == nil {
		return nil, fmt.Errorf("engine: apply state without runtime config")
	}
	a := &applier{
		engine: e,
		u:      trie.Update(root),
		state:  state,
		cfg:    state.Config,
		epoch:  epoch,
		log:    e.log.New("height", state.BlockHeight),
	}
	for i := range receipts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := a.processReceipt(ctx, &receipts[i]); err != nil {
			return nil, err
		}
	}
	for i := range txs {
		if err := a.processTransaction(&txs[i]); err != nil {
			return nil, err
		}
	}

	changes, err := a.u.Finalize()
	if err != nil {
		return nil, fmt.Errorf("engine: finalize: %w", err)
	}
	return &blocksim.ApplyResult{
		StateRoot:        changes.NewRoot,
		TrieChanges:      changes,
		OutgoingReceipts: a.outgoing,
		Outcomes:         a.outcomes,
		Stats:            a.stats,
	}, nil
}

// applier holds the state of one Apply call.
type applier struct {
	engine   *Engine
	u        blocksim.TrieUpdate
	state    *blocksim.ApplyState
	cfg      *types.RuntimeConfig
	epoch    blocksim.EpochInfoProvider
	log      log15.Logger
	outgoing []types.Receipt
	outcomes []types.ExecutionOutcomeWithID
	stats    blocksim.ApplyStats
}

// compiledContract returns prepared code, going through cache when it
// is set. A cache read failure is returned; a write failure is logged.
func (e *Engine) compiledContract(cache blocksim.ArtifactCache, codeHash types.CryptoHash, code []byte,
	cfg *types.VMConfig) (types.CryptoHash, *types.CompiledContract, error) {

	key := vm.ArtifactKey(codeHash, cfg)
	if cache == nil {
		c := vm.Prepare(code, cfg)
		return key, &c, nil
	}
	c, err := cache.Get(key)
	if err != nil {
		return key, nil, fmt.Errorf("engine: load artifact %s: %w", key, err)
	}
	if c != nil {
		return key, c, nil
	}
	prepared := vm.Prepare(code, cfg)
	if err := cache.Put(key, prepared); err != nil {
		e.log.Warn("artifact cache write failed", "key", key, "err", err)
	}
	return key, &prepared, nil
}

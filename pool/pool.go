// Package pool is the reference transaction pool of the simulator.
//
// Transactions are grouped into lanes, one per (signer, public key)
// pair, and ordered by nonce inside a lane. Lanes are visited in an
// order derived from their key hash, so the batch drained for a block
// depends only on the pool's contents.
package pool

import (
	"bytes"
	"sort"
	"sync"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/types"

	lru "github.com/hashicorp/golang-lru"
	"github.com/inconshreveable/log15"
)

var (
	_ blocksim.TransactionPool  = (*TransactionPool)(nil)
	_ blocksim.PoolIterator     = (*iterator)(nil)
	_ blocksim.TransactionGroup = (*group)(nil)
)

// DefaultRecentSize is how many drained transaction hashes are
// remembered to reject replays.
const DefaultRecentSize = 50_000

type lane struct {
	key types.CryptoHash
	txs []types.SignedTransaction
}

// TransactionPool holds pending transactions until a block drains them.
type TransactionPool struct {
	mu      sync.Mutex
	lanes   map[types.CryptoHash]*lane
	pending map[types.CryptoHash]struct{}
	// recent remembers drained hashes; a drained transaction is never
	// pooled twice.
	recent *lru.Cache
	log    log15.Logger
}

// New creates an empty pool.
func New(logger log15.Logger) *TransactionPool {
	if logger == nil {
		logger = log15.New("module", "pool")
	}
	recent, err := lru.New(DefaultRecentSize)
	if err != nil {
		// Only a non-positive size fails.
		panic(err)
	}
	return &TransactionPool{
		lanes:   make(map[types.CryptoHash]*lane),
		pending: make(map[types.CryptoHash]struct{}),
		recent:  recent,
		log:     logger,
	}
}

// laneKey hashes the signer and public key of tx.
func laneKey(tx *types.Transaction) types.CryptoHash {
	var buf bytes.Buffer
	buf.WriteString(string(tx.SignerID))
	buf.WriteByte(0)
	buf.WriteByte(byte(tx.PublicKey.Type))
	buf.Write(tx.PublicKey.Data)
	return types.HashBytes(buf.Bytes())
}

// InsertTransaction adds tx to its lane. It returns false when tx is
// already pooled or was drained before.
func (p *TransactionPool) InsertTransaction(tx types.SignedTransaction) bool {
	h := tx.Hash()

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.pending[h]; ok {
		p.log.Debug("duplicate transaction", "hash", h)
		return false
	}
	if p.recent.Contains(h) {
		p.log.Debug("transaction already drained", "hash", h)
		return false
	}

	p.insertLocked(tx, false)
	return true
}

// ReintroduceTransactions puts drained transactions back into their
// lanes ahead of any pooled transaction with the same nonce. Their
// hashes are no longer treated as drained.
func (p *TransactionPool) ReintroduceTransactions(txs []types.SignedTransaction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, tx := range txs {
		h := tx.Hash()
		p.recent.Remove(h)
		if _, ok := p.pending[h]; ok {
			continue
		}
		p.insertLocked(tx, true)
	}
	p.log.Debug("transactions reintroduced", "count", len(txs))
}

// insertLocked keeps the lane sorted by nonce. Equal nonces keep
// arrival order unless front is set.
func (p *TransactionPool) insertLocked(tx types.SignedTransaction, front bool) {
	key := laneKey(&tx.Transaction)
	l, ok := p.lanes[key]
	if !ok {
		l = &lane{key: key}
		p.lanes[key] = l
	}
	nonce := tx.Transaction.Nonce
	i := sort.Search(len(l.txs), func(i int) bool {
		if front {
			return l.txs[i].Transaction.Nonce >= nonce
		}
		return l.txs[i].Transaction.Nonce > nonce
	})
	l.txs = append(l.txs, types.SignedTransaction{})
	copy(l.txs[i+1:], l.txs[i:])
	l.txs[i] = tx
	p.pending[tx.Hash()] = struct{}{}
}

// Has reports whether tx is pooled.
func (p *TransactionPool) Has(h types.CryptoHash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.pending[h]
	return ok
}

// Len returns the number of pooled transactions.
func (p *TransactionPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Iterator snapshots the current lanes in key order.
func (p *TransactionPool) Iterator() blocksim.PoolIterator {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys := make([]types.CryptoHash, 0, len(p.lanes))
	for k := range p.lanes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })
	return &iterator{pool: p, keys: keys}
}

// pop removes the lowest-nonce transaction of lane key.
func (p *TransactionPool) pop(key types.CryptoHash) (types.SignedTransaction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.lanes[key]
	if !ok || len(l.txs) == 0 {
		return types.SignedTransaction{}, false
	}
	tx := l.txs[0]
	l.txs = l.txs[1:]
	if len(l.txs) == 0 {
		delete(p.lanes, key)
	}
	h := tx.Hash()
	delete(p.pending, h)
	p.recent.Add(h, struct{}{})
	return tx, true
}

func (p *TransactionPool) laneLen(key types.CryptoHash) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.lanes[key]; ok {
		return len(l.txs)
	}
	return 0
}

type iterator struct {
	pool *TransactionPool
	keys []types.CryptoHash
	next int
}

// Next returns the next lane that still holds transactions.
func (it *iterator) Next() blocksim.TransactionGroup {
	for it.next < len(it.keys) {
		key := it.keys[it.next]
		it.next++
		if it.pool.laneLen(key) > 0 {
			return &group{pool: it.pool, key: key}
		}
	}
	return nil
}

type group struct {
	pool *TransactionPool
	key  types.CryptoHash
}

// Next removes and returns the lowest-nonce transaction of the lane.
func (g *group) Next() (types.SignedTransaction, bool) {
	return g.pool.pop(g.key)
}

// Drain takes at most one transaction from every lane, in lane order.
func Drain(p blocksim.TransactionPool) []types.SignedTransaction {
	var txs []types.SignedTransaction
	it := p.Iterator()
	for g := it.Next(); g != nil; g = it.Next() {
		if tx, ok := g.Next(); ok {
			txs = append(txs, tx)
		}
	}
	return txs
}

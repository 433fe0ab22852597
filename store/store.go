// Package store implements the simulator's trie storage on badger.
//
// State roots are content hashes over a chain of diffs: every committed
// root is persisted as a node holding its parent root and the sorted
// changes between them, so a root never needs to be rewritten and any
// historical root stays readable. Every SnapshotInterval-th node holds
// the full state instead of a diff, which bounds the length of reads.
package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/inconshreveable/log15"
)

// Store is a badger database holding trie nodes.
type Store struct {
	db  *badger.DB
	log log15.Logger
}

// Open opens (or creates) an on-disk store in dir.
func Open(dir string, logger log15.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("store: empty directory")
	}
	return open(badger.DefaultOptions(dir).WithLogger(nil), logger)
}

// OpenInMemory opens a store that lives only in memory.
func OpenInMemory(logger log15.Logger) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil), logger)
}

func open(opts badger.Options, logger log15.Logger) (*Store, error) {
	if logger == nil {
		logger = log15.New("module", "store")
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	return &Store{db: db, log: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// get returns nil, false, nil for a missing key.
func (s *Store) get(key []byte) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get: %w", err)
	}
	return value, true, nil
}

type kv struct {
	key   []byte
	value []byte
}

// storeUpdate is a pending write of trie nodes. after runs once the
// write is durable.
type storeUpdate struct {
	store *Store
	sets  []kv
	after func()
}

// Commit writes all pending nodes in one badger transaction.
func (u *storeUpdate) Commit() error {
	if len(u.sets) == 0 {
		return nil
	}
	err := u.store.db.Update(func(txn *badger.Txn) error {
		for _, e := range u.sets {
			if err := txn.Set(e.key, e.value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	if u.after != nil {
		u.after()
	}
	return nil
}

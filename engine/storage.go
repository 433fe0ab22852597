package engine

import (
	"errors"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/engine/vm"
	"github.com/blockberries/blocksim/store"
	"github.com/blockberries/blocksim/types"
)

var _ vm.Storage = (*contractStorage)(nil)

var errReadOnly = errors.New("engine: contract storage is read-only")

// contractStorage exposes one account's contract data to the VM and
// keeps the account's storage usage current. A nil acc makes it
// read-only.
type contractStorage struct {
	u       blocksim.TrieUpdate
	account types.AccountID
	acc     *types.Account
	cfg     *types.RuntimeConfig
}

func (s *contractStorage) Read(key []byte) ([]byte, bool, error) {
	return store.GetData(s.u, s.account, key)
}

func (s *contractStorage) Write(key, value []byte) (bool, error) {
	if s.acc == nil {
		return false, errReadOnly
	}
	old, existed, err := store.GetData(s.u, s.account, key)
	if err != nil {
		return false, err
	}
	if existed {
		s.acc.StorageUsage -= storageData(s.cfg, key, old)
	}
	s.acc.StorageUsage += storageData(s.cfg, key, value)
	store.SetData(s.u, s.account, key, value)
	return existed, nil
}

func (s *contractStorage) Remove(key []byte) (bool, error) {
	if s.acc == nil {
		return false, errReadOnly
	}
	old, existed, err := store.GetData(s.u, s.account, key)
	if err != nil || !existed {
		return false, err
	}
	s.acc.StorageUsage -= storageData(s.cfg, key, old)
	store.RemoveData(s.u, s.account, key)
	return true, nil
}

func (s *contractStorage) HasKey(key []byte) (bool, error) {
	_, ok, err := store.GetData(s.u, s.account, key)
	return ok, err
}

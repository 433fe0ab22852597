package store

import (
	"encoding/binary"
	"fmt"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/types"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// getDecoded reads key and decodes it into a fresh T.
func getDecoded[T any](r blocksim.StateReader, key []byte, what string) (*T, error) {
	data, ok, err := r.Get(key)
	if err != nil || !ok {
		return nil, err
	}
	v := new(T)
	if err := cramberry.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", what, err)
	}
	return v, nil
}

func setEncoded(u blocksim.TrieUpdate, key []byte, v any) {
	u.Set(key, types.MustMarshal(v))
}

// GetAccount returns the account record, or nil when absent.
func GetAccount(r blocksim.StateReader, account types.AccountID) (*types.Account, error) {
	return getDecoded[types.Account](r, AccountKey(account), "account "+string(account))
}

// SetAccount writes an account record.
func SetAccount(u blocksim.TrieUpdate, account types.AccountID, a types.Account) {
	setEncoded(u, AccountKey(account), &a)
}

// GetAccessKey returns an access key, or nil when absent.
func GetAccessKey(r blocksim.StateReader, account types.AccountID, pk types.PublicKey) (*types.AccessKey, error) {
	return getDecoded[types.AccessKey](r, AccessKeyKey(account, pk), "access key of "+string(account))
}

// SetAccessKey writes an access key.
func SetAccessKey(u blocksim.TrieUpdate, account types.AccountID, pk types.PublicKey, key types.AccessKey) {
	setEncoded(u, AccessKeyKey(account, pk), &key)
}

// RemoveAccessKey deletes an access key.
func RemoveAccessKey(u blocksim.TrieUpdate, account types.AccountID, pk types.PublicKey) {
	u.Remove(AccessKeyKey(account, pk))
}

// GetCode returns the code deployed on account.
func GetCode(r blocksim.StateReader, account types.AccountID) ([]byte, bool, error) {
	return r.Get(ContractCodeKey(account))
}

// SetCode writes the code of account.
func SetCode(u blocksim.TrieUpdate, account types.AccountID, code []byte) {
	u.Set(ContractCodeKey(account), code)
}

// GetData returns one contract storage value.
func GetData(r blocksim.StateReader, account types.AccountID, key []byte) ([]byte, bool, error) {
	return r.Get(ContractDataKey(account, key))
}

// SetData writes one contract storage value.
func SetData(u blocksim.TrieUpdate, account types.AccountID, key, value []byte) {
	u.Set(ContractDataKey(account, key), value)
}

// RemoveData deletes one contract storage value.
func RemoveData(u blocksim.TrieUpdate, account types.AccountID, key []byte) {
	u.Remove(ContractDataKey(account, key))
}

// ViewState lists the contract storage of account whose keys start
// with prefix.
func ViewState(u blocksim.TrieUpdate, account types.AccountID, prefix []byte) ([]types.StateItem, error) {
	base := ContractDataPrefix(account)
	var items []types.StateItem
	err := u.Iterate(append(base, prefix...), func(key, value []byte) error {
		items = append(items, types.StateItem{
			Key:   append([]byte{}, key[len(base):]...),
			Value: append([]byte{}, value...),
		})
		return nil
	})
	return items, err
}

// ReceivedData is a promise result waiting for its receipt.
type ReceivedData struct {
	Data    []byte `cramberry:"1"`
	HasData bool   `cramberry:"2"`
}

// GetReceivedData returns data delivered to account, or nil.
func GetReceivedData(r blocksim.StateReader, account types.AccountID, dataID types.CryptoHash) (*ReceivedData, error) {
	return getDecoded[ReceivedData](r, receivedDataKey(account, dataID), "received data")
}

// SetReceivedData stores data delivered to account.
func SetReceivedData(u blocksim.TrieUpdate, account types.AccountID, dataID types.CryptoHash, d ReceivedData) {
	setEncoded(u, receivedDataKey(account, dataID), &d)
}

// RemoveReceivedData deletes delivered data.
func RemoveReceivedData(u blocksim.TrieUpdate, account types.AccountID, dataID types.CryptoHash) {
	u.Remove(receivedDataKey(account, dataID))
}

// GetPostponedReceiptID returns the receipt waiting for dataID.
func GetPostponedReceiptID(r blocksim.StateReader, account types.AccountID, dataID types.CryptoHash) (*types.CryptoHash, error) {
	data, ok, err := r.Get(postponedReceiptIDKey(account, dataID))
	if err != nil || !ok {
		return nil, err
	}
	if len(data) != len(types.CryptoHash{}) {
		return nil, fmt.Errorf("store: postponed receipt id of length %d", len(data))
	}
	var id types.CryptoHash
	copy(id[:], data)
	return &id, nil
}

// SetPostponedReceiptID records that receiptID waits for dataID.
func SetPostponedReceiptID(u blocksim.TrieUpdate, account types.AccountID, dataID, receiptID types.CryptoHash) {
	u.Set(postponedReceiptIDKey(account, dataID), receiptID[:])
}

// RemovePostponedReceiptID drops the dataID wait record.
func RemovePostponedReceiptID(u blocksim.TrieUpdate, account types.AccountID, dataID types.CryptoHash) {
	u.Remove(postponedReceiptIDKey(account, dataID))
}

// GetPendingDataCount returns how many inputs receiptID still waits for.
func GetPendingDataCount(r blocksim.StateReader, account types.AccountID, receiptID types.CryptoHash) (uint32, bool, error) {
	data, ok, err := r.Get(pendingDataCountKey(account, receiptID))
	if err != nil || !ok {
		return 0, false, err
	}
	if len(data) != 4 {
		return 0, false, fmt.Errorf("store: pending data count of length %d", len(data))
	}
	return binary.BigEndian.Uint32(data), true, nil
}

// SetPendingDataCount stores the number of missing inputs.
func SetPendingDataCount(u blocksim.TrieUpdate, account types.AccountID, receiptID types.CryptoHash, n uint32) {
	u.Set(pendingDataCountKey(account, receiptID), binary.BigEndian.AppendUint32(nil, n))
}

// RemovePendingDataCount drops the counter.
func RemovePendingDataCount(u blocksim.TrieUpdate, account types.AccountID, receiptID types.CryptoHash) {
	u.Remove(pendingDataCountKey(account, receiptID))
}

// GetPostponedReceipt returns a receipt waiting for input data.
func GetPostponedReceipt(r blocksim.StateReader, account types.AccountID, receiptID types.CryptoHash) (*types.Receipt, error) {
	return getDecoded[types.Receipt](r, postponedReceiptKey(account, receiptID), "postponed receipt")
}

// SetPostponedReceipt stores a receipt until its inputs arrive.
func SetPostponedReceipt(u blocksim.TrieUpdate, receipt *types.Receipt) {
	setEncoded(u, postponedReceiptKey(receipt.ReceiverID, receipt.ReceiptID), receipt)
}

// RemovePostponedReceipt deletes a stored receipt.
func RemovePostponedReceipt(u blocksim.TrieUpdate, account types.AccountID, receiptID types.CryptoHash) {
	u.Remove(postponedReceiptKey(account, receiptID))
}

// RemoveAccount deletes an account with its code and every key it owns.
func RemoveAccount(u blocksim.TrieUpdate, account types.AccountID) error {
	u.Remove(AccountKey(account))
	u.Remove(ContractCodeKey(account))
	for _, col := range accountScopedColumns {
		var keys [][]byte
		err := u.Iterate(accountPrefix(col, account), func(key, _ []byte) error {
			keys = append(keys, append([]byte{}, key...))
			return nil
		})
		if err != nil {
			return fmt.Errorf("store: remove account %s: %w", account, err)
		}
		for _, k := range keys {
			u.Remove(k)
		}
	}
	return nil
}

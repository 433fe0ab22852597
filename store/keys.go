package store

import (
	"github.com/blockberries/blocksim/types"
)

// Trie key columns. Account ids never contain ',' so the separator
// keeps per-account prefixes unambiguous.
const (
	colAccount           byte = 0
	colContractCode      byte = 1
	colAccessKey         byte = 2
	colReceivedData      byte = 3
	colPostponedReceipt  byte = 4
	colPendingDataCount  byte = 5
	colPostponedReceipts byte = 6
	colContractData      byte = 9

	separator byte = ','
)

// accountScopedColumns lists the columns removed with an account.
var accountScopedColumns = []byte{
	colAccessKey,
	colReceivedData,
	colPostponedReceipt,
	colPendingDataCount,
	colPostponedReceipts,
	colContractData,
}

func accountKey(col byte, account types.AccountID) []byte {
	key := make([]byte, 0, 1+len(account))
	key = append(key, col)
	return append(key, account...)
}

// accountPrefix is the prefix of every key of col owned by account.
func accountPrefix(col byte, account types.AccountID) []byte {
	return append(accountKey(col, account), separator)
}

// AccountKey is the trie key of an account record.
func AccountKey(account types.AccountID) []byte {
	return accountKey(colAccount, account)
}

// ContractCodeKey is the trie key of an account's code.
func ContractCodeKey(account types.AccountID) []byte {
	return accountKey(colContractCode, account)
}

// AccessKeyKey is the trie key of one access key.
func AccessKeyKey(account types.AccountID, pk types.PublicKey) []byte {
	key := accountPrefix(colAccessKey, account)
	key = append(key, byte(pk.Type))
	return append(key, pk.Data...)
}

// ContractDataPrefix is the prefix of an account's contract storage.
func ContractDataPrefix(account types.AccountID) []byte {
	return accountPrefix(colContractData, account)
}

// ContractDataKey is the trie key of one contract storage entry.
func ContractDataKey(account types.AccountID, key []byte) []byte {
	return append(ContractDataPrefix(account), key...)
}

func receivedDataKey(account types.AccountID, dataID types.CryptoHash) []byte {
	return append(accountPrefix(colReceivedData, account), dataID[:]...)
}

func postponedReceiptIDKey(account types.AccountID, dataID types.CryptoHash) []byte {
	return append(accountPrefix(colPostponedReceipt, account), dataID[:]...)
}

func pendingDataCountKey(account types.AccountID, receiptID types.CryptoHash) []byte {
	return append(accountPrefix(colPendingDataCount, account), receiptID[:]...)
}

func postponedReceiptKey(account types.AccountID, receiptID types.CryptoHash) []byte {
	return append(accountPrefix(colPostponedReceipts, account), receiptID[:]...)
}

package engine

import (
	"errors"
	"fmt"

	"github.com/blockberries/blocksim/types"
)

// InvalidTxKind classifies why a transaction was rejected.
type InvalidTxKind uint8

const (
	InvalidSignature InvalidTxKind = iota + 1
	InvalidSignerID
	InvalidReceiverID
	InvalidActions
	SignerDoesNotExist
	AccessKeyNotFound
	InvalidAccessKey
	InvalidNonce
	NotEnoughAllowance
	NotEnoughBalance
	LackBalanceForState
	TotalPrepaidGasExceeded
	CostOverflow
)

var invalidTxNames = map[InvalidTxKind]string{
	InvalidSignature:        "InvalidSignature",
	InvalidSignerID:         "InvalidSignerId",
	InvalidReceiverID:       "InvalidReceiverId",
	InvalidActions:          "ActionsValidation",
	SignerDoesNotExist:      "SignerDoesNotExist",
	AccessKeyNotFound:       "AccessKeyNotFound",
	InvalidAccessKey:        "InvalidAccessKey",
	InvalidNonce:            "InvalidNonce",
	NotEnoughAllowance:      "NotEnoughAllowance",
	NotEnoughBalance:        "NotEnoughBalance",
	LackBalanceForState:     "LackBalanceForState",
	TotalPrepaidGasExceeded: "TotalPrepaidGasExceeded",
	CostOverflow:            "CostOverflow",
}

func (k InvalidTxKind) String() string {
	if name, ok := invalidTxNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", k)
}

// InvalidTxError rejects a whole block because one of its transactions
// can never be executed.
type InvalidTxError struct {
	Kind     InvalidTxKind
	TxHash   types.CryptoHash
	SignerID types.AccountID
	Message  string
}

func (e *InvalidTxError) Error() string {
	return fmt.Sprintf("invalid transaction %s from %s: %s: %s", e.TxHash, e.SignerID, e.Kind, e.Message)
}

// IsInvalidTx checks whether err is an InvalidTxError and returns it.
func IsInvalidTx(err error) (*InvalidTxError, bool) {
	var inv *InvalidTxError
	if errors.As(err, &inv) {
		return inv, true
	}
	return nil, false
}

func execError(kind types.ErrorKind, account types.AccountID, format string, args ...any) *types.TxExecutionError {
	return &types.TxExecutionError{
		Kind:      kind,
		AccountID: account,
		Message:   fmt.Sprintf(format, args...),
	}
}

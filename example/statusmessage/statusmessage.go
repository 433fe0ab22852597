// Package statusmessage embeds a contract that keeps one status string
// per signer.
package statusmessage

import (
	_ "embed"
	"encoding/json"

	"github.com/blockberries/blocksim/types"
)

// Code is the contract source.
//
//go:embed statusmessage.js
var Code []byte

// Gas is enough gas for any method of the contract.
const Gas = 30 * types.TeraGas

// SetStatusArgs encodes the arguments of set_status.
func SetStatusArgs(message string) []byte {
	b, _ := json.Marshal(struct {
		Message string `json:"message"`
	}{message})
	return b
}

// GetStatusArgs encodes the arguments of get_status.
func GetStatusArgs(account types.AccountID) []byte {
	b, _ := json.Marshal(struct {
		AccountID types.AccountID `json:"account_id"`
	}{account})
	return b
}

// DecodeStatus decodes the result of get_status. ok is false when the
// account never set a status.
func DecodeStatus(result []byte) (status string, ok bool, err error) {
	var s *string
	if err := json.Unmarshal(result, &s); err != nil {
		return "", false, err
	}
	if s == nil {
		return "", false, nil
	}
	return *s, true, nil
}

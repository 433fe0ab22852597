// Package crosscontract embeds a contract that calls a status message
// contract through promises.
package crosscontract

import (
	_ "embed"
	"encoding/json"

	"github.com/blockberries/blocksim/types"
)

// Code is the contract source.
//
//go:embed crosscontract.js
var Code []byte

// Gas covers a call and every promise it spawns.
const Gas = 200 * types.TeraGas

// CallArgs encodes the arguments of simple_call and complex_call.
func CallArgs(statusAccount types.AccountID, message string) []byte {
	b, _ := json.Marshal(struct {
		AccountID types.AccountID `json:"account_id"`
		Message   string          `json:"message"`
	}{statusAccount, message})
	return b
}

// ReportArgs encodes the arguments of call_and_report.
func ReportArgs(statusAccount, statusOf types.AccountID) []byte {
	b, _ := json.Marshal(struct {
		AccountID types.AccountID `json:"account_id"`
		StatusOf  types.AccountID `json:"status_of"`
	}{statusAccount, statusOf})
	return b
}

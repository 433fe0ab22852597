package types

import "fmt"

// StateChangeCause records why a batch of trie writes happened.
type StateChangeCause uint8

const (
	CauseInitialState StateChangeCause = iota + 1
	CauseTransactionProcessing
	CauseActionReceiptProcessing
	CauseReceiptRefund
	CausePostponedReceipt
	CauseValidatorAccountsUpdate
	CauseForcedUpdate
)

func (c StateChangeCause) String() string {
	switch c {
	case CauseInitialState:
		return "InitialState"
	case CauseTransactionProcessing:
		return "TransactionProcessing"
	case CauseActionReceiptProcessing:
		return "ActionReceiptProcessing"
	case CauseReceiptRefund:
		return "ReceiptRefund"
	case CausePostponedReceipt:
		return "PostponedReceipt"
	case CauseValidatorAccountsUpdate:
		return "ValidatorAccountsUpdate"
	case CauseForcedUpdate:
		return "ForcedUpdate"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// TrieChange is one effective write. Deleted entries carry no value.
type TrieChange struct {
	Key     []byte           `cramberry:"1"`
	Value   []byte           `cramberry:"2"`
	Deleted bool             `cramberry:"3"`
	Cause   StateChangeCause `cramberry:"4"`
}

// TrieChanges is the sorted set of writes that moves a trie from
// OldRoot to NewRoot.
type TrieChanges struct {
	OldRoot CryptoHash   `cramberry:"1"`
	NewRoot CryptoHash   `cramberry:"2"`
	Changes []TrieChange `cramberry:"3"`
}

// Empty reports whether the changes leave the root untouched.
func (c *TrieChanges) Empty() bool {
	return len(c.Changes) == 0
}

// StateItem is one contract storage entry returned by state views.
type StateItem struct {
	Key   []byte `cramberry:"1"`
	Value []byte `cramberry:"2"`
}

// CompiledContract is the cached result of preparing contract code.
// A non-empty Error records a deterministic preparation failure, which
// is cached like a success.
type CompiledContract struct {
	Code    []byte   `cramberry:"1"`
	Methods []string `cramberry:"2"`
	Error   string   `cramberry:"3"`
}

// HasMethod reports whether the contract exports method.
func (c *CompiledContract) HasMethod(method string) bool {
	for _, m := range c.Methods {
		if m == method {
			return true
		}
	}
	return false
}

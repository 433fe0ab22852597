package types

import "encoding/binary"

// DataReceiver names a receipt that waits for the result of the
// receipt carrying this entry.
type DataReceiver struct {
	DataID     CryptoHash `cramberry:"1"`
	ReceiverID AccountID  `cramberry:"2"`
}

// ActionReceipt carries actions to execute on the receiver.
type ActionReceipt struct {
	SignerID            AccountID      `cramberry:"1"`
	SignerPublicKey     PublicKey      `cramberry:"2"`
	GasPrice            Balance        `cramberry:"3"`
	OutputDataReceivers []DataReceiver `cramberry:"4"`
	InputDataIDs        []CryptoHash   `cramberry:"5"`
	Actions             []Action       `cramberry:"6"`
}

// PrepaidGas sums the gas attached to the receipt's actions.
func (r *ActionReceipt) PrepaidGas() Gas {
	var total Gas
	for _, a := range r.Actions {
		total += a.PrepaidGas()
	}
	return total
}

// Deposit sums the tokens attached to the receipt's actions.
func (r *ActionReceipt) Deposit() Balance {
	var total Balance
	for _, a := range r.Actions {
		total += a.Deposit()
	}
	return total
}

// DataReceipt delivers a promise result to a waiting receipt.
// HasData is false when the producing receipt failed.
type DataReceipt struct {
	DataID  CryptoHash `cramberry:"1"`
	Data    []byte     `cramberry:"2"`
	HasData bool       `cramberry:"3"`
}

// Receipt is an asynchronous message produced by executing a
// transaction or another receipt. Exactly one of Action and Data is set.
type Receipt struct {
	PredecessorID AccountID      `cramberry:"1"`
	ReceiverID    AccountID      `cramberry:"2"`
	ReceiptID     CryptoHash     `cramberry:"3"`
	Action        *ActionReceipt `cramberry:"4"`
	Data          *DataReceipt   `cramberry:"5"`
}

// IsRefund reports whether the receipt is a system refund.
func (r *Receipt) IsRefund() bool {
	return r.PredecessorID == SystemAccount
}

// NewRefundReceipt returns a system receipt crediting amount to receiver.
func NewRefundReceipt(receiver AccountID, id CryptoHash, amount Balance) Receipt {
	return Receipt{
		PredecessorID: SystemAccount,
		ReceiverID:    receiver,
		ReceiptID:     id,
		Action: &ActionReceipt{
			SignerID: SystemAccount,
			Actions:  []Action{Transfer(amount)},
		},
	}
}

// Domain tags keep receipt ids and data ids from colliding.
const (
	receiptIDTag byte = 1
	dataIDTag    byte = 2
)

// DeriveReceiptID derives the id of the index-th receipt produced while
// executing parent at the given height.
func DeriveReceiptID(parent CryptoHash, height BlockHeight, index uint64) CryptoHash {
	return deriveID(receiptIDTag, parent, height, index)
}

// DeriveDataID derives the id of the index-th data dependency created
// while executing parent at the given height.
func DeriveDataID(parent CryptoHash, height BlockHeight, index uint64) CryptoHash {
	return deriveID(dataIDTag, parent, height, index)
}

func deriveID(tag byte, parent CryptoHash, height BlockHeight, index uint64) CryptoHash {
	buf := make([]byte, 0, 1+len(parent)+16)
	buf = append(buf, tag)
	buf = append(buf, parent[:]...)
	buf = binary.BigEndian.AppendUint64(buf, height)
	buf = binary.BigEndian.AppendUint64(buf, index)
	return HashBytes(buf)
}

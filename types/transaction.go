package types

import "fmt"

// ActionKind identifies the variant carried by an Action.
type ActionKind uint8

const (
	ActionCreateAccount ActionKind = iota + 1
	ActionDeployContract
	ActionFunctionCall
	ActionTransfer
	ActionStake
	ActionAddKey
	ActionDeleteKey
	ActionDeleteAccount
)

func (k ActionKind) String() string {
	switch k {
	case ActionCreateAccount:
		return "CreateAccount"
	case ActionDeployContract:
		return "DeployContract"
	case ActionFunctionCall:
		return "FunctionCall"
	case ActionTransfer:
		return "Transfer"
	case ActionStake:
		return "Stake"
	case ActionAddKey:
		return "AddKey"
	case ActionDeleteKey:
		return "DeleteKey"
	case ActionDeleteAccount:
		return "DeleteAccount"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// DeployContractAction replaces the receiver's code.
type DeployContractAction struct {
	Code []byte `cramberry:"1"`
}

// FunctionCallAction invokes a contract method.
type FunctionCallAction struct {
	MethodName string  `cramberry:"1"`
	Args       []byte  `cramberry:"2"`
	Gas        Gas     `cramberry:"3"`
	Deposit    Balance `cramberry:"4"`
}

// TransferAction moves tokens to the receiver.
type TransferAction struct {
	Deposit Balance `cramberry:"1"`
}

// StakeAction locks tokens of the receiver for validation.
type StakeAction struct {
	Stake     Balance   `cramberry:"1"`
	PublicKey PublicKey `cramberry:"2"`
}

// AddKeyAction adds an access key to the receiver.
type AddKeyAction struct {
	PublicKey PublicKey `cramberry:"1"`
	AccessKey AccessKey `cramberry:"2"`
}

// DeleteKeyAction removes an access key from the receiver.
type DeleteKeyAction struct {
	PublicKey PublicKey `cramberry:"1"`
}

// DeleteAccountAction deletes the receiver and sends its balance to
// the beneficiary.
type DeleteAccountAction struct {
	BeneficiaryID AccountID `cramberry:"1"`
}

// Action is a tagged union of the actions a receipt can carry.
// Kind selects the populated payload; CreateAccount has none.
type Action struct {
	Kind           ActionKind            `cramberry:"1"`
	DeployContract *DeployContractAction `cramberry:"2"`
	FunctionCall   *FunctionCallAction   `cramberry:"3"`
	Transfer       *TransferAction       `cramberry:"4"`
	Stake          *StakeAction          `cramberry:"5"`
	AddKey         *AddKeyAction         `cramberry:"6"`
	DeleteKey      *DeleteKeyAction      `cramberry:"7"`
	DeleteAccount  *DeleteAccountAction  `cramberry:"8"`
}

func CreateAccount() Action {
	return Action{Kind: ActionCreateAccount}
}

func DeployContract(code []byte) Action {
	return Action{Kind: ActionDeployContract, DeployContract: &DeployContractAction{Code: code}}
}

func FunctionCall(method string, args []byte, gas Gas, deposit Balance) Action {
	return Action{Kind: ActionFunctionCall, FunctionCall: &FunctionCallAction{
		MethodName: method,
		Args:       args,
		Gas:        gas,
		Deposit:    deposit,
	}}
}

func Transfer(deposit Balance) Action {
	return Action{Kind: ActionTransfer, Transfer: &TransferAction{Deposit: deposit}}
}

func Stake(stake Balance, pk PublicKey) Action {
	return Action{Kind: ActionStake, Stake: &StakeAction{Stake: stake, PublicKey: pk}}
}

func AddKey(pk PublicKey, key AccessKey) Action {
	return Action{Kind: ActionAddKey, AddKey: &AddKeyAction{PublicKey: pk, AccessKey: key}}
}

func DeleteKey(pk PublicKey) Action {
	return Action{Kind: ActionDeleteKey, DeleteKey: &DeleteKeyAction{PublicKey: pk}}
}

func DeleteAccount(beneficiary AccountID) Action {
	return Action{Kind: ActionDeleteAccount, DeleteAccount: &DeleteAccountAction{BeneficiaryID: beneficiary}}
}

// Validate checks that the payload matching Kind is present.
func (a Action) Validate() error {
	var ok bool
	switch a.Kind {
	case ActionCreateAccount:
		ok = true
	case ActionDeployContract:
		ok = a.DeployContract != nil
	case ActionFunctionCall:
		ok = a.FunctionCall != nil
	case ActionTransfer:
		ok = a.Transfer != nil
	case ActionStake:
		ok = a.Stake != nil
	case ActionAddKey:
		ok = a.AddKey != nil
	case ActionDeleteKey:
		ok = a.DeleteKey != nil
	case ActionDeleteAccount:
		ok = a.DeleteAccount != nil
	default:
		return fmt.Errorf("action: unknown kind %d", a.Kind)
	}
	if !ok {
		return fmt.Errorf("action %s: missing payload", a.Kind)
	}
	return nil
}

// Deposit returns the tokens the action attaches.
func (a Action) Deposit() Balance {
	switch a.Kind {
	case ActionFunctionCall:
		return a.FunctionCall.Deposit
	case ActionTransfer:
		return a.Transfer.Deposit
	default:
		return 0
	}
}

// PrepaidGas returns the gas the action attaches for execution.
func (a Action) PrepaidGas() Gas {
	if a.Kind == ActionFunctionCall {
		return a.FunctionCall.Gas
	}
	return 0
}

// Transaction is the unsigned body of a transaction.
type Transaction struct {
	SignerID   AccountID  `cramberry:"1"`
	PublicKey  PublicKey  `cramberry:"2"`
	Nonce      Nonce      `cramberry:"3"`
	ReceiverID AccountID  `cramberry:"4"`
	BlockHash  CryptoHash `cramberry:"5"`
	Actions    []Action   `cramberry:"6"`
}

// Hash returns the transaction hash, which is also its outcome id.
func (tx *Transaction) Hash() CryptoHash {
	return HashOf(tx)
}

// SignedTransaction is a transaction with its signature.
type SignedTransaction struct {
	Transaction Transaction `cramberry:"1"`
	Signature   Signature   `cramberry:"2"`
}

// Hash returns the hash of the inner transaction.
func (stx *SignedTransaction) Hash() CryptoHash {
	return stx.Transaction.Hash()
}

// Verify checks the signature against the transaction's public key.
func (stx *SignedTransaction) Verify() bool {
	h := stx.Hash()
	return stx.Signature.Verify(h[:], stx.Transaction.PublicKey)
}

// NewSignedTransaction builds and signs a transaction.
func NewSignedTransaction(nonce Nonce, signerID, receiverID AccountID, signer Signer, actions []Action, blockHash CryptoHash) SignedTransaction {
	tx := Transaction{
		SignerID:   signerID,
		PublicKey:  signer.PublicKey(),
		Nonce:      nonce,
		ReceiverID: receiverID,
		BlockHash:  blockHash,
		Actions:    actions,
	}
	h := tx.Hash()
	return SignedTransaction{Transaction: tx, Signature: signer.Sign(h[:])}
}

// CreateAccountTx creates newAccountID funded with amount and a full
// access key.
func CreateAccountTx(nonce Nonce, signerID, newAccountID AccountID, amount Balance, pk PublicKey, signer Signer, blockHash CryptoHash) SignedTransaction {
	return NewSignedTransaction(nonce, signerID, newAccountID, signer, []Action{
		CreateAccount(),
		Transfer(amount),
		AddKey(pk, FullAccessKey()),
	}, blockHash)
}

// CreateContractTx creates newAccountID and deploys code on it.
func CreateContractTx(nonce Nonce, signerID, newAccountID AccountID, code []byte, amount Balance, pk PublicKey, signer Signer, blockHash CryptoHash) SignedTransaction {
	return NewSignedTransaction(nonce, signerID, newAccountID, signer, []Action{
		CreateAccount(),
		Transfer(amount),
		AddKey(pk, FullAccessKey()),
		DeployContract(code),
	}, blockHash)
}

// FunctionCallTx calls method on receiverID.
func FunctionCallTx(nonce Nonce, signerID, receiverID AccountID, signer Signer, deposit Balance, method string, args []byte, gas Gas, blockHash CryptoHash) SignedTransaction {
	return NewSignedTransaction(nonce, signerID, receiverID, signer, []Action{
		FunctionCall(method, args, gas, deposit),
	}, blockHash)
}

// SendMoneyTx transfers amount to receiverID.
func SendMoneyTx(nonce Nonce, signerID, receiverID AccountID, signer Signer, amount Balance, blockHash CryptoHash) SignedTransaction {
	return NewSignedTransaction(nonce, signerID, receiverID, signer, []Action{Transfer(amount)}, blockHash)
}

// StakeTx stakes amount from signerID.
func StakeTx(nonce Nonce, signerID AccountID, signer Signer, stake Balance, pk PublicKey, blockHash CryptoHash) SignedTransaction {
	return NewSignedTransaction(nonce, signerID, signerID, signer, []Action{Stake(stake, pk)}, blockHash)
}

package types

import (
	"fmt"
	"strings"
)

// StatusKind classifies an execution outcome.
type StatusKind uint8

const (
	// StatusUnknown is never valid in a recorded outcome.
	StatusUnknown StatusKind = iota
	StatusFailure
	StatusSuccessValue
	StatusSuccessReceiptID
)

func (k StatusKind) String() string {
	switch k {
	case StatusUnknown:
		return "Unknown"
	case StatusFailure:
		return "Failure"
	case StatusSuccessValue:
		return "SuccessValue"
	case StatusSuccessReceiptID:
		return "SuccessReceiptId"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// ErrorKind classifies a failed receipt.
type ErrorKind uint8

const (
	ErrAccountAlreadyExists ErrorKind = iota + 1
	ErrAccountDoesNotExist
	ErrCreateAccountNotAllowed
	ErrCreateAccountOnlyByRegistrar
	ErrActorNoPermission
	ErrLackBalanceForState
	ErrTriesToUnstake
	ErrTriesToStake
	ErrInsufficientStake
	ErrAddKeyAlreadyExists
	ErrDeleteKeyDoesNotExist
	ErrDeleteAccountStaking
	ErrBalanceOverflow
	ErrCodeDoesNotExist
	ErrMethodNotFound
	ErrCompilation
	ErrExecution
	ErrGasExceeded
	ErrProhibitedInView
)

var errorKindNames = map[ErrorKind]string{
	ErrAccountAlreadyExists:         "AccountAlreadyExists",
	ErrAccountDoesNotExist:          "AccountDoesNotExist",
	ErrCreateAccountNotAllowed:      "CreateAccountNotAllowed",
	ErrCreateAccountOnlyByRegistrar: "CreateAccountOnlyByRegistrar",
	ErrActorNoPermission:            "ActorNoPermission",
	ErrLackBalanceForState:          "LackBalanceForState",
	ErrTriesToUnstake:               "TriesToUnstake",
	ErrTriesToStake:                 "TriesToStake",
	ErrInsufficientStake:            "InsufficientStake",
	ErrAddKeyAlreadyExists:          "AddKeyAlreadyExists",
	ErrDeleteKeyDoesNotExist:        "DeleteKeyDoesNotExist",
	ErrDeleteAccountStaking:         "DeleteAccountStaking",
	ErrBalanceOverflow:              "BalanceOverflow",
	ErrCodeDoesNotExist:             "CodeDoesNotExist",
	ErrMethodNotFound:               "MethodNotFound",
	ErrCompilation:                  "CompilationError",
	ErrExecution:                    "ExecutionError",
	ErrGasExceeded:                  "GasExceeded",
	ErrProhibitedInView:             "ProhibitedInView",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", k)
}

// TxExecutionError describes why a receipt failed. It is a user-level
// outcome, not a simulator fault.
type TxExecutionError struct {
	Kind        ErrorKind `cramberry:"1"`
	AccountID   AccountID `cramberry:"2"`
	ActionIndex uint32    `cramberry:"3"`
	Message     string    `cramberry:"4"`
}

func (e *TxExecutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Kind)
	if e.AccountID != "" {
		fmt.Fprintf(&b, " (account %s, action %d)", e.AccountID, e.ActionIndex)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// ExecutionStatus is the result of a transaction or receipt.
type ExecutionStatus struct {
	Kind      StatusKind        `cramberry:"1"`
	Value     []byte            `cramberry:"2"`
	ReceiptID CryptoHash        `cramberry:"3"`
	Failure   *TxExecutionError `cramberry:"4"`
}

// SuccessValue returns a terminal success status.
func SuccessValue(v []byte) ExecutionStatus {
	return ExecutionStatus{Kind: StatusSuccessValue, Value: v}
}

// SuccessReceiptID returns a status that continues in receipt id.
func SuccessReceiptID(id CryptoHash) ExecutionStatus {
	return ExecutionStatus{Kind: StatusSuccessReceiptID, ReceiptID: id}
}

// Failure returns a terminal failure status.
func Failure(err *TxExecutionError) ExecutionStatus {
	return ExecutionStatus{Kind: StatusFailure, Failure: err}
}

// IsTerminal reports whether the status ends a receipt chain.
func (s ExecutionStatus) IsTerminal() bool {
	return s.Kind == StatusSuccessValue || s.Kind == StatusFailure
}

func (s ExecutionStatus) String() string {
	switch s.Kind {
	case StatusSuccessValue:
		return fmt.Sprintf("SuccessValue(%q)", s.Value)
	case StatusSuccessReceiptID:
		return fmt.Sprintf("SuccessReceiptId(%s)", s.ReceiptID)
	case StatusFailure:
		if s.Failure != nil {
			return fmt.Sprintf("Failure(%s)", s.Failure.Error())
		}
		return "Failure"
	default:
		return s.Kind.String()
	}
}

// MetadataVersion tells whether an outcome carries profile data.
type MetadataVersion uint8

const (
	MetadataV1 MetadataVersion = iota + 1
	MetadataV2
)

// ExecutionMetadata is attached to every outcome. Only V2 carries a
// profile.
type ExecutionMetadata struct {
	Version MetadataVersion `cramberry:"1"`
	Profile *ProfileData    `cramberry:"2"`
}

// ExecutionOutcome is what executing one transaction or receipt
// produced.
type ExecutionOutcome struct {
	Logs        []string          `cramberry:"1"`
	ReceiptIDs  []CryptoHash      `cramberry:"2"`
	GasBurnt    Gas               `cramberry:"3"`
	TokensBurnt Balance           `cramberry:"4"`
	ExecutorID  AccountID         `cramberry:"5"`
	Status      ExecutionStatus   `cramberry:"6"`
	Metadata    ExecutionMetadata `cramberry:"7"`
}

// ExecutionOutcomeWithID pairs an outcome with the transaction hash or
// receipt id that produced it.
type ExecutionOutcomeWithID struct {
	ID      CryptoHash       `cramberry:"1"`
	Outcome ExecutionOutcome `cramberry:"2"`
}

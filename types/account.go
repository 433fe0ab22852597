package types

import (
	"fmt"
	"strings"
)

// AccountID is a human-readable account name such as "alice.root".
type AccountID string

// SystemAccount is the predecessor of refund receipts.
const SystemAccount AccountID = "system"

// RegistrarAccount may create short top-level accounts.
const RegistrarAccount AccountID = "registrar"

const (
	minAccountIDLen = 2
	maxAccountIDLen = 64
	// Top-level names at least this long may be created by anyone.
	implicitAccountIDLen = 32
)

// Validate checks the account naming rules: 2 to 64 characters of
// lowercase letters, digits and the separators '-', '_' and '.', where
// separators never start, end or repeat.
func (id AccountID) Validate() error {
	s := string(id)
	if len(s) < minAccountIDLen || len(s) > maxAccountIDLen {
		return fmt.Errorf("account id %q: length %d out of range [%d, %d]", s, len(s), minAccountIDLen, maxAccountIDLen)
	}
	prevSep := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			prevSep = false
		case c == '-' || c == '_' || c == '.':
			if prevSep {
				return fmt.Errorf("account id %q: misplaced separator at %d", s, i)
			}
			prevSep = true
		default:
			return fmt.Errorf("account id %q: invalid character %q", s, c)
		}
	}
	if prevSep {
		return fmt.Errorf("account id %q: ends with a separator", s)
	}
	return nil
}

// IsTopLevel reports whether the id has no parent account.
func (id AccountID) IsTopLevel() bool {
	return !strings.Contains(string(id), ".")
}

// IsImplicit reports whether the id is long enough to be created by
// any account.
func (id AccountID) IsImplicit() bool {
	return id.IsTopLevel() && len(id) >= implicitAccountIDLen
}

// IsSubAccountOf reports whether id is a direct child of parent.
func (id AccountID) IsSubAccountOf(parent AccountID) bool {
	prefix, ok := strings.CutSuffix(string(id), "."+string(parent))
	return ok && prefix != "" && !strings.Contains(prefix, ".")
}

func (id AccountID) String() string { return string(id) }

// Account is the per-account state record.
type Account struct {
	Amount       Balance      `cramberry:"1"`
	Locked       Balance      `cramberry:"2"`
	CodeHash     CryptoHash   `cramberry:"3"`
	StorageUsage StorageUsage `cramberry:"4"`
}

// NewAccount creates an account record.
func NewAccount(amount, locked Balance, codeHash CryptoHash, storageUsage StorageUsage) Account {
	return Account{
		Amount:       amount,
		Locked:       locked,
		CodeHash:     codeHash,
		StorageUsage: storageUsage,
	}
}

// HasContract reports whether code is deployed on the account.
func (a Account) HasContract() bool {
	return !a.CodeHash.IsZero()
}

// AccessKeyPermission selects what an access key may sign.
type AccessKeyPermission uint8

const (
	PermissionFullAccess AccessKeyPermission = iota + 1
	PermissionFunctionCall
)

func (p AccessKeyPermission) String() string {
	switch p {
	case PermissionFullAccess:
		return "FullAccess"
	case PermissionFunctionCall:
		return "FunctionCall"
	default:
		return fmt.Sprintf("unknown(%d)", p)
	}
}

// FunctionCallPermission restricts a key to calls on one receiver.
// A nil Allowance is unlimited; empty MethodNames allows any method.
type FunctionCallPermission struct {
	Allowance   *Balance  `cramberry:"1"`
	ReceiverID  AccountID `cramberry:"2"`
	MethodNames []string  `cramberry:"3"`
}

// AllowsMethod reports whether the permission covers method.
func (p *FunctionCallPermission) AllowsMethod(method string) bool {
	if len(p.MethodNames) == 0 {
		return true
	}
	for _, m := range p.MethodNames {
		if m == method {
			return true
		}
	}
	return false
}

// AccessKey is the per-key state record of an account.
type AccessKey struct {
	Nonce        Nonce                   `cramberry:"1"`
	Permission   AccessKeyPermission     `cramberry:"2"`
	FunctionCall *FunctionCallPermission `cramberry:"3"`
}

// FullAccessKey returns a key with full access and nonce 0.
func FullAccessKey() AccessKey {
	return AccessKey{Permission: PermissionFullAccess}
}

// FunctionCallAccessKey returns a restricted key.
func FunctionCallAccessKey(receiver AccountID, methods []string, allowance *Balance) AccessKey {
	return AccessKey{
		Permission: PermissionFunctionCall,
		FunctionCall: &FunctionCallPermission{
			Allowance:   allowance,
			ReceiverID:  receiver,
			MethodNames: methods,
		},
	}
}

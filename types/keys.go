package types

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// KeyType identifies a signature algorithm.
type KeyType uint8

const (
	KeyTypeED25519 KeyType = 1
)

func (k KeyType) String() string {
	switch k {
	case KeyTypeED25519:
		return "ed25519"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// PublicKey is a typed public key.
type PublicKey struct {
	Type KeyType `cramberry:"1"`
	Data []byte  `cramberry:"2"`
}

// String renders the key as "ed25519:<base58>".
func (pk PublicKey) String() string {
	return pk.Type.String() + ":" + base58.Encode(pk.Data)
}

// Equal reports whether both keys are identical.
func (pk PublicKey) Equal(other PublicKey) bool {
	return pk.Type == other.Type && bytes.Equal(pk.Data, other.Data)
}

// ParsePublicKey parses the String form of a key.
func ParsePublicKey(s string) (PublicKey, error) {
	prefix, encoded, ok := strings.Cut(s, ":")
	if !ok {
		encoded, prefix = prefix, KeyTypeED25519.String()
	}
	if prefix != KeyTypeED25519.String() {
		return PublicKey{}, fmt.Errorf("types: unsupported key type %q", prefix)
	}
	data := base58.Decode(encoded)
	if len(data) != ed25519.PublicKeySize {
		return PublicKey{}, fmt.Errorf("types: invalid ed25519 key length %d", len(data))
	}
	return PublicKey{Type: KeyTypeED25519, Data: data}, nil
}

// Signature is a typed signature.
type Signature struct {
	Type KeyType `cramberry:"1"`
	Data []byte  `cramberry:"2"`
}

// Verify checks sig over msg against pk.
func (sig Signature) Verify(msg []byte, pk PublicKey) bool {
	if sig.Type != pk.Type {
		return false
	}
	switch sig.Type {
	case KeyTypeED25519:
		if len(pk.Data) != ed25519.PublicKeySize || len(sig.Data) != ed25519.SignatureSize {
			return false
		}
		return ed25519.Verify(ed25519.PublicKey(pk.Data), msg, sig.Data)
	default:
		return false
	}
}

// Signer signs transactions on behalf of an account.
type Signer interface {
	AccountID() AccountID
	PublicKey() PublicKey
	Sign(msg []byte) Signature
}

// InMemorySigner holds an ed25519 key pair in memory.
type InMemorySigner struct {
	accountID AccountID
	priv      ed25519.PrivateKey
}

var _ Signer = (*InMemorySigner)(nil)

// NewSignerFromSeed derives a deterministic key pair from seed.
// The same (account, seed) pair always yields the same key.
func NewSignerFromSeed(accountID AccountID, seed string) *InMemorySigner {
	digest := sha256.Sum256([]byte(seed))
	return &InMemorySigner{
		accountID: accountID,
		priv:      ed25519.NewKeyFromSeed(digest[:]),
	}
}

// AccountID returns the account the signer acts for.
func (s *InMemorySigner) AccountID() AccountID { return s.accountID }

// PublicKey returns the signer's public key.
func (s *InMemorySigner) PublicKey() PublicKey {
	pub := s.priv.Public().(ed25519.PublicKey)
	return PublicKey{Type: KeyTypeED25519, Data: []byte(pub)}
}

// Sign signs msg.
func (s *InMemorySigner) Sign(msg []byte) Signature {
	return Signature{Type: KeyTypeED25519, Data: ed25519.Sign(s.priv, msg)}
}

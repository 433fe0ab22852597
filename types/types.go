// Package types defines the data types shared by the simulator,
// its engine and its storage layer.
//
// These are plain Go structs with cramberry struct tags for
// deterministic binary serialization. The same encoding is used
// for hashing, for trie values, for cached artifacts and on the
// gRPC wire.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/btcsuite/btcd/btcutil/base58"
)

// CryptoHash is a 32-byte SHA-256 digest.
type CryptoHash [32]byte

// Balance is an amount of the native token in its smallest unit.
type Balance = uint64

// Gas is an amount of execution gas.
type Gas = uint64

// Nonce orders the transactions of one access key.
type Nonce = uint64

// BlockHeight is the height of a block in the chain.
type BlockHeight = uint64

// EpochHeight is the index of an epoch.
type EpochHeight = uint64

// StorageUsage is a number of bytes an account occupies in state.
type StorageUsage = uint64

// ShardUID identifies a shard. The simulator runs a single shard.
type ShardUID struct {
	Version uint32 `cramberry:"1"`
	ShardID uint32 `cramberry:"2"`
}

// SingleShard is the only shard the simulator tracks.
var SingleShard = ShardUID{}

// HashBytes returns the SHA-256 digest of b.
func HashBytes(b []byte) CryptoHash {
	return sha256.Sum256(b)
}

// HashOf returns the digest of the cramberry encoding of v.
func HashOf(v any) CryptoHash {
	return HashBytes(MustMarshal(v))
}

// MustMarshal encodes v with cramberry and panics on failure.
// Only used for the package's own value types, which always encode.
func MustMarshal(v any) []byte {
	data, err := cramberry.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("types: marshal %T: %v", v, err))
	}
	return data
}

// String returns the base58 form of the hash.
func (h CryptoHash) String() string {
	return base58.Encode(h[:])
}

// Hex returns the hex form of the hash.
func (h CryptoHash) Hex() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the all-zero hash.
func (h CryptoHash) IsZero() bool {
	return h == CryptoHash{}
}

// ParseCryptoHash decodes a base58 hash string.
func ParseCryptoHash(s string) (CryptoHash, error) {
	var h CryptoHash
	raw := base58.Decode(s)
	if len(raw) != len(h) {
		return h, fmt.Errorf("types: invalid hash %q: decoded %d bytes", s, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

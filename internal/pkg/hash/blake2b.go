package hash

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/blake2b"
)

// ErrBlake2bKeyTooLong is returned when the key exceeds 64 bytes.
var ErrBlake2bKeyTooLong = errors.New("hash: blake2b key must be at most 64 bytes")

// Blake2b implements Hash with keyed BLAKE2b-256.
//
// The output is deterministic for a given key, which makes it suitable for
// deriving stable identifiers that cannot be recomputed without the key.
type Blake2b struct {
	key []byte
}

// NewBlake2b creates a keyed BLAKE2b-256 hasher.
func NewBlake2b(key []byte) (*Blake2b, error) {
	if len(key) > blake2b.Size {
		return nil, ErrBlake2bKeyTooLong
	}
	return &Blake2b{key: key}, nil
}

// Hash returns the hex-encoded keyed digest of str.
func (b *Blake2b) Hash(str string) ([]byte, error) {
	h, err := blake2b.New256(b.key)
	if err != nil {
		return nil, err
	}
	h.Write([]byte(str))
	return []byte(hex.EncodeToString(h.Sum(nil))), nil
}

// Verify reports whether hashed is the digest of str.
func (b *Blake2b) Verify(hashed, str string) bool {
	sum, err := b.Hash(str)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hashed), sum) == 1
}

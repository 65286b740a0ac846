package uid

import (
	"crypto/rand"
	"encoding/base64"
)

// DefaultTokenBytes is the entropy of tokens from NewToken(0).
const DefaultTokenBytes = 32

// Token generates opaque URL-safe random strings, used for single-use login
// credentials handed to clients.
type Token struct {
	size int
}

// NewToken returns a generator producing tokens with size bytes of entropy.
func NewToken(size int) *Token {
	if size < 16 {
		size = DefaultTokenBytes
	}
	return &Token{size: size}
}

// Generate returns a new base64url token without padding.
//
// crypto/rand.Read never returns an error on supported platforms and panics
// if the system randomness source fails.
func (t *Token) Generate() string {
	buf := make([]byte, t.size)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}

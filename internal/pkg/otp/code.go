package otp

import (
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/pquerna/otp"
)

const (
	// MinLength is the shortest code length accepted by NewNumeric.
	MinLength = 4
	// MaxLength is the longest code length accepted by NewNumeric.
	MaxLength = 9
)

// ErrInvalidLength is returned when the requested length is outside [MinLength, MaxLength].
var ErrInvalidLength = errors.New("otp: code length must be between 4 and 9")

// Generator produces one-time codes.
type Generator interface {
	Generate() (string, error)
	Length() int
}

// Numeric generates fixed-length decimal codes.
type Numeric struct {
	digits otp.Digits
	max    *big.Int
}

// NewNumeric returns a generator for codes of the given length.
func NewNumeric(length int) (*Numeric, error) {
	if length < MinLength || length > MaxLength {
		return nil, ErrInvalidLength
	}

	return &Numeric{
		digits: otp.Digits(length),
		max:    new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil),
	}, nil
}

// Generate returns a new zero-padded code.
func (n *Numeric) Generate() (string, error) {
	v, err := rand.Int(rand.Reader, n.max)
	if err != nil {
		return "", err
	}

	return n.digits.Format(int32(v.Int64())), nil
}

// Length returns the number of digits per code.
func (n *Numeric) Length() int {
	return n.digits.Length()
}

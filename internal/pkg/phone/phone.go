// Package phone canonicalizes user-typed phone numbers into a comparable key.
//
// A key is "+" followed by 9 to 14 digits. Normalize is pure and idempotent:
// feeding a key back in returns the same key.
package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const (
	minPlusLen  = 10 // "+" and 9 digits
	maxPlusLen  = 15 // "+" and 14 digits
	localDigits = 10
	minIntlLen  = 11
	maxIntlLen  = maxPlusLen - 1
)

var (
	// ErrInvalid is returned when the input cannot be turned into a phone key.
	ErrInvalid = errors.New("phone: invalid phone number")

	// ErrInvalidPrefix is returned by NewNormalizer for an unusable default country prefix.
	ErrInvalidPrefix = errors.New("phone: default country prefix must be '+' followed by 1-4 digits")
)

// Normalize turns raw into a phone key, prepending defaultCountryPrefix to
// ten-digit local numbers.
//
//   - everything except digits and a leading "+" is dropped
//   - a leading "00" is the international call prefix and becomes "+"
//   - "+..." is kept as-is when it is 10-15 characters long
//   - otherwise one leading trunk "0" is dropped
//   - 10 digits get defaultCountryPrefix, 11-14 digits get "+"
//
// Fifteen bare digits are rejected: "+" and 15 digits would not be accepted
// back as a key, which breaks idempotence.
func Normalize(raw, defaultCountryPrefix string) (string, error) {
	cleaned := strip(raw)
	if rest, ok := strings.CutPrefix(cleaned, "00"); ok {
		cleaned = "+" + rest
	}

	if strings.HasPrefix(cleaned, "+") {
		if len(cleaned) < minPlusLen || len(cleaned) > maxPlusLen {
			return "", ErrInvalid
		}
		return cleaned, nil
	}

	digits := strings.TrimPrefix(cleaned, "0")

	switch n := len(digits); {
	case n == localDigits:
		key := defaultCountryPrefix + digits
		if len(key) > maxPlusLen {
			return "", ErrInvalid
		}
		return key, nil
	case n >= minIntlLen && n <= maxIntlLen:
		return "+" + digits, nil
	default:
		return "", ErrInvalid
	}
}

// strip keeps ASCII digits and a "+" that precedes every digit.
func strip(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		}
	}

	return b.String()
}

// Normalizer binds a default country prefix and an optional plausibility check.
type Normalizer struct {
	prefix string
	strict bool
}

// NewNormalizer validates prefix (e.g. "+91") and returns a Normalizer.
//
// In strict mode keys are also checked against libphonenumber metadata for a
// possible length in the detected country.
func NewNormalizer(prefix string, strict bool) (*Normalizer, error) {
	prefix = strings.TrimSpace(prefix)
	if len(prefix) < 2 || len(prefix) > 5 || prefix[0] != '+' {
		return nil, ErrInvalidPrefix
	}
	for _, r := range prefix[1:] {
		if r < '0' || r > '9' {
			return nil, ErrInvalidPrefix
		}
	}

	return &Normalizer{prefix: prefix, strict: strict}, nil
}

// Normalize returns the phone key for raw.
func (n *Normalizer) Normalize(raw string) (string, error) {
	key, err := Normalize(raw, n.prefix)
	if err != nil {
		return "", err
	}

	if n.strict && !possible(key) {
		return "", ErrInvalid
	}

	return key, nil
}

// Prefix returns the default country prefix.
func (n *Normalizer) Prefix() string {
	return n.prefix
}

func possible(key string) bool {
	num, err := phonenumbers.Parse(key, "ZZ")
	if err != nil {
		return false
	}
	return phonenumbers.IsPossibleNumber(num)
}

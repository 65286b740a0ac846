package entity

import (
	"time"

	"github.com/shandysiswandi/finadvise/internal/pkg/valueobject"
)

type AccountIdentity struct {
	ID         int64
	LoginAlias string
	PhoneKey   string
	Role       string
	Provenance string
	Metadata   valueobject.JSONMap
	CreatedAt  time.Time
}

type LoginToken struct {
	ID          int64
	IdentityID  int64
	TokenDigest string
	ExpiresAt   time.Time
	Consumed    bool
}

// ProvisionLoginToken asks the directory for a single-use login credential.
// When no identity owns LoginAlias a new one is created from the remaining
// fields; an existing identity is left untouched.
type ProvisionLoginToken struct {
	IdentityID  int64
	LoginAlias  string
	PhoneKey    string
	Role        string
	Provenance  string
	Metadata    valueobject.JSONMap
	TokenID     int64
	TokenDigest string
	ExpiresAt   time.Time
}

// LoginSession is what a successful login-flow verification hands back.
type LoginSession struct {
	TokenHash      string
	ActionLink     string
	LoginAlias     string
	IsExistingUser bool
	UserCreated    bool
}

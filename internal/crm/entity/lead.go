package entity

import "time"

// Lead is a prospect whose phone was confirmed through the named OTP flow.
type Lead struct {
	ID                int64
	PhoneKey          string
	Name              string
	DeviceID          string
	VerificationCount int32
	FirstVerifiedAt   time.Time
	LastVerifiedAt    time.Time
}

// UpsertLead is one verification to fold into the lead keyed by PhoneKey.
type UpsertLead struct {
	ID         int64
	PhoneKey   string
	Name       string
	DeviceID   string
	VerifiedAt time.Time
}

package entity

import "time"

// OtpRequest is one issued code. The plain code never leaves the issuer, the
// ledger only keeps its digest.
type OtpRequest struct {
	ID            int64
	PhoneKey      string
	CodeHash      string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	Used          bool
	IPAddress     string
	DeviceID      string
	RequesterName string
}

func (o OtpRequest) IsExpired(now time.Time) bool {
	return o.ExpiresAt.Before(now)
}

// Delivery is the outcome of handing a code to the messaging gateway.
type Delivery struct {
	Sent      bool
	MessageID string
	Error     string
}

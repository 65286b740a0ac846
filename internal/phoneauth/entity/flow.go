package entity

import "strings"

type Flow int8

const (
	FlowUnknown Flow = 0
	FlowLogin   Flow = 1
	FlowNamed   Flow = 2
)

func (f Flow) String() string {
	switch f {
	case FlowLogin:
		return "login"
	case FlowNamed:
		return "named"
	default:
		return "unknown"
	}
}

func FlowFromString(s string) Flow {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "login":
		return FlowLogin
	case "named":
		return FlowNamed
	default:
		return FlowUnknown
	}
}

// LedgerTable names the table holding a flow's issued codes.
type LedgerTable string

const (
	LedgerLogin LedgerTable = "phoneauth_otp_requests"
	LedgerNamed LedgerTable = "phoneauth_named_otp_requests"
)

// FlowProfile is the parameter set that separates the login flow from the
// named lead flow. Both run the same issue and verify algorithm.
type FlowProfile struct {
	Flow        Flow
	Ledger      LedgerTable
	RequireName bool
	// StartSession hands a verified phone to the session bootstrapper. When
	// false the verifier only confirms ownership of the phone.
	StartSession bool
}

var profiles = map[Flow]FlowProfile{
	FlowLogin: {Flow: FlowLogin, Ledger: LedgerLogin, RequireName: false, StartSession: true},
	FlowNamed: {Flow: FlowNamed, Ledger: LedgerNamed, RequireName: true, StartSession: false},
}

// ProfileOf returns the profile of f. ok is false for FlowUnknown.
func ProfileOf(f Flow) (p FlowProfile, ok bool) {
	p, ok = profiles[f]
	return p, ok
}

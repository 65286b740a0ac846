package event

const LeadVerifiedDestination string = "phoneauth_lead_verified"
const LeadVerifiedDestinationConsumerCRM string = "phoneauth_lead_verified_crm"

type LeadVerifiedMessage struct {
	PhoneNumber string `json:"phone_number"`
	LeadName    string `json:"lead_name"`
	DeviceID    string `json:"device_id,omitempty"`
	VerifiedAt  int64  `json:"verified_at"`
}

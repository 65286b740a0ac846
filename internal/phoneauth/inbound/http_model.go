package inbound

import "github.com/shandysiswandi/finadvise/internal/pkg/router"

type SendOTPRequest struct {
	PhoneNumber   string `json:"phone_number"`
	DeviceID      string `json:"device_id"`
	TriggerSource string `json:"trigger_source"`
	LeadName      string `json:"lead_name"`
}

type SendOTPResponse struct {
	router.Unwrapped
	Success           bool   `json:"success"`
	DevOTP            string `json:"dev_otp,omitempty"`
	WhatsAppSent      bool   `json:"whatsapp_sent"`
	WhatsAppMessageID string `json:"whatsapp_message_id,omitempty"`
	WhatsAppError     string `json:"whatsapp_error,omitempty"`
}

type VerifyOTPRequest struct {
	PhoneNumber string `json:"phone_number"`
	OTPCode     string `json:"otp_code"`
	DeviceID    string `json:"device_id"`
}

type VerifyLoginResponse struct {
	router.Unwrapped
	Success        bool   `json:"success"`
	TokenHash      string `json:"token_hash"`
	ActionLink     string `json:"action_link,omitempty"`
	LoginEmail     string `json:"login_email"`
	IsExistingUser bool   `json:"is_existing_user"`
	UserCreated    bool   `json:"user_created"`
}

type VerifyNamedResponse struct {
	router.Unwrapped
	Success     bool   `json:"success"`
	Verified    bool   `json:"verified"`
	LeadName    string `json:"lead_name"`
	PhoneNumber string `json:"phone_number"`
}

type ExchangeSessionRequest struct {
	TokenHash string `json:"token_hash"`
}

type SessionIdentity struct {
	ID          int64  `json:"id,string"`
	LoginEmail  string `json:"login_email"`
	PhoneNumber string `json:"phone_number"`
	Role        string `json:"role"`
}

type ExchangeSessionResponse struct {
	router.Unwrapped
	Success     bool            `json:"success"`
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   int64           `json:"expires_in"`
	Identity    SessionIdentity `json:"identity"`
}

type SessionInfoResponse struct {
	router.Unwrapped
	Success  bool            `json:"success"`
	Identity SessionIdentity `json:"identity"`
}

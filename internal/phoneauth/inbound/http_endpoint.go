package inbound

import (
	"github.com/shandysiswandi/finadvise/internal/phoneauth/entity"
	"github.com/shandysiswandi/finadvise/internal/phoneauth/usecase"
	"github.com/shandysiswandi/finadvise/internal/pkg/router"
)

// HTTPEndpoint exposes HTTP handlers for phone sign-in and lead verification.
type HTTPEndpoint struct {
	uc uc
}

// SendLogin issues a sign-in code.
// @Summary Send sign-in OTP
// @Description Issues a one-time code for the phone and delivers it over WhatsApp. Delivery failures are reported, not raised.
// @Tags PhoneAuth
// @Accept json
// @Produce json
// @Param x-api-key header string false "Required when trigger_source is an automation source"
// @Param request body SendOTPRequest true "Send OTP payload"
// @Success 200 {object} SendOTPResponse "Code issued"
// @Failure 400 {object} router.errorResponse "Invalid phone number"
// @Failure 401 {object} router.errorResponse "Invalid API key"
// @Failure 429 {object} router.errorResponse "Too many requests"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /otp/send [post]
func (h *HTTPEndpoint) SendLogin(r *router.Request) (any, error) {
	return h.send(r, entity.FlowLogin)
}

// SendNamed issues a code for the lead capture flow.
// @Summary Send lead OTP
// @Description Same as /otp/send but requires lead_name, which seeds the CRM lead once verified.
// @Tags PhoneAuth, CRM
// @Accept json
// @Produce json
// @Param x-api-key header string false "Required when trigger_source is an automation source"
// @Param request body SendOTPRequest true "Send OTP payload"
// @Success 200 {object} SendOTPResponse "Code issued"
// @Failure 400 {object} router.errorResponse "Invalid phone number or missing name"
// @Failure 401 {object} router.errorResponse "Invalid API key"
// @Failure 429 {object} router.errorResponse "Too many requests"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /otp/send-named [post]
func (h *HTTPEndpoint) SendNamed(r *router.Request) (any, error) {
	return h.send(r, entity.FlowNamed)
}

func (h *HTTPEndpoint) send(r *router.Request, flow entity.Flow) (any, error) {
	var req SendOTPRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.SendOTP(r.Context(), usecase.SendOTPInput{
		Flow:          flow,
		PhoneNumber:   req.PhoneNumber,
		LeadName:      req.LeadName,
		DeviceID:      req.DeviceID,
		IPAddress:     r.ClientIP(),
		TriggerSource: req.TriggerSource,
		APIKey:        r.GetHeader("x-api-key"),
	})
	if err != nil {
		return nil, err
	}

	return SendOTPResponse{
		Success:           true,
		DevOTP:            resp.DevOTP,
		WhatsAppSent:      resp.WhatsAppSent,
		WhatsAppMessageID: resp.WhatsAppMessageID,
		WhatsAppError:     resp.WhatsAppError,
	}, nil
}

// VerifyLogin checks a sign-in code and returns a single-use login token.
// @Summary Verify sign-in OTP
// @Tags PhoneAuth
// @Accept json
// @Produce json
// @Param request body VerifyOTPRequest true "Verify OTP payload"
// @Success 200 {object} VerifyLoginResponse "Login token issued"
// @Failure 400 {object} router.errorResponse "Missing fields"
// @Failure 401 {object} router.errorResponse "Invalid or expired code"
// @Failure 500 {object} router.errorResponse "Failed to create login session"
// @Router /otp/verify [post]
func (h *HTTPEndpoint) VerifyLogin(r *router.Request) (any, error) {
	out, err := h.verify(r, entity.FlowLogin)
	if err != nil {
		return nil, err
	}

	return VerifyLoginResponse{
		Success:        true,
		TokenHash:      out.Session.TokenHash,
		ActionLink:     out.Session.ActionLink,
		LoginEmail:     out.Session.LoginAlias,
		IsExistingUser: out.Session.IsExistingUser,
		UserCreated:    out.Session.UserCreated,
	}, nil
}

// VerifyNamed checks a lead capture code.
// @Summary Verify lead OTP
// @Tags PhoneAuth, CRM
// @Accept json
// @Produce json
// @Param request body VerifyOTPRequest true "Verify OTP payload"
// @Success 200 {object} VerifyNamedResponse "Phone verified"
// @Failure 400 {object} router.errorResponse "Missing fields"
// @Failure 401 {object} router.errorResponse "Invalid or expired code"
// @Router /otp/verify-named [post]
func (h *HTTPEndpoint) VerifyNamed(r *router.Request) (any, error) {
	out, err := h.verify(r, entity.FlowNamed)
	if err != nil {
		return nil, err
	}

	return VerifyNamedResponse{
		Success:     true,
		Verified:    out.Verified,
		LeadName:    out.LeadName,
		PhoneNumber: out.PhoneNumber,
	}, nil
}

func (h *HTTPEndpoint) verify(r *router.Request, flow entity.Flow) (*usecase.VerifyOTPOutput, error) {
	var req VerifyOTPRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	return h.uc.VerifyOTP(r.Context(), usecase.VerifyOTPInput{
		Flow:        flow,
		PhoneNumber: req.PhoneNumber,
		Code:        req.OTPCode,
		DeviceID:    req.DeviceID,
	})
}

// ExchangeSession trades a login token for an access token.
// @Summary Exchange login token
// @Tags PhoneAuth, Session
// @Accept json
// @Produce json
// @Param request body ExchangeSessionRequest true "Login token"
// @Success 200 {object} ExchangeSessionResponse "Access token"
// @Failure 400 {object} router.errorResponse "Missing token"
// @Failure 401 {object} router.errorResponse "Invalid or expired login token"
// @Router /otp/session [post]
func (h *HTTPEndpoint) ExchangeSession(r *router.Request) (any, error) {
	var req ExchangeSessionRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.ExchangeSession(r.Context(), usecase.ExchangeSessionInput{TokenHash: req.TokenHash})
	if err != nil {
		return nil, err
	}

	return ExchangeSessionResponse{
		Success:     true,
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		ExpiresIn:   resp.ExpiresIn,
		Identity:    toSessionIdentity(resp.Identity),
	}, nil
}

// SessionInfo returns the identity of the bearer token.
// @Summary Current session
// @Tags PhoneAuth, Session
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SessionInfoResponse "Session identity"
// @Failure 401 {object} router.errorResponse "Authentication required"
// @Router /otp/session [get]
func (h *HTTPEndpoint) SessionInfo(r *router.Request) (any, error) {
	resp, err := h.uc.SessionInfo(r.Context())
	if err != nil {
		return nil, err
	}

	return SessionInfoResponse{Success: true, Identity: toSessionIdentity(*resp)}, nil
}

func toSessionIdentity(in usecase.SessionIdentity) SessionIdentity {
	return SessionIdentity{
		ID:          in.ID,
		LoginEmail:  in.LoginAlias,
		PhoneNumber: in.PhoneNumber,
		Role:        in.Role,
	}
}

package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/finadvise/internal/phoneauth/entity"
	"github.com/shandysiswandi/finadvise/internal/pkg/goerror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type SendOTPInput struct {
	Flow          entity.Flow
	PhoneNumber   string `validate:"required,max=32"`
	LeadName      string `validate:"omitempty,max=100,person_name"`
	DeviceID      string `validate:"max=128"`
	IPAddress     string
	TriggerSource string `validate:"max=64"`
	APIKey        string
}

type SendOTPOutput struct {
	DevOTP            string
	WhatsAppSent      bool
	WhatsAppMessageID string
	WhatsAppError     string
}

func (s *Usecase) SendOTP(ctx context.Context, in SendOTPInput) (*SendOTPOutput, error) {
	ctx, span := s.startSpan(ctx, "SendOTP")
	defer span.End()

	profile, ok := entity.ProfileOf(in.Flow)
	if !ok {
		return nil, goerror.NewServer(ErrUnknownFlow)
	}

	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.LeadName = strings.TrimSpace(in.LeadName)
	in.TriggerSource = strings.TrimSpace(in.TriggerSource)

	if s.isAutomation(in.TriggerSource) && !s.validAPIKey(in.APIKey) {
		slog.WarnContext(ctx, "automation trigger rejected", "trigger_source", in.TriggerSource)
		return nil, goerror.NewBusiness("Invalid API key", goerror.CodeUnauthorized)
	}

	if profile.RequireName && in.LeadName == "" {
		return nil, goerror.NewInvalidInput(nil, "lead_name", "lead_name is required")
	}

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	phoneKey, err := s.phone.Normalize(in.PhoneNumber)
	if err != nil {
		return nil, goerror.NewInvalidInput(nil, "phone_number", "phone_number is invalid")
	}

	now := s.clock.Now()

	count, err := s.repoLedger.CountIssuedSince(ctx, profile.Ledger, phoneKey, now.Add(-rateLimitWindow))
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo count issued codes", "phone", phoneKey, "error", err)
		return nil, goerror.NewServer(err)
	}
	if count >= s.settings.MaxPerHour {
		slog.WarnContext(ctx, "otp rate limit reached", "phone", phoneKey, "count", count)
		return nil, goerror.NewBusiness("Too many OTP requests, please try again later", goerror.CodeTooManyRequest)
	}

	if s.throttled(ctx, profile, in.IPAddress) {
		return nil, goerror.NewBusiness("Too many OTP requests, please try again later", goerror.CodeTooManyRequest)
	}

	code, err := s.code.Generate()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate otp code", "error", err)
		return nil, goerror.NewServer(err)
	}

	codeHash, err := s.digest(code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash otp code", "error", err)
		return nil, goerror.NewServer(err)
	}

	req := entity.OtpRequest{
		ID:            s.uid.Generate(),
		PhoneKey:      phoneKey,
		CodeHash:      codeHash,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.settings.TTL),
		IPAddress:     in.IPAddress,
		DeviceID:      in.DeviceID,
		RequesterName: in.LeadName,
	}
	if err := s.repoLedger.ReplaceActive(ctx, profile.Ledger, req); err != nil {
		slog.ErrorContext(ctx, "failed to repo replace active otp", "phone", phoneKey, "error", err)
		return nil, goerror.NewServer(err)
	}

	s.metrics.issued.Add(ctx, 1, metric.WithAttributes(attribute.String("flow", profile.Flow.String())))

	delivery := s.deliver(ctx, phoneKey, code)

	out := &SendOTPOutput{
		WhatsAppSent:      delivery.Sent,
		WhatsAppMessageID: delivery.MessageID,
		WhatsAppError:     delivery.Error,
	}
	if s.settings.DevEcho {
		out.DevOTP = code
	}

	return out, nil
}

// throttled applies the optional per-IP limit. Store failures let the request
// through; the per-phone limit above still holds.
func (s *Usecase) throttled(ctx context.Context, profile entity.FlowProfile, ip string) bool {
	if s.repoThrottle == nil || s.settings.MaxPerIPPerHour <= 0 || ip == "" {
		return false
	}

	hits, err := s.repoThrottle.Hit(ctx, profile.Flow.String()+":"+ip, rateLimitWindow)
	if err != nil {
		slog.WarnContext(ctx, "failed to repo hit ip throttle", "ip", ip, "error", err)
		return false
	}

	if hits > s.settings.MaxPerIPPerHour {
		slog.WarnContext(ctx, "otp ip throttle reached", "ip", ip, "hits", hits)
		return true
	}

	return false
}

func (s *Usecase) deliver(ctx context.Context, phoneKey, code string) entity.Delivery {
	if s.gateway == nil {
		return entity.Delivery{Error: "messaging gateway is not configured"}
	}

	msgID, err := s.gateway.SendCode(ctx, phoneKey, code)
	if err != nil {
		slog.WarnContext(ctx, "failed to deliver otp over whatsapp", "phone", phoneKey, "error", err)
		s.metrics.delivery.Add(ctx, 1, metric.WithAttributes(attribute.Bool("sent", false)))
		return entity.Delivery{Error: err.Error()}
	}

	s.metrics.delivery.Add(ctx, 1, metric.WithAttributes(attribute.Bool("sent", true)))
	return entity.Delivery{Sent: true, MessageID: msgID}
}

package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/finadvise/internal/phoneauth/entity"
	"github.com/shandysiswandi/finadvise/internal/pkg/goerror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type VerifyOTPInput struct {
	Flow        entity.Flow
	PhoneNumber string `validate:"required,max=32"`
	Code        string `validate:"required,numeric_code"`
	DeviceID    string `validate:"max=128"`
}

// VerifyOTPOutput holds Session for the login flow, or the Lead fields for
// the named flow.
type VerifyOTPOutput struct {
	Session *entity.LoginSession

	Verified    bool
	LeadName    string
	PhoneNumber string
}

var (
	errInvalidCode = goerror.NewBusiness("Invalid OTP code", goerror.CodeUnauthorized)
	errExpiredCode = goerror.NewBusiness("OTP code has expired", goerror.CodeUnauthorized)
)

func (s *Usecase) VerifyOTP(ctx context.Context, in VerifyOTPInput) (*VerifyOTPOutput, error) {
	ctx, span := s.startSpan(ctx, "VerifyOTP")
	defer span.End()

	profile, ok := entity.ProfileOf(in.Flow)
	if !ok {
		return nil, goerror.NewServer(ErrUnknownFlow)
	}

	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.Code = strings.TrimSpace(in.Code)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	phoneKey, err := s.phone.Normalize(in.PhoneNumber)
	if err != nil {
		return nil, goerror.NewInvalidInput(nil, "phone_number", "phone_number is invalid")
	}

	codeHash, err := s.digest(in.Code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash otp code", "error", err)
		return nil, goerror.NewServer(err)
	}

	req, err := s.repoLedger.FindUnused(ctx, profile.Ledger, phoneKey, codeHash)
	if errors.Is(err, goerror.ErrNotFound) {
		s.countVerify(ctx, profile, "invalid")
		return nil, errInvalidCode
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo find unused otp", "phone", phoneKey, "error", err)
		return nil, goerror.NewServer(err)
	}

	if req.IsExpired(s.clock.Now()) {
		if s.settings.ConsumeExpired {
			if _, err := s.repoLedger.MarkUsed(ctx, profile.Ledger, req.ID); err != nil {
				slog.WarnContext(ctx, "failed to repo consume expired otp", "otp_id", req.ID, "error", err)
			}
		}
		s.countVerify(ctx, profile, "expired")
		return nil, errExpiredCode
	}

	consumed, err := s.repoLedger.MarkUsed(ctx, profile.Ledger, req.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo mark otp used", "otp_id", req.ID, "error", err)
		return nil, goerror.NewServer(err)
	}
	if !consumed {
		s.countVerify(ctx, profile, "invalid")
		return nil, errInvalidCode
	}

	s.countVerify(ctx, profile, "verified")

	if !profile.StartSession {
		s.publishLead(ctx, phoneKey, req.RequesterName, in.DeviceID)
		return &VerifyOTPOutput{
			Verified:    true,
			LeadName:    req.RequesterName,
			PhoneNumber: phoneKey,
		}, nil
	}

	session, err := s.bootstrap(ctx, phoneKey)
	if err != nil {
		return nil, err
	}

	return &VerifyOTPOutput{Session: session, Verified: true, PhoneNumber: phoneKey}, nil
}

func (s *Usecase) countVerify(ctx context.Context, profile entity.FlowProfile, outcome string) {
	s.metrics.verified.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow", profile.Flow.String()),
		attribute.String("outcome", outcome),
	))
}

func (s *Usecase) publishLead(ctx context.Context, phoneKey, name, deviceID string) {
	if s.repoMessaging == nil {
		return
	}

	if err := s.repoMessaging.PublishLeadVerified(ctx, LeadVerifiedEvent{
		PhoneNumber: phoneKey,
		LeadName:    name,
		DeviceID:    deviceID,
		VerifiedAt:  s.clock.Now(),
	}); err != nil {
		slog.ErrorContext(ctx, "failed to publish lead verified", "phone", phoneKey, "error", err)
	}
}

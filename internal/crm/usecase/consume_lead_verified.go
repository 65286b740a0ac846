package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/shandysiswandi/finadvise/internal/crm/entity"
	"github.com/shandysiswandi/finadvise/internal/pkg/idempotency"
)

type ConsumeLeadVerifiedInput struct {
	PhoneNumber string `validate:"required,max=32"`
	LeadName    string `validate:"required,max=100"`
	DeviceID    string `validate:"max=128"`
	// VerifiedAt is unix seconds; zero means the time of consumption.
	VerifiedAt int64 `validate:"gte=0"`
}

// ConsumeLeadVerified folds a verified lead into crm_leads. Malformed events
// are logged and dropped. Redeliveries of the same event are applied once
// when a dedup store is configured.
func (s *Usecase) ConsumeLeadVerified(ctx context.Context, in ConsumeLeadVerifiedInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeLeadVerified")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "error", err)
		return nil
	}

	verifiedAt := s.clock.Now()
	if in.VerifiedAt > 0 {
		verifiedAt = time.Unix(in.VerifiedAt, 0).UTC()
	}

	upsert := func(ctx context.Context) error {
		lead, err := s.repoDB.UpsertLead(ctx, entity.UpsertLead{
			ID:         s.uid.Generate(),
			PhoneKey:   in.PhoneNumber,
			Name:       in.LeadName,
			DeviceID:   in.DeviceID,
			VerifiedAt: verifiedAt,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo upsert lead", "phone", in.PhoneNumber, "error", err)
			return err
		}

		slog.InfoContext(ctx, "lead verified", "lead_id", lead.ID, "verification_count", lead.VerificationCount)
		return nil
	}

	if s.dedup == nil {
		return upsert(ctx)
	}

	key := "crm:lead_verified:" + in.PhoneNumber + ":" + strconv.FormatInt(verifiedAt.Unix(), 10)
	err := s.dedup.Exec(ctx, key, upsert, idempotency.WithStateTTL(s.dedupTTL))
	if errors.Is(err, idempotency.ErrAlreadyCompleted) {
		slog.InfoContext(ctx, "lead verified event already applied", "key", key)
		return nil
	}

	return err
}

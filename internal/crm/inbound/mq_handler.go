package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shandysiswandi/finadvise/internal/crm/usecase"
	"github.com/shandysiswandi/finadvise/internal/pkg/instrument"
	"github.com/shandysiswandi/finadvise/internal/pkg/messaging"
	"github.com/shandysiswandi/finadvise/internal/pkg/uid"
	"github.com/shandysiswandi/finadvise/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, headers []messaging.Header) context.Context {
	if cID := messaging.HeaderValue(headers, keyOfCorrelationID); cID != "" {
		return instrument.SetCorrelationID(ctx, cID)
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

func (h *MQHandler) LeadVerified(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg.Headers())

	ctx, span := h.ins.Tracer("crm.inbound.mq").Start(ctx, "LeadVerified")
	defer span.End()

	body := msg.Body()
	slog.InfoContext(ctx, "consume: lead verified", "msg_id", msg.ID())

	var payload event.LeadVerifiedMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of lead verified", "msg_body", string(body), "error", err)
		return nil
	}

	if err := h.uc.ConsumeLeadVerified(ctx, usecase.ConsumeLeadVerifiedInput{
		PhoneNumber: payload.PhoneNumber,
		LeadName:    payload.LeadName,
		DeviceID:    payload.DeviceID,
		VerifiedAt:  payload.VerifiedAt,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume lead verified", "msg_id", msg.ID(), "error", err)
		return err
	}

	return nil
}

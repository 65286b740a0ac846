package mq

import (
	"context"
	"encoding/json"

	"github.com/shandysiswandi/finadvise/internal/phoneauth/usecase"
	"github.com/shandysiswandi/finadvise/internal/pkg/instrument"
	"github.com/shandysiswandi/finadvise/internal/pkg/messaging"
	"github.com/shandysiswandi/finadvise/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
)

const (
	keyOfCorrelationID string = "cID"
	keyOfSource        string = "source"

	sourcePhoneAuth = "phoneauth"
)

type Messaging struct {
	client messaging.Messaging
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Messaging, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

func (m *Messaging) PublishLeadVerified(ctx context.Context, msg usecase.LeadVerifiedEvent) error {
	ctx, span := m.ins.Tracer("phoneauth.outbound.mq").Start(ctx, "PublishLeadVerified")
	defer span.End()

	body, err := json.Marshal(event.LeadVerifiedMessage{
		PhoneNumber: msg.PhoneNumber,
		LeadName:    msg.LeadName,
		DeviceID:    msg.DeviceID,
		VerifiedAt:  msg.VerifiedAt.Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if _, err := m.client.Publish(ctx, event.LeadVerifiedDestination, messaging.OutgoingMessage{
		Body:    body,
		Key:     []byte(msg.PhoneNumber),
		Headers: []messaging.Header{
			{Key: keyOfCorrelationID, Value: []byte(cID)},
			{Key: keyOfSource, Value: []byte(sourcePhoneAuth)},
		},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

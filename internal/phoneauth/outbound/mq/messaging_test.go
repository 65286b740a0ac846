package mq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shandysiswandi/finadvise/internal/phoneauth/usecase"
	"github.com/shandysiswandi/finadvise/internal/pkg/instrument"
	"github.com/shandysiswandi/finadvise/internal/pkg/messaging"
	"github.com/shandysiswandi/finadvise/internal/shared/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishLeadVerified(t *testing.T) {
	broker := messaging.NewMemory()
	t.Cleanup(func() { _ = broker.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan messaging.Message, 1)
	go func() {
		_ = broker.Consume(ctx, event.LeadVerifiedDestination, func(_ context.Context, msg messaging.Message) error {
			received <- msg
			return nil
		}, messaging.WithGroup("test"))
	}()
	require.Eventually(t, func() bool { return broker.Subscribed(event.LeadVerifiedDestination) > 0 }, time.Second, 5*time.Millisecond)

	pub := NewMessaging(broker, instrument.NewNoop())
	verifiedAt := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	err := pub.PublishLeadVerified(instrument.SetCorrelationID(context.Background(), "cid-1"), usecase.LeadVerifiedEvent{
		PhoneNumber: "+919876543210",
		LeadName:    "Asha Rao",
		DeviceID:    "device-7",
		VerifiedAt:  verifiedAt,
	})
	require.NoError(t, err)

	select {
	case msg := <-received:
		var payload event.LeadVerifiedMessage
		require.NoError(t, json.Unmarshal(msg.Body(), &payload))
		assert.Equal(t, event.LeadVerifiedMessage{
			PhoneNumber: "+919876543210",
			LeadName:    "Asha Rao",
			DeviceID:    "device-7",
			VerifiedAt:  verifiedAt.Unix(),
		}, payload)
		assert.Equal(t, "cid-1", messaging.HeaderValue(msg.Headers(), keyOfCorrelationID))
		assert.Equal(t, "phoneauth", messaging.HeaderValue(msg.Headers(), keyOfSource))
		assert.Equal(t, []byte("+919876543210"), msg.Key())
	case <-time.After(time.Second):
		t.Fatal("message was not delivered")
	}
}

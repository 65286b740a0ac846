package inbound

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/finadvise/internal/crm/usecase"
	"github.com/shandysiswandi/finadvise/internal/pkg/config"
	"github.com/shandysiswandi/finadvise/internal/pkg/goroutine"
	"github.com/shandysiswandi/finadvise/internal/pkg/instrument"
	"github.com/shandysiswandi/finadvise/internal/pkg/messaging"
	"github.com/shandysiswandi/finadvise/internal/shared/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedID string

func (f fixedID) Generate() string { return string(f) }

type recordingUC struct {
	mu   sync.Mutex
	ins  []usecase.ConsumeLeadVerifiedInput
	cIDs []string
}

func (r *recordingUC) ConsumeLeadVerified(ctx context.Context, in usecase.ConsumeLeadVerifiedInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ins = append(r.ins, in)
	r.cIDs = append(r.cIDs, instrument.GetCorrelationID(ctx))
	return nil
}

func (r *recordingUC) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ins)
}

func TestRegisterMQConsumer(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte(`
modules:
  crm:
    consumer_names: phoneauth_lead_verified_crm
`))
	require.NoError(t, err)

	broker := messaging.NewMemory()
	t.Cleanup(func() { _ = broker.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	routine := goroutine.NewManager(4)
	t.Cleanup(func() {
		cancel()
		_ = routine.Wait()
	})

	rec := &recordingUC{}
	RegisterMQConsumer(ctx, cfg, routine, broker, fixedID("generated"), rec, instrument.NewNoop())
	require.Eventually(t, func() bool { return broker.Subscribed(event.LeadVerifiedDestination) > 0 }, time.Second, 5*time.Millisecond)

	_, err = broker.Publish(ctx, event.LeadVerifiedDestination, messaging.OutgoingMessage{
		Body:    []byte(`{"phone_number":"+919876543210","lead_name":"Asha Rao","device_id":"device-7","verified_at":1767603600}`),
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte("cid-1")}},
	})
	require.NoError(t, err)

	_, err = broker.Publish(ctx, event.LeadVerifiedDestination, messaging.OutgoingMessage{Body: []byte(`not json`)})
	require.NoError(t, err)

	_, err = broker.Publish(ctx, event.LeadVerifiedDestination, messaging.OutgoingMessage{
		Body: []byte(`{"phone_number":"+919811112222","lead_name":"Ravi"}`),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	byPhone := map[string]int{}
	for i, in := range rec.ins {
		byPhone[in.PhoneNumber] = i
	}

	first := byPhone["+919876543210"]
	assert.Equal(t, usecase.ConsumeLeadVerifiedInput{
		PhoneNumber: "+919876543210",
		LeadName:    "Asha Rao",
		DeviceID:    "device-7",
		VerifiedAt:  1767603600,
	}, rec.ins[first])
	assert.Equal(t, "cid-1", rec.cIDs[first])
	assert.Equal(t, "generated", rec.cIDs[byPhone["+919811112222"]])
}

func TestRegisterMQConsumer_Disabled(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte("modules: {}"))
	require.NoError(t, err)

	broker := messaging.NewMemory()
	t.Cleanup(func() { _ = broker.Close() })

	routine := goroutine.NewManager(4)
	RegisterMQConsumer(context.Background(), cfg, routine, broker, fixedID("x"), &recordingUC{}, instrument.NewNoop())
	require.NoError(t, routine.Wait())

	assert.Equal(t, 0, broker.Subscribed(event.LeadVerifiedDestination))
}

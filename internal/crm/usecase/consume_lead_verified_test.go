package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/finadvise/internal/crm/entity"
	"github.com/shandysiswandi/finadvise/internal/pkg/clock"
	"github.com/shandysiswandi/finadvise/internal/pkg/idempotency"
	"github.com/shandysiswandi/finadvise/internal/pkg/instrument"
	"github.com/shandysiswandi/finadvise/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

type fakeRepo struct {
	mu    sync.Mutex
	leads map[string]*entity.Lead
	calls []entity.UpsertLead
	err   error
}

func (f *fakeRepo) UpsertLead(_ context.Context, in entity.UpsertLead) (*entity.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}

	lead, ok := f.leads[in.PhoneKey]
	if !ok {
		lead = &entity.Lead{ID: in.ID, PhoneKey: in.PhoneKey, FirstVerifiedAt: in.VerifiedAt}
		f.leads[in.PhoneKey] = lead
	}
	lead.Name = in.Name
	lead.DeviceID = in.DeviceID
	lead.VerificationCount++
	lead.LastVerifiedAt = in.VerifiedAt

	out := *lead
	return &out, nil
}

type seqID struct{ n int64 }

func (s *seqID) Generate() int64 {
	s.n++
	return s.n
}

func newUsecase(t *testing.T, withDedup bool) (*Usecase, *fakeRepo) {
	t.Helper()

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	repo := &fakeRepo{leads: map[string]*entity.Lead{}}
	dep := Dependency{
		RepoDB:     repo,
		DedupTTL:   time.Hour,
		UID:        &seqID{},
		Clock:      clock.NewManual(epoch),
		Validator:  v,
		Instrument: instrument.NewNoop(),
	}

	if withDedup {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		dep.Dedup = idempotency.New(client, "")
	}

	return New(dep), repo
}

func TestConsumeLeadVerified(t *testing.T) {
	uc, repo := newUsecase(t, false)
	ctx := context.Background()

	verifiedAt := epoch.Add(-time.Minute)
	in := ConsumeLeadVerifiedInput{
		PhoneNumber: "+919876543210",
		LeadName:    "Asha Rao",
		DeviceID:    "device-7",
		VerifiedAt:  verifiedAt.Unix(),
	}

	require.NoError(t, uc.ConsumeLeadVerified(ctx, in))
	require.NoError(t, uc.ConsumeLeadVerified(ctx, in))

	lead := repo.leads["+919876543210"]
	require.NotNil(t, lead)
	assert.Equal(t, int32(2), lead.VerificationCount)
	assert.Equal(t, "Asha Rao", lead.Name)
	assert.Equal(t, verifiedAt, lead.LastVerifiedAt)
	assert.Len(t, repo.calls, 2)
}

func TestConsumeLeadVerified_DefaultsVerifiedAtToNow(t *testing.T) {
	uc, repo := newUsecase(t, false)

	require.NoError(t, uc.ConsumeLeadVerified(context.Background(), ConsumeLeadVerifiedInput{
		PhoneNumber: "+919876543210",
		LeadName:    "Asha Rao",
	}))

	require.Len(t, repo.calls, 1)
	assert.Equal(t, epoch, repo.calls[0].VerifiedAt)
}

func TestConsumeLeadVerified_InvalidIsDropped(t *testing.T) {
	uc, repo := newUsecase(t, false)

	tests := []ConsumeLeadVerifiedInput{
		{LeadName: "Asha Rao"},
		{PhoneNumber: "+919876543210"},
		{PhoneNumber: "+919876543210", LeadName: "Asha Rao", VerifiedAt: -1},
	}

	for _, in := range tests {
		assert.NoError(t, uc.ConsumeLeadVerified(context.Background(), in))
	}
	assert.Empty(t, repo.calls)
}

func TestConsumeLeadVerified_RepoError(t *testing.T) {
	uc, repo := newUsecase(t, false)
	repo.err = errors.New("db down")

	err := uc.ConsumeLeadVerified(context.Background(), ConsumeLeadVerifiedInput{
		PhoneNumber: "+919876543210",
		LeadName:    "Asha Rao",
	})
	assert.ErrorIs(t, err, repo.err)
}

func TestConsumeLeadVerified_Dedup(t *testing.T) {
	uc, repo := newUsecase(t, true)
	ctx := context.Background()

	in := ConsumeLeadVerifiedInput{
		PhoneNumber: "+919876543210",
		LeadName:    "Asha Rao",
		VerifiedAt:  epoch.Unix(),
	}

	require.NoError(t, uc.ConsumeLeadVerified(ctx, in))
	require.NoError(t, uc.ConsumeLeadVerified(ctx, in), "redelivery")
	assert.Len(t, repo.calls, 1)
	assert.Equal(t, int32(1), repo.leads[in.PhoneNumber].VerificationCount)

	// a later verification of the same phone is a new event
	in.VerifiedAt = epoch.Add(time.Hour).Unix()
	require.NoError(t, uc.ConsumeLeadVerified(ctx, in))
	assert.Equal(t, int32(2), repo.leads[in.PhoneNumber].VerificationCount)
}

func TestConsumeLeadVerified_DedupRetriesAfterFailure(t *testing.T) {
	uc, repo := newUsecase(t, true)
	ctx := context.Background()

	in := ConsumeLeadVerifiedInput{PhoneNumber: "+919876543210", LeadName: "Asha Rao", VerifiedAt: epoch.Unix()}

	repo.err = errors.New("db down")
	assert.Error(t, uc.ConsumeLeadVerified(ctx, in))

	repo.err = nil
	require.NoError(t, uc.ConsumeLeadVerified(ctx, in))
	assert.Equal(t, int32(1), repo.leads[in.PhoneNumber].VerificationCount)
}

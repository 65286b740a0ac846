package db

import (
	"context"
	"testing"
	"time"

	"github.com/shandysiswandi/finadvise/internal/crm/entity"
	"github.com/shandysiswandi/finadvise/internal/pkg/goerror"
	"github.com/shandysiswandi/finadvise/internal/pkg/instrument"
	"github.com/shandysiswandi/finadvise/internal/pkg/pgtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertLead(t *testing.T) {
	pool := pgtest.Start(t, "0002_crm.sql")
	s := NewDB(pool, instrument.NewNoop())
	ctx := context.Background()

	const phoneKey = "+919876543210"
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	find := func() (*entity.Lead, error) {
		lead, err := scanLead(pool.QueryRow(ctx, "SELECT "+leadColumns+" FROM crm_leads WHERE phone_key = $1", phoneKey))
		return lead, s.mapError(err)
	}

	_, err := find()
	require.ErrorIs(t, err, goerror.ErrNotFound)

	lead, err := s.UpsertLead(ctx, entity.UpsertLead{
		ID:         1,
		PhoneKey:   phoneKey,
		Name:       "Asha Rao",
		DeviceID:   "device-7",
		VerifiedAt: base,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), lead.ID)
	assert.Equal(t, int32(1), lead.VerificationCount)
	assert.True(t, lead.FirstVerifiedAt.Equal(base))

	lead, err = s.UpsertLead(ctx, entity.UpsertLead{
		ID:         2,
		PhoneKey:   phoneKey,
		Name:       "Asha R.",
		VerifiedAt: base.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), lead.ID, "id of the first insert is kept")
	assert.Equal(t, "Asha R.", lead.Name)
	assert.Equal(t, "device-7", lead.DeviceID, "empty device keeps the stored one")
	assert.Equal(t, int32(2), lead.VerificationCount)
	assert.True(t, lead.FirstVerifiedAt.Equal(base))
	assert.True(t, lead.LastVerifiedAt.Equal(base.Add(time.Hour)))

	// an out-of-order event never moves last_verified_at back
	lead, err = s.UpsertLead(ctx, entity.UpsertLead{ID: 3, PhoneKey: phoneKey, Name: "Asha R.", VerifiedAt: base.Add(-time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, int32(3), lead.VerificationCount)
	assert.True(t, lead.FirstVerifiedAt.Equal(base.Add(-time.Hour)))
	assert.True(t, lead.LastVerifiedAt.Equal(base.Add(time.Hour)))

	found, err := find()
	require.NoError(t, err)
	assert.Equal(t, *lead, *found)
}

package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *StateTracker) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, New(client, "test:")
}

func TestStateTracker_Exec(t *testing.T) {
	mr, s := setup(t)
	ctx := context.Background()

	calls := 0
	fn := func(context.Context) error {
		calls++
		return nil
	}

	require.NoError(t, s.Exec(ctx, "lead:1", fn, WithStateTTL(time.Hour)))
	assert.Equal(t, 1, calls)

	val, err := mr.Get("test:lead:1")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted.String(), val)

	err = s.Exec(ctx, "lead:1", fn)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Equal(t, 1, calls)

	mr.FastForward(time.Hour + time.Second)
	require.NoError(t, s.Exec(ctx, "lead:1", fn))
	assert.Equal(t, 2, calls)
}

func TestStateTracker_ExecFailureReleases(t *testing.T) {
	mr, s := setup(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Exec(ctx, "lead:2", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("test:lead:2"))

	require.NoError(t, s.Exec(ctx, "lead:2", func(context.Context) error { return nil }))
}

func TestStateTracker_Acquire(t *testing.T) {
	mr, s := setup(t)
	ctx := context.Background()

	state, err := s.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StateNone, state)

	state, err = s.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, state)

	err = s.Exec(ctx, "k", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrAlreadyInProgress)

	mr.FastForward(time.Minute + time.Second)
	state, err = s.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StateNone, state)

	require.NoError(t, mr.Set("test:bad", "garbage"))
	state, err = s.Acquire(ctx, "bad", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, StateError, state)

	_, err = s.Acquire(ctx, "", time.Minute)
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestStateTracker_RedisDown(t *testing.T) {
	mr, s := setup(t)
	mr.Close()

	err := s.Exec(context.Background(), "k", func(context.Context) error { return nil })
	assert.Error(t, err)
}

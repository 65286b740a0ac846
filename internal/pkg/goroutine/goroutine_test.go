package goroutine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_CollectsErrors(t *testing.T) {
	m := NewManager(4)
	errBoom := errors.New("boom")

	require.True(t, m.Go(context.Background(), "ok", func(context.Context) error { return nil }))
	require.True(t, m.Go(context.Background(), "fails", func(context.Context) error { return errBoom }))
	require.True(t, m.Go(context.Background(), "panics", func(context.Context) error { panic("bad") }))

	err := m.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "fails: boom")
}

func TestManager_Capacity(t *testing.T) {
	m := NewManager(1)
	release := make(chan struct{})
	started := make(chan struct{})

	require.True(t, m.Go(context.Background(), "blocker", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	assert.False(t, m.Go(context.Background(), "overflow", func(context.Context) error { return nil }))

	close(release)
	require.NoError(t, m.Wait())
}

func TestManager_ClosedAndCanceled(t *testing.T) {
	m := NewManager(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	require.True(t, m.Go(ctx, "canceled", func(context.Context) error {
		ran = true
		return nil
	}))
	require.NoError(t, m.Wait())
	assert.False(t, ran)

	assert.False(t, m.Go(context.Background(), "late", func(context.Context) error { return nil }))

	var nilManager *Manager
	assert.False(t, nilManager.Go(context.Background(), "nil", func(context.Context) error { return nil }))
	assert.NoError(t, nilManager.Wait())
}

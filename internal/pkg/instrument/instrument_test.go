package instrument

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Disabled(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	ins, err := New(context.Background(), nil)
	require.NoError(t, err)

	assert.NotNil(t, ins.Tracer("test"))
	assert.NotNil(t, ins.Meter("test"))
	assert.NoError(t, ins.Shutdown(context.Background()))
}

func TestNew_EnabledBuildsExporters(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	exp, err := newExporters(context.Background(), "127.0.0.1:4317", false)
	require.NoError(t, err)
	assert.NotNil(t, exp.trace)
	assert.NotNil(t, exp.metric)
	assert.NotNil(t, exp.log)

	ins, err := New(context.Background(), &Config{
		Enabled:          true,
		ServiceName:      "finadvise-test",
		OTLPEndpoint:     "127.0.0.1:4317",
		TraceSampleRatio: 2,
	})
	require.NoError(t, err)

	_, span := ins.Tracer("test").Start(context.Background(), "op")
	span.End()

	// no collector is listening, so a flush error is expected
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = ins.Shutdown(ctx)

	shutdownCtx, cancelExp := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancelExp()
	_ = exp.trace.Shutdown(shutdownCtx)
	_ = exp.metric.Shutdown(shutdownCtx)
	_ = exp.log.Shutdown(shutdownCtx)
}

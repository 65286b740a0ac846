package instrument

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestNewLogger_MasksFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "finadvise", nil, []string{"OTP_CODE", " token_hash ", ""})

	logger.Info("otp issued",
		"otp_code", "4821",
		"phone_number", "+919876543210",
		"body", `{"token_hash":"abc","nested":{"otp_code":"1234"}}`,
		"payload", map[string]any{"token_hash": "abc", "ok": true},
	)

	line := decodeLine(t, &buf)
	assert.Equal(t, "***", line["otp_code"])
	assert.Equal(t, "+919876543210", line["phone_number"])
	assert.JSONEq(t, `{"token_hash":"***","nested":{"otp_code":"***"}}`, line["body"].(string))
	assert.Equal(t, map[string]any{"token_hash": "***", "ok": true}, line["payload"])
	assert.Equal(t, "finadvise", line["service"])
	assert.Contains(t, line, "ts")
	assert.Equal(t, "INFO", line["severity"])
}

func TestNewLogger_CorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "finadvise", nil, nil)

	ctx := SetCorrelationID(context.Background(), "cid-123")
	logger.With("module", "phoneauth").InfoContext(ctx, "verify")

	line := decodeLine(t, &buf)
	assert.Equal(t, "cid-123", line["_cID"])
	assert.Equal(t, "phoneauth", line["module"])
}

func TestCorrelationID(t *testing.T) {
	assert.Empty(t, GetCorrelationID(context.Background()))
	//nolint:staticcheck // nil context is tolerated on purpose
	assert.Empty(t, GetCorrelationID(nil))
	assert.Equal(t, "x", GetCorrelationID(SetCorrelationID(context.Background(), "x")))
}

func TestNew_DisabledNoopSpan(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	ins, err := New(context.Background(), &Config{ServiceName: "finadvise"})
	require.NoError(t, err)

	_, span := ins.Tracer("test").Start(context.Background(), "noop")
	span.End()
	assert.False(t, span.SpanContext().IsValid())
	assert.NoError(t, ins.Shutdown(context.Background()))
}

func TestClampRatio(t *testing.T) {
	assert.InDelta(t, 0.0, clampRatio(-1), 0)
	assert.InDelta(t, 0.25, clampRatio(0.25), 0)
	assert.InDelta(t, 1.0, clampRatio(3), 0)
}

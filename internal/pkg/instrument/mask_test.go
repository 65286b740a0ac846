package instrument

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMasker(t *testing.T) {
	m := NewMasker([]string{"x-api-key", "otp_code"})

	assert.False(t, m.Empty())
	assert.True(t, m.Has("X-Api-Key"))
	assert.False(t, m.Has("phone_number"))

	got := m.Data(map[string]any{
		"otp_code": "4821",
		"items":    []any{map[string]any{"otp_code": "1"}, "plain"},
	})
	assert.Equal(t, map[string]any{
		"otp_code": "***",
		"items":    []any{map[string]any{"otp_code": "***"}, "plain"},
	}, got)

	h := http.Header{}
	h.Set("X-Api-Key", "secret")
	h.Set("Content-Type", "application/json")
	masked := m.Header(h)
	assert.Equal(t, "***", masked.Get("X-Api-Key"))
	assert.Equal(t, "application/json", masked.Get("Content-Type"))
	assert.Equal(t, "secret", h.Get("X-Api-Key"))

	_, ok := m.JSON([]byte("not json"))
	assert.False(t, ok)

	var empty *Masker
	assert.True(t, empty.Empty())
	assert.False(t, empty.Has("otp_code"))
}

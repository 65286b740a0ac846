package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
modules:
  phoneauth:
    otp:
      length: 4
      ttl_minutes: 10
      dev_echo: true
    automation:
      trigger_sources: "n8n, automation,,zapier "
    whatsapp:
      timeout_seconds: 5
hash:
  key: "c2VjcmV0"
`

func TestNewViperFromBytes(t *testing.T) {
	cfg, err := NewViperFromBytes("yaml", []byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.GetInt("modules.phoneauth.otp.length"))
	assert.Equal(t, 10*time.Minute, cfg.GetMinute("modules.phoneauth.otp.ttl_minutes"))
	assert.Equal(t, 5*time.Second, cfg.GetSecond("modules.phoneauth.whatsapp.timeout_seconds"))
	assert.True(t, cfg.GetBool("modules.phoneauth.otp.dev_echo"))
	assert.Equal(t, []byte("secret"), cfg.GetBinary("hash.key"))
	assert.Equal(t, []string{"n8n", "automation", "zapier"}, cfg.GetArray("modules.phoneauth.automation.trigger_sources"))
	assert.Nil(t, cfg.GetArray("modules.phoneauth.unknown"))
	assert.NoError(t, cfg.Close())
}

func TestNewViperFromBytes_EnvOverride(t *testing.T) {
	t.Setenv("MODULES_PHONEAUTH_OTP_LENGTH", "6")

	cfg, err := NewViperFromBytes("yaml", []byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.GetInt("modules.phoneauth.otp.length"))
}

func TestNewViperFromBytes_Errors(t *testing.T) {
	_, err := NewViperFromBytes(" ", []byte(sample))
	assert.ErrorIs(t, err, ErrConfigTypeRequired)

	_, err = NewViperFromBytes("yaml", []byte("a: [unclosed"))
	assert.Error(t, err)
}

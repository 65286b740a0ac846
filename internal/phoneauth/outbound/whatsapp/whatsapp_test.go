package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shandysiswandi/finadvise/internal/pkg/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(url string, retries uint64) *Client {
	return New(Config{
		BaseURL:       url,
		APIVersion:    "v21.0",
		PhoneNumberID: "1055",
		AccessToken:   "token-abc",
		TemplateName:  "finadvise_otp",
		MaxRetries:    retries,
		Backoff:       time.Millisecond,
		Timeout:       time.Second,
	}, instrument.NewNoop())
}

func TestSendCode_Success(t *testing.T) {
	var got templateMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v21.0/1055/messages", r.URL.Path)
		assert.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messaging_product":"whatsapp","messages":[{"id":"wamid.HBgM"}]}`))
	}))
	defer srv.Close()

	id, err := newClient(srv.URL, 0).SendCode(context.Background(), "+919876543210", "4821")
	require.NoError(t, err)
	assert.Equal(t, "wamid.HBgM", id)

	assert.Equal(t, "919876543210", got.To)
	assert.Equal(t, "template", got.Type)
	assert.Equal(t, "finadvise_otp", got.Template.Name)
	assert.Equal(t, "en_US", got.Template.Language.Code)
	require.Len(t, got.Template.Components, 2)
	assert.Equal(t, "4821", got.Template.Components[0].Parameters[0].Text)
	assert.Equal(t, "url", got.Template.Components[1].SubType)
}

func TestSendCode_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.retry"}]}`))
	}))
	defer srv.Close()

	id, err := newClient(srv.URL, 3).SendCode(context.Background(), "+919876543210", "4821")
	require.NoError(t, err)
	assert.Equal(t, "wamid.retry", id)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendCode_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, 2).SendCode(context.Background(), "+919876543210", "4821")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendCode_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"(#131030) Recipient phone number not in allowed list","type":"OAuthException","code":131030}}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, 3).SendCode(context.Background(), "+919876543210", "4821")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 131030, apiErr.Code)
	assert.Contains(t, err.Error(), "Recipient phone number not in allowed list")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendCode_MissingMessageID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"messages":[]}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, 2).SendCode(context.Background(), "+919876543210", "4821")
	assert.ErrorIs(t, err, ErrNoMessageID)
}

func TestSendCode_TotalTimeoutBoundsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newClient(srv.URL, 5)
	c.cfg.TotalTimeout = 150 * time.Millisecond

	start := time.Now()
	_, err := c.SendCode(context.Background(), "+919876543210", "4821")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, time.Second, "attempts must stop at the total timeout")
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestSendCode_NotConfigured(t *testing.T) {
	c := New(Config{}, nil)
	assert.False(t, c.Configured())

	_, err := c.SendCode(context.Background(), "+919876543210", "4821")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

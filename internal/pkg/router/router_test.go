package router

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shandysiswandi/finadvise/internal/pkg/clock"
	"github.com/shandysiswandi/finadvise/internal/pkg/config"
	"github.com/shandysiswandi/finadvise/internal/pkg/goerror"
	"github.com/shandysiswandi/finadvise/internal/pkg/instrument"
	"github.com/shandysiswandi/finadvise/internal/pkg/jwt"
	"github.com/shandysiswandi/finadvise/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedID string

func (f fixedID) Generate() string { return string(f) }

type flatResponse struct {
	Unwrapped
	Success bool   `json:"success"`
	DevOTP  string `json:"dev_otp,omitempty"`
}

type wrappedResponse struct {
	Name string `json:"name"`
}

func newTestRouter(t *testing.T, yaml string) (*Router, *jwt.Symmetric) {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(yaml))
	require.NoError(t, err)

	j, err := jwt.NewHS512(jwt.Config{
		Secret: []byte(strings.Repeat("s", 64)),
		Issuer: "finadvise",
		TTL:    time.Hour,
		Clock:  clock.New(),
		UUID:   fixedID("jti"),
	})
	require.NoError(t, err)

	r := NewRouter(Config{
		Config:     cfg,
		UUID:       fixedID("generated-cid"),
		JWT:        j,
		Instrument: instrument.NewNoop(),
	})

	r.POST("/otp/send", func(*Request) (any, error) {
		return flatResponse{Success: true, DevOTP: "4821"}, nil
	})
	r.POST("/otp/verify", func(*Request) (any, error) {
		return nil, goerror.NewBusiness("invalid code", goerror.CodeUnauthorized)
	})
	r.POST("/otp/verify-named", func(*Request) (any, error) {
		return nil, goerror.NewInvalidInput(validator.V10ValidationError{"otp_code": "otp_code is a required field"})
	})
	r.POST("/otp/send-named", func(*Request) (any, error) {
		panic("boom")
	})
	r.POST("/otp/session", func(*Request) (any, error) {
		return nil, errors.New("raw error")
	})
	r.GET("/otp/session", func(req *Request) (any, error) {
		return wrappedResponse{Name: jwt.GetAuth(req.Context()).LoginAlias}, nil
	})

	return r, j
}

func do(r http.Handler, method, path string, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(`{}`))
	for k, v := range header {
		for _, vv := range v {
			req.Header.Add(k, vv)
		}
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestRouter_Responses(t *testing.T) {
	r, j := newTestRouter(t, "app: {}")

	token, err := j.Generate(jwt.Subject{IdentityID: 9, LoginAlias: "alias@phone.local"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		method   string
		path     string
		header   http.Header
		wantCode int
		wantBody map[string]any
	}{
		{
			name: "health", method: http.MethodGet, path: "/health",
			wantCode: http.StatusOK, wantBody: map[string]any{"success": true, "message": "ok"},
		},
		{
			name: "flat response", method: http.MethodPost, path: "/otp/send",
			wantCode: http.StatusOK, wantBody: map[string]any{"success": true, "dev_otp": "4821"},
		},
		{
			name: "business error", method: http.MethodPost, path: "/otp/verify",
			wantCode: http.StatusUnauthorized, wantBody: map[string]any{"success": false, "message": "invalid code"},
		},
		{
			name: "validation error", method: http.MethodPost, path: "/otp/verify-named",
			wantCode: http.StatusBadRequest,
			wantBody: map[string]any{
				"success": false,
				"message": "Validation error",
				"error":   map[string]any{"otp_code": "otp_code is a required field"},
			},
		},
		{
			name: "panic", method: http.MethodPost, path: "/otp/send-named",
			wantCode: http.StatusInternalServerError, wantBody: map[string]any{"success": false, "message": "Internal server error"},
		},
		{
			name: "plain error", method: http.MethodPost, path: "/otp/session",
			wantCode: http.StatusInternalServerError, wantBody: map[string]any{"success": false, "message": "Internal server error"},
		},
		{
			name: "not found", method: http.MethodGet, path: "/nope",
			wantCode: http.StatusNotFound, wantBody: map[string]any{"success": false, "message": "endpoint not found"},
		},
		{
			name: "auth required", method: http.MethodGet, path: "/otp/session",
			wantCode: http.StatusUnauthorized, wantBody: map[string]any{"success": false, "message": "Authentication required"},
		},
		{
			name: "bad token", method: http.MethodGet, path: "/otp/session",
			header:   http.Header{"Authorization": {"Bearer nope"}},
			wantCode: http.StatusUnauthorized, wantBody: map[string]any{"success": false, "message": "Invalid or expired token"},
		},
		{
			name: "authenticated envelope", method: http.MethodGet, path: "/otp/session",
			header:   http.Header{"Authorization": {"Bearer " + token}},
			wantCode: http.StatusOK,
			wantBody: map[string]any{
				"success": true,
				"message": "request has been successfully",
				"data":    map[string]any{"name": "alias@phone.local"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(r, tt.method, tt.path, tt.header)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestRouter_CorrelationID(t *testing.T) {
	r, _ := newTestRouter(t, "app: {}")

	rec, _ := do(r, http.MethodGet, "/health", nil)
	assert.Equal(t, "generated-cid", rec.Header().Get(HeaderCorrelationID))

	rec, _ = do(r, http.MethodGet, "/health", http.Header{HeaderRequestID: {"from-proxy"}})
	assert.Equal(t, "from-proxy", rec.Header().Get(HeaderCorrelationID))

	rec, _ = do(r, http.MethodGet, "/health", http.Header{"x-request-id": {"lower-case"}})
	assert.Equal(t, "lower-case", rec.Header().Get(HeaderCorrelationID))
}

func TestRouter_Maintenance(t *testing.T) {
	r, _ := newTestRouter(t, "app:\n  maintenance:\n    endpoints: /otp/send\n")

	rec, body := do(r, http.MethodPost, "/otp/send", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "service is under maintenance", body["message"])

	rec, _ = do(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		remote string
		want   string
	}{
		{name: "forwarded for", header: http.Header{"X-Forwarded-For": {"203.0.113.7, 10.0.0.1"}}, remote: "10.0.0.1:1234", want: "203.0.113.7"},
		{name: "real ip wins", header: http.Header{"X-Real-Ip": {"198.51.100.2"}, "X-Forwarded-For": {"203.0.113.7"}}, remote: "10.0.0.1:1234", want: "198.51.100.2"},
		{name: "garbage header falls back", header: http.Header{"X-Real-Ip": {"nope"}}, remote: "10.0.0.1:1234", want: "10.0.0.1"},
		{name: "nothing usable", remote: "pipe", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header = tt.header
			if req.Header == nil {
				req.Header = http.Header{}
			}
			req.RemoteAddr = tt.remote
			assert.Equal(t, tt.want, realIP(req))
		})
	}
}

func TestRequest_DecodeBody(t *testing.T) {
	var dst struct {
		PhoneNumber string `json:"phone_number"`
	}

	req := &Request{Request: httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"phone_number":"+919876543210","extra":1}`))}
	require.NoError(t, req.DecodeBody(&dst))
	assert.Equal(t, "+919876543210", dst.PhoneNumber)

	req = &Request{Request: httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}{"b":2}`))}
	assert.Error(t, req.DecodeBody(&dst))

	req = &Request{Request: httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))}
	assert.Error(t, req.DecodeBody(&dst))

	req = &Request{Request: httptest.NewRequest(http.MethodPost, "/", http.NoBody)}
	assert.Error(t, req.DecodeBody(&dst))
}

func TestRequest_ClientIP(t *testing.T) {
	req := &Request{Request: httptest.NewRequest(http.MethodGet, "/", nil)}
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", req.ClientIP())

	req.RemoteAddr = "192.0.2.1"
	assert.Equal(t, "192.0.2.1", req.ClientIP())
}

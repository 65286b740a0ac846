// Package whatsapp delivers one-time codes through the WhatsApp Cloud API as
// authentication template messages.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/finadvise/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	// ErrNotConfigured is returned by SendCode when no credentials are set.
	ErrNotConfigured = errors.New("whatsapp: gateway is not configured")
	// ErrNoMessageID is returned when the API accepts the call without a message id.
	ErrNoMessageID = errors.New("whatsapp: response has no message id")
)

const (
	defaultBaseURL    = "https://graph.facebook.com"
	defaultAPIVersion = "v21.0"
	defaultLanguage   = "en_US"
	defaultTimeout    = 4 * time.Second
	defaultBudget     = 8 * time.Second
	defaultBackoff    = 200 * time.Millisecond
	maxErrorBody      = 4 << 10
)

// Config configures the Cloud API client.
type Config struct {
	// BaseURL is the Graph API host, overridable for tests.
	BaseURL string
	// APIVersion is the Graph API version path segment.
	APIVersion string
	// PhoneNumberID is the sender phone number id of the business account.
	PhoneNumberID string
	// AccessToken is the system user token.
	AccessToken string
	// TemplateName is the approved authentication template.
	TemplateName string
	// TemplateLanguage is the template language code.
	TemplateLanguage string
	// Timeout bounds each HTTP attempt.
	Timeout time.Duration
	// TotalTimeout bounds all attempts and backoff together and must stay below
	// the HTTP server write timeout.
	TotalTimeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64
	// Backoff is the first retry delay; later delays grow exponentially.
	Backoff time.Duration
}

// Client sends codes with bounded retries. Only network errors, 429 and 5xx
// responses are retried.
type Client struct {
	cfg  Config
	http *http.Client
	ins  instrument.Instrumentation
}

func New(cfg Config, ins instrument.Instrumentation) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.TemplateLanguage == "" {
		cfg.TemplateLanguage = defaultLanguage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.TotalTimeout <= 0 {
		cfg.TotalTimeout = defaultBudget
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if ins == nil {
		ins = instrument.NewNoop()
	}

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		ins:  ins,
	}
}

// Configured reports whether the client has the credentials it needs.
func (c *Client) Configured() bool {
	return c.cfg.PhoneNumberID != "" && c.cfg.AccessToken != "" && c.cfg.TemplateName != ""
}

type parameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type component struct {
	Type       string      `json:"type"`
	SubType    string      `json:"sub_type,omitempty"`
	Index      string      `json:"index,omitempty"`
	Parameters []parameter `json:"parameters"`
}

type templateMessage struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Template         struct {
		Name     string `json:"name"`
		Language struct {
			Code string `json:"code"`
		} `json:"language"`
		Components []component `json:"components"`
	} `json:"template"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// APIError is a non-2xx answer from the Cloud API.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("whatsapp: status %d", e.Status)
	}
	return fmt.Sprintf("whatsapp: status %d: %s", e.Status, e.Message)
}

// transportError marks failures that happened before a response arrived.
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError
	}

	return false
}

// SendCode delivers code to phoneKey and returns the WhatsApp message id.
func (c *Client) SendCode(ctx context.Context, phoneKey, code string) (msgID string, err error) {
	ctx, span := c.ins.Tracer("phoneauth.outbound.whatsapp").Start(ctx, "SendCode")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if !c.Configured() {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(c.message(phoneKey, code))
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + c.cfg.APIVersion + "/" + c.cfg.PhoneNumberID + "/messages"

	ctx, cancel := context.WithTimeout(ctx, c.cfg.TotalTimeout)
	defer cancel()

	b := retry.WithMaxRetries(c.cfg.MaxRetries, retry.NewExponential(c.cfg.Backoff))

	attempt := 0
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++

		id, err := c.post(ctx, endpoint, body)
		if err == nil {
			msgID = id
			return nil
		}

		if !retryable(err) {
			return err
		}

		slog.WarnContext(ctx, "whatsapp send attempt failed", "attempt", attempt, "error", err)
		return retry.RetryableError(err)
	})
	span.SetAttributes(attribute.Int("whatsapp.attempts", attempt))
	if err != nil {
		return "", err
	}

	return msgID, nil
}

func (c *Client) message(phoneKey, code string) templateMessage {
	var m templateMessage
	m.MessagingProduct = "whatsapp"
	m.RecipientType = "individual"
	m.To = strings.TrimPrefix(phoneKey, "+")
	m.Type = "template"
	m.Template.Name = c.cfg.TemplateName
	m.Template.Language.Code = c.cfg.TemplateLanguage
	m.Template.Components = []component{
		{Type: "body", Parameters: []parameter{{Type: "text", Text: code}}},
		{Type: "button", SubType: "url", Index: "0", Parameters: []parameter{{Type: "text", Text: code}}},
	}
	return m
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}

		var er errorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if json.Unmarshal(raw, &er) == nil {
			apiErr.Code = er.Error.Code
			apiErr.Message = er.Error.Message
		}
		return "", apiErr
	}

	var sr sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", err
	}
	if len(sr.Messages) == 0 || sr.Messages[0].ID == "" {
		return "", ErrNoMessageID
	}

	return sr.Messages[0].ID, nil
}

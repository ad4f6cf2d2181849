package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// resendAPIURL is the Resend email send endpoint.
const resendAPIURL = "https://api.resend.com/emails"

// DefaultResendTimeout bounds one Resend API call.
const DefaultResendTimeout = 8 * time.Second

// ResendOpts holds configuration options for the Resend client.
type ResendOpts struct {
	APIKey string
	From   string
	Client *http.Client
}

// ResendOption defines a configuration option for the Resend client.
type ResendOption func(*ResendOpts)

// WithResendAPIKey sets the Resend API key.
func WithResendAPIKey(key string) ResendOption {
	return func(o *ResendOpts) { o.APIKey = key }
}

// WithResendFrom sets the From header used on outgoing emails.
func WithResendFrom(from string) ResendOption {
	return func(o *ResendOpts) { o.From = from }
}

// WithResendHTTPClient injects the HTTP client (used by tests).
func WithResendHTTPClient(c *http.Client) ResendOption {
	return func(o *ResendOpts) { o.Client = c }
}

// ResendSender sends email through the Resend HTTP API.
type ResendSender struct {
	apiKey string
	from   string
	client *http.Client
}

// NewResendSender creates a Resend-backed email sender. Configuration
// falls back to RESEND_API_KEY and NOTIFY_EMAIL_FROM environment
// variables when not provided via options.
func NewResendSender(opts ...ResendOption) (*ResendSender, error) {
	var cfg ResendOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("RESEND_API_KEY")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("NOTIFY_EMAIL_FROM")
	}
	if cfg.From == "" {
		cfg.From = "Cove <noreply@coveplatform.com>"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("resend API key not set")
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: DefaultResendTimeout}
	}
	return &ResendSender{apiKey: cfg.APIKey, from: cfg.From, client: cfg.Client}, nil
}

type resendPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// Send posts one email to the Resend API.
func (s *ResendSender) Send(ctx context.Context, to []string, subject, text string) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	body, err := json.Marshal(resendPayload{From: s.from, To: to, Subject: subject, Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal resend payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resendAPIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build resend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("resend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Error("ResendSender send rejected", "status", resp.StatusCode, "body", string(msg))
		return fmt.Errorf("resend API error %d", resp.StatusCode)
	}

	slog.Debug("ResendSender email sent", "recipients", len(to), "subject", subject)
	return nil
}

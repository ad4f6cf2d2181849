// Package twiliosms wraps the Twilio API for outbound SMS delivery in Cove.
package twiliosms

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender delivers one SMS from a business's provisioned number.
type Sender interface {
	SendSMS(ctx context.Context, from, to, body string) error
}

// Opts holds configuration options for the Twilio SMS client.
type Opts struct {
	AccountSID string
	AuthToken  string
}

// Option defines a configuration option for the Twilio SMS client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// Client wraps the Twilio REST API for SMS. Unlike a single-number
// deployment, the From number is supplied per send because each business
// owns its own provisioned number.
type Client struct {
	client *twilio.RestClient
}

// NewClient creates a Twilio SMS client, falling back to the
// TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN environment variables when
// options are not provided.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Client{client: client}, nil
}

// SendSMS sends one SMS message using the Twilio API.
func (c *Client) SendSMS(ctx context.Context, from, to, body string) error {
	if from == "" || to == "" || body == "" {
		return fmt.Errorf("SendSMS requires from, to, and body")
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(from)
	params.SetTo(to)
	params.SetBody(body)

	_, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendSMS failed", "to", to, "error", err)
		return fmt.Errorf("failed to send SMS to %s: %w", to, err)
	}

	slog.Debug("Twilio SMS sent", "to", to)
	return nil
}

// SentMessage records one message captured by the mock client.
type SentMessage struct {
	From string
	To   string
	Body string
}

// MockClient is an in-memory Sender implementation for tests.
type MockClient struct {
	SentMessages []SentMessage
	Err          error
}

// NewMockClient creates an empty mock SMS client.
func NewMockClient() *MockClient {
	return &MockClient{SentMessages: []SentMessage{}}
}

// SendSMS records the message, or returns the configured error.
func (m *MockClient) SendSMS(ctx context.Context, from, to, body string) error {
	if m.Err != nil {
		return m.Err
	}
	m.SentMessages = append(m.SentMessages, SentMessage{From: from, To: to, Body: body})
	return nil
}

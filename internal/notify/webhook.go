package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/covehq/cove/internal/flow"
	"github.com/covehq/cove/internal/models"
)

// DefaultWebhookTimeout bounds a single outbound webhook delivery.
const DefaultWebhookTimeout = 10 * time.Second

// WebhookAnswer is one parsed answer in the webhook payload.
type WebhookAnswer struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// WebhookBusiness identifies the business in the webhook payload.
type WebhookBusiness struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// WebhookLead carries the lead's contact details and timestamps.
type WebhookLead struct {
	ID         string     `json:"id"`
	Name       string     `json:"name,omitempty"`
	Phone      string     `json:"phone"`
	Email      string     `json:"email,omitempty"`
	Message    string     `json:"message,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// WebhookPayload is the lead.qualified event envelope posted to configured
// webhook URLs when a lead completes its flow.
type WebhookPayload struct {
	Event     string                   `json:"event"`
	Timestamp time.Time                `json:"timestamp"`
	Business  WebhookBusiness          `json:"business"`
	Lead      WebhookLead              `json:"lead"`
	Answers   map[string]WebhookAnswer `json:"answers"`
	IsUrgent  bool                     `json:"is_urgent"`
}

// BuildWebhookPayload assembles the lead.qualified envelope. Answers are
// keyed by step key, pairing the stored {key}_code and {key}_label fields.
func BuildWebhookPayload(business *models.Business, lead *models.Lead, flowDef *models.FlowDefinition) WebhookPayload {
	answers := make(map[string]WebhookAnswer)
	for k, v := range lead.Answers {
		if key, ok := strings.CutSuffix(k, flow.AnswerCodeSuffix); ok {
			a := answers[key]
			a.Code = v
			answers[key] = a
			continue
		}
		if key, ok := strings.CutSuffix(k, flow.AnswerLabelSuffix); ok {
			a := answers[key]
			a.Label = v
			answers[key] = a
		}
	}

	return WebhookPayload{
		Event:     "lead.qualified",
		Timestamp: time.Now().UTC(),
		Business:  WebhookBusiness{ID: business.ID, Name: business.Name},
		Lead: WebhookLead{
			ID:         lead.ID,
			Name:       lead.Name,
			Phone:      lead.Phone,
			Email:      lead.Email,
			Message:    lead.Message,
			CreatedAt:  lead.CreatedAt,
			FinishedAt: lead.FinishedAt,
		},
		Answers:  answers,
		IsUrgent: flow.HasUrgentAnswer(lead, flowDef),
	}
}

// WebhookSender posts lead.qualified payloads to external endpoints.
type WebhookSender struct {
	httpClient *http.Client
}

// WebhookOption configures a WebhookSender.
type WebhookOption func(*WebhookSender)

// WithWebhookHTTPClient overrides the HTTP client used for deliveries.
func WithWebhookHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookSender) { w.httpClient = c }
}

// NewWebhookSender creates a webhook sender with a bounded-timeout client.
func NewWebhookSender(opts ...WebhookOption) *WebhookSender {
	w := &WebhookSender{
		httpClient: &http.Client{Timeout: DefaultWebhookTimeout},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Post delivers one payload to url. A non-empty secret is sent in the
// X-Cove-Secret header so receivers can authenticate the source.
func (w *WebhookSender) Post(ctx context.Context, url, secret string, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Cove-Secret", secret)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook endpoint returned status %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}

// Package notify decides which channels receive a completed-lead
// notification and dispatches to them through injected senders.
//
// Channels are attempted independently: a failure on one never blocks the
// others and never reaches the conversation path. Errors are collected and
// logged only.
package notify

import (
	"context"
	"log/slog"

	"github.com/covehq/cove/internal/email"
	"github.com/covehq/cove/internal/models"
	"github.com/covehq/cove/internal/phone"
	"github.com/covehq/cove/internal/twiliosms"
)

// ChannelPlan is the resolved per-business notification routing: which
// channels are on and where they deliver.
type ChannelPlan struct {
	SMSEnabled     bool
	SMSNumbers     []string
	EmailEnabled   bool
	EmailAddresses []string
	WebhookEnabled bool
	WebhookURLs    []string
	WebhookSecret  string
}

// Plan resolves the channel configuration for a business. The richer
// multi-channel config wins when present; otherwise the legacy single
// owner fields are used (SMS defaults on, email on only when an address
// exists, webhook off).
func Plan(business *models.Business) ChannelPlan {
	nc := business.Notifications

	plan := ChannelPlan{SMSEnabled: true}
	if business.OwnerNotifyPhone != "" {
		plan.SMSNumbers = []string{business.OwnerNotifyPhone}
	}
	if business.OwnerNotifyEmail != "" {
		plan.EmailEnabled = true
		plan.EmailAddresses = []string{business.OwnerNotifyEmail}
	}
	if nc == nil {
		return plan
	}

	if nc.SMS != nil {
		plan.SMSEnabled = nc.SMS.Enabled
		if len(nc.SMS.Targets) > 0 {
			plan.SMSNumbers = nc.SMS.Targets
		}
	}
	if nc.Email != nil {
		plan.EmailEnabled = nc.Email.Enabled
		if len(nc.Email.Targets) > 0 {
			plan.EmailAddresses = nc.Email.Targets
		}
	}
	if nc.Webhook != nil {
		plan.WebhookEnabled = nc.Webhook.Enabled
		plan.WebhookURLs = nc.Webhook.Targets
	}
	plan.WebhookSecret = nc.WebhookSecret
	return plan
}

// Dispatcher fans a completed lead out to the configured channels.
// Senders are injected; a nil sender disables its channel.
type Dispatcher struct {
	sms                twiliosms.Sender
	email              email.Sender
	webhooks           *WebhookSender
	defaultCountryCode string
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSMSSender injects the SMS sender.
func WithSMSSender(s twiliosms.Sender) DispatcherOption {
	return func(d *Dispatcher) { d.sms = s }
}

// WithEmailSender injects the email sender.
func WithEmailSender(s email.Sender) DispatcherOption {
	return func(d *Dispatcher) { d.email = s }
}

// WithWebhookSender injects the outbound webhook sender.
func WithWebhookSender(s *WebhookSender) DispatcherOption {
	return func(d *Dispatcher) { d.webhooks = s }
}

// WithCountryCode sets the default country code for normalizing
// notification phone numbers.
func WithCountryCode(code string) DispatcherOption {
	return func(d *Dispatcher) { d.defaultCountryCode = code }
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{defaultCountryCode: "+61"}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DispatchCompleted sends the lead-qualified notifications for a completed
// lead. It never returns an error: channel failures are logged and the
// remaining channels still run.
func (d *Dispatcher) DispatchCompleted(ctx context.Context, business *models.Business, lead *models.Lead, flowDef *models.FlowDefinition, summary string) {
	plan := Plan(business)
	var failed []string

	if plan.SMSEnabled && d.sms != nil && business.TwilioFromNumber != "" {
		for _, num := range plan.SMSNumbers {
			normalized := phone.Normalize(num, d.defaultCountryCode)
			if normalized == "" {
				slog.Warn("Dispatcher skipping unparseable notification number", "businessID", business.ID, "number", num)
				continue
			}
			if err := d.sms.SendSMS(ctx, business.TwilioFromNumber, normalized, summary); err != nil {
				slog.Error("Dispatcher SMS channel failed", "error", err, "businessID", business.ID, "to", normalized)
				failed = append(failed, "sms")
			}
		}
	}

	if plan.EmailEnabled && d.email != nil && len(plan.EmailAddresses) > 0 {
		subject := emailSubject(lead, business)
		if err := d.email.Send(ctx, plan.EmailAddresses, subject, summary); err != nil {
			slog.Error("Dispatcher email channel failed", "error", err, "businessID", business.ID)
			failed = append(failed, "email")
		}
	}

	if plan.WebhookEnabled && d.webhooks != nil && len(plan.WebhookURLs) > 0 {
		payload := BuildWebhookPayload(business, lead, flowDef)
		for _, url := range plan.WebhookURLs {
			if err := d.webhooks.Post(ctx, url, plan.WebhookSecret, payload); err != nil {
				slog.Error("Dispatcher webhook channel failed", "error", err, "businessID", business.ID, "url", url)
				failed = append(failed, "webhook")
			}
		}
	}

	if len(failed) > 0 {
		slog.Warn("Dispatcher some notification channels failed", "businessID", business.ID, "leadID", lead.ID, "channels", failed)
	} else {
		slog.Debug("Dispatcher notifications sent", "businessID", business.ID, "leadID", lead.ID)
	}
}

func emailSubject(lead *models.Lead, business *models.Business) string {
	who := lead.Name
	if who == "" {
		who = lead.Phone
	}
	return "New lead: " + who + " — " + business.Name
}

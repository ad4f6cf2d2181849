// Package models defines the core data structures for Cove.
//
// It includes types for businesses, leads, and conversation messages, which
// are shared across modules.
package models

import (
	"strings"
	"time"
)

// LeadStatus represents the lifecycle state of a lead conversation.
type LeadStatus string

const (
	// LeadStatusActive indicates the lead is mid-qualification.
	LeadStatusActive LeadStatus = "active"
	// LeadStatusCompleted indicates the lead answered every step.
	LeadStatusCompleted LeadStatus = "completed"
	// LeadStatusStopped indicates the lead sent a stop keyword.
	LeadStatusStopped LeadStatus = "stopped"
)

// IsValidLeadStatus checks if the given lead status is supported.
func IsValidLeadStatus(s LeadStatus) bool {
	switch s {
	case LeadStatusActive, LeadStatusCompleted, LeadStatusStopped:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further conversation turns are processed
// for a lead in this status.
func (s LeadStatus) IsTerminal() bool {
	return s == LeadStatusCompleted || s == LeadStatusStopped
}

// Lead represents one contact's in-progress or finished qualification
// conversation. Answers holds the parsed {key}_code / {key}_label fields
// produced by the reply interpreter. The urgent-alert and nudge flags are
// dedicated fields rather than entries in the answers map so that domain
// answers and engine bookkeeping stay separately typed.
type Lead struct {
	ID              string            `json:"id"`
	BusinessID      string            `json:"business_id"`
	Phone           string            `json:"phone"`
	Name            string            `json:"name,omitempty"`
	Email           string            `json:"email,omitempty"`
	Message         string            `json:"message,omitempty"`
	Status          LeadStatus        `json:"status"`
	CurrentStep     int               `json:"current_step"` // 1-based flow step index
	Answers         map[string]string `json:"answers"`
	LastInboundText string            `json:"last_inbound_text,omitempty"`
	UrgentAlertSent bool              `json:"urgent_alert_sent"`
	NudgeSent       bool              `json:"nudge_sent"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	FinishedAt      *time.Time        `json:"finished_at,omitempty"`
}

// FirstName returns the first whitespace-delimited token of the lead's
// name, or "there" when no name is known.
func (l *Lead) FirstName() string {
	fields := strings.Fields(l.Name)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

// LeadPatch is a partial field set applied to a lead after a conversation
// turn. Nil pointer fields are left unchanged by the store.
type LeadPatch struct {
	Answers         map[string]string `json:"answers,omitempty"`
	CurrentStep     *int              `json:"current_step,omitempty"`
	Status          *LeadStatus       `json:"status,omitempty"`
	LastInboundText *string           `json:"last_inbound_text,omitempty"`
	UrgentAlertSent *bool             `json:"urgent_alert_sent,omitempty"`
	NudgeSent       *bool             `json:"nudge_sent,omitempty"`
	FinishedAt      *time.Time        `json:"finished_at,omitempty"`
}

// Apply merges the patch into the lead in place. Answers merge key-wise;
// existing keys are overwritten, nothing is removed.
func (p *LeadPatch) Apply(l *Lead) {
	if len(p.Answers) > 0 {
		if l.Answers == nil {
			l.Answers = make(map[string]string, len(p.Answers))
		}
		for k, v := range p.Answers {
			l.Answers[k] = v
		}
	}
	if p.CurrentStep != nil {
		l.CurrentStep = *p.CurrentStep
	}
	if p.Status != nil {
		l.Status = *p.Status
	}
	if p.LastInboundText != nil {
		l.LastInboundText = *p.LastInboundText
	}
	if p.UrgentAlertSent != nil {
		l.UrgentAlertSent = *p.UrgentAlertSent
	}
	if p.NudgeSent != nil {
		l.NudgeSent = *p.NudgeSent
	}
	if p.FinishedAt != nil {
		l.FinishedAt = p.FinishedAt
	}
	l.UpdatedAt = time.Now()
}

// OperatingHours configures when a business accepts new conversations.
// Days use time.Weekday numbering (Sunday = 0).
type OperatingHours struct {
	Enabled           bool   `json:"enabled"`
	Timezone          string `json:"timezone,omitempty"` // e.g. "Australia/Sydney"
	OpenHour          int    `json:"open_hour"`          // inclusive, 24h clock
	CloseHour         int    `json:"close_hour"`         // exclusive
	ClosedDays        []int  `json:"closed_days,omitempty"`
	AfterHoursMessage string `json:"after_hours_message,omitempty"`
}

// ChannelConfig toggles one notification channel and its targets.
type ChannelConfig struct {
	Enabled bool     `json:"enabled"`
	Targets []string `json:"targets,omitempty"` // phone numbers, addresses, or URLs
}

// NotificationConfig is the per-business multi-channel notification setup.
// When absent, dispatch falls back to the legacy single owner fields.
type NotificationConfig struct {
	SMS           *ChannelConfig `json:"sms,omitempty"`
	Email         *ChannelConfig `json:"email,omitempty"`
	Webhook       *ChannelConfig `json:"webhook,omitempty"`
	WebhookSecret string         `json:"webhook_secret,omitempty"`
	NudgeAfterMin int            `json:"nudge_after_minutes,omitempty"`
	NudgeMessage  string         `json:"nudge_message,omitempty"`
}

// Business is a read-only input to the conversation engine. FlowConfig,
// when set and valid, overrides the industry template.
type Business struct {
	ID               string              `json:"id"`
	UserID           string              `json:"user_id,omitempty"`
	Name             string              `json:"name"`
	TwilioFromNumber string              `json:"twilio_from_number,omitempty"`
	OwnerNotifyPhone string              `json:"owner_notify_phone,omitempty"`
	OwnerNotifyEmail string              `json:"owner_notify_email,omitempty"`
	BookingLink      string              `json:"booking_link,omitempty"`
	Industry         string              `json:"industry,omitempty"`
	FlowConfig       *FlowDefinition     `json:"flow_config,omitempty"`
	OperatingHours   *OperatingHours     `json:"operating_hours,omitempty"`
	Notifications    *NotificationConfig `json:"notifications,omitempty"`
	Active           bool                `json:"active"`
	CreatedAt        time.Time           `json:"created_at"`
}

// MessageDirection indicates who produced a logged conversation message.
type MessageDirection string

const (
	// DirectionInbound is a message received from the lead.
	DirectionInbound MessageDirection = "inbound"
	// DirectionOutbound is a message sent to the lead or owner.
	DirectionOutbound MessageDirection = "outbound"
	// DirectionSystem is an internal event (e.g. missed call marker).
	DirectionSystem MessageDirection = "system"
)

// Message is one logged entry in a lead's conversation transcript.
type Message struct {
	ID        string           `json:"id"`
	LeadID    string           `json:"lead_id"`
	Direction MessageDirection `json:"direction"`
	Body      string           `json:"body"`
	CreatedAt time.Time        `json:"created_at"`
}

// InboundMessage is an inbound SMS event from the webhook handlers.
type InboundMessage struct {
	FromPhone string `json:"from_phone"`
	ToPhone   string `json:"to_phone"`
	Body      string `json:"body"`
}

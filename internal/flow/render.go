package flow

import (
	"strings"

	"github.com/covehq/cove/internal/models"
)

// stopKeywords short-circuit any conversation regardless of current step.
var stopKeywords = map[string]bool{
	"STOP":        true,
	"UNSUBSCRIBE": true,
	"CANCEL":      true,
	"END":         true,
	"QUIT":        true,
}

// IsStopKeyword reports whether a reply is an opt-out keyword.
// Detection is case-insensitive and whitespace-trimmed.
func IsStopKeyword(text string) bool {
	return stopKeywords[strings.ToUpper(strings.TrimSpace(text))]
}

// Default message templates used when a flow omits its own.
const (
	defaultIntro      = "Hi {firstName}, this is {businessName}. Quick questions so our team can help you faster."
	defaultCompletion = "Thanks! {businessName} will contact you shortly."
)

// renderTemplate performs the placeholder substitution shared by all
// outbound templates. Rendering is plain replacement; the only conditional
// is the booking-variant selection in BuildCompletion.
func renderTemplate(tmpl, firstName, businessName, bookingLink string) string {
	r := strings.NewReplacer(
		"{firstName}", firstName,
		"{businessName}", businessName,
		"{bookingLink}", bookingLink,
	)
	return r.Replace(tmpl)
}

// BuildIntro renders the flow's intro template followed by the first
// question, addressed to the lead by first name.
func BuildIntro(flow *models.FlowDefinition, leadName, businessName string) string {
	firstName := firstNameOrDefault(leadName)
	if businessName == "" {
		businessName = "our team"
	}
	tmpl := flow.Intro
	if tmpl == "" {
		tmpl = defaultIntro
	}
	intro := renderTemplate(tmpl, firstName, businessName, "")
	return intro + "\n\n" + flow.Steps[0].Question
}

// BuildCompletion renders the completion message, preferring the
// booking-aware variant when the business has a booking link and the flow
// defines one.
func BuildCompletion(flow *models.FlowDefinition, business *models.Business, leadName string) string {
	businessName := business.Name
	if businessName == "" {
		businessName = "our team"
	}
	firstName := firstNameOrDefault(leadName)

	if business.BookingLink != "" && flow.CompletionWithBooking != "" {
		return renderTemplate(flow.CompletionWithBooking, firstName, businessName, business.BookingLink)
	}
	tmpl := flow.Completion
	if tmpl == "" {
		tmpl = defaultCompletion
	}
	return renderTemplate(tmpl, firstName, businessName, "")
}

// BuildStoppedMessage is the opt-out confirmation sent after a stop keyword.
func BuildStoppedMessage(businessName string) string {
	if businessName == "" {
		businessName = "these"
	}
	return "No problem. You have been unsubscribed from " + businessName + " messages."
}

func firstNameOrDefault(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

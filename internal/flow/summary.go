package flow

import (
	"strings"

	"github.com/covehq/cove/internal/models"
)

// BuildSummary renders the owner-facing lead summary. The structure is a
// contract: header lines, a separator, one line per answered step in
// flow-step order (never answer-insertion order), a derived urgency line,
// and the booking link last. Downstream parsing by the business relies on
// this ordering.
func BuildSummary(lead *models.Lead, business *models.Business, flowDef *models.FlowDefinition) string {
	name := lead.Name
	if name == "" {
		name = "Unknown"
	}
	businessName := business.Name
	if businessName == "" {
		businessName = "-"
	}

	lines := []string{
		"NEW LEAD: " + name,
		"Business: " + businessName,
		"Phone: " + lead.Phone,
	}
	if lead.Email != "" {
		lines = append(lines, "Email: "+lead.Email)
	}
	if lead.Message != "" {
		lines = append(lines, "Message: "+lead.Message)
	}
	lines = append(lines, "---")

	for i := range flowDef.Steps {
		step := &flowDef.Steps[i]
		label := lead.Answers[step.Key+AnswerLabelSuffix]
		if label == "" {
			// Steps a stopped conversation never reached are omitted.
			continue
		}
		lines = append(lines, humanizeKey(step.Key)+": "+label)
	}

	lines = append(lines, "---")
	if HasUrgentAnswer(lead, flowDef) {
		lines = append(lines, "→ URGENT: Call this lead immediately.")
	} else {
		lines = append(lines, "→ Call back in preferred time window.")
	}

	if business.BookingLink != "" {
		lines = append(lines, "Booking: "+business.BookingLink)
	}

	return strings.Join(lines, "\n")
}

// HasUrgentAnswer reports whether any answered step's code is one of that
// step's urgent values.
func HasUrgentAnswer(lead *models.Lead, flowDef *models.FlowDefinition) bool {
	for i := range flowDef.Steps {
		step := &flowDef.Steps[i]
		code := lead.Answers[step.Key+AnswerCodeSuffix]
		if code != "" && step.IsUrgentValue(code) {
			return true
		}
	}
	return false
}

// BuildUrgentAlert renders the short immediate owner alert for one urgent
// answer. It is distinct from the full summary, which only fires at flow
// completion.
func BuildUrgentAlert(lead *models.Lead, business *models.Business, stepKey, answerLabel string) string {
	businessName := business.Name
	if businessName == "" {
		businessName = "Business"
	}
	name := lead.Name
	if name == "" {
		name = "Unknown"
	}

	lines := []string{
		"URGENT LEAD — " + businessName,
		"Name: " + name,
		"Phone: " + lead.Phone,
		"Reason: " + answerLabel,
	}
	if lead.Message != "" {
		lines = append(lines, "Message: "+lead.Message)
	}
	lines = append(lines, "→ Call this lead NOW.")
	return strings.Join(lines, "\n")
}

// humanizeKey turns a step key into a display label: underscores become
// spaces and each word is title-cased ("patient_type" -> "Patient Type").
func humanizeKey(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

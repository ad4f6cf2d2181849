package flow

import (
	"strings"
	"time"

	"github.com/covehq/cove/internal/models"
)

// ShouldNudge reports whether a stalled active lead is due a single
// follow-up message. Nudging requires the business to opt in with a
// nudge-after-minutes setting; a lead is nudged at most once.
func ShouldNudge(lead *models.Lead, business *models.Business, now time.Time) bool {
	if business.Notifications == nil || business.Notifications.NudgeAfterMin <= 0 {
		return false
	}
	if lead.Status != models.LeadStatusActive || lead.NudgeSent {
		return false
	}

	lastActivity := lead.UpdatedAt
	if lastActivity.IsZero() {
		lastActivity = lead.CreatedAt
	}
	if lastActivity.IsZero() {
		return false
	}
	elapsed := now.Sub(lastActivity)
	return elapsed >= time.Duration(business.Notifications.NudgeAfterMin)*time.Minute
}

// BuildNudgeMessage renders the follow-up message for a stalled lead: the
// business's custom nudge template when configured, otherwise a generic
// check-in repeating the pending question.
func BuildNudgeMessage(business *models.Business, lead *models.Lead, flowDef *models.FlowDefinition) string {
	if business.Notifications != nil && business.Notifications.NudgeMessage != "" {
		businessName := business.Name
		if businessName == "" {
			businessName = "us"
		}
		return renderTemplate(business.Notifications.NudgeMessage, firstNameOrDefault(lead.Name), businessName, business.BookingLink)
	}

	question := ""
	if step := StepAt(flowDef, lead.CurrentStep); step != nil {
		question = step.Question
	}
	return strings.TrimSpace("Hey, just checking in! We still have your enquiry open. Reply to continue:\n\n" + question)
}

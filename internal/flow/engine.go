package flow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/covehq/cove/internal/models"
	"github.com/covehq/cove/internal/phone"
)

// ReplyResolver is the optional AI fallback interpreter. It is consulted
// only after exact and fuzzy matching have both failed on a structured
// step. Implementations return the resolved option value, or "" when the
// reply does not map to any option. A nil resolver is a valid
// configuration; the engine degrades to exact/fuzzy-only.
type ReplyResolver interface {
	ResolveReply(ctx context.Context, step *models.Step, reply string) (string, error)
}

// TransitionKind classifies the outcome of one conversation turn.
type TransitionKind string

const (
	// TransitionStopped means a stop keyword terminated the conversation.
	TransitionStopped TransitionKind = "stopped"
	// TransitionInvalid means the reply was rejected; the lead is re-prompted.
	TransitionInvalid TransitionKind = "invalid"
	// TransitionAdvanced means the answer was recorded and the next question follows.
	TransitionAdvanced TransitionKind = "advanced"
	// TransitionCompleted means the final step was answered.
	TransitionCompleted TransitionKind = "completed"
	// TransitionNone means the turn was a no-op (step index out of range).
	TransitionNone TransitionKind = "none"
)

// UrgentAlert is the immediate owner notification emitted when an urgent
// answer is detected mid-flow. It fires within one SMS round-trip rather
// than waiting for the remaining questions.
type UrgentAlert struct {
	To          string
	Body        string
	StepKey     string
	AnswerLabel string
}

// Transition is the engine's decision for one inbound reply. The engine is
// a pure decision function: the caller persists the patch first, then
// performs the sends, so a delivery failure never leaves lead state
// ambiguous.
type Transition struct {
	Kind  TransitionKind
	Patch *models.LeadPatch // nil when the lead is unchanged
	Reply string            // outbound message to the lead, "" for none
	Alert *UrgentAlert      // secondary owner alert, usually nil
}

// Engine drives a lead's conversation state machine through a flow
// definition. One Advance call processes exactly one (lead, reply) pair;
// the engine holds no mutable state of its own.
//
// Terminal statuses are enforced by the caller's lookup filter (only
// active leads are ever loaded for a conversation turn), not inside the
// engine.
type Engine struct {
	resolver           ReplyResolver
	defaultCountryCode string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithResolver injects the AI fallback reply interpreter.
func WithResolver(r ReplyResolver) EngineOption {
	return func(e *Engine) { e.resolver = r }
}

// WithDefaultCountryCode sets the country code used when normalizing the
// owner alert phone number.
func WithDefaultCountryCode(code string) EngineOption {
	return func(e *Engine) { e.defaultCountryCode = code }
}

// NewEngine creates a conversation engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{defaultCountryCode: "+61"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Advance decides the outcome of one inbound reply for an active lead.
func (e *Engine) Advance(ctx context.Context, lead *models.Lead, business *models.Business, flowDef *models.FlowDefinition, text string) Transition {
	trimmed := strings.TrimSpace(text)

	if IsStopKeyword(trimmed) {
		slog.Info("Engine stop keyword received", "leadID", lead.ID, "businessID", business.ID)
		now := time.Now()
		status := models.LeadStatusStopped
		return Transition{
			Kind: TransitionStopped,
			Patch: &models.LeadPatch{
				Status:          &status,
				LastInboundText: &trimmed,
				FinishedAt:      &now,
			},
			Reply: BuildStoppedMessage(business.Name),
		}
	}

	step := StepAt(flowDef, lead.CurrentStep)
	if step == nil {
		// Step index past the flow means corrupted state; swallow the turn.
		slog.Warn("Engine step out of range, ignoring reply",
			"leadID", lead.ID, "currentStep", lead.CurrentStep, "steps", len(flowDef.Steps))
		return Transition{Kind: TransitionNone}
	}

	effective := trimmed
	valid := ValidateReply(step, trimmed)
	if !valid && !step.FreeText && e.resolver != nil {
		resolved, err := e.resolver.ResolveReply(ctx, step, trimmed)
		if err != nil {
			// Resolver failure falls through to the standard invalid path.
			slog.Warn("Engine reply resolver failed", "leadID", lead.ID, "stepKey", step.Key, "error", err)
		} else if resolved != "" {
			slog.Debug("Engine reply resolved by fallback interpreter",
				"leadID", lead.ID, "stepKey", step.Key, "resolved", resolved)
			valid = true
			effective = resolved
		}
	}

	if !valid {
		slog.Debug("Engine invalid reply, re-prompting", "leadID", lead.ID, "stepKey", step.Key)
		reply := step.Question
		if step.InvalidText != "" {
			reply = step.InvalidText + "\n" + step.Question
		}
		return Transition{Kind: TransitionInvalid, Reply: reply}
	}

	parsed := ParseReply(step, effective)
	patch := &models.LeadPatch{
		Answers:         parsed,
		LastInboundText: &trimmed,
	}

	var alert *UrgentAlert
	if IsUrgentReply(step, effective) && !lead.UrgentAlertSent && business.OwnerNotifyPhone != "" {
		ownerPhone := phone.Normalize(business.OwnerNotifyPhone, e.defaultCountryCode)
		if ownerPhone != "" {
			answerLabel := parsed[step.Key+AnswerLabelSuffix]
			if answerLabel == "" {
				answerLabel = trimmed
			}
			alert = &UrgentAlert{
				To:          ownerPhone,
				Body:        BuildUrgentAlert(lead, business, step.Key, answerLabel),
				StepKey:     step.Key,
				AnswerLabel: answerLabel,
			}
			// Sticky for the life of the lead: at most one urgent alert,
			// even if later steps are also urgent.
			sent := true
			patch.UrgentAlertSent = &sent
			slog.Info("Engine urgent answer detected", "leadID", lead.ID, "stepKey", step.Key)
		}
	}

	nextStep := lead.CurrentStep + 1
	patch.CurrentStep = &nextStep

	if lead.CurrentStep >= len(flowDef.Steps) {
		now := time.Now()
		status := models.LeadStatusCompleted
		patch.Status = &status
		patch.FinishedAt = &now
		slog.Info("Engine flow completed", "leadID", lead.ID, "businessID", business.ID, "steps", len(flowDef.Steps))
		return Transition{
			Kind:  TransitionCompleted,
			Patch: patch,
			Reply: BuildCompletion(flowDef, business, lead.Name),
			Alert: alert,
		}
	}

	slog.Debug("Engine advancing to next step", "leadID", lead.ID, "fromStep", lead.CurrentStep, "toStep", nextStep)
	return Transition{
		Kind:  TransitionAdvanced,
		Patch: patch,
		Reply: flowDef.Steps[nextStep-1].Question,
		Alert: alert,
	}
}

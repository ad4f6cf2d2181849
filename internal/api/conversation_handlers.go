// Package api provides HTTP handlers for the Twilio conversation webhooks.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/covehq/cove/internal/flow"
	"github.com/covehq/cove/internal/hours"
	"github.com/covehq/cove/internal/models"
	"github.com/covehq/cove/internal/phone"
)

// smsInboundHandler processes one inbound SMS from Twilio. Unknown numbers
// and phones with no active conversation are acknowledged with 200 and no
// reply: the webhook must never bounce or auto-respond to strangers.
func (s *Server) smsInboundHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.smsInboundHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.smsInboundHandler: failed to parse form", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid Twilio payload"))
		return
	}

	from := phone.Normalize(r.FormValue("From"), s.defaultCountryCode)
	to := phone.Normalize(r.FormValue("To"), s.defaultCountryCode)
	body := r.FormValue("Body")
	slog.Debug("Server.smsInboundHandler: inbound SMS", "from", from, "to", to)

	if from == "" || to == "" {
		slog.Warn("Server.smsInboundHandler: missing from/to")
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid Twilio payload"))
		return
	}

	business, err := s.st.GetBusinessByNumber(to)
	if err != nil {
		slog.Error("Server.smsInboundHandler: business lookup failed", "error", err, "to", to)
		writeJSONResponse(w, http.StatusOK, models.Success(nil))
		return
	}
	if business == nil || !business.Active {
		slog.Debug("Server.smsInboundHandler: no active business for number", "to", to)
		writeJSONResponse(w, http.StatusOK, models.Success(nil))
		return
	}

	lead, err := s.st.ActiveLead(business.ID, from)
	if err != nil {
		slog.Error("Server.smsInboundHandler: lead lookup failed", "error", err, "businessID", business.ID)
		writeJSONResponse(w, http.StatusOK, models.Success(nil))
		return
	}
	if lead == nil {
		slog.Debug("Server.smsInboundHandler: no active lead for phone", "businessID", business.ID, "from", from)
		writeJSONResponse(w, http.StatusOK, models.Success(nil))
		return
	}

	s.logMessage(lead.ID, models.DirectionInbound, body)

	flowDef := flow.ResolveFlow(business)
	t := s.eng.Advance(r.Context(), lead, business, flowDef, body)
	s.applyTransition(r, business, lead, flowDef, t)

	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}

// applyTransition persists the engine's patch and then performs the sends.
// Persist-then-send keeps lead state authoritative: a lost reply SMS can be
// retyped by the lead, a lost state write cannot.
func (s *Server) applyTransition(r *http.Request, business *models.Business, lead *models.Lead, flowDef *models.FlowDefinition, t flow.Transition) {
	ctx := r.Context()
	current := lead

	if t.Patch != nil {
		patched, err := s.st.PatchLead(lead.ID, t.Patch)
		if err != nil {
			slog.Error("Server.applyTransition: failed to persist lead patch", "error", err, "leadID", lead.ID, "kind", t.Kind)
			return
		}
		current = patched
	}

	if t.Reply != "" {
		if err := s.sms.SendSMS(ctx, business.TwilioFromNumber, current.Phone, t.Reply); err != nil {
			slog.Error("Server.applyTransition: reply SMS failed", "error", err, "leadID", current.ID, "kind", t.Kind)
		} else {
			s.logMessage(current.ID, models.DirectionOutbound, t.Reply)
		}
	}

	if t.Alert != nil {
		if err := s.sms.SendSMS(ctx, business.TwilioFromNumber, t.Alert.To, t.Alert.Body); err != nil {
			slog.Error("Server.applyTransition: urgent alert SMS failed", "error", err, "leadID", current.ID, "stepKey", t.Alert.StepKey)
		} else {
			slog.Info("Server.applyTransition: urgent alert sent", "leadID", current.ID, "stepKey", t.Alert.StepKey)
		}
	}

	if t.Kind == flow.TransitionCompleted {
		summary := flow.BuildSummary(current, business, flowDef)
		s.dispatcher.DispatchCompleted(ctx, business, current, flowDef, summary)
		slog.Info("Server.applyTransition: lead completed", "leadID", current.ID, "businessID", business.ID)
	}
}

// voiceInboundHandler turns a missed call into a new qualification
// conversation. Twilio requires a TwiML response regardless of outcome, so
// every path answers 200 with the same spoken prompt.
func (s *Server) voiceInboundHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.voiceInboundHandler: failed to parse form", "error", err)
		writeVoiceTwiML(w)
		return
	}

	from := phone.Normalize(r.FormValue("From"), s.defaultCountryCode)
	to := phone.Normalize(r.FormValue("To"), s.defaultCountryCode)
	slog.Debug("Server.voiceInboundHandler: inbound call", "from", from, "to", to)

	if from == "" || to == "" {
		slog.Debug("Server.voiceInboundHandler: invalid from/to, skipping")
		writeVoiceTwiML(w)
		return
	}

	business, err := s.st.GetBusinessByNumber(to)
	if err != nil || business == nil || !business.Active {
		slog.Debug("Server.voiceInboundHandler: no active business for number", "to", to)
		writeVoiceTwiML(w)
		return
	}

	// The SMS work happens before the TwiML response is written.
	if existing, err := s.st.RecentActiveLeadByPhone(business.ID, from, s.duplicateWindow); err == nil && existing != nil {
		slog.Debug("Server.voiceInboundHandler: duplicate lead, skipping", "leadID", existing.ID)
		writeVoiceTwiML(w)
		return
	}

	lead := &models.Lead{
		BusinessID:  business.ID,
		Phone:       from,
		Message:     "Missed call",
		Status:      models.LeadStatusActive,
		CurrentStep: 1,
	}
	if err := s.st.CreateLead(lead); err != nil {
		slog.Error("Server.voiceInboundHandler: failed to create lead", "error", err)
		writeVoiceTwiML(w)
		return
	}
	s.logMessage(lead.ID, models.DirectionSystem, "Missed call")

	s.sendConversationOpener(r, business, lead)
	writeVoiceTwiML(w)
}

// sendConversationOpener sends the intro question, or the after-hours
// message when the business is closed.
func (s *Server) sendConversationOpener(r *http.Request, business *models.Business, lead *models.Lead) {
	ctx := r.Context()
	var body string
	if !hours.Within(business, time.Now()) {
		body = hours.AfterHoursMessage(business)
		slog.Debug("Server.sendConversationOpener: outside operating hours", "businessID", business.ID)
	} else {
		flowDef := flow.ResolveFlow(business)
		body = flow.BuildIntro(flowDef, lead.Name, business.Name)
	}

	if err := s.sms.SendSMS(ctx, business.TwilioFromNumber, lead.Phone, body); err != nil {
		slog.Error("Server.sendConversationOpener: intro SMS failed", "error", err, "leadID", lead.ID)
		return
	}
	s.logMessage(lead.ID, models.DirectionOutbound, body)
	slog.Info("Server.sendConversationOpener: conversation opened", "leadID", lead.ID, "businessID", business.ID)
}

// writeVoiceTwiML answers a voice webhook with a short spoken prompt.
func writeVoiceTwiML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	const twiml = `<?xml version="1.0" encoding="UTF-8"?><Response><Say voice="Polly.Olivia" language="en-AU">Thanks for calling. We will send you a text message shortly.</Say></Response>`
	if _, err := w.Write([]byte(twiml)); err != nil {
		slog.Error("Server.writeVoiceTwiML: failed to write TwiML", "error", err)
	}
}

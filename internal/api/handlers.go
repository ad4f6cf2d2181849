// Package api provides HTTP handlers for lead intake and operational endpoints.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/covehq/cove/internal/flow"
	"github.com/covehq/cove/internal/models"
	"github.com/covehq/cove/internal/phone"
)

// createLeadRequest is the JSON body for web-form lead creation.
type createLeadRequest struct {
	BusinessID string `json:"business_id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Message    string `json:"message"`
}

// createLeadHandler creates a lead from a web form and opens the SMS
// conversation. A phone with a recent active conversation is answered with
// the existing lead instead of a duplicate.
func (s *Server) createLeadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.createLeadHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req createLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createLeadHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.BusinessID == "" || req.Phone == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("business_id and phone are required"))
		return
	}

	business, err := s.st.GetBusiness(req.BusinessID)
	if err != nil {
		slog.Error("Server.createLeadHandler: business lookup failed", "error", err, "businessID", req.BusinessID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
		return
	}
	if business == nil || !business.Active {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Business not found or inactive"))
		return
	}

	normalized := phone.Normalize(req.Phone, s.defaultCountryCode)
	if normalized == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid phone format"))
		return
	}

	if existing, err := s.st.RecentActiveLeadByPhone(business.ID, normalized, s.duplicateWindow); err == nil && existing != nil {
		slog.Debug("Server.createLeadHandler: duplicate lead", "leadID", existing.ID)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Lead already active", map[string]string{"lead_id": existing.ID}))
		return
	}

	lead := &models.Lead{
		BusinessID:  business.ID,
		Phone:       normalized,
		Name:        req.Name,
		Email:       req.Email,
		Message:     req.Message,
		Status:      models.LeadStatusActive,
		CurrentStep: 1,
	}
	if err := s.st.CreateLead(lead); err != nil {
		slog.Error("Server.createLeadHandler: failed to create lead", "error", err, "businessID", business.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
		return
	}

	s.sendConversationOpener(r, business, lead)

	slog.Info("Server.createLeadHandler: lead created", "leadID", lead.ID, "businessID", business.ID)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"lead_id": lead.ID,
		"step":    lead.CurrentStep,
	}))
}

// genericWebhookRequest is the JSON body accepted from CRM webhooks.
type genericWebhookRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Message string `json:"message"`
	Source  string `json:"source"`
}

// genericWebhookHandler accepts a lead pushed by an external CRM. The
// source tag, when present, is folded into the lead message.
func (s *Server) genericWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	businessID := r.PathValue("businessID")

	business, err := s.st.GetBusiness(businessID)
	if err != nil {
		slog.Error("Server.genericWebhookHandler: business lookup failed", "error", err, "businessID", businessID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
		return
	}
	if business == nil || !business.Active {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Business not found"))
		return
	}

	var req genericWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.genericWebhookHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Phone == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("phone is required"))
		return
	}

	normalized := phone.Normalize(req.Phone, s.defaultCountryCode)
	if normalized == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid phone format"))
		return
	}

	if existing, err := s.st.RecentActiveLeadByPhone(business.ID, normalized, s.duplicateWindow); err == nil && existing != nil {
		writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"lead_id": existing.ID}))
		return
	}

	message := req.Message
	if req.Source != "" {
		message = fmt.Sprintf("[%s] %s", req.Source, req.Message)
	}

	lead := &models.Lead{
		BusinessID:  business.ID,
		Phone:       normalized,
		Name:        req.Name,
		Email:       req.Email,
		Message:     message,
		Status:      models.LeadStatusActive,
		CurrentStep: 1,
	}
	if err := s.st.CreateLead(lead); err != nil {
		slog.Error("Server.genericWebhookHandler: failed to create lead", "error", err, "businessID", business.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
		return
	}

	s.sendConversationOpener(r, business, lead)

	slog.Info("Server.genericWebhookHandler: lead created", "leadID", lead.ID, "businessID", business.ID, "source", req.Source)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"lead_id": lead.ID}))
}

// industriesHandler lists the built-in industry flow templates.
func (s *Server) industriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(flow.Industries()))
}

// generateFlowRequest is the JSON body for AI flow generation.
type generateFlowRequest struct {
	Industry     string `json:"industry"`
	BusinessName string `json:"business_name"`
	Context      string `json:"context"`
}

// generateFlowHandler asks the GenAI client for a custom qualification
// flow. The result is validated before being returned; it is not persisted
// until the caller attaches it to a business.
func (s *Server) generateFlowHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.gaClient == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("AI flow generation not configured"))
		return
	}
	var req generateFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.generateFlowHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Industry == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("industry is required"))
		return
	}

	flowDef, err := s.gaClient.GenerateFlow(r.Context(), req.Industry, req.BusinessName, req.Context)
	if err != nil {
		slog.Error("Server.generateFlowHandler: flow generation failed", "error", err, "industry", req.Industry)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to generate flow"))
		return
	}

	slog.Info("Server.generateFlowHandler: flow generated", "industry", req.Industry, "steps", len(flowDef.Steps))
	writeJSONResponse(w, http.StatusOK, models.Success(flowDef))
}

// nudgeHandler triggers one nudge sweep on demand.
func (s *Server) nudgeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	nudged := s.runNudgeSweep(r.Context())
	slog.Info("Server.nudgeHandler: manual nudge sweep finished", "nudged", nudged)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]int{"nudged": nudged}))
}

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "healthy"}))
}

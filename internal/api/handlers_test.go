package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/covehq/cove/internal/flow"
	"github.com/covehq/cove/internal/models"
	"github.com/covehq/cove/internal/notify"
	"github.com/covehq/cove/internal/store"
	"github.com/covehq/cove/internal/testutil"
	"github.com/covehq/cove/internal/twiliosms"
)

// newTestServer wires a Server over the in-memory store and mock SMS
// client, with a seeded active business.
func newTestServer(t *testing.T) (*Server, *store.InMemoryStore, *twiliosms.MockClient, *models.Business) {
	t.Helper()
	st := store.NewInMemoryStore()
	sms := twiliosms.NewMockClient()
	dispatcher := notify.NewDispatcher(notify.WithSMSSender(sms))
	srv := NewServer(st, sms, dispatcher, nil)

	business := testutil.NewTestBusiness()
	if err := st.CreateBusiness(business); err != nil {
		t.Fatalf("seed business: %v", err)
	}
	return srv, st, sms, business
}

func seedActiveLead(t *testing.T, st store.Store, business *models.Business) *models.Lead {
	t.Helper()
	lead := testutil.NewTestLead(business.ID)
	if err := st.CreateLead(lead); err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	return lead
}

func postForm(t *testing.T, handler http.HandlerFunc, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func smsForm(from, to, body string) url.Values {
	return url.Values{"From": {from}, "To": {to}, "Body": {body}}
}

func TestSMSInboundHandler_MethodNotAllowed(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/sms/inbound", nil)
	rr := httptest.NewRecorder()
	srv.smsInboundHandler(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "GET sms inbound")
	if rr.Header().Get("Allow") != http.MethodPost {
		t.Error("expected Allow header")
	}
}

func TestSMSInboundHandler_MissingNumbers(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rr := postForm(t, srv.smsInboundHandler, "/api/sms/inbound", url.Values{"Body": {"hi"}})
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "missing from/to")
}

func TestSMSInboundHandler_UnknownNumberIsSilent(t *testing.T) {
	srv, _, sms, _ := newTestServer(t)
	rr := postForm(t, srv.smsInboundHandler, "/api/sms/inbound",
		smsForm("+61412345678", "+61499999999", "hello"))

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "unknown business number")
	if len(sms.SentMessages) != 0 {
		t.Error("must never auto-respond for an unknown number")
	}
}

func TestSMSInboundHandler_NoActiveLeadIsSilent(t *testing.T) {
	srv, _, sms, business := newTestServer(t)
	rr := postForm(t, srv.smsInboundHandler, "/api/sms/inbound",
		smsForm("+61412345678", business.TwilioFromNumber, "hello"))

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "no active lead")
	if len(sms.SentMessages) != 0 {
		t.Error("must not reply to a phone without a conversation")
	}
}

func TestSMSInboundHandler_InactiveBusinessIsSilent(t *testing.T) {
	srv, st, sms, business := newTestServer(t)
	business.Active = false
	if err := st.UpdateBusiness(business); err != nil {
		t.Fatal(err)
	}
	seedActiveLead(t, st, business)

	rr := postForm(t, srv.smsInboundHandler, "/api/sms/inbound",
		smsForm("+61412345678", business.TwilioFromNumber, "A"))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "inactive business")
	if len(sms.SentMessages) != 0 {
		t.Error("inactive business must not converse")
	}
}

func TestSMSInboundHandler_ValidReplyAdvances(t *testing.T) {
	srv, st, sms, business := newTestServer(t)
	lead := seedActiveLead(t, st, business)

	rr := postForm(t, srv.smsInboundHandler, "/api/sms/inbound",
		smsForm(lead.Phone, business.TwilioFromNumber, "A"))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "valid reply")

	updated, _ := st.GetLead(lead.ID)
	if updated.CurrentStep != 2 {
		t.Errorf("expected step 2, got %d", updated.CurrentStep)
	}
	if updated.Answers["patient_type_code"] != "A" {
		t.Errorf("answer not recorded: %+v", updated.Answers)
	}
	if len(sms.SentMessages) != 1 {
		t.Fatalf("expected one reply SMS, got %d", len(sms.SentMessages))
	}
	reply := sms.SentMessages[0]
	if reply.From != business.TwilioFromNumber || reply.To != lead.Phone {
		t.Errorf("unexpected addressing %+v", reply)
	}
	if reply.Body != flow.Template("dental").Steps[1].Question {
		t.Errorf("expected next question, got %q", reply.Body)
	}

	// Transcript carries the inbound text and the outbound question.
	msgs, _ := st.MessagesByLead(lead.ID)
	if len(msgs) != 2 {
		t.Fatalf("expected two transcript rows, got %d", len(msgs))
	}
	if msgs[0].Direction != models.DirectionInbound || msgs[0].Body != "A" {
		t.Errorf("unexpected inbound row %+v", msgs[0])
	}
	if msgs[1].Direction != models.DirectionOutbound {
		t.Errorf("unexpected outbound row %+v", msgs[1])
	}
}

func TestSMSInboundHandler_InvalidReplyRepromptsWithoutStateChange(t *testing.T) {
	srv, st, sms, business := newTestServer(t)
	lead := seedActiveLead(t, st, business)

	postForm(t, srv.smsInboundHandler, "/api/sms/inbound",
		smsForm(lead.Phone, business.TwilioFromNumber, "banana boat"))

	updated, _ := st.GetLead(lead.ID)
	if updated.CurrentStep != 1 {
		t.Errorf("invalid reply must not advance, got step %d", updated.CurrentStep)
	}
	if len(sms.SentMessages) != 1 {
		t.Fatalf("expected one re-prompt SMS, got %d", len(sms.SentMessages))
	}
	step := flow.Template("dental").Steps[0]
	if sms.SentMessages[0].Body != step.InvalidText+"\n"+step.Question {
		t.Errorf("unexpected re-prompt %q", sms.SentMessages[0].Body)
	}
}

func TestSMSInboundHandler_StopKeyword(t *testing.T) {
	srv, st, sms, business := newTestServer(t)
	lead := seedActiveLead(t, st, business)

	postForm(t, srv.smsInboundHandler, "/api/sms/inbound",
		smsForm(lead.Phone, business.TwilioFromNumber, "STOP"))

	updated, _ := st.GetLead(lead.ID)
	if updated.Status != models.LeadStatusStopped {
		t.Errorf("expected stopped lead, got %s", updated.Status)
	}
	if updated.FinishedAt == nil {
		t.Error("expected finished timestamp")
	}
	if len(sms.SentMessages) != 1 || !strings.Contains(sms.SentMessages[0].Body, "unsubscribed") {
		t.Errorf("expected opt-out confirmation, got %+v", sms.SentMessages)
	}
}

func TestSMSInboundHandler_UrgentAnswerAlertsOwner(t *testing.T) {
	srv, st, sms, business := newTestServer(t)
	lead := seedActiveLead(t, st, business)
	lead.CurrentStep = 2
	if _, err := st.PatchLead(lead.ID, &models.LeadPatch{CurrentStep: &lead.CurrentStep}); err != nil {
		t.Fatal(err)
	}

	postForm(t, srv.smsInboundHandler, "/api/sms/inbound",
		smsForm(lead.Phone, business.TwilioFromNumber, "1"))

	if len(sms.SentMessages) != 2 {
		t.Fatalf("expected reply plus alert, got %d messages", len(sms.SentMessages))
	}
	alert := sms.SentMessages[1]
	if alert.To != business.OwnerNotifyPhone {
		t.Errorf("expected alert to owner, got %q", alert.To)
	}
	if !strings.Contains(alert.Body, "URGENT LEAD") {
		t.Errorf("unexpected alert body %q", alert.Body)
	}

	updated, _ := st.GetLead(lead.ID)
	if !updated.UrgentAlertSent {
		t.Error("expected urgent flag persisted")
	}
}

func TestSMSInboundHandler_CompletionNotifiesOwner(t *testing.T) {
	srv, st, sms, business := newTestServer(t)
	lead := seedActiveLead(t, st, business)
	step := 3
	if _, err := st.PatchLead(lead.ID, &models.LeadPatch{
		CurrentStep: &step,
		Answers: map[string]string{
			"patient_type_code": "A", "patient_type_label": "New patient",
			"intent_code": "2", "intent_label": "Routine check-up and clean",
		},
	}); err != nil {
		t.Fatal(err)
	}

	postForm(t, srv.smsInboundHandler, "/api/sms/inbound",
		smsForm(lead.Phone, business.TwilioFromNumber, "C"))

	updated, _ := st.GetLead(lead.ID)
	if updated.Status != models.LeadStatusCompleted {
		t.Fatalf("expected completed lead, got %s", updated.Status)
	}

	// Completion reply to the lead, then the owner summary.
	if len(sms.SentMessages) != 2 {
		t.Fatalf("expected completion plus summary, got %d messages", len(sms.SentMessages))
	}
	if sms.SentMessages[0].To != lead.Phone {
		t.Errorf("expected completion to lead, got %q", sms.SentMessages[0].To)
	}
	summary := sms.SentMessages[1]
	if summary.To != business.OwnerNotifyPhone {
		t.Errorf("expected summary to owner, got %q", summary.To)
	}
	if !strings.Contains(summary.Body, "NEW LEAD: Sarah Jones") {
		t.Errorf("unexpected summary %q", summary.Body)
	}
	if !strings.Contains(summary.Body, "Timing: Next available") {
		t.Errorf("expected final answer in summary, got %q", summary.Body)
	}
}

func TestVoiceInboundHandler_CreatesLeadAndTexts(t *testing.T) {
	srv, st, sms, business := newTestServer(t)

	rr := postForm(t, srv.voiceInboundHandler, "/api/voice/inbound",
		url.Values{"From": {"+61412345678"}, "To": {business.TwilioFromNumber}})

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "voice inbound")
	if ct := rr.Header().Get("Content-Type"); ct != "text/xml" {
		t.Errorf("expected TwiML content type, got %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "<Say") {
		t.Errorf("expected spoken prompt, got %q", rr.Body.String())
	}

	lead, _ := st.ActiveLead(business.ID, "+61412345678")
	if lead == nil {
		t.Fatal("expected lead created from missed call")
	}
	if lead.Message != "Missed call" || lead.CurrentStep != 1 {
		t.Errorf("unexpected lead %+v", lead)
	}

	if len(sms.SentMessages) != 1 {
		t.Fatalf("expected intro SMS, got %d messages", len(sms.SentMessages))
	}
	intro := sms.SentMessages[0]
	if intro.To != "+61412345678" {
		t.Errorf("unexpected recipient %q", intro.To)
	}
	if !strings.Contains(intro.Body, flow.Template("dental").Steps[0].Question) {
		t.Errorf("expected first question in opener, got %q", intro.Body)
	}
}

func TestVoiceInboundHandler_DuplicateWindowSuppressesSecondLead(t *testing.T) {
	srv, st, sms, business := newTestServer(t)
	form := url.Values{"From": {"+61412345678"}, "To": {business.TwilioFromNumber}}

	postForm(t, srv.voiceInboundHandler, "/api/voice/inbound", form)
	postForm(t, srv.voiceInboundHandler, "/api/voice/inbound", form)

	leads, _ := st.ActiveLeads()
	if len(leads) != 1 {
		t.Errorf("expected one lead for repeated calls, got %d", len(leads))
	}
	if len(sms.SentMessages) != 1 {
		t.Errorf("expected one opener for repeated calls, got %d", len(sms.SentMessages))
	}
}

func TestVoiceInboundHandler_UnknownNumberStillAnswersTwiML(t *testing.T) {
	srv, _, sms, _ := newTestServer(t)
	rr := postForm(t, srv.voiceInboundHandler, "/api/voice/inbound",
		url.Values{"From": {"+61412345678"}, "To": {"+61499999999"}})

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "unknown voice number")
	if !strings.Contains(rr.Body.String(), "<Response>") {
		t.Error("Twilio requires TwiML on every voice response")
	}
	if len(sms.SentMessages) != 0 {
		t.Error("unknown number must not trigger an SMS")
	}
}

func TestVoiceInboundHandler_AfterHoursOpener(t *testing.T) {
	srv, st, sms, business := newTestServer(t)
	business.OperatingHours = &models.OperatingHours{
		Enabled:  true,
		Timezone: "UTC",
		// keeps every hour of day out of range
		OpenHour:   1,
		CloseHour:  1,
		ClosedDays: []int{0, 1, 2, 3, 4, 5, 6},
	}
	if err := st.UpdateBusiness(business); err != nil {
		t.Fatal(err)
	}

	postForm(t, srv.voiceInboundHandler, "/api/voice/inbound",
		url.Values{"From": {"+61412345678"}, "To": {business.TwilioFromNumber}})

	if len(sms.SentMessages) != 1 {
		t.Fatalf("expected after-hours SMS, got %d", len(sms.SentMessages))
	}
	if !strings.Contains(sms.SentMessages[0].Body, "currently closed") {
		t.Errorf("expected after-hours message, got %q", sms.SentMessages[0].Body)
	}
	// The lead still exists and will be engaged when the business opens.
	if lead, _ := st.ActiveLead(business.ID, "+61412345678"); lead == nil {
		t.Error("expected after-hours lead persisted")
	}
}

func postJSON(t *testing.T, handler http.Handler, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestCreateLeadHandler(t *testing.T) {
	srv, st, sms, business := newTestServer(t)

	rr := postJSON(t, http.HandlerFunc(srv.createLeadHandler), "/api/lead", map[string]string{
		"business_id": business.ID,
		"name":        "Tom Webb",
		"phone":       "0411 222 333",
		"email":       "tom@example.com",
		"message":     "Enquiry from website",
	})
	resp := testutil.AssertJSONStatus(t, rr, "ok")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "create lead")

	result := resp["result"].(map[string]interface{})
	leadID := result["lead_id"].(string)
	lead, _ := st.GetLead(leadID)
	if lead == nil {
		t.Fatal("expected lead persisted")
	}
	if lead.Phone != "+61411222333" {
		t.Errorf("expected normalized phone, got %q", lead.Phone)
	}
	if lead.Name != "Tom Webb" || lead.Email != "tom@example.com" {
		t.Errorf("contact fields lost: %+v", lead)
	}

	if len(sms.SentMessages) != 1 {
		t.Fatalf("expected intro SMS, got %d", len(sms.SentMessages))
	}
	if !strings.Contains(sms.SentMessages[0].Body, "Hi Tom,") {
		t.Errorf("expected personalized intro, got %q", sms.SentMessages[0].Body)
	}
}

func TestCreateLeadHandler_Validation(t *testing.T) {
	srv, _, _, business := newTestServer(t)
	handler := http.HandlerFunc(srv.createLeadHandler)

	rr := postJSON(t, handler, "/api/lead", map[string]string{"phone": "+61412345678"})
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "missing business_id")

	rr = postJSON(t, handler, "/api/lead", map[string]string{"business_id": "ghost", "phone": "+61412345678"})
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown business")

	rr = postJSON(t, handler, "/api/lead", map[string]string{"business_id": business.ID, "phone": "not a phone"})
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid phone")
}

func TestCreateLeadHandler_DuplicateReturnsExisting(t *testing.T) {
	srv, st, sms, business := newTestServer(t)
	existing := seedActiveLead(t, st, business)

	rr := postJSON(t, http.HandlerFunc(srv.createLeadHandler), "/api/lead", map[string]string{
		"business_id": business.ID,
		"phone":       existing.Phone,
	})
	resp := testutil.AssertJSONStatus(t, rr, "ok")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "duplicate lead")

	result := resp["result"].(map[string]interface{})
	if result["lead_id"] != existing.ID {
		t.Errorf("expected existing lead returned, got %v", result["lead_id"])
	}
	if len(sms.SentMessages) != 0 {
		t.Error("duplicate must not re-open the conversation")
	}
}

func TestGenericWebhookHandler(t *testing.T) {
	srv, st, _, business := newTestServer(t)
	mux := srv.routes()

	rr := postJSON(t, mux, "/api/webhook/generic/"+business.ID, map[string]string{
		"name":    "Jess Lee",
		"phone":   "0411 222 333",
		"message": "needs a quote",
		"source":  "facebook",
	})
	resp := testutil.AssertJSONStatus(t, rr, "ok")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "generic webhook")

	result := resp["result"].(map[string]interface{})
	lead, _ := st.GetLead(result["lead_id"].(string))
	if lead == nil {
		t.Fatal("expected lead persisted")
	}
	if lead.Message != "[facebook] needs a quote" {
		t.Errorf("expected source folded into message, got %q", lead.Message)
	}
}

func TestGenericWebhookHandler_UnknownBusiness(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rr := postJSON(t, srv.routes(), "/api/webhook/generic/ghost", map[string]string{"phone": "+61412345678"})
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown webhook business")
}

func TestIndustriesHandler(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/industries", nil)
	rr := httptest.NewRecorder()
	srv.industriesHandler(rr, req)

	resp := testutil.AssertJSONStatus(t, rr, "ok")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "industries")
	industries := resp["result"].([]interface{})
	if len(industries) != len(flow.Industries()) {
		t.Errorf("expected every built-in industry, got %d", len(industries))
	}
}

func TestGenerateFlowHandler_UnavailableWithoutGenAI(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rr := postJSON(t, http.HandlerFunc(srv.generateFlowHandler), "/api/flows/generate",
		map[string]string{"industry": "plumbing"})
	testutil.AssertHTTPStatus(t, http.StatusServiceUnavailable, rr.Code, "generate flow without AI")
}

func TestNudgeHandler(t *testing.T) {
	srv, st, sms, business := newTestServer(t)
	business.Notifications = &models.NotificationConfig{NudgeAfterMin: 30}
	if err := st.UpdateBusiness(business); err != nil {
		t.Fatal(err)
	}

	stale := testutil.NewTestLead(business.ID)
	stale.UpdatedAt = time.Now().Add(-time.Hour)
	if err := st.CreateLead(stale); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/nudge", nil)
	rr := httptest.NewRecorder()
	srv.nudgeHandler(rr, req)

	resp := testutil.AssertJSONStatus(t, rr, "ok")
	result := resp["result"].(map[string]interface{})
	if result["nudged"].(float64) != 1 {
		t.Errorf("expected one nudge, got %v", result["nudged"])
	}
	if len(sms.SentMessages) != 1 {
		t.Fatalf("expected nudge SMS, got %d", len(sms.SentMessages))
	}
	if !strings.Contains(sms.SentMessages[0].Body, "checking in") {
		t.Errorf("unexpected nudge body %q", sms.SentMessages[0].Body)
	}

	updated, _ := st.GetLead(stale.ID)
	if !updated.NudgeSent {
		t.Error("expected nudge flag persisted")
	}

	// A second sweep finds nothing to do.
	rr = httptest.NewRecorder()
	srv.nudgeHandler(rr, httptest.NewRequest(http.MethodPost, "/api/admin/nudge", nil))
	resp = testutil.AssertJSONStatus(t, rr, "ok")
	if resp["result"].(map[string]interface{})["nudged"].(float64) != 0 {
		t.Error("expected no repeat nudges")
	}
}

func TestHealthHandler(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.healthHandler(rr, req)

	resp := testutil.AssertJSONStatus(t, rr, "ok")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health")
	result := resp["result"].(map[string]interface{})
	if result["status"] != "healthy" {
		t.Errorf("unexpected health payload %v", result)
	}
}

// Package testutil provides common test utilities and helpers for Cove tests.
package testutil

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/covehq/cove/internal/models"
)

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONStatus decodes a JSON API response and validates the status field.
func AssertJSONStatus(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}
	return response
}

// NewTestBusiness returns a business with the dental template flow and a
// Twilio number, suitable for conversation tests.
func NewTestBusiness() *models.Business {
	return &models.Business{
		ID:               "biz-1",
		Name:             "Smile Dental",
		TwilioFromNumber: "+61400000001",
		OwnerNotifyPhone: "+61400000099",
		Industry:         "dental",
		Active:           true,
		CreatedAt:        time.Now(),
	}
}

// NewTestLead returns an active lead at the first flow step.
func NewTestLead(businessID string) *models.Lead {
	now := time.Now()
	return &models.Lead{
		ID:          "lead-1",
		BusinessID:  businessID,
		Phone:       "+61412345678",
		Name:        "Sarah Jones",
		Status:      models.LeadStatusActive,
		CurrentStep: 1,
		Answers:     map[string]string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

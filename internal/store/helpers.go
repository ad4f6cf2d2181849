package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/covehq/cove/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalOrEmpty JSON-encodes v, returning "" for nil pointers or encode
// failures so nullable JSON columns stay NULL.
func marshalOrEmpty(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("store JSON marshal failed", "error", err)
		return ""
	}
	return string(b)
}

// rowScanner abstracts sql.Row and sql.Rows for the shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanBusiness reads one businesses row. JSON config columns decode
// leniently: a corrupt column logs and leaves the field nil rather than
// failing the whole read.
func scanBusiness(row rowScanner) (*models.Business, error) {
	var b models.Business
	var userID, twilioNumber, notifyPhone, notifyEmail, bookingLink, industry sql.NullString
	var flowJSON, hoursJSON, notifJSON sql.NullString

	err := row.Scan(
		&b.ID, &userID, &b.Name, &twilioNumber, &notifyPhone, &notifyEmail,
		&bookingLink, &industry, &flowJSON, &hoursJSON, &notifJSON,
		&b.Active, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.UserID = userID.String
	b.TwilioFromNumber = twilioNumber.String
	b.OwnerNotifyPhone = notifyPhone.String
	b.OwnerNotifyEmail = notifyEmail.String
	b.BookingLink = bookingLink.String
	b.Industry = industry.String

	if flowJSON.String != "" {
		var f models.FlowDefinition
		if err := json.Unmarshal([]byte(flowJSON.String), &f); err != nil {
			slog.Error("store flow_config unmarshal failed", "error", err, "businessID", b.ID)
		} else {
			b.FlowConfig = &f
		}
	}
	if hoursJSON.String != "" {
		var h models.OperatingHours
		if err := json.Unmarshal([]byte(hoursJSON.String), &h); err != nil {
			slog.Error("store operating_hours unmarshal failed", "error", err, "businessID", b.ID)
		} else {
			b.OperatingHours = &h
		}
	}
	if notifJSON.String != "" {
		var n models.NotificationConfig
		if err := json.Unmarshal([]byte(notifJSON.String), &n); err != nil {
			slog.Error("store notifications unmarshal failed", "error", err, "businessID", b.ID)
		} else {
			b.Notifications = &n
		}
	}
	return &b, nil
}

// scanLead reads one leads row.
func scanLead(row rowScanner) (*models.Lead, error) {
	var l models.Lead
	var name, email, message, lastInbound, answersJSON sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(
		&l.ID, &l.BusinessID, &l.Phone, &name, &email, &message,
		&l.Status, &l.CurrentStep, &answersJSON, &lastInbound,
		&l.UrgentAlertSent, &l.NudgeSent, &l.CreatedAt, &l.UpdatedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Name = name.String
	l.Email = email.String
	l.Message = message.String
	l.LastInboundText = lastInbound.String
	if finishedAt.Valid {
		l.FinishedAt = &finishedAt.Time
	}

	l.Answers = make(map[string]string)
	if answersJSON.String != "" {
		if err := json.Unmarshal([]byte(answersJSON.String), &l.Answers); err != nil {
			slog.Error("store answers unmarshal failed", "error", err, "leadID", l.ID)
			l.Answers = make(map[string]string)
		}
	}
	return &l, nil
}

// scanMessage reads one messages row.
func scanMessage(row rowScanner) (*models.Message, error) {
	var m models.Message
	if err := row.Scan(&m.ID, &m.LeadID, &m.Direction, &m.Body, &m.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan message failed: %w", err)
	}
	return &m, nil
}

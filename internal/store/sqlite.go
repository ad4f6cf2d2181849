// Package store provides storage backends for Cove.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/covehq/cove/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

const leadColumns = `id, business_id, phone, name, email, message, status, current_step,
	answers, last_inbound_text, urgent_alert_sent, nudge_sent, created_at, updated_at, finished_at`

const businessColumns = `id, user_id, name, twilio_from_number, owner_notify_phone, owner_notify_email,
	booking_link, industry, flow_config, operating_hours, notifications, active, created_at`

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	slog.Debug("Opening SQLite database connection")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateBusiness(b *models.Business) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO businesses (`+businessColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, nilIfEmpty(b.UserID), b.Name, nilIfEmpty(b.TwilioFromNumber),
		nilIfEmpty(b.OwnerNotifyPhone), nilIfEmpty(b.OwnerNotifyEmail),
		nilIfEmpty(b.BookingLink), nilIfEmpty(b.Industry),
		nilIfEmpty(marshalOrEmpty(b.FlowConfig)),
		nilIfEmpty(marshalOrEmpty(b.OperatingHours)),
		nilIfEmpty(marshalOrEmpty(b.Notifications)),
		b.Active, b.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore CreateBusiness failed", "error", err, "businessID", b.ID)
		return fmt.Errorf("failed to insert business %s: %w", b.ID, err)
	}
	slog.Debug("SQLiteStore CreateBusiness succeeded", "businessID", b.ID, "name", b.Name)
	return nil
}

func (s *SQLiteStore) GetBusiness(id string) (*models.Business, error) {
	row := s.db.QueryRow(`SELECT `+businessColumns+` FROM businesses WHERE id = ?`, id)
	b, err := scanBusiness(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetBusiness not found", "businessID", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetBusiness failed", "error", err, "businessID", id)
		return nil, fmt.Errorf("failed to query business %s: %w", id, err)
	}
	return b, nil
}

func (s *SQLiteStore) GetBusinessByNumber(twilioNumber string) (*models.Business, error) {
	row := s.db.QueryRow(`SELECT `+businessColumns+` FROM businesses WHERE twilio_from_number = ?`, twilioNumber)
	b, err := scanBusiness(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetBusinessByNumber not found", "number", twilioNumber)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetBusinessByNumber failed", "error", err, "number", twilioNumber)
		return nil, fmt.Errorf("failed to query business by number: %w", err)
	}
	return b, nil
}

func (s *SQLiteStore) UpdateBusiness(b *models.Business) error {
	res, err := s.db.Exec(`UPDATE businesses SET user_id = ?, name = ?, twilio_from_number = ?,
		owner_notify_phone = ?, owner_notify_email = ?, booking_link = ?, industry = ?,
		flow_config = ?, operating_hours = ?, notifications = ?, active = ?
		WHERE id = ?`,
		nilIfEmpty(b.UserID), b.Name, nilIfEmpty(b.TwilioFromNumber),
		nilIfEmpty(b.OwnerNotifyPhone), nilIfEmpty(b.OwnerNotifyEmail),
		nilIfEmpty(b.BookingLink), nilIfEmpty(b.Industry),
		nilIfEmpty(marshalOrEmpty(b.FlowConfig)),
		nilIfEmpty(marshalOrEmpty(b.OperatingHours)),
		nilIfEmpty(marshalOrEmpty(b.Notifications)),
		b.Active, b.ID,
	)
	if err != nil {
		slog.Error("SQLiteStore UpdateBusiness failed", "error", err, "businessID", b.ID)
		return fmt.Errorf("failed to update business %s: %w", b.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("business %s not found", b.ID)
	}
	slog.Debug("SQLiteStore UpdateBusiness succeeded", "businessID", b.ID)
	return nil
}

func (s *SQLiteStore) ListBusinesses() ([]models.Business, error) {
	rows, err := s.db.Query(`SELECT ` + businessColumns + ` FROM businesses ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore ListBusinesses query failed", "error", err)
		return nil, fmt.Errorf("failed to query businesses: %w", err)
	}
	defer rows.Close()

	var out []models.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			slog.Error("SQLiteStore ListBusinesses scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan business row: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate business rows: %w", err)
	}
	slog.Debug("SQLiteStore ListBusinesses succeeded", "count", len(out))
	return out, nil
}

func (s *SQLiteStore) CreateLead(l *models.Lead) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = now
	}
	if l.Answers == nil {
		l.Answers = make(map[string]string)
	}
	_, err := s.db.Exec(`INSERT INTO leads (`+leadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.BusinessID, l.Phone, nilIfEmpty(l.Name), nilIfEmpty(l.Email),
		nilIfEmpty(l.Message), l.Status, l.CurrentStep,
		nilIfEmpty(marshalOrEmpty(l.Answers)), nilIfEmpty(l.LastInboundText),
		l.UrgentAlertSent, l.NudgeSent, l.CreatedAt, l.UpdatedAt, l.FinishedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore CreateLead failed", "error", err, "leadID", l.ID)
		return fmt.Errorf("failed to insert lead %s: %w", l.ID, err)
	}
	slog.Debug("SQLiteStore CreateLead succeeded", "leadID", l.ID, "businessID", l.BusinessID)
	return nil
}

func (s *SQLiteStore) GetLead(id string) (*models.Lead, error) {
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetLead failed", "error", err, "leadID", id)
		return nil, fmt.Errorf("failed to query lead %s: %w", id, err)
	}
	return l, nil
}

func (s *SQLiteStore) ActiveLead(businessID, phone string) (*models.Lead, error) {
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads
		WHERE business_id = ? AND phone = ? AND status = ?
		ORDER BY created_at DESC LIMIT 1`,
		businessID, phone, models.LeadStatusActive)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore ActiveLead not found", "businessID", businessID, "phone", phone)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore ActiveLead failed", "error", err, "businessID", businessID)
		return nil, fmt.Errorf("failed to query active lead: %w", err)
	}
	return l, nil
}

func (s *SQLiteStore) RecentActiveLeadByPhone(businessID, phone string, window time.Duration) (*models.Lead, error) {
	cutoff := time.Now().Add(-window)
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads
		WHERE business_id = ? AND phone = ? AND status = ? AND created_at > ?
		ORDER BY created_at DESC LIMIT 1`,
		businessID, phone, models.LeadStatusActive, cutoff)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore RecentActiveLeadByPhone failed", "error", err, "businessID", businessID)
		return nil, fmt.Errorf("failed to query recent active lead: %w", err)
	}
	return l, nil
}

// PatchLead loads, patches, and rewrites the lead row. The single-writer
// conversation model makes read-modify-write safe here.
func (s *SQLiteStore) PatchLead(id string, patch *models.LeadPatch) (*models.Lead, error) {
	l, err := s.GetLead(id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("lead %s not found", id)
	}
	patch.Apply(l)

	_, err = s.db.Exec(`UPDATE leads SET name = ?, email = ?, message = ?, status = ?,
		current_step = ?, answers = ?, last_inbound_text = ?, urgent_alert_sent = ?,
		nudge_sent = ?, updated_at = ?, finished_at = ?
		WHERE id = ?`,
		nilIfEmpty(l.Name), nilIfEmpty(l.Email), nilIfEmpty(l.Message), l.Status,
		l.CurrentStep, nilIfEmpty(marshalOrEmpty(l.Answers)), nilIfEmpty(l.LastInboundText),
		l.UrgentAlertSent, l.NudgeSent, l.UpdatedAt, l.FinishedAt, l.ID,
	)
	if err != nil {
		slog.Error("SQLiteStore PatchLead failed", "error", err, "leadID", id)
		return nil, fmt.Errorf("failed to update lead %s: %w", id, err)
	}
	slog.Debug("SQLiteStore PatchLead succeeded", "leadID", id, "status", l.Status, "step", l.CurrentStep)
	return l, nil
}

func (s *SQLiteStore) ActiveLeads() ([]models.Lead, error) {
	return s.queryLeads(`SELECT `+leadColumns+` FROM leads WHERE status = ? ORDER BY created_at`,
		models.LeadStatusActive)
}

func (s *SQLiteStore) RecentLeads(businessID string, limit int) ([]models.Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryLeads(`SELECT `+leadColumns+` FROM leads
		WHERE business_id = ? ORDER BY created_at DESC LIMIT ?`,
		businessID, limit)
}

func (s *SQLiteStore) queryLeads(query string, args ...interface{}) ([]models.Lead, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore lead query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var out []models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			slog.Error("SQLiteStore lead scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan lead row: %w", err)
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) SaveMessage(m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO messages (id, lead_id, direction, body, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.LeadID, m.Direction, m.Body, m.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveMessage failed", "error", err, "leadID", m.LeadID)
		return fmt.Errorf("failed to insert message for lead %s: %w", m.LeadID, err)
	}
	return nil
}

func (s *SQLiteStore) MessagesByLead(leadID string) ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT id, lead_id, direction, body, created_at
		FROM messages WHERE lead_id = ? ORDER BY created_at`, leadID)
	if err != nil {
		slog.Error("SQLiteStore MessagesByLead query failed", "error", err, "leadID", leadID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return out, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

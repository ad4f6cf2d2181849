// Package store provides storage backends for Cove.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/covehq/cove/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	slog.Debug("Opening Postgres database connection")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateBusiness(b *models.Business) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO businesses (`+businessColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		b.ID, nilIfEmpty(b.UserID), b.Name, nilIfEmpty(b.TwilioFromNumber),
		nilIfEmpty(b.OwnerNotifyPhone), nilIfEmpty(b.OwnerNotifyEmail),
		nilIfEmpty(b.BookingLink), nilIfEmpty(b.Industry),
		nilIfEmpty(marshalOrEmpty(b.FlowConfig)),
		nilIfEmpty(marshalOrEmpty(b.OperatingHours)),
		nilIfEmpty(marshalOrEmpty(b.Notifications)),
		b.Active, b.CreatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore CreateBusiness failed", "error", err, "businessID", b.ID)
		return fmt.Errorf("failed to insert business %s: %w", b.ID, err)
	}
	slog.Debug("PostgresStore CreateBusiness succeeded", "businessID", b.ID, "name", b.Name)
	return nil
}

func (s *PostgresStore) GetBusiness(id string) (*models.Business, error) {
	row := s.db.QueryRow(`SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id)
	b, err := scanBusiness(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetBusiness not found", "businessID", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetBusiness failed", "error", err, "businessID", id)
		return nil, fmt.Errorf("failed to query business %s: %w", id, err)
	}
	return b, nil
}

func (s *PostgresStore) GetBusinessByNumber(twilioNumber string) (*models.Business, error) {
	row := s.db.QueryRow(`SELECT `+businessColumns+` FROM businesses WHERE twilio_from_number = $1`, twilioNumber)
	b, err := scanBusiness(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetBusinessByNumber not found", "number", twilioNumber)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetBusinessByNumber failed", "error", err, "number", twilioNumber)
		return nil, fmt.Errorf("failed to query business by number: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) UpdateBusiness(b *models.Business) error {
	res, err := s.db.Exec(`UPDATE businesses SET user_id = $1, name = $2, twilio_from_number = $3,
		owner_notify_phone = $4, owner_notify_email = $5, booking_link = $6, industry = $7,
		flow_config = $8, operating_hours = $9, notifications = $10, active = $11
		WHERE id = $12`,
		nilIfEmpty(b.UserID), b.Name, nilIfEmpty(b.TwilioFromNumber),
		nilIfEmpty(b.OwnerNotifyPhone), nilIfEmpty(b.OwnerNotifyEmail),
		nilIfEmpty(b.BookingLink), nilIfEmpty(b.Industry),
		nilIfEmpty(marshalOrEmpty(b.FlowConfig)),
		nilIfEmpty(marshalOrEmpty(b.OperatingHours)),
		nilIfEmpty(marshalOrEmpty(b.Notifications)),
		b.Active, b.ID,
	)
	if err != nil {
		slog.Error("PostgresStore UpdateBusiness failed", "error", err, "businessID", b.ID)
		return fmt.Errorf("failed to update business %s: %w", b.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("business %s not found", b.ID)
	}
	slog.Debug("PostgresStore UpdateBusiness succeeded", "businessID", b.ID)
	return nil
}

func (s *PostgresStore) ListBusinesses() ([]models.Business, error) {
	rows, err := s.db.Query(`SELECT ` + businessColumns + ` FROM businesses ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore ListBusinesses query failed", "error", err)
		return nil, fmt.Errorf("failed to query businesses: %w", err)
	}
	defer rows.Close()

	var out []models.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			slog.Error("PostgresStore ListBusinesses scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan business row: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate business rows: %w", err)
	}
	slog.Debug("PostgresStore ListBusinesses succeeded", "count", len(out))
	return out, nil
}

func (s *PostgresStore) CreateLead(l *models.Lead) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		l.ID, l.BusinessID, l.Phone, nilIfEmpty(l.Name), nilIfEmpty(l.Email),
		nilIfEmpty(l.Message), l.Status, l.CurrentStep,
		nilIfEmpty(marshalOrEmpty(l.Answers)), nilIfEmpty(l.LastInboundText),
		l.UrgentAlertSent, l.NudgeSent, l.CreatedAt, l.UpdatedAt, l.FinishedAt,
	)
	if err != nil {
		slog.Error("PostgresStore CreateLead failed", "error", err, "leadID", l.ID)
		return fmt.Errorf("failed to insert lead %s: %w", l.ID, err)
	}
	slog.Debug("PostgresStore CreateLead succeeded", "leadID", l.ID, "businessID", l.BusinessID)
	return nil
}

func (s *PostgresStore) GetLead(id string) (*models.Lead, error) {
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetLead failed", "error", err, "leadID", id)
		return nil, fmt.Errorf("failed to query lead %s: %w", id, err)
	}
	return l, nil
}

func (s *PostgresStore) ActiveLead(businessID, phone string) (*models.Lead, error) {
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads
		WHERE business_id = $1 AND phone = $2 AND status = $3
		ORDER BY created_at DESC LIMIT 1`,
		businessID, phone, models.LeadStatusActive)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore ActiveLead not found", "businessID", businessID, "phone", phone)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore ActiveLead failed", "error", err, "businessID", businessID)
		return nil, fmt.Errorf("failed to query active lead: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) RecentActiveLeadByPhone(businessID, phone string, window time.Duration) (*models.Lead, error) {
	cutoff := time.Now().Add(-window)
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads
		WHERE business_id = $1 AND phone = $2 AND status = $3 AND created_at > $4
		ORDER BY created_at DESC LIMIT 1`,
		businessID, phone, models.LeadStatusActive, cutoff)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore RecentActiveLeadByPhone failed", "error", err, "businessID", businessID)
		return nil, fmt.Errorf("failed to query recent active lead: %w", err)
	}
	return l, nil
}

// PatchLead loads, patches, and rewrites the lead row. The single-writer
// conversation model makes read-modify-write safe here.
func (s *PostgresStore) PatchLead(id string, patch *models.LeadPatch) (*models.Lead, error) {
	l, err := s.GetLead(id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("lead %s not found", id)
	}
	patch.Apply(l)

	_, err = s.db.Exec(`UPDATE leads SET name = $1, email = $2, message = $3, status = $4,
		current_step = $5, answers = $6, last_inbound_text = $7, urgent_alert_sent = $8,
		nudge_sent = $9, updated_at = $10, finished_at = $11
		WHERE id = $12`,
		nilIfEmpty(l.Name), nilIfEmpty(l.Email), nilIfEmpty(l.Message), l.Status,
		l.CurrentStep, nilIfEmpty(marshalOrEmpty(l.Answers)), nilIfEmpty(l.LastInboundText),
		l.UrgentAlertSent, l.NudgeSent, l.UpdatedAt, l.FinishedAt, l.ID,
	)
	if err != nil {
		slog.Error("PostgresStore PatchLead failed", "error", err, "leadID", id)
		return nil, fmt.Errorf("failed to update lead %s: %w", id, err)
	}
	slog.Debug("PostgresStore PatchLead succeeded", "leadID", id, "status", l.Status, "step", l.CurrentStep)
	return l, nil
}

func (s *PostgresStore) ActiveLeads() ([]models.Lead, error) {
	return s.queryLeads(`SELECT `+leadColumns+` FROM leads WHERE status = $1 ORDER BY created_at`,
		models.LeadStatusActive)
}

func (s *PostgresStore) RecentLeads(businessID string, limit int) ([]models.Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryLeads(`SELECT `+leadColumns+` FROM leads
		WHERE business_id = $1 ORDER BY created_at DESC LIMIT $2`,
		businessID, limit)
}

func (s *PostgresStore) queryLeads(query string, args ...interface{}) ([]models.Lead, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore lead query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var out []models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			slog.Error("PostgresStore lead scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan lead row: %w", err)
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SaveMessage(m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO messages (id, lead_id, direction, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.LeadID, m.Direction, m.Body, m.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveMessage failed", "error", err, "leadID", m.LeadID)
		return fmt.Errorf("failed to insert message for lead %s: %w", m.LeadID, err)
	}
	return nil
}

func (s *PostgresStore) MessagesByLead(leadID string) ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT id, lead_id, direction, body, created_at
		FROM messages WHERE lead_id = $1 ORDER BY created_at`, leadID)
	if err != nil {
		slog.Error("PostgresStore MessagesByLead query failed", "error", err, "leadID", leadID)
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

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}

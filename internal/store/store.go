// Package store provides storage backends for Cove.
//
// It includes an in-memory store for tests and small deployments, plus
// SQLite and PostgreSQL backed stores. Lookups that find nothing return
// (nil, nil) so callers can treat unknown numbers as silent no-ops.
package store

import (
	"strings"
	"time"

	"github.com/covehq/cove/internal/models"
)

// Opts holds store configuration.
type Opts struct {
	DSN string
}

// Option configures store options.
type Option func(*Opts)

// WithDSN sets the database DSN. A postgres:// URL selects the Postgres
// store; anything else is treated as an SQLite file path.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DSN type constants returned by DetectDSNType.
const (
	DSNTypePostgres = "postgres"
	DSNTypeSQLite   = "sqlite"
)

// DetectDSNType classifies a DSN string by scheme.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DSNTypePostgres
	}
	return DSNTypeSQLite
}

// Store is the persistence interface shared by all backends.
type Store interface {
	CreateBusiness(b *models.Business) error
	GetBusiness(id string) (*models.Business, error)
	GetBusinessByNumber(twilioNumber string) (*models.Business, error)
	UpdateBusiness(b *models.Business) error
	ListBusinesses() ([]models.Business, error)

	CreateLead(l *models.Lead) error
	GetLead(id string) (*models.Lead, error)
	// ActiveLead returns the single active lead for a business/phone pair,
	// or nil when the phone has no conversation in progress.
	ActiveLead(businessID, phone string) (*models.Lead, error)
	// RecentActiveLeadByPhone returns the newest active lead for the phone
	// created within the window. Used for duplicate-lead suppression.
	RecentActiveLeadByPhone(businessID, phone string, window time.Duration) (*models.Lead, error)
	PatchLead(id string, patch *models.LeadPatch) (*models.Lead, error)
	// ActiveLeads returns every active lead across all businesses. Used by
	// the nudge sweep.
	ActiveLeads() ([]models.Lead, error)
	RecentLeads(businessID string, limit int) ([]models.Lead, error)

	SaveMessage(m *models.Message) error
	MessagesByLead(leadID string) ([]models.Message, error)

	Close() error
}

package database

import (
	"errors"

	"knowledge-nest-backend/pkg/models"
)

// ErrNotFound is returned when a lookup matches no row. Callers decide
// whether that means 404 or access denied.
var ErrNotFound = errors.New("record not found")

// DatabaseInterface defines the structured-store operations the service
// needs. Postgres backs production; the in-memory implementation backs
// development and tests.
type DatabaseInterface interface {
	// Organizations
	CreateOrganization(org *models.Organization) error
	GetOrganization(orgID string) (*models.Organization, error)
	UpdateOrganization(org *models.Organization) error

	// Memberships. UpsertMembership atomically deactivates any existing
	// active row for the username before inserting the new one, preserving
	// the one-active-membership-per-username invariant.
	UpsertMembership(m *models.UserOrganization) error
	GetActiveMembership(username string) (*models.UserOrganization, error)
	DeactivateMembership(username string) error

	// Knowledge nest metadata. Lookup by storage handle returns the row
	// regardless of is_active so delete authorization and audit reads work
	// on soft-deleted records; the scoped list only ever returns active rows.
	CreateNestFile(f *models.NestFile) error
	GetNestFileByStorageID(storageID string) (*models.NestFile, error)
	ListNestFiles(scope models.Scope, subject string) ([]models.NestFile, error)
	ListNestSubjects(scope models.Scope) ([]string, error)
	DeactivateNestFile(storageID string) error

	HealthCheck() error
	Close() error
}

// DatabaseConfig selects and configures the database implementation.
type DatabaseConfig struct {
	PostgresDSN string
	UseMemoryDB bool
	Debug       bool
}

// NewDatabase picks the implementation for the given configuration.
func NewDatabase(config DatabaseConfig) (DatabaseInterface, error) {
	if config.PostgresDSN != "" {
		return NewPostgresDatabase(config.PostgresDSN)
	}
	if config.UseMemoryDB {
		return NewMemoryDatabase(), nil
	}
	return nil, errors.New("no valid database configuration: set POSTGRES_DSN or USE_MEMORY_DB=true")
}

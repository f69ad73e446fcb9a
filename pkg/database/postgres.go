package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"knowledge-nest-backend/pkg/models"

	_ "github.com/lib/pq"
)

// PostgresDatabase implements DatabaseInterface on PostgreSQL.
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase opens a PostgreSQL connection with pool limits suited
// to serverless deployments and verifies it with a ping.
func NewPostgresDatabase(dsn string) (DatabaseInterface, error) {
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)

	db, err := sql.Open("postgres", addConnectionParams(dsn, "prefer_simple_protocol=true"))
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresDatabase{db: db}, nil
}

// addConnectionParams appends query parameters to a DSN.
func addConnectionParams(dsn, params string) string {
	if params == "" {
		return dsn
	}

	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}

	return dsn + separator + params
}

// ==== organizations ====

func (db *PostgresDatabase) CreateOrganization(org *models.Organization) error {
	query := `
        INSERT INTO organizations (name, email_domain, verified, created_at, updated_at)
        VALUES ($1, $2, $3, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err := db.db.QueryRow(query, org.Name, org.EmailDomain, org.Verified).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetOrganization(orgID string) (*models.Organization, error) {
	query := `
        SELECT id, name, COALESCE(email_domain,''), verified, created_at, updated_at
        FROM organizations
        WHERE id = $1
    `
	org := &models.Organization{}
	err := db.db.QueryRow(query, orgID).Scan(
		&org.ID, &org.Name, &org.EmailDomain, &org.Verified, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

func (db *PostgresDatabase) UpdateOrganization(org *models.Organization) error {
	query := `
        UPDATE organizations
        SET name = $2, email_domain = $3, verified = $4, updated_at = NOW()
        WHERE id = $1
        RETURNING updated_at
    `
	err := db.db.QueryRow(query, org.ID, org.Name, org.EmailDomain, org.Verified).
		Scan(&org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	return nil
}

// ==== memberships ====

// UpsertMembership deactivates any active membership for the username and
// inserts the new one in a single transaction. The partial unique index on
// (username) WHERE active makes a concurrent double-activate impossible.
func (db *PostgresDatabase) UpsertMembership(m *models.UserOrganization) error {
	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE user_organizations SET active = false, updated_at = NOW() WHERE username = $1 AND active`,
		m.Username,
	); err != nil {
		return fmt.Errorf("failed to deactivate previous membership: %w", err)
	}

	err = tx.QueryRow(`
        INSERT INTO user_organizations (username, organization_id, semester, branch, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, true, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `, m.Username, m.OrganizationID, m.Semester, m.Branch).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert membership: %w", err)
	}
	m.Active = true

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit membership upsert: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetActiveMembership(username string) (*models.UserOrganization, error) {
	query := `
        SELECT id, username, organization_id, semester, branch, active, created_at, updated_at
        FROM user_organizations
        WHERE username = $1 AND active
    `
	m := &models.UserOrganization{}
	err := db.db.QueryRow(query, username).Scan(
		&m.ID, &m.Username, &m.OrganizationID, &m.Semester, &m.Branch,
		&m.Active, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

func (db *PostgresDatabase) DeactivateMembership(username string) error {
	res, err := db.db.Exec(
		`UPDATE user_organizations SET active = false, updated_at = NOW() WHERE username = $1 AND active`,
		username,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate membership: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ==== knowledge nest files ====

func (db *PostgresDatabase) CreateNestFile(f *models.NestFile) error {
	query := `
        INSERT INTO knowledge_nest
            (storage_id, organization_id, semester, branch, uploaded_username,
             subject, filename, file_size, file_type, description, upload_date, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, true)
        RETURNING id
    `
	err := db.db.QueryRow(query,
		f.StorageID, f.OrganizationID, f.Semester, f.Branch, f.UploadedBy,
		f.Subject, f.Filename, f.FileSize, f.FileType, f.Description, f.UploadDate).
		Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("failed to create file record: %w", err)
	}
	f.Active = true
	return nil
}

func (db *PostgresDatabase) GetNestFileByStorageID(storageID string) (*models.NestFile, error) {
	query := `
        SELECT id, storage_id, organization_id, semester, branch, uploaded_username,
               subject, filename, file_size, file_type, COALESCE(description,''), upload_date, is_active
        FROM knowledge_nest
        WHERE storage_id = $1
    `
	f := &models.NestFile{}
	err := db.db.QueryRow(query, storageID).Scan(
		&f.ID, &f.StorageID, &f.OrganizationID, &f.Semester, &f.Branch, &f.UploadedBy,
		&f.Subject, &f.Filename, &f.FileSize, &f.FileType, &f.Description, &f.UploadDate, &f.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file record: %w", err)
	}
	return f, nil
}

func (db *PostgresDatabase) ListNestFiles(scope models.Scope, subject string) ([]models.NestFile, error) {
	query := `
        SELECT id, storage_id, organization_id, semester, branch, uploaded_username,
               subject, filename, file_size, file_type, COALESCE(description,''), upload_date, is_active
        FROM knowledge_nest
        WHERE organization_id = $1 AND semester = $2 AND branch = $3 AND is_active
          AND ($4 = '' OR subject = $4)
        ORDER BY upload_date DESC
    `
	rows, err := db.db.Query(query, scope.OrganizationID, scope.Semester, scope.Branch, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	files := []models.NestFile{}
	for rows.Next() {
		var f models.NestFile
		if err := rows.Scan(
			&f.ID, &f.StorageID, &f.OrganizationID, &f.Semester, &f.Branch, &f.UploadedBy,
			&f.Subject, &f.Filename, &f.FileSize, &f.FileType, &f.Description, &f.UploadDate, &f.Active,
		); err != nil {
			return nil, fmt.Errorf("failed to scan file record: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate file records: %w", err)
	}
	return files, nil
}

// ListNestSubjects returns distinct subjects among in-scope active records,
// ordered by most recent upload first.
func (db *PostgresDatabase) ListNestSubjects(scope models.Scope) ([]string, error) {
	query := `
        SELECT subject
        FROM knowledge_nest
        WHERE organization_id = $1 AND semester = $2 AND branch = $3 AND is_active
        ORDER BY upload_date DESC
    `
	rows, err := db.db.Query(query, scope.OrganizationID, scope.Semester, scope.Branch)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()

	seen := map[string]bool{}
	subjects := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		if !seen[s] {
			seen[s] = true
			subjects = append(subjects, s)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subjects: %w", err)
	}
	return subjects, nil
}

func (db *PostgresDatabase) DeactivateNestFile(storageID string) error {
	res, err := db.db.Exec(
		`UPDATE knowledge_nest SET is_active = false WHERE storage_id = $1`,
		storageID,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate file record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ==== lifecycle ====

func (db *PostgresDatabase) HealthCheck() error {
	return db.db.Ping()
}

func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}

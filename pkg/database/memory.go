package database

import (
	"sort"
	"sync"
	"time"

	"knowledge-nest-backend/pkg/models"

	"github.com/google/uuid"
)

// MemoryDatabase is an in-memory DatabaseInterface implementation for local
// development and tests. Data does not survive a restart.
type MemoryDatabase struct {
	mu            sync.RWMutex
	organizations map[string]models.Organization
	memberships   []models.UserOrganization
	files         []models.NestFile
}

// NewMemoryDatabase creates an empty in-memory database.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		organizations: make(map[string]models.Organization),
	}
}

// ==== organizations ====

func (db *MemoryDatabase) CreateOrganization(org *models.Organization) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now()
	org.ID = uuid.NewString()
	org.CreatedAt = now
	org.UpdatedAt = now
	db.organizations[org.ID] = *org
	return nil
}

func (db *MemoryDatabase) GetOrganization(orgID string) (*models.Organization, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	org, ok := db.organizations[orgID]
	if !ok {
		return nil, ErrNotFound
	}
	return &org, nil
}

func (db *MemoryDatabase) UpdateOrganization(org *models.Organization) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.organizations[org.ID]; !ok {
		return ErrNotFound
	}
	org.UpdatedAt = time.Now()
	db.organizations[org.ID] = *org
	return nil
}

// ==== memberships ====

func (db *MemoryDatabase) UpsertMembership(m *models.UserOrganization) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now()
	for i := range db.memberships {
		if db.memberships[i].Username == m.Username && db.memberships[i].Active {
			db.memberships[i].Active = false
			db.memberships[i].UpdatedAt = now
		}
	}

	m.ID = uuid.NewString()
	m.Active = true
	m.CreatedAt = now
	m.UpdatedAt = now
	db.memberships = append(db.memberships, *m)
	return nil
}

func (db *MemoryDatabase) GetActiveMembership(username string) (*models.UserOrganization, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for i := range db.memberships {
		if db.memberships[i].Username == username && db.memberships[i].Active {
			m := db.memberships[i]
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

func (db *MemoryDatabase) DeactivateMembership(username string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	found := false
	for i := range db.memberships {
		if db.memberships[i].Username == username && db.memberships[i].Active {
			db.memberships[i].Active = false
			db.memberships[i].UpdatedAt = time.Now()
			found = true
		}
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

// ==== knowledge nest files ====

func (db *MemoryDatabase) CreateNestFile(f *models.NestFile) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	f.ID = uuid.NewString()
	f.Active = true
	db.files = append(db.files, *f)
	return nil
}

func (db *MemoryDatabase) GetNestFileByStorageID(storageID string) (*models.NestFile, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for i := range db.files {
		if db.files[i].StorageID == storageID {
			f := db.files[i]
			return &f, nil
		}
	}
	return nil, ErrNotFound
}

func (db *MemoryDatabase) ListNestFiles(scope models.Scope, subject string) ([]models.NestFile, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	files := []models.NestFile{}
	for i := range db.files {
		f := db.files[i]
		if !f.Active || f.Scope() != scope {
			continue
		}
		if subject != "" && f.Subject != subject {
			continue
		}
		files = append(files, f)
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].UploadDate.After(files[j].UploadDate)
	})
	return files, nil
}

func (db *MemoryDatabase) ListNestSubjects(scope models.Scope) ([]string, error) {
	files, err := db.ListNestFiles(scope, "")
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	subjects := []string{}
	for _, f := range files {
		if !seen[f.Subject] {
			seen[f.Subject] = true
			subjects = append(subjects, f.Subject)
		}
	}
	return subjects, nil
}

func (db *MemoryDatabase) DeactivateNestFile(storageID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i := range db.files {
		if db.files[i].StorageID == storageID {
			db.files[i].Active = false
			return nil
		}
	}
	return ErrNotFound
}

// ==== lifecycle ====

func (db *MemoryDatabase) HealthCheck() error {
	return nil
}

func (db *MemoryDatabase) Close() error {
	return nil
}

package models

import "time"

// NestFile is the metadata record for one shared file. The bytes themselves
// live in the blob store under StorageID; only this record is queryable.
// Scope columns are denormalized from the uploader's membership at upload
// time and are never taken from client input.
type NestFile struct {
	ID             string    `json:"id" db:"id"`
	StorageID      string    `json:"file_id" db:"storage_id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Semester       int       `json:"semester" db:"semester"`
	Branch         string    `json:"branch" db:"branch"`
	UploadedBy     string    `json:"uploaded_username" db:"uploaded_username"`
	Subject        string    `json:"subject" db:"subject"`
	Filename       string    `json:"filename" db:"filename"`
	FileSize       int64     `json:"file_size" db:"file_size"`
	FileType       string    `json:"file_type" db:"file_type"`
	Description    string    `json:"description,omitempty" db:"description"`
	UploadDate     time.Time `json:"upload_date" db:"upload_date"`
	Active         bool      `json:"is_active" db:"is_active"`
}

// Scope returns the record's denormalized query scope.
func (f *NestFile) Scope() Scope {
	return Scope{
		OrganizationID: f.OrganizationID,
		Semester:       f.Semester,
		Branch:         f.Branch,
	}
}

// UploadHandle is a short-lived write target in the blob store. The client
// PUTs the raw bytes to URL and then records metadata against StorageID.
type UploadHandle struct {
	StorageID string    `json:"file_id"`
	URL       string    `json:"upload_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UploadMetadataRequest records a completed upload. The server re-resolves
// the uploader's scope; only the fields below are accepted from the client.
type UploadMetadataRequest struct {
	StorageID   string `json:"file_id" validate:"required,min=1,max=256"`
	Subject     string `json:"subject" validate:"required,min=1,max=120"`
	Filename    string `json:"filename" validate:"required,min=1,max=255"`
	FileSize    int64  `json:"file_size" validate:"required,min=1"`
	FileType    string `json:"file_type" validate:"required,min=1,max=160"`
	Description string `json:"description" validate:"max=2000"`
}

// OrgInfo accompanies file listings so the UI can label the current scope.
type OrgInfo struct {
	OrgName  string `json:"org_name"`
	Semester int    `json:"semester"`
	Branch   string `json:"branch"`
}

// FileListing is the result of a scoped list query.
type FileListing struct {
	Files   []NestFile `json:"files"`
	OrgInfo OrgInfo    `json:"orgInfo"`
}

// FileAccess is a resolved read handle for a single file.
type FileAccess struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	FileType string `json:"file_type"`
	FileSize int64  `json:"file_size"`
}

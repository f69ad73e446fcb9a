package nest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"knowledge-nest-backend/pkg/database"
	"knowledge-nest-backend/pkg/models"
	"knowledge-nest-backend/pkg/storage"
)

// Service implements the Knowledge Nest operations. Every scoped operation
// re-derives the requester's (organization, semester, branch) from its
// current membership and verifies the organization before touching any file
// record - client-supplied scope is never trusted.
type Service struct {
	db             database.DatabaseInterface
	blobs          storage.BlobStore
	log            *zap.SugaredLogger
	maxUploadBytes int64
}

// NewService wires the service to its stores.
func NewService(db database.DatabaseInterface, blobs storage.BlobStore, log *zap.SugaredLogger, maxUploadBytes int64) *Service {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 * 1024 * 1024
	}
	return &Service{db: db, blobs: blobs, log: log, maxUploadBytes: maxUploadBytes}
}

// authorize is the guard every operation runs first: resolve the single
// active membership for the username, then verify its organization. Fails
// closed with ErrNoMembership or ErrUnverified.
func (s *Service) authorize(username string) (*models.UserOrganization, *models.Organization, error) {
	if username == "" {
		return nil, nil, ErrNoMembership
	}

	membership, err := s.db.GetActiveMembership(username)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, ErrNoMembership
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve membership: %w", err)
	}

	org, err := s.db.GetOrganization(membership.OrganizationID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, ErrUnverified
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve organization: %w", err)
	}
	if !org.Verified {
		return nil, nil, ErrUnverified
	}

	return membership, org, nil
}

// ResolveContext returns the requester's organization context for auto-
// filling the upload form.
func (s *Service) ResolveContext(ctx context.Context, username string) (*models.OrgContext, error) {
	membership, org, err := s.authorize(username)
	if err != nil {
		return nil, err
	}
	return &models.OrgContext{
		OrganizationID: membership.OrganizationID,
		OrgName:        org.Name,
		Semester:       membership.Semester,
		Branch:         membership.Branch,
		Username:       username,
	}, nil
}

// IssueUploadHandle mints a short-lived write target in the blob store. The
// requester must pass the scope guard even though no record is written yet,
// so unverified users cannot stage blobs.
func (s *Service) IssueUploadHandle(ctx context.Context, username string) (*models.UploadHandle, error) {
	if _, _, err := s.authorize(username); err != nil {
		return nil, err
	}

	target, err := s.blobs.IssueUploadURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to issue upload handle: %w", err)
	}
	return &models.UploadHandle{
		StorageID: target.StorageID,
		URL:       target.URL,
		ExpiresAt: target.ExpiresAt,
	}, nil
}

// RecordUpload inserts the metadata record for an uploaded blob. Scope is
// denormalized from the uploader's membership at this moment; free-text
// fields are sanitized; the upload timestamp is stamped server-side.
func (s *Service) RecordUpload(ctx context.Context, username string, req *models.UploadMetadataRequest) (*models.NestFile, error) {
	membership, _, err := s.authorize(username)
	if err != nil {
		return nil, err
	}

	if err := ValidateUpload(req, s.maxUploadBytes); err != nil {
		return nil, err
	}

	if existing, err := s.db.GetNestFileByStorageID(req.StorageID); err == nil && existing != nil {
		return nil, &ValidationError{Message: "file already recorded"}
	} else if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to check storage handle: %w", err)
	}

	file := &models.NestFile{
		StorageID:      req.StorageID,
		OrganizationID: membership.OrganizationID,
		Semester:       membership.Semester,
		Branch:         membership.Branch,
		UploadedBy:     username,
		Subject:        SanitizeText(req.Subject),
		Filename:       SanitizeText(req.Filename),
		FileSize:       req.FileSize,
		FileType:       SanitizeText(req.FileType),
		Description:    SanitizeText(req.Description),
		UploadDate:     time.Now().UTC(),
	}
	if file.Subject == "" || file.Filename == "" {
		return nil, &ValidationError{Message: "subject and filename are required"}
	}

	if err := s.db.CreateNestFile(file); err != nil {
		return nil, fmt.Errorf("failed to record upload: %w", err)
	}

	s.log.Infow("file uploaded",
		"storage_id", file.StorageID,
		"org", file.OrganizationID,
		"semester", file.Semester,
		"branch", file.Branch,
		"uploader", username,
	)
	return file, nil
}

// ListFiles returns the active records matching the requester's exact scope,
// optionally narrowed by subject, newest first.
func (s *Service) ListFiles(ctx context.Context, username, subject string) (*models.FileListing, error) {
	membership, org, err := s.authorize(username)
	if err != nil {
		return nil, err
	}

	files, err := s.db.ListNestFiles(membership.Scope(), subject)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return &models.FileListing{
		Files: files,
		OrgInfo: models.OrgInfo{
			OrgName:  org.Name,
			Semester: membership.Semester,
			Branch:   membership.Branch,
		},
	}, nil
}

// ListSubjects returns the distinct subjects among the requester's in-scope
// active records, for populating filter controls.
func (s *Service) ListSubjects(ctx context.Context, username string) ([]string, error) {
	membership, _, err := s.authorize(username)
	if err != nil {
		return nil, err
	}

	subjects, err := s.db.ListNestSubjects(membership.Scope())
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	return subjects, nil
}

// SoftDelete deactivates a record. Only the uploader may delete; the row
// persists for audit and the blob is left in place.
func (s *Service) SoftDelete(ctx context.Context, storageID, username string) error {
	file, err := s.db.GetNestFileByStorageID(storageID)
	if errors.Is(err, database.ErrNotFound) {
		return ErrFileNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to find file: %w", err)
	}

	if file.UploadedBy != username {
		return ErrNotUploader
	}

	if err := s.db.DeactivateNestFile(storageID); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	s.log.Infow("file soft-deleted", "storage_id", storageID, "uploader", username)
	return nil
}

// accessibleFile re-runs the full scope check against the record owning the
// handle. Intentionally separate from the list path so list and download
// each enforce access on their own - a guessed handle gains nothing.
func (s *Service) accessibleFile(storageID, username string) (*models.NestFile, error) {
	membership, _, err := s.authorize(username)
	if err != nil {
		return nil, err
	}

	file, err := s.db.GetNestFileByStorageID(storageID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrAccessDenied
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find file: %w", err)
	}

	if !file.Active || file.Scope() != membership.Scope() {
		return nil, ErrAccessDenied
	}
	return file, nil
}

// ResolveDownload resolves a read URL for a file the requester can access.
func (s *Service) ResolveDownload(ctx context.Context, storageID, username string) (*models.FileAccess, error) {
	file, err := s.accessibleFile(storageID, username)
	if err != nil {
		return nil, err
	}

	url, err := s.blobs.IssueDownloadURL(ctx, storageID)
	if errors.Is(err, storage.ErrBlobNotFound) {
		return nil, ErrBlobMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve download url: %w", err)
	}

	return &models.FileAccess{
		URL:      url,
		Filename: file.Filename,
		FileType: file.FileType,
		FileSize: file.FileSize,
	}, nil
}

// OpenFile streams the file bytes for the inline preview proxy, after the
// same access check as ResolveDownload. The returned size is the blob's
// actual byte count, which is authoritative over the client-declared
// FileSize on the record.
func (s *Service) OpenFile(ctx context.Context, storageID, username string) (io.ReadCloser, int64, *models.NestFile, error) {
	file, err := s.accessibleFile(storageID, username)
	if err != nil {
		return nil, 0, nil, err
	}

	rc, size, err := s.blobs.Open(ctx, storageID)
	if errors.Is(err, storage.ErrBlobNotFound) {
		return nil, 0, nil, ErrBlobMissing
	}
	if err != nil {
		return nil, 0, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return rc, size, file, nil
}

// GetFileForAudit resolves a record by storage handle regardless of its
// active flag. Soft-deleted rows stay reachable here for audit.
func (s *Service) GetFileForAudit(storageID string) (*models.NestFile, error) {
	file, err := s.db.GetNestFileByStorageID(storageID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find file: %w", err)
	}
	return file, nil
}

package nest_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"knowledge-nest-backend/pkg/database"
	"knowledge-nest-backend/pkg/models"
	"knowledge-nest-backend/pkg/nest"
	"knowledge-nest-backend/pkg/storage"
)

type fixture struct {
	db    *database.MemoryDatabase
	blobs *storage.MemoryBlobStore
	svc   *nest.Service
	orgID string
}

// newFixture seeds one verified organization with three members: alice and
// bob share (semester 3, CS), carol is in semester 5 of the same branch.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := database.NewMemoryDatabase()
	blobs := storage.NewMemoryBlobStore()

	org := &models.Organization{Name: "Tech University", EmailDomain: "tech.edu", Verified: true}
	require.NoError(t, db.CreateOrganization(org))

	members := []models.UserOrganization{
		{Username: "alice", OrganizationID: org.ID, Semester: 3, Branch: "CS"},
		{Username: "bob", OrganizationID: org.ID, Semester: 3, Branch: "CS"},
		{Username: "carol", OrganizationID: org.ID, Semester: 5, Branch: "CS"},
	}
	for i := range members {
		require.NoError(t, db.UpsertMembership(&members[i]))
	}

	return &fixture{
		db:    db,
		blobs: blobs,
		svc:   nest.NewService(db, blobs, zap.NewNop().Sugar(), 50*1024*1024),
		orgID: org.ID,
	}
}

// upload stages a blob and records metadata for it, returning the record.
func (f *fixture) upload(t *testing.T, username, filename, subject string) *models.NestFile {
	t.Helper()

	handle, err := f.svc.IssueUploadHandle(context.Background(), username)
	require.NoError(t, err)
	f.blobs.Put(handle.StorageID, []byte("content of "+filename))

	file, err := f.svc.RecordUpload(context.Background(), username, &models.UploadMetadataRequest{
		StorageID: handle.StorageID,
		Subject:   subject,
		Filename:  filename,
		FileSize:  1024,
		FileType:  "application/pdf",
	})
	require.NoError(t, err)
	return file
}

func TestAuthorizationFailsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("unknown user", func(t *testing.T) {
		_, err := f.svc.ListFiles(ctx, "mallory", "")
		assert.ErrorIs(t, err, nest.ErrNoMembership)
	})

	t.Run("empty username", func(t *testing.T) {
		_, err := f.svc.IssueUploadHandle(ctx, "")
		assert.ErrorIs(t, err, nest.ErrNoMembership)
	})

	t.Run("deactivated membership", func(t *testing.T) {
		require.NoError(t, f.db.DeactivateMembership("carol"))
		_, err := f.svc.ListFiles(ctx, "carol", "")
		assert.ErrorIs(t, err, nest.ErrNoMembership)
	})

	t.Run("unverified organization", func(t *testing.T) {
		unverified := &models.Organization{Name: "Shady Institute", Verified: false}
		require.NoError(t, f.db.CreateOrganization(unverified))
		require.NoError(t, f.db.UpsertMembership(&models.UserOrganization{
			Username: "dave", OrganizationID: unverified.ID, Semester: 1, Branch: "EE",
		}))

		_, err := f.svc.ListFiles(ctx, "dave", "")
		assert.ErrorIs(t, err, nest.ErrUnverified)

		_, err = f.svc.ResolveDownload(ctx, "whatever", "dave")
		assert.ErrorIs(t, err, nest.ErrUnverified)
	})
}

func TestResolveContext(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.ResolveContext(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, f.orgID, got.OrganizationID)
	assert.Equal(t, "Tech University", got.OrgName)
	assert.Equal(t, 3, got.Semester)
	assert.Equal(t, "CS", got.Branch)
	assert.Equal(t, "alice", got.Username)
}

func TestRecordUploadSanitizesAndScopes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	handle, err := f.svc.IssueUploadHandle(ctx, "alice")
	require.NoError(t, err)

	file, err := f.svc.RecordUpload(ctx, "alice", &models.UploadMetadataRequest{
		StorageID:   handle.StorageID,
		Subject:     "  Algo\x00rithms  ",
		Filename:    `notes "v2".pdf`,
		FileSize:    2048,
		FileType:    "application/pdf",
		Description: "week\x011 lecture",
	})
	require.NoError(t, err)

	assert.Equal(t, "Algorithms", file.Subject)
	assert.Equal(t, `notes \"v2\".pdf`, file.Filename)
	assert.Equal(t, "week1 lecture", file.Description)
	assert.Equal(t, f.orgID, file.OrganizationID)
	assert.Equal(t, 3, file.Semester)
	assert.Equal(t, "CS", file.Branch)
	assert.Equal(t, "alice", file.UploadedBy)
	assert.False(t, file.UploadDate.IsZero())
}

func TestRecordUploadRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("duplicate storage handle", func(t *testing.T) {
		file := f.upload(t, "alice", "notes.pdf", "Algorithms")
		_, err := f.svc.RecordUpload(ctx, "bob", &models.UploadMetadataRequest{
			StorageID: file.StorageID,
			Subject:   "Algorithms",
			Filename:  "other.pdf",
			FileSize:  10,
			FileType:  "application/pdf",
		})
		assert.True(t, nest.IsValidation(err))
	})

	t.Run("subject reduced to empty after sanitizing", func(t *testing.T) {
		_, err := f.svc.RecordUpload(ctx, "alice", &models.UploadMetadataRequest{
			StorageID: "fresh-handle",
			Subject:   "   \x01\x02   ",
			Filename:  "notes.pdf",
			FileSize:  10,
			FileType:  "application/pdf",
		})
		assert.True(t, nest.IsValidation(err))
	})

	t.Run("oversized file", func(t *testing.T) {
		_, err := f.svc.RecordUpload(ctx, "alice", &models.UploadMetadataRequest{
			StorageID: "fresh-handle-2",
			Subject:   "Algorithms",
			Filename:  "big.pdf",
			FileSize:  51 * 1024 * 1024,
			FileType:  "application/pdf",
		})
		assert.True(t, nest.IsValidation(err))
	})
}

func TestListFilesScopeIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.upload(t, "alice", "notes.pdf", "Algorithms")

	t.Run("same scope sees the file", func(t *testing.T) {
		listing, err := f.svc.ListFiles(ctx, "bob", "")
		require.NoError(t, err)
		require.Len(t, listing.Files, 1)
		assert.Equal(t, "notes.pdf", listing.Files[0].Filename)
		assert.Equal(t, "Tech University", listing.OrgInfo.OrgName)
	})

	t.Run("different semester sees nothing", func(t *testing.T) {
		listing, err := f.svc.ListFiles(ctx, "carol", "")
		require.NoError(t, err)
		assert.Empty(t, listing.Files)
	})

	t.Run("subject filter", func(t *testing.T) {
		f.upload(t, "alice", "calculus.pdf", "Mathematics")

		listing, err := f.svc.ListFiles(ctx, "alice", "Mathematics")
		require.NoError(t, err)
		require.Len(t, listing.Files, 1)
		assert.Equal(t, "calculus.pdf", listing.Files[0].Filename)
	})
}

func TestListSubjects(t *testing.T) {
	f := newFixture(t)

	f.upload(t, "alice", "a.pdf", "Algorithms")
	f.upload(t, "bob", "b.pdf", "Mathematics")
	f.upload(t, "alice", "c.pdf", "Algorithms")

	subjects, err := f.svc.ListSubjects(context.Background(), "bob")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Algorithms", "Mathematics"}, subjects)

	subjects, err = f.svc.ListSubjects(context.Background(), "carol")
	require.NoError(t, err)
	assert.Empty(t, subjects)
}

func TestSoftDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	file := f.upload(t, "alice", "notes.pdf", "Algorithms")

	t.Run("non-uploader is rejected", func(t *testing.T) {
		err := f.svc.SoftDelete(ctx, file.StorageID, "bob")
		assert.ErrorIs(t, err, nest.ErrNotUploader)

		listing, err := f.svc.ListFiles(ctx, "bob", "")
		require.NoError(t, err)
		assert.Len(t, listing.Files, 1)
	})

	t.Run("uploader deletes, listings exclude it", func(t *testing.T) {
		require.NoError(t, f.svc.SoftDelete(ctx, file.StorageID, "alice"))

		for _, user := range []string{"alice", "bob"} {
			listing, err := f.svc.ListFiles(ctx, user, "")
			require.NoError(t, err)
			assert.Empty(t, listing.Files, "user %s", user)
		}
	})

	t.Run("record survives for audit", func(t *testing.T) {
		audit, err := f.svc.GetFileForAudit(file.StorageID)
		require.NoError(t, err)
		assert.False(t, audit.Active)
		assert.Equal(t, "notes.pdf", audit.Filename)
	})

	t.Run("deleted file is not downloadable", func(t *testing.T) {
		_, err := f.svc.ResolveDownload(ctx, file.StorageID, "alice")
		assert.ErrorIs(t, err, nest.ErrAccessDenied)
	})

	t.Run("unknown handle", func(t *testing.T) {
		err := f.svc.SoftDelete(ctx, "nope", "alice")
		assert.ErrorIs(t, err, nest.ErrFileNotFound)
	})
}

func TestResolveDownload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	file := f.upload(t, "alice", "notes.pdf", "Algorithms")

	t.Run("in-scope user resolves a url", func(t *testing.T) {
		access, err := f.svc.ResolveDownload(ctx, file.StorageID, "bob")
		require.NoError(t, err)
		assert.NotEmpty(t, access.URL)
		assert.Equal(t, "notes.pdf", access.Filename)
		assert.Equal(t, "application/pdf", access.FileType)
		assert.Equal(t, int64(1024), access.FileSize)
	})

	t.Run("out-of-scope user is denied", func(t *testing.T) {
		_, err := f.svc.ResolveDownload(ctx, file.StorageID, "carol")
		assert.ErrorIs(t, err, nest.ErrAccessDenied)
	})

	t.Run("guessed handle is denied", func(t *testing.T) {
		_, err := f.svc.ResolveDownload(ctx, "guessed-handle", "alice")
		assert.ErrorIs(t, err, nest.ErrAccessDenied)
	})

	t.Run("record without blob reports missing storage", func(t *testing.T) {
		handle, err := f.svc.IssueUploadHandle(ctx, "alice")
		require.NoError(t, err)
		_, err = f.svc.RecordUpload(ctx, "alice", &models.UploadMetadataRequest{
			StorageID: handle.StorageID,
			Subject:   "Algorithms",
			Filename:  "ghost.pdf",
			FileSize:  10,
			FileType:  "application/pdf",
		})
		require.NoError(t, err)

		_, err = f.svc.ResolveDownload(ctx, handle.StorageID, "alice")
		assert.ErrorIs(t, err, nest.ErrBlobMissing)
	})
}

func TestOpenFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	file := f.upload(t, "alice", "notes.pdf", "Algorithms")

	rc, size, got, err := f.svc.OpenFile(ctx, file.StorageID, "bob")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "content of notes.pdf", string(data))
	assert.Equal(t, "notes.pdf", got.Filename)

	// the size reflects the stored blob even when the record's declared
	// FileSize disagrees
	assert.Equal(t, int64(len(data)), size)
	assert.NotEqual(t, got.FileSize, size)

	_, _, _, err = f.svc.OpenFile(ctx, file.StorageID, "carol")
	assert.ErrorIs(t, err, nest.ErrAccessDenied)
}

// Scope is denormalized onto the record at upload time. Moving the uploader
// to a new semester must not drag old files along with them.
func TestMembershipChangeKeepsOldFilesInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	file := f.upload(t, "alice", "notes.pdf", "Algorithms")

	require.NoError(t, f.db.UpsertMembership(&models.UserOrganization{
		Username: "alice", OrganizationID: f.orgID, Semester: 4, Branch: "CS",
	}))

	t.Run("old scope still sees the file", func(t *testing.T) {
		listing, err := f.svc.ListFiles(ctx, "bob", "")
		require.NoError(t, err)
		assert.Len(t, listing.Files, 1)
	})

	t.Run("uploader's new scope does not", func(t *testing.T) {
		listing, err := f.svc.ListFiles(ctx, "alice", "")
		require.NoError(t, err)
		assert.Empty(t, listing.Files)

		_, err = f.svc.ResolveDownload(ctx, file.StorageID, "alice")
		assert.ErrorIs(t, err, nest.ErrAccessDenied)
	})

	t.Run("uploader can still delete it", func(t *testing.T) {
		require.NoError(t, f.svc.SoftDelete(ctx, file.StorageID, "alice"))
	})
}

package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	chiRoute "github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"knowledge-nest-backend/pkg/config"
	"knowledge-nest-backend/pkg/database"
	"knowledge-nest-backend/pkg/handlers"
	"knowledge-nest-backend/pkg/middleware"
	"knowledge-nest-backend/pkg/models"
	"knowledge-nest-backend/pkg/nest"
	"knowledge-nest-backend/pkg/storage"
	"knowledge-nest-backend/pkg/utils"
)

const (
	testJWTSecret = "test-secret"
	testAPIKey    = "operator-key"
)

// testEnv assembles the handlers on a router with the same layout as the
// real server, backed by in-memory stores.
type testEnv struct {
	db     *database.MemoryDatabase
	blobs  *storage.MemoryBlobStore
	svc    *nest.Service
	router chiRoute.Router
	jwt    *utils.JWTService
	orgID  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Environment:    "test",
		Port:           "0",
		JWTSecret:      testJWTSecret,
		AdminAPIKey:    testAPIKey,
		UseMemoryDB:    true,
		MaxUploadBytes: 50 * 1024 * 1024,
	}

	db := database.NewMemoryDatabase()
	blobs := storage.NewMemoryBlobStore()
	log := zap.NewNop().Sugar()
	svc := nest.NewService(db, blobs, log, cfg.MaxUploadBytes)

	filesHandler := handlers.NewFilesHandler(cfg, svc, log)
	nestHandler := handlers.NewNestHandler(cfg, svc, log)
	orgsHandler := handlers.NewOrgsHandler(cfg, db, log)

	r := chiRoute.NewRouter()

	r.Group(func(r chiRoute.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Post("/preview", filesHandler.PreviewPost)
		r.Post("/download", filesHandler.DownloadPost)
	})
	r.Get("/preview", filesHandler.PreviewGet)

	r.Route("/api/orgs", func(r chiRoute.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Post("/", orgsHandler.CreateOrganization)
		r.Get("/{id}", orgsHandler.GetOrganization)

		r.Group(func(r chiRoute.Router) {
			r.Use(middleware.RequireAPIKey(cfg.AdminAPIKey))
			r.Post("/verify", orgsHandler.VerifyOrganization)
			r.Post("/members", orgsHandler.UpsertMembership)
			r.Delete("/members/{username}", orgsHandler.DeactivateMembership)
		})
	})

	r.Route("/api/nest", func(r chiRoute.Router) {
		r.Use(middleware.AuthMiddleware(cfg))
		r.Post("/upload-url", nestHandler.GenerateUploadURL)
		r.With(middleware.ContentTypeJSON).Post("/files", nestHandler.RecordUpload)
		r.Get("/files", nestHandler.ListFiles)
		r.Get("/files/{storage_id}/url", nestHandler.GetDownloadURL)
		r.Delete("/files/{storage_id}", nestHandler.DeleteFile)
		r.Get("/subjects", nestHandler.ListSubjects)
		r.Get("/context", nestHandler.GetOrgContext)
	})

	return &testEnv{
		db:     db,
		blobs:  blobs,
		svc:    svc,
		router: r,
		jwt:    utils.NewJWTService(cfg.JWTSecret),
	}
}

// seedOrg creates a verified organization with alice and bob in (3, CS) and
// carol in (5, CS).
func (e *testEnv) seedOrg(t *testing.T) {
	t.Helper()

	org := &models.Organization{Name: "Tech University", EmailDomain: "tech.edu", Verified: true}
	require.NoError(t, e.db.CreateOrganization(org))
	e.orgID = org.ID

	members := []models.UserOrganization{
		{Username: "alice", OrganizationID: org.ID, Semester: 3, Branch: "CS"},
		{Username: "bob", OrganizationID: org.ID, Semester: 3, Branch: "CS"},
		{Username: "carol", OrganizationID: org.ID, Semester: 5, Branch: "CS"},
	}
	for i := range members {
		require.NoError(t, e.db.UpsertMembership(&members[i]))
	}
}

// seedFile stages a blob and records a file for the username.
func (e *testEnv) seedFile(t *testing.T, username, filename, subject string) *models.NestFile {
	t.Helper()

	handle, err := e.svc.IssueUploadHandle(context.Background(), username)
	require.NoError(t, err)
	e.blobs.Put(handle.StorageID, []byte("content of "+filename))

	file, err := e.svc.RecordUpload(context.Background(), username, &models.UploadMetadataRequest{
		StorageID: handle.StorageID,
		Subject:   subject,
		Filename:  filename,
		FileSize:  1024,
		FileType:  "application/pdf",
	})
	require.NoError(t, err)
	return file
}

func (e *testEnv) token(t *testing.T, username string) string {
	t.Helper()
	token, _, err := e.jwt.GenerateAccessToken(username, username+"@tech.edu")
	require.NoError(t, err)
	return token
}

// do runs a request through the router. A non-empty token is attached as a
// Bearer header; body is JSON-encoded when present.
func (e *testEnv) do(t *testing.T, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// doWithKey runs a request with the operator API key attached.
func (e *testEnv) doWithKey(t *testing.T, method, target, apiKey string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", apiKey)

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a JSON response body into a generic map.
func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

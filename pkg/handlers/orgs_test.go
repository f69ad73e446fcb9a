package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-nest-backend/pkg/models"
)

func createOrg(t *testing.T, env *testEnv, name string) string {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/api/orgs/", "", models.CreateOrganizationRequest{
		Name:        name,
		EmailDomain: "tech.edu",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	data := decode(t, rec)["data"].(map[string]interface{})
	org := data["organization"].(map[string]interface{})
	id, _ := org["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestCreateAndGetOrganization(t *testing.T) {
	env := newTestEnv(t)

	id := createOrg(t, env, "Tech University")

	t.Run("new org starts unverified", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/orgs/"+id, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		data := decode(t, rec)["data"].(map[string]interface{})
		org := data["organization"].(map[string]interface{})
		assert.Equal(t, "Tech University", org["org_name"])
		assert.Equal(t, false, org["org_verified"])
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/orgs/does-not-exist", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid payload", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/orgs/", "", map[string]string{"org_name": "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestOperatorRoutesRequireKey(t *testing.T) {
	env := newTestEnv(t)
	id := createOrg(t, env, "Tech University")

	payload := map[string]interface{}{"organization_id": id, "verified": true}

	t.Run("missing key", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/orgs/verify", "", payload)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		rec := env.doWithKey(t, http.MethodPost, "/api/orgs/verify", "wrong", payload)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("correct key", func(t *testing.T) {
		rec := env.doWithKey(t, http.MethodPost, "/api/orgs/verify", testAPIKey, payload)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestVerifyOrganization(t *testing.T) {
	env := newTestEnv(t)
	id := createOrg(t, env, "Tech University")

	rec := env.doWithKey(t, http.MethodPost, "/api/orgs/verify", testAPIKey, map[string]interface{}{
		"organization_id": id, "verified": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	org, err := env.db.GetOrganization(id)
	require.NoError(t, err)
	assert.True(t, org.Verified)

	t.Run("can be revoked again", func(t *testing.T) {
		rec := env.doWithKey(t, http.MethodPost, "/api/orgs/verify", testAPIKey, map[string]interface{}{
			"organization_id": id, "verified": false,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		org, err := env.db.GetOrganization(id)
		require.NoError(t, err)
		assert.False(t, org.Verified)
	})

	t.Run("unknown org", func(t *testing.T) {
		rec := env.doWithKey(t, http.MethodPost, "/api/orgs/verify", testAPIKey, map[string]interface{}{
			"organization_id": "missing", "verified": true,
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestMembershipLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := createOrg(t, env, "Tech University")

	upsert := func(semester int, branch string) *httptest.ResponseRecorder {
		return env.doWithKey(t, http.MethodPost, "/api/orgs/members", testAPIKey, models.UpsertMembershipRequest{
			Username:       "alice",
			OrganizationID: id,
			Semester:       semester,
			Branch:         branch,
		})
	}

	t.Run("upsert creates an active membership", func(t *testing.T) {
		rec := upsert(3, "CS")
		require.Equal(t, http.StatusOK, rec.Code)

		m, err := env.db.GetActiveMembership("alice")
		require.NoError(t, err)
		assert.Equal(t, 3, m.Semester)
		assert.Equal(t, "CS", m.Branch)
	})

	t.Run("upsert replaces the previous active row", func(t *testing.T) {
		rec := upsert(4, "CS")
		require.Equal(t, http.StatusOK, rec.Code)

		m, err := env.db.GetActiveMembership("alice")
		require.NoError(t, err)
		assert.Equal(t, 4, m.Semester)
	})

	t.Run("semester out of range", func(t *testing.T) {
		rec := upsert(9, "CS")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown organization", func(t *testing.T) {
		rec := env.doWithKey(t, http.MethodPost, "/api/orgs/members", testAPIKey, models.UpsertMembershipRequest{
			Username:       "bob",
			OrganizationID: "11111111-1111-4111-8111-111111111111",
			Semester:       1,
			Branch:         "CS",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("deactivate", func(t *testing.T) {
		rec := env.doWithKey(t, http.MethodDelete, "/api/orgs/members/alice", testAPIKey, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		_, err := env.db.GetActiveMembership("alice")
		assert.Error(t, err)
	})

	t.Run("deactivate with no active membership", func(t *testing.T) {
		rec := env.doWithKey(t, http.MethodDelete, "/api/orgs/members/alice", testAPIKey, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

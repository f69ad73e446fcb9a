package handlers

import (
	"errors"
	"net/http"
	"strings"

	chiRoute "github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"knowledge-nest-backend/pkg/config"
	"knowledge-nest-backend/pkg/database"
	"knowledge-nest-backend/pkg/models"
	"knowledge-nest-backend/pkg/utils"
)

// OrgsHandler administers organizations and memberships: registration,
// verification and the one-active-membership-per-username lifecycle.
// Verification and membership mutation sit behind the operator API key.
type OrgsHandler struct {
	config   *config.Config
	db       database.DatabaseInterface
	validate *validator.Validate
	log      *zap.SugaredLogger
}

// NewOrgsHandler creates the organization administration handler.
func NewOrgsHandler(cfg *config.Config, db database.DatabaseInterface, log *zap.SugaredLogger) *OrgsHandler {
	return &OrgsHandler{
		config:   cfg,
		db:       db,
		validate: validator.New(),
		log:      log,
	}
}

// POST /api/orgs
func (h *OrgsHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrganizationRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		utils.WriteValidationErrorResponse(w, validationMessage(err))
		return
	}

	// New organizations start unverified; an operator flips the flag after
	// manual review
	org := &models.Organization{
		Name:        strings.TrimSpace(req.Name),
		EmailDomain: strings.ToLower(strings.TrimSpace(req.EmailDomain)),
		Verified:    false,
	}
	if err := h.db.CreateOrganization(org); err != nil {
		h.log.Errorw("create organization failed", "error", err)
		utils.WriteInternalServerErrorResponse(w, "Failed to create organization")
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{"organization": org})
}

// GET /api/orgs/{id}
func (h *OrgsHandler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := chiRoute.URLParam(r, "id")
	if strings.TrimSpace(orgID) == "" {
		utils.WriteBadRequestResponse(w, "organization id required")
		return
	}

	org, err := h.db.GetOrganization(orgID)
	if errors.Is(err, database.ErrNotFound) {
		utils.WriteNotFoundResponse(w, "organization not found")
		return
	}
	if err != nil {
		h.log.Errorw("get organization failed", "error", err)
		utils.WriteInternalServerErrorResponse(w, "Failed to load organization")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"organization": org})
}

// POST /api/orgs/verify  (operator only)
func (h *OrgsHandler) VerifyOrganization(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrganizationID string `json:"organization_id"`
		Verified       bool   `json:"verified"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.OrganizationID) == "" {
		utils.WriteBadRequestResponse(w, "organization_id required")
		return
	}

	org, err := h.db.GetOrganization(req.OrganizationID)
	if errors.Is(err, database.ErrNotFound) {
		utils.WriteNotFoundResponse(w, "organization not found")
		return
	}
	if err != nil {
		h.log.Errorw("verify organization failed", "error", err)
		utils.WriteInternalServerErrorResponse(w, "Failed to load organization")
		return
	}

	org.Verified = req.Verified
	if err := h.db.UpdateOrganization(org); err != nil {
		h.log.Errorw("verify organization failed", "error", err)
		utils.WriteInternalServerErrorResponse(w, "Failed to update organization")
		return
	}

	h.log.Infow("organization verification changed", "org", org.ID, "verified", org.Verified)
	utils.WriteSuccessResponse(w, map[string]interface{}{"organization": org})
}

// POST /api/orgs/members  (operator only)
func (h *OrgsHandler) UpsertMembership(w http.ResponseWriter, r *http.Request) {
	var req models.UpsertMembershipRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		utils.WriteValidationErrorResponse(w, validationMessage(err))
		return
	}

	// The organization must exist before anyone is attached to it
	if _, err := h.db.GetOrganization(req.OrganizationID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "organization not found")
			return
		}
		h.log.Errorw("membership upsert failed", "error", err)
		utils.WriteInternalServerErrorResponse(w, "Failed to load organization")
		return
	}

	membership := &models.UserOrganization{
		Username:       strings.TrimSpace(req.Username),
		OrganizationID: req.OrganizationID,
		Semester:       req.Semester,
		Branch:         strings.TrimSpace(req.Branch),
	}
	if err := h.db.UpsertMembership(membership); err != nil {
		h.log.Errorw("membership upsert failed", "error", err)
		utils.WriteInternalServerErrorResponse(w, "Failed to save membership")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"membership": membership})
}

// DELETE /api/orgs/members/{username}  (operator only)
func (h *OrgsHandler) DeactivateMembership(w http.ResponseWriter, r *http.Request) {
	username := chiRoute.URLParam(r, "username")
	if strings.TrimSpace(username) == "" {
		utils.WriteBadRequestResponse(w, "username required")
		return
	}

	err := h.db.DeactivateMembership(username)
	if errors.Is(err, database.ErrNotFound) {
		utils.WriteNotFoundResponse(w, "no active membership for username")
		return
	}
	if err != nil {
		h.log.Errorw("membership deactivation failed", "error", err)
		utils.WriteInternalServerErrorResponse(w, "Failed to deactivate membership")
		return
	}

	utils.WriteSuccessMessage(w, "Membership deactivated", nil)
}

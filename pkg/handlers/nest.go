package handlers

import (
	"errors"
	"net/http"
	"strings"

	chiRoute "github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"knowledge-nest-backend/pkg/config"
	"knowledge-nest-backend/pkg/middleware"
	"knowledge-nest-backend/pkg/models"
	"knowledge-nest-backend/pkg/nest"
	"knowledge-nest-backend/pkg/utils"
)

// NestHandler serves the authenticated Knowledge Nest API. The acting
// username always comes from the verified token in the request context.
type NestHandler struct {
	config   *config.Config
	svc      *nest.Service
	validate *validator.Validate
	log      *zap.SugaredLogger
}

// NewNestHandler creates the Knowledge Nest API handler.
func NewNestHandler(cfg *config.Config, svc *nest.Service, log *zap.SugaredLogger) *NestHandler {
	return &NestHandler{
		config:   cfg,
		svc:      svc,
		validate: validator.New(),
		log:      log,
	}
}

// POST /api/nest/upload-url
func (h *NestHandler) GenerateUploadURL(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	handle, err := h.svc.IssueUploadHandle(r.Context(), user.Username)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, handle)
}

// POST /api/nest/files
func (h *NestHandler) RecordUpload(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.UploadMetadataRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		utils.WriteValidationErrorResponse(w, validationMessage(err))
		return
	}

	file, err := h.svc.RecordUpload(r.Context(), user.Username, &req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "File uploaded successfully",
		Data:    map[string]interface{}{"fileId": file.ID, "file_id": file.StorageID},
	})
}

// GET /api/nest/files?subject=&search=&sort_by=&sort_order=
func (h *NestHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	query := r.URL.Query()
	subject := strings.TrimSpace(query.Get("subject"))
	listing, err := h.svc.ListFiles(r.Context(), user.Username, subject)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	search := strings.TrimSpace(query.Get("search"))
	if search != "" || query.Get("sort_by") != "" || query.Get("sort_order") != "" {
		listing.Files = nest.Apply(listing.Files, search,
			nest.ParseSortField(query.Get("sort_by")),
			nest.ParseSortOrder(query.Get("sort_order")))
	}
	utils.WriteSuccessResponse(w, listing)
}

// GET /api/nest/files/{storage_id}/url
func (h *NestHandler) GetDownloadURL(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	storageID := chiRoute.URLParam(r, "storage_id")
	if strings.TrimSpace(storageID) == "" {
		utils.WriteBadRequestResponse(w, "storage id required")
		return
	}

	access, err := h.svc.ResolveDownload(r.Context(), storageID, user.Username)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, access)
}

// DELETE /api/nest/files/{storage_id}
func (h *NestHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	storageID := chiRoute.URLParam(r, "storage_id")
	if strings.TrimSpace(storageID) == "" {
		utils.WriteBadRequestResponse(w, "storage id required")
		return
	}

	if err := h.svc.SoftDelete(r.Context(), storageID, user.Username); err != nil {
		h.writeServiceError(w, err)
		return
	}
	utils.WriteSuccessMessage(w, "File deleted successfully", nil)
}

// GET /api/nest/subjects
func (h *NestHandler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	subjects, err := h.svc.ListSubjects(r.Context(), user.Username)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"subjects": subjects})
}

// GET /api/nest/context
func (h *NestHandler) GetOrgContext(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	orgCtx, err := h.svc.ResolveContext(r.Context(), user.Username)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, orgCtx)
}

// writeServiceError maps service errors onto the authenticated API's status
// codes. Unexpected errors are logged and answered with a generic message.
func (h *NestHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, nest.ErrNoMembership):
		utils.WriteNotFoundResponse(w, err.Error())
	case errors.Is(err, nest.ErrUnverified):
		utils.WriteForbiddenResponse(w, err.Error())
	case errors.Is(err, nest.ErrNotUploader):
		utils.WriteForbiddenResponse(w, err.Error())
	case errors.Is(err, nest.ErrFileNotFound),
		errors.Is(err, nest.ErrAccessDenied),
		errors.Is(err, nest.ErrBlobMissing):
		utils.WriteNotFoundResponse(w, err.Error())
	case nest.IsValidation(err):
		utils.WriteValidationErrorResponse(w, err.Error())
	default:
		h.log.Errorw("nest operation failed", "error", err)
		utils.WriteInternalServerErrorResponse(w, "Unexpected error, please try again later")
	}
}

// isNotFoundLike groups every condition the public byte endpoints answer
// with 404, matching the original route's behavior of mapping any
// unsuccessful access to not-found.
func isNotFoundLike(err error) bool {
	return errors.Is(err, nest.ErrNoMembership) ||
		errors.Is(err, nest.ErrUnverified) ||
		errors.Is(err, nest.ErrFileNotFound) ||
		errors.Is(err, nest.ErrAccessDenied) ||
		errors.Is(err, nest.ErrBlobMissing)
}

// validationMessage flattens a validator error into a single user-facing
// sentence.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return "invalid or missing fields: " + strings.Join(fields, ", ")
	}
	return "invalid request payload"
}

package handlers

import (
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"knowledge-nest-backend/pkg/config"
	"knowledge-nest-backend/pkg/nest"
	"knowledge-nest-backend/pkg/utils"
)

// FilesHandler serves the public preview/download endpoints that proxy file
// bytes for in-browser use. These take {file_id, username} explicitly
// because they are fetched from contexts (iframes, anchor downloads) where
// auth headers cannot be attached; the service still re-runs the full scope
// check on every call.
type FilesHandler struct {
	config *config.Config
	svc    *nest.Service
	log    *zap.SugaredLogger
}

// NewFilesHandler creates the preview/download handler.
func NewFilesHandler(cfg *config.Config, svc *nest.Service, log *zap.SugaredLogger) *FilesHandler {
	return &FilesHandler{config: cfg, svc: svc, log: log}
}

type fileRequest struct {
	FileID   string `json:"file_id"`
	Username string `json:"username"`
}

// previewResponse is the POST /preview payload.
type previewResponse struct {
	Success    bool   `json:"success"`
	PreviewURL string `json:"previewUrl"`
	Filename   string `json:"filename"`
	FileType   string `json:"file_type"`
	FileSize   int64  `json:"file_size"`
	Message    string `json:"message"`
}

// downloadResponse is the POST /download payload.
type downloadResponse struct {
	Success     bool   `json:"success"`
	DownloadURL string `json:"downloadUrl"`
	Filename    string `json:"filename"`
	FileType    string `json:"file_type"`
	FileSize    int64  `json:"file_size"`
	Message     string `json:"message"`
}

// PreviewPost handles POST /preview: resolves a short-lived URL the client
// renders inline.
func (h *FilesHandler) PreviewPost(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.FileID == "" || req.Username == "" {
		utils.WriteBadRequestResponse(w, "File ID and username are required")
		return
	}

	access, err := h.svc.ResolveDownload(r.Context(), req.FileID, req.Username)
	if err != nil {
		h.writePublicError(w, err, "Failed to prepare preview")
		return
	}

	utils.WriteJSON(w, http.StatusOK, previewResponse{
		Success:    true,
		PreviewURL: access.URL,
		Filename:   access.Filename,
		FileType:   access.FileType,
		FileSize:   access.FileSize,
		Message:    "File ready for preview",
	})
}

// PreviewGet handles GET /preview: streams the raw bytes with inline
// disposition so browsers render the file directly.
func (h *FilesHandler) PreviewGet(w http.ResponseWriter, r *http.Request) {
	fileID := r.URL.Query().Get("file_id")
	username := r.URL.Query().Get("username")
	if fileID == "" || username == "" {
		utils.WriteBadRequestResponse(w, "File ID and username are required")
		return
	}

	rc, size, file, err := h.svc.OpenFile(r.Context(), fileID, username)
	if err != nil {
		h.writePublicError(w, err, "Failed to serve file for preview")
		return
	}
	defer rc.Close()

	contentType := file.FileType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", file.Filename))
	// Content-Length must describe the bytes actually streamed, which is the
	// blob's size, not the size the uploader declared
	w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("X-Frame-Options", "SAMEORIGIN")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		// headers are gone; just log the broken stream
		h.log.Warnw("preview stream interrupted", "file_id", fileID, "error", err)
	}
}

// DownloadPost handles POST /download: returns a fetchable URL for a
// client-side blob download.
func (h *FilesHandler) DownloadPost(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.FileID == "" || req.Username == "" {
		utils.WriteBadRequestResponse(w, "File ID and username are required")
		return
	}

	access, err := h.svc.ResolveDownload(r.Context(), req.FileID, req.Username)
	if err != nil {
		h.writePublicError(w, err, "Failed to prepare file download")
		return
	}

	utils.WriteJSON(w, http.StatusOK, downloadResponse{
		Success:     true,
		DownloadURL: access.URL,
		Filename:    access.Filename,
		FileType:    access.FileType,
		FileSize:    access.FileSize,
		Message:     "File ready for download",
	})
}

// writePublicError maps service errors onto the public endpoints' status
// conventions: 404 for every not-found/denied/unverified condition, 500
// otherwise. Sentinel messages pass through; internal detail stays in logs.
func (h *FilesHandler) writePublicError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case isNotFoundLike(err):
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: err.Error()})
	case nest.IsValidation(err):
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: err.Error()})
	default:
		h.log.Errorw("file endpoint failure", "error", err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: fallback})
	}
}

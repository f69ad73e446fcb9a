package utils

import (
	"encoding/json"
	"net/http"
)

// APIResponse is the uniform response shape. Every endpoint answers with
// {success, message, ...} so the client can render errors inline without
// special-casing transports.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// WriteJSON writes an arbitrary payload with the given status code. Used by
// endpoints whose response shape carries top-level fields beyond the
// envelope (preview/download).
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// WriteSuccessResponse writes a 200 envelope with data.
func WriteSuccessResponse(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// WriteCreatedResponse writes a 201 envelope with data.
func WriteCreatedResponse(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusCreated, APIResponse{Success: true, Data: data})
}

// WriteSuccessMessage writes a 200 envelope with a message and optional data.
func WriteSuccessMessage(w http.ResponseWriter, message string, data interface{}) {
	WriteJSON(w, http.StatusOK, APIResponse{Success: true, Message: message, Data: data})
}

// WriteErrorResponse writes an error envelope with the given status code.
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	WriteErrorResponseWithCode(w, statusCode, "ERROR", message)
}

// WriteErrorResponseWithCode writes an error envelope with a machine code.
func WriteErrorResponseWithCode(w http.ResponseWriter, statusCode int, code, message string) {
	WriteJSON(w, statusCode, APIResponse{Success: false, Code: code, Message: message})
}

// WriteBadRequestResponse writes a 400 error envelope.
func WriteBadRequestResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusBadRequest, "BAD_REQUEST", message)
}

// WriteUnauthorizedResponse writes a 401 error envelope.
func WriteUnauthorizedResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

// WriteForbiddenResponse writes a 403 error envelope.
func WriteForbiddenResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusForbidden, "FORBIDDEN", message)
}

// WriteNotFoundResponse writes a 404 error envelope.
func WriteNotFoundResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusNotFound, "NOT_FOUND", message)
}

// WriteConflictResponse writes a 409 error envelope.
func WriteConflictResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusConflict, "CONFLICT", message)
}

// WriteInternalServerErrorResponse writes a 500 error envelope.
func WriteInternalServerErrorResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", message)
}

// WriteValidationErrorResponse writes a 400 envelope for payload validation
// failures.
func WriteValidationErrorResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusBadRequest, "VALIDATION_ERROR", message)
}

// ParseJSONBody decodes a JSON request body into v.
func ParseJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// GetQueryParam returns a query parameter or the default when absent.
func GetQueryParam(r *http.Request, key, defaultValue string) string {
	if value := r.URL.Query().Get(key); value != "" {
		return value
	}
	return defaultValue
}

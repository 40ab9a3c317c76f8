package utils

import (
	"encoding/json"
	"net/http"

	"ms-darshan/internal/apperrors"
)

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{Success: true, Message: message, Data: data}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{Success: false, Message: message, Error: error}
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, SuccessResponse(message, data))
}

// WriteError answers with the status apperrors maps err to. Internal errors
// carry the underlying message in the error field.
func WriteError(w http.ResponseWriter, err error) {
	status := apperrors.StatusFor(err)
	if status == http.StatusInternalServerError {
		WriteJSON(w, status, ErrorResponse("Server error", err.Error()))
		return
	}
	WriteJSON(w, status, ErrorResponse(apperrors.MessageFor(err), ""))
}

// WriteFail writes a client error without an error value.
func WriteFail(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse(message, ""))
}

// DecodeJSON reads the request body into dst, mapping decode failures to a validation error.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.Validation("Invalid request body: %v", err)
	}
	return nil
}

// IsServerError reports whether err will be answered with a 5xx.
func IsServerError(err error) bool {
	return apperrors.StatusFor(err) >= http.StatusInternalServerError
}

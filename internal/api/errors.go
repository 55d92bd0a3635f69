package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/address-discovery/internal/errors"
	"github.com/address-discovery/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Common error codes
const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeProcessingFailed   = "PROCESSING_FAILED"
)

// mapServiceError maps service errors to HTTP status codes.
// Categorized errors keep their own status, code and message.
func mapServiceError(err error) (int, string, string) {
	var catErr *errors.CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr.StatusCode, catErr.Code, catErr.Message
	}

	var serviceErr *types.ServiceError
	if stderrors.As(err, &serviceErr) {
		cat := errors.Categorize(serviceErr)
		return cat.StatusCode, cat.Code, cat.Message
	}

	return http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred"
}

// respondServiceError writes err using mapServiceError
func respondServiceError(w http.ResponseWriter, err error) {
	status, code, message := mapServiceError(err)

	var details map[string]interface{}
	var catErr *errors.CategorizedError
	if stderrors.As(err, &catErr) {
		details = catErr.Details
	}
	respondError(w, status, code, message, details)
}

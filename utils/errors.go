package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithValidationError sends a 422 Unprocessable Entity error for
// payloads (inbound or model-produced) that fail schema validation
func RespondWithValidationError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusUnprocessableEntity, "validation_error", message, details)
}

// RespondWithServiceUnavailable sends a 503 for upstream provider outages
func RespondWithServiceUnavailable(c *gin.Context, message string) {
	RespondWithError(c, http.StatusServiceUnavailable, "embedding_unavailable", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error. The message is
// intentionally generic so internal detail never leaks to callers.
func RespondWithInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", "An unexpected error occurred", nil)
}

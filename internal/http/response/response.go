// Package response provides JSON response helpers for HTTP handlers.
package response

import (
	"encoding/json/v2"
	"log/slog"
	"net/http"

	apperrors "github.com/shopsight/shopsight-server/internal/errors"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Detail string `json:"detail"`
	// RequiresAdvancedBackend is set when the request needs a storage
	// engine capability the active one lacks.
	RequiresAdvancedBackend bool `json:"requires_advanced_backend,omitzero"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}
	if err := json.MarshalWrite(w, data); err != nil {
		// Headers are already sent, all we can do is log.
		logger.Error("Failed to encode response", "error", err)
	}
}

// Error writes an error response with a detail message.
func Error(w http.ResponseWriter, status int, detail string, logger *slog.Logger) {
	JSON(w, status, ErrorBody{Detail: detail}, logger)
}

// HandleError maps an error to the appropriate HTTP response.
// Domain errors carry their own status codes; anything else is a 500.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var domainErr *apperrors.Error
	if apperrors.As(err, &domainErr) {
		body := ErrorBody{Detail: domainErr.Message}
		if domainErr.Code == apperrors.CodeBackendUnsupported {
			body.RequiresAdvancedBackend = true
		}
		if domainErr.Code == apperrors.CodeInternal || domainErr.Code == apperrors.CodeUpstream {
			logger.Error("Request failed", "code", domainErr.Code, "error", err)
		}
		JSON(w, domainErr.HTTPStatus(), body, logger)
		return
	}

	logger.Error("Unhandled error", "error", err)
	Error(w, http.StatusInternalServerError, "Internal server error", logger)
}

// TooManyRequests writes a 429 response.
func TooManyRequests(w http.ResponseWriter, detail string, logger *slog.Logger) {
	Error(w, http.StatusTooManyRequests, detail, logger)
}

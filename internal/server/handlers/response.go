package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/accounts/pkg/api"
)

// Category maps an HTTP status to its error category
func Category(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest, http.StatusConflict:
		return api.CategoryClientError
	case http.StatusUnauthorized:
		return api.CategoryUnauthenticated
	case http.StatusForbidden:
		return api.CategoryForbidden
	case http.StatusNotFound:
		return api.CategoryNotFound
	case http.StatusTooManyRequests:
		return api.CategoryRateLimited
	}
	if statusCode >= 400 && statusCode < 500 {
		return api.CategoryClientError
	}
	return api.CategoryInternalError
}

// WriteJSON sends data as a JSON response
func WriteJSON(w http.ResponseWriter, logger *slog.Logger, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// WriteError sends a categorized JSON error
func WriteError(w http.ResponseWriter, logger *slog.Logger, message string, statusCode int) {
	WriteJSON(w, logger, api.ErrorResponse{
		Error:   Category(statusCode),
		Message: message,
	}, statusCode)
}

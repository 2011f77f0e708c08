package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/accounts/pkg/api"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service and storage status
type HealthHandler struct {
	logger  *slog.Logger
	storage Pinger
	version string
}

// NewHealthHandler creates a HealthHandler
func NewHealthHandler(logger *slog.Logger, storage Pinger, version string) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		storage: storage,
		version: version,
	}
}

// Health handles GET /api/v1/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := api.HealthResponse{Status: "ok", Version: h.version}
	status := http.StatusOK

	if err := h.storage.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "storage health check failed", slog.Any("error", err))
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	WriteJSON(w, h.logger, resp, status)
}

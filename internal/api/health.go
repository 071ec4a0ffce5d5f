package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	ping   func(ctx context.Context) error
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. ping may be nil.
func NewHealthHandler(ping func(ctx context.Context) error, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{ping: ping, logger: logger.Named("health_handler")}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Healthz handles GET /healthz.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.ping == nil {
		Ok(w, healthResponse{Status: "ok", Database: "unknown"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		h.logger.Warn("health check: database unreachable", zap.Error(err))
		JSON(w, http.StatusServiceUnavailable, envelope{"data": healthResponse{Status: "degraded", Database: "unreachable"}})
		return
	}
	Ok(w, healthResponse{Status: "ok", Database: "ok"})
}

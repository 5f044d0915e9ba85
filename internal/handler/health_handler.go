package handler

import (
	"context"
	"net/http"
	"time"

	"relief-dao/internal/container"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// HealthHandler handles health check requests
type HealthHandler struct {
	container *container.Container
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(container *container.Container) *HealthHandler {
	return &HealthHandler{
		container: container,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Service   string            `json:"service"`
	Checks    map[string]string `json:"checks"`
}

// Check handles GET /health. Backends that are not configured report
// "disabled"; a configured backend that fails its ping degrades the service.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	logger := h.container.GetLogger()

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   Version,
		Service:   "relief-dao",
		Checks: map[string]string{
			"database": "disabled",
			"redis":    "disabled",
		},
	}

	if h.container.HasDatabase() {
		response.Checks["database"] = "ok"
		if err := h.container.DB.Health(ctx); err != nil {
			logger.WithError(err).Warn("Database health check failed")
			response.Checks["database"] = "unreachable"
			response.Status = "degraded"
		}
	}

	if h.container.HasRedis() {
		response.Checks["redis"] = "ok"
		if err := h.container.GetRedisClient().Health(ctx); err != nil {
			logger.WithError(err).Warn("Redis health check failed")
			response.Checks["redis"] = "unreachable"
			response.Status = "degraded"
		}
	}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, response)
}

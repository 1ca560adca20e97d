package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"event-relay/internal/config"
	"event-relay/internal/service"
	"event-relay/internal/telemetry"
)

// greeting is served at the root path.
const greeting = "Hello from event-relay!"

// HealthHandler serves the greeting, health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version telemetry.Version
	limiter *service.Limiter
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v telemetry.Version, svc *service.RelayService) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v, limiter: svc.Limiter()}
}

// Greeting answers GET / with a plain-text banner.
func (h *HealthHandler) Greeting(c echo.Context) error {
	return c.String(http.StatusOK, greeting)
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// StatusResponse is the body of GET /relay/status.
type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Envelope      string `json:"envelope"`
	MaxConcurrent int64  `json:"max_concurrent"`
	InFlight      int64  `json:"in_flight"`
}

// Status returns relay status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		Status:        "ok",
		Version:       string(h.version),
		Envelope:      h.cfg.Callback.Envelope,
		MaxConcurrent: h.limiter.Capacity(),
		InFlight:      h.limiter.InFlight(),
	})
}

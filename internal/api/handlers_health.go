// handlers_health.go - Health check handlers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const backendProbeTimeout = 3 * time.Second

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	backend Pinger
}

// NewHealthHandler creates a new health handler. backend may be nil.
func NewHealthHandler(version string, backend Pinger) HealthHandler {
	return &HealthHandlerImpl{
		version: version,
		backend: backend,
	}
}

// HandleHealth returns local liveness and whether the report backend answers.
// The local server is healthy even when the backend is not.
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	}

	if h.backend != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), backendProbeTimeout)
		defer cancel()

		if err := h.backend.Health(ctx); err != nil {
			resp["backend"] = "unreachable"
			resp["backendError"] = err.Error()
		} else {
			resp["backend"] = "ok"
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// handlers_history.go - History panel handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HistoryHandlerImpl implements the HistoryHandler interface
type HistoryHandlerImpl struct {
	history HistoryService
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(svc HistoryService) HistoryHandler {
	return &HistoryHandlerImpl{history: svc}
}

// HandleGetHistory returns the rendered history. With ?refresh=1 the
// history is fetched again before answering.
func (h *HistoryHandlerImpl) HandleGetHistory(c echo.Context) error {
	switch c.QueryParam("refresh") {
	case "1", "true":
		h.history.Refresh(c.Request().Context())
	}
	return c.JSON(http.StatusOK, h.history.View())
}

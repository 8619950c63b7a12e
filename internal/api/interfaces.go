// interfaces.go - Handler and service interface definitions
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/earnings-extractor/client/internal/history"
	"github.com/earnings-extractor/client/internal/models"
	"github.com/earnings-extractor/client/internal/processing"
)

// ProcessingService is the processing controller as seen by the web layer.
type ProcessingService interface {
	Select(files []models.SelectedFile) error
	ProcessAsync(ctx context.Context) (<-chan error, error)
	Download(sink processing.Sink) error
	Snapshot() models.ProcessingSnapshot
	Subscribe(fn processing.Observer) (unsubscribe func())
}

// HistoryService is the history controller as seen by the web layer.
type HistoryService interface {
	Refresh(ctx context.Context)
	View() models.HistoryView
	Loading() bool
	Subscribe(fn history.Observer) (unsubscribe func())
}

// Pinger checks that the report backend is reachable.
type Pinger interface {
	Health(ctx context.Context) error
}

// ProcessingHandler handles file selection, processing and download
type ProcessingHandler interface {
	HandleSelectFiles(c echo.Context) error
	HandleProcess(c echo.Context) error
	HandleDownload(c echo.Context) error
	HandlePreview(c echo.Context) error
}

// HistoryHandler handles the history panel
type HistoryHandler interface {
	HandleGetHistory(c echo.Context) error
}

// StateHandler exposes the combined state of both panels
type StateHandler interface {
	HandleGetState(c echo.Context) error
	HandleWebSocket(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// routes.go - Route registration helpers
package api

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Processing ProcessingService
	History    HistoryService
	Backend    Pinger
	Logger     zerolog.Logger
	Version    string
}

// Handlers holds all handler instances
type Handlers struct {
	Health     HealthHandler
	Processing ProcessingHandler
	History    HistoryHandler
	State      *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:     NewHealthHandler(deps.Version, deps.Backend),
		Processing: NewProcessingHandler(deps.Processing, deps.Logger),
		History:    NewHistoryHandler(deps.History),
		State:      NewWebSocketHandler(deps.Processing, deps.History, deps.Logger),
	}
}

// Close releases the controller subscriptions held by the handlers.
func (h *Handlers) Close() {
	h.State.Close()
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/health", handlers.Health.HandleHealth)

	// Processing panel
	e.POST("/files", handlers.Processing.HandleSelectFiles)
	e.POST("/process", handlers.Processing.HandleProcess)
	e.GET("/download", handlers.Processing.HandleDownload)
	e.GET("/preview", handlers.Processing.HandlePreview)

	// History panel
	e.GET("/history", handlers.History.HandleGetHistory)

	// Combined state and live updates
	e.GET("/state", handlers.State.HandleGetState)
	e.GET("/ws", handlers.State.HandleWebSocket)
}

// MiddlewareConfig selects the optional middleware.
type MiddlewareConfig struct {
	RequestLogging bool
	BodyLimit      string
	// VerboseErrors includes error details in unexpected-error responses.
	VerboseErrors bool
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig, logger zerolog.Logger) {
	e.HTTPErrorHandler = NewErrorHandler(cfg.VerboseErrors)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.RequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/health" || path == "/ws" || path == "/state" ||
				strings.HasPrefix(path, "/assets/")
		},
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := logger.Info()
			if v.Error != nil {
				ev = logger.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error().Err(err).Bytes("stack", stack).Msg("panic recovered")
			return err
		},
	}))

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
}
